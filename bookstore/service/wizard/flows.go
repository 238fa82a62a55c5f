package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/core/state"
)

// Flows.
const (
	FlowAddItem    state.Flow = "ADD_ITEM"
	FlowSetPayment state.Flow = "SET_PAYMENT"
	FlowUpdateItem state.Flow = "UPDATE_ITEM"
)

// Steps. StepCommit is terminal and never stored.
const (
	StepSelectLanguage state.Step = "SELECT_LANGUAGE"
	StepEnterTitle     state.Step = "ENTER_TITLE"
	StepEnterPrices    state.Step = "ENTER_PRICES"
	StepEnterCover     state.Step = "ENTER_COVER"
	StepAttachContent  state.Step = "ATTACH_CONTENT"
	StepAwaitValue     state.Step = "AWAIT_VALUE"
	StepAwaitImage     state.Step = "AWAIT_IMAGE"
	StepAwaitCover     state.Step = "AWAIT_COVER"
	StepAwaitContent   state.Step = "AWAIT_CONTENT"
	StepCommit         state.Step = "COMMIT"
)

// Collected field names.
const (
	fieldLanguage = "language"
	fieldTitle    = "title"
	fieldPrices   = "prices"
	fieldCover    = "cover"
	fieldContent  = "content"
	fieldAddress  = "address"
	fieldQR       = "qr"
	fieldItemID   = "item_id"
)

const (
	maxTitleLen   = 200
	maxAddressLen = 512
)

// stepDef validates one step's input and names the step that follows.
type stepDef struct {
	prompt func(e *Engine, s *state.Session) string
	// accept stores the input into s and returns the next step.
	accept func(e *Engine, s *state.Session, in Input) (state.Step, error)
	// skipTo is the step taken on a Skip button; empty means the step cannot be skipped.
	skipTo   state.Step
	language bool
}

// flowDef is one entry of the flow table.
type flowDef struct {
	steps  map[state.Step]stepDef
	commit func(ctx context.Context, e *Engine, s *state.Session) (string, error)
}

var flows = map[state.Flow]flowDef{
	FlowAddItem: {
		steps: map[state.Step]stepDef{
			StepSelectLanguage: {
				prompt:   func(*Engine, *state.Session) string { return "📚 New book. Choose its language:" },
				accept:   acceptLanguage,
				language: true,
			},
			StepEnterTitle: {
				prompt: func(*Engine, *state.Session) string { return "✏️ Send the book title." },
				accept: acceptTitle,
			},
			StepEnterPrices: {
				prompt: func(e *Engine, _ *state.Session) string {
					return fmt.Sprintf("💰 Send the price(s), e.g. INR 199, USD 2.5. A bare number is read as %s.", e.defaultCurrency)
				},
				accept: acceptPrices,
			},
			StepEnterCover: {
				prompt: func(*Engine, *state.Session) string { return "🖼 Send a cover image, or press Skip." },
				accept: acceptPhoto(fieldCover, StepAttachContent),
				skipTo: StepAttachContent,
			},
			StepAttachContent: {
				prompt: func(*Engine, *state.Session) string {
					return "📎 Send the book file. Skipping keeps the book hidden until content is attached with /setcontent."
				},
				accept: acceptDocument(fieldContent, StepCommit),
				skipTo: StepCommit,
			},
		},
		commit: commitItem,
	},
	FlowSetPayment: {
		steps: map[state.Step]stepDef{
			StepAwaitValue: {
				prompt: func(*Engine, *state.Session) string { return "🏦 Send the payment address buyers should pay to." },
				accept: acceptAddress,
			},
			StepAwaitImage: {
				prompt: func(*Engine, *state.Session) string { return "🔳 Send the payment QR code as a photo." },
				accept: acceptPhoto(fieldQR, StepCommit),
			},
		},
		commit: commitPayment,
	},
	FlowUpdateItem: {
		steps: map[state.Step]stepDef{
			StepAwaitCover: {
				prompt: func(_ *Engine, s *state.Session) string {
					return fmt.Sprintf("🖼 Send the new cover for book #%s.", s.Field(fieldItemID))
				},
				accept: acceptPhoto(fieldCover, StepCommit),
			},
			StepAwaitContent: {
				prompt: func(_ *Engine, s *state.Session) string {
					return fmt.Sprintf("📎 Send the book file for #%s.", s.Field(fieldItemID))
				},
				accept: acceptDocument(fieldContent, StepCommit),
			},
		},
		commit: commitItemUpdate,
	},
}

// Entry is a starting point into a flow.
type Entry struct {
	Flow   state.Flow
	Step   state.Step
	Fields map[string]string
}

// AddItem starts the add-item flow.
func AddItem() Entry { return Entry{Flow: FlowAddItem, Step: StepSelectLanguage} }

// SetPaymentAddress starts the payment address flow.
func SetPaymentAddress() Entry { return Entry{Flow: FlowSetPayment, Step: StepAwaitValue} }

// SetPaymentQR starts the payment QR flow.
func SetPaymentQR() Entry { return Entry{Flow: FlowSetPayment, Step: StepAwaitImage} }

// UpdateCover starts replacing the cover of an existing item.
func UpdateCover(itemID int64) Entry {
	return Entry{Flow: FlowUpdateItem, Step: StepAwaitCover, Fields: map[string]string{fieldItemID: strconv.FormatInt(itemID, 10)}}
}

// UpdateContent starts attaching deliverable content to an existing item.
func UpdateContent(itemID int64) Entry {
	return Entry{Flow: FlowUpdateItem, Step: StepAwaitContent, Fields: map[string]string{fieldItemID: strconv.FormatInt(itemID, 10)}}
}

func acceptLanguage(e *Engine, s *state.Session, in Input) (state.Step, error) {
	var raw string
	switch {
	case in.Kind == InputButton && in.Tag == TagLanguage:
		raw = in.Payload
	case in.Kind == InputText:
		raw = in.Text
	default:
		return "", domain.Invalid(fieldLanguage, "choose one of the language buttons")
	}
	lang, ok := e.parseLanguage(raw)
	if !ok {
		return "", domain.Invalid(fieldLanguage, "choose %s or %s", e.labels[domain.LanguagePrimary], e.labels[domain.LanguageSecondary])
	}
	s.SetField(fieldLanguage, string(lang))
	return StepEnterTitle, nil
}

func acceptTitle(_ *Engine, s *state.Session, in Input) (state.Step, error) {
	if in.Kind != InputText {
		return "", domain.Invalid(fieldTitle, "the title must be sent as text")
	}
	title := strings.Join(strings.Fields(in.Text), " ")
	if title == "" {
		return "", domain.Invalid(fieldTitle, "the title must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", domain.Invalid(fieldTitle, "the title is longer than %d characters", maxTitleLen)
	}
	s.SetField(fieldTitle, title)
	return StepEnterPrices, nil
}

func acceptPrices(e *Engine, s *state.Session, in Input) (state.Step, error) {
	if in.Kind != InputText {
		return "", domain.Invalid(fieldPrices, "send the prices as text")
	}
	prices, err := domain.ParsePrices(in.Text, e.defaultCurrency)
	if err != nil {
		return "", err
	}
	s.SetField(fieldPrices, prices.String())
	return StepEnterCover, nil
}

func acceptAddress(_ *Engine, s *state.Session, in Input) (state.Step, error) {
	if in.Kind != InputText {
		return "", domain.Invalid(fieldAddress, "send the address as text")
	}
	addr := strings.TrimSpace(in.Text)
	if addr == "" {
		return "", domain.Invalid(fieldAddress, "the address must not be empty")
	}
	if utf8.RuneCountInString(addr) > maxAddressLen {
		return "", domain.Invalid(fieldAddress, "the address is longer than %d characters", maxAddressLen)
	}
	s.SetField(fieldAddress, addr)
	return StepCommit, nil
}

func acceptPhoto(field string, next state.Step) func(*Engine, *state.Session, Input) (state.Step, error) {
	return func(_ *Engine, s *state.Session, in Input) (state.Step, error) {
		if in.Kind != InputPhoto || strings.TrimSpace(in.Ref) == "" {
			return "", domain.Invalid(field, "please send an image")
		}
		s.SetField(field, in.Ref)
		return next, nil
	}
}

func acceptDocument(field string, next state.Step) func(*Engine, *state.Session, Input) (state.Step, error) {
	return func(_ *Engine, s *state.Session, in Input) (state.Step, error) {
		if in.Kind != InputDocument || strings.TrimSpace(in.Ref) == "" {
			return "", domain.Invalid(field, "please send the file as a document")
		}
		s.SetField(field, in.Ref)
		return next, nil
	}
}

func commitItem(ctx context.Context, e *Engine, s *state.Session) (string, error) {
	prices, err := domain.ParsePrices(s.Field(fieldPrices), e.defaultCurrency)
	if err != nil {
		return "", err
	}
	item := domain.Item{
		Title:      s.Field(fieldTitle),
		Language:   domain.Language(s.Field(fieldLanguage)),
		Prices:     prices,
		CoverRef:   s.Field(fieldCover),
		ContentRef: s.Field(fieldContent),
	}
	if err := item.Validate(); err != nil {
		return "", err
	}
	if err := e.items.CreateItem(ctx, &item); err != nil {
		return "", fmt.Errorf("create item: %w", err)
	}
	s.SetField(fieldItemID, strconv.FormatInt(item.ID, 10))
	msg := fmt.Sprintf("✅ Added \"%s\" (#%d, %s, %s).", item.Title, item.ID, e.labels[item.Language], item.Prices)
	if !item.Purchasable() {
		msg += fmt.Sprintf("\nIt stays hidden until you attach the file with /setcontent %d.", item.ID)
	}
	return msg, nil
}

func commitPayment(ctx context.Context, e *Engine, s *state.Session) (string, error) {
	if addr := s.Field(fieldAddress); addr != "" {
		if err := e.settings.SetSetting(ctx, domain.SettingPaymentAddress, addr); err != nil {
			return "", fmt.Errorf("save payment address: %w", err)
		}
		return "✅ Payment address saved.", nil
	}
	if qr := s.Field(fieldQR); qr != "" {
		if err := e.settings.SetSetting(ctx, domain.SettingPaymentQR, qr); err != nil {
			return "", fmt.Errorf("save payment qr: %w", err)
		}
		return "✅ Payment QR code saved.", nil
	}
	return "", domain.Invalid("payment", "nothing to save")
}

func commitItemUpdate(ctx context.Context, e *Engine, s *state.Session) (string, error) {
	id, err := strconv.ParseInt(s.Field(fieldItemID), 10, 64)
	if err != nil {
		return "", domain.Invalid(fieldItemID, "bad item id %q", s.Field(fieldItemID))
	}
	if ref := s.Field(fieldContent); ref != "" {
		if err := e.items.SetContent(ctx, id, ref); err != nil {
			return "", fmt.Errorf("set content: %w", err)
		}
		return fmt.Sprintf("✅ File attached to #%d. The book is now on sale.", id), nil
	}
	if ref := s.Field(fieldCover); ref != "" {
		if err := e.items.SetCover(ctx, id, ref); err != nil {
			return "", fmt.Errorf("set cover: %w", err)
		}
		return fmt.Sprintf("✅ Cover updated for #%d.", id), nil
	}
	return "", domain.Invalid("item", "nothing to save")
}

func (d stepDef) actions(e *Engine) []notify.Action {
	var out []notify.Action
	if d.language {
		out = append(out,
			notify.Action{Label: e.labels[domain.LanguagePrimary], Tag: TagLanguage, Payload: string(domain.LanguagePrimary)},
			notify.Action{Label: e.labels[domain.LanguageSecondary], Tag: TagLanguage, Payload: string(domain.LanguageSecondary)},
		)
	}
	if d.skipTo != "" {
		out = append(out, notify.Action{Label: "⏭ Skip", Tag: TagSkip})
	}
	return append(out, notify.Action{Label: "✖️ Cancel", Tag: TagCancel})
}
