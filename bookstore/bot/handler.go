package bot

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/bookstore/service/access"
	"github.com/m3rciful/bookbot/bookstore/service/catalog"
	"github.com/m3rciful/bookbot/bookstore/service/orders"
	"github.com/m3rciful/bookbot/bookstore/service/wizard"
	"github.com/m3rciful/bookbot/core/logger"
)

const component = "tg.bookstore"

// Command names.
const (
	CmdStart      = "start"
	CmdHelp       = "help"
	CmdBuy        = "buy"
	CmdMyInfo     = "myinfo"
	CmdAddBook    = "addbook"
	CmdSetPayment = "setpayment"
	CmdSetQR      = "setqr"
	CmdSetCover   = "setcover"
	CmdSetContent = "setcontent"
	CmdOrders     = "orders"
	CmdClaimAdmin = "claimadmin"
	CmdCancel     = "cancel"
)

// Button tags owned by the bot. Order decisions and wizard buttons use the tags of their engines.
const (
	TagBooks  = "books"
	TagLang   = "lang"
	TagBuy    = "buy"
	TagShowQR = "showqr"
	TagMyInfo = "myinfo"
)

// Options wires the handler to the engines.
type Options struct {
	Orders  *orders.Engine
	Wizard  *wizard.Engine
	Catalog *catalog.Service
	Access  *access.Service
	// Labels maps each language to its button label.
	Labels map[domain.Language]string
}

type commandFunc func(ctx context.Context, ev Event) ([]Response, error)

type commandDef struct {
	run         commandFunc
	description string
	adminOnly   bool
	aliases     []string
}

// Handler turns events into responses.
type Handler struct {
	orders   *orders.Engine
	wizard   *wizard.Engine
	catalog  *catalog.Service
	access   *access.Service
	labels   map[domain.Language]string
	commands map[string]commandDef
	buttons  map[string]commandFunc
}

// New constructs a Handler.
func New(opts Options) *Handler {
	h := &Handler{
		orders:  opts.Orders,
		wizard:  opts.Wizard,
		catalog: opts.Catalog,
		access:  opts.Access,
		labels: map[domain.Language]string{
			domain.LanguagePrimary:   "Primary",
			domain.LanguageSecondary: "Secondary",
		},
	}
	for lang, label := range opts.Labels {
		if strings.TrimSpace(label) != "" {
			h.labels[lang] = label
		}
	}

	h.commands = map[string]commandDef{
		CmdStart:      {run: h.start, description: "Open the store"},
		CmdHelp:       {run: h.help, description: "List commands"},
		CmdBuy:        {run: h.buy, description: "Buy a book: /buy <title or id>"},
		CmdMyInfo:     {run: h.myInfo, description: "Your purchases"},
		CmdCancel:     {run: h.cancel, description: "Cancel the current form"},
		CmdClaimAdmin: {run: h.claimAdmin, description: "Claim or hand over the administrator role"},
		CmdAddBook:    {run: h.addBook, description: "Add a book", adminOnly: true, aliases: []string{"add"}},
		CmdSetPayment: {run: h.setPayment, description: "Set the payment address", adminOnly: true},
		CmdSetQR:      {run: h.setQR, description: "Set the payment QR image", adminOnly: true},
		CmdSetCover:   {run: h.setCover, description: "Attach a cover: /setcover <id>", adminOnly: true},
		CmdSetContent: {run: h.setContent, description: "Attach content: /setcontent <id>", adminOnly: true},
		CmdOrders:     {run: h.openOrders, description: "Orders awaiting a decision", adminOnly: true},
	}
	h.buttons = map[string]commandFunc{
		TagBooks:           h.books,
		TagLang:            h.listing,
		TagBuy:             h.buyButton,
		TagShowQR:          h.showQR,
		TagMyInfo:          h.myInfo,
		orders.TagApprove:  h.decide(domain.DecisionApprove),
		orders.TagReject:   h.decide(domain.DecisionReject),
		wizard.TagLanguage: h.wizardButton,
		wizard.TagSkip:     h.wizardButton,
		wizard.TagCancel:   h.wizardButton,
	}
	return h
}

// Dispatch routes one event. Domain failures are rendered as replies and return a nil error;
// the returned error is reserved for infrastructure failures.
func (h *Handler) Dispatch(ctx context.Context, ev Event) ([]Response, error) {
	var (
		out []Response
		err error
	)
	switch ev.Kind {
	case KindCommand:
		def, ok := h.commands[strings.ToLower(ev.Name)]
		if !ok {
			return []Response{reply(textUnknownCommand)}, nil
		}
		out, err = def.run(ctx, ev)
	case KindButton:
		fn, ok := h.buttons[ev.Name]
		if !ok {
			return []Response{reply(textUnknownAction)}, nil
		}
		out, err = fn(ctx, ev)
	case KindText:
		if h.wizard.InProgress(ev.Actor) {
			out, err = h.wizardInput(ctx, ev.Actor, wizard.Input{Kind: wizard.InputText, Text: ev.Text})
			break
		}
		return []Response{reply(textUnknownCommand)}, nil
	case KindMedia:
		out, err = h.media(ctx, ev)
	default:
		return nil, nil
	}
	if err != nil {
		return h.fail(ctx, ev, err)
	}
	return out, nil
}

// InProgress reports whether the actor is inside a wizard.
func (h *Handler) InProgress(actorID int64) bool {
	return h.wizard.InProgress(actorID)
}

// fail renders err for the actor. Classified errors are swallowed after logging; repeated
// proofs and decisions are logged at debug only.
func (h *Handler) fail(ctx context.Context, ev Event, err error) ([]Response, error) {
	var de *domain.Error
	classified := errors.As(err, &de) || notify.IsDeliveryFailure(err)
	attrs := []slog.Attr{
		slog.String("kind", ev.Kind.String()),
		slog.String("op", ev.Name),
		slog.Int64("actor_id", ev.Actor),
		slog.String("err_code", errorCode(err)),
	}
	switch {
	case domain.IsBenign(err):
		logger.Debug(ctx, component, "event.duplicate", append(attrs, slog.String("status", "skip"))...)
		return []Response{reply(describe(err))}, nil
	case classified:
		logger.Info(ctx, component, "event.rejected", attrs...)
		return []Response{reply(describe(err))}, nil
	}
	logger.Error(ctx, component, "event.failed", append(attrs, slog.String("err", err.Error()))...)
	return []Response{reply(textInternal)}, err
}

// CommandNames returns the registered command names, sorted.
func (h *Handler) CommandNames() []string {
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ButtonTags returns the registered button tags, sorted.
func (h *Handler) ButtonTags() []string {
	tags := make([]string, 0, len(h.buttons))
	for tag := range h.buttons {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func buyerOf(ev Event) orders.Buyer {
	return orders.Buyer{ID: ev.Actor, Username: ev.Username}
}

func errorCode(err error) string {
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return "INTERNAL"
}
