package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/bookstore/service/wizard"
)

func (h *Handler) start(ctx context.Context, ev Event) ([]Response, error) {
	if _, err := h.orders.Register(ctx, buyerOf(ev)); err != nil {
		return nil, err
	}
	return []Response{{
		Text: textWelcome,
		Actions: []notify.Action{
			{Label: "📚 Books", Tag: TagBooks},
			{Label: "👤 My Info", Tag: TagMyInfo},
		},
		Columns: 2,
	}}, nil
}

func (h *Handler) help(ctx context.Context, ev Event) ([]Response, error) {
	admin := h.access.IsAdmin(ctx, ev.Actor)
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range h.CommandNames() {
		def := h.commands[name]
		if def.adminOnly && !admin {
			continue
		}
		b.WriteString("/" + name + " - " + def.description + "\n")
	}
	return []Response{reply(strings.TrimRight(b.String(), "\n"))}, nil
}

func (h *Handler) books(_ context.Context, _ Event) ([]Response, error) {
	return []Response{{
		Text: "Choose a language:",
		Actions: []notify.Action{
			{Label: h.labels[domain.LanguagePrimary], Tag: TagLang, Payload: string(domain.LanguagePrimary)},
			{Label: h.labels[domain.LanguageSecondary], Tag: TagLang, Payload: string(domain.LanguageSecondary)},
		},
		Columns: 2,
	}}, nil
}

func (h *Handler) listing(ctx context.Context, ev Event) ([]Response, error) {
	lang, ok := domain.ParseLanguage(ev.Args)
	if !ok {
		return nil, domain.Invalid("language", "unknown language %q", ev.Args)
	}
	items, err := h.catalog.Listing(ctx, lang)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []Response{reply("No " + h.labels[lang] + " books are available yet.")}, nil
	}
	out := make([]Response, 0, len(items))
	for _, item := range items {
		r := reply(itemCaption(item), notify.Action{
			Label:   "🛒 Buy",
			Tag:     TagBuy,
			Payload: strconv.FormatInt(item.ID, 10),
		})
		if item.CoverRef != "" {
			r.Media = &notify.Media{Ref: item.CoverRef, Kind: notify.MediaPhoto}
		}
		out = append(out, r)
	}
	return out, nil
}

func (h *Handler) buy(ctx context.Context, ev Event) ([]Response, error) {
	ref := strings.TrimSpace(ev.Args)
	if ref == "" {
		return []Response{reply("Usage: /buy <title or id>")}, nil
	}
	return h.purchase(ctx, ev, ref)
}

func (h *Handler) buyButton(ctx context.Context, ev Event) ([]Response, error) {
	return h.purchase(ctx, ev, "#"+strings.TrimSpace(ev.Args))
}

func (h *Handler) purchase(ctx context.Context, ev Event, ref string) ([]Response, error) {
	ins, err := h.orders.InitiatePurchase(ctx, buyerOf(ev), ref)
	var amb *domain.AmbiguousError
	if errors.As(err, &amb) {
		return []Response{ambiguousReply(amb)}, nil
	}
	if err != nil {
		return nil, err
	}
	r := reply(instructionsText(ins))
	if ins.QRRef != "" {
		r.Actions = []notify.Action{{Label: "🔳 Show QR", Tag: TagShowQR}}
	}
	return []Response{r}, nil
}

func (h *Handler) showQR(ctx context.Context, _ Event) ([]Response, error) {
	ref, err := h.orders.PaymentQR(ctx)
	if err != nil {
		return nil, err
	}
	return []Response{{
		Text:  "Scan to pay, then send the payment screenshot here.",
		Media: &notify.Media{Ref: ref, Kind: notify.MediaPhoto},
	}}, nil
}

func (h *Handler) myInfo(ctx context.Context, ev Event) ([]Response, error) {
	sum, err := h.orders.BuyerSummary(ctx, buyerOf(ev))
	if err != nil {
		return nil, err
	}
	return []Response{reply(summaryText(sum))}, nil
}

// media sends photos and documents to the wizard when one is running, otherwise treats them
// as payment proof.
func (h *Handler) media(ctx context.Context, ev Event) ([]Response, error) {
	if h.wizard.InProgress(ev.Actor) {
		kind := wizard.InputDocument
		if ev.Media.Kind == notify.MediaPhoto {
			kind = wizard.InputPhoto
		}
		return h.wizardInput(ctx, ev.Actor, wizard.Input{Kind: kind, Ref: ev.Media.Ref, Text: ev.Text})
	}
	order, err := h.orders.AttachProof(ctx, ev.Actor, ev.Media)
	if errors.Is(err, domain.ErrAlreadySubmitted) && order != nil {
		return []Response{reply("Proof for order " + order.ShortID() + " was already received. Please wait for the review.")}, nil
	}
	if err != nil {
		return nil, err
	}
	return []Response{reply("Thanks! Proof for order " + order.ShortID() + " was sent for review. You will get the book once it is approved.")}, nil
}
