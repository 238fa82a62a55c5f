package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/service/orders"
	"github.com/m3rciful/bookbot/bookstore/service/wizard"
)

func (h *Handler) addBook(ctx context.Context, ev Event) ([]Response, error) {
	return wizardReply(h.wizard.Start(ctx, ev.Actor, wizard.AddItem()))
}

func (h *Handler) setPayment(ctx context.Context, ev Event) ([]Response, error) {
	addr := strings.TrimSpace(ev.Args)
	if addr == "" {
		return wizardReply(h.wizard.Start(ctx, ev.Actor, wizard.SetPaymentAddress()))
	}
	return wizardReply(h.wizard.Run(ctx, ev.Actor, wizard.SetPaymentAddress(), wizard.Input{Kind: wizard.InputText, Text: addr}))
}

func (h *Handler) setQR(ctx context.Context, ev Event) ([]Response, error) {
	return wizardReply(h.wizard.Start(ctx, ev.Actor, wizard.SetPaymentQR()))
}

func (h *Handler) setCover(ctx context.Context, ev Event) ([]Response, error) {
	id, err := itemIDArg(ev.Args, CmdSetCover)
	if err != nil {
		return nil, err
	}
	return wizardReply(h.wizard.Start(ctx, ev.Actor, wizard.UpdateCover(id)))
}

func (h *Handler) setContent(ctx context.Context, ev Event) ([]Response, error) {
	id, err := itemIDArg(ev.Args, CmdSetContent)
	if err != nil {
		return nil, err
	}
	return wizardReply(h.wizard.Start(ctx, ev.Actor, wizard.UpdateContent(id)))
}

func (h *Handler) cancel(ctx context.Context, ev Event) ([]Response, error) {
	r, err := h.wizard.Cancel(ctx, ev.Actor)
	if errors.Is(err, domain.ErrNoSession) {
		return []Response{reply("Nothing to cancel.")}, nil
	}
	return wizardReply(r, err)
}

func (h *Handler) wizardButton(ctx context.Context, ev Event) ([]Response, error) {
	return h.wizardInput(ctx, ev.Actor, wizard.Input{Kind: wizard.InputButton, Tag: ev.Name, Payload: ev.Args})
}

// wizardInput feeds one input to the running flow. A rejected input comes back with a
// re-prompt and is not an error for the actor.
func (h *Handler) wizardInput(ctx context.Context, actorID int64, in wizard.Input) ([]Response, error) {
	r, err := h.wizard.Handle(ctx, actorID, in)
	if errors.Is(err, domain.ErrInvalidInput) && r != nil {
		return []Response{reply(r.Text, r.Actions...)}, nil
	}
	if errors.Is(err, domain.ErrNoSession) {
		return []Response{reply("This form is no longer active.")}, nil
	}
	return wizardReply(r, err)
}

func wizardReply(r *wizard.Reply, err error) ([]Response, error) {
	if err != nil {
		return nil, err
	}
	return []Response{reply(r.Text, r.Actions...)}, nil
}

func (h *Handler) claimAdmin(ctx context.Context, ev Event) ([]Response, error) {
	arg := strings.TrimSpace(ev.Args)
	if arg == "" {
		rec, err := h.access.Claim(ctx, ev.Actor)
		if err != nil {
			return nil, err
		}
		return []Response{reply("You are the administrator (" + strconv.FormatInt(rec.ActorID, 10) + ").")}, nil
	}
	target, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || target <= 0 {
		return nil, domain.Invalid("actor", "%q is not a user id", arg)
	}
	rec, err := h.access.Reassign(ctx, ev.Actor, target)
	if err != nil {
		return nil, err
	}
	return []Response{reply("Administrator role handed over to " + strconv.FormatInt(rec.ActorID, 10) + ".")}, nil
}

func (h *Handler) openOrders(ctx context.Context, ev Event) ([]Response, error) {
	open, err := h.orders.ListOpen(ctx, ev.Actor)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return []Response{reply("No orders are waiting for a decision.")}, nil
	}
	out := make([]Response, 0, len(open)+1)
	out = append(out, reply(strconv.Itoa(len(open))+" open order(s), oldest first:"))
	for _, o := range open {
		out = append(out, Response{
			Text:    openOrderText(o),
			Actions: orders.DecisionActions(o.Order.ID),
			Columns: 2,
		})
	}
	return out, nil
}

func (h *Handler) decide(d domain.Decision) commandFunc {
	return func(ctx context.Context, ev Event) ([]Response, error) {
		res, err := h.orders.Decide(ctx, strings.TrimSpace(ev.Args), ev.Actor, d)
		if errors.Is(err, domain.ErrAlreadyDecided) && res != nil {
			return []Response{reply("Order " + res.Order.ShortID() + " was already " + strings.ToLower(string(res.Order.Status)) + ".")}, nil
		}
		if err != nil {
			return nil, err
		}
		return []Response{reply(decisionText(res))}, nil
	}
}

func itemIDArg(raw, cmd string) (int64, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if raw == "" {
		return 0, domain.Invalid("item", "usage: /%s <item id>", cmd)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("item", "%q is not an item id", raw)
	}
	return id, nil
}
