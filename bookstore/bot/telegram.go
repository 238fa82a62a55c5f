package bot

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/notify"
	tg "github.com/m3rciful/bookbot/core/telegram"
	"github.com/m3rciful/bookbot/core/telegram/callbacks"
	"github.com/m3rciful/bookbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/bookbot/core/telegram/helpers"
	"github.com/m3rciful/bookbot/core/telegram/keyboard"
	"github.com/m3rciful/bookbot/core/telegram/router"
	"github.com/m3rciful/bookbot/core/telegram/ui"
)

var _ ui.FallbackProvider = (*Handler)(nil)

// Register adds the bookstore commands, callbacks and fallbacks to reg.
func (h *Handler) Register(reg *tg.Registry) error {
	for _, name := range h.CommandNames() {
		def := h.commands[name]
		reg.RegisterCommand("/"+name, commands.Command{
			Handler:     h.onCommand(name),
			Description: def.description,
			AdminOnly:   def.adminOnly,
			Aliases:     def.aliases,
		})
	}
	for _, tag := range h.ButtonTags() {
		if err := reg.RegisterCallback(tag, h.onButton(tag)); err != nil {
			return err
		}
	}
	reg.SetTextFallback(h.UnknownText())
	reg.SetCallbackNotFound(h.UnknownCallback())
	return nil
}

// Routes builds the telebot routes for everything registered in reg.
func (h *Handler) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin: func(id int64) bool {
			return h.access.IsAdmin(context.Background(), id)
		},
		OnAdminReject: func(c tele.Context) error {
			return render(c, []Response{reply(describe(domain.ErrUnauthorized))})
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: h.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(wizardRouter{h}, reg, router.TextOptions{
		UnknownText:     h.UnknownText(),
		UnknownDocument: h.UnknownDocument(),
		UnknownPhoto:    h.UnknownPhoto(),
	})...)
	return routes
}

// UnknownText handles text outside wizards that is not a command.
func (h *Handler) UnknownText() tele.HandlerFunc { return h.onMessage }

// UnknownDocument handles media outside wizards: payment proof.
func (h *Handler) UnknownDocument() tele.HandlerFunc { return h.onMessage }

// UnknownPhoto handles photos outside wizards, also treated as payment proof.
func (h *Handler) UnknownPhoto() tele.HandlerFunc { return h.onMessage }

// UnknownCallback answers stale buttons.
func (h *Handler) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return render(c, []Response{reply(textUnknownAction)})
	}
}

type wizardRouter struct{ h *Handler }

func (w wizardRouter) InProgress(userID int64) bool { return w.h.InProgress(userID) }

func (w wizardRouter) ManagerHandler(c tele.Context) error { return w.h.onMessage(c) }

func (h *Handler) onCommand(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := baseEvent(c)
		ev.Kind = KindCommand
		ev.Name = name
		if m := c.Message(); m != nil {
			ev.Args = strings.TrimSpace(m.Payload)
		}
		return h.serve(c, ev)
	}
}

func (h *Handler) onButton(tag string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := baseEvent(c)
		ev.Kind = KindButton
		ev.Name = tag
		ev.Args = callbacks.CallbackPayload(c)
		return h.serve(c, ev)
	}
}

func (h *Handler) onMessage(c tele.Context) error {
	ev := baseEvent(c)
	ev.Kind = KindText
	ev.Text = c.Text()
	if m := c.Message(); m != nil {
		switch {
		case m.Photo != nil:
			ev.Kind = KindMedia
			ev.Media = notify.Media{Ref: m.Photo.FileID, Kind: notify.MediaPhoto}
		case m.Document != nil:
			ev.Kind = KindMedia
			ev.Media = notify.Media{Ref: m.Document.FileID, Kind: notify.MediaDocument}
		}
	}
	return h.serve(c, ev)
}

func baseEvent(c tele.Context) Event {
	var ev Event
	if s := c.Sender(); s != nil {
		ev.Actor = s.ID
		ev.Username = s.Username
	}
	return ev
}

func (h *Handler) serve(c tele.Context, ev Event) error {
	out, err := h.Dispatch(tghelpers.BuildContext(c), ev)
	if sendErr := render(c, out); sendErr != nil && err == nil {
		err = sendErr
	}
	return err
}

func render(c tele.Context, out []Response) error {
	var first error
	for _, r := range out {
		opts := &tele.SendOptions{ReplyMarkup: Markup(r.Actions, r.Columns)}
		var err error
		if r.Media != nil {
			err = tghelpers.SendMedia(c, Sendable(*r.Media, r.Text), opts)
		} else {
			err = tghelpers.SendText(c, r.Text, opts)
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Markup renders actions as an inline keyboard with columns buttons per row.
func Markup(actions []notify.Action, columns int) *tele.ReplyMarkup {
	if len(actions) == 0 {
		return nil
	}
	btns := make([]keyboard.InlineBtn, 0, len(actions))
	for _, a := range actions {
		btns = append(btns, keyboard.InlineBtn{Text: a.Label, Unique: a.Tag, Data: a.Payload})
	}
	return keyboard.InlineButtonsNPerRow(btns, columns)
}

// Sendable wraps an opaque media reference for telebot.
func Sendable(m notify.Media, caption string) tele.Sendable {
	file := tele.File{FileID: m.Ref}
	if m.Kind == notify.MediaPhoto {
		return &tele.Photo{File: file, Caption: caption}
	}
	return &tele.Document{File: file, Caption: caption}
}
