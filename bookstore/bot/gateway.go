package bot

import (
	"context"
	"errors"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/core/telegram/sender"
)

var errNotBound = errors.New("telegram gateway: bot not started")

// Gateway implements notify.Gateway on a telebot instance. Sends run inline through the
// dispatcher retry policy so the caller learns whether delivery succeeded.
type Gateway struct {
	bot  atomic.Pointer[tele.Bot]
	disp atomic.Pointer[sender.Dispatcher]
}

var _ notify.Gateway = (*Gateway)(nil)

// NewGateway returns an unbound gateway; every send fails until Bind is called.
func NewGateway() *Gateway {
	return &Gateway{}
}

// Bind attaches the running bot and its dispatcher. A nil dispatcher sends without retries.
func (g *Gateway) Bind(b *tele.Bot, d *sender.Dispatcher) {
	g.bot.Store(b)
	g.disp.Store(d)
}

// SendText delivers a plain-text message.
func (g *Gateway) SendText(ctx context.Context, to int64, text string, actions ...notify.Action) error {
	return g.send(ctx, to, "gateway.text", "sendMessage", text, actions)
}

// SendMedia delivers a photo or document with a caption.
func (g *Gateway) SendMedia(ctx context.Context, to int64, media notify.Media, caption string, actions ...notify.Action) error {
	endpoint := "sendDocument"
	if media.Kind == notify.MediaPhoto {
		endpoint = "sendPhoto"
	}
	return g.send(ctx, to, "gateway.media", endpoint, Sendable(media, caption), actions)
}

func (g *Gateway) send(ctx context.Context, to int64, action, endpoint string, what any, actions []notify.Action) error {
	b := g.bot.Load()
	if b == nil {
		return &notify.DeliveryError{To: to, Op: endpoint, Err: errNotBound}
	}
	opts := &tele.SendOptions{ReplyMarkup: Markup(actions, len(actions))}
	run := func() error {
		_, err := b.Send(tele.ChatID(to), what, opts)
		return err
	}
	var err error
	if d := g.disp.Load(); d != nil {
		err = d.Do(ctx, action, endpoint, run)
	} else {
		err = run()
	}
	if err != nil {
		return &notify.DeliveryError{To: to, Op: endpoint, Err: err}
	}
	return nil
}
