package bot

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/bookstore/service/access"
	"github.com/m3rciful/bookbot/bookstore/service/catalog"
	"github.com/m3rciful/bookbot/bookstore/service/orders"
	"github.com/m3rciful/bookbot/bookstore/service/wizard"
	"github.com/m3rciful/bookbot/bookstore/storage/memory"
	"github.com/m3rciful/bookbot/core/logger"
)

const (
	adminID int64 = 1
	buyerID int64 = 42
)

type fixture struct {
	store   *memory.Store
	gw      *notify.Recorder
	access  *access.Service
	handler *Handler
}

func newFixture(t *testing.T, withAdmin bool) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(nil), gw: notify.NewRecorder()}
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	labels := map[domain.Language]string{domain.LanguagePrimary: "English", domain.LanguageSecondary: "Hindi"}
	f.access = access.New(f.store)
	if withAdmin {
		_, err := f.access.Claim(context.Background(), adminID)
		require.NoError(t, err)
	}
	f.handler = New(Options{
		Orders: orders.New(orders.Options{
			Items:    f.store,
			Settings: f.store,
			Users:    f.store,
			Ledger:   f.store,
			Access:   f.access,
			Gateway:  f.gw,
			Now: func() time.Time {
				clock = clock.Add(time.Second)
				return clock
			},
		}),
		Wizard: wizard.New(wizard.Options{
			Access:   f.access,
			Items:    f.store,
			Settings: f.store,
			Gateway:  f.gw,
			Labels:   labels,
		}),
		Catalog: catalog.New(f.store),
		Access:  f.access,
		Labels:  labels,
	})
	return f
}

func (f *fixture) dispatch(t *testing.T, ev Event) []Response {
	t.Helper()
	out, err := f.handler.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	return out
}

func command(actor int64, name, args string) Event {
	return Event{Actor: actor, Kind: KindCommand, Name: name, Args: args}
}

func button(actor int64, tag, payload string) Event {
	return Event{Actor: actor, Kind: KindButton, Name: tag, Args: payload}
}

func textEvent(actor int64, text string) Event {
	return Event{Actor: actor, Kind: KindText, Text: text}
}

func mediaEvent(actor int64, ref string, kind notify.MediaKind) Event {
	return Event{Actor: actor, Kind: KindMedia, Media: notify.Media{Ref: ref, Kind: kind}}
}

func (f *fixture) addAtlas(t *testing.T) {
	t.Helper()
	f.dispatch(t, command(adminID, CmdAddBook, ""))
	f.dispatch(t, button(adminID, wizard.TagLanguage, string(domain.LanguagePrimary)))
	f.dispatch(t, textEvent(adminID, "Atlas"))
	f.dispatch(t, textEvent(adminID, "INR 199"))
	f.dispatch(t, button(adminID, wizard.TagSkip, ""))
	f.dispatch(t, mediaEvent(adminID, "atlas-pdf", notify.MediaDocument))
	require.False(t, f.handler.InProgress(adminID))
}

func TestStartRegistersBuyer(t *testing.T) {
	f := newFixture(t, true)

	out := f.dispatch(t, Event{Actor: buyerID, Username: "reader", Kind: KindCommand, Name: CmdStart})
	assert.Equal(t, textWelcome, out[0].Text)
	require.Len(t, out[0].Actions, 2)
	assert.Equal(t, TagBooks, out[0].Actions[0].Tag)

	profile, err := f.store.GetUser(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Equal(t, "reader", profile.Username)
}

func TestHelpHidesAdminCommands(t *testing.T) {
	f := newFixture(t, true)

	buyer := f.dispatch(t, command(buyerID, CmdHelp, ""))[0].Text
	assert.Contains(t, buyer, "/buy")
	assert.NotContains(t, buyer, "/addbook")

	admin := f.dispatch(t, command(adminID, CmdHelp, ""))[0].Text
	assert.Contains(t, admin, "/addbook")
}

func TestUnknownInputs(t *testing.T) {
	f := newFixture(t, true)

	assert.Equal(t, textUnknownCommand, f.dispatch(t, command(buyerID, "nope", ""))[0].Text)
	assert.Equal(t, textUnknownAction, f.dispatch(t, button(buyerID, "stale", ""))[0].Text)
	assert.Equal(t, textUnknownCommand, f.dispatch(t, textEvent(buyerID, "hello"))[0].Text)
}

func TestBuyWithoutPaymentAddress(t *testing.T) {
	f := newFixture(t, true)
	f.addAtlas(t)

	out := f.dispatch(t, command(buyerID, CmdBuy, "Atlas"))
	assert.Contains(t, out[0].Text, "not configured")
	out = f.dispatch(t, command(buyerID, CmdBuy, "Book X"))
	assert.Equal(t, describe(domain.ErrPaymentNotConfigured), out[0].Text)

	list, err := f.store.ListByBuyer(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuyUsageAndUnknownTitle(t *testing.T) {
	f := newFixture(t, true)
	f.dispatch(t, command(adminID, CmdSetPayment, "shop@upi"))

	assert.Contains(t, f.dispatch(t, command(buyerID, CmdBuy, " "))[0].Text, "Usage")
	assert.Equal(t, describe(domain.ErrItemNotFound), f.dispatch(t, command(buyerID, CmdBuy, "Missing"))[0].Text)
}

func TestBuyItemWithoutContent(t *testing.T) {
	f := newFixture(t, true)
	f.dispatch(t, command(adminID, CmdSetPayment, "shop@upi"))
	draft := domain.Item{Title: "Draft", Language: domain.LanguagePrimary, Prices: domain.Prices{{Currency: "INR", Amount: 100}}}
	require.NoError(t, f.store.CreateItem(context.Background(), &draft))

	out := f.dispatch(t, command(buyerID, CmdBuy, "Draft"))
	assert.Equal(t, "This book is not available yet.", out[0].Text)

	list, err := f.store.ListByBuyer(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPurchaseProofAndApproval(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.addAtlas(t)
	f.dispatch(t, command(adminID, CmdSetPayment, "shop@upi"))

	listing := f.dispatch(t, button(buyerID, TagLang, string(domain.LanguagePrimary)))
	require.Len(t, listing, 1)
	require.Len(t, listing[0].Actions, 1)
	assert.Equal(t, TagBuy, listing[0].Actions[0].Tag)

	out := f.dispatch(t, button(buyerID, TagBuy, listing[0].Actions[0].Payload))
	assert.Contains(t, out[0].Text, "shop@upi")

	list, err := f.store.ListByBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	orderID := list[0].ID

	out = f.dispatch(t, mediaEvent(buyerID, "proof-1", notify.MediaPhoto))
	assert.Contains(t, out[0].Text, "sent for review")

	var proof *notify.Sent
	for _, s := range f.gw.To(adminID) {
		if s.Media != nil && s.Media.Ref == "proof-1" {
			s := s
			proof = &s
		}
	}
	require.NotNil(t, proof, "admin should receive the proof")
	require.Len(t, proof.Actions, 2)
	assert.Equal(t, orderID, proof.Actions[0].Payload)

	out = f.dispatch(t, mediaEvent(buyerID, "proof-2", notify.MediaPhoto))
	assert.Contains(t, out[0].Text, "already received")

	out = f.dispatch(t, button(adminID, proof.Actions[0].Tag, orderID))
	assert.Contains(t, out[0].Text, "approved")

	sent := f.gw.To(buyerID)
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	require.NotNil(t, last.Media)
	assert.Equal(t, "atlas-pdf", last.Media.Ref)

	out = f.dispatch(t, button(adminID, orders.TagReject, orderID))
	assert.Contains(t, out[0].Text, "already approved")

	profile, err := f.store.GetUser(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.PurchaseCount)
}

func TestApprovalReportsDeliveryFailure(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.addAtlas(t)
	require.NoError(t, f.store.SetSetting(ctx, domain.SettingPaymentAddress, "shop@upi"))
	f.dispatch(t, command(buyerID, CmdBuy, "Atlas"))
	list, err := f.store.ListByBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	f.gw.Unreachable(buyerID)
	out := f.dispatch(t, button(adminID, orders.TagApprove, list[0].ID))
	assert.Contains(t, out[0].Text, "could not be notified")

	stored, err := f.store.GetOrder(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status)
}

func TestProofWithoutOrder(t *testing.T) {
	f := newFixture(t, true)

	out := f.dispatch(t, mediaEvent(buyerID, "proof", notify.MediaDocument))
	assert.Equal(t, describe(domain.ErrNoPendingOrder), out[0].Text)
}

func TestNonAdminCannotDecideOrStartWizard(t *testing.T) {
	f := newFixture(t, true)

	out := f.dispatch(t, command(buyerID, CmdAddBook, ""))
	assert.Equal(t, describe(domain.ErrUnauthorized), out[0].Text)
	assert.False(t, f.handler.InProgress(buyerID))

	out = f.dispatch(t, button(buyerID, orders.TagApprove, "00000000-0000-0000-0000-000000000001"))
	assert.Equal(t, describe(domain.ErrUnauthorized), out[0].Text)
}

func TestWizardRepromptAndCancel(t *testing.T) {
	f := newFixture(t, true)

	assert.Equal(t, "Nothing to cancel.", f.dispatch(t, command(adminID, CmdCancel, ""))[0].Text)

	f.dispatch(t, command(adminID, CmdAddBook, ""))
	f.dispatch(t, textEvent(adminID, "english"))
	f.dispatch(t, textEvent(adminID, "Atlas"))
	out := f.dispatch(t, textEvent(adminID, "cheap"))
	assert.Contains(t, out[0].Text, "⚠️")
	assert.True(t, f.handler.InProgress(adminID))

	out = f.dispatch(t, command(adminID, CmdCancel, ""))
	assert.Contains(t, out[0].Text, "cancelled")
	assert.False(t, f.handler.InProgress(adminID))

	items, err := f.store.FindByTitle(context.Background(), "Atlas")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSetCoverRequiresItemID(t *testing.T) {
	f := newFixture(t, true)

	out := f.dispatch(t, command(adminID, CmdSetCover, ""))
	assert.Contains(t, out[0].Text, "usage")
	out = f.dispatch(t, command(adminID, CmdSetCover, "#99"))
	assert.Equal(t, describe(domain.ErrItemNotFound), out[0].Text)
}

func TestClaimAdmin(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	out := f.dispatch(t, command(7, CmdClaimAdmin, ""))
	assert.Contains(t, out[0].Text, "You are the administrator")
	assert.True(t, f.access.IsAdmin(ctx, 7))

	out = f.dispatch(t, command(8, CmdClaimAdmin, ""))
	assert.Equal(t, "An administrator is already set.", out[0].Text)

	out = f.dispatch(t, command(7, CmdClaimAdmin, "8"))
	assert.Contains(t, out[0].Text, "handed over to 8")
	assert.True(t, f.access.IsAdmin(ctx, 8))
	assert.False(t, f.access.IsAdmin(ctx, 7))

	out = f.dispatch(t, command(8, CmdClaimAdmin, "abc"))
	assert.Contains(t, out[0].Text, "not a user id")
}

func TestOpenOrdersOldestFirst(t *testing.T) {
	f := newFixture(t, true)
	f.addAtlas(t)
	f.dispatch(t, command(adminID, CmdSetPayment, "shop@upi"))

	assert.Contains(t, f.dispatch(t, command(adminID, CmdOrders, ""))[0].Text, "No orders")

	f.dispatch(t, command(buyerID, CmdBuy, "Atlas"))
	f.dispatch(t, command(buyerID+1, CmdBuy, "Atlas"))

	out := f.dispatch(t, command(adminID, CmdOrders, ""))
	require.Len(t, out, 3)
	assert.Contains(t, out[1].Text, "Buyer: 42")
	assert.Contains(t, out[2].Text, "Buyer: 43")
	assert.Equal(t, orders.TagApprove, out[1].Actions[0].Tag)
}

func TestMarkupRows(t *testing.T) {
	assert.Nil(t, Markup(nil, 2))

	m := Markup([]notify.Action{
		{Label: "A", Tag: "a", Payload: "1"},
		{Label: "B", Tag: "b"},
		{Label: "C", Tag: "c"},
	}, 2)
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "a", m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "1", m.InlineKeyboard[0][0].Data)
}

func TestSendable(t *testing.T) {
	photo, ok := Sendable(notify.Media{Ref: "p", Kind: notify.MediaPhoto}, "cap").(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "p", photo.FileID)
	assert.Equal(t, "cap", photo.Caption)

	doc, ok := Sendable(notify.Media{Ref: "d", Kind: notify.MediaDocument}, "").(*tele.Document)
	require.True(t, ok)
	assert.Equal(t, "d", doc.FileID)
}

func TestUnboundGatewayFails(t *testing.T) {
	err := NewGateway().SendText(context.Background(), buyerID, "hi")
	assert.True(t, notify.IsDeliveryFailure(err))
}

func TestFailLogsRepeatsBelowInfo(t *testing.T) {
	f := newFixture(t, true)
	var buf bytes.Buffer
	prev := logger.L
	logger.L = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	t.Cleanup(func() { logger.L = prev })

	ev := Event{Actor: adminID, Kind: KindButton, Name: orders.TagApprove}
	out, err := f.handler.fail(context.Background(), ev, domain.ErrAlreadyDecided)
	require.NoError(t, err)
	assert.Equal(t, describe(domain.ErrAlreadyDecided), out[0].Text)
	assert.Empty(t, buf.String())

	out, err = f.handler.fail(context.Background(), ev, domain.ErrOrderNotFound)
	require.NoError(t, err)
	assert.Equal(t, describe(domain.ErrOrderNotFound), out[0].Text)
	assert.Contains(t, buf.String(), "event=event.rejected")
	assert.Contains(t, buf.String(), "err_code=ORDER_NOT_FOUND")
}
