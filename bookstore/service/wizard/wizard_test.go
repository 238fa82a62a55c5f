package wizard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/bookstore/service/access"
	"github.com/m3rciful/bookbot/bookstore/service/orders"
	"github.com/m3rciful/bookbot/bookstore/storage/memory"
	"github.com/m3rciful/bookbot/core/state"
)

const (
	adminID int64 = 1
	buyerID int64 = 42
)

type fixture struct {
	store  *memory.Store
	gw     *notify.Recorder
	wizard *Engine
	orders *orders.Engine
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(nil),
		gw:    notify.NewRecorder(),
		now:   time.Unix(1_700_000_000, 0),
	}
	acc := access.New(f.store)
	_, err := acc.Claim(context.Background(), adminID)
	require.NoError(t, err)

	sessions := state.NewMemoryStore(state.WithTTL(30*time.Minute), state.WithClock(func() time.Time { return f.now }))
	f.wizard = New(Options{
		Sessions:        sessions,
		Access:          acc,
		Items:           f.store,
		Settings:        f.store,
		Gateway:         f.gw,
		DefaultCurrency: "INR",
		Labels:          map[domain.Language]string{domain.LanguagePrimary: "English", domain.LanguageSecondary: "Hindi"},
	})
	f.orders = orders.New(orders.Options{
		Items:    f.store,
		Settings: f.store,
		Users:    f.store,
		Ledger:   f.store,
		Access:   acc,
		Gateway:  f.gw,
	})
	return f
}

func text(s string) Input { return Input{Kind: InputText, Text: s} }

func TestAddItemFlowCommitsPurchasableItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.wizard.Start(ctx, adminID, AddItem())
	require.NoError(t, err)
	assert.Equal(t, StepSelectLanguage, reply.Step)
	require.Len(t, reply.Actions, 3)
	assert.Equal(t, "English", reply.Actions[0].Label)

	reply, err = f.wizard.Handle(ctx, adminID, Input{Kind: InputButton, Tag: TagLanguage, Payload: "primary"})
	require.NoError(t, err)
	assert.Equal(t, StepEnterTitle, reply.Step)

	reply, err = f.wizard.Handle(ctx, adminID, text("Atlas"))
	require.NoError(t, err)
	assert.Equal(t, StepEnterPrices, reply.Step)

	reply, err = f.wizard.Handle(ctx, adminID, text("INR 199, USD 2.5"))
	require.NoError(t, err)
	assert.Equal(t, StepEnterCover, reply.Step)

	reply, err = f.wizard.Handle(ctx, adminID, Input{Kind: InputButton, Tag: TagSkip})
	require.NoError(t, err)
	assert.Equal(t, StepAttachContent, reply.Step)

	reply, err = f.wizard.Handle(ctx, adminID, Input{Kind: InputDocument, Ref: "atlas-pdf"})
	require.NoError(t, err)
	assert.True(t, reply.Done)
	assert.False(t, f.wizard.InProgress(adminID))

	items, err := f.store.FindByTitle(ctx, "Atlas")
	require.NoError(t, err)
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, domain.LanguagePrimary, item.Language)
	assert.Equal(t, domain.Prices{{Currency: "INR", Amount: 19900}, {Currency: "USD", Amount: 250}}, item.Prices)
	assert.Equal(t, "atlas-pdf", item.ContentRef)
	assert.Empty(t, item.CoverRef)

	require.NoError(t, f.store.SetSetting(ctx, domain.SettingPaymentAddress, "shop@upi"))
	ins, err := f.orders.InitiatePurchase(ctx, orders.Buyer{ID: buyerID}, "Atlas")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, ins.Order.Status)
	assert.Equal(t, item.ID, ins.Order.ItemID)
	assert.Equal(t, buyerID, ins.Order.BuyerID)
}

func TestInvalidInputRepromptsSameStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wizard.Start(ctx, adminID, AddItem())
	require.NoError(t, err)
	_, err = f.wizard.Handle(ctx, adminID, text("english"))
	require.NoError(t, err)
	_, err = f.wizard.Handle(ctx, adminID, text("Atlas"))
	require.NoError(t, err)

	reply, err := f.wizard.Handle(ctx, adminID, text("cheap"))
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.NotNil(t, reply)
	assert.Equal(t, StepEnterPrices, reply.Step)
	assert.Contains(t, reply.Text, "not a number")

	sess, ok := f.wizard.Session(adminID)
	require.True(t, ok)
	assert.Equal(t, StepEnterPrices, sess.Step)
	assert.Equal(t, "Atlas", sess.Field(fieldTitle))

	_, err = f.wizard.Handle(ctx, adminID, Input{Kind: InputButton, Tag: TagSkip})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	reply, err = f.wizard.Handle(ctx, adminID, text("99"))
	require.NoError(t, err)
	assert.Equal(t, StepEnterCover, reply.Step)
}

func TestCancelMidFlowPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wizard.Start(ctx, adminID, AddItem())
	require.NoError(t, err)
	_, err = f.wizard.Handle(ctx, adminID, text("1"))
	require.NoError(t, err)
	_, err = f.wizard.Handle(ctx, adminID, text("Atlas"))
	require.NoError(t, err)

	reply, err := f.wizard.Handle(ctx, adminID, Input{Kind: InputButton, Tag: TagCancel})
	require.NoError(t, err)
	assert.True(t, reply.Done)
	assert.False(t, f.wizard.InProgress(adminID))

	items, err := f.store.SearchTitle(ctx, "Atlas")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, f.store.SetSetting(ctx, domain.SettingPaymentAddress, "shop@upi"))
	_, err = f.orders.InitiatePurchase(ctx, orders.Buyer{ID: buyerID}, "Atlas")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = f.wizard.Cancel(ctx, adminID)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestStartReplacesActiveFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wizard.Start(ctx, adminID, AddItem())
	require.NoError(t, err)
	_, err = f.wizard.Handle(ctx, adminID, text("1"))
	require.NoError(t, err)

	reply, err := f.wizard.Start(ctx, adminID, SetPaymentAddress())
	require.NoError(t, err)
	assert.Equal(t, FlowAddItem, reply.Replaced)
	assert.Contains(t, reply.Text, "discarded")

	reply, err = f.wizard.Handle(ctx, adminID, text("upi://pay?pa=shop@bank"))
	require.NoError(t, err)
	assert.True(t, reply.Done)

	addr, ok, err := f.store.GetSetting(ctx, domain.SettingPaymentAddress)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "upi://pay?pa=shop@bank", addr)
}

func TestRunCommitsPaymentAddressDirectly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.wizard.Run(ctx, adminID, SetPaymentAddress(), text("shop@upi"))
	require.NoError(t, err)
	assert.True(t, reply.Done)
	assert.False(t, f.wizard.InProgress(adminID))

	settings, err := f.store.AllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shop@upi", settings.PaymentAddress())
}

func TestPaymentQRFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wizard.Start(ctx, adminID, SetPaymentQR())
	require.NoError(t, err)
	_, err = f.wizard.Handle(ctx, adminID, text("not an image"))
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	reply, err := f.wizard.Handle(ctx, adminID, Input{Kind: InputPhoto, Ref: "qr-photo"})
	require.NoError(t, err)
	assert.True(t, reply.Done)

	settings, err := f.store.AllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "qr-photo", settings.PaymentQR())
	assert.Empty(t, settings.PaymentAddress())
}

func TestSkippedContentThenUpdateContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wizard.Start(ctx, adminID, AddItem())
	require.NoError(t, err)
	for _, in := range []Input{
		text("2"),
		text("Draft"),
		text("50"),
		{Kind: InputPhoto, Ref: "cover-1"},
	} {
		_, err = f.wizard.Handle(ctx, adminID, in)
		require.NoError(t, err)
	}
	reply, err := f.wizard.Handle(ctx, adminID, Input{Kind: InputButton, Tag: TagSkip})
	require.NoError(t, err)
	assert.True(t, reply.Done)
	assert.Contains(t, reply.Text, "/setcontent")

	items, err := f.store.FindByTitle(ctx, "Draft")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Purchasable())
	assert.Equal(t, "cover-1", items[0].CoverRef)

	_, err = f.wizard.Start(ctx, adminID, UpdateContent(999))
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = f.wizard.Start(ctx, adminID, UpdateContent(items[0].ID))
	require.NoError(t, err)
	reply, err = f.wizard.Handle(ctx, adminID, Input{Kind: InputDocument, Ref: "draft-pdf"})
	require.NoError(t, err)
	assert.True(t, reply.Done)

	item, err := f.store.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.True(t, item.Purchasable())
}

func TestEntryPointsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wizard.Start(ctx, buyerID, AddItem())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.wizard.Run(ctx, buyerID, SetPaymentAddress(), text("x"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.wizard.Handle(ctx, buyerID, text("x"))
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wizard.Start(ctx, adminID, AddItem())
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	assert.Equal(t, 0, f.wizard.Sweep(ctx))
	assert.True(t, f.wizard.InProgress(adminID))

	f.now = f.now.Add(31 * time.Minute)
	assert.Equal(t, 1, f.wizard.Sweep(ctx))
	assert.False(t, f.wizard.InProgress(adminID))

	msgs := f.gw.To(adminID)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "expired")

	_, err = f.wizard.Handle(ctx, adminID, text("1"))
	assert.ErrorIs(t, err, domain.ErrNoSession)
}
