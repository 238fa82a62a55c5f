// Package orders implements the purchase lifecycle: creation, proof attachment and the
// administrator decision with content delivery.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/metrics"
	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/bookstore/service/access"
	"github.com/m3rciful/bookbot/bookstore/service/catalog"
	"github.com/m3rciful/bookbot/bookstore/storage"
	"github.com/m3rciful/bookbot/core/logger"
)

const component = "service.orders"

// Action tags carried by admin notifications. The payload is the order id.
const (
	TagApprove = "approve"
	TagReject  = "reject"
)

// Options wires the engine to its stores and collaborators.
type Options struct {
	Catalog  *catalog.Service
	Items    storage.Catalog
	Settings storage.Settings
	Users    storage.Users
	Ledger   storage.Ledger
	Access   *access.Service
	Gateway  notify.Gateway

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Engine orchestrates orders against the ledger, catalog and user registry.
type Engine struct {
	catalog  *catalog.Service
	items    storage.Catalog
	settings storage.Settings
	users    storage.Users
	ledger   storage.Ledger
	access   *access.Service
	gateway  notify.Gateway
	now      func() time.Time
	newID    func() string
}

// New constructs an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		catalog:  opts.Catalog,
		items:    opts.Items,
		settings: opts.Settings,
		users:    opts.Users,
		ledger:   opts.Ledger,
		access:   opts.Access,
		gateway:  opts.Gateway,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if e.catalog == nil {
		e.catalog = catalog.New(opts.Items)
	}
	if e.gateway == nil {
		e.gateway = notify.Discard{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Buyer identifies the actor placing an order.
type Buyer struct {
	ID       int64
	Username string
}

// Instructions is what the buyer needs to pay for a freshly created order.
type Instructions struct {
	Order   domain.Order
	Item    domain.Item
	Address string
	QRRef   string
}

// InitiatePurchase resolves ref, creates a PENDING order and tells the administrator.
// A missing payment address is reported before ref is resolved, and nothing is written.
func (e *Engine) InitiatePurchase(ctx context.Context, buyer Buyer, ref string) (*Instructions, error) {
	settings, err := e.settings.AllSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	address := strings.TrimSpace(settings.PaymentAddress())
	if address == "" {
		logger.Warn(ctx, component, "order.create",
			slog.String("status", "fail"),
			slog.Int64("buyer_id", buyer.ID),
			slog.String("err_code", domain.ErrPaymentNotConfigured.Code()),
		)
		return nil, domain.ErrPaymentNotConfigured
	}

	item, err := e.catalog.Lookup(ctx, ref)
	if err != nil {
		logger.Info(ctx, component, "order.create",
			slog.String("status", "skip"),
			slog.Int64("buyer_id", buyer.ID),
			slog.String("err_code", errCode(err)),
		)
		return nil, err
	}

	if _, err := e.users.Register(ctx, buyer.ID, buyer.Username); err != nil {
		return nil, fmt.Errorf("register buyer: %w", err)
	}

	now := e.now()
	order := domain.Order{
		ID:        e.newID(),
		BuyerID:   buyer.ID,
		ItemID:    item.ID,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.ledger.CreateOrder(ctx, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	metrics.RecordOrderCreated()
	logger.Info(ctx, component, "order.created",
		slog.String("status", "ok"),
		slog.String("order_id", order.ID),
		slog.Int64("buyer_id", buyer.ID),
		slog.Int64("item_id", item.ID),
	)

	ctx = logger.WithOrder(ctx, order.ID)
	e.notifyAdmin(ctx, "order.created", func(admin int64) error {
		return e.gateway.SendText(ctx, admin, newOrderText(order, *item, buyer), DecisionActions(order.ID)...)
	})

	return &Instructions{
		Order:   order,
		Item:    *item,
		Address: address,
		QRRef:   settings.PaymentQR(),
	}, nil
}

// AttachProof binds proof to the buyer's most recent non-terminal order and forwards it to
// the administrator. A second proof for the same order returns domain.ErrAlreadySubmitted.
func (e *Engine) AttachProof(ctx context.Context, buyerID int64, proof notify.Media) (*domain.Order, error) {
	if strings.TrimSpace(proof.Ref) == "" {
		return nil, domain.Invalid("proof", "attachment reference is empty")
	}

	var order domain.Order
	err := e.ledger.InTx(ctx, func(tx storage.OrderTx) error {
		o, err := tx.LatestOpenForBuyer(buyerID)
		if err != nil {
			return err
		}
		order = *o
		if err := o.SubmitProof(proof.Ref, e.now()); err != nil {
			return err
		}
		if err := tx.SaveOrder(o); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		order = *o
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrNoPendingOrder):
		metrics.RecordProof("no_order")
		logger.Info(ctx, component, "order.proof",
			slog.String("status", "skip"),
			slog.Int64("buyer_id", buyerID),
			slog.String("err_code", domain.ErrNoPendingOrder.Code()),
		)
		return nil, err
	case errors.Is(err, domain.ErrAlreadySubmitted):
		metrics.RecordProof("duplicate")
		logger.Info(ctx, component, "order.proof",
			slog.String("status", "skip"),
			slog.String("order_id", order.ID),
			slog.Int64("buyer_id", buyerID),
			slog.String("err_code", domain.ErrAlreadySubmitted.Code()),
		)
		return &order, err
	case err != nil:
		return nil, err
	}

	metrics.RecordProof("ok")
	logger.Info(ctx, component, "order.proof",
		slog.String("status", "ok"),
		slog.String("order_id", order.ID),
		slog.Int64("buyer_id", buyerID),
		slog.Int64("item_id", order.ItemID),
	)

	ctx = logger.WithOrder(ctx, order.ID)
	title := e.itemTitle(ctx, order.ItemID)
	e.notifyAdmin(ctx, "order.proof", func(admin int64) error {
		return e.gateway.SendMedia(ctx, admin, proof, proofText(order, title), DecisionActions(order.ID)...)
	})
	return &order, nil
}

// Decision is the outcome of Decide.
type Decision struct {
	Order domain.Order
	Item  *domain.Item
	// DeliveryErr is set when the buyer could not be notified. The verdict stands regardless.
	DeliveryErr error
}

// Decide applies an administrator verdict. The status change and the purchase counter move
// together in one transaction; delivery happens after commit and never undoes it.
// A verdict on a terminal order returns the stored order with domain.ErrAlreadyDecided.
func (e *Engine) Decide(ctx context.Context, orderID string, actorID int64, d domain.Decision) (*Decision, error) {
	if err := e.access.Require(ctx, actorID); err != nil {
		return nil, err
	}
	if d != domain.DecisionApprove && d != domain.DecisionReject {
		return nil, domain.Invalid("decision", "unknown decision %q", d)
	}

	var order domain.Order
	err := e.ledger.InTx(ctx, func(tx storage.OrderTx) error {
		o, err := tx.OrderForUpdate(orderID)
		if err != nil {
			return err
		}
		order = *o
		if err := o.Decide(d, e.now()); err != nil {
			return err
		}
		if err := tx.SaveOrder(o); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		if d == domain.DecisionApprove {
			if err := tx.IncrementPurchases(o.BuyerID); err != nil {
				return fmt.Errorf("increment purchases: %w", err)
			}
		}
		order = *o
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyDecided):
		metrics.RecordDecision(string(d), "already_decided")
		logger.Info(ctx, component, "order.decide",
			slog.String("status", "skip"),
			slog.String("order_id", orderID),
			slog.String("decision", string(d)),
			slog.String("order_status", string(order.Status)),
			slog.String("err_code", domain.ErrAlreadyDecided.Code()),
		)
		return &Decision{Order: order}, err
	case err != nil:
		metrics.RecordDecision(string(d), "fail")
		logger.Warn(ctx, component, "order.decide",
			slog.String("status", "fail"),
			slog.String("order_id", orderID),
			slog.String("decision", string(d)),
			slog.String("err", err.Error()),
			slog.String("err_code", errCode(err)),
		)
		return nil, err
	}

	metrics.RecordDecision(string(d), "ok")
	logger.Info(ctx, component, "order.decided",
		slog.String("status", "ok"),
		slog.String("order_id", order.ID),
		slog.Int64("buyer_id", order.BuyerID),
		slog.Int64("item_id", order.ItemID),
		slog.String("decision", string(d)),
	)

	ctx = logger.WithOrder(ctx, order.ID)
	res := &Decision{Order: order}
	item, err := e.items.GetItem(ctx, order.ItemID)
	if err != nil {
		res.DeliveryErr = fmt.Errorf("load item %d: %w", order.ItemID, err)
	} else {
		res.Item = item
		if d == domain.DecisionApprove {
			res.DeliveryErr = e.gateway.SendMedia(ctx, order.BuyerID,
				notify.Media{Ref: item.ContentRef, Kind: notify.MediaDocument},
				approvedText(order, *item))
		} else {
			res.DeliveryErr = e.gateway.SendText(ctx, order.BuyerID, rejectedText(order, *item))
		}
	}
	if res.DeliveryErr != nil {
		purpose := "content"
		if d == domain.DecisionReject {
			purpose = "rejection"
		}
		metrics.RecordDeliveryFailure(purpose)
		logger.Warn(ctx, component, "order.deliver",
			slog.String("status", "fail"),
			slog.String("order_id", order.ID),
			slog.Int64("buyer_id", order.BuyerID),
			slog.String("err", res.DeliveryErr.Error()),
			slog.String("err_code", "DELIVERY_FAILURE"),
		)
	} else {
		logger.Info(ctx, component, "order.deliver",
			slog.String("status", "ok"),
			slog.String("order_id", order.ID),
			slog.Int64("buyer_id", order.BuyerID),
		)
	}
	return res, nil
}

// OpenOrder pairs a non-terminal order with its item title.
type OpenOrder struct {
	Order domain.Order
	Title string
}

// ListOpen returns non-terminal orders for the administrator, oldest first.
func (e *Engine) ListOpen(ctx context.Context, actorID int64) ([]OpenOrder, error) {
	if err := e.access.Require(ctx, actorID); err != nil {
		return nil, err
	}
	orders, err := e.ledger.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	titles := make(map[int64]string)
	out := make([]OpenOrder, 0, len(orders))
	for _, o := range orders {
		title, ok := titles[o.ItemID]
		if !ok {
			title = e.itemTitle(ctx, o.ItemID)
			titles[o.ItemID] = title
		}
		out = append(out, OpenOrder{Order: o, Title: title})
	}
	return out, nil
}

// Summary is a buyer's profile with the titles of approved purchases.
type Summary struct {
	Profile   domain.UserProfile
	Purchased []string
	Open      int
}

// BuyerSummary registers the buyer if needed and reports their history.
func (e *Engine) BuyerSummary(ctx context.Context, buyer Buyer) (*Summary, error) {
	profile, err := e.users.Register(ctx, buyer.ID, buyer.Username)
	if err != nil {
		return nil, fmt.Errorf("register buyer: %w", err)
	}
	orders, err := e.ledger.ListByBuyer(ctx, buyer.ID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	sum := &Summary{Profile: *profile}
	for _, o := range orders {
		switch {
		case o.Status == domain.StatusApproved:
			sum.Purchased = append(sum.Purchased, e.itemTitle(ctx, o.ItemID))
		case !o.Status.Terminal():
			sum.Open++
		}
	}
	return sum, nil
}

// Register records a buyer on first contact.
func (e *Engine) Register(ctx context.Context, buyer Buyer) (*domain.UserProfile, error) {
	return e.users.Register(ctx, buyer.ID, buyer.Username)
}

// PaymentQR returns the configured QR reference, or domain.ErrPaymentNotConfigured.
func (e *Engine) PaymentQR(ctx context.Context) (string, error) {
	ref, ok, err := e.settings.GetSetting(ctx, domain.SettingPaymentQR)
	if err != nil {
		return "", fmt.Errorf("load qr: %w", err)
	}
	if !ok || strings.TrimSpace(ref) == "" {
		return "", domain.ErrPaymentNotConfigured
	}
	return ref, nil
}

func (e *Engine) notifyAdmin(ctx context.Context, purpose string, send func(admin int64) error) {
	admin, err := e.access.AdminID(ctx)
	if err != nil || admin == 0 {
		logger.Warn(ctx, component, "admin.notify",
			slog.String("status", "skip"),
			slog.String("op", purpose),
		)
		return
	}
	if err := send(admin); err != nil {
		metrics.RecordDeliveryFailure("admin")
		logger.Warn(ctx, component, "admin.notify",
			slog.String("status", "fail"),
			slog.String("op", purpose),
			slog.String("err", err.Error()),
		)
	}
}

func (e *Engine) itemTitle(ctx context.Context, id int64) string {
	item, err := e.items.GetItem(ctx, id)
	if err != nil {
		return fmt.Sprintf("item #%d", id)
	}
	return item.Title
}

// DecisionActions are the approve/reject buttons attached to an order.
func DecisionActions(orderID string) []notify.Action {
	return []notify.Action{
		{Label: "✅ Approve", Tag: TagApprove, Payload: orderID},
		{Label: "❌ Reject", Tag: TagReject, Payload: orderID},
	}
}

func errCode(err error) string {
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return "INTERNAL"
}
