package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/bookstore/service/orders"
)

const (
	textWelcome        = "👋 Welcome to the bookstore! Browse the books or check your purchases."
	textUnknownCommand = "I did not understand that. Send /help for the list of commands."
	textUnknownAction  = "This button is no longer supported."
	textInternal       = "⚠️ Something went wrong. Please try again later."
)

func itemCaption(item domain.Item) string {
	return fmt.Sprintf("📖 %s\nPrice: %s\nID: %d", item.Title, item.Prices, item.ID)
}

func instructionsText(ins *orders.Instructions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Order %s for \"%s\"\n", ins.Order.ShortID(), ins.Item.Title)
	fmt.Fprintf(&b, "Amount: %s\n", ins.Item.Prices)
	fmt.Fprintf(&b, "Pay to: %s\n\n", ins.Address)
	b.WriteString("After paying, send the payment screenshot here as a photo or file.")
	return b.String()
}

func ambiguousReply(err *domain.AmbiguousError) Response {
	actions := make([]notify.Action, 0, len(err.Candidates))
	for _, c := range err.Candidates {
		actions = append(actions, notify.Action{
			Label:   c.Title,
			Tag:     TagBuy,
			Payload: strconv.FormatInt(c.ID, 10),
		})
	}
	return Response{
		Text:    fmt.Sprintf("Several books match %q. Pick one:", err.Reference),
		Actions: actions,
	}
}

func summaryText(sum *orders.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 ID: %d\n", sum.Profile.ID)
	if !sum.Profile.RegisteredAt.IsZero() {
		fmt.Fprintf(&b, "Registered: %s\n", sum.Profile.RegisteredAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "Purchases: %d\n", sum.Profile.PurchaseCount)
	if sum.Open > 0 {
		fmt.Fprintf(&b, "Orders in progress: %d\n", sum.Open)
	}
	if len(sum.Purchased) > 0 {
		b.WriteString("\nYour books:\n")
		for _, title := range sum.Purchased {
			b.WriteString("• " + title + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func openOrderText(o orders.OpenOrder) string {
	proof := "no proof yet"
	if o.Order.Status == domain.StatusProofSubmitted {
		proof = "proof submitted"
	}
	return fmt.Sprintf("Order %s\nBook: %s\nBuyer: %d\nStatus: %s (%s)\nCreated: %s",
		o.Order.ID, o.Title, o.Order.BuyerID, o.Order.Status, proof,
		o.Order.CreatedAt.UTC().Format("2006-01-02 15:04"))
}

func decisionText(res *orders.Decision) string {
	verb := "approved"
	if res.Order.Status == domain.StatusRejected {
		verb = "rejected"
	}
	text := fmt.Sprintf("Order %s %s.", res.Order.ShortID(), verb)
	if res.DeliveryErr != nil {
		text += "\n⚠️ The buyer could not be notified: " + deliveryReason(res.DeliveryErr) + ". The order stays " + verb + "."
	}
	return text
}

func deliveryReason(err error) string {
	var de *notify.DeliveryError
	if errors.As(err, &de) && de.Err != nil {
		return de.Err.Error()
	}
	return err.Error()
}

// describe renders a classified error for the actor.
func describe(err error) string {
	var in *domain.InputError
	if errors.As(err, &in) {
		return "⚠️ " + capitalize(in.Error()) + "."
	}
	var amb *domain.AmbiguousError
	if errors.As(err, &amb) {
		return fmt.Sprintf("Several books match %q. Please be more specific.", amb.Reference)
	}
	switch {
	case errors.Is(err, domain.ErrAdminAlreadySet):
		return "An administrator is already set."
	case errors.Is(err, domain.ErrUnauthorized):
		return "⛔ Only the administrator can do that."
	case errors.Is(err, domain.ErrNotPurchasable):
		return "This book is not available yet."
	case errors.Is(err, domain.ErrItemNotFound):
		return "No book matches that reference."
	case errors.Is(err, domain.ErrOrderNotFound):
		return "Order not found."
	case errors.Is(err, domain.ErrPaymentNotConfigured):
		return "Payments are not configured yet. Please try again later."
	case errors.Is(err, domain.ErrNoPendingOrder):
		return "You have no order awaiting payment. Use /buy first."
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return "Your proof was already received. Please wait for the review."
	case errors.Is(err, domain.ErrAlreadyDecided):
		return "This order was already decided."
	case errors.Is(err, domain.ErrNoSession):
		return "There is no active form."
	case errors.Is(err, domain.ErrConflict):
		return "Someone else changed this at the same time. Please retry."
	case notify.IsDeliveryFailure(err):
		return "The message could not be delivered."
	case errors.Is(err, domain.ErrNotFound):
		return "Not found."
	}
	return textInternal
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
