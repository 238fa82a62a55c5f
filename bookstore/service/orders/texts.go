package orders

import (
	"fmt"
	"strings"

	"github.com/m3rciful/bookbot/bookstore/domain"
)

func buyerLabel(b Buyer) string {
	if b.Username != "" {
		return fmt.Sprintf("@%s (%d)", b.Username, b.ID)
	}
	return fmt.Sprintf("%d", b.ID)
}

func newOrderText(o domain.Order, item domain.Item, buyer Buyer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 New order %s\n", o.ID)
	fmt.Fprintf(&b, "Book: %s\n", item.Title)
	fmt.Fprintf(&b, "Price: %s\n", item.Prices)
	fmt.Fprintf(&b, "Buyer: %s\n", buyerLabel(buyer))
	b.WriteString("Waiting for payment proof.")
	return b.String()
}

func proofText(o domain.Order, title string) string {
	return fmt.Sprintf("🧾 Payment proof for order %s\nBook: %s\nBuyer: %d", o.ID, title, o.BuyerID)
}

func approvedText(o domain.Order, item domain.Item) string {
	return fmt.Sprintf("✅ Payment for \"%s\" approved (order %s). Enjoy your book!", item.Title, o.ShortID())
}

func rejectedText(o domain.Order, item domain.Item) string {
	return fmt.Sprintf("❌ Payment for \"%s\" was rejected (order %s). Contact the administrator if you think this is a mistake.", item.Title, o.ShortID())
}
