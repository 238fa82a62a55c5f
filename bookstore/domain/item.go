package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Language is one of the two fixed catalog locales.
type Language string

const (
	LanguagePrimary   Language = "primary"
	LanguageSecondary Language = "secondary"
)

// Valid reports whether l is a known locale.
func (l Language) Valid() bool {
	return l == LanguagePrimary || l == LanguageSecondary
}

// ParseLanguage accepts the enum value itself.
func ParseLanguage(s string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Valid()
}

// Price is a currency-tagged amount in minor units (two decimal places).
type Price struct {
	Currency string
	Amount   int64
}

// String formats the price as "INR 199" or "USD 2.50".
func (p Price) String() string {
	return p.Currency + " " + FormatAmount(p.Amount)
}

// FormatAmount renders minor units, dropping a zero fraction.
func FormatAmount(minor int64) string {
	whole, frac := minor/100, minor%100
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	return fmt.Sprintf("%d.%02d", whole, frac)
}

// Prices is the ordered set of amounts an item is sold for.
type Prices []Price

func (ps Prices) String() string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " / ")
}

// Validate checks that at least one positive amount is present and currencies do not repeat.
func (ps Prices) Validate() error {
	if len(ps) == 0 {
		return Invalid("price", "at least one price is required")
	}
	seen := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		if p.Amount <= 0 {
			return Invalid("price", "%s amount must be greater than zero", p.Currency)
		}
		if _, dup := seen[p.Currency]; dup {
			return Invalid("price", "currency %s given twice", p.Currency)
		}
		seen[p.Currency] = struct{}{}
	}
	return nil
}

// Item is a catalog entry.
type Item struct {
	ID         int64
	Title      string
	Language   Language
	Prices     Prices
	ContentRef string
	CoverRef   string
	CreatedAt  time.Time
}

// Purchasable reports whether the item may be offered to buyers.
func (i *Item) Purchasable() bool {
	return i != nil && strings.TrimSpace(i.ContentRef) != ""
}

// Validate checks the invariants of a new item.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return Invalid("title", "title must not be empty")
	}
	if !i.Language.Valid() {
		return Invalid("language", "unknown language %q", i.Language)
	}
	return i.Prices.Validate()
}

// ParsePrices reads input such as "INR 199, USD 2.5", "199 INR; 2.5 USD" or a bare "199"
// (tagged with defaultCurrency).
func ParsePrices(input, defaultCurrency string) (Prices, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, Invalid("price", "send at least one amount, e.g. INR 199, USD 2.5")
	}
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '/'
	})
	var out Prices
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		p, err := parsePrice(f, defaultCurrency)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func parsePrice(token, defaultCurrency string) (Price, error) {
	tokens := strings.Fields(strings.ReplaceAll(token, ":", " "))
	var currency, amount string
	switch len(tokens) {
	case 1:
		currency, amount = defaultCurrency, tokens[0]
	case 2:
		if isCurrency(tokens[0]) {
			currency, amount = tokens[0], tokens[1]
		} else {
			currency, amount = tokens[1], tokens[0]
		}
	default:
		return Price{}, Invalid("price", "cannot read %q, expected CURRENCY AMOUNT", token)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !isCurrency(currency) {
		return Price{}, Invalid("price", "%q is not a three-letter currency code", currency)
	}
	minor, err := ParseAmount(amount)
	if err != nil {
		return Price{}, err
	}
	return Price{Currency: currency, Amount: minor}, nil
}

func isCurrency(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// ParseAmount converts a decimal string with at most two fraction digits into minor units.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, Invalid("price", "%q is not a number", s)
	}
	var f int64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, Invalid("price", "%q must have at most two decimal places", s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, Invalid("price", "%q is not a number", s)
		}
	}
	if w > (math.MaxInt64-99)/100 {
		return 0, Invalid("price", "%q is too large", s)
	}
	minor := w*100 + f
	if minor <= 0 {
		return 0, Invalid("price", "amount must be greater than zero")
	}
	return minor, nil
}

// SortItems orders items by title, then id.
func SortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := strings.ToLower(items[i].Title), strings.ToLower(items[j].Title)
		if a != b {
			return a < b
		}
		return items[i].ID < items[j].ID
	})
}
