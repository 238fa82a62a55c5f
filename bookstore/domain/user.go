package domain

import "time"

// UserProfile holds per-buyer aggregate stats.
type UserProfile struct {
	ID            int64
	Username      string
	RegisteredAt  time.Time
	PurchaseCount int
}

// Settings keys.
const (
	SettingPaymentAddress = "payment_address"
	SettingPaymentQR      = "payment_qr_reference"
)

// Settings is the singleton key/value configuration.
type Settings map[string]string

// PaymentAddress returns the configured address or "".
func (s Settings) PaymentAddress() string { return s[SettingPaymentAddress] }

// PaymentQR returns the configured QR reference or "".
func (s Settings) PaymentQR() string { return s[SettingPaymentQR] }

// AdminRecord is the versioned administrator identity. ActorID 0 means unset.
type AdminRecord struct {
	ActorID   int64
	Version   int64
	UpdatedAt time.Time
}

// Set reports whether an administrator is configured.
func (a AdminRecord) Set() bool { return a.ActorID != 0 }
