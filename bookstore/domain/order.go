package domain

import (
	"strings"
	"time"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusProofSubmitted OrderStatus = "PROOF_SUBMITTED"
	StatusApproved       OrderStatus = "APPROVED"
	StatusRejected       OrderStatus = "REJECTED"
)

// Terminal reports whether the status is absorbing.
func (s OrderStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProofSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Decision is the administrator verdict on an order.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Status returns the terminal status a decision leads to.
func (d Decision) Status() OrderStatus {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Order is a single purchase attempt.
// Seq is assigned by the store on insert and grows with every order, so it orders
// orders whose CreatedAt values are equal.
type Order struct {
	ID        string
	Seq       int64
	BuyerID   int64
	ItemID    int64
	Status    OrderStatus
	ProofRef  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubmitProof moves PENDING to PROOF_SUBMITTED and records the reference.
func (o *Order) SubmitProof(ref string, now time.Time) error {
	switch o.Status {
	case StatusPending:
		o.Status = StatusProofSubmitted
		o.ProofRef = ref
		o.UpdatedAt = now
		return nil
	case StatusProofSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrAlreadyDecided
	}
}

// Decide applies a terminal verdict. PENDING and PROOF_SUBMITTED both accept it.
func (o *Order) Decide(d Decision, now time.Time) error {
	if o.Status.Terminal() {
		return ErrAlreadyDecided
	}
	if d != DecisionApprove && d != DecisionReject {
		return Invalid("decision", "unknown decision %q", d)
	}
	o.Status = d.Status()
	o.UpdatedAt = now
	return nil
}

// ShortID is the first block of the uuid, used in chat texts.
func (o *Order) ShortID() string {
	if i := strings.IndexByte(o.ID, '-'); i > 0 {
		return o.ID[:i]
	}
	return o.ID
}

// Newer reports whether o was created after other, falling back to Seq on equal timestamps.
func (o *Order) Newer(other *Order) bool {
	if !o.CreatedAt.Equal(other.CreatedAt) {
		return o.CreatedAt.After(other.CreatedAt)
	}
	return o.Seq > other.Seq
}

// LatestOpen returns the most recently created non-terminal order, or nil.
func LatestOpen(orders []Order) *Order {
	var latest *Order
	for i := range orders {
		o := &orders[i]
		if o.Status.Terminal() {
			continue
		}
		if latest == nil || o.Newer(latest) {
			latest = o
		}
	}
	return latest
}
