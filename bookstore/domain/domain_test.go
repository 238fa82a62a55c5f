package domain

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrices(t *testing.T) {
	ps, err := ParsePrices("INR 199, USD 2.5", "INR")
	require.NoError(t, err)
	assert.Equal(t, Prices{{Currency: "INR", Amount: 19900}, {Currency: "USD", Amount: 250}}, ps)
	assert.Equal(t, "INR 199 / USD 2.50", ps.String())

	ps, err = ParsePrices("2.5 usd; 100", "INR")
	require.NoError(t, err)
	assert.Equal(t, Prices{{Currency: "USD", Amount: 250}, {Currency: "INR", Amount: 10000}}, ps)

	ps, err = ParsePrices("INR:199", "USD")
	require.NoError(t, err)
	assert.Equal(t, Prices{{Currency: "INR", Amount: 19900}}, ps)
}

func TestParsePricesRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "INR -1", "INR 0", "INR 1.234", "INR 1, INR 2", "INR 1 2 3", "EURO 5", "INR 184467440737095517", "INR 92233720368547758.07"} {
		_, err := ParsePrices(in, "INR")
		require.Error(t, err, in)
		assert.ErrorIs(t, err, ErrInvalidInput, in)
		var ie *InputError
		assert.True(t, errors.As(err, &ie), in)
	}
}

func TestOrderTransitions(t *testing.T) {
	now := time.Unix(100, 0)

	o := Order{Status: StatusPending}
	require.NoError(t, o.SubmitProof("proof-1", now))
	assert.Equal(t, StatusProofSubmitted, o.Status)
	assert.Equal(t, "proof-1", o.ProofRef)
	assert.ErrorIs(t, o.SubmitProof("proof-2", now), ErrAlreadySubmitted)
	assert.Equal(t, "proof-1", o.ProofRef)

	require.NoError(t, o.Decide(DecisionApprove, now))
	assert.Equal(t, StatusApproved, o.Status)
	assert.ErrorIs(t, o.Decide(DecisionReject, now), ErrAlreadyDecided)
	assert.ErrorIs(t, o.SubmitProof("proof-3", now), ErrAlreadyDecided)
	assert.Equal(t, StatusApproved, o.Status)

	pending := Order{Status: StatusPending}
	require.NoError(t, pending.Decide(DecisionReject, now))
	assert.Equal(t, StatusRejected, pending.Status)
	assert.True(t, IsBenign(pending.Decide(DecisionApprove, now)))
}

func TestLatestOpen(t *testing.T) {
	base := time.Unix(1000, 0)
	orders := []Order{
		{ID: "a", Status: StatusPending, CreatedAt: base},
		{ID: "b", Status: StatusApproved, CreatedAt: base.Add(3 * time.Second)},
		{ID: "c", Status: StatusProofSubmitted, CreatedAt: base.Add(2 * time.Second)},
		{ID: "d", Status: StatusPending, CreatedAt: base.Add(time.Second)},
	}
	latest := LatestOpen(orders)
	require.NotNil(t, latest)
	assert.Equal(t, "c", latest.ID)
	assert.Nil(t, LatestOpen([]Order{{Status: StatusRejected}}))

	tied := []Order{
		{ID: "first", Seq: 1, Status: StatusPending, CreatedAt: base},
		{ID: "third", Seq: 3, Status: StatusPending, CreatedAt: base},
		{ID: "second", Seq: 2, Status: StatusPending, CreatedAt: base},
	}
	latest = LatestOpen(tied)
	require.NotNil(t, latest)
	assert.Equal(t, "third", latest.ID)
}

func TestParseAmountLimit(t *testing.T) {
	maxWhole := int64((math.MaxInt64 - 99) / 100)
	minor, err := ParseAmount(strconv.FormatInt(maxWhole, 10) + ".99")
	require.NoError(t, err)
	assert.Equal(t, maxWhole*100+99, minor)

	_, err = ParseAmount(strconv.FormatInt(maxWhole+1, 10))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestItemPurchasable(t *testing.T) {
	item := &Item{Title: "Atlas", Language: LanguagePrimary, Prices: Prices{{Currency: "INR", Amount: 1}}}
	require.NoError(t, item.Validate())
	assert.False(t, item.Purchasable())
	item.ContentRef = "file-1"
	assert.True(t, item.Purchasable())

	bad := &Item{Title: " ", Language: LanguagePrimary}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, "ALREADY_DECIDED", ErrAlreadyDecided.Code())
	amb := &AmbiguousError{Reference: "at", Candidates: []Item{{Title: "Atlas"}, {Title: "Atlantis"}}}
	assert.ErrorIs(t, amb, ErrAmbiguousReference)
	assert.Equal(t, "AMBIGUOUS_REFERENCE", amb.Code())
	assert.Contains(t, amb.Error(), "Atlantis")
}

func TestErrorRefinements(t *testing.T) {
	assert.ErrorIs(t, ErrItemNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrOrderNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrNotPurchasable, ErrItemNotFound)
	assert.ErrorIs(t, ErrNotPurchasable, ErrNotFound)
	assert.ErrorIs(t, ErrAdminAlreadySet, ErrUnauthorized)
	assert.NotErrorIs(t, ErrNotFound, ErrItemNotFound)
	assert.NotErrorIs(t, ErrItemNotFound, ErrOrderNotFound)
	assert.Nil(t, ErrNotFound.Unwrap())

	var de *Error
	require.True(t, errors.As(ErrOrderNotFound, &de))
	assert.Equal(t, "ORDER_NOT_FOUND", de.Code())
}
