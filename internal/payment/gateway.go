// Package payment is the boundary to the external payment-session provider.
package payment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// MetadataProductID is the line-item product metadata key that carries the
// catalog product id from session creation to verification.
const MetadataProductID = "product_id"

// StatusPaid is the payment status of a completed session.
const StatusPaid = "paid"

type LineItem struct {
	ProductID  string
	Name       string
	UnitAmount int64 // minor currency units
	Quantity   int64
}

type CreateSessionParams struct {
	LineItems       []LineItem
	ClientReference string
	SuccessURL      string
	CancelURL       string
}

type Session struct {
	ID          string
	RedirectURL string
}

type SessionLineItem struct {
	// ProductID is empty when the provider returned no product metadata.
	ProductID  string
	Quantity   int64
	UnitAmount int64
}

type SessionDetail struct {
	ID              string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	ClientReference string
	LineItems       []SessionLineItem
}

// Gateway creates and retrieves hosted payment sessions. Implementations
// report transport and provider failures as apperr.KindGatewayUnavailable and
// unknown session ids as apperr.KindValidation.
type Gateway interface {
	CreateSession(ctx context.Context, p CreateSessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*SessionDetail, error)
}

// Currencies whose minor unit is not a hundredth, as listed by Stripe.
var nonCentCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
	"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
}

// CentCurrency reports whether code is a currency with two decimal places,
// the only kind ToMinor and FromMinor convert correctly.
func CentCurrency(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	return len(code) == 3 && !nonCentCurrencies[code]
}

// ToMinor converts an amount to integer minor units (cents), rounding half
// away from zero.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromMinor converts minor units back to a two-place decimal amount.
func FromMinor(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}
