package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/MikeMC777/storefront/internal/apperr"
)

type Stripe struct {
	api      *client.API
	currency string
	log      zerolog.Logger
}

// NewStripe builds the adapter. cfg may override the backend (tests point URL
// at an httptest server); network retries are disabled unless cfg sets them,
// so a failed call surfaces to the caller instead of being replayed here.
func NewStripe(apiKey, currency string, timeout time.Duration, cfg *stripe.BackendConfig, log zerolog.Logger) *Stripe {
	if cfg == nil {
		cfg = &stripe.BackendConfig{}
	}
	if cfg.MaxNetworkRetries == nil {
		cfg.MaxNetworkRetries = stripe.Int64(0)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if cfg.LeveledLogger == nil {
		cfg.LeveledLogger = &stripe.LeveledLogger{Level: stripe.LevelNull}
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)

	api := &client.API{}
	api.Init(apiKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &Stripe{api: api, currency: currency, log: log.With().Str("component", "stripe").Logger()}
}

func (s *Stripe) CreateSession(ctx context.Context, p CreateSessionParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
	}
	if p.ClientReference != "" {
		params.ClientReferenceID = stripe.String(p.ClientReference)
	}
	params.Context = ctx
	for _, li := range p.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(li.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripe.String(li.Name),
					Metadata: map[string]string{MetadataProductID: li.ProductID},
				},
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error().Err(err).Msg("create checkout session failed")
		return nil, apperr.Gateway(err, "payment provider unavailable")
	}
	return &Session{ID: sess.ID, RedirectURL: sess.URL}, nil
}

func (s *Stripe) RetrieveSession(ctx context.Context, id string) (*SessionDetail, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, s.retrieveErr(id, err)
	}

	out := &SessionDetail{
		ID:              sess.ID,
		PaymentStatus:   string(sess.PaymentStatus),
		AmountTotal:     sess.AmountTotal,
		Currency:        string(sess.Currency),
		ClientReference: sess.ClientReferenceID,
	}

	lp := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(id)}
	lp.Context = ctx
	lp.AddExpand("data.price.product")
	it := s.api.CheckoutSessions.ListLineItems(lp)
	for it.Next() {
		li := it.LineItem()
		item := SessionLineItem{Quantity: li.Quantity}
		if li.Price != nil {
			item.UnitAmount = li.Price.UnitAmount
			if li.Price.Product != nil {
				item.ProductID = li.Price.Product.Metadata[MetadataProductID]
			}
		}
		out.LineItems = append(out.LineItems, item)
	}
	if err := it.Err(); err != nil {
		return nil, s.retrieveErr(id, err)
	}
	return out, nil
}

func (s *Stripe) retrieveErr(id string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) && (serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripe.ErrorCodeResourceMissing) {
		return apperr.Validation("unknown payment session %q", id)
	}
	s.log.Error().Err(err).Str("session_id", id).Msg("retrieve checkout session failed")
	return apperr.Gateway(err, "payment provider unavailable")
}
