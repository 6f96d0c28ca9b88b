// Package order turns paid payment sessions into orders and creates the
// sessions in the first place.
package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/payment"
)

// Evicter drops products from the catalog cache.
type Evicter interface {
	Evict(ctx context.Context, ids ...string)
}

type Reconciler struct {
	gw     payment.Gateway
	repo   Repository
	events Publisher
	cache  Evicter
	log    zerolog.Logger
}

// NewReconciler wires the reconciliation flow. events and cache may be nil.
func NewReconciler(gw payment.Gateway, repo Repository, events Publisher, cache Evicter, log zerolog.Logger) *Reconciler {
	if events == nil {
		events = NopPublisher{Log: log}
	}
	return &Reconciler{
		gw:     gw,
		repo:   repo,
		events: events,
		cache:  cache,
		log:    log.With().Str("component", "reconciler").Logger(),
	}
}

// VerifyAndMaterialize checks that the payment session was paid and records
// it as an order, exactly once per session reference. Replays return the
// order created by the first successful call with Duplicate set.
func (r *Reconciler) VerifyAndMaterialize(ctx context.Context, sessionRef, callerUserID string, addr *ShippingAddress) (*Result, error) {
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return nil, apperr.Validation("sessionId is required")
	}
	if callerUserID == "" {
		return nil, apperr.Auth("authentication required")
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	if res, err := r.existing(ctx, sessionRef, callerUserID); res != nil || err != nil {
		return res, err
	}

	detail, err := r.gw.RetrieveSession(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if detail.ClientReference != "" && detail.ClientReference != callerUserID {
		r.log.Warn().Str("session_id", sessionRef).Str("caller", callerUserID).Msg("session belongs to another user")
		return nil, apperr.Auth("payment session belongs to another user")
	}
	if detail.PaymentStatus != payment.StatusPaid {
		return nil, apperr.New(apperr.KindPaymentNotConfirmed, "payment not confirmed (status %q)", detail.PaymentStatus)
	}

	m, err := materialization(sessionRef, callerUserID, addr, detail)
	if err != nil {
		return nil, err
	}

	o, err := r.repo.Materialize(ctx, m)
	if errors.Is(err, ErrDuplicateSession) {
		// Lost a race with a concurrent call for the same session.
		res, lookupErr := r.existing(ctx, sessionRef, callerUserID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if res != nil {
			return res, nil
		}
		return nil, apperr.Persistence(err, "reconciled order vanished")
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPersistence {
			r.log.Error().Err(err).Str("session_id", sessionRef).Msg("materialize order failed")
		}
		return nil, err
	}

	r.afterCommit(o)
	r.log.Info().Str("order_id", o.ID).Str("session_id", sessionRef).Str("user_id", o.UserID).
		Str("total", o.Total.StringFixed(2)).Int("lines", len(o.Lines)).Msg("order created")
	return &Result{OrderID: o.ID, Total: o.Total, Duplicate: false}, nil
}

// existing returns the order already recorded for the session, if any.
func (r *Reconciler) existing(ctx context.Context, sessionRef, callerUserID string) (*Result, error) {
	o, err := r.repo.FindBySessionRef(ctx, sessionRef)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != callerUserID {
		return nil, apperr.Auth("payment session belongs to another user")
	}
	return &Result{OrderID: o.ID, Total: o.Total, Duplicate: true}, nil
}

func materialization(sessionRef, userID string, addr *ShippingAddress, d *payment.SessionDetail) (Materialization, error) {
	if len(d.LineItems) == 0 {
		return Materialization{}, apperr.Validation("payment session has no line items")
	}
	if !payment.CentCurrency(d.Currency) {
		return Materialization{}, apperr.Validation("payment session currency %q is not supported", d.Currency)
	}
	m := Materialization{
		SessionRef: sessionRef,
		UserID:     userID,
		Total:      payment.FromMinor(d.AmountTotal),
		Address:    addr.toAddress(),
		Lines:      make([]LineRequest, 0, len(d.LineItems)),
	}
	for _, li := range d.LineItems {
		if li.ProductID == "" {
			return Materialization{}, apperr.New(apperr.KindProductNotFound, "line item carries no product reference")
		}
		if li.Quantity <= 0 {
			return Materialization{}, apperr.Validation("line item for product %s has quantity %d", li.ProductID, li.Quantity)
		}
		m.Lines = append(m.Lines, LineRequest{
			ProductID: li.ProductID,
			Quantity:  int(li.Quantity),
			UnitPrice: payment.FromMinor(li.UnitAmount),
		})
	}
	return m, nil
}

// afterCommit runs the best-effort side effects of a new order. Failures are
// logged; the order is already durable.
func (r *Reconciler) afterCommit(o *Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if r.cache != nil {
		ids := make([]string, 0, len(o.Lines))
		for _, l := range o.Lines {
			ids = append(ids, l.ProductID)
		}
		r.cache.Evict(ctx, ids...)
	}
	if err := r.events.PublishCreated(ctx, newCreatedEvent(o)); err != nil {
		r.log.Error().Err(err).Str("order_id", o.ID).Msg("publish order.created failed")
	}
}
