package order

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/payment"
	"github.com/MikeMC777/storefront/internal/product"
)

// maxLineQuantity bounds a single cart line.
const maxLineQuantity = 1000

// ProductLookup resolves catalog products. Checkout must be given the
// uncached repository so stock is read fresh.
type ProductLookup interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

type CheckoutService struct {
	gw          payment.Gateway
	products    ProductLookup
	frontendURL string
	log         zerolog.Logger
}

func NewCheckoutService(gw payment.Gateway, products ProductLookup, frontendURL string, log zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		gw:          gw,
		products:    products,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log.With().Str("component", "checkout").Logger(),
	}
}

func (s *CheckoutService) SuccessURL() string {
	return s.frontendURL + "/order/success?session_id={CHECKOUT_SESSION_ID}"
}

func (s *CheckoutService) CancelURL() string { return s.frontendURL + "/order/cancel" }

// CreateCheckoutSession prices the cart from the catalog and opens a hosted
// payment session for it. The stock check here is advisory; reconciliation
// checks again under row locks.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, cart []CartItem, callerUserID string) (*CheckoutResponse, error) {
	if callerUserID == "" {
		return nil, apperr.Auth("authentication required")
	}
	if len(cart) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	// Quantities for the same product add up against its stock.
	requested := make(map[string]int, len(cart))
	for _, it := range cart {
		it.ProductID = strings.TrimSpace(it.ProductID)
		if it.ProductID == "" {
			return nil, apperr.Validation("cart item without product id")
		}
		if it.Quantity <= 0 || it.Quantity > maxLineQuantity {
			return nil, apperr.Validation("invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}
		requested[it.ProductID] += it.Quantity
	}

	resolved := make(map[string]*product.Product, len(requested))
	items := make([]payment.LineItem, 0, len(cart))
	for _, it := range cart {
		id := strings.TrimSpace(it.ProductID)
		p, ok := resolved[id]
		if !ok {
			var err error
			p, err = s.products.GetByID(ctx, id)
			if errors.Is(err, product.ErrNotFound) {
				return nil, apperr.New(apperr.KindProductNotFound, "product %s not found", id)
			}
			if err != nil {
				return nil, err
			}
			if requested[id] > p.Stock {
				return nil, apperr.New(apperr.KindInsufficientStock,
					"insufficient stock for %s: %d available, %d requested", p.Name, p.Stock, requested[id])
			}
			resolved[id] = p
		}
		items = append(items, payment.LineItem{
			ProductID:  p.ID,
			Name:       p.Name,
			UnitAmount: payment.ToMinor(p.Price),
			Quantity:   int64(it.Quantity),
		})
	}

	sess, err := s.gw.CreateSession(ctx, payment.CreateSessionParams{
		LineItems:       items,
		ClientReference: callerUserID,
		SuccessURL:      s.SuccessURL(),
		CancelURL:       s.CancelURL(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("session_id", sess.ID).Str("user_id", callerUserID).Int("lines", len(items)).Msg("checkout session created")
	return &CheckoutResponse{URL: sess.RedirectURL, SessionID: sess.ID}, nil
}
