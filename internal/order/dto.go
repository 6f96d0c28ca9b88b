package order

import (
	"strings"

	"github.com/MikeMC777/storefront/internal/apperr"
)

// ShippingAddress payload sent on order verification.
// swagger:model ShippingAddress
type ShippingAddress struct {
	FullName       string `json:"fullName" example:"Ada Lovelace"`
	StreetAddress  string `json:"streetAddress" example:"12 St James's Square"`
	ApartmentSuite string `json:"apartmentSuite,omitempty"`
	City           string `json:"city" example:"London"`
	StateProvince  string `json:"stateProvince,omitempty"`
	PostalCode     string `json:"postalCode" example:"SW1Y 4JH"`
	Country        string `json:"country" example:"UK"`
	PhoneNumber    string `json:"phoneNumber,omitempty" example:"+44 20 7946 0000"`
}

// Validate trims every field and checks the required ones.
func (a *ShippingAddress) Validate() error {
	if a == nil {
		return apperr.Validation("shipping address is required")
	}
	for _, f := range []*string{&a.FullName, &a.StreetAddress, &a.ApartmentSuite, &a.City,
		&a.StateProvince, &a.PostalCode, &a.Country, &a.PhoneNumber} {
		*f = strings.TrimSpace(*f)
	}
	var missing []string
	if a.FullName == "" {
		missing = append(missing, "fullName")
	}
	if a.StreetAddress == "" {
		missing = append(missing, "streetAddress")
	}
	if a.City == "" {
		missing = append(missing, "city")
	}
	if a.PostalCode == "" {
		missing = append(missing, "postalCode")
	}
	if a.Country == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return apperr.Validation("shipping address missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (a ShippingAddress) toAddress() Address {
	return Address{
		FullName:       a.FullName,
		StreetAddress:  a.StreetAddress,
		ApartmentSuite: a.ApartmentSuite,
		City:           a.City,
		StateProvince:  a.StateProvince,
		PostalCode:     a.PostalCode,
		Country:        a.Country,
		PhoneNumber:    a.PhoneNumber,
	}
}

// CartItem is one cart line.
// swagger:model CartItem
type CartItem struct {
	ProductID string `json:"id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity" example:"2"`
}

// CreateCheckoutRequest payload of /api/create-checkout-session.
// swagger:model CreateCheckoutRequest
type CreateCheckoutRequest struct {
	CartItems []CartItem `json:"cartItems"`
}

// CheckoutResponse is the redirect target for the hosted payment page.
// swagger:model CheckoutResponse
type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// VerifyRequest payload of /api/order/verify.
// swagger:model VerifyRequest
type VerifyRequest struct {
	SessionID       string           `json:"sessionId" example:"cs_test_a1b2c3"`
	ShippingAddress *ShippingAddress `json:"shippingAddress"`
}

// ListResponse is a page of orders, newest first.
// swagger:model OrderListResponse
type ListResponse struct {
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Items  []Order `json:"items"`
}
