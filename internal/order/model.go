package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is the shipping address captured with an order. It is written once
// and never updated.
type Address struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	StreetAddress  string `json:"streetAddress"`
	ApartmentSuite string `json:"apartmentSuite,omitempty"`
	City           string `json:"city"`
	StateProvince  string `json:"stateProvince,omitempty"`
	PostalCode     string `json:"postalCode"`
	Country        string `json:"country"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
}

type Order struct {
	ID         string          `json:"id"`
	SessionRef string          `json:"-"`
	UserID     string          `json:"userId"`
	AddressID  string          `json:"-"`
	Total      decimal.Decimal `json:"total" swaggertype:"string" example:"20.00"`
	CreatedAt  time.Time       `json:"createdAt"`
	Address    *Address        `json:"shippingAddress,omitempty"`
	Lines      []Line          `json:"items"`
	// CustomerName is only filled on the admin listing.
	CustomerName string `json:"customerName,omitempty"`
}

// Line is one order product; UnitPrice is the price charged at sale time.
type Line struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" swaggertype:"string" example:"10.00"`
}

// Materialization is everything the store writes for one verified session.
type Materialization struct {
	SessionRef string
	UserID     string
	Total      decimal.Decimal
	Address    Address
	Lines      []LineRequest
}

type LineRequest struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Result is returned by VerifyAndMaterialize.
type Result struct {
	OrderID   string          `json:"orderId"`
	Total     decimal.Decimal `json:"total" swaggertype:"string" example:"20.00"`
	Duplicate bool            `json:"duplicate"`
}
