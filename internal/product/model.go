package product

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Images      []Image         `json:"images,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Image is a stored product picture; images are ordered by position.
type Image struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// View is the public representation served by the catalog endpoints.
// swagger:model ProductView
type View struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Brand        string          `json:"brand"`
	Price        decimal.Decimal `json:"price" swaggertype:"string" example:"199.90"`
	Stock        int             `json:"stock"`
	ImageURLs    []string        `json:"imageUrls"`
	ThumbnailURL *string         `json:"thumbnailUrl"`
}

// View renders p with image URLs rooted at imageBase.
func (p Product) View(imageBase string) View {
	imageBase = strings.TrimRight(imageBase, "/")
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, imageBase+"/"+img.Filename)
	}
	v := View{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Brand:       p.Brand,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURLs:   urls,
	}
	if len(urls) > 0 {
		v.ThumbnailURL = &urls[0]
	}
	return v
}

// ListResponse represents the paginated response of products.
// swagger:model
type ListResponse struct {
	// search query applied
	Q string `json:"q,omitempty"`
	// limit applied
	Limit int `json:"limit"`
	// offset applied
	Offset int `json:"offset"`
	// products in this page
	Items []View `json:"items"`
}
