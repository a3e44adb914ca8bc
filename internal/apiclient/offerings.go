package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Product is a catalog item.
type Product struct {
	ID            int64  `json:"id,omitempty"`
	Business      int64  `json:"business,omitempty"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	Price         string `json:"price,omitempty"`
	PriceCurrency string `json:"price_currency,omitempty"`
	IsActive      *bool  `json:"is_active,omitempty"`
	InStock       *bool  `json:"in_stock,omitempty"`
}

// EntityID implements Entity.
func (p Product) EntityID() string { return formatID(p.ID) }

// Service is a bookable offering.
type Service struct {
	ID          int64  `json:"id,omitempty"`
	Business    int64  `json:"business,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	PriceRange  string `json:"price_range,omitempty"`
	Duration    string `json:"duration,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// EntityID implements Entity.
func (s Service) EntityID() string { return formatID(s.ID) }

// Offerings groups the endpoints shared by /products/ and /services/.
type Offerings struct {
	c          *Client
	collection string
}

// List returns the offerings of a business.
func (o *Offerings) List(ctx context.Context, businessID int64) (*http.Response, error) {
	return o.c.list(ctx, o.collection, url.Values{"business_id": {strconv.FormatInt(businessID, 10)}})
}

// Save creates or updates an offering. e is a Product, a Service or a *Multipart form.
func (o *Offerings) Save(ctx context.Context, e Entity) (*http.Response, error) {
	return o.c.save(ctx, o.collection, e)
}

// Delete removes an offering.
func (o *Offerings) Delete(ctx context.Context, id int64) (*http.Response, error) {
	return o.c.do(ctx, http.MethodDelete, o.collection+strconv.FormatInt(id, 10)+"/", nil, true)
}
