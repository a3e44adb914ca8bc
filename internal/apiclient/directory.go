package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// Business is the writable part of a business profile.
type Business struct {
	ID           int64  `json:"id,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Description  string `json:"description,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`
	Category     int64  `json:"category,omitempty"`
	IsVerified   *bool  `json:"is_verified,omitempty"`
}

// EntityID implements Entity.
func (b Business) EntityID() string { return formatID(b.ID) }

// Businesses groups the /businesses/ endpoints.
type Businesses struct{ c *Client }

// List returns businesses matching query (search, category, page...).
func (b *Businesses) List(ctx context.Context, query url.Values) (*http.Response, error) {
	return b.c.list(ctx, "/businesses/", query)
}

// Get fetches one business with its products, services and reviews.
func (b *Businesses) Get(ctx context.Context, id string) (*http.Response, error) {
	return b.c.do(ctx, http.MethodGet, "/businesses/"+url.PathEscape(id)+"/", nil, true)
}

// Save creates or updates a business. e is a Business or a *Multipart form.
func (b *Businesses) Save(ctx context.Context, e Entity) (*http.Response, error) {
	return b.c.save(ctx, "/businesses/", e)
}

// SetVerified records an admin verification decision.
func (b *Businesses) SetVerified(ctx context.Context, id int64, verified bool) (*http.Response, error) {
	return b.c.save(ctx, "/businesses/", Business{ID: id, IsVerified: &verified})
}

// Stats returns dashboard analytics for the caller's business.
func (b *Businesses) Stats(ctx context.Context) (*http.Response, error) {
	return b.c.do(ctx, http.MethodGet, "/businesses/stats/", nil, true)
}

// Limits returns the plan limits for products and services.
func (b *Businesses) Limits(ctx context.Context) (*http.Response, error) {
	return b.c.do(ctx, http.MethodGet, "/businesses/limits/", nil, true)
}

// IncrementView counts a profile view.
func (b *Businesses) IncrementView(ctx context.Context, id string) (*http.Response, error) {
	return b.c.do(ctx, http.MethodPost, "/businesses/"+url.PathEscape(id)+"/increment_view/", nil, true)
}

// Mine returns the business owned by the caller.
func (b *Businesses) Mine(ctx context.Context) (*http.Response, error) {
	return b.c.do(ctx, http.MethodGet, "/businesses/my_business/", nil, true)
}

// DownloadReport returns the caller's business report document.
func (b *Businesses) DownloadReport(ctx context.Context) (*http.Response, error) {
	return b.c.do(ctx, http.MethodGet, "/businesses/download_report/", nil, true)
}

// Categories groups the /categories/ endpoints.
type Categories struct{ c *Client }

// List returns all categories.
func (cs *Categories) List(ctx context.Context) (*http.Response, error) {
	return cs.c.do(ctx, http.MethodGet, "/categories/", nil, true)
}
