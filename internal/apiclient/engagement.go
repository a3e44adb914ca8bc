package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Review is a rating left on a business.
type Review struct {
	ID         int64  `json:"id,omitempty"`
	Business   int64  `json:"business,omitempty"`
	Rating     int    `json:"rating,omitempty"`
	ReviewText string `json:"review_text,omitempty"`
}

// EntityID implements Entity.
func (r Review) EntityID() string { return formatID(r.ID) }

// Reviews groups the /reviews/ endpoints.
type Reviews struct{ c *Client }

// List returns reviews matching query, e.g. business_id or user_id.
func (r *Reviews) List(ctx context.Context, query url.Values) (*http.Response, error) {
	return r.c.list(ctx, "/reviews/", query)
}

// Save creates or updates a review.
func (r *Reviews) Save(ctx context.Context, e Entity) (*http.Response, error) {
	return r.c.save(ctx, "/reviews/", e)
}

// Delete removes a review.
func (r *Reviews) Delete(ctx context.Context, id int64) (*http.Response, error) {
	return r.c.do(ctx, http.MethodDelete, "/reviews/"+strconv.FormatInt(id, 10)+"/", nil, true)
}

// Favorites groups the /favorites/ endpoints.
type Favorites struct{ c *Client }

// List returns the caller's saved businesses.
func (f *Favorites) List(ctx context.Context) (*http.Response, error) {
	return f.c.do(ctx, http.MethodGet, "/favorites/", nil, true)
}

// Add saves a business to the caller's favorites.
func (f *Favorites) Add(ctx context.Context, businessID int64) (*http.Response, error) {
	body := struct {
		Business int64 `json:"business"`
	}{businessID}
	return f.c.do(ctx, http.MethodPost, "/favorites/", body, true)
}

// Remove deletes a favorite by its own id.
func (f *Favorites) Remove(ctx context.Context, id int64) (*http.Response, error) {
	return f.c.do(ctx, http.MethodDelete, "/favorites/"+strconv.FormatInt(id, 10)+"/", nil, true)
}

// UploadTokenRequest describes a file about to be uploaded.
type UploadTokenRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// AttachRequest links uploaded media to an entity.
type AttachRequest struct {
	MediaID    string `json:"media_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	MediaType  string `json:"media_type"`
}

// Media groups the token-based upload endpoints.
type Media struct{ c *Client }

// UploadToken requests a signed upload target.
func (m *Media) UploadToken(ctx context.Context, req UploadTokenRequest) (*http.Response, error) {
	return m.c.do(ctx, http.MethodPost, "/media/upload-token", req, true)
}

// Attach links an uploaded file to a business, product or service.
func (m *Media) Attach(ctx context.Context, req AttachRequest) (*http.Response, error) {
	return m.c.do(ctx, http.MethodPost, "/media/attach", req, true)
}
