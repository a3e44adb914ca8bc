package apiclient

import (
	"context"
	"net/http"
)

// Method is the channel an OTP is delivered through.
type Method string

const (
	MethodPhone Method = "phone"
	MethodEmail Method = "email"
)

// Valid reports whether m is a known delivery method.
func (m Method) Valid() bool {
	return m == MethodPhone || m == MethodEmail
}

// SignupRequest is the body of POST /auth/signup/.
type SignupRequest struct {
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	PartnershipNumber string `json:"partnership_number,omitempty"`
	Method            Method `json:"method,omitempty"`
}

// ProfileUpdate is the body of PATCH /auth/profile/. Nil fields are omitted.
type ProfileUpdate struct {
	FirstName         *string `json:"first_name,omitempty"`
	LastName          *string `json:"last_name,omitempty"`
	Email             *string `json:"email,omitempty"`
	UserType          *string `json:"user_type,omitempty"`
	PartnershipNumber *string `json:"partnership_number,omitempty"`
	ProfileImageURL   *string `json:"profile_image_url,omitempty"`
}

// Auth groups the /auth/ endpoints.
type Auth struct{ c *Client }

// Login asks the API to send an OTP to an existing identifier.
func (a *Auth) Login(ctx context.Context, identifier string, method Method) (*http.Response, error) {
	if method == "" {
		method = MethodPhone
	}
	body := struct {
		Phone  string `json:"phone"`
		Method Method `json:"method"`
	}{identifier, method}
	return a.c.do(ctx, http.MethodPost, "/auth/login/", body, false)
}

// Signup creates an identity server-side and sends an OTP.
func (a *Auth) Signup(ctx context.Context, req SignupRequest) (*http.Response, error) {
	return a.c.do(ctx, http.MethodPost, "/auth/signup/", req, false)
}

// VerifyOTP exchanges a code for a token pair and the user object.
func (a *Auth) VerifyOTP(ctx context.Context, identifier, otp string) (*http.Response, error) {
	body := struct {
		Identifier string `json:"identifier"`
		OTP        string `json:"otp"`
	}{identifier, otp}
	return a.c.do(ctx, http.MethodPost, "/auth/verify-otp/", body, false)
}

// ResendOTP asks for a new code.
func (a *Auth) ResendOTP(ctx context.Context, identifier string, method Method) (*http.Response, error) {
	body := struct {
		Identifier string `json:"identifier"`
		Method     Method `json:"method"`
	}{identifier, method}
	return a.c.do(ctx, http.MethodPost, "/auth/resend-otp/", body, false)
}

// Logout invalidates the session server-side.
func (a *Auth) Logout(ctx context.Context) (*http.Response, error) {
	return a.c.do(ctx, http.MethodPost, "/auth/logout/", nil, true)
}

// Profile fetches the current user.
func (a *Auth) Profile(ctx context.Context) (*http.Response, error) {
	return a.c.do(ctx, http.MethodGet, "/auth/profile/", nil, true)
}

// UpdateProfile patches the current user.
func (a *Auth) UpdateProfile(ctx context.Context, update ProfileUpdate) (*http.Response, error) {
	return a.c.do(ctx, http.MethodPatch, "/auth/profile/", update, true)
}
