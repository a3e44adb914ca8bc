package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/faith-connect/faith_connect/internal/config"
	"github.com/faith-connect/faith_connect/internal/logging"
	"github.com/faith-connect/faith_connect/internal/notification"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

type outbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *outbox) notifier() notification.Notifier {
	return notification.NotifierFunc(func(_ context.Context, m notification.Message) error {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.codes[m.Destination] = codePattern.FindString(m.Body)
		return nil
	})
}

func (o *outbox) code(dest string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[dest]
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		AppName:         "faith-connect-test",
		AppEnv:          "test",
		BasePath:        "/api/v3",
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		OTPTTL:          10 * time.Minute,
		OTPPerMinute:    5,
	}
}

func newTestServer(t *testing.T) (*Server, *outbox) {
	t.Helper()
	box := &outbox{codes: make(map[string]string)}
	srv, err := New(testConfig(), nil, nil, logging.Discard(), WithNotifier(box.notifier()))
	require.NoError(t, err)
	return srv, box
}

func call(t *testing.T, srv *Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, "/api/v3"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func signupAndVerify(t *testing.T, srv *Server, box *outbox) (access, refresh string, user map[string]any) {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/auth/signup/", "", map[string]string{
		"phone": "+254712345678", "email": "grace@example.com", "first_name": "Grace", "method": "phone",
	})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "+254712345678", body["identifier"])

	status, body = call(t, srv, http.MethodPost, "/auth/verify-otp/", "", map[string]string{
		"identifier": "+254712345678", "otp": box.code("+254712345678"),
	})
	require.Equal(t, http.StatusOK, status, body)
	return body["access"].(string), body["refresh"].(string), body["user"].(map[string]any)
}

func TestLoginUnknownAccount(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := call(t, srv, http.MethodPost, "/auth/login/", "", map[string]string{"phone": "+254700000000", "method": "phone"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Account not found. Please sign up.", body["error"])

	status, body = call(t, srv, http.MethodPost, "/auth/login/", "", map[string]string{"method": "phone"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Identifier is required", body["error"])
}

func TestSignupValidation(t *testing.T) {
	srv, box := newTestServer(t)
	signupAndVerify(t, srv, box)

	status, body := call(t, srv, http.MethodPost, "/auth/signup/", "", map[string]string{"phone": "+254700000001"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Phone and Email are required", body["error"])

	status, body = call(t, srv, http.MethodPost, "/auth/signup/", "", map[string]string{"phone": "+254712345678", "email": "new@example.com"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Phone number already registered", body["error"])
}

func TestVerifyOTP(t *testing.T) {
	srv, box := newTestServer(t)

	status, _ := call(t, srv, http.MethodPost, "/auth/signup/", "", map[string]string{"phone": "+254712345678", "email": "grace@example.com"})
	require.Equal(t, http.StatusOK, status)

	wrong := "000000"
	if box.code("+254712345678") == wrong {
		wrong = "111111"
	}
	status, body := call(t, srv, http.MethodPost, "/auth/verify-otp/", "", map[string]string{"identifier": "+254712345678", "otp": wrong})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Invalid or expired OTP", body["error"])

	status, body = call(t, srv, http.MethodPost, "/auth/verify-otp/", "", map[string]string{"identifier": "+254712345678", "otp": box.code("+254712345678")})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["access"])
	require.NotEmpty(t, body["refresh"])
	user := body["user"].(map[string]any)
	require.Contains(t, user, "user_type")
	require.Nil(t, user["user_type"])
	require.Equal(t, true, user["phone_verified"])
	require.Equal(t, false, user["has_business_profile"])
}

func TestLoginThenVerifyByEmail(t *testing.T) {
	srv, box := newTestServer(t)
	signupAndVerify(t, srv, box)

	status, body := call(t, srv, http.MethodPost, "/auth/login/", "", map[string]string{"phone": "grace@example.com", "method": "email"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "grace@example.com", body["identifier"])
	require.Equal(t, "email", body["method"])

	status, _ = call(t, srv, http.MethodPost, "/auth/verify-otp/", "", map[string]string{"identifier": "grace@example.com", "otp": box.code("grace@example.com")})
	require.Equal(t, http.StatusOK, status)
}

func TestProfileRequiresToken(t *testing.T) {
	srv, box := newTestServer(t)
	access, _, _ := signupAndVerify(t, srv, box)

	status, body := call(t, srv, http.MethodGet, "/auth/profile/", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotEmpty(t, body["error"])

	status, body = call(t, srv, http.MethodGet, "/auth/profile/", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, body = call(t, srv, http.MethodGet, "/auth/profile/", access, nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	require.Equal(t, "Grace", user["first_name"])
}

func TestProfileUserTypeRules(t *testing.T) {
	srv, box := newTestServer(t)
	access, _, _ := signupAndVerify(t, srv, box)

	status, body := call(t, srv, http.MethodPatch, "/auth/profile/", access, map[string]string{"user_type": "pastor"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Invalid user type", body["error"])

	status, body = call(t, srv, http.MethodPatch, "/auth/profile/", access, map[string]string{"user_type": "business_owner"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "business_owner", body["user"].(map[string]any)["user_type"])

	status, body = call(t, srv, http.MethodPatch, "/auth/profile/", access, map[string]string{"user_type": "member"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "User type is already set", body["error"])
}

func TestLogoutRevokesTokens(t *testing.T) {
	srv, box := newTestServer(t)
	access, refresh, _ := signupAndVerify(t, srv, box)

	status, body := call(t, srv, http.MethodPost, "/auth/token/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["access"])

	status, _ = call(t, srv, http.MethodPost, "/auth/logout/", access, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, srv, http.MethodGet, "/auth/profile/", access, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, srv, http.MethodPost, "/auth/token/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestRequestIDAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))

	var body struct {
		Status map[string]string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "disabled", body.Status["postgres"])
	require.Equal(t, "disabled", body.Status["redis"])
}

func TestProductionRequiresDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	_, err := New(cfg, nil, nil, logging.Discard())
	require.Error(t, err)
}
