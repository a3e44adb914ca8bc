package identity

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/faith-connect/faith_connect/internal/logging"
	"github.com/faith-connect/faith_connect/internal/notification"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// outbox captures the last code sent to each destination.
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
	sent  []notification.Message
}

func (o *outbox) Send(_ context.Context, m notification.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.codes == nil {
		o.codes = make(map[string]string)
	}
	o.codes[m.Destination] = codePattern.FindString(m.Body)
	o.sent = append(o.sent, m)
	return nil
}

func (o *outbox) code(dest string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[dest]
}

func newTestService() (*Service, *outbox) {
	box := &outbox{}
	tokens := NewTokens("test-secret", 15*time.Minute, time.Hour)
	return NewService(NewMemoryRepository(), tokens, box, 10*time.Minute, logging.Discard()), box
}

func signup(t *testing.T, svc *Service) Challenge {
	t.Helper()
	ch, err := svc.Signup(context.Background(), SignupInput{
		Phone:     "+254712345678",
		Email:     "grace@example.com",
		FirstName: "Grace",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return ch
}

func TestSignupAndVerify(t *testing.T) {
	svc, box := newTestService()
	ctx := context.Background()

	ch := signup(t, svc)
	if ch.Identifier != "+254712345678" || ch.Method != methodPhone {
		t.Fatalf("unexpected challenge %+v", ch)
	}
	code := box.code("+254712345678")
	if len(code) != otpDigits {
		t.Fatalf("expected a %d digit code, got %q", otpDigits, code)
	}

	pair, user, err := svc.Verify(ctx, ch.Identifier, code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatalf("expected token pair")
	}
	if !user.IsVerified || !user.PhoneVerified || user.LastLogin == nil {
		t.Fatalf("expected verified user, got %+v", user)
	}
	if _, _, err := svc.Verify(ctx, ch.Identifier, code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("codes must be single use, got %v", err)
	}
}

func TestSignupRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	signup(t, svc)

	if _, err := svc.Signup(ctx, SignupInput{Phone: "+254712345678", Email: "other@example.com"}); !errors.Is(err, ErrPhoneTaken) {
		t.Fatalf("expected ErrPhoneTaken, got %v", err)
	}
	if _, err := svc.Signup(ctx, SignupInput{Phone: "+254700000001", Email: "GRACE@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Signup(ctx, SignupInput{Phone: "+254700000001"}); !errors.Is(err, ErrPhoneEmailRequired) {
		t.Fatalf("expected ErrPhoneEmailRequired, got %v", err)
	}
}

func TestRequestLoginByEmail(t *testing.T) {
	svc, box := newTestService()
	ctx := context.Background()
	signup(t, svc)

	if _, err := svc.RequestLogin(ctx, "nobody@example.com", "email"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	ch, err := svc.RequestLogin(ctx, "grace@example.com", "email")
	if err != nil {
		t.Fatalf("request login: %v", err)
	}
	if ch.Method != methodEmail {
		t.Fatalf("expected email method, got %q", ch.Method)
	}
	code := box.code("grace@example.com")
	_, user, err := svc.Verify(ctx, "grace@example.com", code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.PhoneVerified {
		t.Fatalf("email verification must not mark the phone verified")
	}
}

func TestVerifyRejectsWrongAndExpiredCodes(t *testing.T) {
	svc, box := newTestService()
	ctx := context.Background()
	ch := signup(t, svc)
	code := box.code(ch.Identifier)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if _, _, err := svc.Verify(ctx, ch.Identifier, wrong); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}

	now := time.Now()
	svc.now = func() time.Time { return now.Add(11 * time.Minute) }
	if _, _, err := svc.Verify(ctx, ch.Identifier, code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected expired code to fail, got %v", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	svc, box := newTestService()
	ctx := context.Background()
	ch := signup(t, svc)
	pair, user, err := svc.Verify(ctx, ch.Identifier, box.code(ch.Identifier))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := svc.Refresh(ctx, pair.Refresh); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token must not refresh, got %v", err)
	}

	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	claims, err := svc.tokens.Parse(pair.Access, TokenTypeAccess)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := svc.Authorize(ctx, claims); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestUpdateProfileUserType(t *testing.T) {
	svc, box := newTestService()
	ctx := context.Background()
	ch := signup(t, svc)
	_, user, err := svc.Verify(ctx, ch.Identifier, box.code(ch.Identifier))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	bogus := "pastor"
	if _, err := svc.UpdateProfile(ctx, user.ID, ProfilePatch{UserType: &bogus}); !errors.Is(err, ErrInvalidUserType) {
		t.Fatalf("expected ErrInvalidUserType, got %v", err)
	}
	owner := UserTypeBusinessOwner
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfilePatch{UserType: &owner})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UserType != owner || updated.View().UserType == nil {
		t.Fatalf("expected business owner, got %+v", updated)
	}
	member := UserTypeMember
	if _, err := svc.UpdateProfile(ctx, user.ID, ProfilePatch{UserType: &member}); !errors.Is(err, ErrUserTypeLocked) {
		t.Fatalf("expected ErrUserTypeLocked, got %v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	tokens := NewTokens("test-secret", time.Minute, time.Hour)
	pair, err := tokens.Issue(User{ID: 9})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := tokens.Parse(pair.Access, TokenTypeAccess); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
	other := NewTokens("other-secret", time.Minute, time.Hour)
	if _, err := other.Parse(pair.Refresh, TokenTypeRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}
}
