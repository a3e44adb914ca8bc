package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/faith-connect/faith_connect/internal/notification"
)

const (
	methodPhone = "phone"
	methodEmail = "email"
	otpDigits   = 6
)

// Validation errors surfaced to clients verbatim.
var (
	ErrIdentifierRequired = errors.New("Identifier is required")
	ErrAccountNotFound    = errors.New("Account not found. Please sign up.")
	ErrPhoneEmailRequired = errors.New("Phone and Email are required")
	ErrPhoneTaken         = errors.New("Phone number already registered")
	ErrEmailTaken         = errors.New("Email address already registered")
	ErrOTPRequired        = errors.New("Identifier and OTP are required")
	ErrInvalidOTP         = errors.New("Invalid or expired OTP")
	ErrInvalidUserType    = errors.New("Invalid user type")
	ErrUserTypeLocked     = errors.New("User type is already set")
)

// Service manages the OTP login lifecycle and profiles.
type Service struct {
	repo     Repository
	tokens   *Tokens
	notifier notification.Notifier
	otpTTL   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates a new identity service.
func NewService(repo Repository, tokens *Tokens, notifier notification.Notifier, otpTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, notifier: notifier, otpTTL: otpTTL, now: time.Now, logger: logger}
}

// Challenge describes a dispatched OTP.
type Challenge struct {
	Identifier string `json:"identifier"`
	Method     string `json:"method"`
}

// RequestLogin sends a code to an existing account found by phone or email.
func (s *Service) RequestLogin(ctx context.Context, identifier, method string) (Challenge, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Challenge{}, ErrIdentifierRequired
	}
	user, err := s.lookup(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		return Challenge{}, ErrAccountNotFound
	}
	if err != nil {
		return Challenge{}, err
	}
	method = normalizeMethod(method)
	if err := s.issueOTP(ctx, user, identifier, method); err != nil {
		return Challenge{}, err
	}
	return Challenge{Identifier: identifier, Method: method}, nil
}

// Signup creates an account and sends its first code. The returned identifier
// is the phone or the email depending on the chosen method.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Challenge, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	if in.Phone == "" || in.Email == "" {
		return Challenge{}, ErrPhoneEmailRequired
	}
	if _, err := s.repo.FindByPhone(ctx, in.Phone); err == nil {
		return Challenge{}, ErrPhoneTaken
	}
	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return Challenge{}, ErrEmailTaken
	}

	user, err := s.repo.Create(ctx, User{
		Phone:             in.Phone,
		Email:             in.Email,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		PartnershipNumber: in.PartnershipNumber,
		CreatedAt:         s.now().UTC(),
	})
	if errors.Is(err, ErrUserExists) {
		return Challenge{}, ErrPhoneTaken
	}
	if err != nil {
		return Challenge{}, fmt.Errorf("create user: %w", err)
	}

	method := normalizeMethod(in.Method)
	identifier := user.Phone
	if method == methodEmail {
		identifier = user.Email
	}
	if err := s.issueOTP(ctx, user, identifier, method); err != nil {
		return Challenge{}, err
	}
	s.logger.Info("identity.signup completed", slog.Int64("user_id", user.ID))
	return Challenge{Identifier: identifier, Method: method}, nil
}

// Resend issues a fresh code for an identifier.
func (s *Service) Resend(ctx context.Context, identifier, method string) (Challenge, error) {
	return s.RequestLogin(ctx, identifier, method)
}

// Verify checks the code for identifier and, when it matches, marks the
// account verified and issues a token pair. Codes are single use.
func (s *Service) Verify(ctx context.Context, identifier, code string) (TokenPair, User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || code == "" {
		return TokenPair{}, User{}, ErrOTPRequired
	}
	otp, err := s.repo.FindOTP(ctx, identifier)
	if errors.Is(err, ErrOTPNotFound) {
		return TokenPair{}, User{}, ErrInvalidOTP
	}
	if err != nil {
		return TokenPair{}, User{}, err
	}
	if s.now().After(otp.ExpiresAt) {
		_ = s.repo.DeleteOTP(ctx, identifier)
		return TokenPair{}, User{}, ErrInvalidOTP
	}
	if err := bcrypt.CompareHashAndPassword(otp.CodeHash, []byte(code)); err != nil {
		return TokenPair{}, User{}, ErrInvalidOTP
	}
	if err := s.repo.DeleteOTP(ctx, identifier); err != nil {
		return TokenPair{}, User{}, err
	}

	user, err := s.repo.FindByID(ctx, otp.UserID)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	now := s.now().UTC()
	user.IsVerified = true
	if identifier == user.Phone {
		user.PhoneVerified = true
	}
	user.LastLogin = &now
	if err := s.repo.Update(ctx, user); err != nil {
		return TokenPair{}, User{}, err
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	return pair, user, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	user, err := s.Authorize(ctx, claims)
	if err != nil {
		return "", err
	}
	return s.tokens.IssueAccess(user)
}

// Authorize resolves the user behind claims, rejecting revoked tokens.
func (s *Service) Authorize(ctx context.Context, claims *Claims) (User, error) {
	id, err := claims.UserID()
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, ErrTokenRevoked
	}
	if user.TokenVersion != claims.Version {
		return User{}, ErrTokenRevoked
	}
	return user, nil
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	user.TokenVersion++
	return s.repo.Update(ctx, user)
}

// Profile returns the user.
func (s *Service) Profile(ctx context.Context, userID int64) (User, error) {
	return s.repo.FindByID(ctx, userID)
}

// UpdateProfile applies patch. The account type must be a known value and
// cannot change once set.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, patch ProfilePatch) (User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if patch.UserType != nil && *patch.UserType != "" {
		switch *patch.UserType {
		case UserTypeMember, UserTypeBusinessOwner, UserTypeChurchAdmin:
		default:
			return User{}, ErrInvalidUserType
		}
		if user.UserType != "" && user.UserType != *patch.UserType {
			return User{}, ErrUserTypeLocked
		}
		user.UserType = *patch.UserType
	}
	for dst, v := range map[*string]*string{
		&user.FirstName:         patch.FirstName,
		&user.LastName:          patch.LastName,
		&user.Email:             patch.Email,
		&user.PartnershipNumber: patch.PartnershipNumber,
		&user.ProfileImageURL:   patch.ProfileImageURL,
	} {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (User, error) {
	user, err := s.repo.FindByPhone(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		return s.repo.FindByEmail(ctx, identifier)
	}
	return user, err
}

func (s *Service) issueOTP(ctx context.Context, user User, identifier, method string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SaveOTP(ctx, OTP{
		Identifier: identifier,
		UserID:     user.ID,
		CodeHash:   hash,
		ExpiresAt:  s.now().Add(s.otpTTL),
	}); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}

	destination := user.Phone
	if method == methodEmail && user.Email != "" {
		destination = user.Email
	}
	msg := notification.Message{
		Kind:        notification.KindOTP,
		Channel:     method,
		Destination: destination,
		Body:        fmt.Sprintf("Your Faith Connect verification code is: %s. Valid for %d minutes.", code, int(s.otpTTL.Minutes())),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("Failed to send code via %s: %w", method, err)
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()+100000), nil
}

func normalizeMethod(method string) string {
	if strings.EqualFold(method, methodEmail) {
		return methodEmail
	}
	return methodPhone
}
