package identity

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// LocalUserID is the fiber.Ctx local holding the authenticated user id.
const LocalUserID = "user_id"

// Handler exposes the /auth endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Phone  string `json:"phone"`
	Method string `json:"method"`
}

type challengeResponse struct {
	Message    string `json:"message"`
	Identifier string `json:"identifier"`
	Method     string `json:"method"`
}

// Login sends a code to an existing account.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ch, err := h.service.RequestLogin(c.UserContext(), req.Phone, req.Method)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(challengeResponse{Message: "OTP sent successfully", Identifier: ch.Identifier, Method: ch.Method})
}

type signupRequest struct {
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	PartnershipNumber string `json:"partnership_number"`
	Method            string `json:"method"`
}

// Signup creates an account and sends its first code.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ch, err := h.service.Signup(c.UserContext(), SignupInput(req))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(challengeResponse{Message: "Account created. OTP sent.", Identifier: ch.Identifier, Method: ch.Method})
}

type verifyRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

// VerifyOTP exchanges a code for a token pair.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pair, user, err := h.service.Verify(c.UserContext(), req.Identifier, req.OTP)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access": pair.Access, "refresh": pair.Refresh, "user": user.View()})
}

type resendRequest struct {
	Identifier string `json:"identifier"`
	Method     string `json:"method"`
}

// ResendOTP issues a fresh code.
func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req resendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ch, err := h.service.Resend(c.UserContext(), req.Identifier, req.Method)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(challengeResponse{Message: "OTP resent successfully", Identifier: ch.Identifier, Method: ch.Method})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh issues a new access token from a refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	access, err := h.service.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access": access})
}

// Logout revokes every token of the caller.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, ok := c.Locals(LocalUserID).(int64)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	if err := h.service.Logout(c.UserContext(), uid); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Logged out"})
}

// Profile returns the caller.
func (h *Handler) Profile(c *fiber.Ctx) error {
	uid, ok := c.Locals(LocalUserID).(int64)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	user, err := h.service.Profile(c.UserContext(), uid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"user": user.View()})
}

type profileRequest struct {
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	Email             *string `json:"email"`
	UserType          *string `json:"user_type"`
	PartnershipNumber *string `json:"partnership_number"`
	ProfileImageURL   *string `json:"profile_image_url"`
}

// UpdateProfile patches the caller.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	uid, ok := c.Locals(LocalUserID).(int64)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.UpdateProfile(c.UserContext(), uid, ProfilePatch(req))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"message": "Profile updated", "user": user.View()})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrIdentifierRequired),
		errors.Is(err, ErrPhoneEmailRequired),
		errors.Is(err, ErrPhoneTaken),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrOTPRequired),
		errors.Is(err, ErrInvalidOTP),
		errors.Is(err, ErrInvalidUserType),
		errors.Is(err, ErrUserTypeLocked):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrUserNotFound):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	default:
		return err
	}
}
