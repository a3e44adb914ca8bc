package identity

import "time"

// Account types accepted by the profile endpoint.
const (
	UserTypeMember        = "member"
	UserTypeBusinessOwner = "business_owner"
	UserTypeChurchAdmin   = "church_admin"
)

// User is a Faith Connect account as stored by the dev API.
type User struct {
	ID                 int64
	Phone              string
	Email              string
	FirstName          string
	LastName           string
	PartnershipNumber  string
	UserType           string
	IsVerified         bool
	PhoneVerified      bool
	HasBusinessProfile bool
	ProfileImageURL    string
	TokenVersion       int
	CreatedAt          time.Time
	LastLogin          *time.Time
}

// OTP is an outstanding one-time code for an identifier.
type OTP struct {
	Identifier string
	UserID     int64
	CodeHash   []byte
	ExpiresAt  time.Time
}

// SignupInput carries the signup form.
type SignupInput struct {
	Phone             string
	Email             string
	FirstName         string
	LastName          string
	PartnershipNumber string
	Method            string
}

// ProfilePatch is a partial profile update. Nil fields are left alone.
type ProfilePatch struct {
	FirstName         *string
	LastName          *string
	Email             *string
	UserType          *string
	PartnershipNumber *string
	ProfileImageURL   *string
}

// View is the JSON shape of a user returned to clients.
type View struct {
	ID                 int64   `json:"id"`
	Phone              string  `json:"phone"`
	Email              string  `json:"email,omitempty"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	PartnershipNumber  string  `json:"partnership_number"`
	UserType           *string `json:"user_type"`
	IsVerified         bool    `json:"is_verified"`
	PhoneVerified      bool    `json:"phone_verified"`
	HasBusinessProfile bool    `json:"has_business_profile"`
	ProfileImageURL    string  `json:"profile_image_url,omitempty"`
}

// View renders u for API responses. An unset user type is encoded as null.
func (u User) View() View {
	v := View{
		ID:                 u.ID,
		Phone:              u.Phone,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		PartnershipNumber:  u.PartnershipNumber,
		IsVerified:         u.IsVerified,
		PhoneVerified:      u.PhoneVerified,
		HasBusinessProfile: u.HasBusinessProfile,
		ProfileImageURL:    u.ProfileImageURL,
	}
	if u.UserType != "" {
		t := u.UserType
		v.UserType = &t
	}
	return v
}
