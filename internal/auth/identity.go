package auth

import (
	"encoding/json"
	"errors"
)

var (
	// ErrUserTypeLocked is returned when a patch tries to change an account
	// type that is already set.
	ErrUserTypeLocked = errors.New("account type is already set")
	// ErrInvalidUserType is returned for an unknown account type.
	ErrInvalidUserType = errors.New("invalid account type")
)

// UserType is the account role. The zero value means onboarding has not
// picked one yet.
type UserType string

const (
	UserTypeMember        UserType = "member"
	UserTypeBusinessOwner UserType = "business_owner"
	UserTypeChurchAdmin   UserType = "church_admin"
	UserTypeSystemAdmin   UserType = "system_admin"
)

// Valid reports whether t is a known, non-empty account type.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeMember, UserTypeBusinessOwner, UserTypeChurchAdmin, UserTypeSystemAdmin:
		return true
	}
	return false
}

// MarshalJSON encodes the unset type as null.
func (t UserType) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

// Identity is the authenticated user as returned by the API.
type Identity struct {
	ID                 int64    `json:"id"`
	Phone              string   `json:"phone,omitempty"`
	Email              string   `json:"email,omitempty"`
	FirstName          string   `json:"first_name,omitempty"`
	LastName           string   `json:"last_name,omitempty"`
	PartnershipNumber  string   `json:"partnership_number,omitempty"`
	UserType           UserType `json:"user_type"`
	IsVerified         bool     `json:"is_verified"`
	PhoneVerified      bool     `json:"phone_verified"`
	HasBusinessProfile bool     `json:"has_business_profile"`
	ProfileImageURL    string   `json:"profile_image_url,omitempty"`
}

// UserPatch is a partial update of Identity. Nil fields are left alone.
type UserPatch struct {
	FirstName          *string
	LastName           *string
	Email              *string
	PartnershipNumber  *string
	UserType           *UserType
	HasBusinessProfile *bool
	ProfileImageURL    *string
}

// apply merges p into a copy of id.
func (p UserPatch) apply(id Identity) (Identity, error) {
	if p.UserType != nil {
		if !p.UserType.Valid() {
			return id, ErrInvalidUserType
		}
		if id.UserType != "" && id.UserType != *p.UserType {
			return id, ErrUserTypeLocked
		}
		id.UserType = *p.UserType
	}
	set(&id.FirstName, p.FirstName)
	set(&id.LastName, p.LastName)
	set(&id.Email, p.Email)
	set(&id.PartnershipNumber, p.PartnershipNumber)
	set(&id.ProfileImageURL, p.ProfileImageURL)
	if p.HasBusinessProfile != nil {
		id.HasBusinessProfile = *p.HasBusinessProfile
	}
	return id, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
