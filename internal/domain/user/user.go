package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/sentinel"
	"github.com/google/uuid"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	Country      string    `json:"country,omitempty"`
	Organization string    `json:"organization,omitempty"`
	JobTitle     string    `json:"jobTitle,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var (
	ErrNotFound   = fmt.Errorf("user %w", sentinel.ErrNotFound)
	ErrEmailTaken = fmt.Errorf("email already in use: %w", sentinel.ErrConflict)
)

type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email,max=254"`
	Password     string `json:"password" binding:"required,min=6,max=72"`
	Name         string `json:"name" binding:"required,min=1,max=120"`
	Role         string `json:"role" binding:"omitempty,oneof=admin editor viewer"`
	PhoneNumber  string `json:"phoneNumber" binding:"omitempty,max=32"`
	Country      string `json:"country" binding:"omitempty,max=80"`
	Organization string `json:"organization" binding:"omitempty,max=120"`
	JobTitle     string `json:"jobTitle" binding:"omitempty,max=120"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateRequest is an admin edit. Nil fields are left untouched.
type UpdateRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=120"`
	Role         *string `json:"role" binding:"omitempty,oneof=admin editor viewer"`
	IsVerified   *bool   `json:"isVerified"`
	PhoneNumber  *string `json:"phoneNumber" binding:"omitempty,max=32"`
	Country      *string `json:"country" binding:"omitempty,max=80"`
	Organization *string `json:"organization" binding:"omitempty,max=120"`
	JobTitle     *string `json:"jobTitle" binding:"omitempty,max=120"`
}

func (r UpdateRequest) Apply(u *User) {
	if r.Name != nil {
		u.Name = *r.Name
	}
	if r.Role != nil {
		u.Role = *r.Role
	}
	if r.IsVerified != nil {
		u.IsVerified = *r.IsVerified
	}
	if r.PhoneNumber != nil {
		u.PhoneNumber = *r.PhoneNumber
	}
	if r.Country != nil {
		u.Country = *r.Country
	}
	if r.Organization != nil {
		u.Organization = *r.Organization
	}
	if r.JobTitle != nil {
		u.JobTitle = *r.JobTitle
	}
}

type ListFilter struct {
	Verified *bool
	Role     *string
}

func (f ListFilter) Matches(u User) bool {
	if f.Verified != nil && u.IsVerified != *f.Verified {
		return false
	}
	if f.Role != nil && u.Role != *f.Role {
		return false
	}
	return true
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewFromRegisterRequest builds a pending account. Role must already be
// checked by the caller; an empty role becomes viewer.
func NewFromRegisterRequest(req RegisterRequest, passwordHash string) User {
	now := time.Now().UTC()

	role := req.Role
	if role == "" {
		role = "viewer"
	}

	return User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(req.Email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		IsVerified:   false,
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Country:      strings.TrimSpace(req.Country),
		Organization: strings.TrimSpace(req.Organization),
		JobTitle:     strings.TrimSpace(req.JobTitle),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
