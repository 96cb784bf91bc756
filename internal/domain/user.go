package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Role         string    `json:"role"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
	User         *UserInfo `json:"user"`
}

type UserInfo struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Role  *string `json:"role,omitempty"`
}

type UserPage struct {
	Data       []User `json:"data"`
	Count      int64  `json:"count"`
	TotalPages int64  `json:"total_pages"`
}

// Valid user roles
const (
	RoleCustomer   = "customer"
	RoleDispatcher = "dispatcher"
	RoleAdmin      = "admin"
)

var validRoles = map[string]bool{
	RoleCustomer:   true,
	RoleDispatcher: true,
	RoleAdmin:      true,
}

// Validation methods
func (r *CreateUserRequest) Validate() error {
	if r.Email == "" {
		return ValidationError{Field: "email", Msg: "email is required"}
	}
	if !isValidEmail(r.Email) {
		return ValidationError{Field: "email", Msg: "invalid email format"}
	}
	if r.Password == "" {
		return ValidationError{Field: "password", Msg: "password is required"}
	}
	if len(r.Password) < 8 {
		return ValidationError{Field: "password", Msg: "password must be at least 8 characters"}
	}
	if r.Name == "" {
		return ValidationError{Field: "name", Msg: "name is required"}
	}
	if r.Phone == "" {
		return ValidationError{Field: "phone", Msg: "phone is required"}
	}
	if !isValidPhone(r.Phone) {
		return ValidationError{Field: "phone", Msg: "invalid phone format"}
	}
	if r.Role != "" && !validRoles[r.Role] {
		return ValidationError{Field: "role", Msg: fmt.Sprintf("unknown role %q", r.Role)}
	}
	return nil
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return ValidationError{Field: "email", Msg: "email is required"}
	}
	if !isValidEmail(r.Email) {
		return ValidationError{Field: "email", Msg: "invalid email format"}
	}
	if r.Password == "" {
		return ValidationError{Field: "password", Msg: "password is required"}
	}
	return nil
}

func (r *UpdateUserRequest) Validate() error {
	if r.Role != nil && !validRoles[*r.Role] {
		return ValidationError{Field: "role", Msg: fmt.Sprintf("unknown role %q", *r.Role)}
	}
	if r.Phone != nil && !isValidPhone(*r.Phone) {
		return ValidationError{Field: "phone", Msg: "invalid phone format"}
	}
	return nil
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// Helper functions
func isValidEmail(email string) bool {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}

func isValidPhone(phone string) bool {
	phoneRegex := regexp.MustCompile(`^[\+]?[\d\s\-\(\)]+$`)
	return phoneRegex.MatchString(phone) && len(phone) >= 7
}

// Normalize methods
func (r *CreateUserRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Role == "" {
		r.Role = RoleCustomer
	}
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// ToUserInfo converts User to UserInfo (without sensitive data)
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Phone: u.Phone,
		Role:  u.Role,
	}
}

// ToSummary converts User to the joined-list summary shape.
func (u *User) ToSummary() *UserSummary {
	return &UserSummary{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
