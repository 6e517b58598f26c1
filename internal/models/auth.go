package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the reviewer roles carried in identity tokens.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleUSINT    UserRole = "USINT"
	RoleReviewer UserRole = "REVIEWER"
	RoleObserver UserRole = "OBSERVER"
)

// JWTClaims represents the JWT payload issued by the session service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// CanSignOff reports whether the role may sign ledger columns.
func (c *JWTClaims) CanSignOff() bool {
	if c == nil {
		return false
	}
	switch c.Role {
	case RoleAdmin, RoleUSINT, RoleReviewer:
		return true
	default:
		return false
	}
}

// Username is the reviewer name recorded in the ledger.
func (c *JWTClaims) Username() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
