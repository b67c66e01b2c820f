package dto

import "github.com/mpoirier/auth-core/internal/domain"

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyEmailRequest carries the email verification token secret
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required,len=64"`
}

// ResendVerificationRequest represents a verification email re-send request
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPasswordRequest represents a password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest carries the reset token secret and the new password
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required,len=64"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginResponse is returned on successful login or email verification
type LoginResponse struct {
	Message      string             `json:"message"`
	User         *domain.PublicUser `json:"user"`
	SessionToken string             `json:"session_token"`
}

// MessageResponse is a generic outcome message, optionally echoing the
// email the action applied to
type MessageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
