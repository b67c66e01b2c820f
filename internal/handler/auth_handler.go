package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/internal/dto"
	"github.com/mpoirier/auth-core/internal/service"
)

const sessionCookieName = "session_token"

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
	sessions    *service.SessionService
	sessionTTL  time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, sessions *service.SessionService, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		sessionTTL:  sessionTTL,
	}
}

// Register handles user registration. The account starts unverified and no
// session is established; the user must follow the emailed link first.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req, requestLocale(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created, please verify your email address",
		"user":    user,
	})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, ClientIP(c))
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.establishSession(c, result.User)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Message:      result.Message,
		User:         result.User,
		SessionToken: token,
	})
}

// VerifyEmail consumes a verification token. A session is established
// unconditionally on success.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	user, err := h.authService.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.establishSession(c, user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Message:      "Email verified successfully",
		User:         user,
		SessionToken: token,
	})
}

// ResendVerification re-sends the verification email, subject to cooldown
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req dto.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.ResendVerification(c.Request.Context(), req.Email, requestLocale(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: result.Message,
		Email:   result.Email,
	})
}

// ForgotPassword requests a password reset link. The response is identical
// whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email, requestLocale(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: result.Message,
		Email:   result.Email,
	})
}

// ResetPassword consumes a reset token and sets the new password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: result.Message,
		Email:   result.Email,
	})
}

// Logout revokes the current session
func (h *AuthHandler) Logout(c *gin.Context) {
	token := sessionToken(c)
	if token != "" {
		if err := h.sessions.Revoke(c.Request.Context(), token); err != nil && !errors.Is(err, service.ErrInvalidSession) {
			respondError(c, err)
			return
		}
	}

	c.SetCookie(sessionCookieName, "", -1, "/", "", true, true)

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "Logged out successfully",
	})
}

// GetMe returns the current user's profile
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "No active session",
		})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID.(string))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) establishSession(c *gin.Context, user *domain.PublicUser) (string, error) {
	token, err := h.sessions.Issue(c.Request.Context(), &domain.Session{
		User:       user,
		LoggedInAt: time.Now(),
	})
	if err != nil {
		return "", err
	}

	c.SetCookie(sessionCookieName, token, int(h.sessionTTL.Seconds()), "/", "", true, true)

	return token, nil
}

// respondError maps service error kinds to HTTP responses. Unexpected
// errors surface as a generic 500 with no internal detail.
func respondError(c *gin.Context, err error) {
	var rateErr *service.RateLimitError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds()))
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
			Error:   "Too Many Requests",
			Message: rateErr.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "Conflict",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrEmailNotVerified):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "Forbidden",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not Found",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrPasswordPolicy):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad Request",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "An unexpected error occurred",
		})
	}
}

// requestLocale picks the email locale from the locale cookie, falling
// back to French like the web front end.
func requestLocale(c *gin.Context) string {
	if locale, err := c.Cookie("locale"); err == nil && locale != "" {
		return locale
	}
	return "fr"
}
