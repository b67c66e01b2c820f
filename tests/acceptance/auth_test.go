package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/internal/dto"
)

type registerResponse struct {
	Message string             `json:"message"`
	User    *domain.PublicUser `json:"user"`
}

func (s *Suite) postJSON(path string, payload any) *http.Response {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	resp, err := http.Post(s.BaseURL+path, "application/json", bytes.NewBuffer(body))
	s.Require().NoError(err)

	return resp
}

func (s *Suite) register(email, password string) *domain.PublicUser {
	resp := s.postJSON("/api/v1/auth/register", dto.RegisterRequest{
		Email:    email,
		Password: password,
		Name:     "Test User",
	})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode, "Registration should succeed")

	var regResp registerResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&regResp))

	return regResp.User
}

// tokenSecret reads the issued token straight from the database, standing
// in for the emailed link.
func (s *Suite) tokenSecret(userID string, tokenType domain.TokenType) string {
	var secret string
	err := s.Postgres.DB.QueryRow(
		`SELECT secret FROM tokens WHERE user_id = $1 AND type = $2 ORDER BY created_at DESC LIMIT 1`,
		userID, string(tokenType),
	).Scan(&secret)
	s.Require().NoError(err, "Token should have been issued")

	return secret
}

func (s *Suite) verify(userID string) dto.LoginResponse {
	secret := s.tokenSecret(userID, domain.TokenTypeEmailVerification)

	resp := s.postJSON("/api/v1/auth/verify-email", dto.VerifyEmailRequest{Token: secret})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Verification should succeed")

	var loginResp dto.LoginResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&loginResp))

	return loginResp
}

func (s *Suite) TestRegister_Success() {
	user := s.register("test@example.com", "Password123")

	s.NotEmpty(user.ID)
	s.Equal("test@example.com", user.Email)
	s.False(user.EmailVerified)

	// A verification token must exist before the user can proceed
	s.NotEmpty(s.tokenSecret(user.ID, domain.TokenTypeEmailVerification))
}

func (s *Suite) TestRegister_DuplicateEmail() {
	s.register("duplicate@example.com", "Password123")

	resp := s.postJSON("/api/v1/auth/register", dto.RegisterRequest{
		Email:    "duplicate@example.com",
		Password: "Password123",
		Name:     "Test User",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusConflict, resp.StatusCode)

	var errResp dto.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	s.Equal("Conflict", errResp.Error)
}

func (s *Suite) TestRegister_InvalidEmail() {
	resp := s.postJSON("/api/v1/auth/register", dto.RegisterRequest{
		Email:    "invalid-email",
		Password: "Password123",
		Name:     "Test User",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestRegister_WeakPassword() {
	// Long enough but no uppercase, rejected by the password policy
	resp := s.postJSON("/api/v1/auth/register", dto.RegisterRequest{
		Email:    "weak@example.com",
		Password: "password123",
		Name:     "Test User",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestLogin_UnverifiedEmail() {
	s.register("unverified@example.com", "Password123")

	resp := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "unverified@example.com",
		Password: "Password123",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *Suite) TestVerifyEmail_EstablishesSession() {
	user := s.register("verify@example.com", "Password123")

	loginResp := s.verify(user.ID)

	s.NotEmpty(loginResp.SessionToken)
	s.True(loginResp.User.EmailVerified)
	s.NotNil(loginResp.User.EmailVerifiedAt)

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", loginResp.SessionToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestVerifyEmail_InvalidToken() {
	resp := s.postJSON("/api/v1/auth/verify-email", dto.VerifyEmailRequest{
		Token: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestVerifyEmail_TokenConsumedOnUse() {
	user := s.register("reuse@example.com", "Password123")
	secret := s.tokenSecret(user.ID, domain.TokenTypeEmailVerification)

	resp1 := s.postJSON("/api/v1/auth/verify-email", dto.VerifyEmailRequest{Token: secret})
	resp1.Body.Close()
	s.Equal(http.StatusOK, resp1.StatusCode)

	resp2 := s.postJSON("/api/v1/auth/verify-email", dto.VerifyEmailRequest{Token: secret})
	defer resp2.Body.Close()
	s.Equal(http.StatusBadRequest, resp2.StatusCode)
}

func (s *Suite) TestLogin_Success() {
	user := s.register("login@example.com", "Password123")
	s.verify(user.ID)

	resp := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "login@example.com",
		Password: "Password123",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var loginResp dto.LoginResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&loginResp))

	s.NotEmpty(loginResp.SessionToken)
	s.Equal("login@example.com", loginResp.User.Email)

	cookies := resp.Cookies()
	s.NotEmpty(cookies, "Should have session cookie")
}

func (s *Suite) TestLogin_WrongPassword() {
	user := s.register("wrongpass@example.com", "CorrectPassword123")
	s.verify(user.ID)

	resp := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "wrongpass@example.com",
		Password: "WrongPassword123",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogin_UnknownEmail() {
	resp := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "nonexistent@example.com",
		Password: "Password123",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogin_BlockedAfterRepeatedFailures() {
	user := s.register("blocked@example.com", "CorrectPassword123")
	s.verify(user.ID)

	for i := 0; i < 5; i++ {
		resp := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
			Email:    "blocked@example.com",
			Password: "WrongPassword123",
		})
		resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	}

	// The pair is now blocked, even with the right password
	resp := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "blocked@example.com",
		Password: "CorrectPassword123",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))
}

func (s *Suite) TestResendVerification_Cooldown() {
	s.register("cooldown@example.com", "Password123")

	// Registration already issued a token, so an immediate resend is
	// inside the cooldown window
	resp := s.postJSON("/api/v1/auth/resend-verification", dto.ResendVerificationRequest{
		Email: "cooldown@example.com",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))
}

func (s *Suite) TestResendVerification_AlreadyVerified() {
	user := s.register("verified@example.com", "Password123")
	s.verify(user.ID)

	resp := s.postJSON("/api/v1/auth/resend-verification", dto.ResendVerificationRequest{
		Email: "verified@example.com",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestResendVerification_UnknownEmail() {
	resp := s.postJSON("/api/v1/auth/resend-verification", dto.ResendVerificationRequest{
		Email: "nobody@example.com",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *Suite) TestForgotPassword_UnknownEmailSameResponse() {
	user := s.register("real@example.com", "Password123")
	s.verify(user.ID)

	respReal := s.postJSON("/api/v1/auth/forgot-password", dto.ForgotPasswordRequest{
		Email: "real@example.com",
	})
	defer respReal.Body.Close()

	respFake := s.postJSON("/api/v1/auth/forgot-password", dto.ForgotPasswordRequest{
		Email: "fake@example.com",
	})
	defer respFake.Body.Close()

	s.Equal(http.StatusOK, respReal.StatusCode)
	s.Equal(http.StatusOK, respFake.StatusCode)

	var realMsg, fakeMsg dto.MessageResponse
	s.Require().NoError(json.NewDecoder(respReal.Body).Decode(&realMsg))
	s.Require().NoError(json.NewDecoder(respFake.Body).Decode(&fakeMsg))
	s.Equal(realMsg.Message, fakeMsg.Message)
}

func (s *Suite) TestResetPassword_CompleteFlow() {
	user := s.register("reset@example.com", "OldPassword123")
	s.verify(user.ID)

	resp := s.postJSON("/api/v1/auth/forgot-password", dto.ForgotPasswordRequest{
		Email: "reset@example.com",
	})
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	secret := s.tokenSecret(user.ID, domain.TokenTypePasswordReset)

	resetResp := s.postJSON("/api/v1/auth/reset-password", dto.ResetPasswordRequest{
		Token:    secret,
		Password: "NewPassword123",
	})
	defer resetResp.Body.Close()
	s.Equal(http.StatusOK, resetResp.StatusCode)

	// Old password no longer works
	oldResp := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "reset@example.com",
		Password: "OldPassword123",
	})
	oldResp.Body.Close()
	s.Equal(http.StatusUnauthorized, oldResp.StatusCode)

	// New password does
	newResp := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "reset@example.com",
		Password: "NewPassword123",
	})
	defer newResp.Body.Close()
	s.Equal(http.StatusOK, newResp.StatusCode)
}

func (s *Suite) TestResetPassword_TokenConsumedOnUse() {
	user := s.register("resetreuse@example.com", "OldPassword123")
	s.verify(user.ID)

	resp := s.postJSON("/api/v1/auth/forgot-password", dto.ForgotPasswordRequest{
		Email: "resetreuse@example.com",
	})
	resp.Body.Close()

	secret := s.tokenSecret(user.ID, domain.TokenTypePasswordReset)

	resp1 := s.postJSON("/api/v1/auth/reset-password", dto.ResetPasswordRequest{
		Token:    secret,
		Password: "NewPassword123",
	})
	resp1.Body.Close()
	s.Equal(http.StatusOK, resp1.StatusCode)

	resp2 := s.postJSON("/api/v1/auth/reset-password", dto.ResetPasswordRequest{
		Token:    secret,
		Password: "AnotherPassword123",
	})
	defer resp2.Body.Close()
	s.Equal(http.StatusBadRequest, resp2.StatusCode)
}

func (s *Suite) TestGetMe_NoToken() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestGetMe_InvalidToken() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogout_RevokesSession() {
	user := s.register("logout@example.com", "Password123")
	loginResp := s.verify(user.ID)

	req, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", loginResp.SessionToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// The token is revoked server-side, not just cleared client-side
	meReq, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	meReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", loginResp.SessionToken))

	meResp, err := http.DefaultClient.Do(meReq)
	s.Require().NoError(err)
	defer meResp.Body.Close()
	s.Equal(http.StatusUnauthorized, meResp.StatusCode)
}
