package handler

import (
	"context"      // provides context with cancellation for DB calls
	"database/sql" // sentinel errors from the storage layer
	"errors"       // errors.Is for sentinel matching
	"net/http"     // HTTP status codes and primitives
	"strings"      // string manipulation utilities
	"time"         // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/work-item-tracker/internal/model"      // account models
	"github.com/iliyamo/work-item-tracker/internal/repository" // storage sentinel errors
	"github.com/iliyamo/work-item-tracker/internal/service"    // auth state machine
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type signupReq struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type verifyEmailReq struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}
type emailReq struct {
	Email string `json:"email"`
}
type validateResetReq struct {
	Email string `json:"email"`
	Token string `json:"token"` // the 6-digit reset code
}
type resetPasswordReq struct {
	Token       string `json:"token"` // the minted capability token
	NewPassword string `json:"newPassword"`
}
type changePasswordReq struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
type logoutReq struct {
	SessionToken string `json:"session_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID              uint64 `json:"id"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Session tokenPart `json:"session"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		IsEmailVerified: u.VerificationState == model.StateVerified,
	}
}

// Signup: create an account in pending verification state and send the
// first verification code. No tokens are returned; login is gated on
// verification.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "firstName/lastName/email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Auth.Signup(ctx, req.Email, req.FirstName, req.LastName, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signup failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":      uid,
		"message": "account created, check your email for a verification code",
	})
}

// Login: verify credential and verification state, swap the session slot
// and return identity plus tokens.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case errors.Is(err, service.ErrNotVerified):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "email not verified"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:    toUserPart(res.User),
		Access:  tokenPart{Token: res.Access.Token, Expires: res.Access.Exp},
		Session: tokenPart{Token: res.Session.Raw, Expires: res.Session.Exp}, // raw back to client
	})
}

// VerifyEmail: submit the 6-digit code. A consumed or superseded code can
// never succeed again.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !isChallengeCode(req.Pin) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and 6-digit pin required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.VerifyEmail(ctx, req.Email, req.Pin); err != nil {
		if errors.Is(err, service.ErrInvalidChallenge) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

// ResendVerification: reissue the code, superseding the previous one. An
// unknown address gets the same response as a known one so the endpoint
// cannot be used to probe for accounts.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Auth.ResendVerification(ctx, req.Email)
	switch {
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusOK, echo.Map{"message": "if the address exists, a new code was sent"})
	case errors.Is(err, service.ErrAlreadyVerified):
		return c.JSON(http.StatusConflict, echo.Map{"error": "account already verified"})
	case errors.Is(err, service.ErrResendThrottled):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "a code was sent recently, try again later"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resend failed"})
}

// ForgotPassword: start the recovery flow. Response shape does not reveal
// whether the address exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Auth.ForgotPassword(ctx, req.Email)
	switch {
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusOK, echo.Map{"message": "if the address exists, a reset code was sent"})
	case errors.Is(err, service.ErrResendThrottled):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "a code was sent recently, try again later"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
}

// ValidateResetToken: exchange the 6-digit reset code for a short-lived
// capability token. The code is consumed here; only the capability token is
// accepted by ResetPassword.
func (h *AuthHandler) ValidateResetToken(c echo.Context) error {
	var req validateResetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !isChallengeCode(req.Token) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and 6-digit token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	token, exp, err := h.Auth.ValidateResetToken(ctx, req.Email, req.Token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidChallenge) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "validation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"resetToken": token,
		"expires":    exp,
	})
}

// ResetPassword: consume the capability token and replace the credential.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and newPassword required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidChallenge) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset"})
}

// ChangePassword: authenticated credential replacement (protected route).
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "oldPassword and newPassword required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, uid, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "change failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// Logout: clear the caller's session slot. The handler accepts either a
// Bearer access token or a `session_token` in the body, and the slot is
// cleared unconditionally when the caller can be identified — a logout
// must always end in an unauthenticated state.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Prefer the session token when supplied; it works even after the
	// short-lived access token has expired.
	var req logoutReq
	_ = c.Bind(&req)
	if tok := strings.TrimSpace(req.SessionToken); tok != "" {
		if err := h.Auth.LogoutByToken(ctx, tok); err != nil && !errors.Is(err, service.ErrInvalidCredentials) {
			c.Logger().Warnf("logout: session invalidation failed: %v", err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	if uid, err := getUserID(c); err == nil {
		if err := h.Auth.Logout(ctx, uid); err != nil {
			// Fail-open: report success anyway, the client must end up
			// logged out either way.
			c.Logger().Warnf("logout: session invalidation failed: %v", err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or session_token"})
}

// Me: simple protected endpoint returning the authenticated identity.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"email":   c.Get("email"),
	})
}
