package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/food-diary/internal/apperror"
)

// AuthHandler serves the /api/auth routes: signup, email verification,
// login and the forgot/reset password pair.
type AuthHandler struct {
	accounts AccountService
	pages    *Pages
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts AccountService, pages *Pages, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, pages: pages, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// HandleSignup registers an unverified account and emails a verification link.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"email": "a@b.c", "password": "pw", "name": "Ann"}
// RESPONSE: 201 {"message": "..."}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.accounts.Signup(r.Context(), req.Email, req.Password, req.Name); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{
		Message: "Signup successful. Please check your email to verify your account.",
	})
}

// HandleVerify consumes a verification token from an emailed link.
//
// HTTP: GET /api/auth/verify/{token}
//
// The link is opened by a browser, so both outcomes are HTML pages rather
// than JSON.
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	err := h.accounts.Verify(r.Context(), token)
	switch {
	case err == nil:
		h.pages.renderVerify(w, http.StatusOK, verifyPage{
			Title:    "Email verified",
			Message:  "Your account is active. You can now log in.",
			Success:  true,
			LoginURL: h.pages.loginURL,
		})
	case errors.Is(err, apperror.ErrInvalidToken), errors.Is(err, apperror.ErrValidation):
		h.pages.renderVerify(w, http.StatusBadRequest, verifyPage{
			Title:   "Verification failed",
			Message: "This verification link is invalid or has already been used.",
		})
	default:
		h.logger.Error("verification failed", slog.String("error", err.Error()))
		h.pages.renderVerify(w, http.StatusInternalServerError, verifyPage{
			Title:   "Something went wrong",
			Message: "We could not verify your account right now. Please try the link again later.",
		})
	}
}

// HandleLogin exchanges credentials for a session token.
//
// HTTP: POST /api/auth/login
// RESPONSE: 200 {"token": "...", "user": {"id": "...", "email": "...", "name": "..."}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HandleForgotPassword starts a password reset.
//
// HTTP: POST /api/auth/forgot-password
//
// The response never reveals whether the email is registered.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	msg, err := h.accounts.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandleResetPassword sets a new password using an emailed reset token.
//
// HTTP: POST /api/auth/reset-password
// REQUEST BODY: {"token": "...", "newPassword": "..."}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset successfully"})
}
