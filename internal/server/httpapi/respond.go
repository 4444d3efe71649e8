package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/policy"
)

const (
	msgInvalidCredentials = "Invalid credentials. Please try again."
	msgAccountLocked      = "Account is temporarily locked. Please try again later."
	msgInvalidResetToken  = "Invalid or expired reset token."
	msgAlreadyExists      = "User already exists"
	msgNotFound           = "User not found"
	msgNoToken            = "Not authorized, no token"
	msgTokenFailed        = "Not authorized, token failed"
	msgNotAdmin           = "Not authorized as admin"
	msgPasswordReuse      = "New password must be different from current password"
	msgGeneric            = "An error occurred. Please try again."
	msgBadRequest         = "Invalid request body"

	msgTooManyRequests = "Too many requests from this IP, please try again later."
	msgTooManyLogins   = "Too many login attempts from this IP, please try again after an hour."

	msgCaptchaRequired = "CAPTCHA verification required"
	msgCaptchaFailed   = "CAPTCHA verification failed"
	msgCaptchaError    = "Error verifying CAPTCHA"

	msgResetRequested = "If an account with that email exists, a password reset link has been sent."
)

type statusResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusResponse{Status: status < http.StatusBadRequest, Message: message})
}

// errorResponse maps a service error onto the status and message sent to
// the client. Causes of internal failures never reach the client.
func errorResponse(err error) (int, string) {
	var violation *policy.Violation
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusLocked, msgAccountLocked
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, msgInvalidResetToken
	case errors.As(err, &violation):
		return http.StatusBadRequest, violation.Reason
	case errors.Is(err, common.ErrPasswordReuse):
		return http.StatusBadRequest, msgPasswordReuse
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), common.ErrorValidation.Error()+": ")
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, msgAlreadyExists
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, msgTokenFailed
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, msgNotAdmin
	default:
		return http.StatusInternalServerError, msgGeneric
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, message := errorResponse(err)
	writeMessage(w, status, message)
}

const maxBodyBytes = 64 << 10

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
