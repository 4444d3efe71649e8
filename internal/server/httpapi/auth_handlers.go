package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
)

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
}

type userResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message,omitempty"`
	User    *models.Account `json:"user"`
}

// login runs the login admission policy, the captcha precondition and the
// credential check, in that order. Only failed attempts count against the
// origin.
func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	origin := s.clientIP(r)

	if gate := s.deps.LoginGate; gate != nil {
		d, err := gate.Peek(ctx, origin)
		switch {
		case err != nil:
			s.logger.Warn(ctx, "admission gate unavailable", "policy", gate.Policy().Name, "error", err)
		case !d.Allowed:
			rejectAdmission(w, gate, d, msgTooManyLogins)
			return
		}
	}

	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	if s.deps.Captcha != nil && s.deps.Failures.Required(origin) {
		if req.CaptchaToken == "" {
			writeMessage(w, http.StatusBadRequest, msgCaptchaRequired)
			return
		}
		ok, err := s.deps.Captcha.Verify(ctx, req.CaptchaToken, origin)
		if err != nil {
			s.logger.Error(ctx, "captcha verification failed", "error", err)
			writeMessage(w, http.StatusInternalServerError, msgCaptchaError)
			return
		}
		if !ok {
			writeMessage(w, http.StatusBadRequest, msgCaptchaFailed)
			return
		}
	}

	res, err := s.deps.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) || errors.Is(err, common.ErrAccountLocked) {
			s.recordLoginFailure(r, origin)
		}
		writeError(w, err)
		return
	}

	s.deps.Failures.Clear(origin)
	http.SetCookie(w, res.Session.Cookie.HTTPCookie(res.Session.Token))
	writeJSON(w, http.StatusOK, userResponse{Status: true, User: res.Account})
}

func (s *HTTPServer) recordLoginFailure(r *http.Request, origin string) {
	s.deps.Failures.RecordFailure(origin)
	if gate := s.deps.LoginGate; gate != nil {
		if err := gate.Record(r.Context(), origin); err != nil {
			s.logger.Warn(r.Context(), "admission gate unavailable", "policy", gate.Policy().Name, "error", err)
		}
	}
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.deps.Cookie.Expired())
	writeMessage(w, http.StatusOK, "Logout successful")
}

type resetRequest struct {
	Email string `json:"email"`
}

// requestReset answers the same way whether or not the email is known.
func (s *HTTPServer) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeMessage(w, http.StatusBadRequest, "Email is required")
		return
	}

	if err := s.deps.Reset.RequestReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, msgResetRequested)
}

type confirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *HTTPServer) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	if err := s.deps.Reset.ConfirmReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset successfully")
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// changePassword replaces the session cookie: sessions issued before the
// change no longer validate.
func (s *HTTPServer) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	a := accountFrom(r.Context())
	sess, err := s.deps.Auth.ChangePassword(r.Context(), a.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "Current password is incorrect")
			return
		}
		writeError(w, err)
		return
	}

	http.SetCookie(w, sess.Cookie.HTTPCookie(sess.Token))
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse{Status: true, User: accountFrom(r.Context())})
}
