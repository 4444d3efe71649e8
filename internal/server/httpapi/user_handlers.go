package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/gorilla/mux"
)

type profileRequest struct {
	ID     string  `json:"_id"`
	Name   *string `json:"name"`
	Title  *string `json:"title"`
	Role   *string `json:"role"`
	Email  *string `json:"email"`
	Active *bool   `json:"isActive"`
}

func (s *HTTPServer) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	update := models.ProfileUpdate{Name: req.Name, Title: req.Title, Role: req.Role, Identity: req.Email, Active: req.Active}
	a, err := s.deps.Admin.UpdateProfile(r.Context(), accountFrom(r.Context()), req.ID, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Status: true, Message: "User updated successfully", User: a})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
	Role     string `json:"role"`
	Title    string `json:"title"`
}

// register creates an account. A welcome message that could not be sent
// does not undo the creation; the response says so.
func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	a, err := s.deps.Admin.Register(r.Context(), services.NewAccount{
		Name:       req.Name,
		Title:      req.Title,
		Role:       req.Role,
		Email:      req.Email,
		Password:   req.Password,
		Privileged: req.IsAdmin,
	})
	switch {
	case errors.Is(err, services.ErrWelcomeNotSent):
		writeJSON(w, http.StatusCreated, userResponse{Status: true, Message: "User created, but the welcome email could not be sent", User: a})
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusCreated, userResponse{Status: true, Message: "User created successfully", User: a})
	}
}

func (s *HTTPServer) team(w http.ResponseWriter, r *http.Request) {
	team, err := s.deps.Admin.Team(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

type activationRequest struct {
	Active *bool `json:"isActive"`
}

func (s *HTTPServer) setActive(w http.ResponseWriter, r *http.Request) {
	var req activationRequest
	if err := decode(w, r, &req); err != nil || req.Active == nil {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	if err := s.deps.Admin.SetActive(r.Context(), mux.Vars(r)["id"], *req.Active); err != nil {
		writeError(w, err)
		return
	}

	state := "disabled"
	if *req.Active {
		state = "activated"
	}
	writeMessage(w, http.StatusOK, "User account has been "+state+" successfully")
}

func (s *HTTPServer) unlock(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Admin.Unlock(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "User account has been unlocked successfully")
}

func (s *HTTPServer) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Admin.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted successfully")
}
