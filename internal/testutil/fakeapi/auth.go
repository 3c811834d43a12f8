package fakeapi

import (
	"net/http"
)

type credentialsResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	data, ok := bind[LoginRequest](w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	acc, found := s.accounts[data.Email]
	if !found || acc.password != data.Password {
		s.mu.Unlock()
		serviceError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	creds := s.issueLocked(acc.user.ID)
	s.mu.Unlock()

	renderJSON(w, credentialsResponse(creds))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		BusinessName string `json:"business_name"`
		SupportEmail string `json:"support_email"`
	}
	type RegisterResponse struct {
		credentialsResponse
		User     any      `json:"user"`
		Business any      `json:"business"`
		Roles    []string `json:"roles"`
	}

	data, ok := bind[RegisterRequest](w, r)
	if !ok {
		return
	}
	if data.Email == "" || data.Password == "" || data.BusinessName == "" {
		serviceError(w, "Email, password and business name are required", http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[data.Email]; exists {
		s.mu.Unlock()
		serviceError(w, "Email has already been taken", http.StatusUnprocessableEntity)
		return
	}
	user := s.addAccountLocked(data.Email, data.Password, data.BusinessName, data.SupportEmail)
	acc := s.byID[user.ID]
	creds := s.issueLocked(user.ID)
	s.mu.Unlock()

	renderJSON(w, RegisterResponse{
		credentialsResponse: credentialsResponse(creds),
		User:                acc.user,
		Business:            acc.business,
		Roles:               acc.user.Roles,
	})
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	type RefreshResponse struct {
		credentialsResponse
		Roles []string `json:"roles,omitempty"`
	}

	data, ok := bind[refreshTokenRequest](w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	hook, status := s.refreshHook, s.refreshStatus
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if status != 0 {
		serviceError(w, "Refresh failed", status)
		return
	}

	s.mu.Lock()
	userID, found := s.refresh[data.RefreshToken]
	if !found {
		s.mu.Unlock()
		serviceError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}
	// refresh tokens are single use
	delete(s.refresh, data.RefreshToken)
	creds := s.issueLocked(userID)
	roles := s.refreshRoles
	s.mu.Unlock()

	renderJSON(w, RefreshResponse{credentialsResponse: credentialsResponse(creds), Roles: roles})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	data, ok := bind[refreshTokenRequest](w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.refresh, data.RefreshToken)
	s.revoked = append(s.revoked, data.RefreshToken)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, accountFrom(r).user)
}
