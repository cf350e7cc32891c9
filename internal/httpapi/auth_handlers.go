package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/user/taskpilot/internal/auth"
	"github.com/user/taskpilot/internal/store"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        userInfo `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) < 2 || len(req.Name) > 100 {
		writeError(w, http.StatusBadRequest, "Name must be 2-100 characters")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if msg := validatePassword(req.Password); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("password hashing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := s.users.Create(r.Context(), req.Email, req.Name, hash)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		slog.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User created successfully",
		"user_id": user.ID,
	})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	user, err := s.users.ByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrUserNotFound) || (err == nil && !auth.VerifyPassword(req.Password, user.PasswordHash)) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		slog.Error("signin failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		slog.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        userInfo{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

// validatePassword returns an empty string when the password is acceptable.
func validatePassword(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters"
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	switch {
	case !hasUpper:
		return "Password must contain at least one uppercase letter"
	case !hasLower:
		return "Password must contain at least one lowercase letter"
	case !hasDigit:
		return "Password must contain at least one number"
	}
	return ""
}
