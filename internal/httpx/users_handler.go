package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mithaiwala/sweetshop/internal/auth"
	"github.com/mithaiwala/sweetshop/internal/logging"
	"github.com/mithaiwala/sweetshop/internal/users"
)

type UserStore interface {
	Create(ctx context.Context, u *users.User) error
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	GetByID(ctx context.Context, id string) (*users.User, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

type UsersHandler struct {
	Store     UserStore
	Tokens    *auth.Manager
	Blacklist TokenRevoker
	Auth      func(http.Handler) http.Handler
}

func (h *UsersHandler) Register(r *chi.Mux) {
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth)
			r.Post("/logout", h.logout)
			r.Get("/me", h.me)
		})
	})
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResp struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "All credentials are required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	u := &users.User{Username: req.Username, Email: req.Email, Role: users.RoleUser}
	if err := u.SetPassword(req.Password); err != nil {
		logging.FromContext(r.Context()).Error("hash password failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if err := h.Store.Create(r.Context(), u); err != nil {
		if errors.Is(err, users.ErrExists) {
			writeError(w, http.StatusBadRequest, "User with this email or username already exists")
			return
		}
		logging.FromContext(r.Context()).Error("create user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    userResp{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role},
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "All credentials are required")
		return
	}

	u, err := h.Store.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, users.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("load user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if !u.CheckPassword(req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		logging.FromContext(r.Context()).Error("issue token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  userResp{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role},
	})
}

func (h *UsersHandler) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" && h.Blacklist != nil {
		if err := h.Blacklist.Revoke(r.Context(), token, h.Tokens.TTL()); err != nil {
			logging.FromContext(r.Context()).Error("revoke token failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *UsersHandler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Access denied.")
		return
	}
	u, err := h.Store.GetByID(r.Context(), id.UserID)
	if errors.Is(err, users.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "User not found.")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("load user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, userResp{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role})
}
