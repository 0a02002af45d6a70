package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rdt-project/auth-service/internal/config"
	"github.com/rdt-project/auth-service/internal/model"
	"github.com/rdt-project/auth-service/internal/repository"
	"github.com/rdt-project/auth-service/internal/service"
)

// UserStore is the slice of the user repository the handlers use outside the
// login policy (registration and profile lookup).
type UserStore interface {
	Create(ctx context.Context, username, email, password string, cost int) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users UserStore
	Auth  *service.AuthService
}

func NewAuthHandler(cfg config.Config, users UserStore, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Auth: auth}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResp struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// Login runs one attempt through the login policy engine and returns a signed
// bearer token on success. All policy outcomes (bad credentials, disabled,
// locked) come back as business codes inside an HTTP 200 envelope.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		var authErr *service.Error
		if errors.As(err, &authErr) {
			return fail(c, authErr.Code, authErr.Message)
		}
		c.Logger().Errorf("login failed for %q: %v", req.Username, err)
		return fail(c, http.StatusInternalServerError, "login failed")
	}

	return ok(c, res)
}

// Logout acknowledges the request without invalidating anything. Tokens are
// short-lived and there is no server-side session to tear down; clients drop
// the token locally.
func (h *AuthHandler) Logout(c echo.Context) error {
	return ok(c, nil)
}

// Register creates an active account with a hashed password.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}
	if len(req.Password) < 8 {
		return badRequest(c, "password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Username, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return fail(c, http.StatusConflict, "username already exists")
		}
		c.Logger().Errorf("create user %q: %v", req.Username, err)
		return fail(c, http.StatusInternalServerError, "create user failed")
	}

	return ok(c, registerResp{ID: id, Username: req.Username})
}

// Me returns the identity snapshot of the authenticated caller. The JWT
// middleware has already validated the token and stored its subject.
func (h *AuthHandler) Me(c echo.Context) error {
	username, _ := c.Get("username").(string)
	if username == "" {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fail(c, http.StatusUnauthorized, "unauthorized")
		}
		c.Logger().Errorf("load user %q: %v", username, err)
		return fail(c, http.StatusInternalServerError, "load user failed")
	}

	return ok(c, service.UserInfo{ID: u.ID, Username: u.Username, Status: u.Status})
}
