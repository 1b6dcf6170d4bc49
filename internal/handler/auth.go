package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/promptvault/internal/middleware"
	"github.com/iliyamo/promptvault/internal/service"
	"github.com/iliyamo/promptvault/internal/utils"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// CookieConfig controls the refresh token cookie. Secure is only turned
// off for plain-HTTP local development.
type CookieConfig struct {
	Secure bool
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Sessions *service.SessionManager
	Cookie   CookieConfig
	errs     errorResponder
}

func NewAuthHandler(sessions *service.SessionManager, cookie CookieConfig, log *zap.Logger, m *middleware.Metrics) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Sessions: sessions, Cookie: cookie, errs: errorResponder{log: log, metrics: m}}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email" form:"email" validate:"required,email,max=255"`
	Password string `json:"password" form:"password" validate:"required,max=72"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResp struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func bindCredentials(c echo.Context) (credentialsReq, error) {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return req, fmt.Errorf("%w: invalid body", service.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return req, fmt.Errorf("%w: a valid email and a password of at most 72 bytes are required", service.ErrInvalidInput)
	}
	return req, nil
}

// Signup registers a credential. It does not log the caller in.
func (h *AuthHandler) Signup(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return h.errs.write(c, err)
	}
	if _, err := h.Sessions.Signup(c.Request().Context(), req.Email, req.Password); err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "User created successfully"})
}

// Login returns an access token in the body and the refresh token in an
// HttpOnly cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return h.errs.write(c, err)
	}
	res, err := h.Sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.errs.write(c, err)
	}
	h.setRefreshCookie(c, res.Refresh)
	return c.JSON(http.StatusOK, newTokenResp(res.Access))
}

// Refresh rotates the refresh token. The token is read from the cookie; a
// JSON body is accepted for clients without a cookie jar.
func (h *AuthHandler) Refresh(c echo.Context) error {
	res, err := h.Sessions.Refresh(c.Request().Context(), h.refreshToken(c))
	if err != nil {
		return h.errs.write(c, err)
	}
	h.setRefreshCookie(c, res.Refresh)
	return c.JSON(http.StatusOK, newTokenResp(res.Access))
}

// Logout revokes the presented session and clears the cookie. Repeating it
// is harmless.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Sessions.Logout(c.Request().Context(), h.refreshToken(c)); err != nil {
		return h.errs.write(c, err)
	}
	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) refreshToken(c echo.Context) string {
	if ck, err := c.Cookie(refreshCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshReq
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, rt utils.RefreshToken) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    rt.Raw,
		Path:     refreshCookiePath,
		Expires:  rt.Exp,
		MaxAge:   int(h.Sessions.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func newTokenResp(at utils.AccessToken) tokenResp {
	return tokenResp{AccessToken: at.Token, TokenType: "bearer", ExpiresAt: at.Exp}
}

// ----- caller endpoints -----

type profileResp struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResp struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Profile returns the authenticated caller. It runs behind JWTAuth.
func (h *AuthHandler) Profile(c echo.Context) error {
	email, _ := c.Get(middleware.ContextUserEmail).(string)
	u, err := h.Sessions.UserByEmail(c.Request().Context(), email)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(http.StatusOK, profileResp{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt})
}

// ListSessions returns the caller's active sessions, newest first.
func (h *AuthHandler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()
	email, _ := c.Get(middleware.ContextUserEmail).(string)
	u, err := h.Sessions.UserByEmail(ctx, email)
	if err != nil {
		return h.errs.write(c, err)
	}
	list, err := h.Sessions.ActiveSessions(ctx, u.ID)
	if err != nil {
		return h.errs.write(c, err)
	}
	out := make([]sessionResp, 0, len(list))
	for _, s := range list {
		out = append(out, sessionResp{ID: s.ID, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

// RevokeAllSessions signs the caller out everywhere. Access tokens already
// issued stay valid until they expire.
func (h *AuthHandler) RevokeAllSessions(c echo.Context) error {
	ctx := c.Request().Context()
	email, _ := c.Get(middleware.ContextUserEmail).(string)
	u, err := h.Sessions.UserByEmail(ctx, email)
	if err != nil {
		return h.errs.write(c, err)
	}
	n, err := h.Sessions.RevokeAll(ctx, u.ID)
	if err != nil {
		return h.errs.write(c, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}
