package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/programhub/apiserver/internal/response"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/internal/token"
	"github.com/programhub/apiserver/types"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth"
)

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	userService  *services.UserService
	tokens       *token.Service
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
// secureCookie marks the refresh cookie Secure, which production requires.
func NewAuthHandler(userService *services.UserService, tokens *token.Service, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// AuthRouter registers auth routes on the given router. loginLimit, when
// set, wraps the login route.
func AuthRouter(r chi.Router, h *AuthHandler, loginLimit func(http.Handler) http.Handler) {
	if loginLimit != nil {
		r.With(loginLimit).Post("/login", h.Login)
	} else {
		r.Post("/login", h.Login)
	}
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.With(h.RequireAuth).Get("/me", h.Me)
}

// RequireAuth verifies the bearer access token, loads its user and injects
// it into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}

		claims, err := h.tokens.VerifyAccess(tokenString)
		if err != nil {
			message := "Invalid access token"
			if errors.Is(err, token.ErrExpiredToken) {
				message = "Access token expired"
			}
			response.Error(w, http.StatusUnauthorized, message, nil)
			return
		}

		user, err := h.userService.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if services.KindOf(err) == services.KindNotFound {
				response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			writeServiceError(w, r, h.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireAdmin rejects authenticated users that are not admins. It must run
// after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		if !user.IsAdmin() {
			response.Error(w, http.StatusForbidden, "Access denied. Admin privileges required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Login verifies credentials, returns an access token and sets the refresh
// cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	accessToken, ok := h.issueTokens(w, r, user)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, "Login successful", AuthResponse{AccessToken: accessToken, User: &user})
}

// Refresh rotates the refresh cookie and returns a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		response.Error(w, http.StatusUnauthorized, "Refresh token missing", nil)
		return
	}

	claims, err := h.tokens.VerifyRefresh(cookie.Value)
	if err != nil {
		response.Error(w, http.StatusUnauthorized, "Invalid refresh token", nil)
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			response.Error(w, http.StatusUnauthorized, "Invalid refresh token", nil)
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	accessToken, ok := h.issueTokens(w, r, user)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, "Token refreshed", AuthResponse{AccessToken: accessToken})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	response.Success(w, http.StatusOK, "User profile fetched", user)
}

// Logout clears the refresh cookie. Tokens already issued stay valid until
// they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.refreshCookie("", -1))
	response.Success(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) issueTokens(w http.ResponseWriter, r *http.Request, user types.User) (string, bool) {
	accessToken, err := h.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return "", false
	}
	refreshToken, err := h.tokens.IssueRefresh(user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return "", false
	}
	http.SetCookie(w, h.refreshCookie(refreshToken, int(h.tokens.RefreshTTL()/time.Second)))
	return accessToken, true
}

func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken string      `json:"accessToken"`
	User        *types.User `json:"user,omitempty"`
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
