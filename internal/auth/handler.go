package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/roster-app/roster/internal/platform/httpx"
	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

const credentialRateWindow = time.Minute

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessions       *Sessions
	sessionManager *shared.SessionManager
	loginRateLimit int
}

// NewHandler constructs a Handler instance. loginRateLimit bounds login and
// registration attempts per client IP per minute; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, sessions *Sessions, sessionManager *shared.SessionManager, loginRateLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessions:       sessions,
		sessionManager: sessionManager,
		loginRateLimit: loginRateLimit,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/auth/csrf", h.handleCSRF)
	r.Group(func(gr chi.Router) {
		if h.loginRateLimit > 0 {
			gr.Use(httprate.Limit(h.loginRateLimit, credentialRateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many attempts, try again later")
				}),
			))
		}
		gr.Post("/auth/register", h.handleRegister)
		gr.Post("/auth/login", h.handleLogin)
	})
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/user/permissions", h.handleMyPermissions)
	r.Get("/permissions", h.handleCatalog)
}

// permissionList accepts either a JSON array or a comma-separated string.
type permissionList []string

func (p *permissionList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*p = list
		return nil
	}
	var csv string
	if err := json.Unmarshal(data, &csv); err != nil {
		return fmt.Errorf("permissions must be a list or a comma-separated string")
	}
	*p = strings.Split(csv, ",")
	return nil
}

type registerRequest struct {
	Username    string         `json:"username"`
	Password    string         `json:"password"`
	Permissions permissionList `json:"permissions"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Message   string   `json:"message"`
	User      UserView `json:"user"`
	CSRFToken string   `json:"csrf_token,omitempty"`
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		created, err := h.sessions.Anonymous(r.Context())
		if err != nil {
			h.fail(w, "create anonymous session", err)
			return
		}
		sess = created
		h.sessionManager.WriteCookie(w, sess)
	}
	token, err := h.sessions.EnsureCSRF(r.Context(), sess)
	if err != nil {
		h.fail(w, "issue csrf token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Register(r.Context(), RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Permissions: req.Permissions,
	})
	if err != nil {
		h.fail(w, "register user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userResponse{Message: "User registered successfully", User: user.View()})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, user, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	if previous := h.sessionManager.TokenFromRequest(r); previous != "" {
		if err := h.sessions.Logout(r.Context(), previous); err != nil {
			h.logger.Warn("drop previous session", slog.Any("error", err))
		}
	}
	h.sessionManager.WriteCookie(w, sess)
	httpx.JSON(w, http.StatusOK, userResponse{
		Message:   "Logged in successfully",
		User:      user.View(),
		CSRFToken: sess.CSRFToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := h.sessionManager.TokenFromRequest(r); token != "" {
		if err := h.sessions.Logout(r.Context(), token); err != nil {
			h.fail(w, "logout", err)
			return
		}
	}
	h.sessionManager.ClearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		httpx.RespondError(w, rbac.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"username":    user.Username,
		"permissions": user.Permissions,
	})
}

type catalogEntry struct {
	Name        rbac.Permission `json:"name"`
	Description string          `json:"description"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	perms := rbac.AllPermissions().Slice()
	entries := make([]catalogEntry, 0, len(perms))
	for _, p := range perms {
		entries = append(entries, catalogEntry{Name: p, Description: p.Description()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": entries})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
