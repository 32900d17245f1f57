package persons

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roster-app/roster/internal/auth"
	"github.com/roster-app/roster/internal/platform/httpx"
	"github.com/roster-app/roster/internal/shared"
)

// IdempotencyHeader optionally carries a client chosen key on create.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes person operations over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers person routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	persons, err := h.service.List(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "list persons", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"persons": persons})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "get person", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreateWithKey(r.Context(), auth.ActorFromContext(r.Context()), r.Header.Get(IdempotencyHeader), req)
	if err != nil {
		h.fail(w, "create person", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Person created successfully",
		"person":  p,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), auth.ActorFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, "update person", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Person updated successfully",
		"person":  p,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), auth.ActorFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete person", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Person deleted successfully"})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// Non-numeric ids cannot name a record.
func personID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: person %q", shared.ErrNotFound, raw)
	}
	return id, nil
}
