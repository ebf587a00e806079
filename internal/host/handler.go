// Package host exposes the operation set over HTTP for the plugin host.
// This is the stand-in for the host's own invocation boundary: every reply
// body carries a single user-displayable message, whether the call
// succeeded, was denied, or failed.
package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/ops"
	"github.com/clientbridge/clientbridge/internal/permissions"
)

// Invoker runs one call through the mediation pipeline.
type Invoker interface {
	Invoke(ctx context.Context, desc mediator.Descriptor, req mediator.Request) (string, error)
}

// Handler serves the invocation endpoints.
type Handler struct {
	logger   *slog.Logger
	invoker  Invoker
	registry *ops.Registry
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, invoker Invoker, registry *ops.Registry) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		invoker:  invoker,
		registry: registry,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register mounts the handler's routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/v1/operations", h.handleList)
	r.Post("/v1/operations/{name}", h.handleInvoke)
}

type callerPayload struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
	Role string `json:"role" validate:"required"`
}

type invokePayload struct {
	User callerPayload  `json:"user" validate:"required"`
	Args map[string]any `json:"args"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"operations": h.registry.Names()})
}

func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	op, ok := h.registry.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Unknown operation."})
		return
	}

	var payload invokePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Request body must be valid JSON."})
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Caller id and role are required."})
		return
	}
	if payload.Args == nil {
		payload.Args = map[string]any{}
	}

	params, clientID := op.Bind(payload.Args)
	req := mediator.Request{
		Caller: mediator.Caller{
			ID:   payload.User.ID,
			Name: payload.User.Name,
			Role: permissions.Role(payload.User.Role),
		},
		Args:     payload.Args,
		Params:   params,
		ClientID: clientID,
	}

	// The reply is always plain text shaped for the host; internal error
	// kinds were already logged inside the pipeline.
	reply, _ := h.invoker.Invoke(r.Context(), op.Descriptor, req)
	writeJSON(w, http.StatusOK, messageResponse{Message: reply})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
