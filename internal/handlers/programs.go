package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/response"
	"github.com/programhub/apiserver/internal/services"
)

// ProgramHandler provides program setting endpoints.
type ProgramHandler struct {
	programService *services.ProgramService
	logger         *slog.Logger
}

func NewProgramHandler(programService *services.ProgramService, logger *slog.Logger) *ProgramHandler {
	return &ProgramHandler{programService: programService, logger: logger}
}

// ProgramRouter registers the admin program routes.
func ProgramRouter(r chi.Router, h *ProgramHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware, RequireAdmin)

	r.Get("/", h.ListPrograms)
	r.Post("/", h.CreateProgram)
	r.Route("/{programID}", func(r chi.Router) {
		r.Get("/", h.GetProgram)
		r.Put("/", h.UpdateProgram)
		r.Patch("/", h.ActivateProgram)
		r.Delete("/", h.DeleteProgram)
	})
}

// PublicRouter registers the unauthenticated program routes.
func PublicRouter(r chi.Router, h *ProgramHandler) {
	r.Get("/program/active", h.GetActiveProgram)
}

// ActivationResponse is the data of an activation.
type ActivationResponse struct {
	ID       uuid.UUID  `json:"id"`
	Slug     string     `json:"slug"`
	PrevID   *uuid.UUID `json:"prevId,omitempty"`
	PrevSlug string     `json:"prevSlug,omitempty"`
}

// RemovalResponse is the data of a deletion.
type RemovalResponse struct {
	ID           uuid.UUID  `json:"id"`
	Slug         string     `json:"slug"`
	PromotedID   *uuid.UUID `json:"promotedId,omitempty"`
	PromotedSlug string     `json:"promotedSlug,omitempty"`
}

func (h *ProgramHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.programService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.Success(w, http.StatusOK, "Program settings fetched", programs)
}

func (h *ProgramHandler) GetProgram(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "programID", "program setting")
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	program, err := h.programService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.Success(w, http.StatusOK, "Program Setting found", program)
}

func (h *ProgramHandler) GetActiveProgram(w http.ResponseWriter, r *http.Request) {
	program, err := h.programService.GetActive(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.Success(w, http.StatusOK, "Active program found", program)
}

func (h *ProgramHandler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	actor, _ := userFromContext(r.Context())

	var req services.ProgramInput
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	program, err := h.programService.Create(r.Context(), actor.ID, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.Success(w, http.StatusCreated, "Program setting created successfully", program)
}

func (h *ProgramHandler) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	actor, _ := userFromContext(r.Context())
	id, err := parseID(r, "programID", "program setting")
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var req services.ProgramInput
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	program, err := h.programService.Update(r.Context(), actor.ID, id, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.Success(w, http.StatusOK, "Program setting updated successfully", program)
}

func (h *ProgramHandler) ActivateProgram(w http.ResponseWriter, r *http.Request) {
	actor, _ := userFromContext(r.Context())
	id, err := parseID(r, "programID", "program setting")
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	activation, err := h.programService.Activate(r.Context(), actor.ID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	data := ActivationResponse{ID: activation.Program.ID, Slug: activation.Program.Slug}
	message := "Program setting activated with no former active program"
	switch {
	case activation.AlreadyActive:
		message = "Program setting is already active"
	case activation.Previous != nil:
		message = "Program setting activated successfully"
		prevID := activation.Previous.ID
		data.PrevID = &prevID
		data.PrevSlug = activation.Previous.Slug
	}
	response.Success(w, http.StatusOK, message, data)
}

func (h *ProgramHandler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	actor, _ := userFromContext(r.Context())
	id, err := parseID(r, "programID", "program setting")
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	removal, err := h.programService.Delete(r.Context(), actor.ID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	data := RemovalResponse{ID: removal.Program.ID, Slug: removal.Program.Slug}
	if removal.Promoted != nil {
		promotedID := removal.Promoted.ID
		data.PromotedID = &promotedID
		data.PromotedSlug = removal.Promoted.Slug
	}
	response.Success(w, http.StatusOK, "Program setting deleted successfully", data)
}
