package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nftform/internal/registration/models"
	"nftform/internal/registration/validation"
	dErrors "nftform/pkg/domain-errors"
	"nftform/pkg/platform/httputil"
	"nftform/pkg/requestcontext"
)

// Service defines the registration operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, fields validation.RegistrationFields) (*models.RegistrationResult, error)
	CheckExists(ctx context.Context, email string) error
	Recover(ctx context.Context, fields validation.RecoveryFields) (*models.RecoveryResult, error)
}

// Handler serves the check-email, entry-form and recover-prompt endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a new registration Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/check-email", h.handleCheckEmail)
	r.Post("/entry-form", h.handleEntryForm)
	r.Post("/recover-prompt", h.handleRecoverPrompt)
	r.Get("/recover-prompt", h.handleRecoverPrompt)
}

func (h *Handler) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeAndPrepare[checkEmailRequest](r, wrongFields)
	if err != nil {
		h.rejectInput(ctx, "check-email", err)
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.CheckExists(ctx, req.email); err != nil {
		h.logFailure(ctx, "check-email", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkEmailResponse{Success: "it does"})
}

func (h *Handler) handleEntryForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeAndPrepare[entryFormRequest](r, wrongFields)
	if err != nil {
		h.rejectInput(ctx, "entry-form", err)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Register(ctx, req.fields)
	if err != nil {
		h.logFailure(ctx, "entry-form", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entryFormResponse{AccessCode: result.AccessCode})
}

func (h *Handler) handleRecoverPrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req *recoverPromptRequest
	var err error
	if r.Method == http.MethodGet {
		req = recoverPromptFromQuery(r.URL.Query())
		err = req.Validate()
	} else {
		req, err = httputil.DecodeAndPrepare[recoverPromptRequest](r, wrongFields)
	}
	if err != nil {
		h.rejectInput(ctx, "recover-prompt", err)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Recover(ctx, req.fields)
	if err != nil {
		h.logFailure(ctx, "recover-prompt", err)
		// A failed match is a bad submission here, not a missing resource.
		if dErrors.Is(err, dErrors.CodeNotFound) {
			httputil.WriteErrorMessage(w, http.StatusBadRequest, "No email exists")
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recoverPromptResponse{Prompt: result.Prompt})
}

// MethodNotAllowed answers unsupported verbs on known routes.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusBadRequest, "only POST allowed")
}

func (h *Handler) rejectInput(ctx context.Context, endpoint string, err error) {
	h.logger.InfoContext(ctx, "fields are wrong",
		"endpoint", endpoint,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}

func (h *Handler) logFailure(ctx context.Context, endpoint string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "request failed",
			"endpoint", endpoint,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return
	}
	h.logger.InfoContext(ctx, "request rejected",
		"endpoint", endpoint,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(dErrors.CodeOf(err)),
	)
}
