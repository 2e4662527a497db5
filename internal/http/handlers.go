package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/services"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

const readyTimeout = 2 * time.Second

// OnboardingService is the behaviour the handlers need from the service
// layer.
type OnboardingService interface {
	Current(ctx context.Context, userID, sessionID string) (services.View, error)
	Submit(ctx context.Context, req services.SubmitRequest) (services.View, error)
	Catalog() []services.CatalogEntry
	Ready(ctx context.Context) error
}

// handleState returns the current view, creating the session if needed.
// Clients call it on load and whenever a submit answers OUT_OF_SYNC.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	params, err := ParseSessionParams(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	view, err := s.svc.Current(r.Context(), params.UserID, params.SessionID)
	if err != nil {
		s.writeServiceError(w, r, nil, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSubmitRequest(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	view, err := s.svc.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, &view, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Header("Cache-Control", "public, max-age=300").
		Body(map[string]any{"steps": s.svc.Catalog()}).
		Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.svc.Ready(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, "state store unavailable").Write(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// writeServiceError maps service errors onto status codes. view is only
// sent for refused transitions, where it carries the reissued instance.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, view *services.View, err error) {
	var (
		se *onboarding.SyncError
		te *onboarding.TransitionError
	)
	switch {
	case errors.As(err, &se):
		OutOfSyncError(se).Write(w)
	case errors.As(err, &te):
		if view != nil && view.UserID == "" {
			view = nil
		}
		TransitionError(te, view).Write(w)
	case errors.Is(err, services.ErrInvalidRequest):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, store.ErrConflict):
		ConflictError().Write(w)
	case errors.Is(err, store.ErrInvalidKey):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, store.ErrNotFound):
		NotFoundError("onboarding session not found").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Onboarding request failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldPath, r.URL.Path)
		InternalServerError().Write(w)
	}
}
