package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"tally/internal/domain"
	"tally/internal/ports"
)

// Server is the transport over the core services. It also owns the station's
// armed status: the session-level default disposition stamped onto every
// accepted scan while armed. The core never sees that state except as an
// explicit argument.
type Server struct {
	manifest ports.Manifest
	scans    ports.Reconciler
	statuses ports.StatusEditor
	dash     ports.Dashboard
	log      *logrus.Logger
	validate *validator.Validate

	mu    sync.Mutex
	armed domain.Status
}

func New(manifest ports.Manifest, scans ports.Reconciler, statuses ports.StatusEditor, dash ports.Dashboard, log *logrus.Logger) *Server {
	return &Server{
		manifest: manifest,
		scans:    scans,
		statuses: statuses,
		dash:     dash,
		log:      log,
		validate: validator.New(),
		armed:    domain.StatusNone,
	}
}

// Routes returns the chi router for the station API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)

	r.Post("/manifest/import", s.handleImport)
	r.Delete("/manifest/codes/{code}", s.handleRemoveManifestCode)
	r.Post("/system/reset", s.handleSystemReset)

	r.Post("/scans", s.handleScan)
	r.Get("/scans", s.handleListScanned)
	r.Get("/scans/missing", s.handleListMissing)
	r.Post("/scans/delete", s.handleDeleteScans)
	r.Put("/scans/{code}/status", s.handleSetStatus)
	r.Put("/scans/{code}/carrier", s.handleSetCarrier)
	r.Delete("/scans/{code}", s.handleDeleteScan)

	r.Get("/stats", s.handleStats)
	r.Post("/status/armed", s.handleArmStatus)
	r.Post("/carriers/assign-unset", s.handleAssignCarriers)

	r.Get("/dashboard", s.handleDashboard)
	r.Post("/dashboard/refresh", s.handleDashboardRefresh)
	r.Post("/dashboard/reset", s.handleDashboardReset)

	r.Post("/export", s.handleExport)

	return r
}

// armedStatus returns the currently armed disposition.
func (s *Server) armedStatus() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// toggleArmed arms status, or disarms when the same status is already armed.
func (s *Server) toggleArmed(status domain.Status) domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed == status {
		s.armed = domain.StatusNone
	} else {
		s.armed = status
	}
	return s.armed
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage turns the first failed rule into a client-facing message;
// validator's own error strings expose Go struct paths.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	field := strings.ToLower(verrs[0].Field())
	switch verrs[0].Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must not be empty"
	default:
		return field + " is invalid"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps core errors onto transport codes. Conflict and NotExpected never
// reach here; they are business outcomes, not errors.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "no scan record for that code")
	case errors.Is(err, domain.ErrEmptyCode), errors.Is(err, domain.ErrEmptyCarrier):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.WithError(err).Error("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
