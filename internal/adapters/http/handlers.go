package httpadapter

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tally/internal/domain"
	"tally/internal/export"
)

type scanRecordJSON struct {
	Code              string    `json:"code"`
	Timestamp         time.Time `json:"timestamp"`
	PresentInManifest bool      `json:"present_in_manifest"`
	Status            string    `json:"status"`
	Carrier           *string   `json:"carrier,omitempty"`
}

func toRecordJSON(rec domain.ScanRecord) scanRecordJSON {
	return scanRecordJSON{
		Code:              rec.Code,
		Timestamp:         rec.Timestamp,
		PresentInManifest: rec.PresentInManifest,
		Status:            string(rec.Status),
		Carrier:           rec.Carrier,
	}
}

func toRecordsJSON(recs []domain.ScanRecord) []scanRecordJSON {
	out := make([]scanRecordJSON, len(recs))
	for i, rec := range recs {
		out[i] = toRecordJSON(rec)
	}
	return out
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type importRequest struct {
	Codes         []string `json:"codes" validate:"required,min=1"`
	ClearExisting bool     `json:"clear_existing"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.manifest.Import(r.Context(), req.Codes, req.ClearExisting)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":            fmt.Sprintf("import finished, %d new codes added", res.Imported),
		"imported":           res.Imported,
		"duplicates_skipped": res.DuplicatesSkipped,
	})
}

func (s *Server) handleRemoveManifestCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.manifest.Remove(r.Context(), code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "code is not in the manifest")
			return
		}
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "code removed from manifest"})
}

func (s *Server) handleSystemReset(w http.ResponseWriter, r *http.Request) {
	// Destructive; the UI confirms before calling. The core trusts that.
	if err := s.manifest.Reset(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "system reset, manifest and ledger cleared, today's dashboard kept",
	})
}

type scanRequest struct {
	Code string `json:"code" validate:"required"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.scans.Scan(r.Context(), req.Code, s.armedStatus())
	if err != nil {
		s.fail(w, err)
		return
	}

	body := map[string]any{"outcome": string(res.Outcome)}
	switch res.Outcome {
	case domain.OutcomeAccepted:
		body["message"] = fmt.Sprintf("code %s accepted", res.Record.Code)
		body["record"] = toRecordJSON(*res.Record)
	case domain.OutcomeAlreadyScanned:
		body["message"] = fmt.Sprintf("code %s was already scanned at %s",
			res.Record.Code, res.Record.Timestamp.Format(time.RFC3339))
		body["record"] = toRecordJSON(*res.Record)
	case domain.OutcomeNotExpected:
		body["message"] = "code is not in the current manifest"
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListScanned(w http.ResponseWriter, r *http.Request) {
	var (
		recs []domain.ScanRecord
		err  error
	)
	if filter := r.URL.Query().Get("status"); filter != "" {
		st, ok := domain.ParseStatus(filter)
		if !ok && filter != string(domain.StatusNone) {
			s.writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		if !ok {
			st = domain.StatusNone
		}
		recs, err = s.statuses.ListByStatus(r.Context(), st)
	} else {
		recs, err = s.statuses.ListScanned(r.Context())
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"scans": toRecordsJSON(recs),
		"total": len(recs),
	})
}

func (s *Server) handleListMissing(w http.ResponseWriter, r *http.Request) {
	missing, err := s.statuses.ListMissing(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"missing": missing,
		"total":   len(missing),
	})
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, ok := domain.ParseStatus(req.Status)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "status must be collected or failed")
		return
	}
	if err := s.statuses.SetStatus(r.Context(), chi.URLParam(r, "code"), st); err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("status set to %s", st),
	})
}

type armRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) handleArmStatus(w http.ResponseWriter, r *http.Request) {
	var req armRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, ok := domain.ParseStatus(req.Status)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "status must be collected or failed")
		return
	}
	armed := s.toggleArmed(st)
	resp := map[string]any{"armed": nil}
	if armed != domain.StatusNone {
		resp["armed"] = string(armed)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type carrierRequest struct {
	Carrier string `json:"carrier" validate:"required"`
}

func (s *Server) handleSetCarrier(w http.ResponseWriter, r *http.Request) {
	var req carrierRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.dash.SetCarrier(r.Context(), chi.URLParam(r, "code"), req.Carrier); err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("carrier set to %s", req.Carrier),
	})
}

func (s *Server) handleAssignCarriers(w http.ResponseWriter, r *http.Request) {
	var req carrierRequest
	if !s.decode(w, r, &req) {
		return
	}
	updated, err := s.dash.AssignCarrierToAllUnset(r.Context(), req.Carrier)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("carrier assigned to %d scans", updated),
		"updated": updated,
	})
}

func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.dash.DeleteScan(r.Context(), code); err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "scan deleted, code can be scanned again",
	})
}

type deleteScansRequest struct {
	Codes []string `json:"codes" validate:"required,min=1"`
}

func (s *Server) handleDeleteScans(w http.ResponseWriter, r *http.Request) {
	var req deleteScansRequest
	if !s.decode(w, r, &req) {
		return
	}
	deleted, err := s.dash.DeleteScans(r.Context(), req.Codes)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%d scans deleted", deleted),
		"deleted": deleted,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.statuses.Stats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_expected":  stats.TotalExpected,
		"total_scanned":   stats.TotalScanned,
		"total_missing":   stats.TotalMissing,
		"percent_scanned": stats.PercentScanned,
	})
}

func snapshotJSON(snap domain.Snapshot) map[string]any {
	return map[string]any{
		"carriers":        snap.Carriers,
		"total_today":     snap.TotalToday,
		"collected_today": snap.CollectedToday,
		"failed_today":    snap.FailedToday,
		"cache_info": map[string]string{
			"source":       snap.Source,
			"last_updated": snap.LastUpdated.Format(time.RFC3339),
		},
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dash.Get(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshotJSON(snap))
}

func (s *Server) handleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dash.Refresh(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshotJSON(snap))
}

func (s *Server) handleDashboardReset(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.ResetDaily(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "daily summary reset, carrier totals kept",
	})
}

// handleExport stamps the chosen carrier on every unassigned scan, then
// streams the scanned list as a workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req carrierRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.dash.AssignCarrierToAllUnset(r.Context(), req.Carrier); err != nil {
		s.fail(w, err)
		return
	}
	recs, err := s.statuses.ListScanned(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(recs) == 0 {
		s.writeError(w, http.StatusBadRequest, "nothing scanned to export")
		return
	}
	book, err := export.Workbook(recs)
	if err != nil {
		s.fail(w, err)
		return
	}
	name := export.Filename(time.Now())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := book.Write(w); err != nil {
		s.log.WithError(err).Error("stream export")
	}
}
