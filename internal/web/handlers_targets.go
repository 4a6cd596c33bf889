package web

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kafkasder-git/starter-function-sub002/internal/core"
)

// healthTimeout bounds the database ping.
const healthTimeout = 2 * time.Second

// handleListTargets lists the registered import targets.
func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"targets":     s.service.Targets(),
		"maxFileSize": s.cfg.Import.MaxFileSize,
	})
}

// handleTemplate downloads the target's sample file.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.Target(targetParam(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if t.Template == nil {
		respondError(w, r, fmt.Errorf("%w: %s has no template", core.ErrUnknownTarget, t.Info.Key))
		return
	}

	var buf bytes.Buffer
	if err := t.Template(&buf); err != nil {
		respondError(w, r, err)
		return
	}

	name := t.TemplateName
	if name == "" {
		name = t.Info.Key + "-template.csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

type healthResponse struct {
	Status     string                `json:"status"`
	Database   string                `json:"database"`
	ActiveRuns int                   `json:"activeRuns"`
	Limiter    core.RunLimiterStatus `json:"limiter"`
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Database:   "disabled",
		ActiveRuns: len(s.service.ActiveRuns()),
		Limiter:    s.service.LimiterStatus(),
	}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			resp.Status, resp.Database = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, r, status, resp)
}
