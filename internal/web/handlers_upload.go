package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/core"
	"github.com/kafkasder-git/starter-function-sub002/internal/logging"
	"github.com/kafkasder-git/starter-function-sub002/internal/source"
)

// multipartOverhead is the slack allowed on top of the file size limit for
// multipart framing and other form fields.
const multipartOverhead = 1 << 20

// multipartMemory is how much of a form is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// importResponse is returned when a run starts.
type importResponse struct {
	RunID     uuid.UUID     `json:"runId"`
	Target    string        `json:"target"`
	FileName  string        `json:"fileName"`
	Format    source.Format `json:"format"`
	Records   int           `json:"records"`
	Truncated int           `json:"truncated"`
}

// handleImport reads the multipart "file" field and starts a run.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	key := targetParam(r)
	if _, err := s.service.Target(key); err != nil {
		respondError(w, r, err)
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			respondError(w, r, err)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err))
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		respondError(w, r, fmt.Errorf("%w (%d bytes)", source.ErrFileTooLarge, maxSize))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	runID, ds, err := s.service.ImportFile(ctx, key, header.Filename, file, maxSize)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.ForRun(ctx, runID, key).Info("import accepted",
		"file", header.Filename,
		"size", header.Size,
		"records", len(ds.Records),
		"truncated", ds.Truncated,
	)

	w.Header().Set("Location", fmt.Sprintf("/api/import/%s/result", key))
	writeJSON(w, r, http.StatusAccepted, importResponse{
		RunID:     runID,
		Target:    key,
		FileName:  header.Filename,
		Format:    ds.Format,
		Records:   len(ds.Records),
		Truncated: ds.Truncated,
	})
}

// handleProgress streams progress as Server-Sent Events. Each update is a
// "progress" event whose id is the processed count. The stream ends with a
// "complete" event carrying the final snapshot.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	key := targetParam(r)
	updates, unsubscribe, err := s.service.Subscribe(key)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	var last bulkimport.Progress
	for {
		select {
		case p, ok := <-updates:
			if !ok {
				if p, err = s.service.Progress(key); err == nil {
					last = p
				}
				writeEvent(w, "complete", last.Processed, last)
				rc.Flush()
				return
			}
			last = p
			writeEvent(w, "progress", p.Processed, p)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, id int, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
}

// handleCancel asks the target's run to stop. Cancelling an idle target
// succeeds.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	key := targetParam(r)
	if err := s.service.Cancel(key); err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "target", key).Info("cancel requested")

	flags, _ := s.service.Flags(key)
	writeJSON(w, r, http.StatusAccepted, map[string]any{
		"status": "cancelling",
		"flags":  flags,
	})
}

// handleResult returns the latest run's summary with the first failures.
// It waits for an active run unless wait=false, which answers 202 with the
// current progress instead.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	key := targetParam(r)

	if !parseBoolParam(r, "wait", true) {
		flags, err := s.service.Flags(key)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if flags.IsImporting {
			p, _ := s.service.Progress(key)
			writeJSON(w, r, http.StatusAccepted, p)
			return
		}
	}

	res, err := s.service.Result(r.Context(), key)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleErrorsCSV downloads every failure of the latest run.
func (s *Server) handleErrorsCSV(w http.ResponseWriter, r *http.Request) {
	key := targetParam(r)

	var buf bytes.Buffer
	if err := s.service.ExportErrors(key, &buf); err != nil {
		respondError(w, r, err)
		return
	}

	name := fmt.Sprintf("%s-errors-%s.csv", key, time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

// handleClear discards the target's results.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	key := targetParam(r)
	if err := s.service.Clear(key); err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "target", key).Info("results cleared")
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory lists persisted runs, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := targetParam(r)
	limit := parseIntParam(r, "limit", 20, maxHistoryLimit)

	runs, err := s.service.History(r.Context(), key, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"runs": runs})
}
