package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/config"
	"github.com/kafkasder-git/starter-function-sub002/internal/core"
	"github.com/kafkasder-git/starter-function-sub002/internal/person"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func acceptAll(_ context.Context, batch []person.Person) ([]person.Person, error) {
	return batch, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 64 << 10},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, db Pinger) (*Server, *core.Service) {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := bulkimport.DefaultOptions()
	opts.DelayBetweenBatches = 0
	opts.Retry = bulkimport.RetryPolicy{MaxAttempts: 1}

	svc := core.NewService(core.NewRegistry(), nil, core.ServiceConfig{}, quiet)
	svc.Register(core.PersonTargetWithSink(bulkimport.BatchFunc[person.Person](acceptAll), opts, 0, quiet))
	return NewServer(svc, cfg, db), svc
}

func csvUpload(t *testing.T, name, body string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, body)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

const peopleCSV = "Ad Soyad,Kimlik No,Telefon\n" +
	"Ayşe Kara,12345678901,05551234567\n" +
	"Mehmet Demir,12345678902,\n" +
	"Ayşe Kara,12345678901,\n" +
	"X,123,\n"

func TestImportFlow(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	body, ctype := csvUpload(t, "people.csv", peopleCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/import/persons", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST import status = %d, body %s", rec.Code, rec.Body.String())
	}
	var started importResponse
	decode(t, rec, &started)
	if started.Records != 4 || started.Format != "csv" {
		t.Errorf("import response = %+v", started)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/persons/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET result status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res core.RunResult
	decode(t, rec, &res)
	if res.Run.ID != started.RunID {
		t.Errorf("result run = %v, want %v", res.Run.ID, started.RunID)
	}
	if res.State != bulkimport.StateCompleted {
		t.Errorf("state = %v, want completed", res.State)
	}
	if res.Summary.Successful != 2 || res.Summary.Duplicates != 1 {
		t.Errorf("summary = %+v, want 2 successful and 1 duplicate", res.Summary)
	}
	if res.TotalFailures != 1 || len(res.Failures) != 1 || res.Failures[0].Row != 4 {
		t.Errorf("failures = %+v (total %d)", res.Failures, res.TotalFailures)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/persons/errors.csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET errors.csv status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != "row,error,field,data" {
		t.Errorf("errors.csv = %q", rec.Body.String())
	}

	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/import/persons", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/persons/result", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("result after clear status = %d, want 404", rec.Code)
	}
	var er ErrorResponse
	decode(t, rec, &er)
	if er.Code != "IMP007" {
		t.Errorf("code = %q, want IMP007", er.Code)
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		file     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown target", "donors", "a.csv", peopleCSV, http.StatusNotFound, "IMP006"},
		{"unsupported format", "persons", "a.pdf", "x", http.StatusUnsupportedMediaType, "FILE002"},
		{"empty file", "persons", "a.csv", "Ad Soyad\n", http.StatusUnprocessableEntity, "FILE003"},
		{"too large", "persons", "a.csv", "Ad Soyad\n" + strings.Repeat("Ayşe Kara\n", 10000), http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, testConfig(), nil)
			body, ctype := csvUpload(t, tt.file, tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/import/"+tt.target, body)
			req.Header.Set("Content-Type", ctype)

			rec := do(t, s, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			var er ErrorResponse
			decode(t, rec, &er)
			if er.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", er.Code, tt.wantErr)
			}
		})
	}
}

func TestImportMissingFile(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/import/persons", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := do(t, s, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var er ErrorResponse
	decode(t, rec, &er)
	if er.Code != "FILE005" {
		t.Errorf("code = %q, want FILE005", er.Code)
	}
}

func TestFatalImportReports422Code(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	body, ctype := csvUpload(t, "bad.json", `[{"name": "A"}, {"name": "B"}]`)
	req := httptest.NewRequest(http.MethodPost, "/api/import/persons", body)
	req.Header.Set("Content-Type", ctype)
	if rec := do(t, s, req); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/persons/result", nil))
	var res core.RunResult
	decode(t, rec, &res)
	if res.State != bulkimport.StateFailed {
		t.Errorf("state = %v, want failed", res.State)
	}
	if res.Error == nil || res.Error.Code != "IMP002" {
		t.Errorf("error = %+v, want IMP002", res.Error)
	}
}

func TestProgressStream_IdleTarget(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/persons/progress", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var events []string
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	if len(events) != 2 || events[0] != "progress" || events[1] != "complete" {
		t.Errorf("events = %v, want [progress complete]", events)
	}
}

func TestCancelIdleAndResultNoWait(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/import/persons/cancel", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("cancel status = %d, want 202", rec.Code)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/persons/result?wait=false", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("result status = %d, want 404", rec.Code)
	}
}

func TestTargetsTemplateHistory(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/targets", nil))
	var list struct {
		Targets []core.TargetInfo `json:"targets"`
	}
	decode(t, rec, &list)
	if len(list.Targets) != 1 || list.Targets[0].Key != person.TargetKey {
		t.Errorf("targets = %+v", list.Targets)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/template/persons", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("template status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, person.TemplateFileName) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), strings.Join(person.TemplateHeaders[:2], ",")) {
		t.Errorf("template body starts %q", rec.Body.String()[:40])
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/persons/history?limit=500", nil))
	var hist struct {
		Runs []any `json:"runs"`
	}
	decode(t, rec, &hist)
	if rec.Code != http.StatusOK || len(hist.Runs) != 0 {
		t.Errorf("history = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
		dbWant string
	}{
		{"no database", nil, http.StatusOK, "disabled"},
		{"database ok", fakePinger{}, http.StatusOK, "ok"},
		{"database down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, testConfig(), tt.db)
			rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var h healthResponse
			decode(t, rec, &h)
			if h.Database != tt.dbWant {
				t.Errorf("database = %q, want %q", h.Database, tt.dbWant)
			}
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s, _ := newTestServer(t, cfg, nil)

	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/targets", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/targets", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := do(t, s, req); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without key", rec.Code)
	}
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Import.UploadsPerMinute = 1
	s, svc := newTestServer(t, cfg, nil)

	post := func() int {
		body, ctype := csvUpload(t, "p.csv", peopleCSV)
		req := httptest.NewRequest(http.MethodPost, "/api/import/persons", body)
		req.Header.Set("Content-Type", ctype)
		return do(t, s, req).Code
	}

	if code := post(); code != http.StatusAccepted {
		t.Fatalf("first upload = %d", code)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := svc.Result(ctx, person.TargetKey); err != nil {
		t.Fatal(err)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Errorf("second upload = %d, want 429", code)
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		if got := rl.allow("1.1.1.1"); got != want {
			t.Errorf("allow #%d = %v, want %v", i+1, got, want)
		}
	}
	if !rl.allow("2.2.2.2") {
		t.Error("other IP should have its own budget")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("1.1.1.1") {
		t.Error("budget should reset after the window")
	}

	now = now.Add(3 * time.Minute)
	rl.allow("3.3.3.3")
	if _, ok := rl.visitors["2.2.2.2"]; ok {
		t.Error("idle visitor was not pruned")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrUnknownTarget, http.StatusNotFound},
		{bulkimport.ErrAlreadyInProgress, http.StatusConflict},
		{core.ErrTooManyImports, http.StatusTooManyRequests},
		{fmt.Errorf("%w: all", bulkimport.ErrNoValidRecords), http.StatusUnprocessableEntity},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
