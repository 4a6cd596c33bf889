package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kafkasder-git/starter-function-sub002/internal/core"
	"github.com/kafkasder-git/starter-function-sub002/internal/person"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("IMPORT_BATCH_DELAY", "0s")
	t.Setenv("IMPORT_RETRY_BASE_DELAY", "0s")
}

func writeFile(t *testing.T, name string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_DryRunTemplate(t *testing.T) {
	isolate(t)

	var tmpl bytes.Buffer
	if err := person.WriteTemplate(&tmpl); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), person.TemplateFileName)
	if err := os.WriteFile(path, tmpl.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-file", path, "-dry-run"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v (stderr %s)", err, stderr.String())
	}
	if got := stdout.String(); !strings.HasPrefix(got, "3 of 3 records succeeded") {
		t.Errorf("stdout = %q, want 3 of 3 records succeeded", got)
	}
}

func TestRun_DryRunWritesErrors(t *testing.T) {
	isolate(t)

	header := append([]string(nil), person.TemplateHeaders...)
	good := []string{"", "Ayşe Çelik", "45678901234", "Türk", "Türkiye", "Bursa", "Nilüfer", "Nilüfer Mah.", "Nilüfer Mah. No:5",
		"2", "", "", "05554567890", "2024-02-01", "Merkez Birim", "Yardım Alanı", "Üye", "Bursa", "100.00", ""}
	bad := append([]string(nil), good...)
	bad[1] = "A"
	bad[2] = "56789012345"
	path := writeFile(t, "people.csv", [][]string{header, good, bad})
	errorsOut := filepath.Join(t.TempDir(), "errors.csv")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-file", path, "-dry-run", "-errors-out", errorsOut}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v (stderr %s)", err, stderr.String())
	}
	if got := stdout.String(); !strings.HasPrefix(got, "1 of 2 records succeeded") {
		t.Errorf("stdout = %q, want 1 of 2 records succeeded", got)
	}

	data, err := os.ReadFile(errorsOut)
	if err != nil {
		t.Fatalf("errors file: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse errors file: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("errors file has %d rows, want header + 1", len(rows))
	}
}

func TestRun_Errors(t *testing.T) {
	isolate(t)

	empty := writeFile(t, "empty.csv", [][]string{person.TemplateHeaders})

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no file flag", []string{"-dry-run"}, core.ErrNoFile},
		{"unknown target", []string{"-dry-run", "-file", empty, "-target", "donations"}, core.ErrUnknownTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			if !errors.Is(err, tt.want) {
				t.Errorf("run() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	if got := describe(core.ErrNoFile); !strings.Contains(got, "Code: FILE005") {
		t.Errorf("describe(ErrNoFile) = %q, want FILE005", got)
	}
	if got := describe(errors.New("open x: no such file")); got != "open x: no such file" {
		t.Errorf("describe(plain) = %q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("loadDotEnv(missing) error = %v, want nil", err)
	}

	t.Setenv("IMPORT_BATCH_SIZE", "")
	os.Unsetenv("IMPORT_BATCH_SIZE")
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("IMPORT_BATCH_SIZE=25\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("IMPORT_BATCH_SIZE"); got != "25" {
		t.Errorf("IMPORT_BATCH_SIZE = %q, want 25", got)
	}
}
