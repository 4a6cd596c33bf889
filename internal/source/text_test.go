package source

import (
	"bytes"
	"io"
	"testing"
)

func TestTextReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"bom stripped", append([]byte{0xEF, 0xBB, 0xBF}, "a,b"...), "a,b"},
		{"no bom", []byte("a,b"), "a,b"},
		{"empty", []byte{}, ""},
		{"only bom", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"partial bom kept as invalid bytes", []byte{0xEF, 0xBB, 'x'}, "??x"},
		{"invalid byte replaced", []byte("ad\xffsoyad"), "ad?soyad"},
		{"turkish text intact", []byte("Şehri,Ülkesi"), "Şehri,Ülkesi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewTextReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextReader_TinyBuffer(t *testing.T) {
	r := NewTextReader(bytes.NewReader([]byte("İzmir")))

	var out []byte
	p := make([]byte, 1)
	for {
		n, err := r.Read(p)
		out = append(out, p[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if string(out) != "İzmir" {
		t.Errorf("got %q, want %q", out, "İzmir")
	}
}
