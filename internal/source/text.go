package source

// text.go cleans raw bytes before CSV parsing: a leading UTF-8 byte order
// mark is dropped and invalid UTF-8 sequences become '?'.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewTextReader wraps r so that it yields valid UTF-8 without a BOM.
func NewTextReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return &sanitizer{src: br}
}

// sanitizer re-encodes its source rune by rune. Runes that do not fit in the
// caller's buffer are held in pending for the next Read.
type sanitizer struct {
	src     *bufio.Reader
	pending []byte
	err     error
}

func (s *sanitizer) Read(p []byte) (int, error) {
	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	var buf [utf8.UTFMax]byte
	for n < len(p) && s.err == nil {
		r, size, err := s.src.ReadRune()
		if err != nil {
			s.err = err
			break
		}

		var enc []byte
		if r == utf8.RuneError && size == 1 {
			enc = []byte{'?'}
		} else {
			enc = buf[:utf8.EncodeRune(buf[:], r)]
		}

		c := copy(p[n:], enc)
		n += c
		if c < len(enc) {
			s.pending = append(s.pending, enc[c:]...)
		}
	}

	if n > 0 || len(s.pending) > 0 {
		return n, nil
	}
	return 0, s.err
}
