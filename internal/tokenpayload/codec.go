// Package tokenpayload implements the versioned binary envelope used to
// persist and transmit a Principal: a symmetric reader/writer pairing a
// claims.Principal with a side-table of string properties, grounded on the
// teacher's server/internal base64url-wrapped-bytes convention
// (server/internal/codec.go) but carrying the bit-exact layout mandated by
// spec §4.3/§6.1 instead of protobuf, for compatibility with the legacy
// envelope format this engine's wire contract promises to keep readable.
package tokenpayload

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Version is the only envelope version this codec writes. Any other value
// read from the stream yields a nil principal, per spec.
const Version int32 = 5

// ParseError wraps a malformed or truncated envelope.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("tokenpayload: parse error: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Err: err}
}

const sentinel = "\x00"

type writer struct {
	w   io.Writer
	err error
}

func newWriter(w io.Writer) *writer { return &writer{w: w} }

func (w *writer) writeInt32(v int32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, w.err = w.w.Write(buf[:])
}

func (w *writer) writeBool(v bool) {
	if v {
		w.writeInt32(1)
	} else {
		w.writeInt32(0)
	}
}

func (w *writer) writeString(s string) {
	if w.err != nil {
		return
	}
	w.writeInt32(int32(len(s)))
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

// writeDefaulted writes sentinel when s equals def, else the raw string.
func (w *writer) writeDefaulted(s, def string) {
	if s == def {
		w.writeString(sentinel)
		return
	}
	w.writeString(s)
}

type reader struct {
	r   *bufio.Reader
	err error
}

func newReader(r io.Reader) *reader { return &reader{r: bufio.NewReader(r)} }

func (r *reader) readInt32() int32 {
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	_, r.err = io.ReadFull(r.r, buf[:])
	if r.err != nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(buf[:]))
}

func (r *reader) readBool() bool {
	return r.readInt32() != 0
}

func (r *reader) readString() string {
	if r.err != nil {
		return ""
	}
	n := r.readInt32()
	if r.err != nil {
		return ""
	}
	if n < 0 {
		r.err = errors.New("negative string length")
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = err
		return ""
	}
	if !utf8.Valid(buf) {
		r.err = errors.New("invalid utf-8 in string field")
		return ""
	}
	return string(buf)
}

func (r *reader) readDefaulted(def string) string {
	s := r.readString()
	if s == sentinel {
		return def
	}
	return s
}
