package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"

	apperrors "secure-chat/errors"
)

// DefaultMaxFrameSize bounds a single frame, delimiter excluded.
const DefaultMaxFrameSize = 4096

// Reader splits a byte stream into newline-terminated frames.
// A trailing "\r" is dropped so CRLF clients work unchanged.
// Reader is not safe for concurrent use; each connection has one reading goroutine.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader, maxFrameSize int) *Reader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	scanner := bufio.NewScanner(r)
	// +2 leaves room for the "\r\n" delimiter.
	scanner.Buffer(make([]byte, 0, min(maxFrameSize+2, 4096)), maxFrameSize+2)
	scanner.Split(bufio.ScanLines)
	return &Reader{scanner: scanner}
}

// ReadFrame returns the next frame. It returns io.EOF once the peer closed the
// stream cleanly and ErrFrameTooLarge for an oversized frame. After any error
// the Reader is unusable.
func (r *Reader) ReadFrame() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	err := r.scanner.Err()
	switch {
	case err == nil:
		return "", io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return "", apperrors.ErrFrameTooLarge
	default:
		return "", err
	}
}

// WriteFrame writes one frame and its delimiter in a single Write call.
// Embedded line breaks would split the frame in two on the other side, so they
// are flattened to spaces.
func WriteFrame(w io.Writer, frame string) error {
	if strings.ContainsAny(frame, "\r\n") {
		frame = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(frame)
	}
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
