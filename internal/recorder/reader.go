package recorder

import (
	"bufio"
	"errors"
	"io"

	"github.com/bytedance/sonic"
)

var ErrLineTooLong = errors.New("journal line too long")

const defaultMaxLineSize = 1 << 20

// ReaderOptions controls line decoding.
type ReaderOptions struct {
	MaxLineSize int
}

// Reader decodes journal lines sequentially.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps an io.Reader with JSON-lines decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	max := opts.MaxLineSize
	if max <= 0 {
		max = defaultMaxLineSize
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), max)
	return &Reader{sc: sc}
}

// Next decodes the next non-empty line into v. It returns io.EOF at the end.
func (r *Reader) Next(v any) error {
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		return sonic.Unmarshal(line, v)
	}
	if err := r.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return ErrLineTooLong
		}
		return err
	}
	return io.EOF
}
