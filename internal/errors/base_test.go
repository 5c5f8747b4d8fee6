package errors

import (
	"io"
	"testing"
)

var errWrapped = New("wrapped error")

func TestWrap(t *testing.T) {
	err := Wrap(errWrapped, "Hello, Wrapped!")
	if err.Error() != "Hello, Wrapped!, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}
	if !Is(err, errWrapped) {
		t.Fatalf("wrapped error lost its cause: %+v", err)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "ignored"); err != nil {
		t.Fatalf("expected nil, got %+v", err)
	}
}

func TestMark(t *testing.T) {
	kind := New("connection broken")
	err := Mark(io.ErrUnexpectedEOF, kind)

	if !Is(err, kind) {
		t.Fatalf("marked error does not match kind: %+v", err)
	}
	if !Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("marked error lost its cause: %+v", err)
	}
	if err.Error() != "connection broken, err: unexpected EOF" {
		t.Fatalf("error mismatch: %q", err.Error())
	}
	if again := Mark(err, kind); again != err {
		t.Fatalf("marking twice should be a no-op")
	}
}
