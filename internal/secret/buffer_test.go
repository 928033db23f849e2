package secret

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestNewFromBytes(t *testing.T) {
	source := []byte("hunter2")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer buffer.Close()

	if string(buffer.Bytes()) != "hunter2" {
		t.Errorf("expected hunter2, got %q", buffer.Bytes())
	}
	if buffer.Len() != 7 {
		t.Errorf("expected length 7, got %d", buffer.Len())
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("expected source zeroed at %d, got %d", index, value)
		}
	}
}

func TestNewFromBytes_Empty(t *testing.T) {
	if _, err := NewFromBytes(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestNew_ZeroSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestClose_Idempotent(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestBytes_PanicsAfterClose(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Error("expected panic reading a closed buffer")
		}
	}()
	buffer.Bytes()
}

func TestNew_WithoutDontDump(t *testing.T) {
	saved := madvise
	madvise = func([]byte, int) error { return unix.EINVAL }
	defer func() { madvise = saved }()

	buffer, err := NewFromBytes([]byte("hunter2"))
	if err != nil {
		t.Fatalf("expected buffer without MADV_DONTDUMP, got %v", err)
	}
	defer buffer.Close()
	if string(buffer.Bytes()) != "hunter2" {
		t.Errorf("expected hunter2, got %q", buffer.Bytes())
	}
}
