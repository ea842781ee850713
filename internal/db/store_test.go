package db

import (
	"errors"
	"regexp"
	"strconv"
	"testing"
)

func TestStorageError_TransientAndUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &StorageError{Op: "save_record", Err: inner}

	if !errors.Is(err, inner) {
		t.Fatal("expected Unwrap to expose the inner error")
	}
	if !err.Transient() {
		t.Fatal("storage errors must be transient so the pipeline retries")
	}

	var target interface{ Transient() bool }
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to find the Transient interface")
	}
}

func TestSaveRecordSQL_PlaceholdersMatchArgCount(t *testing.T) {
	// SaveRecord passes 29 arguments; a drifting column list fails at
	// runtime, so pin it here.
	re := regexp.MustCompile(`\$(\d+)`)
	max := 0
	for _, m := range re.FindAllStringSubmatch(saveRecordSQL, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	if max != 29 {
		t.Fatalf("expected 29 placeholders, got %d", max)
	}
}
