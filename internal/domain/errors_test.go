package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestChunkErrors_Joined(t *testing.T) {
	cause := errors.New("boom")
	err := errors.Join(
		&ChunkError{ChunkID: "doc_1", Err: cause},
		fmt.Errorf("wrapped: %w", &ChunkError{ChunkID: "doc_3", Err: ErrIndexUnavailable}),
	)

	got := ChunkErrors(err)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunk errors, got %d", len(got))
	}
	if got[0].ChunkID != "doc_1" || got[1].ChunkID != "doc_3" {
		t.Errorf("unexpected ids: %s, %s", got[0].ChunkID, got[1].ChunkID)
	}
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Error("joined error should match ErrIndexUnavailable")
	}
}

func TestChunkErrors_Nil(t *testing.T) {
	if got := ChunkErrors(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestChunkError_Message(t *testing.T) {
	err := &ChunkError{ChunkID: "doc_2", Err: errors.New("timeout")}
	if err.Error() != "chunk doc_2: timeout" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
