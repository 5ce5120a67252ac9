package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWalksWrapChain(t *testing.T) {
	base := New(Unauthenticated, "token expired")
	wrapped := fmt.Errorf("verify bearer: %w", base)
	if KindOf(wrapped) != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", KindOf(wrapped))
	}
}

func TestKindOfUnclassifiedIsInternal(t *testing.T) {
	err := errors.New("pq: connection reset")
	if KindOf(err) != Internal {
		t.Fatalf("expected internal, got %v", KindOf(err))
	}
	if Message(err) != "internal error" {
		t.Fatalf("raw error message leaked: %q", Message(err))
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(Unavailable, "storage unreachable", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause lost in wrap")
	}
	if Message(err) != "storage unreachable" {
		t.Fatalf("unexpected message: %q", Message(err))
	}
	if !IsKind(err, Unavailable) {
		t.Fatal("expected unavailable kind")
	}
}
