package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestCartErrorIsMatchesKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("wrapped: %w", NewCartError(OpAdd, KindLookupFailure, 3, cause))

	if !errors.Is(err, ErrLookupFailure) {
		t.Fatal("expected errors.Is(err, ErrLookupFailure)")
	}
	if errors.Is(err, ErrOutOfStock) {
		t.Fatal("lookup failure must not match ErrOutOfStock")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause should stay reachable through Unwrap")
	}
	if KindOf(err) != KindLookupFailure {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
	if KindOf(cause) != 0 {
		t.Fatal("KindOf on a plain error should be 0")
	}
}

func TestCartErrorMessage(t *testing.T) {
	err := NewCartError(OpRemove, KindNotFound, 4, ErrNotFound)
	if got, want := err.Error(), "cart remove product 4: product not in cart"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	err = NewCartError(OpUpdate, KindStorageFailure, 4, errors.New("disk full"))
	if got, want := err.Error(), "cart update product 4: cart snapshot could not be persisted: disk full"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestKindTextRoundTrip(t *testing.T) {
	n := NewNotice(NewCartError(OpAdd, KindOutOfStock, 1, nil))
	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Notice
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Kind != KindOutOfStock || back.Op != OpAdd || back.ID != n.ID {
		t.Fatalf("notice round trip mismatch: %+v vs %+v", back, n)
	}

	var k Kind
	if err := k.UnmarshalText([]byte("bogus")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
