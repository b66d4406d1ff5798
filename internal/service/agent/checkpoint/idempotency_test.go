package checkpoint

import (
	"context"
	"testing"
	"time"
)

func TestIdempotencyStore_ReserveClaimsKeyOnce(t *testing.T) {
	s := NewIdempotencyStore(time.Minute)
	defer s.Stop()

	ctx := context.Background()
	ok, err := s.Reserve(ctx, "key-1")
	if err != nil || !ok {
		t.Fatalf("expected first Reserve to succeed, got ok=%v err=%v", ok, err)
	}

	ok, err = s.Reserve(ctx, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second Reserve of the same key to fail while the claim is live")
	}
}

func TestIdempotencyStore_ReleaseFreesKeyForReuse(t *testing.T) {
	s := NewIdempotencyStore(time.Minute)
	defer s.Stop()

	ctx := context.Background()
	if ok, _ := s.Reserve(ctx, "key-1"); !ok {
		t.Fatal("expected first Reserve to succeed")
	}
	if err := s.Release(ctx, "key-1"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok, err := s.Reserve(ctx, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected Reserve to succeed again after Release")
	}
}

func TestIdempotencyStore_ExpiredClaimCanBeReReserved(t *testing.T) {
	s := NewIdempotencyStore(time.Millisecond)
	defer s.Stop()

	ctx := context.Background()
	if ok, _ := s.Reserve(ctx, "key-1"); !ok {
		t.Fatal("expected first Reserve to succeed")
	}

	time.Sleep(5 * time.Millisecond)

	ok, err := s.Reserve(ctx, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected Reserve to succeed once the prior claim expired")
	}
}

func TestNewIdempotencyStore_NonPositiveTTLFallsBackToDefault(t *testing.T) {
	s := NewIdempotencyStore(-1)
	defer s.Stop()
	if s.ttl != 5*time.Minute {
		t.Fatalf("expected default ttl of 5m, got %v", s.ttl)
	}
}
