package crypto

import (
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestSealOpenRoundTrip(t *testing.T) {
	sealer, err := New(testKey)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, err := sealer.Seal("refresh-token")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "refresh-token") {
		t.Fatalf("expected sealed value, got %q", sealed)
	}
	opened, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "refresh-token" {
		t.Fatalf("expected round trip, got %q", opened)
	}
}

func TestUnconfiguredSealerPassesThrough(t *testing.T) {
	sealer, err := New("")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, err := sealer.Seal("plain")
	if err != nil || sealed != "plain" {
		t.Fatalf("expected passthrough, got %q (%v)", sealed, err)
	}

	keyed, _ := New(testKey)
	value, _ := keyed.Seal("secret")
	if _, err := sealer.Open(value); err != ErrSealed {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
}

func TestOpenAcceptsLegacyPlainValues(t *testing.T) {
	sealer, _ := New(testKey)
	opened, err := sealer.Open("legacy-token")
	if err != nil || opened != "legacy-token" {
		t.Fatalf("expected plain value, got %q (%v)", opened, err)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New("too-short"); err == nil {
		t.Fatal("expected key length error")
	}
}
