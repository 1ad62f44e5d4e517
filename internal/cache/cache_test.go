package cache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInsertLookupRoundtrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(dir, DefaultExpiry)

	const sum = "abcdef0123456789"
	if err := c.Insert(ctx, sum, strings.NewReader("hello")); err != nil {
		t.Fatal(err)
	}

	rc, ok, err := c.Lookup(ctx, sum)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit after insert")
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hello" {
		t.Errorf("got %q, want %q", b, "hello")
	}

	wantPath := filepath.Join(dir, "a", "bcdef0123456789")
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("expected entry at %s: %v", wantPath, err)
	}
}

func TestLookupMiss(t *testing.T) {
	c := New(t.TempDir(), DefaultExpiry)
	_, ok, err := c.Lookup(context.Background(), "0000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss for absent checksum")
	}
}

func TestInsertIdempotent(t *testing.T) {
	ctx := context.Background()
	c := New(t.TempDir(), DefaultExpiry)
	const sum = "00112233445566778899"

	if err := c.Insert(ctx, sum, strings.NewReader("first")); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(ctx, sum, strings.NewReader("second")); err != nil {
		t.Fatal(err)
	}

	rc, ok, err := c.Lookup(ctx, sum)
	if err != nil || !ok {
		t.Fatalf("lookup after double insert: ok=%v err=%v", ok, err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "first" {
		t.Errorf("second insert should not overwrite existing entry, got %q", b)
	}
}

func TestInsertReplacesLegacyDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(dir, DefaultExpiry)
	const sum = "ffeeddccbbaa99887766"

	legacy := filepath.Join(dir, sum[:1], sum[1:])
	if err := os.MkdirAll(legacy, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := c.Insert(ctx, sum, strings.NewReader("payload")); err != nil {
		t.Fatal(err)
	}

	rc, ok, err := c.Lookup(ctx, sum)
	if err != nil || !ok {
		t.Fatalf("expected lookup to succeed after replacing legacy dir: ok=%v err=%v", ok, err)
	}
	rc.Close()
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(dir, time.Hour)

	const oldSum = "aa00000000000000000"
	const freshSum = "bb00000000000000000"
	if err := c.Insert(ctx, oldSum, strings.NewReader("old")); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(ctx, freshSum, strings.NewReader("fresh")); err != nil {
		t.Fatal(err)
	}

	oldPath, _ := c.path(oldSum)
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatal(err)
	}

	if err := c.Sweep(ctx); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := c.Lookup(ctx, oldSum); ok {
		t.Error("expected expired entry to be swept")
	}
	if _, ok, _ := c.Lookup(ctx, freshSum); !ok {
		t.Error("expected fresh entry to survive sweep")
	}
}

func TestExpiryFromEnvZeroMeansImmediate(t *testing.T) {
	t.Setenv("RPMDEPLINT_EXPIRY_SECONDS", "0")
	if got := ExpiryFromEnv(); got != 0 {
		t.Errorf("ExpiryFromEnv() with '0' = %v, want 0", got)
	}
}

func TestExpiryFromEnvDefault(t *testing.T) {
	t.Setenv("RPMDEPLINT_EXPIRY_SECONDS", "")
	if got := ExpiryFromEnv(); got != DefaultExpiry {
		t.Errorf("ExpiryFromEnv() default = %v, want %v", got, DefaultExpiry)
	}
}
