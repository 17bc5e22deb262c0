package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(16, time.Hour)
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("get=%q ok=%v err=%v", got, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("entry should expire at ttl")
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry kept, len=%d", m.Len())
	}
}

func TestMemoryNoTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, 0)
	buf := []byte("abc")
	m.Set(ctx, "k", buf, 0)
	buf[0] = 'x'

	got, ok, _ := m.Get(ctx, "k")
	if !ok || string(got) != "abc" {
		t.Fatalf("got=%q ok=%v", got, ok)
	}
	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Fatal("missing key reported present")
	}
}

func TestMemoryBoundedSize(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(100, time.Hour)

	for i := range 10000 {
		m.Set(ctx, fmt.Sprintf("geo:%.4f,101.6869", 3+float64(i)/10000), []byte("{}"), time.Hour)
	}
	if m.Len() != 100 {
		t.Fatalf("len=%d, want 100", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "geo:3.0000,101.6869"); ok {
		t.Fatal("oldest key should have been evicted")
	}
	if _, ok, _ := m.Get(ctx, "geo:3.9999,101.6869"); !ok {
		t.Fatal("newest key missing")
	}
}

func TestMemoryPurgesUnreadExpiredKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, 20*time.Millisecond)

	for i := range 1000 {
		m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0)
	}
	if m.Len() != 1000 {
		t.Fatalf("len=%d before expiry", m.Len())
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expired keys never purged, len=%d", m.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
