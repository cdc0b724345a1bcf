//go:build integration

package lock

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	l := NewRedis(client, nil, 5*time.Second)
	key := "test-" + time.Now().Format(time.RFC3339Nano)

	unlock, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(short, key); err == nil {
		t.Fatal("expected second lock to time out")
	}

	unlock()

	again, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestRedisLockOutlivesTTLWhileHeld(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	l := NewRedis(client, nil, 300*time.Millisecond)
	key := "lease-" + time.Now().Format(time.RFC3339Nano)

	unlock, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	time.Sleep(time.Second)

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(short, key); err == nil {
		t.Fatal("lease expired while the holder was still running")
	}
}
