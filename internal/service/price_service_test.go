package service

import (
	"context"
	"errors"
	"testing"
)

func TestPriceService_RecordAndRead(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	svc := NewPriceService(testTracer, redis)

	if err := svc.RecordPrice(context.Background(), 7, dec("101.25")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !redis.has("price:last:7") {
		t.Fatal("expected price:last:7 to be written")
	}

	got, ok, err := svc.LastPrice(context.Background(), 7)
	if err != nil {
		t.Fatalf("last price: %v", err)
	}
	if !ok || !got.Equal(dec("101.25")) {
		t.Fatalf("expected 101.25, got %s (ok=%v)", got, ok)
	}
}

func TestPriceService_MissIsNotAnError(t *testing.T) {
	t.Parallel()

	svc := NewPriceService(testTracer, newFakeRedis())
	_, ok, err := svc.LastPrice(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no price")
	}
}

func TestPriceService_CorruptValue(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	redis.data["price:last:3"] = []byte("not-a-number")
	svc := NewPriceService(testTracer, redis)

	if _, _, err := svc.LastPrice(context.Background(), 3); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPriceService_ReadError(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	redis.getErr = errors.New("connection refused")
	svc := NewPriceService(testTracer, redis)

	if _, _, err := svc.LastPrice(context.Background(), 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestPriceService_NilRedis(t *testing.T) {
	t.Parallel()

	svc := NewPriceService(testTracer, nil)
	if err := svc.RecordPrice(context.Background(), 1, dec("1")); err != nil {
		t.Fatalf("record without redis: %v", err)
	}
	if _, ok, err := svc.LastPrice(context.Background(), 1); ok || err != nil {
		t.Fatalf("expected silent miss, got ok=%v err=%v", ok, err)
	}
}
