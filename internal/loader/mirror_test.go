package loader

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"

	"sogif-site/internal/kpi"
)

func TestMirrorServesCachedDocument(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("sogif:constants").SetVal(string(fixture(t)))

	calls := 0
	next := Func(func(ctx context.Context) (*kpi.Bundle, error) {
		calls++
		return nil, errors.New("should not be called")
	})

	bundle, err := NewMirror(next, db, MirrorOptions{}, noopLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("mirror hit should succeed: %v", err)
	}
	if bundle.Len() != 3 || calls != 0 {
		t.Fatalf("expected mirrored bundle without upstream call, rows=%d calls=%d", bundle.Len(), calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMirrorLoadsThroughOnMiss(t *testing.T) {
	upstream, err := kpi.Decode(fixture(t))
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := json.Marshal(upstream)
	if err != nil {
		t.Fatal(err)
	}

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("site:constants").RedisNil()
	mock.ExpectSet("site:constants", encoded, 10*time.Minute).SetVal("OK")

	next := Func(func(ctx context.Context) (*kpi.Bundle, error) { return upstream, nil })
	m := NewMirror(next, db, MirrorOptions{Key: "site:constants", TTL: 10 * time.Minute}, noopLogger())

	got, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("miss should load through: %v", err)
	}
	if got != upstream {
		t.Fatal("expected the upstream bundle")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMirrorFallsThroughOnRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("sogif:constants").SetErr(errors.New("connection refused"))

	next := Func(func(ctx context.Context) (*kpi.Bundle, error) {
		return nil, errors.New("cms down")
	})

	_, err := NewMirror(next, db, MirrorOptions{}, noopLogger()).Load(context.Background())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
