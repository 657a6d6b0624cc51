package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "procura/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences for a single key.
// args are (key) for strict allocation and (key, increment) for ranges and resets.
type mockQuerier struct {
	mu      sync.Mutex
	current int64
	calls   int
	err     error
	lastSQL string
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastSQL = sql
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	increment := int64(1)
	if len(args) == 2 {
		if v, ok := args[1].(int64); ok {
			increment = v
		}
	}
	m.current += increment
	return &mockRow{val: m.current}
}

var october = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.PurchaseRequestConfig("")

	num, err := svc.GetNextNumber(context.Background(), cfg, nil, october)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "PR2610-00001" {
		t.Errorf("expected PR2610-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(context.Background(), cfg, nil, october)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "PR2610-00002" {
		t.Errorf("expected PR2610-00002, got %s", num)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.Config{Type: "GRN", Pattern: "GRN{date:yy}-{running:4}", ResetPeriod: corenumerator.ResetYearly}
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}
	ctx := context.Background()

	num, err := svc.GetNextNumber(ctx, cfg, opts, october)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "GRN26-0001" {
		t.Errorf("expected GRN26-0001, got %s", num)
	}
	if q.current != 10 {
		t.Errorf("expected reserved range up to 10, got %d", q.current)
	}

	for i := 0; i < 9; i++ {
		_, _ = svc.GetNextNumber(ctx, cfg, opts, october)
	}
	if q.calls != 1 {
		t.Errorf("expected range to be served from memory, got %d db calls", q.calls)
	}

	num, _ = svc.GetNextNumber(ctx, cfg, opts, october)
	if num != "GRN26-0011" {
		t.Errorf("expected GRN26-0011, got %s", num)
	}
	if q.calls != 2 {
		t.Errorf("expected a second reservation, got %d db calls", q.calls)
	}
}

func TestGetNextNumber_InvalidPattern(t *testing.T) {
	svc := New(&mockQuerier{})
	_, err := svc.GetNextNumber(context.Background(), corenumerator.Config{Type: "X", Pattern: "X-{date}"}, nil, october)
	if err == nil {
		t.Fatal("expected pattern error")
	}
}

func TestGetNextNumber_DatabaseError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := New(&mockQuerier{err: boom})

	_, err := svc.GetNextNumber(context.Background(), corenumerator.PurchaseRequestConfig(""), nil, october)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
