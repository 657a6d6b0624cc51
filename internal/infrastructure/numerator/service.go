// Package numerator is the PostgreSQL implementation of running codes.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "procura/internal/core/numerator"
	"procura/internal/core/tenant"
	"procura/internal/infrastructure/storage/postgres"
)

// Querier is the subset of pgx used by the service.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service allocates running numbers from sys_sequences.
type Service struct {
	// staticQuerier is set in tests; otherwise the querier comes from ctx.
	staticQuerier Querier

	mu       sync.Mutex
	ranges   map[string]*cachedRange // key: bu_code:sequence_key
	patterns map[string]corenumerator.Pattern
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a service bound to a single querier.
func New(querier Querier) *Service {
	return &Service{
		staticQuerier: querier,
		ranges:        make(map[string]*cachedRange),
		patterns:      make(map[string]corenumerator.Pattern),
	}
}

// NewFromContext creates a service that uses the tenant connection carried by ctx.
// Inside a transaction the number is allocated by that transaction, so a
// rolled back submit does not consume a number.
func NewFromContext() *Service {
	return New(nil)
}

func (s *Service) querier(ctx context.Context) Querier {
	if s.staticQuerier != nil {
		return s.staticQuerier
	}
	return postgres.MustGetTxManager(ctx).GetQuerier(ctx)
}

func (s *Service) pattern(raw string) (corenumerator.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.patterns[raw]; ok {
		return p, nil
	}
	p, err := corenumerator.ParsePattern(raw)
	if err != nil {
		return corenumerator.Pattern{}, err
	}
	s.patterns[raw] = p
	return p, nil
}

// GetNextNumber implements corenumerator.Generator.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, issueDate time.Time) (string, error) {
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}
	p, err := s.pattern(cfg.Pattern)
	if err != nil {
		return "", err
	}

	key := corenumerator.SequenceKey(cfg, issueDate)

	var num int64
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, key, opts.RangeSize)
	default:
		num, err = s.nextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}
	return p.Format(issueDate, num), nil
}

func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("next running number %s: %w", key, err)
	}
	return num, nil
}

func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = 50
	}
	cacheKey := tenant.GetCode(ctx) + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	rng, ok := s.ranges[cacheKey]
	if !ok {
		rng = &cachedRange{}
		s.ranges[cacheKey] = rng
	}

	if rng.current >= rng.max {
		var newMax int64
		err := s.querier(ctx).QueryRow(ctx, `
			INSERT INTO sys_sequences (key, current_val)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
			RETURNING current_val
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}
		// The reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber implements corenumerator.Generator.
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, issueDate time.Time, value int64) error {
	key := corenumerator.SequenceKey(cfg, issueDate)

	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)

	s.mu.Lock()
	delete(s.ranges, tenant.GetCode(ctx)+":"+key)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("set running number %s: %w", key, err)
	}
	return nil
}
