package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abczzz13/unprotect"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const loadKey = unprotect.OptionName

// Service validates, stores and caches the bypass settings.
type Service struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	cached   *unprotect.AccessConfiguration
	loadedAt time.Time
	gen      uint64
}

// NewService creates a Service over store. Snapshots returned by Current are
// reused for ttl; a zero ttl reloads on every call.
func NewService(store Store, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		ttl:    ttl,
		logger: logger.Named("settings"),
		now:    time.Now,
	}
}

// Current returns the compiled configuration used for bypass decisions. A
// missing record yields the zero configuration, which never bypasses.
func (s *Service) Current(ctx context.Context) (unprotect.AccessConfiguration, error) {
	if cfg, ok := s.fresh(); ok {
		return cfg, nil
	}

	v, err, _ := s.group.Do(loadKey, func() (any, error) {
		if cfg, ok := s.fresh(); ok {
			return cfg, nil
		}

		s.mu.RLock()
		gen := s.gen
		s.mu.RUnlock()

		rec, err := s.store.Load(ctx)
		if errors.Is(err, ErrNotFound) {
			rec = &Record{}
		} else if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}

		cfg := rec.Options.Configuration()
		s.warnUnmatchable(cfg, rec.Revision)

		// A save that landed during the load invalidated this snapshot.
		s.mu.Lock()
		if s.gen == gen {
			s.cached = &cfg
			s.loadedAt = s.now()
		}
		s.mu.Unlock()

		return cfg, nil
	})
	if err != nil {
		return unprotect.AccessConfiguration{}, err
	}
	return v.(unprotect.AccessConfiguration), nil
}

// Get returns the stored record, or an empty record when none was saved.
func (s *Service) Get(ctx context.Context) (*Record, error) {
	rec, err := s.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return &Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return rec, nil
}

// Validate checks opts without saving them.
func (s *Service) Validate(opts unprotect.Options) (unprotect.AccessConfiguration, error) {
	return unprotect.ValidateOptions(opts)
}

// Update validates and saves opts. When any allow-list line is invalid the
// returned error wraps *unprotect.InvalidEntryError and nothing is written.
func (s *Service) Update(ctx context.Context, opts unprotect.Options) (*Record, error) {
	cfg, err := unprotect.ValidateOptions(opts)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Options:   opts,
		Revision:  uuid.NewString(),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}
	s.Invalidate()

	if v6 := cfg.AllowList.IPv6Entries(); len(v6) > 0 {
		s.logger.Warn("IPv6 allow-list entries are stored but never match",
			zap.Strings("entries", v6),
			zap.String("revision", rec.Revision),
		)
	}
	s.logger.Info("settings updated",
		zap.String("revision", rec.Revision),
		zap.Bool("trust_logged_in", cfg.TrustLoggedIn),
		zap.Int("entries", len(cfg.AllowList)),
	)
	return rec, nil
}

// Invalidate drops the cached snapshot.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.gen++
	s.mu.Unlock()
	s.group.Forget(loadKey)
}

func (s *Service) fresh() (unprotect.AccessConfiguration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cached == nil || s.ttl <= 0 || s.now().Sub(s.loadedAt) >= s.ttl {
		return unprotect.AccessConfiguration{}, false
	}
	return *s.cached, true
}

func (s *Service) warnUnmatchable(cfg unprotect.AccessConfiguration, revision string) {
	if skipped := cfg.Unmatchable(); len(skipped) > 0 {
		s.logger.Warn("allow-list entries can never match",
			zap.String("event", "malformed_range_entry"),
			zap.Strings("entries", skipped),
			zap.String("revision", revision),
		)
	}
}
