// Package timer provides cancellable one-shot timeouts on top of gocron.
//
// Every timeout is a gocron one-time job identified by a uuid handle. Fired
// callbacks never run on the scheduler's goroutines: they are submitted to an
// ants pool, so a callback may block (remote heartbeat checks) or call back
// into the Service without stalling other timers.
package timer

import (
	"errors"
	"sync"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// immediateThreshold below this a timeout fires right away;
// gocron rejects one-time start times already in the past
const immediateThreshold = 10 * time.Millisecond

// ErrClosed the service was shut down
var ErrClosed = errors.New("timer: service closed")

// Service one-shot timeout facility
type Service struct {
	scheduler gocron.Scheduler
	pool      *ants.Pool
	log       *logger.CtxZapLogger

	mu      sync.Mutex
	pending map[uuid.UUID]uint64 // handle -> generation of the armed definition
	nextGen uint64
	closed  bool
}

// New creates and starts a timer service
func New(cfg Config, log *logger.CtxZapLogger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger("timer")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(true))
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}

	s := &Service{
		scheduler: scheduler,
		pool:      pool,
		log:       log,
		pending:   make(map[uuid.UUID]uint64),
	}
	scheduler.Start()
	return s, nil
}

// SetTimeout runs fn once after d and returns its handle
func (s *Service) SetTimeout(d time.Duration, fn func()) (uuid.UUID, error) {
	id := uuid.New()
	gen, err := s.arm(id)
	if err != nil {
		return uuid.Nil, err
	}

	if _, err := s.scheduler.NewJob(
		oneShot(d),
		gocron.NewTask(s.fire, id, gen, fn),
		gocron.WithIdentifier(id),
	); err != nil {
		s.disarm(id, gen)
		return uuid.Nil, err
	}
	return id, nil
}

// InsertOrUpdateTimeout re-arms handle h to fire fn after d.
// A handle that already fired, was removed or is unknown gets a fresh timeout.
func (s *Service) InsertOrUpdateTimeout(h uuid.UUID, d time.Duration, fn func()) (uuid.UUID, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return uuid.Nil, ErrClosed
	}
	if _, ok := s.pending[h]; !ok || h == uuid.Nil {
		s.mu.Unlock()
		return s.SetTimeout(d, fn)
	}
	s.nextGen++
	gen := s.nextGen
	s.pending[h] = gen
	s.mu.Unlock()

	if _, err := s.scheduler.Update(h, oneShot(d), gocron.NewTask(s.fire, h, gen, fn)); err != nil {
		s.log.Debug("Update timeout failed, scheduling a new one",
			zap.String("handle", h.String()), zap.Error(err))
		s.disarm(h, gen)
		return s.SetTimeout(d, fn)
	}
	return h, nil
}

// Remove cancels a pending timeout; unknown handles are ignored
func (s *Service) Remove(h uuid.UUID) error {
	s.mu.Lock()
	_, ok := s.pending[h]
	delete(s.pending, h)
	closed := s.closed
	s.mu.Unlock()

	if !ok || closed {
		return nil
	}
	return s.removeJob(h)
}

// Pending number of armed timeouts
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown stops the scheduler and waits for running callbacks
func (s *Service) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = make(map[uuid.UUID]uint64)
	s.mu.Unlock()

	err := s.scheduler.Shutdown()
	if releaseErr := s.pool.ReleaseTimeout(5 * time.Second); releaseErr != nil {
		s.log.Warn("Timer pool release timeout", zap.Error(releaseErr))
	}
	return err
}

func (s *Service) arm(id uuid.UUID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.nextGen++
	s.pending[id] = s.nextGen
	return s.nextGen, nil
}

// disarm drops id only if gen is still the armed generation
func (s *Service) disarm(id uuid.UUID, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id] == gen {
		delete(s.pending, id)
	}
}

// fire runs on a gocron executor goroutine
func (s *Service) fire(id uuid.UUID, gen uint64, fn func()) {
	s.mu.Lock()
	current, ok := s.pending[id]
	if !ok || current != gen || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	_ = s.removeJob(id)

	task := func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Timeout callback panic",
					zap.String("handle", id.String()), zap.Any("panic", r))
			}
		}()
		fn()
	}
	if err := s.pool.Submit(task); err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			s.log.Warn("Timer pool saturated, running callback on a new goroutine",
				zap.String("handle", id.String()))
			go task()
			return
		}
		s.log.Error("Submit timeout callback failed",
			zap.String("handle", id.String()), zap.Error(err))
	}
}

func (s *Service) removeJob(id uuid.UUID) error {
	err := s.scheduler.RemoveJob(id)
	if errors.Is(err, gocron.ErrJobNotFound) {
		return nil
	}
	return err
}

func oneShot(d time.Duration) gocron.JobDefinition {
	if d < immediateThreshold {
		return gocron.OneTimeJob(gocron.OneTimeJobStartImmediately())
	}
	return gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(d)))
}
