package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/google/uuid"
)

type fakeTask struct {
	d  time.Duration
	fn func()
}

// fakeTimers records armed tasks; nothing fires unless the test calls fire
type fakeTimers struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]fakeTask
	sets    int
	updates int
	removes int
	err     error
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{tasks: make(map[uuid.UUID]fakeTask)}
}

func (f *fakeTimers) SetTimeout(d time.Duration, fn func()) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	h := uuid.New()
	f.tasks[h] = fakeTask{d: d, fn: fn}
	f.sets++
	return h, nil
}

func (f *fakeTimers) InsertOrUpdateTimeout(h uuid.UUID, d time.Duration, fn func()) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if _, ok := f.tasks[h]; !ok {
		h = uuid.New()
	}
	f.tasks[h] = fakeTask{d: d, fn: fn}
	f.updates++
	return h, nil
}

func (f *fakeTimers) Remove(h uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, h)
	f.removes++
	return nil
}

func (f *fakeTimers) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *fakeTimers) task(h uuid.UUID) (fakeTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[h]
	return t, ok
}

// fire runs the task like a one-shot timer: the entry is consumed first
func (f *fakeTimers) fire(h uuid.UUID) bool {
	f.mu.Lock()
	t, ok := f.tasks[h]
	delete(f.tasks, h)
	f.mu.Unlock()
	if !ok {
		return false
	}
	t.fn()
	return true
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	reg    *ServiceRegistry
	timers *fakeTimers
	clock  *clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	log := logger.NewNopLogger()
	timers := newFakeTimers()
	clk := newClock()

	workers := NewWorkerDirectory(timers, 30*time.Second, log)
	workers.now = clk.Now
	opts = append([]Option{WithLogger(log)}, opts...)
	reg := NewServiceRegistry(workers, NewAddressDirectory(log), NewFitableDirectory(log), opts...)
	return &fixture{reg: reg, timers: timers, clock: clk}
}

// fireWorker fires the lease timer currently held by workerID
func (f *fixture) fireWorker(t *testing.T, workerID string) {
	t.Helper()
	f.reg.workers.mu.RLock()
	e, ok := f.reg.workers.byID[workerID]
	f.reg.workers.mu.RUnlock()
	if !ok {
		t.Fatalf("worker %s not found", workerID)
	}
	if !f.timers.fire(e.timer) {
		t.Fatalf("no timer armed for worker %s", workerID)
	}
}

var (
	appOrder = Application{Name: "order", Version: "1.0"}
	appStock = Application{Name: "stock", Version: "2.1"}
)

func key(genericID, fitableID string) FitableKey {
	return FitableKey{GenericID: genericID, GenericVersion: "1.0", FitableID: fitableID, FitableVersion: "1.0"}
}

func ad(workerID string, app Application, k FitableKey) ServiceAdvertisement {
	return ServiceAdvertisement{
		Worker: Worker{ID: workerID, Application: app, Environment: "dev", LeaseSeconds: 10},
		Addresses: []Address{
			{Host: "10.0.0.1", Port: 8080, Protocol: "http", Environment: "dev"},
			{Host: "10.0.0.1", Port: 9090, Protocol: "grpc", Environment: "dev"},
		},
		Fitable: FitableMeta{
			Key:         k,
			Application: app,
			Formats:     []int{1, 2},
			Aliases:     []string{k.FitableID + "-alias"},
			Environment: "dev",
		},
	}
}

func withSync(a ServiceAdvertisement, n int64) ServiceAdvertisement {
	a.Worker.SyncCount = n
	return a
}
