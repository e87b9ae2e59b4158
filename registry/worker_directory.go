package registry

import (
	"sync"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TimerService one-shot timeouts keyed by handle (implemented by timer.Service)
type TimerService interface {
	SetTimeout(d time.Duration, fn func()) (uuid.UUID, error)
	InsertOrUpdateTimeout(h uuid.UUID, d time.Duration, fn func()) (uuid.UUID, error)
	Remove(h uuid.UUID) error
}

// ExpiryFunc invoked with the worker id once its lease has elapsed
type ExpiryFunc func(workerID string)

type workerEntry struct {
	worker   Worker
	timer    uuid.UUID
	deadline time.Time
}

// WorkerDirectory one record per worker id, indexed by id and by application
type WorkerDirectory struct {
	mu     sync.RWMutex
	byID   map[string]*workerEntry
	byApp  map[Application]map[string]struct{}
	timers TimerService
	lease  time.Duration // used when a worker declares none
	now    func() time.Time
	log    *logger.CtxZapLogger
}

// NewWorkerDirectory creates an empty directory
func NewWorkerDirectory(timers TimerService, defaultLease time.Duration, log *logger.CtxZapLogger) *WorkerDirectory {
	if log == nil {
		log = logger.GetLogger("fit")
	}
	if defaultLease <= 0 {
		defaultLease = 30 * time.Second
	}
	return &WorkerDirectory{
		byID:   make(map[string]*workerEntry),
		byApp:  make(map[Application]map[string]struct{}),
		timers: timers,
		lease:  defaultLease,
		now:    time.Now,
		log:    log,
	}
}

// Save inserts or replaces w and (re)arms its lease timer
func (d *WorkerDirectory) Save(w Worker, onExpire ExpiryFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveLocked(w, onExpire)
}

// saveLocked arms the timer first so a failed arm leaves the directory untouched
func (d *WorkerDirectory) saveLocked(w Worker, onExpire ExpiryFunc) error {
	lease := d.leaseOf(w)
	deadline := d.now().Add(lease)
	existing, ok := d.byID[w.ID]

	var (
		handle uuid.UUID
		err    error
	)
	if ok {
		handle, err = d.timers.InsertOrUpdateTimeout(existing.timer, lease, d.expiryTask(w.ID, onExpire))
	} else {
		handle, err = d.timers.SetTimeout(lease, d.expiryTask(w.ID, onExpire))
	}
	if err != nil {
		return ErrTimerArm.Wrap(err).WithData("worker_id", w.ID)
	}

	if ok {
		if existing.worker.SyncCount > w.SyncCount {
			w.SyncCount = existing.worker.SyncCount
		}
		if existing.worker.Application != w.Application {
			d.unindexApp(existing.worker.Application, w.ID)
		}
	}

	d.byID[w.ID] = &workerEntry{worker: w, timer: handle, deadline: deadline}
	members, found := d.byApp[w.Application]
	if !found {
		members = make(map[string]struct{})
		d.byApp[w.Application] = members
		d.log.Info("Application online",
			zap.String("application", w.Application.String()),
			zap.String("worker_id", w.ID))
	}
	if _, exists := members[w.ID]; !exists {
		members[w.ID] = struct{}{}
		d.log.Info("Worker online",
			zap.String("worker_id", w.ID),
			zap.String("application", w.Application.String()),
			zap.Duration("lease", lease))
	}
	return nil
}

// Query worker by id
func (d *WorkerDirectory) Query(id string) (Worker, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queryLocked(id)
}

func (d *WorkerDirectory) queryLocked(id string) (Worker, bool) {
	e, ok := d.byID[id]
	if !ok {
		return Worker{}, false
	}
	return e.worker, true
}

// QueryByApplication workers of app, sorted by id
func (d *WorkerDirectory) QueryByApplication(app Application) []Worker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queryByApplicationLocked(app)
}

func (d *WorkerDirectory) queryByApplicationLocked(app Application) []Worker {
	members := d.byApp[app]
	if len(members) == 0 {
		return nil
	}
	out := make([]Worker, 0, len(members))
	for id := range members {
		if e, ok := d.byID[id]; ok {
			out = append(out, e.worker)
		}
	}
	sortWorkers(out)
	return out
}

// QueryAll every worker, sorted by id
func (d *WorkerDirectory) QueryAll() []Worker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Worker, 0, len(d.byID))
	for _, e := range d.byID {
		out = append(out, e.worker)
	}
	sortWorkers(out)
	return out
}

// Remove deletes the worker from both indices and cancels its timer
func (d *WorkerDirectory) Remove(id string) (Worker, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removeLocked(id)
}

func (d *WorkerDirectory) removeLocked(id string) (Worker, bool) {
	e, ok := d.byID[id]
	if !ok {
		return Worker{}, false
	}
	delete(d.byID, id)
	d.unindexApp(e.worker.Application, id)

	if err := d.timers.Remove(e.timer); err != nil {
		d.log.Warn("Cancel worker timer failed", zap.String("worker_id", id), zap.Error(err))
	}
	d.log.Info("Worker offline",
		zap.String("worker_id", id),
		zap.String("application", e.worker.Application.String()))
	return e.worker, true
}

func (d *WorkerDirectory) unindexApp(app Application, id string) {
	members, ok := d.byApp[app]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(d.byApp, app)
		d.log.Info("Application offline", zap.String("application", app.String()))
	}
}

// UpdateSyncCount raises the worker's sync counter to n; never lowers it
func (d *WorkerDirectory) UpdateSyncCount(id string, n int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updateSyncCountLocked(id, n)
}

func (d *WorkerDirectory) updateSyncCountLocked(id string, n int64) bool {
	e, ok := d.byID[id]
	if !ok {
		return false
	}
	if n > e.worker.SyncCount {
		e.worker.SyncCount = n
	}
	return true
}

// Rearm extends the lease of a live worker by one lease period
func (d *WorkerDirectory) Rearm(id string, onExpire ExpiryFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.byID[id]
	if !ok {
		return ErrWorkerNotFound.WithData("worker_id", id)
	}
	lease := d.leaseOf(e.worker)
	deadline := d.now().Add(lease)
	handle, err := d.timers.InsertOrUpdateTimeout(e.timer, lease, d.expiryTask(id, onExpire))
	if err != nil {
		return ErrTimerArm.Wrap(err).WithData("worker_id", id)
	}
	e.timer = handle
	e.deadline = deadline
	return nil
}

// Deadline when the current lease of the worker runs out
func (d *WorkerDirectory) Deadline(id string) (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// IsApplicationExist reports whether app has at least one worker
func (d *WorkerDirectory) IsApplicationExist(app Application) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byApp[app]) > 0
}

// Count number of workers
func (d *WorkerDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

func (d *WorkerDirectory) leaseOf(w Worker) time.Duration {
	if w.LeaseSeconds > MaxLeaseSeconds {
		return time.Duration(MaxLeaseSeconds) * time.Second
	}
	if w.LeaseSeconds > 0 {
		return time.Duration(w.LeaseSeconds) * time.Second
	}
	return d.lease
}

func (d *WorkerDirectory) expiryTask(id string, onExpire ExpiryFunc) func() {
	return func() {
		if onExpire != nil {
			onExpire(id)
		}
	}
}
