package registry

import (
	"context"
	"sync"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/KOMKZ/go-fit-framework/validator"
	"go.uber.org/zap"
)

// removal reasons, used as metric attributes
const (
	reasonUnregister = "unregister"
	reasonAddress    = "address"
	reasonExpired    = "expired"
	reasonReassigned = "reassigned"
)

// TimeoutCallback receives the advertisements evicted by lease expiry
type TimeoutCallback func(ads []ServiceAdvertisement)

// ServiceRegistry composes the three directories into one unit of work keyed
// by a ServiceAdvertisement.
//
// Mutations spanning directories take the directory locks in the fixed order
// worker, address, fitable and hold all three until done. Read joins lock one
// directory at a time, so a reader may briefly see a worker before its
// fitables appear.
type ServiceRegistry struct {
	workers   *WorkerDirectory
	addresses *AddressDirectory
	fitables  *FitableDirectory
	log       *logger.CtxZapLogger
	metrics   *Metrics

	cbMu      sync.RWMutex
	onTimeout TimeoutCallback
	onExpire  ExpiryFunc
}

// Option configures a ServiceRegistry
type Option func(*ServiceRegistry)

// WithMetrics records registry activity on m
func WithMetrics(m *Metrics) Option {
	return func(r *ServiceRegistry) {
		r.metrics = m
	}
}

// WithLogger overrides the registry logger
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(r *ServiceRegistry) {
		if log != nil {
			r.log = log
		}
	}
}

// NewServiceRegistry wires the directories. A nil directory leaves the
// registry not ready: every operation then fails without side effects.
func NewServiceRegistry(workers *WorkerDirectory, addresses *AddressDirectory, fitables *FitableDirectory, opts ...Option) *ServiceRegistry {
	r := &ServiceRegistry{
		workers:   workers,
		addresses: addresses,
		fitables:  fitables,
		log:       logger.GetLogger("fit"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if workers != nil && fitables != nil {
		r.metrics.bindCounters(workers.Count, fitables.Count)
	}
	return r
}

func (r *ServiceRegistry) ready() bool {
	if r.workers == nil || r.addresses == nil || r.fitables == nil {
		r.log.Warn("Service registry not ready", zap.Error(ErrNotReady))
		return false
	}
	return true
}

func (r *ServiceRegistry) lockAll() {
	r.workers.mu.Lock()
	r.addresses.mu.Lock()
	r.fitables.mu.Lock()
}

func (r *ServiceRegistry) unlockAll() {
	r.fitables.mu.Unlock()
	r.addresses.mu.Unlock()
	r.workers.mu.Unlock()
}

// ValidateAdvertisement returns an ErrInvalidAdvertisement carrying the
// offending fields, or nil
func ValidateAdvertisement(ad ServiceAdvertisement) error {
	if err := ad.normalized().Validate(); err != nil {
		return ErrInvalidAdvertisement.Wrap(validator.Convert(err))
	}
	return nil
}

func (r *ServiceRegistry) validate(ctx context.Context, ad ServiceAdvertisement) bool {
	if err := ValidateAdvertisement(ad); err != nil {
		r.log.WarnCtx(ctx, "Reject invalid service advertisement",
			zap.String("worker_id", ad.Worker.ID),
			zap.String("generic_id", ad.Fitable.Key.GenericID),
			zap.Error(err))
		r.metrics.RecordSave(ctx, false)
		return false
	}
	return true
}

// Save registers one advertisement; false on validation or timer failure
func (r *ServiceRegistry) Save(ctx context.Context, ad ServiceAdvertisement) bool {
	if !r.ready() || !r.validate(ctx, ad) {
		return false
	}

	r.lockAll()
	err := r.saveLocked(ctx, ad.normalized())
	r.unlockAll()

	if err != nil {
		r.log.ErrorCtx(ctx, "Save service advertisement failed",
			zap.String("worker_id", ad.Worker.ID), zap.Error(err))
		return false
	}
	r.metrics.RecordSave(ctx, true)
	return true
}

// SaveAll registers every advertisement; nothing is saved if any is invalid
func (r *ServiceRegistry) SaveAll(ctx context.Context, ads []ServiceAdvertisement) bool {
	if !r.ready() {
		return false
	}
	for _, ad := range ads {
		if !r.validate(ctx, ad) {
			return false
		}
	}

	ok := true
	for _, ad := range ads {
		r.lockAll()
		err := r.saveLocked(ctx, ad.normalized())
		r.unlockAll()
		if err != nil {
			r.log.ErrorCtx(ctx, "Save service advertisement failed",
				zap.String("worker_id", ad.Worker.ID), zap.Error(err))
			ok = false
			continue
		}
		r.metrics.RecordSave(ctx, true)
	}
	return ok
}

// saveLocked worker, then addresses, then fitable; a worker moving to another
// application first drops its old association
func (r *ServiceRegistry) saveLocked(ctx context.Context, ad ServiceAdvertisement) error {
	w := ad.Worker
	if existing, ok := r.workers.queryLocked(w.ID); ok && existing.Application != w.Application {
		r.log.InfoCtx(ctx, "Worker changed application",
			zap.String("worker_id", w.ID),
			zap.String("from", existing.Application.String()),
			zap.String("to", w.Application.String()))
		r.evictLocked(ctx, w.ID, reasonReassigned)
	}

	if err := r.workers.saveLocked(w, r.handleExpiry); err != nil {
		return err
	}
	r.addresses.saveLocked(w.ID, ad.Addresses)
	r.fitables.saveLocked(ad.Fitable)
	return nil
}

// evictLocked removes the worker and its addresses, and the application's
// fitables when it was the last worker. Returns what was live before.
func (r *ServiceRegistry) evictLocked(ctx context.Context, workerID, reason string) []ServiceAdvertisement {
	w, ok := r.workers.queryLocked(workerID)
	if !ok {
		return nil
	}
	addrs := r.addresses.queryLocked(workerID)
	metas := r.fitables.queryByApplicationLocked(w.Application)
	ads := join(w, addrs, metas)

	r.workers.removeLocked(workerID)
	r.addresses.removeLocked(workerID)
	if len(r.workers.byApp[w.Application]) == 0 {
		r.fitables.removeLocked(w.Application)
	}
	r.metrics.RecordRemoval(ctx, reason)
	return ads
}

func join(w Worker, addrs []Address, metas []FitableMeta) []ServiceAdvertisement {
	out := make([]ServiceAdvertisement, 0, len(metas))
	for _, meta := range metas {
		out = append(out, ServiceAdvertisement{
			Worker:    w,
			Addresses: append([]Address(nil), addrs...),
			Fitable:   meta.clone(),
		})
	}
	return out
}

// Query every advertisement exposing key, one per serving worker
func (r *ServiceRegistry) Query(key FitableKey) []ServiceAdvertisement {
	if !r.ready() {
		return nil
	}
	return r.serve(r.fitables.Query(key))
}

// serve joins each meta with the current workers of its application
func (r *ServiceRegistry) serve(metas []FitableMeta) []ServiceAdvertisement {
	var out []ServiceAdvertisement
	for _, meta := range metas {
		for _, w := range r.workers.QueryByApplication(meta.Application) {
			out = append(out, ServiceAdvertisement{
				Worker:    w,
				Addresses: r.addresses.Query(w.ID),
				Fitable:   meta.clone(),
			})
		}
	}
	return out
}

// QueryByAddress the advertisement of key served by the worker owning addr.
// When addr names an endpoint (host or port set) the worker must still hold it.
func (r *ServiceRegistry) QueryByAddress(key FitableKey, addr Address) []ServiceAdvertisement {
	if !r.ready() {
		return nil
	}
	if addr.Host != "" || addr.Port != 0 {
		if _, ok := r.addresses.QueryAddress(addr); !ok {
			return nil
		}
	}
	w, ok := r.workers.Query(addr.WorkerID)
	if !ok {
		return nil
	}
	meta, ok := r.fitables.QueryByKeyAndApplication(key, w.Application)
	if !ok {
		return nil
	}
	return []ServiceAdvertisement{{
		Worker:    w,
		Addresses: r.addresses.Query(w.ID),
		Fitable:   meta,
	}}
}

// Remove unregisters the worker owning addr, provided it serves key.
// False, with nothing changed, when there is no such record.
func (r *ServiceRegistry) Remove(ctx context.Context, key FitableKey, addr Address) bool {
	if !r.ready() {
		return false
	}
	r.lockAll()
	defer r.unlockAll()

	w, ok := r.workers.queryLocked(addr.WorkerID)
	if !ok {
		return false
	}
	if _, ok := r.fitables.queryOneLocked(key, w.Application); !ok {
		return false
	}
	r.evictLocked(ctx, w.ID, reasonUnregister)
	return true
}

// RemoveAll unregisters each advertisement; true if any was removed
func (r *ServiceRegistry) RemoveAll(ctx context.Context, ads []ServiceAdvertisement) bool {
	removed := false
	for _, ad := range ads {
		if r.Remove(ctx, ad.Fitable.Key, Address{WorkerID: ad.Worker.ID}) {
			removed = true
		}
	}
	return removed
}

// RemoveAddress unregisters the worker owning addr and returns every
// advertisement it served immediately before
func (r *ServiceRegistry) RemoveAddress(ctx context.Context, addr Address) []ServiceAdvertisement {
	return r.removeWorker(ctx, addr.WorkerID, reasonAddress)
}

func (r *ServiceRegistry) removeWorker(ctx context.Context, workerID, reason string) []ServiceAdvertisement {
	if !r.ready() {
		return nil
	}
	r.lockAll()
	defer r.unlockAll()
	return r.evictLocked(ctx, workerID, reason)
}

// removeExpired evicts workerID unless its lease was renewed after now
func (r *ServiceRegistry) removeExpired(ctx context.Context, workerID string, now time.Time) []ServiceAdvertisement {
	if !r.ready() {
		return nil
	}
	r.lockAll()
	defer r.unlockAll()

	e, ok := r.workers.byID[workerID]
	if !ok || now.Add(deadlineSlack).Before(e.deadline) {
		return nil
	}
	return r.evictLocked(ctx, workerID, reasonExpired)
}

// GetAllServices every advertisement, ordered by worker id
func (r *ServiceRegistry) GetAllServices() []ServiceAdvertisement {
	if !r.ready() {
		return nil
	}
	var out []ServiceAdvertisement
	for _, w := range r.workers.QueryAll() {
		out = append(out, join(w, r.addresses.Query(w.ID), r.fitables.QueryByApplication(w.Application))...)
	}
	return out
}

// GetServicesByGenericID every advertisement implementing genericID
func (r *ServiceRegistry) GetServicesByGenericID(genericID string) []ServiceAdvertisement {
	if !r.ready() {
		return nil
	}
	return r.serve(r.fitables.QueryByGenericID(genericID))
}

// GetServicesNotUpdated advertisements whose worker has not reached syncCount
func (r *ServiceRegistry) GetServicesNotUpdated(syncCount int64) []ServiceAdvertisement {
	var out []ServiceAdvertisement
	for _, ad := range r.GetAllServices() {
		if ad.Worker.SyncCount < syncCount {
			out = append(out, ad)
		}
	}
	return out
}

// InsertServiceOrUpdateSyncCount saves advertisements not held locally and
// only raises the sync counter of those already present
func (r *ServiceRegistry) InsertServiceOrUpdateSyncCount(ctx context.Context, ads []ServiceAdvertisement) bool {
	if !r.ready() {
		return false
	}
	ok := true
	for _, ad := range ads {
		if !r.validate(ctx, ad) {
			ok = false
			continue
		}
		ad = ad.normalized()

		r.lockAll()
		var err error
		if r.presentLocked(ad) {
			r.workers.updateSyncCountLocked(ad.Worker.ID, ad.Worker.SyncCount)
		} else {
			err = r.saveLocked(ctx, ad)
		}
		r.unlockAll()

		if err != nil {
			r.log.ErrorCtx(ctx, "Sync service advertisement failed",
				zap.String("worker_id", ad.Worker.ID), zap.Error(err))
			ok = false
		}
	}
	return ok
}

func (r *ServiceRegistry) presentLocked(ad ServiceAdvertisement) bool {
	w, ok := r.workers.queryLocked(ad.Worker.ID)
	if !ok || w.Application != ad.Worker.Application {
		return false
	}
	_, ok = r.fitables.queryOneLocked(ad.Fitable.Key, w.Application)
	return ok
}

// InitTimeoutCallback sets the subscriber notified of expiry evictions
func (r *ServiceRegistry) InitTimeoutCallback(fn TimeoutCallback) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.onTimeout = fn
}

// SetExpiryHandler decides what happens when a lease elapses.
// Without one the worker is evicted immediately.
func (r *ServiceRegistry) SetExpiryHandler(fn ExpiryFunc) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.onExpire = fn
}

func (r *ServiceRegistry) handleExpiry(workerID string) {
	r.cbMu.RLock()
	fn := r.onExpire
	r.cbMu.RUnlock()

	if fn != nil {
		fn(workerID)
		return
	}
	r.expire(context.Background(), workerID)
}

// expire evicts the worker unless it renewed after the timer fired, and
// notifies the timeout subscriber once
func (r *ServiceRegistry) expire(ctx context.Context, workerID string) []ServiceAdvertisement {
	ads := r.removeExpired(ctx, workerID, r.workers.now())
	r.notifyTimeout(ads)
	return ads
}

func (r *ServiceRegistry) notifyTimeout(ads []ServiceAdvertisement) {
	if len(ads) == 0 {
		return
	}
	r.cbMu.RLock()
	fn := r.onTimeout
	r.cbMu.RUnlock()
	if fn != nil {
		fn(ads)
	}
}

func (r *ServiceRegistry) rearm(workerID string) error {
	if !r.ready() {
		return ErrNotReady
	}
	return r.workers.Rearm(workerID, r.handleExpiry)
}

// GetFitableInstances every meta implementing genericID with its workers
func (r *ServiceRegistry) GetFitableInstances(genericID string) []FitableInstance {
	if !r.ready() {
		return nil
	}
	metas := r.fitables.QueryByGenericID(genericID)
	out := make([]FitableInstance, 0, len(metas))
	for _, meta := range metas {
		out = append(out, FitableInstance{
			Meta:    meta,
			Workers: r.workers.QueryByApplication(meta.Application),
		})
	}
	return out
}

// QueryWorkerDetail the worker, its addresses and its application's fitables
func (r *ServiceRegistry) QueryWorkerDetail(workerID string) (*WorkerDetail, bool) {
	if !r.ready() {
		return nil, false
	}
	w, ok := r.workers.Query(workerID)
	if !ok {
		return nil, false
	}
	return &WorkerDetail{
		Worker:    w,
		Addresses: r.addresses.Query(workerID),
		Fitables:  r.fitables.QueryByApplication(w.Application),
	}, true
}

// QueryAllWorkers every worker with its addresses
func (r *ServiceRegistry) QueryAllWorkers() []WorkerMeta {
	if !r.ready() {
		return nil
	}
	workers := r.workers.QueryAll()
	out := make([]WorkerMeta, 0, len(workers))
	for _, w := range workers {
		out = append(out, WorkerMeta{Worker: w, Addresses: r.addresses.Query(w.ID)})
	}
	return out
}

// IsApplicationExist reports whether app still exposes a fitable
func (r *ServiceRegistry) IsApplicationExist(app Application) bool {
	if !r.ready() {
		return false
	}
	return r.fitables.IsApplicationExist(app)
}
