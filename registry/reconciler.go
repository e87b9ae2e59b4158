package registry

import (
	"context"
	"errors"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LivenessChecker external heartbeat source (heartbeat.Checker satisfies it)
type LivenessChecker interface {
	IsAlive(ctx context.Context, workerID, scene string) (bool, error)
}

// deadlineSlack absorbs scheduler jitter when comparing against a lease deadline
const deadlineSlack = 50 * time.Millisecond

// errAlive stops the remaining scene checks once one confirms liveness
var errAlive = errors.New("worker alive")

// HeartbeatReconciler double-checks an elapsed lease before eviction.
//
// On expiry the worker is re-armed if any configured scene reports it alive;
// otherwise every advertisement it served is removed and the timeout
// subscriber is notified once with all of them.
type HeartbeatReconciler struct {
	registry *ServiceRegistry
	checker  LivenessChecker
	scenes   []string
	timeout  time.Duration
	now      func() time.Time
	log      *logger.CtxZapLogger
}

// NewHeartbeatReconciler binds itself as the expiry handler of registry
func NewHeartbeatReconciler(registry *ServiceRegistry, checker LivenessChecker, scenes []string, timeout time.Duration, log *logger.CtxZapLogger) *HeartbeatReconciler {
	if log == nil {
		log = logger.GetLogger("fit")
	}
	if len(scenes) == 0 {
		scenes = []string{SceneRegistry, SceneRegistryServer}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	h := &HeartbeatReconciler{
		registry: registry,
		checker:  checker,
		scenes:   append([]string(nil), scenes...),
		timeout:  timeout,
		now:      time.Now,
		log:      log,
	}
	registry.SetExpiryHandler(h.OnExpire)
	return h
}

// OnExpire runs on a timer pool goroutine when the lease of workerID elapses
func (h *HeartbeatReconciler) OnExpire(workerID string) {
	ctx := context.Background()

	deadline, ok := h.registry.workers.Deadline(workerID)
	if !ok {
		return
	}
	// saved or re-armed after the timer fired
	if h.now().Add(deadlineSlack).Before(deadline) {
		return
	}

	alive := h.isAlive(ctx, workerID)
	h.registry.metrics.RecordHeartbeat(ctx, alive)

	if alive {
		if err := h.registry.rearm(workerID); err != nil {
			h.log.ErrorCtx(ctx, "Rearm worker lease failed", zap.String("worker_id", workerID), zap.Error(err))
			return
		}
		h.registry.metrics.RecordRearm(ctx)
		h.log.DebugCtx(ctx, "Worker lease extended", zap.String("worker_id", workerID))
		return
	}

	ads := h.evict(ctx, workerID)
	h.log.InfoCtx(ctx, "Worker lease expired",
		zap.String("worker_id", workerID),
		zap.Int("services", len(ads)))
	h.registry.notifyTimeout(ads)
}

// evict removes by address, or the bare worker when it has none
func (h *HeartbeatReconciler) evict(ctx context.Context, workerID string) []ServiceAdvertisement {
	now := h.now()
	addrs := h.registry.addresses.Query(workerID)
	if len(addrs) == 0 {
		return h.registry.removeExpired(ctx, workerID, now)
	}
	var ads []ServiceAdvertisement
	for _, addr := range addrs {
		ads = append(ads, h.registry.removeExpired(ctx, addr.WorkerID, now)...)
	}
	return ads
}

// isAlive any scene confirming liveness is enough; errors count as not alive
func (h *HeartbeatReconciler) isAlive(ctx context.Context, workerID string) bool {
	if h.checker == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, scene := range h.scenes {
		g.Go(func() error {
			alive, err := h.checker.IsAlive(gctx, workerID, scene)
			if err != nil {
				h.log.WarnCtx(gctx, "Heartbeat check failed",
					zap.String("worker_id", workerID),
					zap.String("scene", scene),
					zap.Error(err))
				return nil
			}
			if alive {
				return errAlive
			}
			return nil
		})
	}
	return errors.Is(g.Wait(), errAlive)
}
