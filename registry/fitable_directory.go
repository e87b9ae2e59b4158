package registry

import (
	"sync"

	"github.com/KOMKZ/go-fit-framework/logger"
	"go.uber.org/zap"
)

// metaID stable arena address of one FitableMeta
type metaID uint64

type idSet map[metaID]struct{}

// FitableDirectory FitableMeta records in an arena with three indices:
// canonical (key, application), by application and by genericId.
// A metaID is live while the canonical index maps its (key, application) to it.
// A replaced id leaves every index in the same save; traversals still skip
// and prune any id that is not live.
type FitableDirectory struct {
	mu        sync.RWMutex
	nextID    metaID
	arena     map[metaID]FitableMeta
	canonical map[FitableKey]map[Application]metaID
	byApp     map[Application]idSet
	byGeneric map[string]idSet
	log       *logger.CtxZapLogger
}

// NewFitableDirectory creates an empty directory
func NewFitableDirectory(log *logger.CtxZapLogger) *FitableDirectory {
	if log == nil {
		log = logger.GetLogger("fit")
	}
	return &FitableDirectory{
		arena:     make(map[metaID]FitableMeta),
		canonical: make(map[FitableKey]map[Application]metaID),
		byApp:     make(map[Application]idSet),
		byGeneric: make(map[string]idSet),
		log:       log,
	}
}

// Save stores meta under (key, application); the newest save wins
func (d *FitableDirectory) Save(meta FitableMeta) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saveLocked(meta)
}

func (d *FitableDirectory) saveLocked(meta FitableMeta) {
	meta = meta.clone()
	apps, ok := d.canonical[meta.Key]
	if !ok {
		apps = make(map[Application]metaID)
		d.canonical[meta.Key] = apps
	}
	original, hadOriginal := apps[meta.Application]

	d.nextID++
	id := d.nextID
	d.arena[id] = meta
	apps[meta.Application] = id
	add(d.byApp, meta.Application, id)

	// genericId and application are part of the canonical key, so the
	// original sits in the same buckets
	if hadOriginal {
		delete(d.arena, original)
		delete(d.byApp[meta.Application], original)
		delete(d.byGeneric[meta.Key.GenericID], original)
	}
	add(d.byGeneric, meta.Key.GenericID, id)
}

func add[K comparable](index map[K]idSet, k K, id metaID) {
	set, ok := index[k]
	if !ok {
		set = make(idSet)
		index[k] = set
	}
	set[id] = struct{}{}
}

func (d *FitableDirectory) live(id metaID) (FitableMeta, bool) {
	meta, ok := d.arena[id]
	if !ok {
		return FitableMeta{}, false
	}
	if d.canonical[meta.Key][meta.Application] != id {
		return FitableMeta{}, false
	}
	return meta, true
}

// Query every meta with key, across applications
func (d *FitableDirectory) Query(key FitableKey) []FitableMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queryLocked(key)
}

func (d *FitableDirectory) queryLocked(key FitableKey) []FitableMeta {
	apps := d.canonical[key]
	if len(apps) == 0 {
		return nil
	}
	out := make([]FitableMeta, 0, len(apps))
	for _, id := range apps {
		out = append(out, d.arena[id].clone())
	}
	sortMetas(out)
	return out
}

// QueryByKeyAndApplication the meta stored at (key, app)
func (d *FitableDirectory) QueryByKeyAndApplication(key FitableKey, app Application) (FitableMeta, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queryOneLocked(key, app)
}

func (d *FitableDirectory) queryOneLocked(key FitableKey, app Application) (FitableMeta, bool) {
	id, ok := d.canonical[key][app]
	if !ok {
		return FitableMeta{}, false
	}
	return d.arena[id].clone(), true
}

// QueryByApplication every meta of app; prunes dead back-references
func (d *FitableDirectory) QueryByApplication(app Application) []FitableMeta {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queryByApplicationLocked(app)
}

func (d *FitableDirectory) queryByApplicationLocked(app Application) []FitableMeta {
	ids := d.byApp[app]
	out := make([]FitableMeta, 0, len(ids))
	for id := range ids {
		meta, ok := d.live(id)
		if !ok {
			d.prune(app, id)
			continue
		}
		out = append(out, meta.clone())
	}
	if len(ids) == 0 {
		delete(d.byApp, app)
	}
	sortMetas(out)
	return out
}

// QueryByGenericID every meta implementing genericID
func (d *FitableDirectory) QueryByGenericID(genericID string) []FitableMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queryByGenericIDLocked(genericID)
}

func (d *FitableDirectory) queryByGenericIDLocked(genericID string) []FitableMeta {
	ids := d.byGeneric[genericID]
	out := make([]FitableMeta, 0, len(ids))
	for id := range ids {
		if meta, ok := d.live(id); ok {
			out = append(out, meta.clone())
		}
	}
	sortMetas(out)
	return out
}

// QueryAll every live meta
func (d *FitableDirectory) QueryAll() []FitableMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]FitableMeta, 0, len(d.arena))
	for _, apps := range d.canonical {
		for _, id := range apps {
			out = append(out, d.arena[id].clone())
		}
	}
	sortMetas(out)
	return out
}

// Remove every meta of app
func (d *FitableDirectory) Remove(app Application) []FitableMeta {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removeLocked(app)
}

func (d *FitableDirectory) removeLocked(app Application) []FitableMeta {
	ids, ok := d.byApp[app]
	if !ok {
		return nil
	}
	removed := make([]FitableMeta, 0, len(ids))
	for id := range ids {
		meta, ok := d.live(id)
		if !ok {
			d.prune(app, id)
			continue
		}

		apps := d.canonical[meta.Key]
		delete(apps, app)
		if len(apps) == 0 {
			delete(d.canonical, meta.Key)
		}
		delete(d.arena, id)

		gid := meta.Key.GenericID
		if bucket, ok := d.byGeneric[gid]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(d.byGeneric, gid)
				d.log.Info("Genericable has no implementation left",
					zap.String("generic_id", gid),
					zap.String("application", app.String()))
			}
		}
		removed = append(removed, meta)
	}
	delete(d.byApp, app)
	sortMetas(removed)
	return removed
}

func (d *FitableDirectory) prune(app Application, id metaID) {
	delete(d.byApp[app], id)
	d.log.Debug("Pruned stale fitable reference",
		zap.String("application", app.String()),
		zap.Uint64("meta_id", uint64(id)))
}

// IsApplicationExist reports whether app still has a live meta
func (d *FitableDirectory) IsApplicationExist(app Application) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for id := range d.byApp[app] {
		if _, ok := d.live(id); ok {
			return true
		}
	}
	return false
}

// Count number of live metas
func (d *FitableDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.arena)
}
