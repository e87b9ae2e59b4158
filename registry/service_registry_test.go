package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRegistry_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := ad("w1", appOrder, key("g.create", "default"))

	require.True(t, f.reg.Save(ctx, s1))

	got := f.reg.Query(s1.Fitable.Key)
	require.Len(t, got, 1)
	assert.Equal(t, s1.normalized(), got[0])

	byGeneric := f.reg.GetServicesByGenericID("g.create")
	require.Len(t, byGeneric, 1)
	assert.Equal(t, s1.normalized(), byGeneric[0])
}

func TestServiceRegistry_FitableApplicationDefaultsToWorker(t *testing.T) {
	f := newFixture(t)
	s := ad("w1", appOrder, key("g.create", "default"))
	s.Fitable.Application = Application{}

	require.True(t, f.reg.Save(context.Background(), s))
	got := f.reg.Query(s.Fitable.Key)
	require.Len(t, got, 1)
	assert.Equal(t, appOrder, got[0].Fitable.Application)
}

func TestServiceRegistry_QueryByAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("g.create", "default")
	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, k)))
	require.True(t, f.reg.Save(ctx, ad("w2", appOrder, k)))

	got := f.reg.QueryByAddress(k, Address{WorkerID: "w2"})
	require.Len(t, got, 1)
	assert.Equal(t, "w2", got[0].Worker.ID)

	assert.Empty(t, f.reg.QueryByAddress(k, Address{WorkerID: "w9"}))

	byEndpoint := f.reg.QueryByAddress(k, Address{Host: "10.0.0.1", Port: 9090, Protocol: "grpc", WorkerID: "w1"})
	require.Len(t, byEndpoint, 1)
	assert.Equal(t, "w1", byEndpoint[0].Worker.ID)
	assert.Empty(t, f.reg.QueryByAddress(k, Address{Host: "10.0.0.1", Port: 7070, Protocol: "http", WorkerID: "w1"}),
		"endpoint no longer held by w1")
	assert.Empty(t, f.reg.QueryByAddress(key("g.other", "x"), Address{WorkerID: "w1"}))

	assert.Len(t, f.reg.Query(k), 2, "one advertisement per serving worker")
}

func TestServiceRegistry_IdempotentRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := ad("w1", appOrder, key("g.create", "default"))
	require.True(t, f.reg.Save(ctx, s1))

	assert.False(t, f.reg.Remove(ctx, key("g.other", "x"), Address{WorkerID: "w1"}), "key not served")
	assert.Len(t, f.reg.GetAllServices(), 1)

	assert.True(t, f.reg.Remove(ctx, s1.Fitable.Key, Address{WorkerID: "w1"}))
	assert.Empty(t, f.reg.Query(s1.Fitable.Key))
	assert.False(t, f.reg.IsApplicationExist(appOrder))
	assert.Equal(t, 0, f.timers.pending(), "removal cancels the lease timer")

	assert.False(t, f.reg.Remove(ctx, s1.Fitable.Key, Address{WorkerID: "w1"}))
	assert.Empty(t, f.reg.RemoveAddress(ctx, Address{WorkerID: "w1"}))
}

func TestServiceRegistry_RemoveKeepsFitablesWhileWorkersRemain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("g.create", "default")
	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, k)))
	require.True(t, f.reg.Save(ctx, ad("w2", appOrder, k)))

	require.True(t, f.reg.Remove(ctx, k, Address{WorkerID: "w1"}))
	got := f.reg.Query(k)
	require.Len(t, got, 1)
	assert.Equal(t, "w2", got[0].Worker.ID)
	assert.True(t, f.reg.IsApplicationExist(appOrder))
}

func TestServiceRegistry_MonotonicSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := ad("w1", appOrder, key("g.create", "default"))

	require.True(t, f.reg.Save(ctx, withSync(s, 3)))
	require.True(t, f.reg.Save(ctx, withSync(s, 8)))
	assert.Equal(t, int64(8), f.reg.Query(s.Fitable.Key)[0].Worker.SyncCount)

	require.True(t, f.reg.Save(ctx, withSync(s, 2)))
	assert.Equal(t, int64(8), f.reg.Query(s.Fitable.Key)[0].Worker.SyncCount)
}

func TestServiceRegistry_CascadingReassignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("g.create", "default")

	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, k)))
	require.True(t, f.reg.Save(ctx, ad("w1", appStock, k)))

	_, ok := f.reg.fitables.QueryByKeyAndApplication(k, appOrder)
	assert.False(t, ok, "old application no longer serves the key")
	got := f.reg.Query(k)
	require.Len(t, got, 1)
	assert.Equal(t, appStock, got[0].Worker.Application)
	assert.Equal(t, appStock, got[0].Fitable.Application)

	assert.False(t, f.reg.IsApplicationExist(appOrder))
	assert.True(t, f.reg.IsApplicationExist(appStock))
	assert.Empty(t, f.reg.fitables.QueryByApplication(appOrder))
	assert.Equal(t, 1, f.timers.pending())
}

func TestServiceRegistry_ReassignmentKeepsSharedApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("g.create", "default")

	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, k)))
	require.True(t, f.reg.Save(ctx, ad("w2", appOrder, k)))
	require.True(t, f.reg.Save(ctx, ad("w1", appStock, k)))

	assert.True(t, f.reg.IsApplicationExist(appOrder), "w2 still serves order")
	assert.Len(t, f.reg.Query(k), 2)
}

func TestServiceRegistry_GenericFanOutConsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, key("g.create", "a"))))
	require.True(t, f.reg.Save(ctx, ad("w2", appStock, key("g.create", "b"))))
	require.True(t, f.reg.Save(ctx, ad("w3", appStock, key("g.reserve", "c"))))

	var reachable []FitableMeta
	for _, app := range []Application{appOrder, appStock} {
		for _, m := range f.reg.fitables.QueryByApplication(app) {
			if m.Key.GenericID == "g.create" {
				reachable = append(reachable, m)
			}
		}
	}
	sortMetas(reachable)
	assert.Equal(t, reachable, f.reg.fitables.QueryByGenericID("g.create"))

	require.NotEmpty(t, f.reg.RemoveAddress(ctx, Address{WorkerID: "w2"}))
	require.NotEmpty(t, f.reg.RemoveAddress(ctx, Address{WorkerID: "w3"}))
	metas := f.reg.fitables.QueryByGenericID("g.create")
	require.Len(t, metas, 1)
	assert.Equal(t, appOrder, metas[0].Application)
}

func TestServiceRegistry_RemoveAddressReturnsServed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, key("g.create", "a"))))
	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, key("g.cancel", "b"))))

	removed := f.reg.RemoveAddress(ctx, Address{WorkerID: "w1"})
	require.Len(t, removed, 2)
	for _, s := range removed {
		assert.Equal(t, "w1", s.Worker.ID)
		assert.Len(t, s.Addresses, 2)
	}
	assert.Empty(t, f.reg.GetAllServices())
}

func TestServiceRegistry_InsertOrUpdateSyncCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := ad("w1", appOrder, key("g.create", "default"))
	s2 := ad("w2", appStock, key("g.reserve", "default"))

	require.True(t, f.reg.Save(ctx, withSync(s2, 1)))
	require.True(t, f.reg.InsertServiceOrUpdateSyncCount(ctx, []ServiceAdvertisement{withSync(s1, 5)}))
	require.Len(t, f.reg.Query(s1.Fitable.Key), 1)

	updated := withSync(s1, 6)
	updated.Fitable.Tags = []string{"ignored"}
	require.True(t, f.reg.InsertServiceOrUpdateSyncCount(ctx, []ServiceAdvertisement{updated}))

	got := f.reg.Query(s1.Fitable.Key)
	require.Len(t, got, 1, "no duplicate")
	assert.Equal(t, int64(6), got[0].Worker.SyncCount)
	assert.Nil(t, got[0].Fitable.Tags, "metadata is not re-saved on sync")
	assert.Equal(t, 2, f.timers.sets)
	assert.Equal(t, 0, f.timers.updates, "timer is not reset on sync")

	stale := f.reg.GetServicesNotUpdated(5)
	require.Len(t, stale, 1)
	assert.Equal(t, "w2", stale[0].Worker.ID)
}

func TestServiceRegistry_InsertOrUpdateSyncCountRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good := ad("w1", appOrder, key("g.create", "default"))
	bad := ad("", appOrder, key("g.create", "default"))

	assert.False(t, f.reg.InsertServiceOrUpdateSyncCount(ctx, []ServiceAdvertisement{bad, good}))
	assert.Len(t, f.reg.GetAllServices(), 1, "valid entries are still applied")
}

func TestServiceRegistry_ValidationRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]func(*ServiceAdvertisement){
		"worker id":           func(s *ServiceAdvertisement) { s.Worker.ID = "" },
		"application name":    func(s *ServiceAdvertisement) { s.Worker.Application.Name = "" },
		"application version": func(s *ServiceAdvertisement) { s.Worker.Application.Version = "" },
		"generic id":          func(s *ServiceAdvertisement) { s.Fitable.Key.GenericID = "" },
		"generic version":     func(s *ServiceAdvertisement) { s.Fitable.Key.GenericVersion = "" },
		"fitable id":          func(s *ServiceAdvertisement) { s.Fitable.Key.FitableID = "" },
		"lease overflow":      func(s *ServiceAdvertisement) { s.Worker.LeaseSeconds = MaxLeaseSeconds + 1 },
		"application mismatch": func(s *ServiceAdvertisement) {
			s.Fitable.Application = appStock
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := ad("w1", appOrder, key("g.create", "default"))
			mutate(&s)

			err := ValidateAdvertisement(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAdvertisement))

			assert.False(t, f.reg.Save(ctx, s))
			assert.Empty(t, f.reg.GetAllServices())
			assert.Equal(t, 0, f.timers.pending())
		})
	}
}

func TestServiceRegistry_SaveAllIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good := ad("w1", appOrder, key("g.create", "default"))
	bad := ad("w2", appStock, key("", "default"))

	assert.False(t, f.reg.SaveAll(ctx, []ServiceAdvertisement{good, bad}))
	assert.Empty(t, f.reg.GetAllServices())

	other := ad("w2", appStock, key("g.reserve", "default"))
	assert.True(t, f.reg.SaveAll(ctx, []ServiceAdvertisement{good, other}))
	assert.Len(t, f.reg.GetAllServices(), 2)
}

func TestServiceRegistry_RemoveAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := ad("w1", appOrder, key("g.create", "default"))
	s2 := ad("w2", appStock, key("g.reserve", "default"))
	require.True(t, f.reg.SaveAll(ctx, []ServiceAdvertisement{s1, s2}))

	assert.True(t, f.reg.RemoveAll(ctx, []ServiceAdvertisement{s1, ad("w9", appOrder, key("g.none", "x"))}))
	assert.Len(t, f.reg.GetAllServices(), 1)
	assert.False(t, f.reg.RemoveAll(ctx, []ServiceAdvertisement{s1}))
}

func TestServiceRegistry_TimerFailureRejectsSave(t *testing.T) {
	f := newFixture(t)
	f.timers.err = errors.New("scheduler closed")

	assert.False(t, f.reg.Save(context.Background(), ad("w1", appOrder, key("g.create", "default"))))
	assert.Empty(t, f.reg.GetAllServices())
	assert.False(t, f.reg.IsApplicationExist(appOrder))
}

func TestServiceRegistry_NotReady(t *testing.T) {
	log := logger.NewNopLogger()
	reg := NewServiceRegistry(nil, NewAddressDirectory(log), NewFitableDirectory(log), WithLogger(log))
	ctx := context.Background()
	s := ad("w1", appOrder, key("g.create", "default"))

	assert.False(t, reg.Save(ctx, s))
	assert.False(t, reg.SaveAll(ctx, []ServiceAdvertisement{s}))
	assert.Nil(t, reg.Query(s.Fitable.Key))
	assert.Nil(t, reg.QueryByAddress(s.Fitable.Key, Address{WorkerID: "w1"}))
	assert.False(t, reg.Remove(ctx, s.Fitable.Key, Address{WorkerID: "w1"}))
	assert.Nil(t, reg.RemoveAddress(ctx, Address{WorkerID: "w1"}))
	assert.Nil(t, reg.GetAllServices())
	assert.Nil(t, reg.GetServicesNotUpdated(1))
	assert.False(t, reg.InsertServiceOrUpdateSyncCount(ctx, []ServiceAdvertisement{s}))
	assert.Nil(t, reg.GetFitableInstances("g.create"))
	assert.Nil(t, reg.QueryAllWorkers())
	_, ok := reg.QueryWorkerDetail("w1")
	assert.False(t, ok)
	assert.False(t, reg.IsApplicationExist(appOrder))
}

func TestServiceRegistry_ReadJoins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.reg.Save(ctx, ad("w2", appOrder, key("g.create", "a"))))
	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, key("g.cancel", "b"))))

	instances := f.reg.GetFitableInstances("g.create")
	require.Len(t, instances, 1)
	require.Len(t, instances[0].Workers, 2)
	assert.Equal(t, "w1", instances[0].Workers[0].ID)

	detail, ok := f.reg.QueryWorkerDetail("w2")
	require.True(t, ok)
	assert.Len(t, detail.Addresses, 2)
	assert.Len(t, detail.Fitables, 2, "every fitable of the worker's application")

	workers := f.reg.QueryAllWorkers()
	require.Len(t, workers, 2)
	assert.Equal(t, "w1", workers[0].Worker.ID)

	all := f.reg.GetAllServices()
	require.Len(t, all, 4)
	assert.Equal(t, "w1", all[0].Worker.ID)
}

func TestServiceRegistry_DefaultExpiryEvicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := ad("w1", appOrder, key("g.create", "default"))
	require.True(t, f.reg.Save(ctx, s1))

	var calls [][]ServiceAdvertisement
	f.reg.InitTimeoutCallback(func(ads []ServiceAdvertisement) {
		calls = append(calls, ads)
	})

	f.clock.Advance(10 * time.Second)
	f.fireWorker(t, "w1")
	assert.Empty(t, f.reg.Query(s1.Fitable.Key))
	require.Len(t, calls, 1)
	assert.Equal(t, []ServiceAdvertisement{s1.normalized()}, calls[0])
}

func TestServiceRegistry_DefaultExpiryKeepsRenewedWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := ad("w1", appOrder, key("g.create", "default"))
	require.True(t, f.reg.Save(ctx, s1))

	var calls int
	f.reg.InitTimeoutCallback(func([]ServiceAdvertisement) { calls++ })

	// the timer fires and its callback waits in the pool while w1 renews
	f.clock.Advance(10 * time.Second)
	h := f.reg.workers.byID["w1"].timer
	stale, ok := f.timers.task(h)
	require.True(t, ok)
	require.NoError(t, f.timers.Remove(h))
	require.True(t, f.reg.Save(ctx, s1))

	stale.fn()

	assert.Len(t, f.reg.Query(s1.Fitable.Key), 1)
	assert.Zero(t, calls)
	assert.Equal(t, 1, f.timers.pending(), "renewed lease still armed")
}

func TestServiceRegistry_ConcurrentAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("g.create", "default")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			app := appOrder
			if i%2 == 1 {
				app = appStock
			}
			id := "w" + string(rune('a'+i))
			for n := 0; n < 50; n++ {
				f.reg.Save(ctx, withSync(ad(id, app, k), int64(n)))
				f.reg.Query(k)
				f.reg.GetServicesByGenericID("g.create")
				if n%10 == 0 {
					f.reg.RemoveAddress(ctx, Address{WorkerID: id})
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.reg.Query(k), 8)
	assert.Equal(t, 8, f.timers.pending())
}
