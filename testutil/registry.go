package testutil

import (
	"testing"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/KOMKZ/go-fit-framework/registry"
	"github.com/KOMKZ/go-fit-framework/timer"
)

// NewRegistry registry on a real timer service with nop logging; the timer
// service is shut down with the test
func NewRegistry(t testing.TB, opts ...registry.Option) *registry.ServiceRegistry {
	t.Helper()
	log := logger.NewNopLogger()
	timers, err := timer.New(timer.Config{PoolSize: 4}, log)
	if err != nil {
		t.Fatalf("create timer service: %v", err)
	}
	t.Cleanup(func() { _ = timers.Shutdown() })

	opts = append([]registry.Option{registry.WithLogger(log)}, opts...)
	return registry.NewServiceRegistry(
		registry.NewWorkerDirectory(timers, 0, log),
		registry.NewAddressDirectory(log),
		registry.NewFitableDirectory(log),
		opts...,
	)
}

// AdBuilder builds a valid advertisement; versions default to 1.0
type AdBuilder struct {
	ad registry.ServiceAdvertisement
}

// Ad one http address on 10.0.0.1:8080, fitable "default" of genericID
func Ad(workerID, app, genericID string) *AdBuilder {
	a := registry.Application{Name: app, Version: "1.0"}
	return &AdBuilder{ad: registry.ServiceAdvertisement{
		Worker: registry.Worker{ID: workerID, Application: a, LeaseSeconds: 60},
		Addresses: []registry.Address{
			{Host: "10.0.0.1", Port: 8080, Protocol: "http"},
		},
		Fitable: registry.FitableMeta{
			Key:         registry.FitableKey{GenericID: genericID, GenericVersion: "1.0", FitableID: "default", FitableVersion: "1.0"},
			Application: a,
		},
	}}
}

// Fitable replaces the fitable id
func (b *AdBuilder) Fitable(id string) *AdBuilder {
	b.ad.Fitable.Key.FitableID = id
	return b
}

// Sync sets the worker sync count
func (b *AdBuilder) Sync(n int64) *AdBuilder {
	b.ad.Worker.SyncCount = n
	return b
}

// Lease sets the worker lease
func (b *AdBuilder) Lease(seconds int64) *AdBuilder {
	b.ad.Worker.LeaseSeconds = seconds
	return b
}

// Address replaces the addresses with one endpoint
func (b *AdBuilder) Address(host string, port int, protocol string) *AdBuilder {
	b.ad.Addresses = []registry.Address{{Host: host, Port: port, Protocol: protocol}}
	return b
}

// Build a copy of the advertisement
func (b *AdBuilder) Build() registry.ServiceAdvertisement {
	ad := b.ad
	ad.Addresses = append([]registry.Address(nil), b.ad.Addresses...)
	return ad
}
