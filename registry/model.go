// Package registry is the in-memory FIT service registry.
//
// Three directories (workers, addresses, fitables) each own their indices and
// lock; ServiceRegistry composes them into one unit of work keyed by a
// ServiceAdvertisement, arms worker lease timers and exposes the incremental
// sync protocol used between registry replicas.
package registry

import (
	"errors"
	"math"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Application deployable unit identity, compared by value
type Application struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// String name:version
func (a Application) String() string {
	return a.Name + ":" + a.Version
}

// IsZero reports whether neither field is set
func (a Application) IsZero() bool {
	return a.Name == "" && a.Version == ""
}

// Validate name and version are both required
func (a Application) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Version, validation.Required),
	)
}

// Address network endpoint owned by exactly one worker
type Address struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Protocol    string `json:"protocol"`
	Environment string `json:"environment"`
	WorkerID    string `json:"workerId"`
}

// sameEndpoint host, port and protocol match
func (a Address) sameEndpoint(b Address) bool {
	return a.Host == b.Host && a.Port == b.Port && a.Protocol == b.Protocol
}

// Worker one running process instance
type Worker struct {
	ID           string      `json:"id"`
	Application  Application `json:"application"`
	Environment  string      `json:"environment"`
	LeaseSeconds int64       `json:"leaseSeconds"`
	CreationTime time.Time   `json:"creationTime"`
	Version      string      `json:"version"`
	SyncCount    int64       `json:"syncCount"`
}

// MaxLeaseSeconds longest lease that still fits a time.Duration
const MaxLeaseSeconds = int64(math.MaxInt64 / int64(time.Second))

// Validate id and application are required; the lease must fit a time.Duration
func (w Worker) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.ID, validation.Required),
		validation.Field(&w.Application),
		validation.Field(&w.LeaseSeconds, validation.Max(MaxLeaseSeconds)),
	)
}

// FitableKey identifies one implementation of one genericable
type FitableKey struct {
	GenericID      string `json:"genericId"`
	GenericVersion string `json:"genericVersion"`
	FitableID      string `json:"fitableId"`
	FitableVersion string `json:"fitableVersion"`
}

// Validate genericId, genericVersion and fitableId are required
func (k FitableKey) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.GenericID, validation.Required),
		validation.Field(&k.GenericVersion, validation.Required),
		validation.Field(&k.FitableID, validation.Required),
	)
}

// FitableMeta capability metadata of one fitable exposed by one application
type FitableMeta struct {
	Key         FitableKey        `json:"key"`
	Application Application       `json:"application"`
	Formats     []int             `json:"formats,omitempty"`
	Aliases     []string          `json:"aliases,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Extensions  map[string]string `json:"extensions,omitempty"`
	Environment string            `json:"environment"`
}

// Validate key and application
func (m FitableMeta) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Key),
		validation.Field(&m.Application),
	)
}

func (m FitableMeta) clone() FitableMeta {
	c := m
	c.Formats = append([]int(nil), m.Formats...)
	c.Aliases = append([]string(nil), m.Aliases...)
	c.Tags = append([]string(nil), m.Tags...)
	if m.Extensions != nil {
		c.Extensions = make(map[string]string, len(m.Extensions))
		for k, v := range m.Extensions {
			c.Extensions[k] = v
		}
	}
	return c
}

// ServiceAdvertisement the unit registered, queried and removed together
type ServiceAdvertisement struct {
	Worker    Worker      `json:"worker"`
	Addresses []Address   `json:"addresses"`
	Fitable   FitableMeta `json:"fitable"`
}

var errApplicationMismatch = errors.New("must match the worker application")

// Validate worker, fitable, and that both name the same application
func (ad ServiceAdvertisement) Validate() error {
	if err := validation.ValidateStruct(&ad,
		validation.Field(&ad.Worker),
		validation.Field(&ad.Fitable),
	); err != nil {
		return err
	}
	if ad.Fitable.Application != ad.Worker.Application {
		return validation.Errors{
			"fitable": validation.Errors{"application": errApplicationMismatch},
		}
	}
	return nil
}

// normalized fills the fitable application from the worker when omitted and
// stamps the worker id on every address
func (ad ServiceAdvertisement) normalized() ServiceAdvertisement {
	if ad.Fitable.Application.IsZero() {
		ad.Fitable.Application = ad.Worker.Application
	}
	ad.Addresses = withWorkerID(ad.Addresses, ad.Worker.ID)
	ad.Fitable = ad.Fitable.clone()
	return ad
}

// WorkerMeta a worker with its addresses
type WorkerMeta struct {
	Worker    Worker    `json:"worker"`
	Addresses []Address `json:"addresses"`
}

// WorkerDetail a worker, its addresses and every fitable of its application
type WorkerDetail struct {
	Worker    Worker        `json:"worker"`
	Addresses []Address     `json:"addresses"`
	Fitables  []FitableMeta `json:"fitables"`
}

// FitableInstance one fitable meta and the workers currently serving it
type FitableInstance struct {
	Meta    FitableMeta `json:"meta"`
	Workers []Worker    `json:"workers"`
}

func withWorkerID(addrs []Address, workerID string) []Address {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]Address, len(addrs))
	for i, a := range addrs {
		a.WorkerID = workerID
		out[i] = a
	}
	return out
}

func sortWorkers(ws []Worker) {
	sort.Slice(ws, func(i, j int) bool { return ws[i].ID < ws[j].ID })
}

func sortMetas(ms []FitableMeta) {
	sort.Slice(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Key.GenericID != b.Key.GenericID {
			return a.Key.GenericID < b.Key.GenericID
		}
		if a.Key.GenericVersion != b.Key.GenericVersion {
			return a.Key.GenericVersion < b.Key.GenericVersion
		}
		if a.Key.FitableID != b.Key.FitableID {
			return a.Key.FitableID < b.Key.FitableID
		}
		if a.Key.FitableVersion != b.Key.FitableVersion {
			return a.Key.FitableVersion < b.Key.FitableVersion
		}
		if a.Application.Name != b.Application.Name {
			return a.Application.Name < b.Application.Name
		}
		return a.Application.Version < b.Application.Version
	})
}
