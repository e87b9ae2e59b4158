package registry

import (
	"sync"

	"github.com/KOMKZ/go-fit-framework/logger"
	"go.uber.org/zap"
)

// AddressDirectory the endpoint set of each worker, replaced as a whole
type AddressDirectory struct {
	mu       sync.RWMutex
	byWorker map[string][]Address
	log      *logger.CtxZapLogger
}

// NewAddressDirectory creates an empty directory
func NewAddressDirectory(log *logger.CtxZapLogger) *AddressDirectory {
	if log == nil {
		log = logger.GetLogger("fit")
	}
	return &AddressDirectory{
		byWorker: make(map[string][]Address),
		log:      log,
	}
}

// Save overwrites the address set of workerID; an empty set removes it
func (d *AddressDirectory) Save(workerID string, addrs []Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saveLocked(workerID, addrs)
}

func (d *AddressDirectory) saveLocked(workerID string, addrs []Address) {
	if len(addrs) == 0 {
		delete(d.byWorker, workerID)
		return
	}
	d.byWorker[workerID] = withWorkerID(addrs, workerID)
	d.log.Debug("Addresses saved", zap.String("worker_id", workerID), zap.Int("count", len(addrs)))
}

// Query address set of workerID
func (d *AddressDirectory) Query(workerID string) []Address {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queryLocked(workerID)
}

func (d *AddressDirectory) queryLocked(workerID string) []Address {
	return append([]Address(nil), d.byWorker[workerID]...)
}

// QueryAddress finds the stored endpoint matching host, port and protocol
// within the set of addr.WorkerID
func (d *AddressDirectory) QueryAddress(addr Address) (Address, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.byWorker[addr.WorkerID] {
		if a.sameEndpoint(addr) {
			return a, true
		}
	}
	return Address{}, false
}

// Remove drops the address set of workerID
func (d *AddressDirectory) Remove(workerID string) []Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removeLocked(workerID)
}

func (d *AddressDirectory) removeLocked(workerID string) []Address {
	addrs, ok := d.byWorker[workerID]
	if !ok {
		return nil
	}
	delete(d.byWorker, workerID)
	return addrs
}
