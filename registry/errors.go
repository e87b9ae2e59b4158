package registry

import (
	"net/http"

	"github.com/KOMKZ/go-fit-framework/errcode"
)

// module code 20: fit registry
var (
	// ErrInvalidAdvertisement required identity fields missing
	ErrInvalidAdvertisement = errcode.Register(errcode.New(20, 1, "registry",
		"error.registry.invalid_advertisement", "invalid service advertisement", http.StatusBadRequest))

	// ErrNotReady a directory is missing
	ErrNotReady = errcode.Register(errcode.New(20, 2, "registry",
		"error.registry.not_ready", "service registry not ready", http.StatusServiceUnavailable))

	// ErrTimerArm the lease timer could not be armed
	ErrTimerArm = errcode.Register(errcode.New(20, 3, "registry",
		"error.registry.timer_arm", "arm worker lease timer failed", http.StatusInternalServerError))

	// ErrWorkerNotFound no record for the worker id
	ErrWorkerNotFound = errcode.Register(errcode.New(20, 4, "registry",
		"error.registry.worker_not_found", "worker not found", http.StatusNotFound))
)
