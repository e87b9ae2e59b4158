package admin

import (
	"context"

	"github.com/KOMKZ/go-fit-framework/httpx"
	"github.com/KOMKZ/go-fit-framework/registry"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
)

// Registry the façade operations the admin API needs
type Registry interface {
	GetAllServices() []registry.ServiceAdvertisement
	GetServicesByGenericID(genericID string) []registry.ServiceAdvertisement
	GetServicesNotUpdated(syncCount int64) []registry.ServiceAdvertisement
	GetFitableInstances(genericID string) []registry.FitableInstance
	QueryAllWorkers() []registry.WorkerMeta
	QueryWorkerDetail(workerID string) (*registry.WorkerDetail, bool)
	RemoveAddress(ctx context.Context, addr registry.Address) []registry.ServiceAdvertisement
}

type handler struct {
	registry Registry
	server   *Server
}

type emptyRequest struct{}

type genericRequest struct {
	GenericID string `uri:"genericId"`
}

func (r genericRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.GenericID, validation.Required))
}

type workerRequest struct {
	WorkerID string `uri:"workerId"`
}

func (r workerRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.WorkerID, validation.Required))
}

type staleRequest struct {
	SyncCount int64 `form:"syncCount"`
}

func (r staleRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.SyncCount, validation.Min(int64(0))))
}

// ServiceList services payload
type ServiceList struct {
	Total    int                             `json:"total"`
	Services []registry.ServiceAdvertisement `json:"services"`
}

// InstanceList fitable instances payload
type InstanceList struct {
	Total     int                        `json:"total"`
	Instances []registry.FitableInstance `json:"instances"`
}

// WorkerList workers payload
type WorkerList struct {
	Total   int                   `json:"total"`
	Workers []registry.WorkerMeta `json:"workers"`
}

func serviceList(ads []registry.ServiceAdvertisement) *ServiceList {
	if ads == nil {
		ads = []registry.ServiceAdvertisement{}
	}
	return &ServiceList{Total: len(ads), Services: ads}
}

func (h *handler) listServices(c *gin.Context, _ *emptyRequest) (*ServiceList, error) {
	return serviceList(h.registry.GetAllServices()), nil
}

func (h *handler) servicesByGeneric(c *gin.Context, req *genericRequest) (*ServiceList, error) {
	return serviceList(h.registry.GetServicesByGenericID(req.GenericID)), nil
}

func (h *handler) staleServices(c *gin.Context, req *staleRequest) (*ServiceList, error) {
	return serviceList(h.registry.GetServicesNotUpdated(req.SyncCount)), nil
}

func (h *handler) fitableInstances(c *gin.Context, req *genericRequest) (*InstanceList, error) {
	instances := h.registry.GetFitableInstances(req.GenericID)
	if instances == nil {
		instances = []registry.FitableInstance{}
	}
	return &InstanceList{Total: len(instances), Instances: instances}, nil
}

func (h *handler) listWorkers(c *gin.Context, _ *emptyRequest) (*WorkerList, error) {
	workers := h.registry.QueryAllWorkers()
	if workers == nil {
		workers = []registry.WorkerMeta{}
	}
	return &WorkerList{Total: len(workers), Workers: workers}, nil
}

func (h *handler) workerDetail(c *gin.Context, req *workerRequest) (*registry.WorkerDetail, error) {
	detail, ok := h.registry.QueryWorkerDetail(req.WorkerID)
	if !ok {
		return nil, registry.ErrWorkerNotFound.WithData("worker_id", req.WorkerID)
	}
	return detail, nil
}

func (h *handler) evictWorker(c *gin.Context, req *workerRequest) (*ServiceList, error) {
	if _, ok := h.registry.QueryWorkerDetail(req.WorkerID); !ok {
		return nil, registry.ErrWorkerNotFound.WithData("worker_id", req.WorkerID)
	}
	removed := h.registry.RemoveAddress(c.Request.Context(), registry.Address{WorkerID: req.WorkerID})
	h.server.log.InfoCtx(c.Request.Context(), "Worker evicted by admin",
		zap.String("worker_id", req.WorkerID),
		zap.Int("services", len(removed)))
	return serviceList(removed), nil
}

func (h *handler) health(c *gin.Context) {
	if h.server.health == nil {
		httpx.OkJson(c, gin.H{"status": "healthy"})
		return
	}
	resp := h.server.health.Check(c.Request.Context())
	status := 200
	if !resp.IsHealthy() {
		status = 503
	}
	c.JSON(status, httpx.Response{Code: 0, Msg: string(resp.Status), Data: resp})
}
