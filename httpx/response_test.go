package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KOMKZ/go-fit-framework/errcode"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errTestNotFound = errcode.New(99, 1, "test", "error.test.not_found", "thing not found", http.StatusNotFound)

func perform(engine *gin.Engine, method, path string) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	engine.ServeHTTP(w, req)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHandleError_LayeredError(t *testing.T) {
	engine := gin.New()
	engine.Use(ErrorLoggingMiddleware(ErrorLoggingConfig{Enable: true, IgnoreHTTPStatus: []int{404}}))
	engine.GET("/x", func(c *gin.Context) {
		HandleError(c, errTestNotFound.WithData("id", "42"))
	})

	w, resp := perform(engine, http.MethodGet, "/x")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 990001, resp.Code)
	assert.Equal(t, "thing not found", resp.Msg)
	assert.Equal(t, map[string]interface{}{"id": "42"}, resp.Data)
}

func TestHandleError_PlainError(t *testing.T) {
	engine := gin.New()
	engine.GET("/x", func(c *gin.Context) {
		HandleError(c, errors.New("boom"))
	})

	w, resp := perform(engine, http.MethodGet, "/x")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "boom", resp.Msg)
}

func TestNoRouteAndNoMethod(t *testing.T) {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(NoRouteHandler())
	engine.NoMethod(NoMethodHandler())
	engine.GET("/only-get", func(c *gin.Context) { OkJson(c, nil) })

	w, _ := perform(engine, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = perform(engine, http.MethodPost, "/only-get")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

type lookupRequest struct {
	ID    string `uri:"id"`
	Limit int    `form:"limit"`
}

func (r lookupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Limit, validation.Min(0), validation.Max(100)),
	)
}

type lookupResponse struct {
	ID    string `json:"id"`
	Limit int    `json:"limit"`
}

func TestWrap(t *testing.T) {
	engine := gin.New()
	engine.GET("/items/:id", Wrap(func(c *gin.Context, req *lookupRequest) (*lookupResponse, error) {
		if req.ID == "missing" {
			return nil, errTestNotFound
		}
		return &lookupResponse{ID: req.ID, Limit: req.Limit}, nil
	}))

	w, resp := perform(engine, http.MethodGet, "/items/a1?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, map[string]interface{}{"id": "a1", "limit": float64(5)}, resp.Data)

	w, _ = perform(engine, http.MethodGet, "/items/a1?limit=500")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = perform(engine, http.MethodGet, "/items/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "thing not found", resp.Msg)
}
