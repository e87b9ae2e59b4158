// Package testutil helpers for tests that drive the registry through HTTP
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
)

// Envelope httpx.Response with the payload left raw
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// RequestBuilder builds one request against an http.Handler
type RequestBuilder struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
	query   url.Values
}

// NewRequest creates a builder
func NewRequest(method, path string) *RequestBuilder {
	return &RequestBuilder{
		method:  method,
		path:    path,
		headers: make(map[string]string),
		query:   make(url.Values),
	}
}

// GET shorthand
func GET(path string) *RequestBuilder { return NewRequest(http.MethodGet, path) }

// DELETE shorthand
func DELETE(path string) *RequestBuilder { return NewRequest(http.MethodDelete, path) }

// WithJSON body marshalled as JSON
func (rb *RequestBuilder) WithJSON(body interface{}) *RequestBuilder {
	rb.body = body
	return rb
}

// WithHeader sets a header
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers[key] = value
	return rb
}

// WithQuery adds a query parameter
func (rb *RequestBuilder) WithQuery(key, value string) *RequestBuilder {
	rb.query.Add(key, value)
	return rb
}

// WithTraceID sets X-Trace-ID
func (rb *RequestBuilder) WithTraceID(traceID string) *RequestBuilder {
	return rb.WithHeader("X-Trace-ID", traceID)
}

// Do serves the request on h
func (rb *RequestBuilder) Do(h http.Handler) *ResponseHelper {
	target := rb.path
	if len(rb.query) > 0 {
		target += "?" + rb.query.Encode()
	}

	var body []byte
	if rb.body != nil {
		body, _ = json.Marshal(rb.body)
	}
	req := httptest.NewRequest(rb.method, target, bytes.NewReader(body))
	for k, v := range rb.headers {
		req.Header.Set(k, v)
	}
	if rb.body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return &ResponseHelper{Recorder: w}
}

// ResponseHelper wraps the recorded response
type ResponseHelper struct {
	Recorder *httptest.ResponseRecorder
}

// Status code
func (rh *ResponseHelper) Status() int {
	return rh.Recorder.Code
}

// Body raw body
func (rh *ResponseHelper) Body() string {
	return rh.Recorder.Body.String()
}

// Header response header
func (rh *ResponseHelper) Header(key string) string {
	return rh.Recorder.Header().Get(key)
}

// JSON decodes the whole body
func (rh *ResponseHelper) JSON(v interface{}) error {
	return json.Unmarshal(rh.Recorder.Body.Bytes(), v)
}

// Envelope decodes the unified envelope
func (rh *ResponseHelper) Envelope() (Envelope, error) {
	var env Envelope
	err := rh.JSON(&env)
	return env, err
}

// Data decodes the envelope payload into v
func (rh *ResponseHelper) Data(v interface{}) error {
	env, err := rh.Envelope()
	if err != nil {
		return err
	}
	return json.Unmarshal(env.Data, v)
}
