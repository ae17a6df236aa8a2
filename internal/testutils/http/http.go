// Package http builds echo contexts for handler tests.
package http

import (
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
)

// RequestOption modifies requests before they reach handlers.
type RequestOption func(*http.Request)

func WithHeader(key string, values ...string) RequestOption {
	return func(req *http.Request) {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
}

func Bearer(token string) RequestOption {
	return WithHeader(echo.HeaderAuthorization, "Bearer "+token)
}

// Get returns a context of GET target, with the recorder of its response.
func Get(e *echo.Echo, target string, opts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return newContext(e, http.MethodGet, target, opts)
}

// Delete is Get for DELETE.
func Delete(e *echo.Echo, target string, opts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return newContext(e, http.MethodDelete, target, opts)
}

func newContext(e *echo.Echo, method, target string, opts []RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
