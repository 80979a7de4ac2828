// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/require"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromFile("openapi.yaml")
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

// contractRequest runs one request through the full handler stack and keeps
// the request around for route lookup during validation.
func contractRequest(t *testing.T, srv *Server, method, path string, body io.Reader, authed bool) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return req, rr
}

func validateOpenAPIResponse(t *testing.T, doc *openapi3.T, req *http.Request, rr *httptest.ResponseRecorder) {
	t.Helper()

	router, err := legacy.NewRouter(doc)
	require.NoError(t, err, "openapi router init")

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup for %s %s", req.Method, req.URL.Path)

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: rr.Code,
		Header: rr.Header(),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
		},
	}
	input.SetBodyBytes(rr.Body.Bytes())

	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input),
		"openapi response validation for %s %s (%d)", req.Method, req.URL.Path, rr.Code)
}

func TestContractSystemEndpoints(t *testing.T) {
	srv := newTestServer(t)
	doc := loadOpenAPIDoc(t)

	for _, tc := range []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/api/v1/status", http.StatusOK},
		{http.MethodPost, "/api/v1/sync", http.StatusAccepted},
	} {
		req, rr := contractRequest(t, srv, tc.method, tc.path, nil, true)
		require.Equal(t, tc.status, rr.Code, "%s %s", tc.method, tc.path)
		validateOpenAPIResponse(t, doc, req, rr)
	}
}

func TestContractCatalog(t *testing.T) {
	srv := newTestServer(t)
	seedCatalog(t, srv)
	doc := loadOpenAPIDoc(t)

	req, rr := contractRequest(t, srv, http.MethodGet, "/api/v1/collections", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)

	req, rr = contractRequest(t, srv, http.MethodGet, "/api/v1/parts", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)

	req, rr = contractRequest(t, srv, http.MethodGet, "/api/v1/parts/xt_m8100_cassette", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)

	body, err := json.Marshal(testManufacturer())
	require.NoError(t, err)
	req, rr = contractRequest(t, srv, http.MethodPut, "/api/v1/manufacturers/shimano", bytes.NewReader(body), true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)

	body, err = json.Marshal([]any{testPart()})
	require.NoError(t, err)
	req, rr = contractRequest(t, srv, http.MethodPost, "/api/v1/parts", bytes.NewReader(body), true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)

	req, rr = contractRequest(t, srv, http.MethodDelete, "/api/v1/parts/xt_m8100_cassette", nil, true)
	require.Equal(t, http.StatusNoContent, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)
}

func TestContractPrices(t *testing.T) {
	srv := newTestServer(t)
	seedCatalog(t, srv)
	doc := loadOpenAPIDoc(t)

	results := `[{"price":{"value":499.0,"currency":"EUR"},"available":true}]`
	req, rr := contractRequest(t, srv, http.MethodPost,
		"/api/v1/scrape-results?part=xt_m8100_cassette&variant=12_speed_10_51",
		strings.NewReader(results), true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)

	req, rr = contractRequest(t, srv, http.MethodGet, "/api/v1/parts/xt_m8100_cassette/prices", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)

	req, rr = contractRequest(t, srv, http.MethodGet, "/api/v1/parts/xt_m8100_cassette/prices/latest", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)
}

func TestContractScrapePlanning(t *testing.T) {
	srv := newTestServer(t)
	seedCatalog(t, srv)
	doc := loadOpenAPIDoc(t)

	req, rr := contractRequest(t, srv, http.MethodGet, "/api/v1/shops/bike_components/plan", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)

	req, rr = contractRequest(t, srv, http.MethodGet, "/api/v1/shops/bike_components/search?query=cassette", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr)
}

func TestContractProblemResponses(t *testing.T) {
	srv := newTestServer(t)
	doc := loadOpenAPIDoc(t)

	for _, tc := range []struct {
		name   string
		method string
		path   string
		authed bool
		status int
	}{
		{"missing token", http.MethodGet, "/api/v1/status", false, http.StatusUnauthorized},
		{"unknown part", http.MethodGet, "/api/v1/parts/no_such_part", true, http.StatusNotFound},
		{"bad since", http.MethodGet, "/api/v1/parts/no_such_part/prices?since=yesterday", true, http.StatusNotFound},
		{"scraper disabled", http.MethodPost, "/api/v1/scrape/run", true, http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req, rr := contractRequest(t, srv, tc.method, tc.path, nil, tc.authed)
			require.Equal(t, tc.status, rr.Code)
			require.Contains(t, rr.Header().Get("Content-Type"), "application/problem+json")
			validateOpenAPIResponse(t, doc, req, rr)
		})
	}
}
