// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// OTelHTTP wraps the handler with OpenTelemetry HTTP instrumentation. Spans
// are created for all requests except probe and metrics endpoints, and
// incoming W3C trace context is propagated. With the noop tracer provider
// installed this costs nothing.
func OTelHTTP(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			serviceName,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithFilter(shouldTrace),
			otelhttp.WithSpanNameFormatter(spanName),
		)
	}
}

// shouldTrace skips health checks and metrics scrapes to reduce noise.
func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/livez", "/metrics":
		return false
	}
	return true
}

// spanName renders "HTTP GET /api/v1/parts" style span names. Query values
// are never exposed.
func spanName(operation string, r *http.Request) string {
	name := r.Method + " " + r.URL.Path
	if operation != "" {
		name = operation + " " + name
	}
	if r.URL.RawQuery != "" {
		name += "?"
	}
	return name
}
