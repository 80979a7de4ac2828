// SPDX-License-Identifier: MIT

// Package auth extracts and validates API tokens from HTTP requests.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const (
	sessionCookieName = "bba_session"
	legacyCookieName  = "X-API-Token"
)

// ExtractToken retrieves the API token from the request. Query parameters
// are never consulted so tokens cannot leak into access logs.
//
//  1. Authorization: Bearer <token>
//  2. Cookie: bba_session
//  3. Header: X-API-Token
//  4. Cookie: X-API-Token (last resort)
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}

	if t := ExtractSessionToken(r); t != "" {
		return t
	}

	if t := r.Header.Get("X-API-Token"); t != "" {
		return t
	}

	if c, err := r.Cookie(legacyCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	return ""
}

// ExtractSessionToken retrieves only the session cookie token.
func ExtractSessionToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// AuthorizeToken returns true if got matches expected using constant-time
// comparison. Empty tokens are always unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest extracts a token from r and validates it against expected.
func AuthorizeRequest(r *http.Request, expected string) bool {
	if r == nil {
		return false
	}
	return AuthorizeToken(ExtractToken(r), expected)
}
