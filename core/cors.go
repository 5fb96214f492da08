package core

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSMiddleware creates a CORS middleware handler for the HTTP API.
// It answers preflight (OPTIONS) requests itself with 200 and adds the
// CORS headers to every other response.
//
// The middleware supports:
//   - Wildcard origins ("*" for all origins)
//   - Wildcard subdomains ("*.example.com")
//   - Wildcard ports ("http://localhost:*")
//
// With the "*" origin and credentials disabled the literal "*" is returned,
// so browsers and non-browser clients see the same headers.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ApplyCORS(w, r, config)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ApplyCORS writes the CORS headers for r to w according to config.
func ApplyCORS(w http.ResponseWriter, r *http.Request, config *CORSConfig) {
	if !config.Enabled {
		return
	}

	allowOrigin := resolveAllowOrigin(r.Header.Get("Origin"), config)
	if allowOrigin == "" {
		return
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", allowOrigin)
	if allowOrigin != "*" {
		h.Add("Vary", "Origin")
	}
	if config.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(config.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
	}
	if len(config.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
	}
	if config.MaxAge > 0 && r.Method == http.MethodOptions {
		h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
	}
}

// resolveAllowOrigin returns the Access-Control-Allow-Origin value for the
// request origin, or "" when the origin is not allowed.
func resolveAllowOrigin(origin string, config *CORSConfig) string {
	for _, allowed := range config.AllowedOrigins {
		if allowed == "*" {
			// Credentials cannot be combined with the literal wildcard
			if config.AllowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if isOriginAllowed(origin, config.AllowedOrigins) {
		return origin
	}
	return ""
}

// isOriginAllowed checks if an origin is allowed based on the configuration.
// This function implements the origin matching logic including:
//   - Exact origin matching
//   - Wildcard all origins ("*")
//   - Wildcard subdomain matching ("*.example.com")
//   - Wildcard port matching ("http://localhost:*")
//
// An empty origin returns false.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}

		// Wildcard subdomain support (e.g., *.example.com or https://*.example.com)
		if idx := strings.Index(allowed, "*."); idx >= 0 {
			before := allowed[:idx]
			after := allowed[idx+1:] // keep the leading dot
			if strings.HasPrefix(origin, before) && strings.HasSuffix(origin, after) {
				middle := strings.TrimSuffix(origin[len(before):], after)
				if middle != "" {
					return true
				}
			}
		}

		// Wildcard port support (e.g., http://localhost:*)
		if strings.HasSuffix(allowed, ":*") {
			base := strings.TrimSuffix(allowed, "*")
			if strings.HasPrefix(origin, base) {
				return true
			}
		}
	}

	return false
}
