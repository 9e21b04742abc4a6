// Package server normalizes and validates HTTP origins for WebSocket
// upgrades against the configured allow-list.
package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// originChecker gates websocket upgrades by the request's Origin header.
// An empty or wildcard configuration allows everything.
type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
	log      zerolog.Logger
}

func newOriginChecker(origins []string, log zerolog.Logger) *originChecker {
	checker := &originChecker{
		allowed:  make(map[string]struct{}, len(origins)),
		allowAll: len(origins) == 0,
		log:      log,
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			checker.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
			continue
		}
		checker.allowed[normalized] = struct{}{}
	}

	return checker
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (o *originChecker) check(r *http.Request) bool {
	if o.allowAll {
		return true
	}

	originHeader := r.Header.Get("Origin")
	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		o.log.Warn().Str("origin", originHeader).Msg("blocked websocket upgrade from unparseable origin")
		return false
	}

	if _, exists := o.allowed[normalized]; exists {
		return true
	}

	o.log.Warn().Str("origin", originHeader).Msg("blocked websocket upgrade from disallowed origin")
	return false
}
