package websocket

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// originChecker accepts the listed origins, or "*" for any. With an empty
// list only same-host origins are accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) == 0 {
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
