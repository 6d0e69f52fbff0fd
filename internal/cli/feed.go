package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// feedURL turns an API base URL into the websocket feed endpoint for team.
func feedURL(apiBase, team string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiBase, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid --api: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid --api scheme %q", u.Scheme)
	}
	u.Path += "/api/feed"
	if team != "" {
		q := u.Query()
		q.Set("team", team)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func bearerHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
