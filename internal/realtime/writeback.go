package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPWriteBack persists committed edits with PATCH /api/entities/{id}.
func HTTPWriteBack(apiBase, token string, client *http.Client) WriteBack {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	apiBase = strings.TrimRight(apiBase, "/")
	return func(ctx context.Context, entityID string, fields map[string]any) error {
		body, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal edit: %w", err)
		}
		endpoint := apiBase + "/api/entities/" + url.PathEscape(entityID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
			return fmt.Errorf("write-back %s: %s: %s", entityID, res.Status, strings.TrimSpace(string(msg)))
		}
		return nil
	}
}
