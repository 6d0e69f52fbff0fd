// Package tracker mirrors local lifecycle transitions back to the external
// task tracker. Delivery is best-effort: one attempt per candidate shape.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Action string

const (
	ActionCompleted  Action = "completed"
	ActionReassigned Action = "reassigned"
	ActionDestroyed  Action = "destroyed"
)

// Update is one transition to mirror on the tracker item ExternalID.
type Update struct {
	ExternalID string
	Action     Action
	// AssigneeRef is the tracker-side user id for reassignments.
	AssigneeRef string
}

type Notifier interface {
	Notify(ctx context.Context, u Update) error
}

// Noop is used when no tracker is configured.
type Noop struct{}

func (Noop) Notify(context.Context, Update) error { return nil }

var ErrNoAssigneeRef = errors.New("owner has no tracker identity")

// NotifyError reports every candidate shape that was rejected.
type NotifyError struct {
	ExternalID string
	Attempts   []string
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("tracker update for %s failed: %s", e.ExternalID, strings.Join(e.Attempts, "; "))
}

type HTTPNotifier struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPNotifier(baseURL, token string, timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Shapes returns the ordered request bodies tried for u. Trackers differ in
// how a status column is typed, so the first accepted shape wins.
func Shapes(u Update) ([]map[string]any, error) {
	switch u.Action {
	case ActionCompleted:
		return []map[string]any{
			statusShape("select", "Archived"),
			statusShape("status", "Archived"),
		}, nil
	case ActionDestroyed:
		return []map[string]any{
			statusShape("select", "Destroyed"),
			{"archived": true},
		}, nil
	case ActionReassigned:
		if u.AssigneeRef == "" {
			return nil, ErrNoAssigneeRef
		}
		people := []map[string]any{{"id": u.AssigneeRef}}
		return []map[string]any{
			{"properties": map[string]any{"Attributed to": map[string]any{"people": people}}},
			{"properties": map[string]any{"Assignee": map[string]any{"people": people}}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown tracker action %q", u.Action)
	}
}

func statusShape(kind, name string) map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"Status": map[string]any{kind: map[string]any{"name": name}},
		},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, u Update) error {
	shapes, err := Shapes(u)
	if err != nil {
		return err
	}
	endpoint := n.baseURL + "/pages/" + url.PathEscape(u.ExternalID)

	failure := &NotifyError{ExternalID: u.ExternalID}
	for i, shape := range shapes {
		err := n.send(ctx, endpoint, shape)
		if err == nil {
			return nil
		}
		failure.Attempts = append(failure.Attempts, fmt.Sprintf("shape %d: %v", i+1, err))
		if ctx.Err() != nil {
			break
		}
	}
	return failure
}

func (n *HTTPNotifier) send(ctx context.Context, endpoint string, body map[string]any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
