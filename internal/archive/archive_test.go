package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// s3Stub answers the handful of S3 calls PutJSON makes and records writes.
type s3Stub struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

func newS3Stub(t *testing.T) (*s3Stub, string) {
	t.Helper()
	stub := &s3Stub{buckets: map[string]bool{}, objects: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(srv.Close)
	return stub, strings.TrimPrefix(srv.URL, "http://")
}

func (s *s3Stub) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := strings.SplitN(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/"), "/", 2)
	bucket := parts[0]
	if _, ok := r.URL.Query()["location"]; ok {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
		return
	}
	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !s.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case len(parts) == 1 && r.Method == http.MethodPut:
		s.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case len(parts) == 2 && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		s.objects[bucket+"/"+parts[1]] = body
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestPutJSONCreatesBucketAndUploads(t *testing.T) {
	stub, endpoint := newS3Stub(t)
	u, err := New(endpoint, "access", "secret", "mc-audit", false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key := AuditKey(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
	if err := u.PutJSON(context.Background(), key, map[string]any{"consistent": false, "team": "team_x"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if !stub.buckets["mc-audit"] {
		t.Fatalf("expected bucket to be created")
	}
	body, ok := stub.objects["mc-audit/"+key]
	if !ok {
		t.Fatalf("expected object at %s, got %v", key, stub.objects)
	}
	if !bytes.Contains(body, []byte(`"team": "team_x"`)) {
		t.Fatalf("expected indented JSON report, got %q", body)
	}
}

func TestPutJSONAgainstMinio(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if testing.Short() || endpoint == "" {
		t.Skip("set MINIO_ENDPOINT to run against a real server")
	}
	u, err := New(endpoint, os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), "missioncontrol-audit-test", os.Getenv("MINIO_USE_SSL") == "true")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := u.PutJSON(context.Background(), AuditKey(time.Now()), map[string]bool{"consistent": true}); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func TestNewWithoutEndpointIsDisabled(t *testing.T) {
	u, err := New("", "", "", "bucket", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil uploader")
	}
	if err := u.PutJSON(context.Background(), "k", map[string]int{"a": 1}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestAuditKey(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600))
	got := AuditKey(at)
	want := "audits/2026/03/04/audit-20260304T040607Z.json"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
