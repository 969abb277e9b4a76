package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"setlist/internal/config"
	"setlist/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyScanCompleted(context.Background(), "/music", 3, 1, time.Second); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCapturingServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
}

func newService(t *testing.T, endpoint string) notifications.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = endpoint
	return notifications.NewService(&cfg)
}

func TestNtfyServiceFormatsEvents(t *testing.T) {
	var got []captured
	server := newCapturingServer(t, &got)
	defer server.Close()
	svc := newService(t, server.URL)
	ctx := context.Background()

	if err := svc.NotifyScanCompleted(ctx, "/music", 12, 4, 90*time.Second); err != nil {
		t.Fatalf("NotifyScanCompleted returned error: %v", err)
	}
	if err := svc.NotifyScanFailed(ctx, "/music", errors.New("root unreadable")); err != nil {
		t.Fatalf("NotifyScanFailed returned error: %v", err)
	}
	if err := svc.NotifyLocationDegraded(ctx, "/volumes/archive"); err != nil {
		t.Fatalf("NotifyLocationDegraded returned error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected three notifications, got %d", len(got))
	}
	if got[0].title != "Setlist - Scan Complete" || !strings.Contains(got[0].body, "12 projects") {
		t.Fatalf("unexpected completion notification: %+v", got[0])
	}
	if got[1].priority != "high" || !strings.Contains(got[1].body, "root unreadable") {
		t.Fatalf("unexpected failure notification: %+v", got[1])
	}
	if got[2].tags != "setlist,watch,degraded" {
		t.Fatalf("unexpected degraded notification: %+v", got[2])
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	var got []captured
	server := newCapturingServer(t, &got)
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.ScanComplete = false
	cfg.Notifications.Degraded = false
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyScanCompleted(ctx, "/music", 1, 0, time.Second); err != nil {
		t.Fatalf("NotifyScanCompleted returned error: %v", err)
	}
	if err := svc.NotifyLocationDegraded(ctx, "/music"); err != nil {
		t.Fatalf("NotifyLocationDegraded returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("disabled events should not send, got %d", len(got))
	}
}

func TestNtfyServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()
	svc := newService(t, server.URL)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
