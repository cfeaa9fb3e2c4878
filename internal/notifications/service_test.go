package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"torrdrop/internal/notifications"
	"torrdrop/internal/testsupport"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := notifications.NewService(cfg)
	if err := svc.Publish(context.Background(), notifications.EventSubmitted, notifications.Payload{"name": "a.torrent"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServicePublishes(t *testing.T) {
	var gotTitle, gotTags, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(cfg)

	err := svc.Publish(context.Background(), notifications.EventQuarantined, notifications.Payload{
		"name":   "bad.torrent",
		"reason": "engine rejected descriptor",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.Contains(gotTitle, "Quarantined") {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	if !strings.Contains(gotTags, "quarantined") {
		t.Fatalf("unexpected tags %q", gotTags)
	}
	if !strings.Contains(gotBody, "bad.torrent") || !strings.Contains(gotBody, "engine rejected descriptor") {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestNtfyServiceReportsHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(cfg)

	if err := svc.Publish(context.Background(), notifications.EventArchived, nil); err == nil {
		t.Fatal("expected error for HTTP 403")
	}
}
