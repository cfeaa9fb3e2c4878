package transmission_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"torrdrop/internal/services"
	"torrdrop/internal/testsupport"
	"torrdrop/internal/transmission"
)

func clientFor(t *testing.T, server *httptest.Server, opts ...testsupport.ConfigOption) *transmission.Client {
	t.Helper()
	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Transmission.Host = parsed.Hostname()
	cfg.Transmission.Port = port
	cfg.Transmission.RPCPath = "/transmission/rpc"
	return transmission.NewClient(cfg)
}

func successBody(args any) []byte {
	raw, _ := json.Marshal(args)
	body, _ := json.Marshal(map[string]json.RawMessage{
		"result":    json.RawMessage(`"success"`),
		"arguments": raw,
	})
	return body
}

func TestSubmitNegotiatesSessionID(t *testing.T) {
	var calls int
	var sawSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("X-Transmission-Session-Id") == "" {
			w.Header().Set("X-Transmission-Session-Id", "session-1")
			w.WriteHeader(http.StatusConflict)
			return
		}
		sawSession = r.Header.Get("X-Transmission-Session-Id")
		w.Write(successBody(map[string]any{
			"torrent-added": map[string]any{"id": 7, "hashString": "abc123"},
		}))
	}))
	defer server.Close()

	client := clientFor(t, server)
	id, err := client.Submit(context.Background(), []byte("metainfo"), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected hash job id, got %q", id)
	}
	if calls != 2 || sawSession != "session-1" {
		t.Fatalf("expected renegotiated second call, calls=%d session=%q", calls, sawSession)
	}
}

func TestSubmitSendsMetainfoAndDownloadDir(t *testing.T) {
	var payload struct {
		Method    string `json:"method"`
		Arguments struct {
			Metainfo    string `json:"metainfo"`
			DownloadDir string `json:"download-dir"`
		} `json:"arguments"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write(successBody(map[string]any{
			"torrent-added": map[string]any{"id": 1},
		}))
	}))
	defer server.Close()

	client := clientFor(t, server)
	id, err := client.Submit(context.Background(), []byte("raw-bytes"), "/downloads")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "1" {
		t.Fatalf("expected numeric fallback id, got %q", id)
	}
	if payload.Method != "torrent-add" {
		t.Fatalf("unexpected method %q", payload.Method)
	}
	if payload.Arguments.DownloadDir != "/downloads" {
		t.Fatalf("download dir not forwarded: %q", payload.Arguments.DownloadDir)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload.Arguments.Metainfo)
	if err != nil || string(decoded) != "raw-bytes" {
		t.Fatalf("metainfo not base64 of source: %q err=%v", payload.Arguments.Metainfo, err)
	}
}

func TestSubmitDuplicateIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(successBody(map[string]any{
			"torrent-duplicate": map[string]any{"id": 3, "hashString": "dup"},
		}))
	}))
	defer server.Close()

	_, err := clientFor(t, server).Submit(context.Background(), []byte("x"), "")
	if !services.IsPermanent(err) {
		t.Fatalf("duplicate should classify permanent, got %v", err)
	}
	if !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("duplicate should carry the already-exists marker, got %v", err)
	}
}

func TestSubmitEngineRejectionIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": "invalid or corrupt torrent file"})
	}))
	defer server.Close()

	_, err := clientFor(t, server).Submit(context.Background(), []byte("x"), "")
	if !services.IsPermanent(err) {
		t.Fatalf("invalid descriptor should classify permanent, got %v", err)
	}
}

func TestAuthRejectionIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := clientFor(t, server).Ping(context.Background())
	if !services.IsPermanent(err) {
		t.Fatalf("401 should classify permanent, got %v", err)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := clientFor(t, server).Ping(context.Background())
	if err == nil || !services.IsTransient(err) {
		t.Fatalf("503 should classify transient, got %v", err)
	}
}

func TestConnectionRefusedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := clientFor(t, server)
	server.Close()

	err := client.Ping(context.Background())
	if err == nil || !services.IsTransient(err) {
		t.Fatalf("connection refused should classify transient, got %v", err)
	}
}

func TestBasicAuthForwarded(t *testing.T) {
	var user, pass string
	var ok bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		w.Write(successBody(map[string]any{}))
	}))
	defer server.Close()

	parsed, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(parsed.Port())
	cfg := testsupport.NewConfig(t)
	cfg.Transmission.Host = parsed.Hostname()
	cfg.Transmission.Port = port
	cfg.Transmission.Username = "operator"
	cfg.Transmission.Password = "hunter2"
	client := transmission.NewClient(cfg)

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !ok || user != "operator" || pass != "hunter2" {
		t.Fatalf("basic auth not forwarded: ok=%v user=%q", ok, user)
	}
}
