package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"torrdrop/internal/daemon"
	"torrdrop/internal/inbox"
	"torrdrop/internal/ingest"
	"torrdrop/internal/ipc"
	"torrdrop/internal/testsupport"
)

type stubEngine struct{}

func (stubEngine) Ping(context.Context) error { return nil }

type stubSubmitter struct{}

func (stubSubmitter) Submit(context.Context, []byte, string) (string, error) {
	return "hash", nil
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	loop := ingest.New(cfg, store, nil, stubSubmitter{}, nil)
	d, err := daemon.New(cfg, store, nil, loop, stubEngine{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.LogDir, "torrdrop.sock")
	srv, err := ipc.NewServer(ctx, socket, d, nil)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.LockPath == "" || status.InboxDBPath == "" {
		t.Error("status omits lock or database paths")
	}

	watchedDir := cfg.Paths.WatchedDir
	fresh := testsupport.MustRegister(t, store, filepath.Join(watchedDir, "fresh.torrent"), 100)
	done := testsupport.MustRegister(t, store, filepath.Join(watchedDir, "done.torrent"), 200)
	done.Status = inbox.StatusArchived
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update done: %v", err)
	}
	bad := testsupport.MustRegister(t, store, filepath.Join(watchedDir, "bad.torrent"), 300)
	badFile := filepath.Join(cfg.Paths.QuarantineDir, "bad.torrent")
	testsupport.WriteFile(t, badFile, 300)
	bad.SetQuarantined("engine rejected request")
	bad.ArchivedPath = badFile
	if err := store.Update(ctx, bad); err != nil {
		t.Fatalf("Update bad: %v", err)
	}

	all, err := client.List(nil)
	if err != nil {
		t.Fatalf("List RPC failed: %v", err)
	}
	if len(all.Items) != 3 {
		t.Fatalf("List returned %d items, want 3", len(all.Items))
	}

	quarantinedOnly, err := client.List([]string{"quarantined"})
	if err != nil {
		t.Fatalf("filtered List RPC failed: %v", err)
	}
	if len(quarantinedOnly.Items) != 1 || quarantinedOnly.Items[0].ID != bad.ID {
		t.Fatalf("filtered List = %+v, want only the quarantined item", quarantinedOnly.Items)
	}

	if _, err := client.List([]string{"bogus"}); err == nil {
		t.Fatal("List with unknown status did not fail")
	}

	described, err := client.Describe(fresh.ID)
	if err != nil {
		t.Fatalf("Describe RPC failed: %v", err)
	}
	if described.Item.Path != fresh.Path {
		t.Errorf("Describe path = %q, want %q", described.Item.Path, fresh.Path)
	}
	if _, err := client.Describe(9999); err == nil {
		t.Fatal("Describe of unknown id did not fail")
	}

	retried, err := client.Retry(bad.ID)
	if err != nil {
		t.Fatalf("Retry RPC failed: %v", err)
	}
	if retried.Item.Status != string(inbox.StatusDiscovered) {
		t.Fatalf("retried status = %s, want discovered", retried.Item.Status)
	}
	if _, err := client.Retry(fresh.ID); err == nil {
		t.Fatal("Retry of a non-quarantined item did not fail")
	}

	pruned, err := client.Prune()
	if err != nil {
		t.Fatalf("Prune RPC failed: %v", err)
	}
	if pruned.Removed != 1 {
		t.Fatalf("Prune removed %d, want 1", pruned.Removed)
	}

	note, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if !note.Sent {
		t.Fatalf("test notification not sent: %s", note.Message)
	}
}
