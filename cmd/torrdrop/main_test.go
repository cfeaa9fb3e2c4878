package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"torrdrop/internal/config"
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

type cliTestEnv struct {
	cfg        *config.Config
	store      *inbox.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(filepath.Dir(cfg.Paths.WatchedDir), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	loop := ingest.New(cfg, store, nil, stubSubmitter{}, nil)
	d, err := daemon.New(cfg, store, nil, loop, stubEngine{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, nil)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			cancel()
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	body := fmt.Sprintf(`[paths]
watched_dir = %q
archive_dir = %q
quarantine_dir = %q
log_dir = %q
`, cfg.Paths.WatchedDir, cfg.Paths.ArchiveDir, cfg.Paths.QuarantineDir, cfg.Paths.LogDir)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIInboxCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	fresh := testsupport.MustRegister(t, env.store,
		filepath.Join(env.cfg.Paths.WatchedDir, "alpha.torrent"), 100)

	bad := testsupport.MustRegister(t, env.store,
		filepath.Join(env.cfg.Paths.WatchedDir, "beta.torrent"), 200)
	badFile := filepath.Join(env.cfg.Paths.QuarantineDir, "beta.torrent")
	testsupport.WriteFile(t, badFile, 200)
	bad.SetQuarantined("engine rejected request")
	bad.ArchivedPath = badFile
	if err := env.store.Update(ctx, bad); err != nil {
		t.Fatalf("update quarantined item: %v", err)
	}

	done := testsupport.MustRegister(t, env.store,
		filepath.Join(env.cfg.Paths.WatchedDir, "gamma.torrent"), 300)
	done.Status = inbox.StatusArchived
	if err := env.store.Update(ctx, done); err != nil {
		t.Fatalf("update archived item: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "discovered") || !strings.Contains(out, "quarantined") {
		t.Fatalf("unexpected status output: %q", out)
	}

	out, _, err = runCLI(t, []string{"list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "alpha.torrent") || !strings.Contains(out, "beta.torrent") {
		t.Fatalf("list missing items: %q", out)
	}

	out, _, err = runCLI(t, []string{"list", "--status", "quarantined"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if strings.Contains(out, "alpha.torrent") || !strings.Contains(out, "beta.torrent") {
		t.Fatalf("status filter not applied: %q", out)
	}

	out, _, err = runCLI(t, []string{"show", fmt.Sprint(fresh.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "alpha.torrent") || !strings.Contains(out, "discovered") {
		t.Fatalf("unexpected show output: %q", out)
	}

	out, _, err = runCLI(t, []string{"retry", fmt.Sprint(bad.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !strings.Contains(out, "beta.torrent") {
		t.Fatalf("unexpected retry output: %q", out)
	}
	retried, err := env.store.GetByID(ctx, bad.ID)
	if err != nil {
		t.Fatalf("GetByID after retry: %v", err)
	}
	if retried.Status != inbox.StatusDiscovered {
		t.Fatalf("retried item status = %s, want discovered", retried.Status)
	}

	if _, _, err := runCLI(t, []string{"retry", "not-a-number"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("retry with invalid id did not fail")
	}

	out, _, err = runCLI(t, []string{"prune"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Removed 1") {
		t.Fatalf("unexpected prune output: %q", out)
	}
}

func TestCLIConfigCommands(t *testing.T) {
	base := t.TempDir()

	target := filepath.Join(base, "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, filepath.Join(base, "none.sock"), "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, filepath.Join(base, "none.sock"), ""); err == nil {
		t.Fatal("config init over existing file did not fail without --overwrite")
	}

	watched := filepath.Join(base, "inbox")
	if err := os.MkdirAll(watched, 0o755); err != nil {
		t.Fatal(err)
	}
	valid := filepath.Join(base, "valid.toml")
	body := fmt.Sprintf("[paths]\nwatched_dir = %q\narchive_dir = %q\nquarantine_dir = %q\nlog_dir = %q\n",
		watched, filepath.Join(base, "archive"), filepath.Join(base, "quarantine"), filepath.Join(base, "logs"))
	if err := os.WriteFile(valid, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err = runCLI(t, []string{"config", "validate", "--path", valid}, filepath.Join(base, "none.sock"), "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, filepath.Join(base, "none.sock"), valid)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, watched) {
		t.Fatalf("config show missing watched dir: %q", out)
	}
}

func TestCLIFailsWhenDaemonOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(filepath.Dir(cfg.Paths.WatchedDir), "config.toml")
	writeTestConfig(t, configPath, cfg)

	missingSocket := filepath.Join(cfg.Paths.LogDir, "missing.sock")
	_, _, err := runCLI(t, []string{"status"}, missingSocket, configPath)
	if err == nil {
		t.Fatal("status against a missing socket did not fail")
	}
	if !strings.Contains(err.Error(), "torrdrop run") {
		t.Fatalf("dial error %q does not hint at starting the daemon", err)
	}
}
