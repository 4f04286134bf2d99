package testctl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Tests
func runGoTests() error {
	info("==== Run Go tests ====")
	return runCmdStreaming(context.Background(), "go", "test", "./...", "-v")
}

func runE2ETests() error {
	info("==== Run in-process E2E tests ====")
	return runCmdStreaming(context.Background(), "go", "test", "./internal/e2e/...", "-v")
}

// runLiveSmoke builds the daemon, starts it against a freshly generated
// network directory, and checks the health and status endpoints end to end.
func runLiveSmoke(cfg *Config) error {
	info("==== Live daemon smoke test ====")
	tmp, err := os.MkdirTemp("", "nnevald-smoke-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	netDir := filepath.Join(tmp, "networks")
	if err := genNetwork(filepath.Join(netDir, "smoke-16x2.nnwb"), "16x2", 1, true, true, true); err != nil {
		return err
	}
	bin := filepath.Join(tmp, "nnevald")
	if err := runCmdVerbose(context.Background(), "go", "build", "-o", bin, "./cmd/nnevald"); err != nil {
		return err
	}

	port, err := chooseFreePort()
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- RunCmd(ctx, Cmd{Path: bin, Args: []string{"--addr", addr, "--networks-dir", netDir}, Stream: true})
	}()

	base := "http://" + addr
	if err := waitHTTP(base+"/healthz", 200, 15*time.Second); err != nil {
		return err
	}
	if err := waitHTTP(base+"/status", 200, 5*time.Second); err != nil {
		return err
	}
	info("[smoke] daemon healthy at %s", base)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		warn("[smoke] daemon did not exit cleanly")
	}
	return nil
}
