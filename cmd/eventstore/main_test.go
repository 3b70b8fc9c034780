package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/eventstore-go/internal/config"
	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

// syncBuffer guards a bytes.Buffer written by the server goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &out))
	assert.Equal(t, "EventStore v0.1.0\n", out.String())
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  mode: sideways\nauth:\n  disabled: true\n"), 0o600))

	err := run(context.Background(), []string{"-config", path}, io.Discard)
	assert.ErrorIs(t, err, eventstore.ErrInvalidMode)
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	port := freePort(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := fmt.Sprintf("server:\n  host: 127.0.0.1\n  port: %d\n  shutdown_timeout: 5s\nlog:\n  format: text\n", port)
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("EVENTSTORE_AUTH__SECRET_KEY", "integration-secret")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, []string{"-config", path}, out) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/v1/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "eventstore_events")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
	assert.Contains(t, out.String(), "shutting down")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)

	logger, err := newLogger(config.LogConfig{Level: "warn", Format: "text"}, level, &buf)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level.Level())

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "service=eventstore")

	applyLogLevel(logger, level, config.LogConfig{Level: "debug"})
	assert.Equal(t, slog.LevelDebug, level.Level())

	applyLogLevel(logger, level, config.LogConfig{Level: "loud"})
	assert.Equal(t, slog.LevelDebug, level.Level())

	_, err = newLogger(config.LogConfig{Level: "loud", Format: "json"}, level, &buf)
	assert.Error(t, err)
}
