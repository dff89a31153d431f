package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmesh/watchmesh/internal/incident"
)

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(hclog.NewNullLogger())
	assert.Equal(t, "log", d.Name())
	err := d.Dispatch(context.Background(), incident.Incident{Subject: "g1", Message: "m", Kind: "opened"})
	assert.NoError(t, err)
}

func TestWebhookDispatcher_Success(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL)
	err := d.Dispatch(context.Background(), incident.Incident{
		Subject: "g1", Kind: "opened", Message: "down", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "g1", got.Subject)
	assert.Equal(t, "opened", got.Kind)
}

func TestWebhookDispatcher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL)
	d.client.RetryMax = 0
	err := d.Dispatch(context.Background(), incident.Incident{Subject: "g1"})
	assert.Error(t, err)
}

func TestScriptDispatcher(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell script")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "alert.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	d := NewScriptDispatcher(script)
	err := d.Dispatch(context.Background(), incident.Incident{Subject: "g1", Kind: "opened", Message: "m", Timestamp: time.Now()})
	assert.NoError(t, err)
}

func TestScriptDispatcher_InheritsParentEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell script")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "alert.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncommand -v uname >/dev/null 2>&1 || exit 1\nexit 0\n"), 0o755))

	d := NewScriptDispatcher(script)
	err := d.Dispatch(context.Background(), incident.Incident{Subject: "g1"})
	assert.NoError(t, err, "script must see the parent PATH to resolve coreutils like uname")
}

func TestScriptDispatcher_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell script")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "alert.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	d := NewScriptDispatcher(script)
	err := d.Dispatch(context.Background(), incident.Incident{Subject: "g1"})
	assert.Error(t, err)
}
