package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/watchmesh/watchmesh/internal/config"
)

func TestHTTPProber_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := HTTPProber{}.Run(context.Background(), srv.URL, time.Second)
	assert.True(t, out.OK)
}

func TestHTTPProber_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	out := HTTPProber{}.Run(context.Background(), srv.URL, time.Second)
	assert.False(t, out.OK)
}

func TestHTTPProber_Unreachable(t *testing.T) {
	out := HTTPProber{}.Run(context.Background(), "http://127.0.0.1:1", 100*time.Millisecond)
	assert.False(t, out.OK)
	assert.NotNil(t, out.Err)
}

func TestTCPProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	out := TCPProber{}.Run(context.Background(), ln.Addr().String(), time.Second)
	assert.True(t, out.OK)
}

func TestTCPProber_Unreachable(t *testing.T) {
	out := TCPProber{}.Run(context.Background(), "127.0.0.1:1", 100*time.Millisecond)
	assert.False(t, out.OK)
}

func TestDNSProber_Localhost(t *testing.T) {
	out := DNSProber{}.Run(context.Background(), "localhost", time.Second)
	assert.True(t, out.OK)
}

func TestForKind_Unknown(t *testing.T) {
	_, err := ForKind("carrier-pigeon")
	assert.Error(t, err)
}

func TestRun_UsesTestTimeoutDefault(t *testing.T) {
	out := Run(context.Background(), config.Test{Kind: config.ProbeTCP, Target: "127.0.0.1:1"})
	assert.False(t, out.OK)
}
