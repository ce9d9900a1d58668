package proxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specFor(t *testing.T, rawURL string) Spec {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return Spec{Scheme: "http", Host: u.Hostname(), Port: port}
}

func TestChecker_Filter(t *testing.T) {
	// an HTTP proxy receives the absolute-form request and answers it directly
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer good.Close()

	refusing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusProxyAuthRequired)
	}))
	defer refusing.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadSpec := specFor(t, dead.URL)
	dead.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	checker := NewChecker("http://probe.invalid/ip", 2*time.Second, logger)

	goodSpec := specFor(t, good.URL)
	pool := []Spec{deadSpec, goodSpec, specFor(t, refusing.URL), goodSpec}

	working := checker.Filter(context.Background(), pool)
	assert.Equal(t, []Spec{goodSpec, goodSpec}, working)
}

func TestChecker_FilterEmpty(t *testing.T) {
	checker := NewChecker("http://probe.invalid", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Empty(t, checker.Filter(context.Background(), nil))
}
