package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	before := testutil.ToFloat64(SignedURLs.WithLabelValues("write"))
	SignedURLs.WithLabelValues("write").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SignedURLs.WithLabelValues("write")))

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	assert.True(t, strings.Contains(string(body), `vision_showcase_signed_urls_total{action="write"}`))
}

func TestNewServerShutsDown(t *testing.T) {
	Init()
	SignedURLs.WithLabelValues("read").Inc()
	srv := NewServer("127.0.0.1:0")
	ln, err := net.Listen("tcp", srv.Addr)
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `vision_showcase_signed_urls_total{action="read"}`)

	resp, err = http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.True(t, errors.Is(<-served, http.ErrServerClosed))

	_, err = http.Get("http://" + ln.Addr().String() + "/metrics")
	assert.Error(t, err)
}
