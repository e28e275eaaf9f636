package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	srv := NewServer("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, srv.Start())
	defer func() { _ = srv.Stop() }()

	AnalysisRequestsTotal.WithLabelValues("success").Inc()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", string(body))

	resp, err = http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.True(t, strings.Contains(string(body), "engage_analysis_requests_total"))
}
