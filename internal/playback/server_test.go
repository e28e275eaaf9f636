package playback

import (
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/neuraadapt/engage/internal/media"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *Server {
	t.Helper()

	s := NewServer(Config{BindAddress: "127.0.0.1", Port: 0}, zerolog.Nop())
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func get(t *testing.T, url string, header map[string]string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestServer_IssueServeRevoke(t *testing.T) {
	s := startServer(t)

	f := media.NewBytesFile("lecture.mp4", "video/mp4", []byte("0123456789"))
	ref, err := s.Issue(f)
	require.NoError(t, err)
	require.Equal(t, s.BaseURL()+"/media/"+ref.ID, ref.URL)
	require.Equal(t, 1, s.Len())

	resp, body := get(t, ref.URL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	require.Equal(t, "0123456789", string(body))

	resp, body = get(t, ref.URL, map[string]string{"Range": "bytes=2-4"})
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	require.Equal(t, "234", string(body))

	s.Revoke(ref)
	s.Revoke(ref)
	require.Zero(t, s.Len())

	resp, _ = get(t, ref.URL, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_IssueBeforeStart(t *testing.T) {
	s := NewServer(Config{BindAddress: "127.0.0.1"}, zerolog.Nop())
	_, err := s.Issue(media.NewBytesFile("a.mp4", "video/mp4", nil))
	require.Error(t, err)
}

func TestServer_UnknownToken(t *testing.T) {
	s := startServer(t)
	resp, _ := get(t, s.BaseURL()+"/media/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ServeOnListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(Config{}, zerolog.Nop())
	require.NoError(t, s.Serve(ln))
	t.Cleanup(func() { _ = s.Stop() })
	require.Equal(t, "http://"+ln.Addr().String(), s.BaseURL())

	ref, err := s.Issue(media.NewBytesFile("clip.webm", "video/webm", []byte("webm")))
	require.NoError(t, err)

	resp, body := get(t, ref.URL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "webm", string(body))

	req, err := http.NewRequest(http.MethodPost, ref.URL, nil)
	require.NoError(t, err)
	post, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = post.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}
