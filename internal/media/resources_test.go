package media_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neuraadapt/engage/internal/media"
	"github.com/neuraadapt/engage/internal/media/mediatest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestResources_ReleaseIsIdempotent(t *testing.T) {
	issuer := mediatest.NewIssuer()
	res := media.NewResources(issuer, &mediatest.Camera{}, zerolog.Nop())

	ref, err := res.AcquireDisplayRef(media.NewBytesFile("a.mp4", "video/mp4", []byte("a")))
	require.NoError(t, err)

	res.ReleaseDisplayRef(ref)
	res.ReleaseDisplayRef(ref)
	res.ReleaseDisplayRef(media.DisplayRef{})
	require.Equal(t, 1, issuer.Revocations(ref))

	stream, err := res.AcquireCamera(context.Background())
	require.NoError(t, err)
	res.ReleaseCamera(stream)
	res.ReleaseCamera(stream)
	res.ReleaseCamera(nil)
	require.Equal(t, 1, stream.(*mediatest.Stream).Closes())

	refs, streams := res.Live()
	require.Zero(t, refs)
	require.Zero(t, streams)
}

func TestResources_CloseReleasesEverythingOnce(t *testing.T) {
	issuer := mediatest.NewIssuer()
	res := media.NewResources(issuer, &mediatest.Camera{}, zerolog.Nop())

	ref, err := res.AcquireDisplayRef(media.NewBytesFile("a.mp4", "video/mp4", nil))
	require.NoError(t, err)
	stream, err := res.AcquireCamera(context.Background())
	require.NoError(t, err)

	res.Close()
	res.Close()
	res.ReleaseDisplayRef(ref)
	res.ReleaseCamera(stream)

	require.Equal(t, 1, issuer.Revocations(ref))
	require.Equal(t, 1, stream.(*mediatest.Stream).Closes())

	_, err = res.AcquireDisplayRef(media.NewBytesFile("b.mp4", "video/mp4", nil))
	require.ErrorIs(t, err, media.ErrResourcesClosed)
	_, err = res.AcquireCamera(context.Background())
	require.ErrorIs(t, err, media.ErrResourcesClosed)
}

func TestResources_LateStreamClosedAfterTeardown(t *testing.T) {
	cam := &mediatest.Camera{Manual: true}
	res := media.NewResources(mediatest.NewIssuer(), cam, zerolog.Nop())

	type result struct {
		stream media.Stream
		err    error
	}
	done := make(chan result, 1)
	go func() {
		s, err := res.AcquireCamera(context.Background())
		done <- result{s, err}
	}()

	require.Eventually(t, func() bool { return cam.Calls() == 1 }, waitFor, tick)
	res.Close()
	late := cam.Grant(0)

	r := <-done
	require.ErrorIs(t, r.err, media.ErrResourcesClosed)
	require.Nil(t, r.stream)
	require.Equal(t, 1, late.Closes())
}

func TestResources_NoCamera(t *testing.T) {
	res := media.NewResources(mediatest.NewIssuer(), nil, zerolog.Nop())
	require.False(t, res.HasCamera())

	_, err := res.AcquireCamera(context.Background())
	require.ErrorIs(t, err, media.ErrCameraDisabled)
}

func TestResources_IssueFailure(t *testing.T) {
	issuer := mediatest.NewIssuer()
	issuer.Fail = errors.New("server stopped")
	res := media.NewResources(issuer, nil, zerolog.Nop())

	_, err := res.AcquireDisplayRef(media.NewBytesFile("a.mp4", "video/mp4", nil))
	require.Error(t, err)
	refs, _ := res.Live()
	require.Zero(t, refs)
}
