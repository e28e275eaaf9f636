package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neuraadapt/engage/internal/media"
	"github.com/neuraadapt/engage/internal/media/mediatest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type intakeFixture struct {
	issuer  *mediatest.Issuer
	camera  *mediatest.Camera
	player  *mediatest.Player
	preview *mediatest.Preview
	res     *media.Resources
	intake  *media.Intake
}

func newIntakeFixture(autoplay bool) *intakeFixture {
	f := &intakeFixture{
		issuer:  mediatest.NewIssuer(),
		camera:  &mediatest.Camera{},
		player:  &mediatest.Player{},
		preview: &mediatest.Preview{},
	}
	f.res = media.NewResources(f.issuer, f.camera, zerolog.Nop())
	f.intake = media.NewIntake(media.IntakeConfig{
		Resources: f.res,
		Player:    f.player,
		Preview:   f.preview,
		Autoplay:  autoplay,
	}, zerolog.Nop())
	return f
}

func TestIntake_RejectsNonVideo(t *testing.T) {
	f := newIntakeFixture(true)

	tests := []struct {
		name string
		file media.File
	}{
		{"pdf", media.NewBytesFile("slides.pdf", "application/pdf", nil)},
		{"image", media.NewBytesFile("frame.png", "image/png", nil)},
		{"audio", media.NewBytesFile("talk.mp3", "audio/mpeg", nil)},
		{"empty type", media.NewBytesFile("mystery", "", nil)},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := f.intake.Accept(tt.file, nil)
			require.ErrorIs(t, err, media.ErrInvalidInputKind)
			require.Nil(t, asset)
		})
	}

	refs, streams := f.res.Live()
	require.Zero(t, refs)
	require.Zero(t, streams)
	require.Empty(t, f.issuer.Log())
	require.Equal(t, media.DisplayRef{}, f.player.Current())
}

func TestIntake_ReleasesPreviousBeforeCreatingNext(t *testing.T) {
	f := newIntakeFixture(true)

	first, err := f.intake.Accept(media.NewBytesFile("f1.mp4", "video/mp4", []byte("1")), nil)
	require.NoError(t, err)
	require.Equal(t, first.Ref, f.player.Current())

	second, err := f.intake.Accept(media.NewBytesFile("f2.webm", "video/webm", []byte("2")), first)
	require.NoError(t, err)
	require.Equal(t, second.Ref, f.player.Current())

	require.Equal(t, []string{"issue:f1.mp4", "revoke:f1.mp4", "issue:f2.webm"}, f.issuer.Log())
	require.Equal(t, 1, f.issuer.Revocations(first.Ref))

	refs, _ := f.res.Live()
	require.Equal(t, 1, refs)
}

func TestIntake_RequestCamera(t *testing.T) {
	f := newIntakeFixture(true)

	cam, err := f.intake.RequestCamera(context.Background())
	require.NoError(t, err)
	require.True(t, cam.Granted)
	require.Nil(t, f.preview.Bound())

	f.intake.BindPreview(cam)
	require.Equal(t, cam.Stream, f.preview.Bound())

	f.camera.Err = errors.New("permission denied")
	_, err = f.intake.RequestCamera(context.Background())
	require.ErrorIs(t, err, media.ErrCameraAccessDenied)
	require.Equal(t, 2, f.camera.Calls())
}

func TestIntake_Autoplay(t *testing.T) {
	f := newIntakeFixture(true)
	require.NoError(t, f.intake.Autoplay(context.Background()))

	f.player.PlayErr = errors.New("blocked by policy")
	err := f.intake.Autoplay(context.Background())
	require.ErrorIs(t, err, media.ErrManualPlaybackRequired)

	disabled := newIntakeFixture(false)
	require.ErrorIs(t, disabled.intake.Autoplay(context.Background()), media.ErrManualPlaybackRequired)
	require.Zero(t, disabled.player.Plays())
}

func TestIntake_Teardown(t *testing.T) {
	f := newIntakeFixture(true)
	cam, err := f.intake.RequestCamera(context.Background())
	require.NoError(t, err)
	f.intake.BindPreview(cam)

	f.intake.Teardown()
	require.Nil(t, f.preview.Bound())
	require.True(t, f.player.Current().IsZero())
}

func TestOpenFile_DeclaredType(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "lecture.MP4")
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(video, []byte("0000"), 0o644))
	require.NoError(t, os.WriteFile(notes, []byte("hi"), 0o644))

	vf, err := media.OpenFile(video)
	require.NoError(t, err)
	require.Equal(t, "video/mp4", vf.MediaType())
	require.Equal(t, int64(4), vf.Size())
	require.Equal(t, "lecture.MP4", vf.Name())
	require.True(t, media.IsVideo(vf))

	nf, err := media.OpenFile(notes)
	require.NoError(t, err)
	require.False(t, media.IsVideo(nf))

	_, err = media.OpenFile(filepath.Join(dir, "missing.mp4"))
	require.Error(t, err)
	_, err = media.OpenFile(dir)
	require.Error(t, err)
}

func TestDeviceCamera_MissingDevice(t *testing.T) {
	cam := media.DeviceCamera{Path: filepath.Join(t.TempDir(), "video9")}
	_, err := cam.Acquire(context.Background())
	require.Error(t, err)
}

func TestCommandPlayer_NoCommand(t *testing.T) {
	p := media.NewCommandPlayer(nil, zerolog.Nop())
	p.Load(media.DisplayRef{ID: "x", URL: "http://127.0.0.1/media/x"})
	require.ErrorIs(t, p.Play(context.Background()), media.ErrNoPlayerCommand)
	require.NoError(t, p.Pause())
}
