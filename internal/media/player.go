package media

import (
	"context"
	"errors"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNoPlayerCommand is returned by CommandPlayer.Play when no command is configured.
var ErrNoPlayerCommand = errors.New("media: no player command configured")

// CommandPlayer plays the loaded reference by launching an external program
// with the reference URL appended to its arguments.
type CommandPlayer struct {
	command []string
	logger  zerolog.Logger
	ref     DisplayRef
	proc    *exec.Cmd
	mu      sync.Mutex
}

// NewCommandPlayer creates a player for command, e.g. ["mpv", "--force-window"].
func NewCommandPlayer(command []string, logger zerolog.Logger) *CommandPlayer {
	return &CommandPlayer{
		command: command,
		logger:  logger.With().Str("component", "player").Logger(),
	}
}

// Load replaces the source and stops any playback of the previous one.
func (p *CommandPlayer) Load(ref DisplayRef) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.ref = ref
}

// Play starts the player process. It returns once the process has started.
func (p *CommandPlayer) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.command) == 0 {
		return ErrNoPlayerCommand
	}
	if p.ref.IsZero() {
		return errors.New("media: nothing loaded")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.stopLocked()

	args := append(append([]string{}, p.command[1:]...), p.ref.URL)
	cmd := exec.Command(p.command[0], args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	p.proc = cmd

	go func() {
		if err := cmd.Wait(); err != nil {
			p.logger.Debug().Err(err).Msg("Player exited")
		}
	}()

	p.logger.Info().Str("url", p.ref.URL).Str("player", p.command[0]).Msg("Playback started")
	return nil
}

// Pause stops the player process if one is running.
func (p *CommandPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *CommandPlayer) stopLocked() {
	if p.proc == nil || p.proc.Process == nil {
		p.proc = nil
		return
	}
	if err := p.proc.Process.Kill(); err != nil {
		p.logger.Debug().Err(err).Msg("Player already exited")
	}
	p.proc = nil
}

// LogPreview records preview bindings in the log; used where no visual
// surface exists.
type LogPreview struct {
	logger zerolog.Logger
	mu     sync.Mutex
	bound  Stream
}

// NewLogPreview creates a preview that logs each binding.
func NewLogPreview(logger zerolog.Logger) *LogPreview {
	return &LogPreview{logger: logger.With().Str("component", "preview").Logger()}
}

// Bind records stream as the current preview source.
func (p *LogPreview) Bind(stream Stream) {
	p.mu.Lock()
	p.bound = stream
	p.mu.Unlock()

	if stream == nil {
		p.logger.Debug().Msg("Preview unbound")
		return
	}
	p.logger.Info().Str("stream_id", stream.ID()).Msg("Camera preview bound")
}

// Bound returns the stream currently shown.
func (p *LogPreview) Bound() Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound
}
