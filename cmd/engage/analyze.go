package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/neuraadapt/engage/internal/media"
	"github.com/neuraadapt/engage/internal/report"
	"github.com/neuraadapt/engage/internal/session"
	"github.com/spf13/cobra"
)

var (
	analyzeFormat     string
	analyzeCameraWait time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] VIDEO",
	Short: "Analyze a recorded video and print the engagement report",
	Long: `Accept VIDEO, open the camera preview, upload the video to the analysis
service and print the engagement report. Resources are released on exit.`,
	Example: `  engage analyze lecture.mp4
  engage -c engage.yaml analyze --format json lecture.webm`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "", "Report format: text, json or yaml (defaults to report.format)")
	analyzeCmd.Flags().DurationVar(&analyzeCameraWait, "camera-wait", 5*time.Second, "How long to wait for the camera before analyzing anyway")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	format := report.Format(a.cfg.Report.Format)
	if analyzeFormat != "" {
		format = report.Format(analyzeFormat)
	}

	m := a.newSession(func(s session.Snapshot) {
		a.logger.Debug().Str("state", s.State.String()).Msg("Session update")
	})
	m.Start()
	defer func() {
		if err := m.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close session")
		}
	}()

	ctx := cmd.Context()

	file, err := media.OpenFile(args[0])
	if err != nil {
		return err
	}
	if err := m.Accept(file); err != nil {
		return sessionFailure(m.Snapshot(), err)
	}

	// The camera may still be pending; analysis does not depend on it.
	waitCtx, cancel := context.WithTimeout(ctx, analyzeCameraWait)
	snap, err := m.Await(waitCtx, func(s session.Snapshot) bool { return s.State == session.StateReady })
	cancel()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	printNotice(snap)

	if err := m.Analyze(); err != nil {
		return sessionFailure(m.Snapshot(), err)
	}

	a.logger.Info().Str("file", file.Name()).Msg("Waiting for analysis")
	snap, err = m.Await(ctx, func(s session.Snapshot) bool {
		return s.State == session.StateAnalyzed || s.State == session.StateAnalysisFailed
	})
	if err != nil {
		return err
	}
	if snap.State == session.StateAnalysisFailed {
		return sessionFailure(snap, snap.Err)
	}

	return report.Render(os.Stdout, report.Present(snap.Result, a.presentOptions()), format)
}

// printNotice shows a recoverable session error without failing the command.
func printNotice(s session.Snapshot) {
	if s.Err == nil || !s.Err.Recoverable {
		return
	}
	yellow := color.New(color.FgYellow)
	_, _ = yellow.Fprintf(os.Stderr, "! %s\n", s.Err.Message)
}

// sessionFailure reports the session error message and returns err.
func sessionFailure(s session.Snapshot, err error) error {
	red := color.New(color.FgRed, color.Bold)
	if s.Err != nil {
		_, _ = red.Fprintf(os.Stderr, "✗ %s\n", s.Err.Message)
		return fmt.Errorf("%s: %w", s.Err.Kind, err)
	}
	_, _ = red.Fprintf(os.Stderr, "✗ %v\n", err)
	return err
}
