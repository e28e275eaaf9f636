package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/neuraadapt/engage/internal/media"
	"github.com/neuraadapt/engage/internal/report"
	"github.com/neuraadapt/engage/internal/session"
	"github.com/neuraadapt/engage/internal/systemd"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run an interactive analysis session",
	Long: `Run one session driven by commands on stdin. Videos can be replaced and
re-analyzed any number of times; every replacement releases the previous one.

Commands:
  open PATH      accept a video file
  analyze        upload the current video for analysis
  status         show the session state
  heatmap [N]    show heatmap page N (zero based)
  history        list recorded analysis rounds
  quit           close the session and exit`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

// console prints session updates and answers commands.
type console struct {
	ctx context.Context
	app *app
	out io.Writer
	m   *session.Machine

	// last notice printed, touched only from onChange
	shown notice
}

// notice identifies an error slot value across snapshot copies.
type notice struct {
	kind    session.Kind
	message string
}

func runSession(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	c := &console{ctx: ctx, app: a, out: os.Stdout}
	c.m = a.newSession(c.onChange)
	c.m.Start()
	defer func() { _ = c.m.Close() }()

	_, _ = fmt.Fprintf(c.out, "Session %s ready. Type 'help' for commands.\n", c.m.ID())

	if err := systemd.NotifyReady(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	defer func() {
		if err := systemd.NotifyStopping(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.exec(line); quit {
				return nil
			}
		}
	}
}

func (c *console) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "open":
		if len(fields) < 2 {
			c.warn("usage: open PATH")
			return false
		}
		file, err := media.OpenFile(strings.Join(fields[1:], " "))
		if err != nil {
			c.warn(err.Error())
			return false
		}
		if err := c.m.Accept(file); err != nil {
			c.report(err)
		}
	case "analyze":
		if err := c.m.Analyze(); err != nil {
			c.report(err)
		}
	case "status":
		c.status(c.m.Snapshot())
	case "heatmap":
		page := 0
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 0 {
				c.warn("usage: heatmap [PAGE]")
				return false
			}
			page = n
		}
		c.heatmap(page)
	case "history":
		c.history()
	case "help":
		_, _ = fmt.Fprintln(c.out, sessionCmd.Long)
	case "quit", "exit":
		return true
	default:
		c.warn("unknown command: " + fields[0])
	}
	return false
}

func (c *console) onChange(s session.Snapshot) {
	switch {
	case s.Err == nil:
		c.shown = notice{}
	case (notice{s.Err.Kind, s.Err.Message}) != c.shown:
		c.warn(s.Err.Message)
		c.shown = notice{s.Err.Kind, s.Err.Message}
	}

	if !s.State.Settled() && s.State != session.StateAnalyzing {
		return
	}
	dim := color.New(color.Faint)
	_, _ = dim.Fprintf(c.out, "[%s]\n", s.State)
	if s.State == session.StateAnalyzed && s.Result != nil {
		view := report.Present(s.Result, c.app.presentOptions())
		if err := report.Render(c.out, view, report.FormatText); err != nil {
			c.warn(err.Error())
		}
	}
}

// report prints err unless the session already surfaced it as a notice.
func (c *console) report(err error) {
	var serr *session.Error
	if errors.As(err, &serr) || c.m.Snapshot().Err != nil {
		return
	}
	c.warn(err.Error())
}

func (c *console) status(s session.Snapshot) {
	_, _ = fmt.Fprintf(c.out, "state:  %s\n", s.State)
	if s.Video != nil {
		_, _ = fmt.Fprintf(c.out, "video:  %s (%s, %d bytes) %s\n", s.Video.Name, s.Video.MediaType, s.Video.Size, s.Video.URL)
	}
	switch {
	case s.Camera.Granted:
		_, _ = fmt.Fprintf(c.out, "camera: live (%s)\n", s.Camera.StreamID)
	case s.Camera.Pending:
		_, _ = fmt.Fprintln(c.out, "camera: waiting for permission")
	case s.Camera.Denied:
		_, _ = fmt.Fprintln(c.out, "camera: denied")
	default:
		_, _ = fmt.Fprintln(c.out, "camera: off")
	}
	if s.Err != nil {
		_, _ = fmt.Fprintf(c.out, "notice: %s\n", s.Err.Message)
	}
}

func (c *console) heatmap(page int) {
	s := c.m.Snapshot()
	if s.Result == nil {
		c.warn("no analysis result yet")
		return
	}
	cells, more := report.HeatmapPage(s.Result, page, c.app.cfg.Report.HeatmapCap)
	if len(cells) == 0 {
		c.warn("no bins on that page")
		return
	}
	if err := report.RenderCells(c.out, cells); err != nil {
		c.warn(err.Error())
		return
	}
	if more {
		_, _ = fmt.Fprintf(c.out, "more bins: heatmap %d\n", page+1)
	}
}

func (c *console) history() {
	if c.app.sessions == nil {
		c.warn("session history is disabled (storage.type: none)")
		return
	}
	records, err := c.app.sessions.ListRecentSessions(c.ctx, 10)
	if err != nil {
		c.warn(err.Error())
		return
	}
	printRecords(c.out, records)
}

func (c *console) warn(msg string) {
	yellow := color.New(color.FgYellow)
	_, _ = yellow.Fprintf(c.out, "! %s\n", msg)
}
