package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/neuraadapt/engage/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	sessionsLimit  int
	sessionsFormat string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded analysis rounds",
	Long: `Inspect analysis rounds recorded by the session history store.
History persists when storage.type is bolt or redis; the memory store lives
for a single process.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analysis rounds, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one analysis round",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", storage.DefaultListLimit, "Maximum number of rounds to list")
	sessionsShowCmd.Flags().StringVarP(&sessionsFormat, "format", "f", "yaml", "Output format: json or yaml")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.sessions == nil {
		return errHistoryDisabled
	}

	records, err := a.sessions.ListRecentSessions(cmd.Context(), sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	printRecords(os.Stdout, records)
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.sessions == nil {
		return errHistoryDisabled
	}

	rec, err := a.sessions.GetSession(cmd.Context(), args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no analysis round with id %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	return writeRecord(os.Stdout, rec, sessionsFormat)
}

var errHistoryDisabled = errors.New("session history is disabled (set storage.type to bolt or redis)")

// printRecords writes records as a table.
func printRecords(w io.Writer, records []storage.SessionRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "No analysis rounds recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tVIDEO\tSTATUS\tSTARTED\tDETAIL")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.VideoName, statusColor(r.Status).Sprint(r.Status),
			r.StartedAt.Local().Format(time.DateTime), recordDetail(r))
	}
	_ = tw.Flush()
}

func recordDetail(r storage.SessionRecord) string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return r.ServiceSessionID
}

func statusColor(s storage.Status) *color.Color {
	switch s {
	case storage.StatusCompleted:
		return color.New(color.FgGreen)
	case storage.StatusFailed:
		return color.New(color.FgRed)
	case storage.StatusAbandoned:
		return color.New(color.Faint)
	default:
		return color.New(color.FgYellow)
	}
}

func writeRecord(w io.Writer, rec *storage.SessionRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "yaml":
		// round-trip through JSON so the summary renders as a mapping
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s (json or yaml)", format)
	}
}
