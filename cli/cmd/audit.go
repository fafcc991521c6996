package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"southwinds.dev/hwcrypt/audit"
)

var (
	auditJSONOutput   bool
	auditSince        string
	auditUntil        string
	auditAction       string
	auditBackend      string
	auditUsage        int
	auditLimit        int
	auditOffset       int
	auditFailuresOnly bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit trail",
	Long: `Query the gateway audit trail.

Examples:
  # All recorded events
  hwcrypt audit query --audit --audit-file /var/log/hwcrypt/audit.log

  # Failed key operations in the last 24 hours
  hwcrypt audit query --failures-only --since "$(date -d '24 hours ago' -Iseconds)"

  # Wipe operations only
  hwcrypt audit query --action wipe_key`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit events with filters",
	RunE:  runAuditQuery,
}

func init() {
	auditQueryCmd.Flags().BoolVar(&auditJSONOutput, "json", false, "output events as JSON")
	auditQueryCmd.Flags().StringVar(&auditSince, "since", "", "events at or after this RFC3339 timestamp")
	auditQueryCmd.Flags().StringVar(&auditUntil, "until", "", "events at or before this RFC3339 timestamp")
	auditQueryCmd.Flags().StringVar(&auditAction, "action", "", "filter by action (set_key, update_key, wipe_key, ...)")
	auditQueryCmd.Flags().StringVar(&auditBackend, "backend", "", "filter by backend (standard, ufs-ice, sdcc-ice)")
	auditQueryCmd.Flags().IntVar(&auditUsage, "usage", 0, "filter by usage tag (0 = all)")
	auditQueryCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum number of events")
	auditQueryCmd.Flags().IntVar(&auditOffset, "offset", 0, "number of events to skip")
	auditQueryCmd.Flags().BoolVar(&auditFailuresOnly, "failures-only", false, "only failed operations")

	auditCmd.AddCommand(auditQueryCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	options := audit.QueryOptions{
		Action:  auditAction,
		Backend: auditBackend,
		Usage:   auditUsage,
		Limit:   auditLimit,
		Offset:  auditOffset,
	}

	if auditSince != "" {
		t, err := time.Parse(time.RFC3339, auditSince)
		if err != nil {
			return fmt.Errorf("invalid --since timestamp: %w", err)
		}
		options.Since = &t
	}
	if auditUntil != "" {
		t, err := time.Parse(time.RFC3339, auditUntil)
		if err != nil {
			return fmt.Errorf("invalid --until timestamp: %w", err)
		}
		options.Until = &t
	}
	if auditFailuresOnly {
		failed := false
		options.Success = &failed
	}

	result, err := auditLogger.Query(options)
	if err != nil {
		return fmt.Errorf("audit query failed: %w", err)
	}

	if auditJSONOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if len(result.Events) == 0 {
		fmt.Println("No audit events match the filters.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tACTION\tOK\tBACKEND\tUSAGE\tSTATUS")
	for _, event := range result.Events {
		status := "-"
		if event.Status != nil {
			status = fmt.Sprintf("%d", *event.Status)
		}
		backend := event.Backend
		if backend == "" {
			backend = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%d\t%s\n",
			event.Timestamp.Format(time.RFC3339), event.Action, event.Success, backend, event.Usage, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d of %d events (total logged: %d)\n", len(result.Events), result.Filtered, result.TotalCount)
	return nil
}
