package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"foundry-hq/hermes/pkg/audit"
	"foundry-hq/hermes/pkg/audit/retention"
	auditstorage "foundry-hq/hermes/pkg/audit/storage"
	"foundry-hq/hermes/pkg/cli"
	"foundry-hq/hermes/pkg/config"
)

var auditFlags struct {
	model      string
	outcome    string
	since      time.Duration
	limit      int
	output     string
	maxAge     time.Duration
	maxRecords int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit trail",
	Long: `Query and maintain the audit trail of proxied requests.

Subcommands:
  list  - List audit records with filters
  stats - Summarize outcomes, latency, and traffic
  prune - Apply the retention policy once

Examples:
  # Show the most recent records
  hermes audit list

  # Failed upstream calls in the last hour
  hermes audit list --outcome upstream_error --since 1h

  # Outcome summary for today
  hermes audit stats --since 24h

  # Export as JSON
  hermes audit list --output json`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records",
	Long: `List audit records, newest first.

Examples:
  # Most recent 50 records
  hermes audit list

  # Requests for one model
  hermes audit list --model gpt-4

  # Slow window inspection as JSON
  hermes audit list --since 30m --output json`,
	RunE: runAuditList,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the audit trail",
	Long: `Summarize outcomes, latency, and traffic across audit records.

Examples:
  # Summary over the whole store
  hermes audit stats

  # Summary for the last 24 hours as JSON
  hermes audit stats --since 24h --output json`,
	RunE: runAuditStats,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy once",
	Long: `Delete audit records that fall outside the retention policy.

The policy comes from the audit.retention config section; --max-age and
--max-records override it for a one-off run.

Examples:
  # Prune with the configured policy
  hermes audit prune

  # Keep only the last week regardless of config
  hermes audit prune --max-age 168h`,
	RunE: runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditStatsCmd, auditPruneCmd)

	auditListCmd.Flags().StringVar(&auditFlags.model, "model", "", "filter by model ID")
	auditListCmd.Flags().StringVar(&auditFlags.outcome, "outcome", "", "filter by outcome (success, client_error, upstream_error, canceled)")
	auditListCmd.Flags().DurationVar(&auditFlags.since, "since", 0, "only records newer than this (e.g. 1h, 30m)")
	auditListCmd.Flags().IntVar(&auditFlags.limit, "limit", 50, "max results")
	auditListCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "text", "output format: text, json")

	auditStatsCmd.Flags().DurationVar(&auditFlags.since, "since", 0, "only records newer than this (e.g. 1h, 30m)")
	auditStatsCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "text", "output format: text, json")

	auditPruneCmd.Flags().DurationVar(&auditFlags.maxAge, "max-age", 0, "delete records older than this (0 = use config)")
	auditPruneCmd.Flags().IntVar(&auditFlags.maxRecords, "max-records", 0, "keep at most this many records (0 = use config)")
}

// openAuditStorage opens the configured audit backend for offline
// querying. Only sqlite survives process restarts; the memory backend
// has nothing to query from a separate process.
func openAuditStorage() (audit.Storage, *config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", err.Error())
	}

	if cfg.Audit.Backend != "sqlite" {
		return nil, nil, cli.NewConfigError("audit.backend",
			fmt.Sprintf("backend %q cannot be queried offline (use sqlite)", cfg.Audit.Backend))
	}

	store, err := auditstorage.NewSQLite(cfg.Audit.Path)
	if err != nil {
		return nil, nil, cli.NewCommandError("audit", fmt.Errorf("opening audit database: %w", err))
	}
	return store, cfg, nil
}

func runAuditList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.output)
	if err != nil {
		return err
	}

	store, _, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	f := audit.Filter{
		Model:   auditFlags.model,
		Outcome: auditFlags.outcome,
		Limit:   auditFlags.limit,
	}
	if auditFlags.since > 0 {
		f.Since = time.Now().Add(-auditFlags.since)
	}

	records, err := store.List(context.Background(), f)
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}

	if format == cli.FormatJSON {
		return cli.WriteJSON(os.Stdout, map[string]any{
			"total_records": len(records),
			"records":       records,
		})
	}

	if len(records) == 0 {
		fmt.Println("No audit records found.")
		return nil
	}

	table := &cli.Table{Headers: []string{"REQUEST", "MODEL", "STREAM", "OUTCOME", "STATUS", "LATENCY", "ELIDED", "CREATED"}}
	for _, rec := range records {
		table.AddRow(
			rec.RequestID,
			rec.Model,
			rec.Stream,
			rec.Outcome,
			rec.HTTPStatus,
			fmt.Sprintf("%dms", rec.LatencyMS),
			rec.ElidedRegions,
			rec.CreatedAt.Format(time.RFC3339),
		)
	}
	if err := table.WriteTo(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\n%d records\n", len(records))
	return nil
}

func runAuditStats(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.output)
	if err != nil {
		return err
	}

	store, _, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	f := audit.Filter{}
	if auditFlags.since > 0 {
		f.Since = time.Now().Add(-auditFlags.since)
	}

	records, err := store.List(context.Background(), f)
	if err != nil {
		return cli.NewCommandError("audit stats", err)
	}

	var (
		outcomes = map[string]int{}
		models   = map[string]int{}
		streams  int
		latency  int64
		elided   int
		bytesIn  int64
		bytesOut int64
	)
	for _, rec := range records {
		outcomes[rec.Outcome]++
		models[rec.Model]++
		if rec.Stream {
			streams++
		}
		latency += rec.LatencyMS
		elided += rec.ElidedRegions
		bytesIn += rec.BytesIn
		bytesOut += rec.BytesOut
	}

	total := len(records)
	var avgLatency int64
	if total > 0 {
		avgLatency = latency / int64(total)
	}

	if format == cli.FormatJSON {
		return cli.WriteJSON(os.Stdout, map[string]any{
			"total_records":  total,
			"outcomes":       outcomes,
			"models":         models,
			"streaming":      streams,
			"avg_latency_ms": avgLatency,
			"elided_regions": elided,
			"bytes_in":       bytesIn,
			"bytes_out":      bytesOut,
		})
	}

	if total == 0 {
		fmt.Println("No audit records found.")
		return nil
	}

	fmt.Printf("Audit summary (%d records)\n\n", total)
	fmt.Println("  Outcomes:")
	for _, outcome := range sortedKeys(outcomes) {
		fmt.Printf("    %-16s %d\n", outcome, outcomes[outcome])
	}
	fmt.Println("\n  Models:")
	for _, model := range sortedKeys(models) {
		fmt.Printf("    %-16s %d\n", model, models[model])
	}
	fmt.Printf("\n  Streaming:       %d of %d (%.1f%%)\n", streams, total, float64(streams)/float64(total)*100)
	fmt.Printf("  Avg latency:     %dms\n", avgLatency)
	fmt.Printf("  Elided regions:  %d\n", elided)
	fmt.Printf("  Bytes in/out:    %d / %d\n", bytesIn, bytesOut)
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	store, cfg, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	policy := retention.Policy{
		MaxAge:     auditFlags.maxAge,
		MaxRecords: auditFlags.maxRecords,
	}
	if policy.MaxAge == 0 {
		policy.MaxAge = cfg.Audit.Retention.MaxAge
	}
	if policy.MaxRecords == 0 {
		policy.MaxRecords = cfg.Audit.Retention.MaxRecords
	}

	removed, err := retention.NewPruner(store, policy).Prune(context.Background())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	fmt.Printf("✓ Removed %d audit records\n", removed)
	return nil
}
