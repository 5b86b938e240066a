package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/ffpilot/internal/app"
	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/version"
)

const timestampFormat = "2006-01-02 15:04:05"

func newBudgetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show daily AI budget status",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := container.Budget.Status()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Day: %s\n", state.LastReset)
			fmt.Fprintf(out, "Spent: $%.4f of $%.2f\n", state.DailySpendUSD, state.DailyLimitUSD)
			fmt.Fprintf(out, "Requests authorized: %d\n", state.Requests)
			if state.DailySpendUSD >= state.DailyLimitUSD {
				fmt.Fprintln(out, "Budget exhausted; requests fall back to the heuristic generator.")
			}
			return nil
		},
	}
}

func newDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose environment setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := container.Doctor.Run(cmd.Context())
			renderDoctorReport(cmd.OutOrStdout(), report)
			return err
		},
	}
}

func renderDoctorReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%s] %s - %s\n",
			strings.ToUpper(string(check.Status)),
			check.Name,
			check.Details)
	}
}

func newHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past pipeline runs",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd.OutOrStdout(), container, limit, "")
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "Max entries to show")

	var query string
	var searchLimit int
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search runs for a keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return fmt.Errorf("--query required")
			}
			return listRuns(cmd.OutOrStdout(), container, searchLimit, query)
		},
	}
	searchCmd.Flags().StringVar(&query, "query", "", "Search keyword")
	searchCmd.Flags().IntVar(&searchLimit, "limit", domain.DefaultHistoryLimit, "Limit search results")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Ledger == nil {
				return fmt.Errorf("run ledger unavailable")
			}
			return container.Ledger.Clear()
		},
	}

	historyCmd.AddCommand(listCmd, searchCmd, clearCmd)
	return historyCmd
}

func listRuns(out io.Writer, container *app.Container, limit int, search string) error {
	if container.Ledger == nil {
		return fmt.Errorf("run ledger unavailable")
	}
	records, err := container.Ledger.Records(limit, search)
	if err != nil {
		return fmt.Errorf("retrieve run records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = string(rec.Exit)
		}
		fmt.Fprintf(out, "%s | %s | %s | %s | %s\n",
			rec.Timestamp.Local().Format(timestampFormat),
			rec.Operation,
			rec.Provenance,
			status,
			rec.Command)
	}
	return nil
}

func newProbeCommand(container *app.Container) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := container.Prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintln(out, info.Summary())
			fmt.Fprintf(out, "Size: %s\n", humanize.Bytes(uint64(info.SizeBytes)))
			fmt.Fprintf(out, "Duration: %s\n", (time.Duration(info.DurationSeconds*float64(time.Second))).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit raw probe data as JSON")
	return cmd
}

func newConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect ffpilot configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, container)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show full configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, container)
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print configuration file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), container.ConfigLoader.Path())
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := container.ConfigProvider.Load(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
			return nil
		},
	}

	configCmd.AddCommand(showCmd, pathCmd, validateCmd)
	return configCmd
}

func runConfigShow(cmd *cobra.Command, container *app.Container) error {
	cfg, err := container.ConfigProvider.Load(cmd.Context())
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(raw)
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show ffpilot version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ffpilot version %s\n", version.Version)
			if version.Commit != "" {
				fmt.Fprintf(out, "Commit: %s\n", version.Commit)
			}
			if version.BuildDate != "" {
				fmt.Fprintf(out, "Built: %s\n", version.BuildDate)
			}
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			return nil
		},
	}
}
