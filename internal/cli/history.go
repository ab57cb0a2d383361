package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the 'history' command group.
func NewHistoryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Export or clear the local interaction history",
		Long: `The interaction history is stored locally in the kimo database and pruned
after the retention window (retention.max_age, 30 days by default).

Commands:
  export  Write history as JSON
  clear   Delete all history`,
	}

	cmd.AddCommand(newHistoryExportCmd(flags))
	cmd.AddCommand(newHistoryClearCmd(flags))
	return cmd
}

func newHistoryExportCmd(flags *globalFlags) *cobra.Command {
	var outputFile string
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export history as JSON",
		Example: `  kimo history export > history.json
  kimo history export -o history.json --since 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			rows, err := c.History(cmd.Context(), from)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			if outputFile == "" || outputFile == "-" {
				return printJSON(cmd.OutOrStdout(), rows)
			}

			f, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", outputFile, err)
			}
			defer f.Close()

			// one exporter per file at a time
			unlock, err := lockFile(f)
			if err != nil {
				return fmt.Errorf("%s is locked by another export: %w", outputFile, err)
			}
			defer unlock()

			if err := f.Truncate(0); err != nil {
				return fmt.Errorf("failed to truncate %s: %w", outputFile, err)
			}
			if err := printJSON(f, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d interactions to %s\n", len(rows), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only export interactions newer than this")
	return cmd
}

func newHistoryClearCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "This will delete all interaction history. Continue? (y/N): ")
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(response)
				if response != "y" && response != "Y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			n, err := c.Store.ClearInteractions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d interactions\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// NewSweepCmd creates the 'sweep' command, a one-off retention pass.
func NewSweepCmd(flags *globalFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired history and cache entries now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			report, err := c.Sweeper.Sweep(cmd.Context())
			out := cmd.OutOrStdout()
			if jsonOutput {
				if perr := printJSON(out, report); perr != nil {
					return perr
				}
			} else {
				fmt.Fprintf(out, "Cutoff:        %s\n", report.Cutoff.Format(time.RFC3339))
				fmt.Fprintf(out, "Interactions:  %d deleted\n", report.Interactions)
				fmt.Fprintf(out, "Cache entries: %d purged\n", report.CacheEntries)
			}
			if err != nil {
				return fmt.Errorf("sweep incomplete: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}
