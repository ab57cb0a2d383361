package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/khanglvm/kimo/internal/search"
)

// NewSearchCmd creates the 'search' command.
func NewSearchCmd(flags *globalFlags) *cobra.Command {
	var jsonOutput bool
	var explain bool

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the enabled providers and personalize the results",
		Args:  cobra.MinimumNArgs(1),
		Example: `  kimo search golang generics
  kimo search --explain "sqlite wal mode"
  kimo search --json rust async | jq '.results[0]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			resp, err := c.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, resp)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			printResults(out, resp.Results, explain)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVarP(&explain, "explain", "e", false, "Show the score breakdown")
	return cmd
}

// NewRankCmd creates the 'rank' command, which personalizes a result list
// read from a file or stdin.
func NewRankCmd(flags *globalFlags) *cobra.Command {
	var query, file string

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Personalize a JSON result list",
		Long: `Read a JSON array of results ({title, link, description, date, score})
and print it re-ranked against the local history.`,
		Example: `  kimo rank --query "go modules" --file results.json
  curl -s ... | kimo rank --query "go modules"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := readResults(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			return printJSON(cmd.OutOrStdout(), c.Rank(cmd.Context(), query, results))
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Query the results were returned for")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Results file (default: stdin)")
	return cmd
}

func readResults(stdin io.Reader, file string) ([]search.Result, error) {
	r := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open results: %w", err)
		}
		defer f.Close()
		r = f
	}

	var results []search.Result
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return results, nil
}

func printResults(w io.Writer, results []search.Result, explain bool) {
	for i, r := range results {
		fmt.Fprintf(w, "%2d. %s\n", i+1, r.Title)
		fmt.Fprintf(w, "    %s\n", r.Link)
		if r.Description != "" {
			fmt.Fprintf(w, "    %s\n", truncate(r.Description, 100))
		}
		if explain && r.Breakdown != nil {
			b := r.Breakdown
			fmt.Fprintf(w, "    score %.3f = base %.3f, personal %.3f, freshness %.3f\n", r.Score, b.Base, b.Personal, b.Freshness)
			if len(b.MatchedTerms) > 0 {
				fmt.Fprintf(w, "    matched: %s\n", strings.Join(b.MatchedTerms, ", "))
			}
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
