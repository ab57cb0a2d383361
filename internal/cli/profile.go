package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewProfileCmd creates the 'profile' command.
func NewProfileCmd(flags *globalFlags) *cobra.Command {
	var jsonOutput bool
	var top int

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the interest profile derived from local history",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			profile, err := c.Personalizer.Profile(cmd.Context(), c.Config.Ranking)
			if err != nil {
				return fmt.Errorf("failed to build profile: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, profile)
			}

			fmt.Fprintf(out, "Profile (%d events since %s)\n", profile.Events, profile.Since.Format("2006-01-02"))
			if profile.Empty() {
				fmt.Fprintln(out, "\nNo history yet. Search or run 'kimo track' to build one.")
				return nil
			}

			urls := make([]string, 0, len(profile.URLs))
			for u := range profile.URLs {
				urls = append(urls, u)
			}
			sort.SliceStable(urls, func(i, j int) bool {
				return profile.URLs[urls[i]].Total() > profile.URLs[urls[j]].Total()
			})

			fmt.Fprintln(out, "\nTop pages:")
			for i, u := range urls {
				if i == top {
					break
				}
				fmt.Fprintf(out, "  %6.2f  %s\n", profile.URLs[u].Total(), u)
			}

			fmt.Fprintln(out, "\nTop terms:")
			for i, t := range profile.Terms {
				if i == top {
					break
				}
				fmt.Fprintf(out, "  %6.2f  %s\n", t.Weight, t.Term)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().IntVarP(&top, "top", "n", 10, "Entries to show per section")
	return cmd
}
