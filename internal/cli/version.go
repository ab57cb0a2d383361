package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/kimo/internal/version"
)

// NewVersionCmd creates the 'version' command
func NewVersionCmd(flags *globalFlags) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the current version, commit hash, and build date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:  %s\n", version.Version)
			fmt.Fprintf(out, "Commit:   %s\n", version.Commit)
			fmt.Fprintf(out, "Built:    %s\n", version.Date)

			if !check {
				return nil
			}
			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			latest, err := version.NewChecker(c.Cache).CheckUpdate(ctx, version.Version)
			if err != nil {
				return fmt.Errorf("update check failed: %w", err)
			}
			if latest == "" {
				fmt.Fprintln(out, "Up to date")
			} else {
				fmt.Fprintf(out, "Update available: %s\n", latest)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check for a newer release")
	return cmd
}
