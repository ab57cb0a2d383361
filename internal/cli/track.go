package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/kimo/internal/personalize"
)

// NewTrackCmd creates the 'track' command.
func NewTrackCmd(flags *globalFlags) *cobra.Command {
	var (
		url      string
		query    string
		duration time.Duration
		meta     []string
	)

	cmd := &cobra.Command{
		Use:       "track <click|dwell|search|bookmark|share>",
		Short:     "Record an interaction",
		Args:      cobra.ExactArgs(1),
		ValidArgs: eventTypeNames(),
		Example: `  kimo track click --url https://go.dev/doc
  kimo track dwell --url https://go.dev/doc --duration 2m
  kimo track search --query "go generics"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eventType, err := personalize.ParseEventType(args[0])
			if err != nil {
				return err
			}
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			if err := c.Tracker.TrackInteraction(eventType, personalize.InteractionData{
				URL:      url,
				Query:    query,
				Duration: duration,
				Metadata: metadata,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s\n", eventType)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Result URL")
	cmd.Flags().StringVar(&query, "query", "", "Search query")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Dwell duration")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Metadata as key=value (repeatable)")
	return cmd
}

func eventTypeNames() []string {
	names := make([]string, 0, len(personalize.EventTypes))
	for _, t := range personalize.EventTypes {
		names = append(names, string(t))
	}
	return names
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --meta %q, expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
