package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/kimo/internal/summarize"
)

// NewSummarizeCmd creates the 'summarize' command.
func NewSummarizeCmd(flags *globalFlags) *cobra.Command {
	var (
		maxLength  int
		strategy   string
		file       string
		simplify   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "summarize [text...]",
		Short: "Summarize text from arguments, a file or stdin",
		Example: `  kimo summarize --file article.txt --max-length 80
  pbpaste | kimo summarize --simplify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}

			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			var sum summarize.Summary
			if simplify {
				sum = c.Summaries.Simplify(cmd.Context(), text)
			} else {
				opts := summarize.Options{MaxLength: maxLength}
				if strategy != "" {
					opts.Strategy = summarize.ParseStrategy(strategy)
				}
				sum = c.Summaries.Summarize(cmd.Context(), text, opts)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, sum)
			}
			fmt.Fprintln(out, sum.Text)
			if sum.Warning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Note: %s\n", sum.Warning)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxLength, "max-length", "n", 0, "Maximum summary length in words (default: summarize.default_max_length)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "auto, local, remote or fallback")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from file")
	cmd.Flags().BoolVar(&simplify, "simplify", false, "Produce a short simplified summary")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func readText(stdin io.Reader, file string, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	r := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no text to summarize")
	}
	return string(data), nil
}
