/*
Package cli implements the kimo command line.

Every command builds what it needs from the layered configuration; the
heavier ones open a companion.Companion and close it before returning so
queued interactions are flushed.
*/
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/khanglvm/kimo/internal/companion"
	"github.com/khanglvm/kimo/internal/config"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/version"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	dataDir    string
	verbose    bool
}

// NewRootCmd creates the kimo command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "kimo",
		Short: "Local-first search companion",
		Long: `kimo re-ranks search results against your own browsing history.

Clicks, dwell time, bookmarks, shares and past searches are stored locally
in ~/.kimo/kimo.db and decay over time, so recent interests weigh more.
Nothing leaves the machine except the search queries themselves.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file (default: $KIMO_CONFIG, ~/.kimo/config.yaml, ./kimo.yaml)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Data directory (default: ~/.kimo)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(NewServeCmd(flags))
	root.AddCommand(NewSearchCmd(flags))
	root.AddCommand(NewRankCmd(flags))
	root.AddCommand(NewTrackCmd(flags))
	root.AddCommand(NewSummarizeCmd(flags))
	root.AddCommand(NewProfileCmd(flags))
	root.AddCommand(NewSweepCmd(flags))
	root.AddCommand(NewCacheCmd(flags))
	root.AddCommand(NewHistoryCmd(flags))
	root.AddCommand(NewConfigCmd(flags))
	root.AddCommand(NewVersionCmd(flags))

	return root
}

// loadConfig resolves configuration with flag overrides applied last.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// open loads configuration and builds the companion.
func (f *globalFlags) open() (*companion.Companion, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c, err := companion.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return c, nil
}

func closeCompanion(c *companion.Companion) {
	if err := c.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	c.Log.Sync()
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
