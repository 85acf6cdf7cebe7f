// slotreplay runs slot map scenarios and dumps/restores live handles.
//
// Usage:
//
//	slotreplay run scenario.yaml...
//	slotreplay dump scenario.yaml -o handles.yaml
//	slotreplay restore handles.yaml
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/homier/slotmap"
	"github.com/homier/slotmap/internal/replay"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
		logger    *slog.Logger
	)

	rootCmd := &cobra.Command{
		Use:          "slotreplay",
		Short:        "Replay slot map scenarios",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
			if err != nil {
				return err
			}

			logger = l

			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	runCmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios, each against a fresh map",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				report, err := runScenario(cmd, path, logger)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps, size=%d capacity=%d free_blocks=%d retired=%d\n",
					path,
					report.Steps,
					report.Stats.Size,
					report.Stats.Capacity,
					report.Stats.FreeBlocks,
					report.Stats.Retired,
				)
			}

			return nil
		},
	}

	var output string

	dumpCmd := &cobra.Command{
		Use:   "dump <scenario.yaml>",
		Short: "Run a scenario and dump the live handles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := replay.NewRunner(logger)

			s, err := replay.LoadScenario(args[0])
			if err != nil {
				return err
			}

			if _, err := r.Run(cmd.Context(), s); err != nil {
				return err
			}

			d := replay.DumpMap(r.Map())
			if output == "" {
				return d.Write(cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}

			if err := d.Write(f); err != nil {
				f.Close()
				return err
			}

			return f.Close()
		},
	}
	dumpCmd.Flags().StringVarP(&output, "output", "o", "", "Write the dump to a file instead of stdout")

	var maxIndex uint32

	restoreCmd := &cobra.Command{
		Use:   "restore <dump.yaml>",
		Short: "Rebuild a map from a dump and print its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			d, err := replay.ReadDump(f)
			if err != nil {
				return err
			}

			m, err := replay.Restore(d, maxIndex,
				slotmap.WithCapacity[string](len(d.Entries)),
				slotmap.WithLogger[string](logger),
			)
			if err != nil {
				return err
			}

			if err := m.CheckIntegrity(); err != nil {
				return err
			}

			for k, v := range m.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", k, k.ID(), v)
			}

			logger.Info("restored", "entries", m.Len(), "capacity", m.Cap())

			return nil
		},
	}
	restoreCmd.Flags().Uint32Var(&maxIndex, "max-index", 0, "Refuse entries at or above this index (default: derived from the entry count)")

	rootCmd.AddCommand(runCmd, dumpCmd, restoreCmd)

	return rootCmd
}

func runScenario(cmd *cobra.Command, path string, logger *slog.Logger) (*replay.Report, error) {
	s, err := replay.LoadScenario(path)
	if err != nil {
		return nil, err
	}

	report, err := replay.NewRunner(logger.With("file", path)).Run(cmd.Context(), s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return report, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
