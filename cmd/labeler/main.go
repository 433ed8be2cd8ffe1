// Package main provides the offline dataset tool: it labels raw electrode
// streams, reports train/eval partitions and conditioned tensor shapes, and
// generates synthetic streams.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/logging"
	"eeg-action-service/internal/service/conditioner"
	"eeg-action-service/internal/service/labeler"
	"eeg-action-service/internal/service/source/simulated"
)

const (
	defaultTestSize = 20
	defaultSeed     = 42
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "eeg-labeler",
		Short:         "Label and inspect raw EEG stream files",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg := logging.DefaultConfig()
			cfg.Level = logLevel
			cfg.Format = "console"
			logging.Init(cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newLabelCmd())
	rootCmd.AddCommand(newSplitCmd())
	rootCmd.AddCommand(newConditionCmd())
	rootCmd.AddCommand(newSimulateCmd())

	return rootCmd
}

func newLabelCmd() *cobra.Command {
	var (
		output  string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "label <dir>",
		Short: "Label every stream file in dir and write the merged dataset CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := labeler.New(workers).LabelDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := labeler.WriteDataset(w, ds); err != nil {
				return fmt.Errorf("failed to write dataset: %w", err)
			}

			if output != "" && output != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d windows to %s\n", ds.Len(), output)
				printCounts(cmd.OutOrStdout(), ds)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path (default: stdout)")
	cmd.Flags().IntVar(&workers, "workers", labeler.DefaultWorkers, "files labeled in parallel")
	return cmd
}

func newSplitCmd() *cobra.Command {
	var (
		testSize int
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "split <dir>",
		Short: "Report a reproducible train/eval partition of the labeled windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := labeler.New(labeler.DefaultWorkers).LabelDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			train, eval := ds.Split(testSize, seed)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "windows: %d\ntrain: %d\neval: %d\n", ds.Len(), train.Len(), eval.Len())
			fmt.Fprintln(out, "eval by class:")
			printCounts(out, eval)
			return nil
		},
	}
	cmd.Flags().IntVar(&testSize, "test-size", defaultTestSize, "windows held out for evaluation")
	cmd.Flags().Uint64Var(&seed, "seed", defaultSeed, "shuffle seed")
	return cmd
}

func newConditionCmd() *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "condition <dir>",
		Short: "Condition the labeled windows as one batch and report the tensor shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := labeler.New(labeler.DefaultWorkers).LabelDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t, err := conditioner.New(threshold).Dataset(ds)
			if err != nil {
				return err
			}
			shape := t.Shape()
			fmt.Fprintf(cmd.OutOrStdout(), "shape: (%d, %d, %d)\n", shape[0], shape[1], shape[2])
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", conditioner.DefaultThreshold, "dropout threshold")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	var (
		perAction int
		files     int
		seed      uint64
	)
	cmd := &cobra.Command{
		Use:   "simulate <dir>",
		Short: "Generate synthetic stream files with windows for every action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			cfg := simulated.DefaultConfig()
			cfg.Seed = seed
			src := simulated.New(cfg)
			defer src.Close()

			for i := 0; i < files; i++ {
				windows, err := simulateWindows(cmd.Context(), src, perAction)
				if err != nil {
					return err
				}
				path := filepath.Join(dir, fmt.Sprintf("session_%03d.csv", i+1))
				if err := writeStreamFile(path, windows); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files with %d windows each to %s\n",
				files, perAction*len(eeg.Actions), dir)
			return nil
		},
	}
	cmd.Flags().IntVar(&perAction, "per-action", 5, "windows generated per action per file")
	cmd.Flags().IntVar(&files, "files", 1, "number of stream files")
	cmd.Flags().Uint64Var(&seed, "seed", defaultSeed, "generator seed")
	return cmd
}

func simulateWindows(ctx context.Context, src *simulated.Source, perAction int) ([]eeg.Window, error) {
	var windows []eeg.Window
	for _, a := range eeg.Actions {
		for i := 0; i < perAction; i++ {
			b, err := src.Read(ctx)
			if err != nil {
				return nil, err
			}
			windows = append(windows, eeg.Window{Samples: b.Matrix(), Class: a})
		}
	}
	return windows, nil
}

func writeStreamFile(path string, windows []eeg.Window) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := labeler.WriteStream(f, windows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printCounts(w io.Writer, ds eeg.Dataset) {
	counts := ds.Counts()
	actions := make([]eeg.Action, 0, len(counts))
	for a := range counts {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	for _, a := range actions {
		fmt.Fprintf(w, "  %-12s %d\n", a.String(), counts[a])
	}
}
