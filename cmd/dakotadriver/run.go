package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmdao-go/dakota-driver/internal/driver"
	"github.com/openmdao-go/dakota-driver/internal/problem"
	"github.com/openmdao-go/dakota-driver/internal/store"
)

var (
	problemPath string
	executable  string
	workDir     string
	dataDir     string
	timeout     time.Duration
	noTabular   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an optimization study",
	Long: `Loads a YAML problem file, generates the input deck, launches the
external executable and prints a result summary. Without --workdir the
run gets its own directory in the run store.`,
	RunE: runStudy,
}

func init() {
	runCmd.Flags().StringVar(&problemPath, "problem", "", "Problem YAML file (required)")
	runCmd.Flags().StringVar(&executable, "executable", "dakota", "External optimizer executable")
	runCmd.Flags().StringVar(&workDir, "workdir", "", "Run in this directory instead of the run store")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Run store directory")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Kill the run after this duration (0 = no limit)")
	runCmd.Flags().BoolVar(&noTabular, "no-tabular", false, "Disable tabular iterate output")

	runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}

func runStudy(cmd *cobra.Command, args []string) error {
	file, err := problem.Load(problemPath)
	if err != nil {
		return err
	}
	study, err := driver.FromSpec(file.Method)
	if err != nil {
		return err
	}

	cfg := driver.RunConfig{
		Executable: executable,
		WorkDir:    workDir,
		Tabular:    !noTabular,
	}

	// Without an explicit workdir the run is persisted in the store so
	// "runs" and "results" can find it later.
	var (
		fsStore  *store.FSStore
		manifest *store.Manifest
	)
	if workDir == "" {
		fsStore, err = store.NewFSStore(dataDir)
		if err != nil {
			return err
		}
		runID := store.NewRunID()
		cfg.WorkDir = fsStore.RunDir(runID)
		manifest = &store.Manifest{
			RunID:      runID,
			State:      store.StatePending,
			Study:      study.Name(),
			Executable: executable,
			Problem:    *file,
			CreatedAt:  time.Now(),
		}
	}

	drv := driver.New(study)
	if err := drv.Configure(file.Problem(), cfg); err != nil {
		return err
	}
	cfg = drv.Config()

	if manifest != nil {
		manifest.Files = store.RunFiles{
			Input:   cfg.InputFile,
			Stdout:  cfg.StdoutFile,
			Stderr:  cfg.StderrFile,
			Tabular: cfg.TabularFile,
		}
		if err := fsStore.CreateRun(manifest); err != nil {
			return err
		}
		fmt.Printf("Run ID: %s\n", manifest.RunID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if manifest != nil {
		manifest.State = store.StateRunning
		manifest.StartedAt = &start
		saveManifestOrWarn(fsStore, manifest)
	}

	runErr := drv.Run(ctx)
	end := time.Now()

	if manifest != nil {
		manifest.EndedAt = &end
		if runErr != nil {
			manifest.State = store.StateFailed
			manifest.Error = runErr.Error()
			if ctx.Err() != nil {
				manifest.State = store.StateCancelled
			}
		} else {
			manifest.State = store.StateCompleted
		}
		saveManifestOrWarn(fsStore, manifest)
	}
	if runErr != nil {
		return runErr
	}

	if noTabular {
		fmt.Printf("Run finished in %s (no tabular output requested)\n", end.Sub(start).Round(time.Millisecond))
		return nil
	}

	results, err := drv.ReadResults()
	if err != nil {
		return err
	}
	if manifest != nil {
		manifest.Rows = results.NumRows()
		saveManifestOrWarn(fsStore, manifest)
	}

	fmt.Printf("Run finished in %s: %d evaluations\n", end.Sub(start).Round(time.Millisecond), results.NumRows())
	if last := results.Last(); last != nil {
		fmt.Println("Final iterate:")
		for i, col := range results.Columns {
			fmt.Printf("  %-20s %g\n", col, last[i])
		}
	}
	return nil
}

func saveManifestOrWarn(fsStore *store.FSStore, manifest *store.Manifest) {
	if err := fsStore.SaveManifest(manifest.RunID, manifest); err != nil {
		slog.Warn("Failed to save manifest", "run_id", manifest.RunID, "error", err)
	}
}
