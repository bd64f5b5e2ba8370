package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openmdao-go/dakota-driver/internal/store"
	"github.com/openmdao-go/dakota-driver/internal/tabular"
)

var (
	resultsRunID   string
	resultsDataDir string
	resultsLast    bool
)

var resultsCmd = &cobra.Command{
	Use:   "results [tabular-file]",
	Short: "Parse and print a tabular iterate file",
	Long: `Parses a tabular iterate file and prints it. Either pass the file
path directly, or use --run to read a stored run's results.`,
	Args: cobra.MaximumNArgs(1),
	RunE: showResults,
}

func init() {
	resultsCmd.Flags().StringVar(&resultsRunID, "run", "", "Read the tabular file of this stored run")
	resultsCmd.Flags().StringVar(&resultsDataDir, "data-dir", "./data", "Run store directory")
	resultsCmd.Flags().BoolVar(&resultsLast, "last", false, "Print only the final iterate")
	rootCmd.AddCommand(resultsCmd)
}

func showResults(cmd *cobra.Command, args []string) error {
	var path string
	switch {
	case len(args) == 1 && resultsRunID != "":
		return fmt.Errorf("pass either a file path or --run, not both")
	case len(args) == 1:
		path = args[0]
	case resultsRunID != "":
		fsStore, err := store.NewFSStore(resultsDataDir)
		if err != nil {
			return err
		}
		manifest, err := fsStore.LoadManifest(resultsRunID)
		if err != nil {
			return err
		}
		if manifest.Files.Tabular == "" {
			return fmt.Errorf("run %s has no tabular output", resultsRunID)
		}
		path = filepath.Join(fsStore.RunDir(resultsRunID), manifest.Files.Tabular)
	default:
		return fmt.Errorf("a tabular file path or --run is required")
	}

	table, err := tabular.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Println(strings.Join(table.Columns, "\t"))
	printRow := func(row tabular.Row) {
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = fmt.Sprintf("%g", v)
		}
		fmt.Println(strings.Join(fields, "\t"))
	}

	if resultsLast {
		if last := table.Last(); last != nil {
			printRow(last)
		}
		return nil
	}
	for _, row := range table.Rows {
		printRow(row)
	}
	return nil
}
