package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmdao-go/dakota-driver/internal/store"
)

var runsDataDir string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run store",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		fsStore, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return err
		}
		infos, err := fsStore.List()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No runs found")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%s  %-10s %-10s %s", info.RunID, info.State, info.Study,
				info.CreatedAt.Format(time.RFC3339))
			if info.Rows > 0 {
				fmt.Printf("  %d rows", info.Rows)
			}
			if info.Error != "" {
				fmt.Printf("  error: %s", info.Error)
			}
			fmt.Println()
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the manifest of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsStore, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return err
		}
		manifest, err := fsStore.LoadManifest(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run and all its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsStore, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return err
		}
		if err := fsStore.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsDataDir, "data-dir", "./data", "Run store directory")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}
