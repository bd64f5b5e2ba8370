package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmdao-go/dakota-driver/internal/driver"
	"github.com/openmdao-go/dakota-driver/internal/problem"
)

var printDeck bool

var validateCmd = &cobra.Command{
	Use:   "validate <problem.yaml>",
	Short: "Validate a problem file without running anything",
	Long: `Loads a YAML problem file and runs the full configuration pass,
including study-specific checks, without touching disk. With --print-deck
the generated input deck is written to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: validateProblem,
}

func init() {
	validateCmd.Flags().BoolVar(&printDeck, "print-deck", false, "Print the generated input deck")
	rootCmd.AddCommand(validateCmd)
}

func validateProblem(cmd *cobra.Command, args []string) error {
	file, err := problem.Load(args[0])
	if err != nil {
		return err
	}
	study, err := driver.FromSpec(file.Method)
	if err != nil {
		return err
	}

	drv := driver.New(study)
	if err := drv.Configure(file.Problem(), driver.RunConfig{Tabular: true}); err != nil {
		return err
	}

	p := file.Problem()
	fmt.Printf("%s: valid (%s study, %d parameters, %d objectives, %d constraints)\n",
		args[0], study.Name(), len(p.Parameters), len(p.Objectives), len(p.Constraints))

	if printDeck {
		dk, err := drv.BuildDeck()
		if err != nil {
			return err
		}
		fmt.Println()
		return dk.Write(os.Stdout)
	}
	return nil
}
