// dakotasim mimics the external optimizer's command line surface for
// examples and integration tests. It parses an input deck, evaluates
// built-in test functions and writes the tabular iterate file the deck
// asks for.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/openmdao-go/dakota-driver/internal/sim"
)

func main() {
	input := flag.String("input", "", "input deck to execute (required)")
	output := flag.String("output", "", "write the run summary to this file instead of stdout")
	errFile := flag.String("error", "", "write failure notices to this file instead of stderr")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "dakotasim: -input is required")
		os.Exit(2)
	}

	if err := run(*input, *output, *errFile); err != nil {
		os.Exit(1)
	}
}

func run(input, output, errFile string) error {
	var stdout io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dakotasim: %v\n", err)
			return err
		}
		defer f.Close()
		stdout = f
	}

	var stderr io.Writer = os.Stderr
	if errFile != "" {
		f, err := os.Create(errFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dakotasim: %v\n", err)
			return err
		}
		defer f.Close()
		stderr = f
	}

	err := sim.Run(sim.Options{InputPath: input, Stdout: stdout, Stderr: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "dakotasim: %v\n", err)
	}
	return err
}
