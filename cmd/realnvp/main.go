// Command realnvp trains, inspects, and samples RealNVP checkpoints.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "realnvp",
		Short:         "RealNVP normalizing-flow density models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(trainCmd(), sampleCmd(), infoCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("realnvp", version)
		},
	}
}
