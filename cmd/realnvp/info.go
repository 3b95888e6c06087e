package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/realnvp/internal/serialization"
)

func infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <checkpoint>",
		Short: "Print checkpoint metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := serialization.NewReader(args[0])
			if err != nil {
				return err
			}

			header := reader.Header()
			fmt.Printf("model:   %s\n", header.ModelType)
			fmt.Printf("created: %s\n", header.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			for key, value := range header.Metadata {
				fmt.Printf("  %s: %s\n", key, value)
			}
			if header.Training != nil {
				fmt.Printf("training: step=%d optimizer=%s lr=%g\n",
					header.Training.Step, header.Training.OptimizerType, header.Training.LearningRate)
			}

			var totalBytes int64
			for _, meta := range header.Tensors {
				totalBytes += meta.Size
			}
			fmt.Printf("tensors: %d (%d bytes)\n", len(header.Tensors), totalBytes)
			return nil
		},
	}
	return cmd
}
