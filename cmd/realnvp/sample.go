package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/realnvp/autodiff"
	"github.com/born-ml/realnvp/backend/cpu"
	"github.com/born-ml/realnvp/flow"
)

func sampleCmd() *cobra.Command {
	var (
		checkpoint string
		outPath    string
		n          int
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate samples from a trained checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := autodiff.New(cpu.New())
			model, err := flow.Load(checkpoint, backend)
			if err != nil {
				return err
			}

			samples, err := model.Sample(n)
			if err != nil {
				return err
			}

			dim := model.Config().Dim
			if err := writeSamplesCSV(outPath, samples.Data(), dim); err != nil {
				return err
			}
			fmt.Printf("%d samples written to %s\n", n, outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "path to .rnvp checkpoint (required)")
	cmd.Flags().StringVar(&outPath, "out", "samples.csv", "output CSV path")
	cmd.Flags().IntVar(&n, "n", 1000, "number of samples to draw")
	_ = cmd.MarkFlagRequired("checkpoint")

	return cmd
}

func writeSamplesCSV(path string, data []float32, dim int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	record := make([]string, dim)
	for i := 0; i+dim <= len(data); i += dim {
		for j := 0; j < dim; j++ {
			record[j] = strconv.FormatFloat(float64(data[i+j]), 'g', -1, 32)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
