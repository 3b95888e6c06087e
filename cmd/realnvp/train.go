package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/realnvp/autodiff"
	"github.com/born-ml/realnvp/backend/cpu"
	"github.com/born-ml/realnvp/flow"
	"github.com/born-ml/realnvp/optim"
	"github.com/born-ml/realnvp/tensor"
)

func trainCmd() *cobra.Command {
	var (
		dataPath  string
		outPath   string
		couplings int
		hidden    int
		depth     int
		steps     int
		batchSize int
		lr        float64
		mask      string
		logEvery  int
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on a CSV dataset",
		Long: `Train fits a RealNVP flow to a CSV file of real-valued rows by
maximum likelihood. The feature dimension is taken from the file. The
trained model is written as an .rnvp checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, dim, err := loadCSV(dataPath)
			if err != nil {
				return err
			}
			n := len(data) / dim
			if n < batchSize {
				return fmt.Errorf("dataset has %d rows, smaller than batch size %d", n, batchSize)
			}

			maskKind, err := parseMaskKind(mask)
			if err != nil {
				return err
			}

			backend := autodiff.New(cpu.New())
			model, err := flow.New(flow.Config{
				Dim:       dim,
				Couplings: couplings,
				Hidden:    hidden,
				Depth:     depth,
				Mask:      maskKind,
			}, backend)
			if err != nil {
				return err
			}

			optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
				LR: float32(lr),
			}, backend)

			fmt.Printf("training on %s: %d rows, dim=%d, %d coupling layers\n",
				dataPath, n, dim, model.Config().Couplings)

			tape := backend.Tape()
			for step := 1; step <= steps; step++ {
				batch := make([]float32, 0, batchSize*dim)
				for i := 0; i < batchSize; i++ {
					row := rand.Intn(n)
					batch = append(batch, data[row*dim:(row+1)*dim]...)
				}
				x, err := tensor.FromSlice(batch, tensor.Shape{batchSize, dim}, backend)
				if err != nil {
					return err
				}

				tape.Clear()
				tape.StartRecording()
				loss, err := model.Loss(x)
				if err != nil {
					tape.StopRecording()
					if errors.Is(err, flow.ErrNumericInstability) {
						fmt.Fprintf(os.Stderr, "step %d: %v, skipping\n", step, err)
						continue
					}
					return err
				}
				grads := autodiff.Backward(loss)
				tape.StopRecording()

				optimizer.Step(grads)
				optimizer.ZeroGrad()

				if logEvery > 0 && step%logEvery == 0 {
					fmt.Printf("step %5d  nll=%.4f\n", step, loss.Item())
				}
			}

			if err := model.SaveCheckpoint(outPath, &flow.TrainingMeta{
				Step:          int64(steps),
				OptimizerType: "Adam",
				LearningRate:  lr,
			}); err != nil {
				return err
			}
			fmt.Printf("checkpoint written to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "CSV file of training rows (required)")
	cmd.Flags().StringVar(&outPath, "out", "model.rnvp", "checkpoint output path")
	cmd.Flags().IntVar(&couplings, "couplings", 0, "number of coupling layers (default 6)")
	cmd.Flags().IntVar(&hidden, "hidden", 0, "ST-Net hidden width (default 256)")
	cmd.Flags().IntVar(&depth, "depth", 0, "ST-Net hidden layers (default 4)")
	cmd.Flags().IntVar(&steps, "steps", 2000, "training steps")
	cmd.Flags().IntVar(&batchSize, "batch", 256, "batch size")
	cmd.Flags().Float64Var(&lr, "lr", 5e-5, "learning rate")
	cmd.Flags().StringVar(&mask, "mask", "half", "partition scheme: half or checkerboard")
	cmd.Flags().IntVar(&logEvery, "log-every", 100, "log loss every N steps (0 disables)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func parseMaskKind(s string) (flow.MaskKind, error) {
	switch s {
	case "half":
		return flow.HalfSplit, nil
	case "checkerboard":
		return flow.Checkerboard, nil
	default:
		return 0, fmt.Errorf("unknown mask scheme %q (want half or checkerboard)", s)
	}
}

// loadCSV reads a CSV of real-valued rows into a flat [n*dim] buffer.
// A non-numeric first row is treated as a header and skipped.
func loadCSV(path string) ([]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("%s is empty", path)
	}

	if _, err := strconv.ParseFloat(records[0][0], 32); err != nil {
		records = records[1:] // header row
	}
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("%s has no data rows", path)
	}

	dim := len(records[0])
	data := make([]float32, 0, len(records)*dim)
	for i, record := range records {
		if len(record) != dim {
			return nil, 0, fmt.Errorf("row %d has %d fields, expected %d", i+1, len(record), dim)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, 0, fmt.Errorf("row %d field %d: %w", i+1, j+1, err)
			}
			data = append(data, float32(v))
		}
	}
	return data, dim, nil
}
