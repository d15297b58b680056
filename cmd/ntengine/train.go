package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ridgeline-quant/ntengine/pkg/analysis/mlmodel"
)

// featureColumns are the six mlmodel feature names this loader reads from
// each CSV, matched by header name alongside a "label" column (1 =
// favorable outcome, 0 = unfavorable).
var featureColumns = []string{"rsi_centered", "vwap_ext", "volume_ratio", "atr_pct", "pattern_bull", "pattern_bear"}

func newTrainCmd() *cobra.Command {
	var (
		csvDir    string
		modelPath string
		epochs    int
		lr        float64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the logistic-regression confidence model from labeled CSV samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, labels, err := loadTrainingData(csvDir)
			if err != nil {
				return fmt.Errorf("loading training data: %w", err)
			}
			if len(samples) == 0 {
				return fmt.Errorf("no training samples found under %s", csvDir)
			}
			fmt.Printf("Loaded %d training samples\n", len(samples))

			model := mlmodel.Default()
			model.Fit(samples, labels, epochs, lr)

			if err := saveModel(model, modelPath); err != nil {
				return fmt.Errorf("saving model: %w", err)
			}
			fmt.Printf("Wrote trained model to %s\n", modelPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvDir, "csv-dir", "data/training", "directory of labeled feature CSV files")
	cmd.Flags().StringVar(&modelPath, "model", "models/model.json", "output path for the trained model")
	cmd.Flags().IntVar(&epochs, "epochs", 1000, "training epochs")
	cmd.Flags().Float64Var(&lr, "lr", 0.01, "learning rate")

	return cmd
}

func loadTrainingData(dir string) ([]map[string]float64, []float64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var samples []map[string]float64
	var labels []float64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		rows, labelCol, err := readCSVRows(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, row := range rows {
			sample := make(map[string]float64, len(featureColumns))
			for _, col := range featureColumns {
				sample[col] = row[col]
			}
			samples = append(samples, sample)
			labels = append(labels, row[labelCol])
		}
	}
	return samples, labels, nil
}

func readCSVRows(f *os.File) ([]map[string]float64, string, error) {
	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, "", err
	}

	var rows []map[string]float64
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", err
		}
		row := make(map[string]float64, len(header))
		for i, col := range header {
			if i >= len(record) {
				continue
			}
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				continue
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	return rows, "label", nil
}

func saveModel(model *mlmodel.Model, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(model)
}

// loadModel reads a model previously written by saveModel. Callers fall
// back to mlmodel.Default() when path is empty.
func loadModel(path string) (*mlmodel.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var model mlmodel.Model
	if err := json.NewDecoder(f).Decode(&model); err != nil {
		return nil, err
	}
	return &model, nil
}
