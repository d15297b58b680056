package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/analysis/mlmodel"
)

func TestLoadTrainingDataParsesCSVDir(t *testing.T) {
	dir := t.TempDir()
	content := "rsi_centered,vwap_ext,volume_ratio,atr_pct,pattern_bull,pattern_bear,label\n" +
		"0.1,0.02,1.5,0.01,1,0,1\n" +
		"-0.2,-0.01,0.8,0.02,0,1,0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.csv"), []byte(content), 0o644))

	samples, labels, err := loadTrainingData(dir)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.Equal(t, []float64{1, 0}, labels)
	require.Equal(t, 1.5, samples[0]["volume_ratio"])
}

func TestLoadTrainingDataMissingDir(t *testing.T) {
	_, _, err := loadTrainingData(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestSaveAndLoadModelRoundTrips(t *testing.T) {
	model := mlmodel.Default()
	model.Bias = -0.42
	path := filepath.Join(t.TempDir(), "models", "model.json")

	require.NoError(t, saveModel(model, path))

	loaded, err := loadModel(path)
	require.NoError(t, err)
	require.Equal(t, model.Bias, loaded.Bias)
	require.Equal(t, model.Weights["rsi_centered"], loaded.Weights["rsi_centered"])
}
