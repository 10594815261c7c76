// Package features assembles per-row feature vectors from table columns and
// standardizes them for training.
package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MetricsInterface defines metrics methods needed by feature assembly
type MetricsInterface interface {
	FeatureVectorsInc(n int)
	FeatureErrorsInc()
}

// Set is an assembled feature matrix with its column names and row labels.
type Set struct {
	Names  []string
	X      [][]float64
	Labels []string
}

// Assemble concatenates the given columns into one vector per row. Rows
// containing NaN cells are rejected: auditing and imputation happen before
// assembly, not here.
func Assemble(matrix [][]float64, labels []string, names []string, metrics MetricsInterface) (*Set, error) {
	if len(matrix) == 0 {
		if metrics != nil {
			metrics.FeatureErrorsInc()
		}
		return nil, fmt.Errorf("features: empty input matrix")
	}
	if len(matrix) != len(labels) {
		if metrics != nil {
			metrics.FeatureErrorsInc()
		}
		return nil, fmt.Errorf("features: %d rows but %d labels", len(matrix), len(labels))
	}

	width := len(names)
	for i, row := range matrix {
		if len(row) != width {
			if metrics != nil {
				metrics.FeatureErrorsInc()
			}
			return nil, fmt.Errorf("features: row %d has %d values, want %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				if metrics != nil {
					metrics.FeatureErrorsInc()
				}
				return nil, fmt.Errorf("features: row %d column %s is not finite", i, names[j])
			}
		}
	}

	if metrics != nil {
		metrics.FeatureVectorsInc(len(matrix))
	}
	return &Set{Names: names, X: matrix, Labels: labels}, nil
}

// StandardScaler centers each column to zero mean and unit variance.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit computes per-column mean and standard deviation.
func (sc *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("features: cannot fit scaler on empty matrix")
	}
	width := len(X[0])
	sc.Mean = make([]float64, width)
	sc.Std = make([]float64, width)

	col := make([]float64, len(X))
	for j := 0; j < width; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		sc.Mean[j] = mean
		sc.Std[j] = std
	}
	return nil
}

// Transform returns a standardized copy of X. Columns with zero spread map
// to zero rather than dividing by zero.
func (sc *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if sc.Mean == nil {
		return nil, fmt.Errorf("features: scaler not fitted")
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(sc.Mean) {
			return nil, fmt.Errorf("features: row %d has %d values, scaler fitted on %d", i, len(row), len(sc.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			if sc.Std[j] == 0 || math.IsNaN(sc.Std[j]) {
				scaled[j] = 0
				continue
			}
			scaled[j] = (v - sc.Mean[j]) / sc.Std[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits the scaler and transforms X in one step.
func (sc *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := sc.Fit(X); err != nil {
		return nil, err
	}
	return sc.Transform(X)
}
