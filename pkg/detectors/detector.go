// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

import (
	"errors"
)

var (
	// ErrEmptyDataset is returned when Fit receives no rows.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrNotFitted is returned by any query made before a successful Fit.
	ErrNotFitted = errors.New("detector not fitted")
	// ErrDimensionMismatch is returned when a feature vector width differs
	// from the width recorded at fit time.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Detector is the common interface for all anomaly detection algorithms.
type Detector interface {
	// Fit trains the detector on historical data.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Score returns the anomaly score of a single sample.
	// Scores are in (0, 1] where higher values indicate anomalies.
	Score(sample []float64) (float64, error)

	// DetectSingle scores and classifies one sample under the given index.
	DetectSingle(sample []float64, index int) (Result, error)

	// DetectBatch classifies every row, indexed by position.
	DetectBatch(data [][]float64) ([]Result, error)

	// FitDetect fits on data and classifies the same rows.
	FitDetect(data [][]float64) ([]Result, error)

	// AnomalyIndices returns the indices of rows classified as anomalies.
	AnomalyIndices(data [][]float64) ([]int, error)

	// TopKAnomalies returns up to k results ordered by descending score.
	TopKAnomalies(data [][]float64, k int) ([]Result, error)

	Fitted() bool
	TreeCount() int
}

// Point is a feature vector paired with a caller-supplied index.
type Point struct {
	Index    int
	Features []float64
}

// Points pairs each row with its position.
func Points(data [][]float64) []Point {
	points := make([]Point, len(data))
	for i, row := range data {
		points[i] = Point{Index: i, Features: row}
	}
	return points
}
