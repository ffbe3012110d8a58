// Package iforest implements the Isolation Forest algorithm for anomaly detection.
//
// A fitted IsolationForest is safe for concurrent queries. Fit builds the new
// tree set off to the side and swaps it in atomically, so queries running
// during a re-fit see either the old ensemble or the new one, never a mix.
package iforest

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hed1ad/goguardml/pkg/detectors"
)

var _ detectors.Detector = (*IsolationForest)(nil)

// Observer receives fit and detection events, e.g. for metrics.
type Observer interface {
	ObserveFit(trees, sampleSize int, elapsed time.Duration)
	ObserveResult(r detectors.Result)
}

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	// fitMu serialises Fit and owns rng.
	fitMu sync.Mutex
	// mu guards model.
	mu sync.RWMutex

	// Configuration
	nTrees     int
	sampleSize int
	threshold  float64
	maxDepth   int // 0 derives ceil(log2(effective sample size)) per fit
	rng        *xorshift32

	logger   *slog.Logger
	observer Observer

	model *model
}

// model is an immutable fitted ensemble.
type model struct {
	trees     []*iTree
	nFeatures int
	// sampleSize is the configured sample size and norm its c(n), the
	// score normaliser.
	sampleSize int
	norm       float64
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the bootstrap sample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithThreshold sets the score at or above which a sample is an anomaly.
func WithThreshold(t float64) Option {
	return func(f *IsolationForest) {
		f.threshold = t
	}
}

// WithMaxDepth caps tree height. Zero keeps the default of
// ceil(log2(sampleSize)).
func WithMaxDepth(d int) Option {
	return func(f *IsolationForest) {
		f.maxDepth = d
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.rng = newXorshift32(seed)
	}
}

// WithConfig applies every field of cfg.
func WithConfig(cfg detectors.Config) Option {
	return func(f *IsolationForest) {
		f.nTrees = cfg.NumTrees
		f.sampleSize = cfg.SampleSize
		f.threshold = cfg.Threshold
		f.maxDepth = cfg.MaxDepth
		if cfg.Seed != nil {
			f.rng = newXorshift32(*cfg.Seed)
		}
	}
}

// WithLogger sets the logger used for fit progress.
func WithLogger(l *slog.Logger) Option {
	return func(f *IsolationForest) {
		f.logger = l
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(f *IsolationForest) {
		f.observer = o
	}
}

// New creates a new IsolationForest with the given options. Without WithSeed
// the random source is seeded from the clock.
func New(opts ...Option) *IsolationForest {
	def := detectors.DefaultConfig()
	f := &IsolationForest{
		nTrees:     def.NumTrees,
		sampleSize: def.SampleSize,
		threshold:  def.Threshold,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.nTrees <= 0 {
		f.nTrees = def.NumTrees
	}
	if f.sampleSize <= 0 {
		f.sampleSize = def.SampleSize
	}
	if f.maxDepth < 0 {
		f.maxDepth = 0
	}
	if f.rng == nil {
		f.rng = newClockSeeded()
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}

	return f
}

// Fit trains the Isolation Forest on the provided data. Every row must have
// the same, non-zero width. A successful Fit replaces any previous ensemble.
func (f *IsolationForest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return detectors.ErrEmptyDataset
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures == 0 {
		return fmt.Errorf("%w: rows have no features", detectors.ErrDimensionMismatch)
	}
	for i, row := range data {
		if len(row) != nFeatures {
			return fmt.Errorf("%w: row %d has %d features, want %d",
				detectors.ErrDimensionMismatch, i, len(row), nFeatures)
		}
	}

	f.fitMu.Lock()
	defer f.fitMu.Unlock()

	start := time.Now()

	sampleSize := min(f.sampleSize, nSamples)
	maxDepth := f.maxDepth
	if maxDepth == 0 {
		maxDepth = int(math.Ceil(math.Log2(float64(sampleSize))))
	}

	f.logger.Debug("fitting isolation forest",
		"trees", f.nTrees,
		"rows", nSamples,
		"features", nFeatures,
		"sample_size", sampleSize,
		"max_depth", maxDepth)

	b := &treeBuilder{rng: f.rng, nFeatures: nFeatures, maxDepth: maxDepth}
	trees := make([]*iTree, f.nTrees)
	sample := make([][]float64, sampleSize)
	deepest := 0
	for i := range trees {
		// Bootstrap: draw with replacement by index.
		for j := range sample {
			sample[j] = data[b.rng.Intn(nSamples)]
		}
		trees[i] = b.build(sample)
		deepest = max(deepest, trees[i].Root.depth())
	}

	m := &model{
		trees:      trees,
		nFeatures:  nFeatures,
		sampleSize: f.sampleSize,
		norm:       normaliser(f.sampleSize),
	}

	f.mu.Lock()
	f.model = m
	f.mu.Unlock()

	elapsed := time.Since(start)
	if f.observer != nil {
		f.observer.ObserveFit(len(trees), sampleSize, elapsed)
	}
	f.logger.Info("isolation forest fitted",
		"trees", len(trees),
		"sample_size", sampleSize,
		"deepest_tree", deepest,
		"elapsed", elapsed)

	return nil
}

// normaliser returns c(sampleSize), or 1 when c is zero (sample size 1) so
// scores stay defined.
func normaliser(sampleSize int) float64 {
	c := AveragePathLength(sampleSize)
	if c <= 0 {
		return 1
	}
	return c
}

func (f *IsolationForest) snapshot() (*model, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.model == nil {
		return nil, detectors.ErrNotFitted
	}
	return f.model, nil
}

// score returns the anomaly score and the mean path length of sample.
func (m *model) score(sample []float64) (float64, float64, error) {
	if len(sample) != m.nFeatures {
		return 0, 0, fmt.Errorf("%w: got %d features, want %d",
			detectors.ErrDimensionMismatch, len(sample), m.nFeatures)
	}

	var totalPath float64
	for _, tree := range m.trees {
		totalPath += pathLength(sample, tree.Root)
	}
	avgPath := totalPath / float64(len(m.trees))

	// Anomaly score: 2^(-avgPath / c(n))
	return math.Pow(2, -avgPath/m.norm), avgPath, nil
}

// Score returns the anomaly score for a single sample, in (0, 1].
func (f *IsolationForest) Score(sample []float64) (float64, error) {
	m, err := f.snapshot()
	if err != nil {
		return 0, err
	}
	s, _, err := m.score(sample)
	return s, err
}

func (f *IsolationForest) detect(m *model, sample []float64, index int) (detectors.Result, error) {
	s, avgPath, err := m.score(sample)
	if err != nil {
		return detectors.Result{}, err
	}
	r := detectors.Result{
		Index:             index,
		AnomalyScore:      s,
		IsAnomaly:         s >= f.threshold,
		Severity:          detectors.SeverityFor(s),
		AveragePathLength: avgPath,
	}
	if f.observer != nil {
		f.observer.ObserveResult(r)
	}
	return r, nil
}

// DetectSingle scores sample and classifies it against the threshold.
func (f *IsolationForest) DetectSingle(sample []float64, index int) (detectors.Result, error) {
	m, err := f.snapshot()
	if err != nil {
		return detectors.Result{}, err
	}
	return f.detect(m, sample, index)
}

// DetectPoints classifies points in order, keeping their indices. The whole
// batch is scored against one ensemble even if Fit runs concurrently.
func (f *IsolationForest) DetectPoints(points []detectors.Point) ([]detectors.Result, error) {
	m, err := f.snapshot()
	if err != nil {
		return nil, err
	}

	results := make([]detectors.Result, len(points))
	for i, p := range points {
		r, err := f.detect(m, p.Features, p.Index)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", p.Index, err)
		}
		results[i] = r
	}
	return results, nil
}

// DetectBatch classifies every row, using 0-based positions as indices.
func (f *IsolationForest) DetectBatch(data [][]float64) ([]detectors.Result, error) {
	return f.DetectPoints(detectors.Points(data))
}

// FitDetect fits on data and then classifies the same rows.
func (f *IsolationForest) FitDetect(data [][]float64) ([]detectors.Result, error) {
	if err := f.Fit(data); err != nil {
		return nil, err
	}
	return f.DetectBatch(data)
}

// AnomalyIndices returns the indices of the rows classified as anomalies.
func (f *IsolationForest) AnomalyIndices(data [][]float64) ([]int, error) {
	results, err := f.DetectBatch(data)
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0)
	for _, r := range results {
		if r.IsAnomaly {
			indices = append(indices, r.Index)
		}
	}
	return indices, nil
}

// TopKAnomalies returns the min(k, len(data)) highest-scoring results, most
// anomalous first. Ties keep input order.
func (f *IsolationForest) TopKAnomalies(data [][]float64, k int) ([]detectors.Result, error) {
	results, err := f.DetectBatch(data)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].AnomalyScore > results[j].AnomalyScore
	})

	k = max(0, min(k, len(results)))
	return results[:k], nil
}

// Fitted reports whether Fit has succeeded at least once.
func (f *IsolationForest) Fitted() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.model != nil
}

// TreeCount returns the number of trees in the fitted ensemble, or 0.
func (f *IsolationForest) TreeCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.model == nil {
		return 0
	}
	return len(f.model.trees)
}

// NumFeatures returns the feature width recorded at fit time, or 0.
func (f *IsolationForest) NumFeatures() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.model == nil {
		return 0
	}
	return f.model.nFeatures
}

// Threshold returns the anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	return f.threshold
}
