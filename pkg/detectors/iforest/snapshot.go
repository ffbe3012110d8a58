package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/hed1ad/goguardml/pkg/detectors"
)

// savedForest is the gob form of a fitted ensemble.
type savedForest struct {
	SampleSize  int
	NumFeatures int
	Trees       []*iTree
}

// Save serializes the fitted ensemble.
func (f *IsolationForest) Save() ([]byte, error) {
	m, err := f.snapshot()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(savedForest{
		SampleSize:  m.sampleSize,
		NumFeatures: m.nFeatures,
		Trees:       m.trees,
	}); err != nil {
		return nil, fmt.Errorf("encode forest: %w", err)
	}
	return buf.Bytes(), nil
}

// Load replaces the ensemble with one produced by Save. Classification keeps
// using this instance's threshold.
func (f *IsolationForest) Load(data []byte) error {
	var s savedForest
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("decode forest: %w", err)
	}
	if len(s.Trees) == 0 {
		return errors.New("decode forest: no trees")
	}
	if s.NumFeatures <= 0 {
		return fmt.Errorf("%w: snapshot has %d features", detectors.ErrDimensionMismatch, s.NumFeatures)
	}
	for i, t := range s.Trees {
		if t == nil || t.Root == nil {
			return fmt.Errorf("decode forest: tree %d is empty", i)
		}
		if err := t.Root.validate(s.NumFeatures); err != nil {
			return fmt.Errorf("decode forest: tree %d: %w", i, err)
		}
	}

	m := &model{
		trees:      s.Trees,
		nFeatures:  s.NumFeatures,
		sampleSize: s.SampleSize,
		norm:       normaliser(s.SampleSize),
	}

	f.fitMu.Lock()
	defer f.fitMu.Unlock()
	f.mu.Lock()
	f.model = m
	f.mu.Unlock()

	return nil
}

// validate checks that every internal node has two children and splits on a
// feature inside [0, nFeatures).
func (n *node) validate(nFeatures int) error {
	if n.isLeaf() {
		return nil
	}
	if n.Left == nil || n.Right == nil {
		return errors.New("internal node with one child")
	}
	if n.SplitFeature < 0 || n.SplitFeature >= nFeatures {
		return fmt.Errorf("split feature %d out of range", n.SplitFeature)
	}
	if err := n.Left.validate(nFeatures); err != nil {
		return err
	}
	return n.Right.validate(nFeatures)
}
