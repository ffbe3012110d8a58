package iforest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTreeInvariants(t *testing.T) {
	tests := []struct {
		name     string
		data     [][]float64
		maxDepth int
	}{
		{name: "gaussian", data: generateTestData(21, 256, 4), maxDepth: 8},
		{name: "shallow", data: generateTestData(22, 256, 4), maxDepth: 2},
		{name: "single feature", data: generateTestData(23, 64, 1), maxDepth: 6},
		{name: "duplicates", data: [][]float64{{1, 2}, {1, 2}, {1, 2}, {3, 2}}, maxDepth: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &treeBuilder{rng: newXorshift32(1), nFeatures: len(tt.data[0]), maxDepth: tt.maxDepth}
			tree := b.build(tt.data)
			require.NotNil(t, tree.Root)

			assert.LessOrEqual(t, tree.Root.depth(), tt.maxDepth)
			assert.Equal(t, len(tt.data), tree.Root.leafSizes())
			assertWellFormed(t, tree.Root, len(tt.data[0]))
		})
	}
}

func TestBuildTreeTerminalCases(t *testing.T) {
	b := &treeBuilder{rng: newXorshift32(1), nFeatures: 2, maxDepth: 8}

	single := b.build([][]float64{{1, 2}})
	assert.True(t, single.Root.isLeaf())
	assert.Equal(t, 1, single.Root.Size)

	// Identical rows cannot be split on any feature.
	same := b.build([][]float64{{4, 4}, {4, 4}, {4, 4}})
	assert.True(t, same.Root.isLeaf())
	assert.Equal(t, 3, same.Root.Size)

	b.maxDepth = 0
	capped := b.build(generateTestData(24, 32, 2))
	assert.True(t, capped.Root.isLeaf())
	assert.Equal(t, 32, capped.Root.Size)
}

func TestBuildTreeSplitsRoutePoints(t *testing.T) {
	data := generateTestData(25, 128, 3)
	b := &treeBuilder{rng: newXorshift32(9), nFeatures: 3, maxDepth: 7}
	tree := b.build(data)

	var check func(n *node, rows [][]float64)
	check = func(n *node, rows [][]float64) {
		if n.isLeaf() {
			assert.Equal(t, len(rows), n.Size)
			return
		}
		var left, right [][]float64
		for _, r := range rows {
			if r[n.SplitFeature] < n.SplitValue {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		assert.NotEmpty(t, left)
		assert.NotEmpty(t, right)
		check(n.Left, left)
		check(n.Right, right)
	}
	check(tree.Root, data)
}

func TestPathLength(t *testing.T) {
	//      x0 < 5
	//     /      \
	//  leaf(1)  x1 < 2
	//           /    \
	//       leaf(4) leaf(1)
	root := &node{
		SplitFeature: 0,
		SplitValue:   5,
		Left:         leaf(1),
		Right: &node{
			SplitFeature: 1,
			SplitValue:   2,
			Left:         leaf(4),
			Right:        leaf(1),
		},
	}

	assert.Equal(t, 1.0, pathLength([]float64{0, 0}, root))
	assert.Equal(t, 2.0, pathLength([]float64{5, 3}, root))
	assert.InDelta(t, 2+AveragePathLength(4), pathLength([]float64{7, 1}, root), 1e-12)
	assert.Equal(t, 0.0, pathLength([]float64{1}, leaf(1)))
}

func assertWellFormed(t *testing.T, n *node, nFeatures int) {
	t.Helper()
	if n.isLeaf() {
		assert.Positive(t, n.Size)
		return
	}
	require.NotNil(t, n.Left)
	require.NotNil(t, n.Right)
	assert.GreaterOrEqual(t, n.SplitFeature, 0)
	assert.Less(t, n.SplitFeature, nFeatures)
	assertWellFormed(t, n.Left, nFeatures)
	assertWellFormed(t, n.Right, nFeatures)
}
