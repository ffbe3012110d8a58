package iforest

// iTree represents a single isolation tree.
type iTree struct {
	Root *node
}

// node is a node in the isolation tree. A node is a leaf iff it has no
// children; internal nodes always own exactly two.
//
// Fields are exported for gob.
type node struct {
	// Split parameters (for internal nodes)
	SplitFeature int
	SplitValue   float64

	// Children: Left holds values < SplitValue, Right holds values >= SplitValue.
	Left  *node
	Right *node

	// Size is the number of samples that reached this leaf during construction.
	Size int
}

func leaf(size int) *node {
	return &node{Size: size}
}

func (n *node) isLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// treeBuilder carries the per-fit parameters shared by every recursive call.
type treeBuilder struct {
	rng       *xorshift32
	nFeatures int
	maxDepth  int
}

func (b *treeBuilder) build(sample [][]float64) *iTree {
	return &iTree{Root: b.buildNode(sample, 0)}
}

func (b *treeBuilder) buildNode(data [][]float64, depth int) *node {
	n := len(data)

	if depth >= b.maxDepth || n <= 1 {
		return leaf(n)
	}

	feature := b.rng.Intn(b.nFeatures)

	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}

	// All values identical on this feature: nothing to split.
	if minVal == maxVal {
		return leaf(n)
	}

	splitValue := minVal + b.rng.Float64()*(maxVal-minVal)

	leftData := make([][]float64, 0, n)
	rightData := make([][]float64, 0, n)
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	// Rounding can push splitValue onto a boundary and leave one side empty.
	if len(leftData) == 0 || len(rightData) == 0 {
		return leaf(n)
	}

	return &node{
		SplitFeature: feature,
		SplitValue:   splitValue,
		Left:         b.buildNode(leftData, depth+1),
		Right:        b.buildNode(rightData, depth+1),
	}
}

// pathLength walks sample down the tree and returns the leaf depth plus the
// expected remaining depth c(size) for the points the leaf still holds.
func pathLength(sample []float64, root *node) float64 {
	depth := 0
	n := root
	for !n.isLeaf() {
		if sample[n.SplitFeature] < n.SplitValue {
			n = n.Left
		} else {
			n = n.Right
		}
		depth++
	}
	return float64(depth) + AveragePathLength(n.Size)
}

// depth returns the height of the subtree rooted at n.
func (n *node) depth() int {
	if n.isLeaf() {
		return 0
	}
	return 1 + max(n.Left.depth(), n.Right.depth())
}

// leafSizes sums the sizes of all leaves under n.
func (n *node) leafSizes() int {
	if n.isLeaf() {
		return n.Size
	}
	return n.Left.leafSizes() + n.Right.leafSizes()
}
