package classifier

import (
	"math/rand/v2"
	"sort"
)

// Node is one node of a binary regression tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int     `msgpack:"f"`
	Threshold float64 `msgpack:"t"`
	Left      int     `msgpack:"l"`
	Right     int     `msgpack:"r"`
	Value     float64 `msgpack:"v"`
}

// Tree is a flattened binary tree; Nodes[0] is the root
type Tree struct {
	Nodes []Node `msgpack:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// leafValueFunc computes the value stored in a leaf from the rows that reach it
type leafValueFunc func(rows []int) float64

// treeBuilder grows CART trees that minimise the squared error of target.
// For 0/1 targets this yields the same splits as Gini impurity.
type treeBuilder struct {
	X           [][]float64
	target      []float64
	maxDepth    int
	minLeaf     int
	maxFeatures int // 0 or >= dim means every feature is considered
	rng         *rand.Rand
	leafValue   leafValueFunc
	importances []float64 // accumulated squared-error decrease per feature
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func newTreeBuilder(X [][]float64, target []float64, maxDepth, minLeaf, maxFeatures int, rng *rand.Rand, leaf leafValueFunc) *treeBuilder {
	return &treeBuilder{
		X:           X,
		target:      target,
		maxDepth:    maxDepth,
		minLeaf:     minLeaf,
		maxFeatures: maxFeatures,
		rng:         rng,
		leafValue:   leaf,
		importances: make([]float64, len(X[0])),
	}
}

func (b *treeBuilder) build(rows []int) *Tree {
	t := &Tree{}
	b.grow(t, rows, 0)
	return t
}

func (b *treeBuilder) grow(t *Tree, rows []int, depth int) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, Value: b.leafValue(rows)})

	if depth >= b.maxDepth || len(rows) < 2*b.minLeaf {
		return idx
	}

	best, ok := b.bestSplit(rows)
	if !ok {
		return idx
	}

	b.importances[best.feature] += best.gain
	left := b.grow(t, best.left, depth+1)
	right := b.grow(t, best.right, depth+1)
	t.Nodes[idx].Feature = best.feature
	t.Nodes[idx].Threshold = best.threshold
	t.Nodes[idx].Left = left
	t.Nodes[idx].Right = right
	return idx
}

func (b *treeBuilder) candidateFeatures() []int {
	dim := len(b.X[0])
	if b.maxFeatures <= 0 || b.maxFeatures >= dim || b.rng == nil {
		all := make([]int, dim)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(dim)[:b.maxFeatures]
}

func (b *treeBuilder) bestSplit(rows []int) (split, bool) {
	n := float64(len(rows))
	var total, totalSq float64
	for _, r := range rows {
		total += b.target[r]
		totalSq += b.target[r] * b.target[r]
	}
	parentSSE := totalSq - total*total/n
	if parentSSE <= 1e-12 {
		return split{}, false
	}

	best := split{gain: 1e-12}
	found := false
	sorted := make([]int, len(rows))

	for _, f := range b.candidateFeatures() {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})

		var leftSum, leftSq float64
		for i := 0; i < len(sorted)-1; i++ {
			v := b.target[sorted[i]]
			leftSum += v
			leftSq += v * v

			nl := i + 1
			nr := len(sorted) - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			cur, next := b.X[sorted[i]][f], b.X[sorted[i+1]][f]
			if cur == next {
				continue
			}

			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			gain := parentSSE - sse
			if gain > best.gain {
				threshold := cur + (next-cur)/2
				if threshold >= next {
					threshold = cur
				}
				best = split{feature: f, threshold: threshold, gain: gain}
				found = true
			}
		}
	}
	if !found {
		return split{}, false
	}

	for _, r := range rows {
		if b.X[r][best.feature] <= best.threshold {
			best.left = append(best.left, r)
		} else {
			best.right = append(best.right, r)
		}
	}
	return best, true
}

func meanLeaf(target []float64) leafValueFunc {
	return func(rows []int) float64 {
		if len(rows) == 0 {
			return 0
		}
		sum := 0.0
		for _, r := range rows {
			sum += target[r]
		}
		return sum / float64(len(rows))
	}
}

func newRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}
