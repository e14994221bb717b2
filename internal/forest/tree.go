package forest

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"
)

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	leaf      bool
	value     float64 // leaf mean (regression) or class code (classification)
}

// tree is a binary CART tree stored as a flat node slice; nodes[0] is the root.
type tree struct {
	nodes []node
}

func (t *tree) predict(row []float64) float64 {
	n := &t.nodes[0]
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n.value
}

// builder grows one tree. Exactly one of yReg and yCls is set.
type builder struct {
	x           [][]float64
	yReg        []float64
	yCls        []int
	classes     int
	maxFeatures int
	minLeaf     int
	rng         *rand.Rand

	sorted []int
	counts []float64
}

type split struct {
	feature   int
	threshold float64
	cost      float64
}

func (b *builder) grow(idx []int) *tree {
	t := &tree{}
	b.node(t, idx)
	return t
}

func (b *builder) node(t *tree, idx []int) int {
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{})

	if b.pure(idx) {
		t.nodes[id] = node{leaf: true, value: b.leafValue(idx)}
		return id
	}
	s, ok := b.bestSplit(idx)
	if !ok {
		t.nodes[id] = node{leaf: true, value: b.leafValue(idx)}
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.node(t, left)
	r := b.node(t, right)
	t.nodes[id] = node{feature: s.feature, threshold: s.threshold, left: l, right: r}
	return id
}

func (b *builder) pure(idx []int) bool {
	for _, i := range idx[1:] {
		if b.yCls != nil && b.yCls[i] != b.yCls[idx[0]] {
			return false
		}
		if b.yReg != nil && b.yReg[i] != b.yReg[idx[0]] {
			return false
		}
	}
	return true
}

func (b *builder) leafValue(idx []int) float64 {
	if b.yReg != nil {
		ys := make([]float64, len(idx))
		for k, i := range idx {
			ys[k] = b.yReg[i]
		}
		return stat.Mean(ys, nil)
	}
	counts := make([]int, b.classes)
	for _, i := range idx {
		counts[b.yCls[i]]++
	}
	return float64(argmax(counts))
}

// bestSplit visits features in random order until at least maxFeatures have
// been examined and one of them yields a valid split.
func (b *builder) bestSplit(idx []int) (split, bool) {
	if len(idx) < 2*b.minLeaf {
		return split{}, false
	}

	nFeatures := len(b.x[idx[0]])
	best := split{}
	found := false
	for visited, f := range b.rng.Perm(nFeatures) {
		if visited >= b.maxFeatures && found {
			break
		}
		if s, ok := b.scanFeature(idx, f); ok && (!found || s.cost < best.cost) {
			best, found = s, true
		}
	}
	return best, found
}

func (b *builder) scanFeature(idx []int, f int) (split, bool) {
	b.sorted = append(b.sorted[:0], idx...)
	slices.SortFunc(b.sorted, func(i, j int) int {
		return cmp.Compare(b.x[i][f], b.x[j][f])
	})
	if b.yReg != nil {
		return b.scanRegression(f)
	}
	return b.scanClassification(f)
}

// scanRegression minimises the summed squared error of both children.
func (b *builder) scanRegression(f int) (split, bool) {
	var totalSum, totalSq float64
	for _, i := range b.sorted {
		totalSum += b.yReg[i]
		totalSq += b.yReg[i] * b.yReg[i]
	}

	best := split{feature: f}
	found := false
	var leftSum, leftSq float64
	n := len(b.sorted)
	for k := 0; k < n-1; k++ {
		y := b.yReg[b.sorted[k]]
		leftSum += y
		leftSq += y * y

		nl, nr := float64(k+1), float64(n-k-1)
		if !b.candidate(f, k) {
			continue
		}
		rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
		cost := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
		if !found || cost < best.cost {
			best.cost = cost
			best.threshold = b.threshold(f, k)
			found = true
		}
	}
	return best, found
}

// scanClassification minimises n*gini summed over both children.
func (b *builder) scanClassification(f int) (split, bool) {
	if cap(b.counts) < 2*b.classes {
		b.counts = make([]float64, 2*b.classes)
	}
	left := b.counts[:b.classes]
	right := b.counts[b.classes : 2*b.classes]
	clear(left)
	clear(right)
	for _, i := range b.sorted {
		right[b.yCls[i]]++
	}

	best := split{feature: f}
	found := false
	n := len(b.sorted)
	for k := 0; k < n-1; k++ {
		c := b.yCls[b.sorted[k]]
		left[c]++
		right[c]--

		if !b.candidate(f, k) {
			continue
		}
		cost := weightedGini(left, float64(k+1)) + weightedGini(right, float64(n-k-1))
		if !found || cost < best.cost {
			best.cost = cost
			best.threshold = b.threshold(f, k)
			found = true
		}
	}
	return best, found
}

// candidate reports whether a split between sorted positions k and k+1 is
// allowed: the values differ and both children hold at least minLeaf rows.
func (b *builder) candidate(f, k int) bool {
	n := len(b.sorted)
	if k+1 < b.minLeaf || n-k-1 < b.minLeaf {
		return false
	}
	return b.x[b.sorted[k]][f] < b.x[b.sorted[k+1]][f]
}

func (b *builder) threshold(f, k int) float64 {
	lo, hi := b.x[b.sorted[k]][f], b.x[b.sorted[k+1]][f]
	mid := lo + (hi-lo)/2
	if mid >= hi {
		mid = lo
	}
	return mid
}

func weightedGini(counts []float64, n float64) float64 {
	var sq float64
	for _, c := range counts {
		sq += c * c
	}
	return n - sq/n
}

// argmax returns the lowest index holding the maximum.
func argmax(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}
