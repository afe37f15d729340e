package allocate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// HRPWeights computes hierarchical-risk-parity weights from a covariance and
// correlation matrix over the same ordered asset set. The result is aligned
// to the input order, non-negative, and sums to 1.
//
// Pipeline: correlation distance, Ward-linkage agglomerative clustering,
// quasi-diagonal leaf order, then recursive bisection splitting risk budget
// by inverse average cluster variance.
func HRPWeights(cov, corr *mat.SymDense) ([]float64, error) {
	n := corr.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("empty correlation matrix")
	}
	if cov.SymmetricDim() != n {
		return nil, fmt.Errorf("covariance is %dx%d but correlation is %dx%d",
			cov.SymmetricDim(), cov.SymmetricDim(), n, n)
	}
	if n == 1 {
		return []float64{1}, nil
	}

	dist := correlationDistance(corr)
	order := quasiDiagonalOrder(wardLinkage(dist))
	weights := recursiveBisection(cov, order)

	sum := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("HRP produced invalid weight %.6f", w)
		}
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("HRP weights sum to %.6f", sum)
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, nil
}

// correlationDistance is d[i][j] = sqrt((1 - corr[i][j]) / 2), diagonal zero.
func correlationDistance(corr *mat.SymDense) *mat.SymDense {
	n := corr.SymmetricDim()
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := math.Max(-1, math.Min(1, corr.At(i, j)))
			dist.SetSym(i, j, math.Sqrt((1-c)/2))
		}
	}
	return dist
}

// dendroNode is one node of the clustering tree. Leaves have left == right == -1.
type dendroNode struct {
	left, right int // child node indices, or -1 for leaves
	leaf        int // asset index for leaves, -1 otherwise
	size        int
}

// wardLinkage performs agglomerative clustering with Ward linkage via the
// Lance-Williams update, returning the dendrogram with the root last.
func wardLinkage(dist *mat.SymDense) []dendroNode {
	n := dist.SymmetricDim()

	nodes := make([]dendroNode, 0, 2*n-1)
	for i := 0; i < n; i++ {
		nodes = append(nodes, dendroNode{left: -1, right: -1, leaf: i, size: 1})
	}

	// Squared distances between active clusters, keyed by node index.
	active := make(map[int]bool, n)
	d2 := make(map[[2]int]float64)
	for i := 0; i < n; i++ {
		active[i] = true
		for j := i + 1; j < n; j++ {
			v := dist.At(i, j)
			d2[pairKey(i, j)] = v * v
		}
	}

	for len(nodes) < 2*n-1 {
		// Find the closest active pair.
		bestI, bestJ := -1, -1
		best := math.Inf(1)
		for i := range active {
			for j := range active {
				if i >= j {
					continue
				}
				if v := d2[pairKey(i, j)]; v < best {
					best, bestI, bestJ = v, i, j
				}
			}
		}

		merged := dendroNode{
			left:  bestI,
			right: bestJ,
			leaf:  -1,
			size:  nodes[bestI].size + nodes[bestJ].size,
		}
		mergedIdx := len(nodes)
		nodes = append(nodes, merged)

		ni := float64(nodes[bestI].size)
		nj := float64(nodes[bestJ].size)
		dij := d2[pairKey(bestI, bestJ)]

		delete(active, bestI)
		delete(active, bestJ)

		// Ward update for every remaining cluster.
		for k := range active {
			nk := float64(nodes[k].size)
			dik := d2[pairKey(bestI, k)]
			djk := d2[pairKey(bestJ, k)]
			d2[pairKey(mergedIdx, k)] = ((ni+nk)*dik + (nj+nk)*djk - nk*dij) / (ni + nj + nk)
		}
		active[mergedIdx] = true
	}

	return nodes
}

func pairKey(i, j int) [2]int {
	if i < j {
		return [2]int{i, j}
	}
	return [2]int{j, i}
}

// quasiDiagonalOrder extracts the leaf order by in-order traversal of the
// dendrogram, placing correlated assets adjacently.
func quasiDiagonalOrder(nodes []dendroNode) []int {
	var order []int
	var walk func(idx int)
	walk = func(idx int) {
		node := nodes[idx]
		if node.leaf >= 0 {
			order = append(order, node.leaf)
			return
		}
		walk(node.left)
		walk(node.right)
	}
	walk(len(nodes) - 1)
	return order
}

// recursiveBisection allocates weight down the leaf order. Each cluster is
// split in half by position; the split factor is one minus the left half's
// share of combined average variance, so the calmer half receives more.
func recursiveBisection(cov *mat.SymDense, order []int) []float64 {
	n := cov.SymmetricDim()
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}

	var split func(cluster []int)
	split = func(cluster []int) {
		if len(cluster) <= 1 {
			return
		}
		mid := len(cluster) / 2
		left, right := cluster[:mid], cluster[mid:]

		varLeft := avgVariance(cov, left)
		varRight := avgVariance(cov, right)

		alpha := 0.5
		if varLeft+varRight > 0 {
			alpha = 1 - varLeft/(varLeft+varRight)
		}

		for _, i := range left {
			weights[i] *= alpha
		}
		for _, i := range right {
			weights[i] *= 1 - alpha
		}

		split(left)
		split(right)
	}
	split(order)

	return weights
}

// avgVariance is the mean of the covariance diagonal over a cluster.
func avgVariance(cov *mat.SymDense, cluster []int) float64 {
	if len(cluster) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range cluster {
		sum += cov.At(i, i)
	}
	return sum / float64(len(cluster))
}
