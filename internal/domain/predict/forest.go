package predict

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/okian/mimic/internal/domain/features"
)

const leaf = -1

// node is one tree node. Leaves have Feature == leaf and carry class
// probabilities; internal nodes route x[Feature] <= Threshold to Left.
type node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Proba     []float64 `json:"p,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) proba(x features.Vector) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Proba
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// forest is a bagged ensemble of CART trees.
type forest struct {
	Classes    int                     `json:"classes"`
	Trees      []tree                  `json:"trees"`
	Importance [features.Width]float64 `json:"importance"`
}

// forestConfig holds fitting hyper-parameters. MaxDepth 0 means unlimited.
type forestConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// proba averages the trees' leaf distributions.
func (f *forest) proba(x features.Vector) []float64 {
	out := make([]float64, f.Classes)
	for i := range f.Trees {
		for c, p := range f.Trees[i].proba(x) {
			out[c] += p
		}
	}
	if n := float64(len(f.Trees)); n > 0 {
		for c := range out {
			out[c] /= n
		}
	}
	return out
}

// predict returns the arg-max class; ties go to the lower class index.
func (f *forest) predict(x features.Vector) (int, float64) {
	p := f.proba(x)
	best := 0
	for c := 1; c < len(p); c++ {
		if p[c] > p[best] {
			best = c
		}
	}
	return best, p[best]
}

func fitForest(ctx context.Context, xs []features.Vector, ys []int, classes int, cfg forestConfig) (*forest, error) {
	if cfg.Trees <= 0 {
		cfg.Trees = 1
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible bagging, not security
	f := &forest{Classes: classes, Trees: make([]tree, 0, cfg.Trees)}
	var importance [features.Width]float64

	for t := 0; t < cfg.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := &builder{
			xs:      xs,
			ys:      ys,
			classes: classes,
			cfg:     cfg,
			rng:     rand.New(rand.NewSource(rng.Int63())), //nolint:gosec // reproducible bagging
		}
		sample := make([]int, len(xs))
		for i := range sample {
			sample[i] = b.rng.Intn(len(xs))
		}
		b.grow(sample, 0)
		f.Trees = append(f.Trees, tree{Nodes: b.nodes})

		// Per-tree importances are normalised before averaging.
		var total float64
		for _, v := range b.importance {
			total += v
		}
		if total > 0 {
			for i, v := range b.importance {
				importance[i] += v / total
			}
		}
	}

	var total float64
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			f.Importance[i] = importance[i] / total
		}
	}
	return f, nil
}

type builder struct {
	xs         []features.Vector
	ys         []int
	classes    int
	cfg        forestConfig
	rng        *rand.Rand
	nodes      []node
	importance [features.Width]float64
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, b.classes)
	for _, i := range idx {
		c[b.ys[i]]++
	}
	return c
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

type split struct {
	feature   int
	threshold float64
	impurity  float64 // weighted child impurity
	ok        bool
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	counts := b.counts(idx)
	n := float64(len(idx))
	impurity := gini(counts, n)

	self := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: leaf})

	stop := impurity == 0 ||
		len(idx) < 2*b.cfg.MinLeaf ||
		(b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth)
	var best split
	if !stop {
		best = b.bestSplit(idx)
	}
	if !best.ok {
		proba := make([]float64, b.classes)
		for c := range counts {
			proba[c] = counts[c] / n
		}
		b.nodes[self].Proba = proba
		return self
	}

	b.importance[best.feature] += n*impurity - n*best.impurity

	var left, right []int
	for _, i := range idx {
		if b.xs[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return self
}

// bestSplit inspects sqrt(features) randomly chosen features, continuing past
// that budget only while no valid split has been found.
func (b *builder) bestSplit(idx []int) split {
	mtry := int(math.Sqrt(float64(features.Width)))
	if mtry < 1 {
		mtry = 1
	}

	best := split{impurity: math.Inf(1)}
	sorted := make([]int, len(idx))
	for checked, f := range b.rng.Perm(features.Width) {
		if checked >= mtry && best.ok {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool { return b.xs[sorted[i]][f] < b.xs[sorted[j]][f] })

		left := make([]float64, b.classes)
		right := b.counts(sorted)
		total := float64(len(sorted))
		for k := 0; k < len(sorted)-1; k++ {
			c := b.ys[sorted[k]]
			left[c]++
			right[c]--

			nl := float64(k + 1)
			if k+1 < b.cfg.MinLeaf || len(sorted)-(k+1) < b.cfg.MinLeaf {
				continue
			}
			v, next := b.xs[sorted[k]][f], b.xs[sorted[k+1]][f]
			if v == next {
				continue
			}
			nr := total - nl
			imp := (nl*gini(left, nl) + nr*gini(right, nr)) / total
			if imp < best.impurity {
				th := v + (next-v)/2
				if th >= next {
					th = v
				}
				best = split{feature: f, threshold: th, impurity: imp, ok: true}
			}
		}
	}
	return best
}
