// Package model implements the gradient-boosted regression trees trained by
// the pipeline, together with their hyperparameters and persistence.
package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"rul-pipeline/internal/common/errors"
)

// Regressor is a supervised model predicting a continuous target.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Node is one node of a flattened regression tree. Rows with
// x[Feature] < Threshold go Left.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Weight    float64
}

// Tree is a regression tree stored as a node slice rooted at index 0.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Weight
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// GBRegressor is a second-order gradient-boosted tree ensemble in the style of
// XGBoost's gbtree booster with exact greedy split finding.
type GBRegressor struct {
	Params       Params
	BaseScore    float64
	Trees        []Tree
	NumFeatures  int
	FeatureNames []string
}

// Option configures a GBRegressor.
type Option func(*GBRegressor)

// WithFeatureNames records the column names behind each feature index.
func WithFeatureNames(names []string) Option {
	return func(m *GBRegressor) { m.FeatureNames = append([]string(nil), names...) }
}

// NewGBRegressor validates params and returns an untrained model.
func NewGBRegressor(params Params, opts ...Option) (*GBRegressor, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.TrainingError("invalid hyperparameters", err)
	}
	m := &GBRegressor{Params: params}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Fit trains the ensemble. Malformed input (empty, ragged, mismatched lengths,
// NaN or Inf anywhere) fails with a TrainingError and leaves the model untouched.
func (m *GBRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkInputs(X, y); err != nil {
		return err
	}

	n, p := len(X), len(X[0])
	if m.FeatureNames != nil && len(m.FeatureNames) != p {
		return errors.TrainingError(fmt.Sprintf("%d feature names for %d features", len(m.FeatureNames), p), nil)
	}

	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	rnd := rand.New(rand.NewSource(m.Params.RandomState))
	b := &builder{params: m.Params, X: X, grad: grad, hess: hess}

	trees := make([]Tree, 0, m.Params.NEstimators)
	for round := 0; round < m.Params.NEstimators; round++ {
		m.gradients(y, pred, grad, hess)

		rows := sampleRows(rnd, n, m.Params.Subsample)
		b.features = sampleFeatures(rnd, p, m.Params.ColsampleBytree)

		tree := b.build(rows)
		for i := range tree.Nodes {
			if tree.Nodes[i].Leaf {
				tree.Nodes[i].Weight *= m.Params.LearningRate
			}
		}
		for i := 0; i < n; i++ {
			pred[i] += tree.predict(X[i])
		}
		trees = append(trees, tree)
	}

	for _, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.TrainingError("training diverged to non-finite predictions", nil)
		}
	}

	m.BaseScore = base
	m.Trees = trees
	m.NumFeatures = p
	return nil
}

// Predict scores each row of X.
func (m *GBRegressor) Predict(X [][]float64) ([]float64, error) {
	if m.Trees == nil {
		return nil, fmt.Errorf("model is not trained")
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != m.NumFeatures {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), m.NumFeatures)
		}
		v := m.BaseScore
		for t := range m.Trees {
			v += m.Trees[t].predict(row)
		}
		out[i] = v
	}
	return out, nil
}

// gradients fills first and second derivatives of the objective at pred.
func (m *GBRegressor) gradients(y, pred, grad, hess []float64) {
	switch m.Params.Objective {
	case ObjectivePseudoHuberError:
		// slope 1
		for i := range y {
			r := pred[i] - y[i]
			s := math.Sqrt(1 + r*r)
			grad[i] = r / s
			hess[i] = 1 / (s * s * s)
		}
	default:
		for i := range y {
			grad[i] = pred[i] - y[i]
			hess[i] = 1
		}
	}
}

func checkInputs(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return errors.TrainingError("empty training features", nil)
	}
	if len(X) != len(y) {
		return errors.TrainingError(fmt.Sprintf("feature rows (%d) and target rows (%d) differ", len(X), len(y)), nil)
	}
	p := len(X[0])
	if p == 0 {
		return errors.TrainingError("training features have no columns", nil)
	}
	for i, row := range X {
		if len(row) != p {
			return errors.TrainingError(fmt.Sprintf("row %d has %d features, want %d", i, len(row), p), nil)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.TrainingError(fmt.Sprintf("non-finite feature value at row %d column %d", i, j), nil)
			}
		}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.TrainingError(fmt.Sprintf("non-finite target value at row %d", i), nil)
		}
	}
	return nil
}

func sampleRows(rnd *rand.Rand, n int, ratio float64) []int {
	if ratio >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := int(math.Max(1, math.Round(ratio*float64(n))))
	rows := rnd.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

func sampleFeatures(rnd *rand.Rand, p int, ratio float64) []int {
	if ratio >= 1 {
		feats := make([]int, p)
		for j := range feats {
			feats[j] = j
		}
		return feats
	}
	k := int(math.Max(1, math.Round(ratio*float64(p))))
	feats := rnd.Perm(p)[:k]
	sort.Ints(feats)
	return feats
}

// builder grows one tree over the current gradients.
type builder struct {
	params   Params
	X        [][]float64
	grad     []float64
	hess     []float64
	features []int
	nodes    []Node
}

func (b *builder) build(rows []int) Tree {
	b.nodes = nil
	b.grow(rows, 0)
	return Tree{Nodes: b.nodes}
}

func (b *builder) grow(rows []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	var G, H float64
	for _, r := range rows {
		G += b.grad[r]
		H += b.hess[r]
	}

	if (b.params.MaxDepth == 0 || depth < b.params.MaxDepth) && len(rows) > 1 {
		if s, ok := b.bestSplit(rows, G, H); ok {
			var left, right []int
			for _, r := range rows {
				if b.X[r][s.feature] < s.threshold {
					left = append(left, r)
				} else {
					right = append(right, r)
				}
			}
			// Adjacent floats can round the midpoint onto one side.
			if len(left) > 0 && len(right) > 0 {
				l := b.grow(left, depth+1)
				rt := b.grow(right, depth+1)
				b.nodes[idx] = Node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: rt}
				return idx
			}
		}
	}

	b.nodes[idx] = Node{Leaf: true, Weight: b.leafWeight(G, H)}
	return idx
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) bestSplit(rows []int, G, H float64) (split, bool) {
	best := split{gain: 0}
	found := false
	parent := b.score(G, H)

	sorted := make([]int, len(rows))
	for _, f := range b.features {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })

		var GL, HL float64
		for k := 0; k < len(sorted)-1; k++ {
			r := sorted[k]
			GL += b.grad[r]
			HL += b.hess[r]

			cur, next := b.X[r][f], b.X[sorted[k+1]][f]
			if cur == next {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < b.params.MinChildWeight || HR < b.params.MinChildWeight {
				continue
			}

			gain := 0.5*(b.score(GL, HL)+b.score(GR, HR)-parent) - b.params.Gamma
			if gain > best.gain {
				best = split{feature: f, threshold: (cur + next) / 2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

// score is the structure score G^2/(H+lambda) with L1 soft-thresholding of G.
func (b *builder) score(G, H float64) float64 {
	denom := H + b.params.RegLambda
	if denom == 0 {
		return 0
	}
	g := thresholdL1(G, b.params.RegAlpha)
	return g * g / denom
}

func (b *builder) leafWeight(G, H float64) float64 {
	denom := H + b.params.RegLambda
	if denom == 0 {
		return 0
	}
	return -thresholdL1(G, b.params.RegAlpha) / denom
}

func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}
