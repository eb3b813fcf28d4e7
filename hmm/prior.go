package hmm

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// A DirichletMixture is a weighted mixture of Dirichlet densities used
// as a conjugate prior over count vectors.
type DirichletMixture struct {
	Weights []float64
	Alphas  [][]float64
}

// NewDirichlet wraps a single Dirichlet component.
func NewDirichlet(alphas ...float64) DirichletMixture {
	return DirichletMixture{
		Weights: []float64{1},
		Alphas:  [][]float64{alphas},
	}
}

// Dim returns the arity of the mixture's count vectors.
func (dm DirichletMixture) Dim() int {
	if len(dm.Alphas) == 0 {
		return 0
	}
	return len(dm.Alphas[0])
}

// MeanPostP returns the normalised posterior mean probability vector for
// the observed (possibly fractional) counts. Components are reweighted
// by their marginal likelihood of the counts.
func (dm DirichletMixture) MeanPostP(counts []float64) []float64 {
	n := floats.Sum(counts)

	// posterior component responsibilities
	logq := make([]float64, len(dm.Weights))
	for c, alphas := range dm.Alphas {
		a := floats.Sum(alphas)
		lml := lgamma(a) - lgamma(a+n)
		for i, alpha := range alphas {
			lml += lgamma(alpha+counts[i]) - lgamma(alpha)
		}
		logq[c] = math.Log(dm.Weights[c]) + lml
	}
	mx := floats.Max(logq)
	var qsum float64
	for c := range logq {
		logq[c] = math.Exp(logq[c] - mx)
		qsum += logq[c]
	}

	mean := make([]float64, len(counts))
	for c, alphas := range dm.Alphas {
		q := logq[c] / qsum
		a := floats.Sum(alphas)
		for i := range mean {
			mean[i] += q * (counts[i] + alphas[i]) / (n + a)
		}
	}
	if total := floats.Sum(mean); total > 0 {
		floats.Scale(1/total, mean)
	}
	return mean
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// A Prior bundles the five Dirichlet mixtures used when estimating
// profile parameters: match and insert emissions, and the transition
// rows out of the match, insert and delete states.
type Prior struct {
	DmME DirichletMixture // match emissions, arity 4
	DmIE DirichletMixture // insert emissions, arity 4
	DmMT DirichletMixture // match transitions, arity 3
	DmIT DirichletMixture // insert transitions, arity 2
	DmDT DirichletMixture // delete transitions, arity 2
}

// DefaultPrior returns single-component mixtures with light emission
// pseudocounts and transition pseudocounts favouring match extension.
func DefaultPrior() *Prior {
	return &Prior{
		DmME: NewDirichlet(0.1, 0.1, 0.1, 0.1),
		DmIE: NewDirichlet(1, 1, 1, 1),
		DmMT: NewDirichlet(0.7939, 0.0278, 0.0135),
		DmIT: NewDirichlet(0.1551, 0.1331),
		DmDT: NewDirichlet(0.9002, 0.5630),
	}
}
