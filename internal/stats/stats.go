// Package stats implements the descriptive and correlation statistics used to
// score evaluator predictions against gold judgments.
//
// Correlation functions return NaN when the input cannot be correlated
// (empty, mismatched lengths, zero variance). Callers that need an explicit
// result should wrap the value with Of.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of xs, or NaN for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StandardDeviation returns the population standard deviation of xs
// (divides by N), or NaN for empty input.
func StandardDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	avg := Mean(xs)
	squared := make([]float64, len(xs))
	for i, x := range xs {
		d := x - avg
		squared[i] = d * d
	}
	return math.Sqrt(Mean(squared))
}

// Pearson returns the Pearson correlation coefficient of x and y.
// It is NaN when the lengths differ, the input is empty, or either series is
// constant.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return math.NaN()
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var num, sumXX, sumYY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		sumXX += dx * dx
		sumYY += dy * dy
	}

	den := math.Sqrt(sumXX * sumYY)
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// Spearman returns the Spearman rank correlation of x and y: the Pearson
// correlation of their tie-averaged ranks.
func Spearman(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return math.NaN()
	}
	return Pearson(Ranks(x), Ranks(y))
}

// Ranks assigns 1-based ranks by ascending value. Tied values share the mean
// of the ranks they jointly occupy, so the ranks always sum to N(N+1)/2.
func Ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return xs[idx[a]] < xs[idx[b]]
	})

	ranks := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && xs[idx[j]] == xs[idx[i]] {
			j++
		}
		// positions i..j-1 hold ranks i+1..j
		rank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = rank
		}
		i = j
	}
	return ranks
}
