// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// A histogram bins samples by allele dosage at one marker: entry k is the
// weight of samples carrying exactly k copies of the alternate allele, for
// k in 0..ploidy. Input histograms hold integer counts; after
// normalization the entries are real-valued and sum to the number of
// simulated samples.
type histogram []float64

func newHistogram(ploidy int) histogram {
	return make(histogram, ploidy+1)
}

func (h histogram) sum() float64 {
	var sum float64
	for _, v := range h {
		sum += v
	}
	return sum
}

// normalize scales the histogram in place so that it sums to nsamples.
// The caller must not pass an all-zero histogram.
func (h histogram) normalize(nsamples int) {
	sum := h.sum()
	for k, v := range h {
		h[k] = float64(nsamples) * v / sum
	}
}

func (h histogram) copy() histogram {
	c := make(histogram, len(h))
	copy(c, h)
	return c
}

// l1 returns the sum of absolute bin-wise differences between two
// histograms of equal length.
func l1(a, b histogram) float64 {
	var sum float64
	for k, v := range a {
		sum += math.Abs(v - b[k])
	}
	return sum
}

// pvalue returns the chi-squared upper-tail probability of observing the
// fitted histogram under the target one. Empty target bins are excluded;
// with fewer than two populated bins the fit is trivially perfect.
func pvalue(target, fitted histogram) float64 {
	var x2 float64
	bins := 0
	for k, exp := range target {
		if exp == 0 {
			continue
		}
		d := fitted[k] - exp
		x2 += d * d / exp
		bins++
	}
	if bins < 2 {
		return 1
	}
	chisquared := distuv.ChiSquared{K: float64(bins - 1), Src: rand.NewSource(rand.Uint64())}
	return chisquared.Survival(x2)
}
