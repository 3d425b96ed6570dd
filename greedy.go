// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"math"

	"github.com/willf/bitset"
)

// A fitter chooses the founder allele bits for one marker so that the
// dosage histogram induced through the haplotype map approximates the
// target. It writes the chosen bits into alts and returns the achieved L1
// distance.
type fitter interface {
	Fit(alts *bitset.BitSet, target histogram) (float64, error)
}

// greedyFitter approximates the L1-minimizing founder assignment by
// monotone coordinate ascent on the number of alt founders: starting from
// all-reference it keeps setting the one bit that shrinks the distance
// most, breaking ties towards the lowest founder index, and stops as soon
// as no remaining bit improves on the current distance. Bits are never
// cleared again, trading optimality for determinism and speed.
type greedyFitter struct {
	hm     *haplotypeMap
	ploidy int
	dists  []float64
}

func newGreedyFitter(hm *haplotypeMap, ploidy int) *greedyFitter {
	return &greedyFitter{
		hm:     hm,
		ploidy: ploidy,
		dists:  make([]float64, hm.founders),
	}
}

func (f *greedyFitter) Fit(alts *bitset.BitSet, target histogram) (float64, error) {
	alts.ClearAll()
	view := f.hm.view(alts)
	distance := l1(target, view.histogram(f.ploidy))

	for ones := 0; ones < f.hm.founders; ones++ {
		for j := 0; j < f.hm.founders; j++ {
			if alts.Test(uint(j)) {
				f.dists[j] = math.Inf(1)
				continue
			}
			alts.Set(uint(j))
			f.dists[j] = l1(target, view.histogram(f.ploidy))
			alts.Clear(uint(j))
		}

		best, bestDist := 0, math.Inf(1)
		for j, d := range f.dists {
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		if bestDist >= distance {
			break
		}
		distance = bestDist
		alts.Set(uint(best))
	}
	return distance, nil
}
