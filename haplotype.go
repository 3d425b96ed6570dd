// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"fmt"
	"math/rand"

	log "github.com/sirupsen/logrus"
	"github.com/willf/bitset"
)

// founderDistribution assigns each of the nfounders founder haplotypes a
// baseline count of one, then spreads the remaining nsamples·ploidy −
// nfounders haplotype slots over the founders uniformly at random. The
// returned counts sum to nsamples·ploidy.
func founderDistribution(nfounders, nsamples, ploidy int, rng *rand.Rand) ([]int, error) {
	slots := nsamples * ploidy
	if nfounders > slots {
		return nil, fmt.Errorf("%d founders exceed the %d haplotype slots available (%d samples × ploidy %d)", nfounders, slots, nsamples, ploidy)
	}
	counts := make([]int, nfounders)
	for j := range counts {
		counts[j] = 1
	}
	for i := 0; i < slots-nfounders; i++ {
		counts[rng.Intn(nfounders)]++
	}
	log.Infof("FOUNDERS DISTRIBUTION: %v", counts)
	return counts, nil
}

// haplotypeMap is the fixed assignment of every (sample, haplotype slot)
// pair to a founder. It is sampled once per run, before any fitting, and
// never modified afterwards: both fitters and the VCF writer read through
// it.
type haplotypeMap struct {
	founders int
	slots    [][]int // [sample][haplotype] -> founder
}

// newHaplotypeMap lays out counts[j] copies of founder j contiguously over
// all nsamples·ploidy slots, shuffles them, and reshapes the result to
// nsamples rows of ploidy slots each.
func newHaplotypeMap(counts []int, nsamples, ploidy int, rng *rand.Rand) *haplotypeMap {
	flat := make([]int, 0, nsamples*ploidy)
	for j, n := range counts {
		for i := 0; i < n; i++ {
			flat = append(flat, j)
		}
	}
	rng.Shuffle(len(flat), func(i, j int) {
		flat[i], flat[j] = flat[j], flat[i]
	})
	hm := &haplotypeMap{founders: len(counts), slots: make([][]int, nsamples)}
	for s := range hm.slots {
		hm.slots[s] = flat[s*ploidy : (s+1)*ploidy]
	}
	log.Infof("HAPLOTYPES MAP: %v", hm.slots)
	return hm
}

func (hm *haplotypeMap) samples() int {
	return len(hm.slots)
}

// view binds the map to one marker's founder alleles. The returned value
// stays valid as long as alts does; mutating bits of alts changes what the
// view reads.
func (hm *haplotypeMap) view(alts *bitset.BitSet) sampleView {
	return sampleView{hm, alts}
}

// sampleView answers "which allele does sample s carry on haplotype slot
// h" by indirection through the haplotype map into one marker's founder
// allele bits. It is never materialized as its own storage.
type sampleView struct {
	hm   *haplotypeMap
	alts *bitset.BitSet
}

func (v sampleView) allele(sample, slot int) byte {
	if v.alts.Test(uint(v.hm.slots[sample][slot])) {
		return '1'
	}
	return '0'
}

func (v sampleView) dosage(sample int) int {
	d := 0
	for _, founder := range v.hm.slots[sample] {
		if v.alts.Test(uint(founder)) {
			d++
		}
	}
	return d
}

// histogram bins every sample of the view by its simulated dosage.
func (v sampleView) histogram(ploidy int) histogram {
	h := newHistogram(ploidy)
	for s := range v.hm.slots {
		h[v.dosage(s)]++
	}
	return h
}
