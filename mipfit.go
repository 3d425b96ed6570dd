// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"fmt"
	"math"

	"github.com/willf/bitset"

	"github.com/computationalgenomics/simba-hap/mip"
)

// mipFitter finds the exact L1-minimizing founder assignment per marker.
//
// The linearization follows the histogram structure: binary founder
// alleles f_j induce per-sample dosage sums σ_s, indicator columns i_s,k
// select each sample's dosage bin via slack columns e_s,k ≥ |σ_s − k|
// forced to zero on the selected bin, dosage counts d_k collect the
// indicators, and z_k ≥ |d_k − target_k| is minimized.
//
// Everything except the target-linking rows is independent of the marker,
// so the model is built once and reused: Fit adds the 2(p+1) linking rows,
// solves, and erases them again.
type mipFitter struct {
	hm     *haplotypeMap
	ploidy int
	model  *mip.Model

	zs     []mip.Col // [dosage] objective slack
	counts []mip.Col // [dosage] simulated dosage count
	alts   []mip.Col // [founder]
	linked []mip.Row // current marker's rows, erased after each solve
}

func newMIPFitter(hm *haplotypeMap, ploidy, nfounders int) *mipFitter {
	f := &mipFitter{
		hm:     hm,
		ploidy: ploidy,
		model:  mip.NewModel(),
	}
	m := f.model
	nsamples := hm.samples()
	inf := math.Inf(1)

	f.zs = make([]mip.Col, ploidy+1)
	for k := range f.zs {
		f.zs[k] = m.AddCol(mip.Continuous, 0, inf)
	}
	f.counts = make([]mip.Col, ploidy+1)
	for k := range f.counts {
		f.counts[k] = m.AddCol(mip.Integer, 0, inf)
	}
	errs := make([][]mip.Col, nsamples)   // [sample][dosage]
	indics := make([][]mip.Col, nsamples) // [sample][dosage]
	for s := range errs {
		errs[s] = make([]mip.Col, ploidy+1)
		indics[s] = make([]mip.Col, ploidy+1)
		for k := 0; k <= ploidy; k++ {
			errs[s][k] = m.AddCol(mip.Continuous, 0, inf)
			indics[s][k] = m.AddCol(mip.Integer, 0, inf)
		}
	}
	f.alts = make([]mip.Col, nfounders)
	for j := range f.alts {
		f.alts[j] = m.AddCol(mip.Integer, 0, 1)
	}

	// d_k = Σ_s i_s,k
	for k := 0; k <= ploidy; k++ {
		expr := mip.NewExpr().Add(1, f.counts[k])
		for s := 0; s < nsamples; s++ {
			expr.Add(-1, indics[s][k])
		}
		m.AddRow(expr, 0, 0)
	}
	// Σ_k i_s,k = 1
	for s := 0; s < nsamples; s++ {
		expr := mip.NewExpr()
		for k := 0; k <= ploidy; k++ {
			expr.Add(1, indics[s][k])
		}
		m.AddRow(expr, 1, 1)
	}
	// e_s,k ≥ |σ_s − k|, and e_s,k ≤ p·(1 − i_s,k) so that i_s,k = 1
	// forces σ_s = k.
	for s := 0; s < nsamples; s++ {
		for k := 0; k <= ploidy; k++ {
			ge := mip.NewExpr().Add(1, errs[s][k])
			le := mip.NewExpr().Add(1, errs[s][k])
			for _, founder := range hm.slots[s] {
				ge.Add(1, f.alts[founder])
				le.Add(-1, f.alts[founder])
			}
			m.AddRow(ge, float64(k), inf)
			m.AddRow(le, float64(-k), inf)

			link := mip.NewExpr().Add(1, errs[s][k]).Add(float64(ploidy), indics[s][k])
			m.AddRow(link, math.Inf(-1), float64(ploidy))
		}
	}

	objective := mip.NewExpr()
	for _, z := range f.zs {
		objective.Add(1, z)
	}
	m.SetObjective(objective)
	return f
}

func (f *mipFitter) Fit(alts *bitset.BitSet, target histogram) (float64, error) {
	// |d_k − target_k| ≤ z_k links this marker's target in; the rows are
	// erased again below so the next marker starts from the permanent
	// model only.
	for k := 0; k <= f.ploidy; k++ {
		hi := mip.NewExpr().Add(1, f.counts[k]).Add(-1, f.zs[k])
		lo := mip.NewExpr().Add(1, f.counts[k]).Add(1, f.zs[k])
		f.linked = append(f.linked,
			f.model.AddRow(hi, math.Inf(-1), target[k]),
			f.model.AddRow(lo, target[k], math.Inf(1)))
	}
	defer func() {
		for _, row := range f.linked {
			f.model.EraseRow(row)
		}
		f.linked = f.linked[:0]
	}()

	sol, err := f.model.Solve()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, d := range f.counts {
		total += int(math.Round(sol.Value(d)))
	}
	if total != f.hm.samples() {
		return 0, fmt.Errorf("simulated dosages sum to %d, want %d samples", total, f.hm.samples())
	}

	alts.ClearAll()
	for j, col := range f.alts {
		if math.Round(sol.Value(col)) == 1 {
			alts.Set(uint(j))
		}
	}
	return sol.Objective, nil
}
