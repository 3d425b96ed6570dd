// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"github.com/willf/bitset"
	"gopkg.in/check.v1"
)

type mipFitSuite struct{}

var _ = check.Suite(&mipFitSuite{})

func (s *mipFitSuite) TestExactFit(c *check.C) {
	hm := &haplotypeMap{founders: 2, slots: [][]int{{0, 0}, {1, 1}}}
	fit := newMIPFitter(hm, 2, 2)
	alts := bitset.New(2)
	d, err := fit.Fit(alts, histogram{1, 0, 1})
	c.Assert(err, check.IsNil)
	c.Check(d < 1e-6, check.Equals, true)
	c.Check(hm.view(alts).histogram(2), check.DeepEquals, histogram{1, 0, 1})
}

func (s *mipFitSuite) TestUnreachableTarget(c *check.C) {
	hm := &haplotypeMap{founders: 1, slots: [][]int{{0, 0}, {0, 0}}}
	fit := newMIPFitter(hm, 2, 1)
	alts := bitset.New(1)
	d, err := fit.Fit(alts, histogram{1, 0, 1})
	c.Assert(err, check.IsNil)
	c.Check(d > 2-1e-6 && d < 2+1e-6, check.Equals, true)
}

// Normalized targets are fractional in general; the solver still has to
// pick the closest reachable integer histogram.
func (s *mipFitSuite) TestFractionalTarget(c *check.C) {
	hm := &haplotypeMap{founders: 2, slots: [][]int{{0, 0}, {1, 1}}}
	fit := newMIPFitter(hm, 2, 2)
	alts := bitset.New(2)
	// Reachable histograms are [2,0,0], [1,0,1], and [0,0,2]; only the
	// middle one is within distance 1 of the target.
	d, err := fit.Fit(alts, histogram{1.5, 0, 1.5})
	c.Assert(err, check.IsNil)
	c.Check(d > 1-1e-6 && d < 1+1e-6, check.Equals, true)
	c.Check(alts.Count(), check.Equals, uint(1))
}

// The exact solver is never beaten by the greedy one on the same inputs.
func (s *mipFitSuite) TestNotWorseThanGreedy(c *check.C) {
	hm := &haplotypeMap{founders: 4, slots: [][]int{{0, 1}, {1, 2}, {2, 3}}}
	exact := newMIPFitter(hm, 2, 4)
	greedy := newGreedyFitter(hm, 2)
	for _, target := range []histogram{
		{1, 1, 1},
		{3, 0, 0},
		{0, 3, 0},
		{1.5, 0, 1.5},
	} {
		alts := bitset.New(4)
		dExact, err := exact.Fit(alts, target)
		c.Assert(err, check.IsNil)
		dGreedy, err := greedy.Fit(alts, target)
		c.Assert(err, check.IsNil)
		c.Check(dExact <= dGreedy+1e-6, check.Equals, true)
	}
	// [1,1,1] in particular is reachable exactly.
	alts := bitset.New(4)
	d, err := exact.Fit(alts, histogram{1, 1, 1})
	c.Assert(err, check.IsNil)
	c.Check(d < 1e-6, check.Equals, true)
}

// Per-marker rows must vanish between solves: a stale target constraint
// would make later markers over-constrained.
func (s *mipFitSuite) TestModelReuse(c *check.C) {
	hm := &haplotypeMap{founders: 2, slots: [][]int{{0, 0}, {1, 1}}}
	fit := newMIPFitter(hm, 2, 2)
	alts := bitset.New(2)

	d, err := fit.Fit(alts, histogram{1, 0, 1})
	c.Assert(err, check.IsNil)
	c.Check(d < 1e-6, check.Equals, true)

	d, err = fit.Fit(alts, histogram{2, 0, 0})
	c.Assert(err, check.IsNil)
	c.Check(d < 1e-6, check.Equals, true)
	c.Check(alts.Count(), check.Equals, uint(0))

	// Both samples are homozygous by construction, so [0,2,0] is off by
	// two from every reachable histogram.
	d, err = fit.Fit(alts, histogram{0, 2, 0})
	c.Assert(err, check.IsNil)
	c.Check(d > 4-1e-6 && d < 4+1e-6, check.Equals, true)
}
