// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package mip

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	intTol = 1e-6
	objTol = 1e-9
)

// constraint is a row flattened to dense coefficients, shared by all
// branch and bound nodes of one Solve call.
type constraint struct {
	coefs  []float64
	lo, hi float64
}

// Solve minimizes the objective over the live rows and column bounds and
// returns an optimal integral solution.
func (m *Model) Solve() (*Solution, error) {
	n := len(m.types)
	obj := make([]float64, n)
	for col, coef := range m.objective {
		obj[col] = coef
	}
	m.compact()
	cons := make([]constraint, 0, len(m.order))
	for _, id := range m.order {
		r := m.rows[id]
		coefs := make([]float64, n)
		for col, coef := range r.terms {
			coefs[col] = coef
		}
		cons = append(cons, constraint{coefs: coefs, lo: r.lo, hi: r.hi})
	}

	type node struct {
		lower, upper []float64
	}
	stack := []node{{copyFloats(m.lower), copyFloats(m.upper)}}
	best := math.Inf(1)
	var bestX []float64
	maxNodes := m.MaxNodes
	if maxNodes == 0 {
		maxNodes = DefaultMaxNodes
	}

	for nodes := 0; len(stack) > 0; {
		if nodes++; nodes > maxNodes {
			return nil, ErrNodeLimit
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		objv, x, err := relax(obj, cons, nd.lower, nd.upper)
		if err == ErrInfeasible {
			continue
		}
		if err != nil {
			return nil, err
		}
		if objv >= best-objTol {
			continue
		}
		branch := -1
		for j, typ := range m.types {
			if typ == Integer && math.Abs(x[j]-math.Round(x[j])) > intTol {
				branch = j
				break
			}
		}
		if branch < 0 {
			best, bestX = objv, x
			continue
		}
		down := node{copyFloats(nd.lower), copyFloats(nd.upper)}
		down.upper[branch] = math.Floor(x[branch])
		up := node{copyFloats(nd.lower), copyFloats(nd.upper)}
		up.lower[branch] = math.Ceil(x[branch])
		stack = append(stack, up, down)
	}
	if bestX == nil {
		return nil, ErrInfeasible
	}
	return &Solution{Objective: best, values: bestX}, nil
}

// relax solves the LP relaxation under the node's bounds. Columns pinned
// by the bounds are substituted out, the remaining columns are shifted by
// their lower bounds so the standard-form variables are non-negative, and
// equality rows stay equalities. Splitting an equality into a ≤ pair would
// force both slacks to zero and strand the simplex on a degenerate basis;
// only genuinely one-sided rows get a slack column.
func relax(obj []float64, cons []constraint, lower, upper []float64) (float64, []float64, error) {
	free := make([]int, 0, len(obj))
	for j := range obj {
		if upper[j] < lower[j] {
			return 0, nil, ErrInfeasible
		}
		if upper[j] > lower[j] {
			free = append(free, j)
		}
	}
	nfree := len(free)

	var eq, ineq [][]float64
	var beq, h []float64
	for _, cn := range cons {
		shift := dot(cn.coefs, lower)
		row := make([]float64, nfree)
		empty := true
		for jj, j := range free {
			if cn.coefs[j] != 0 {
				row[jj] = cn.coefs[j]
				empty = false
			}
		}
		if empty {
			if shift < cn.lo-objTol || shift > cn.hi+objTol {
				return 0, nil, ErrInfeasible
			}
			continue
		}
		if cn.lo == cn.hi {
			eq = append(eq, row)
			beq = append(beq, cn.hi-shift)
			continue
		}
		if !math.IsInf(cn.hi, 1) {
			ineq = append(ineq, row)
			h = append(h, cn.hi-shift)
		}
		if !math.IsInf(cn.lo, -1) {
			neg := make([]float64, nfree)
			for jj, c := range row {
				neg[jj] = -c
			}
			ineq = append(ineq, neg)
			h = append(h, shift-cn.lo)
		}
	}
	for jj, j := range free {
		if math.IsInf(upper[j], 1) {
			continue
		}
		row := make([]float64, nfree)
		row[jj] = 1
		ineq = append(ineq, row)
		h = append(h, upper[j]-lower[j])
	}

	nrows := len(eq) + len(ineq)
	if nrows == 0 {
		// Nothing constrains the shifted variables beyond y ≥ 0.
		for _, j := range free {
			if obj[j] < 0 {
				return 0, nil, ErrUnbounded
			}
		}
		return dot(obj, lower), copyFloats(lower), nil
	}

	total := nfree + len(ineq)
	data := make([]float64, nrows*total)
	b := make([]float64, 0, nrows)
	for i, row := range eq {
		copy(data[i*total:], row)
	}
	b = append(b, beq...)
	for i, row := range ineq {
		off := (len(eq) + i) * total
		copy(data[off:], row)
		data[off+nfree+i] = 1 // slack
	}
	b = append(b, h...)
	a := mat.NewDense(nrows, total, data)
	c := make([]float64, total)
	for jj, j := range free {
		c[jj] = obj[j]
	}

	optF, optX, err := lp.Simplex(c, a, b, 0, nil)
	switch err {
	case nil:
	case lp.ErrInfeasible:
		return 0, nil, ErrInfeasible
	case lp.ErrUnbounded:
		return 0, nil, ErrUnbounded
	default:
		return 0, nil, err
	}
	x := copyFloats(lower)
	for jj, j := range free {
		x[j] = optX[jj] + lower[j]
	}
	return optF + dot(obj, lower), x, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i, v := range a {
		sum += v * b[i]
	}
	return sum
}

func copyFloats(v []float64) []float64 {
	c := make([]float64, len(v))
	copy(c, v)
	return c
}
