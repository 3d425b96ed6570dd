// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package mip solves small mixed-integer linear programs. A Model holds a
// persistent set of columns and range rows: rows can be added and erased
// between solves while the columns and the remaining rows stay in place,
// so a caller can amortize model construction over many solves.
//
// Solutions are exact: Solve runs branch and bound, bounding each node
// with an LP relaxation computed by gonum's simplex implementation.
package mip

import (
	"errors"
	"math"
)

// Col identifies a column (decision variable) of a Model.
type Col int

// Row identifies a constraint row of a Model.
type Row int

// ColType distinguishes continuous from integer-constrained columns.
type ColType int

const (
	Continuous ColType = iota
	Integer
)

var (
	// ErrInfeasible is returned when no assignment satisfies the rows.
	ErrInfeasible = errors.New("mip: problem is infeasible")
	// ErrUnbounded is returned when the objective can decrease forever.
	ErrUnbounded = errors.New("mip: problem is unbounded")
	// ErrNodeLimit is returned when branch and bound gives up.
	ErrNodeLimit = errors.New("mip: node limit exceeded")
)

// Expr is a linear expression over columns.
type Expr struct {
	terms map[Col]float64
}

func NewExpr() *Expr {
	return &Expr{terms: map[Col]float64{}}
}

// Add adds coef·col to the expression and returns it for chaining.
func (e *Expr) Add(coef float64, col Col) *Expr {
	e.terms[col] += coef
	return e
}

type rowData struct {
	terms  map[Col]float64
	lo, hi float64
}

// Model is a mutable mixed-integer program: minimize obj·x subject to
// lo ≤ row·x ≤ hi for every live row and lower ≤ x ≤ upper per column.
// Lower bounds must be finite; upper bounds may be +Inf.
type Model struct {
	types     []ColType
	lower     []float64
	upper     []float64
	objective map[Col]float64

	rows    map[Row]rowData
	order   []Row // insertion order of live rows, may contain erased ids
	nextRow Row

	// MaxNodes caps the branch and bound tree; 0 means DefaultMaxNodes.
	MaxNodes int
}

// DefaultMaxNodes bounds the search tree when Model.MaxNodes is zero.
const DefaultMaxNodes = 100000

func NewModel() *Model {
	return &Model{
		objective: map[Col]float64{},
		rows:      map[Row]rowData{},
	}
}

// AddCol appends a column with the given type and bounds. lower must be
// finite.
func (m *Model) AddCol(typ ColType, lower, upper float64) Col {
	if math.IsInf(lower, 0) {
		panic("mip: column lower bound must be finite")
	}
	m.types = append(m.types, typ)
	m.lower = append(m.lower, lower)
	m.upper = append(m.upper, upper)
	return Col(len(m.types) - 1)
}

// AddRow appends the constraint lo ≤ expr ≤ hi and returns its id. Either
// bound may be infinite; lo == hi expresses an equality.
func (m *Model) AddRow(expr *Expr, lo, hi float64) Row {
	id := m.nextRow
	m.nextRow++
	m.rows[id] = rowData{terms: expr.terms, lo: lo, hi: hi}
	if len(m.order) > 2*len(m.rows) {
		m.compact()
	}
	m.order = append(m.order, id)
	return id
}

// EraseRow removes a row added earlier. Erasing an already-erased row is a
// no-op.
func (m *Model) EraseRow(id Row) {
	delete(m.rows, id)
}

func (m *Model) compact() {
	live := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.rows[id]; ok {
			live = append(live, id)
		}
	}
	m.order = live
}

// SetObjective replaces the minimization objective.
func (m *Model) SetObjective(expr *Expr) {
	m.objective = expr.terms
}

// Solution holds an optimal assignment. Values of integer columns are
// integral up to the solver tolerance; callers should round them.
type Solution struct {
	Objective float64
	values    []float64
}

func (s *Solution) Value(col Col) float64 {
	return s.values[col]
}
