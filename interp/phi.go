package interp

import (
	"context"

	"github.com/chazu/ssaeval/ir"
)

// ---------------------------------------------------------------------------
// φ-resolution
// ---------------------------------------------------------------------------

// resolvePhis is called on every transfer of control from statement from to
// statement to (both 0-based). If to begins a run of φ-nodes, each φ takes
// its value from the edge leaving from, all values of the run are committed
// together, and the statement after the run is returned. Otherwise to is
// returned unchanged.
//
// A φ may name an edge that lies inside the run itself (from a φ-only
// predecessor block). Taking such an edge means the earlier φs of the run
// belong to that predecessor: they are committed first, and resolution
// restarts from the edge with the remaining φs.
func (in *Interpreter) resolvePhis(ctx context.Context, fr *Frame, from, to int) (int, error) {
	stmts := fr.Code.Stmts
	if to < 0 || to >= len(stmts) {
		return to, nil
	}
	end := to
	for end < len(stmts) {
		if _, ok := stmts[end].(*ir.Phi); !ok {
			break
		}
		end++
	}
	nphi := end - to
	if nphi == 0 {
		return to, nil
	}

	dest := to
	pending := make([]cell, nphi)
	for i := 0; i < nphi; i++ {
		phi := stmts[to+i].(*ir.Phi)
		edge := -1
		closest := to
		for j, from1 := range phi.Edges {
			if from1 == from+1 {
				if edge == -1 {
					edge = j
				}
			} else if closest < from1 && from1 < to+i+1 {
				// An edge from inside the run overrides any other match.
				edge = j
				closest = from1
			}
		}
		if n := closest - to; n > 0 {
			for j := 0; j < n; j++ {
				if err := fr.setCell(ir.SSAIndex(dest+j), pending[j]); err != nil {
					return 0, err
				}
			}
			copy(pending, pending[n:i])
			clear(pending[i-n:])
			from = closest - 1
			i -= n
			dest += n
			to += n
			nphi -= n
		}

		var val cell
		if edge >= 0 && edge < len(phi.Values) && phi.Values[edge] != nil {
			v, err := in.eval(ctx, fr, phi.Values[edge])
			if err != nil {
				return 0, err
			}
			val = cell{v: v, set: true}
		}
		pending[i] = val
	}
	for j := 0; j < nphi; j++ {
		if err := fr.setCell(ir.SSAIndex(dest+j), pending[j]); err != nil {
			return 0, err
		}
	}
	return end, nil
}
