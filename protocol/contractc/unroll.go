package contractc

import (
	"math/big"

	"github.com/suyanlong/alephium/protocol/ir"
)

// compileLoopStmt lowers the unrolled-loop primitive `loop(from, to,
// step, body)` (spec §4.3 "Loop unrolling"): from/to/step must be
// constant U256 literals, the total iteration count is
// ceil((to-from)/step) (analogous for a negative step), and each
// iteration emits a fresh copy of body with every `?` placeholder
// replaced by that iteration's value.
func compileLoopStmt(cs *CompilerState, s *LoopStmt) ([]ir.Instr, error) {
	from, ok := constU256(s.From)
	if !ok {
		return nil, newErr("loop bounds must be constant U256 literals")
	}
	to, ok := constU256(s.To)
	if !ok {
		return nil, newErr("loop bounds must be constant U256 literals")
	}
	step, ok := constU256(s.Step)
	if !ok {
		return nil, newErr("loop bounds must be constant U256 literals")
	}
	if step.V.Sign() == 0 {
		return nil, newErr("loop step must be non-zero")
	}
	if err := validateLoopBody(s.Body); err != nil {
		return nil, err
	}

	iterations := loopIterationCount(from.V, to.V, step.V)
	if iterations > cs.config.unrollLimit() {
		return nil, newErr("loop range too large")
	}

	var out []ir.Instr
	val := new(big.Int).Set(from.V)
	for i := 0; i < iterations; i++ {
		body := cloneStmtSubst(s.Body, U256Val{V: new(big.Int).Set(val)})
		instrs, _, err := compileStmt(cs, body)
		if err != nil {
			return nil, err
		}
		out = append(out, instrs...)
		val = new(big.Int).Add(val, step.V)
	}
	return out, nil
}

// loopIterationCount computes ceil((to-from)/step) for a positive step,
// and the analogous quantity for a negative one; a range that runs the
// wrong direction for its step sign contributes zero iterations rather
// than erroring, since an empty unrolled loop is not itself invalid.
func loopIterationCount(from, to, step *big.Int) int {
	diff := new(big.Int).Sub(to, from)
	if step.Sign() > 0 {
		if diff.Sign() <= 0 {
			return 0
		}
		return ceilDiv(diff, step)
	}
	if diff.Sign() >= 0 {
		return 0
	}
	return ceilDiv(new(big.Int).Neg(diff), new(big.Int).Neg(step))
}

func ceilDiv(a, b *big.Int) int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return int(q.Int64())
}

// validateLoopBody enforces spec §4.3: an unrolled body may not declare
// new variables (each copy would redeclare the same name) or return
// (the unrolled copies are not a function body of their own).
func validateLoopBody(s Stmt) error {
	switch n := s.(type) {
	case *VarDefStmt:
		return newErr("loop body must not declare new variables")
	case *ReturnStmt:
		return newErr("loop body must not contain a return statement")
	case *IfElseStmt:
		for _, st := range n.Then {
			if err := validateLoopBody(st); err != nil {
				return err
			}
		}
		for _, st := range n.Else {
			if err := validateLoopBody(st); err != nil {
				return err
			}
		}
	case *WhileStmt:
		for _, st := range n.Body {
			if err := validateLoopBody(st); err != nil {
				return err
			}
		}
	case *ForStmt:
		for _, st := range n.Body {
			if err := validateLoopBody(st); err != nil {
				return err
			}
		}
	case *LoopStmt:
		return validateLoopBody(n.Body)
	}
	return nil
}

// cloneStmtSubst deep-copies a statement tree, replacing every
// *PlaceholderExpr leaf with a fresh *ConstExpr carrying val. Every
// unrolled iteration gets independent AST nodes (and so an independent,
// freshly-computed type cache) even though structurally each copy is
// identical apart from the substituted placeholder (spec §9 Open
// Question 1 test property: "every unrolled iteration's body is the
// source body with ? substituted by the current iteration's literal").
func cloneStmtSubst(s Stmt, val U256Val) Stmt {
	switch n := s.(type) {
	case *VarDefStmt:
		return &VarDefStmt{Targets: n.Targets, Rhs: cloneExprSubst(n.Rhs, val)}
	case *AssignStmt:
		targets := make([]AssignTarget, len(n.Targets))
		for i, t := range n.Targets {
			switch tt := t.(type) {
			case SimpleTarget:
				targets[i] = tt
			case ArrayElemTarget:
				idx := make([]Expr, len(tt.Indexes))
				for j, ix := range tt.Indexes {
					idx[j] = cloneExprSubst(ix, val)
				}
				targets[i] = ArrayElemTarget{Name: tt.Name, Indexes: idx}
			}
		}
		return &AssignStmt{Targets: targets, Rhs: cloneExprSubst(n.Rhs, val)}
	case *CallStmt:
		return &CallStmt{Call: cloneExprSubst(n.Call, val).(*CallExpr)}
	case *ExternalCallStmt:
		return &ExternalCallStmt{Call: cloneExprSubst(n.Call, val).(*ContractCallExpr)}
	case *IfElseStmt:
		then := make([]Stmt, len(n.Then))
		for i, st := range n.Then {
			then[i] = cloneStmtSubst(st, val)
		}
		var els []Stmt
		if n.Else != nil {
			els = make([]Stmt, len(n.Else))
			for i, st := range n.Else {
				els[i] = cloneStmtSubst(st, val)
			}
		}
		return &IfElseStmt{Cond: cloneExprSubst(n.Cond, val), Then: then, Else: els}
	case *WhileStmt:
		body := make([]Stmt, len(n.Body))
		for i, st := range n.Body {
			body[i] = cloneStmtSubst(st, val)
		}
		return &WhileStmt{Cond: cloneExprSubst(n.Cond, val), Body: body}
	case *ForStmt:
		var init, update Stmt
		if n.Init != nil {
			init = cloneStmtSubst(n.Init, val)
		}
		if n.Update != nil {
			update = cloneStmtSubst(n.Update, val)
		}
		body := make([]Stmt, len(n.Body))
		for i, st := range n.Body {
			body[i] = cloneStmtSubst(st, val)
		}
		return &ForStmt{Init: init, Cond: cloneExprSubst(n.Cond, val), Update: update, Body: body}
	case *ReturnStmt:
		exprs := make([]Expr, len(n.Exprs))
		for i, e := range n.Exprs {
			exprs[i] = cloneExprSubst(e, val)
		}
		return &ReturnStmt{Exprs: exprs}
	case *EmitStmt:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = cloneExprSubst(a, val)
		}
		return &EmitStmt{EventName: n.EventName, Args: args}
	case *LoopStmt:
		return &LoopStmt{
			From: cloneExprSubst(n.From, val),
			To:   cloneExprSubst(n.To, val),
			Step: cloneExprSubst(n.Step, val),
			Body: cloneStmtSubst(n.Body, val),
		}
	default:
		return s
	}
}

func cloneExprSubst(e Expr, val U256Val) Expr {
	switch n := e.(type) {
	case *PlaceholderExpr:
		return &ConstExpr{Value: val}
	case *ConstExpr:
		return &ConstExpr{Value: n.Value}
	case *ArrayExpr:
		elems := make([]Expr, len(n.Elems))
		for i, el := range n.Elems {
			elems[i] = cloneExprSubst(el, val)
		}
		return &ArrayExpr{Elems: elems}
	case *ArrayRepeatExpr:
		return &ArrayRepeatExpr{Elem: cloneExprSubst(n.Elem, val), N: cloneExprSubst(n.N, val)}
	case *ArrayElementExpr:
		idx := make([]Expr, len(n.Indexes))
		for i, ix := range n.Indexes {
			idx[i] = cloneExprSubst(ix, val)
		}
		return &ArrayElementExpr{Array: cloneExprSubst(n.Array, val), Indexes: idx}
	case *VarExpr:
		return &VarExpr{Name: n.Name}
	case *EnumFieldExpr:
		return &EnumFieldExpr{Enum: n.Enum, Field: n.Field}
	case *UnaryExpr:
		return &UnaryExpr{Op: n.Op, Expr: cloneExprSubst(n.Expr, val)}
	case *BinaryExpr:
		return &BinaryExpr{Op: n.Op, Left: cloneExprSubst(n.Left, val), Right: cloneExprSubst(n.Right, val)}
	case *ContractConvExpr:
		return &ContractConvExpr{Target: n.Target, Expr: cloneExprSubst(n.Expr, val)}
	case *CallExpr:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = cloneExprSubst(a, val)
		}
		return &CallExpr{Func: n.Func, Args: args}
	case *ContractCallExpr:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = cloneExprSubst(a, val)
		}
		approve := make([]ApproveAsset, len(n.Approve))
		for i, ap := range n.Approve {
			var asset Expr
			if ap.Asset != nil {
				asset = cloneExprSubst(ap.Asset, val)
			}
			approve[i] = ApproveAsset{Address: cloneExprSubst(ap.Address, val), Asset: asset, Amount: cloneExprSubst(ap.Amount, val)}
		}
		return &ContractCallExpr{Contract: cloneExprSubst(n.Contract, val), Func: n.Func, Args: args, Approve: approve}
	case *ParenExpr:
		return &ParenExpr{Expr: cloneExprSubst(n.Expr, val)}
	case *IfElseExpr:
		return &IfElseExpr{Cond: cloneExprSubst(n.Cond, val), Then: cloneExprSubst(n.Then, val), Else: cloneExprSubst(n.Else, val)}
	default:
		return e
	}
}
