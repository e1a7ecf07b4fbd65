package contractc

import (
	"math/big"

	"github.com/suyanlong/alephium/protocol/ir"
)

// This file holds the emission helpers that walk a typed statement/
// expression tree and lower it with the flattened-array, multi-target,
// loop-unrolling semantics of spec §4.3. The compiler never runs the generated
// instructions; it only ever appends to an []ir.Instr slice.

// compiledBody is one function's lowered instruction stream plus the
// locals slot count its frame needs (spec §4.6 "Method").
type compiledBody struct {
	Instrs       []ir.Instr
	LocalsLength int
}

// CompileFuncBody lowers fn's body into a flat instruction stream,
// binding a fresh local frame for its arguments (spec §4.3, §4.2).
func CompileFuncBody(cs *CompilerState, fn *FuncDef) (*compiledBody, error) {
	if fn.IsAbstract() {
		return nil, newErr("Function %s is abstract and has no body", fn.Id.Name)
	}
	cs.EnterFunction(fn.Id.Name)
	defer cs.LeaveFunction()

	for _, a := range fn.Args {
		if err := cs.AddLocalVariable(a.Name, a.Type, a.IsMutable, a.IsUnused); err != nil {
			return nil, err
		}
	}
	funcScope := cs.active

	instrs, terminated, err := compileBlock(cs, fn.Body)
	if err != nil {
		return nil, err
	}
	if len(fn.Returns) > 0 && !terminated {
		return nil, newErr("Function %s must return a value on every path", fn.Id.Name)
	}
	cs.CheckUnusedLocalVars(funcScope)

	return &compiledBody{Instrs: instrs, LocalsLength: cs.nextLocalSlot}, nil
}

// --- statements ---

// compileBlock lowers a statement list, reporting whether the block is
// guaranteed to end in a return (spec §4.3 "return ... every path").
func compileBlock(cs *CompilerState, stmts []Stmt) ([]ir.Instr, bool, error) {
	var out []ir.Instr
	terminated := false
	for _, s := range stmts {
		instrs, term, err := compileStmt(cs, s)
		if err != nil {
			return nil, false, err
		}
		out = append(out, instrs...)
		terminated = term
	}
	return out, terminated, nil
}

func compileStmt(cs *CompilerState, s Stmt) ([]ir.Instr, bool, error) {
	switch n := s.(type) {
	case *VarDefStmt:
		instrs, err := compileVarDefStmt(cs, n)
		return instrs, false, err
	case *AssignStmt:
		instrs, err := compileAssignStmt(cs, n)
		return instrs, false, err
	case *CallStmt:
		instrs, err := compileCallStmt(cs, n)
		return instrs, n.Call.Func == BuiltinPanic, err
	case *ExternalCallStmt:
		instrs, err := compileExternalCallStmt(cs, n)
		return instrs, false, err
	case *IfElseStmt:
		return compileIfElseStmt(cs, n)
	case *WhileStmt:
		instrs, err := compileWhileStmt(cs, n)
		return instrs, false, err
	case *ForStmt:
		instrs, err := compileForStmt(cs, n)
		return instrs, false, err
	case *ReturnStmt:
		instrs, err := compileReturnStmt(cs, n)
		return instrs, true, err
	case *EmitStmt:
		instrs, err := compileEmitStmt(cs, n)
		return instrs, false, err
	case *LoopStmt:
		instrs, err := compileLoopStmt(cs, n)
		return instrs, false, err
	default:
		return nil, false, newErr("unknown statement type")
	}
}

// compileVarDefStmt lowers `let t1, ..., tn = rhs`: the rhs type
// sequence must have exactly one entry per target (spec §4.1 "A
// multi-value RHS must have cell count equal to the sum of target cell
// counts"); slots are assigned in target order but the store
// instructions are emitted in reverse target order since the rhs's
// last value sits on top of the stack (spec §4.3).
func compileVarDefStmt(cs *CompilerState, s *VarDefStmt) ([]ir.Instr, error) {
	rhsTypes, err := GetType(cs, s.Rhs)
	if err != nil {
		return nil, err
	}
	if len(rhsTypes) != len(s.Targets) {
		return nil, newErr("Invalid variable count in let statement: expected %d, got %d", len(rhsTypes), len(s.Targets))
	}
	rhsInstrs, err := compileExpr(cs, s.Rhs)
	if err != nil {
		return nil, err
	}

	entries := make([]*varEntry, len(s.Targets))
	for i, t := range s.Targets {
		if t.Anonymous {
			continue
		}
		if err := cs.AddLocalVariable(t.Name, rhsTypes[i], t.IsMutable, false); err != nil {
			return nil, err
		}
		v, _ := cs.active.lookup(t.Name)
		entries[i] = v
	}

	out := append([]ir.Instr{}, rhsInstrs...)
	for i := len(s.Targets) - 1; i >= 0; i-- {
		t := s.Targets[i]
		if t.Anonymous {
			n := FlattenTypeLength([]Type{rhsTypes[i]})
			for j := 0; j < n; j++ {
				out = append(out, ir.Pop{})
			}
			continue
		}
		storeInstrs, err := cs.genStoreVar(entries[i], true)
		if err != nil {
			return nil, err
		}
		out = append(out, storeInstrs...)
	}
	return out, nil
}

// compileAssignStmt lowers `t1, ..., tn = rhs` against already-declared
// targets; every SimpleTarget must be mutable (spec §4.1 "Assignment
// targets must be mutable").
func compileAssignStmt(cs *CompilerState, s *AssignStmt) ([]ir.Instr, error) {
	rhsTypes, err := GetType(cs, s.Rhs)
	if err != nil {
		return nil, err
	}
	if len(rhsTypes) != len(s.Targets) {
		return nil, newErr("Invalid variable count in assignment: expected %d, got %d", len(rhsTypes), len(s.Targets))
	}
	rhsInstrs, err := compileExpr(cs, s.Rhs)
	if err != nil {
		return nil, err
	}

	out := append([]ir.Instr{}, rhsInstrs...)
	for i := len(s.Targets) - 1; i >= 0; i-- {
		switch t := s.Targets[i].(type) {
		case SimpleTarget:
			v, err := cs.GetVariable(t.Name)
			if err != nil {
				return nil, err
			}
			if !TypesEqual(v.Type, rhsTypes[i]) {
				return nil, newErr("Assign %s to %s: wrong type for %s", rhsTypes[i], v.Type, t.Name)
			}
			storeInstrs, err := cs.genStoreVar(v, false)
			if err != nil {
				return nil, err
			}
			out = append(out, storeInstrs...)
		case ArrayElemTarget:
			storeInstrs, err := compileArrayElemStore(cs, t)
			if err != nil {
				return nil, err
			}
			out = append(out, storeInstrs...)
		default:
			return nil, newErr("unknown assignment target")
		}
	}
	return out, nil
}

// compileCallStmt discards an internal call's return value(s), used
// when a call expression appears as a standalone statement.
func compileCallStmt(cs *CompilerState, n *CallStmt) ([]ir.Instr, error) {
	instrs, err := compileExpr(cs, n.Call)
	if err != nil {
		return nil, err
	}
	ts, err := GetType(cs, n.Call)
	if err != nil {
		return nil, err
	}
	out := append([]ir.Instr{}, instrs...)
	for i := 0; i < FlattenTypeLength(ts); i++ {
		out = append(out, ir.Pop{})
	}
	return out, nil
}

func compileExternalCallStmt(cs *CompilerState, n *ExternalCallStmt) ([]ir.Instr, error) {
	instrs, err := compileExpr(cs, n.Call)
	if err != nil {
		return nil, err
	}
	ts, err := GetType(cs, n.Call)
	if err != nil {
		return nil, err
	}
	out := append([]ir.Instr{}, instrs...)
	for i := 0; i < FlattenTypeLength(ts); i++ {
		out = append(out, ir.Pop{})
	}
	return out, nil
}

// compileCondition compiles a branch condition, peephole-inverting a
// leading `!` so the branch opcode can consume the un-negated operand
// directly with IfTrue instead of IfFalse (spec §4.3).
func compileCondition(cs *CompilerState, cond Expr) ([]ir.Instr, bool, error) {
	if u, ok := cond.(*UnaryExpr); ok && u.Op == "!" {
		instrs, err := compileExpr(cs, u.Expr)
		return instrs, true, err
	}
	instrs, err := compileExpr(cs, cond)
	return instrs, false, err
}

const maxBranchInstrs = 255

// compileIfElseStmt computes branch offsets from the already-materialised
// then/else instruction slices (spec §4.3: "offsets are computed back-to-
// front" describes the dependency, not an execution order we must mimic
// literally — both branches are fully lowered before either offset is
// known, which is sufficient). The branch opcode is IfFalse (or IfTrue
// for an inverted condition); a trailing Jump skips the else branch
// after the then branch runs.
func compileIfElseStmt(cs *CompilerState, s *IfElseStmt) ([]ir.Instr, bool, error) {
	condInstrs, invert, err := compileCondition(cs, s.Cond)
	if err != nil {
		return nil, false, err
	}
	thenInstrs, thenTerm, err := compileBlock(cs, s.Then)
	if err != nil {
		return nil, false, err
	}
	if len(thenInstrs) > maxBranchInstrs {
		return nil, false, newErr("too many instrs for if-else branches")
	}

	hasElse := len(s.Else) > 0
	var elseInstrs []ir.Instr
	elseTerm := false
	if hasElse {
		elseInstrs, elseTerm, err = compileBlock(cs, s.Else)
		if err != nil {
			return nil, false, err
		}
		if len(elseInstrs) > maxBranchInstrs {
			return nil, false, newErr("too many instrs for if-else branches")
		}
	}

	skip := len(thenInstrs)
	if hasElse {
		skip++ // skip the trailing Jump too
	}

	var out []ir.Instr
	out = append(out, condInstrs...)
	if invert {
		out = append(out, ir.IfTrue{Offset: int16(skip)})
	} else {
		out = append(out, ir.IfFalse{Offset: int16(skip)})
	}
	out = append(out, thenInstrs...)
	if hasElse {
		out = append(out, ir.Jump{Offset: int16(len(elseInstrs))})
		out = append(out, elseInstrs...)
	}

	return out, hasElse && thenTerm && elseTerm, nil
}

// compileWhileStmt lowers `while (cond) { body }` using the same
// condition/branch shape as an if statement, plus a trailing Jump back
// to the condition (spec §4.3 "same 255-instruction cap").
func compileWhileStmt(cs *CompilerState, s *WhileStmt) ([]ir.Instr, error) {
	condInstrs, invert, err := compileCondition(cs, s.Cond)
	if err != nil {
		return nil, err
	}
	bodyInstrs, _, err := compileBlock(cs, s.Body)
	if err != nil {
		return nil, err
	}
	if len(bodyInstrs) > maxBranchInstrs {
		return nil, newErr("too many instrs for if-else branches")
	}

	skip := len(bodyInstrs) + 1 // +1 for the trailing back-Jump
	var out []ir.Instr
	out = append(out, condInstrs...)
	if invert {
		out = append(out, ir.IfTrue{Offset: int16(skip)})
	} else {
		out = append(out, ir.IfFalse{Offset: int16(skip)})
	}
	out = append(out, bodyInstrs...)

	back := -(len(condInstrs) + len(bodyInstrs) + 2)
	out = append(out, ir.Jump{Offset: int16(back)})
	return out, nil
}

// compileForStmt desugars `for (init; cond; update) { body }` into the
// init statement followed by an equivalent while loop with update
// appended to the body (spec §4.3 "For-loop desugaring"); the init
// binding is scoped to the for statement alone.
func compileForStmt(cs *CompilerState, s *ForStmt) ([]ir.Instr, error) {
	cs.PushBlockScope()
	defer cs.PopBlockScope()

	var out []ir.Instr
	if s.Init != nil {
		initInstrs, _, err := compileStmt(cs, s.Init)
		if err != nil {
			return nil, err
		}
		out = append(out, initInstrs...)
	}

	body := s.Body
	if s.Update != nil {
		body = append(append([]Stmt{}, s.Body...), s.Update)
	}
	whileInstrs, err := compileWhileStmt(cs, &WhileStmt{Cond: s.Cond, Body: body})
	if err != nil {
		return nil, err
	}
	out = append(out, whileInstrs...)
	return out, nil
}

func compileReturnStmt(cs *CompilerState, n *ReturnStmt) ([]ir.Instr, error) {
	var out []ir.Instr
	for _, e := range n.Exprs {
		instrs, err := compileExpr(cs, e)
		if err != nil {
			return nil, err
		}
		out = append(out, instrs...)
	}
	out = append(out, ir.Return{})
	return out, nil
}

func compileEmitStmt(cs *CompilerState, n *EmitStmt) ([]ir.Instr, error) {
	var evDef *EventDef
	for _, e := range cs.events {
		if e.Id == TypeId(n.EventName) {
			evDef = e
			break
		}
	}
	if evDef == nil {
		return nil, newErr("Event %s does not exist", n.EventName)
	}
	if len(evDef.Fields) != len(n.Args) {
		return nil, newErr("Invalid number of fields for event %s: expected %d, got %d", n.EventName, len(evDef.Fields), len(n.Args))
	}

	out := []ir.Instr{U256Val{V: big.NewInt(int64(evDef.Index))}.ToConstInstr()}
	for i, a := range n.Args {
		ts, err := GetType(cs, a)
		if err != nil {
			return nil, err
		}
		if len(ts) != 1 || !TypesEqual(ts[0], evDef.Fields[i].Type) {
			return nil, newErr("Assign %v to %s: wrong type for event field %s", ts, evDef.Fields[i].Type, evDef.Fields[i].Name)
		}
		instrs, err := compileExpr(cs, a)
		if err != nil {
			return nil, err
		}
		out = append(out, instrs...)
	}
	out = append(out, ir.LogN{N: len(n.Args)})
	return out, nil
}

// --- expressions ---

func compileExpr(cs *CompilerState, e Expr) ([]ir.Instr, error) {
	switch n := e.(type) {
	case *ConstExpr:
		return []ir.Instr{n.Value.ToConstInstr()}, nil
	case *ArrayExpr:
		return compileArrayLiteral(cs, n)
	case *ArrayRepeatExpr:
		return compileArrayRepeat(cs, n)
	case *ArrayElementExpr:
		return compileArrayElemLoad(cs, n)
	case *VarExpr:
		v, err := cs.GetVariable(n.Name)
		if err != nil {
			return nil, err
		}
		return cs.genLoadVar(v), nil
	case *EnumFieldExpr:
		key := enumFieldKey(n.Enum, n.Field)
		v, ok := cs.enumFields[key]
		if !ok {
			return nil, newErr("Enum field %s does not exist", key)
		}
		return []ir.Instr{v.ToConstInstr()}, nil
	case *UnaryExpr:
		return compileUnaryExpr(cs, n)
	case *BinaryExpr:
		return compileBinaryExpr(cs, n)
	case *ContractConvExpr:
		return compileExpr(cs, n.Expr)
	case *CallExpr:
		return compileCallExpr(cs, n)
	case *ContractCallExpr:
		return compileContractCallExpr(cs, n)
	case *ParenExpr:
		return compileExpr(cs, n.Expr)
	case *IfElseExpr:
		return compileIfElseExpr(cs, n)
	case *PlaceholderExpr:
		return nil, newErr("placeholder ? used outside an unrolled loop body")
	default:
		return nil, newErr("unknown expression type")
	}
}

func compileArrayLiteral(cs *CompilerState, e *ArrayExpr) ([]ir.Instr, error) {
	var out []ir.Instr
	for _, el := range e.Elems {
		instrs, err := compileExpr(cs, el)
		if err != nil {
			return nil, err
		}
		out = append(out, instrs...)
	}
	return out, nil
}

// compileArrayRepeat resolves spec §9 Open Question 1: `[e; n]`
// generates e's instructions once, then appends that instruction slice
// n times, so at run time e's code executes n times (side effects in e,
// such as calls, repeat). Re-emitting the code rather than using Dup
// keeps multi-cell elements (e itself an array) correct.
func compileArrayRepeat(cs *CompilerState, e *ArrayRepeatExpr) ([]ir.Instr, error) {
	n, ok := constU256(e.N)
	if !ok {
		return nil, newErr("Array repeat count must be a constant U256 literal")
	}
	elemInstrs, err := compileExpr(cs, e.Elem)
	if err != nil {
		return nil, err
	}
	count := int(n.V.Int64())
	var out []ir.Instr
	for i := 0; i < count; i++ {
		out = append(out, elemInstrs...)
	}
	return out, nil
}

func compileUnaryExpr(cs *CompilerState, e *UnaryExpr) ([]ir.Instr, error) {
	ts, err := GetType(cs, e.Expr)
	if err != nil {
		return nil, err
	}
	if len(ts) != 1 {
		return nil, newErr("Invalid operand for unary %s", e.Op)
	}
	op, err := lookupUnaryOp(e.Op, ts[0])
	if err != nil {
		return nil, err
	}
	operandInstrs, err := compileExpr(cs, e.Expr)
	if err != nil {
		return nil, err
	}
	if op.Instr != nil {
		return append(append([]ir.Instr{}, operandInstrs...), op.Instr), nil
	}
	// "-" on I256/U256 has no dedicated opcode: it desugars to 0 - x.
	var zero ir.Instr
	var sub ir.Instr
	if TypesEqual(ts[0], U256Type{}) {
		zero = U256Val{V: big.NewInt(0)}.ToConstInstr()
		sub = ir.U256Sub{}
	} else {
		zero = I256Val{V: big.NewInt(0)}.ToConstInstr()
		sub = ir.I256Sub{}
	}
	out := []ir.Instr{zero}
	out = append(out, operandInstrs...)
	out = append(out, sub)
	return out, nil
}

func compileBinaryExpr(cs *CompilerState, e *BinaryExpr) ([]ir.Instr, error) {
	lt, err := GetType(cs, e.Left)
	if err != nil {
		return nil, err
	}
	rt, err := GetType(cs, e.Right)
	if err != nil {
		return nil, err
	}
	if len(lt) != 1 || len(rt) != 1 {
		return nil, newErr("Invalid operands for binary %s", e.Op)
	}
	op, err := lookupBinaryOp(e.Op, lt[0], rt[0])
	if err != nil {
		return nil, err
	}
	leftInstrs, err := compileExpr(cs, e.Left)
	if err != nil {
		return nil, err
	}
	rightInstrs, err := compileExpr(cs, e.Right)
	if err != nil {
		return nil, err
	}
	out := append([]ir.Instr{}, leftInstrs...)
	out = append(out, rightInstrs...)
	out = append(out, op.Instr)
	return out, nil
}

func compileCallExpr(cs *CompilerState, e *CallExpr) ([]ir.Instr, error) {
	var out []ir.Instr
	for _, a := range e.Args {
		instrs, err := compileExpr(cs, a)
		if err != nil {
			return nil, err
		}
		out = append(out, instrs...)
	}
	switch string(e.Func) {
	case BuiltinCheckPermission:
		out = append(out, ir.CheckPermission{N: len(e.Args)})
		return out, nil
	case BuiltinPanic:
		out = append(out, ir.Panic{})
		return out, nil
	}
	idx, err := cs.funcIndex(string(e.Func))
	if err != nil {
		return nil, err
	}
	out = append(out, ir.CallLocal{Index: uint8(idx)})
	return out, nil
}

// compileContractCallExpr emits, in the order spec §4.3 "External call"
// requires: approve-asset code, argument code, two U256 constants
// (flattened arg length, flattened return length), the contract-handle
// expression, then CallExternal.
func compileContractCallExpr(cs *CompilerState, e *ContractCallExpr) ([]ir.Instr, error) {
	var out []ir.Instr
	for _, ap := range e.Approve {
		addrInstrs, err := compileExpr(cs, ap.Address)
		if err != nil {
			return nil, err
		}
		amountInstrs, err := compileExpr(cs, ap.Amount)
		if err != nil {
			return nil, err
		}
		if ap.Asset == nil {
			out = append(out, addrInstrs...)
			out = append(out, amountInstrs...)
			out = append(out, ir.ApproveAlph{})
			continue
		}
		assetInstrs, err := compileExpr(cs, ap.Asset)
		if err != nil {
			return nil, err
		}
		out = append(out, addrInstrs...)
		out = append(out, assetInstrs...)
		out = append(out, amountInstrs...)
		out = append(out, ir.ApproveToken{})
	}

	var argTypes []Type
	for _, a := range e.Args {
		instrs, err := compileExpr(cs, a)
		if err != nil {
			return nil, err
		}
		out = append(out, instrs...)
		ts, err := GetType(cs, a)
		if err != nil {
			return nil, err
		}
		argTypes = append(argTypes, ts...)
	}

	cts, err := GetType(cs, e.Contract)
	if err != nil {
		return nil, err
	}
	ct, ok := cts[0].(ContractType)
	if !ok {
		return nil, newErr("Expect contract for %s", e.Func)
	}
	fn, err := cs.GetExternalFunc(ct.Id, string(e.Func))
	if err != nil {
		return nil, err
	}

	out = append(out, U256Val{V: big.NewInt(int64(FlattenTypeLength(argTypes)))}.ToConstInstr())
	out = append(out, U256Val{V: big.NewInt(int64(FlattenTypeLength(fn.Returns)))}.ToConstInstr())

	contractInstrs, err := compileExpr(cs, e.Contract)
	if err != nil {
		return nil, err
	}
	out = append(out, contractInstrs...)

	idx, err := cs.externalFuncIndex(ct.Id, string(e.Func))
	if err != nil {
		return nil, err
	}
	out = append(out, ir.CallExternal{Index: uint8(idx)})
	return out, nil
}

func (cs *CompilerState) funcIndex(name string) (int, error) {
	for i, n := range cs.funcOrder {
		if n == name {
			return i, nil
		}
	}
	return 0, newErr("Function %s does not exist", name)
}

func (cs *CompilerState) externalFuncIndex(contractId TypeId, name string) (int, error) {
	info, ok := cs.registry[contractId]
	if !ok {
		return 0, newErr("Contract %s does not exist", contractId)
	}
	for i, n := range info.FuncOrder {
		if n == name {
			return i, nil
		}
	}
	return 0, newErr("Function %s does not exist on contract %s", name, contractId)
}

// compileIfElseExpr lowers `if (cond) a else b` used in expression
// position; unlike the statement form, the else branch always exists
// (spec §3: both branches required, same type).
func compileIfElseExpr(cs *CompilerState, e *IfElseExpr) ([]ir.Instr, error) {
	condInstrs, invert, err := compileCondition(cs, e.Cond)
	if err != nil {
		return nil, err
	}
	thenInstrs, err := compileExpr(cs, e.Then)
	if err != nil {
		return nil, err
	}
	elseInstrs, err := compileExpr(cs, e.Else)
	if err != nil {
		return nil, err
	}
	if len(thenInstrs) > maxBranchInstrs || len(elseInstrs) > maxBranchInstrs {
		return nil, newErr("too many instrs for if-else branches")
	}

	var out []ir.Instr
	out = append(out, condInstrs...)
	if invert {
		out = append(out, ir.IfTrue{Offset: int16(len(thenInstrs) + 1)})
	} else {
		out = append(out, ir.IfFalse{Offset: int16(len(thenInstrs) + 1)})
	}
	out = append(out, thenInstrs...)
	out = append(out, ir.Jump{Offset: int16(len(elseInstrs))})
	out = append(out, elseInstrs...)
	return out, nil
}

// --- variable load/store ---

func loadCell(s storageClass, slot int) ir.Instr {
	switch s {
	case storageField:
		return ir.LoadField{Index: uint8(slot)}
	case storageTemplate:
		return ir.LoadImmField{Index: uint8(slot)}
	default:
		return ir.LoadLocal{Index: uint8(slot)}
	}
}

func storeCell(s storageClass, slot int) ir.Instr {
	if s == storageField {
		return ir.StoreField{Index: uint8(slot)}
	}
	return ir.StoreLocal{Index: uint8(slot)}
}

// genLoadVar emits one load per flattened cell of v (spec §4.3 "Local-
// slot indices assigned densely ... one cell per leaf").
func (cs *CompilerState) genLoadVar(v *varEntry) []ir.Instr {
	if v.Storage == storageConstant {
		return append([]ir.Instr{}, v.constInstrs...)
	}
	n := FlattenTypeLength([]Type{v.Type})
	out := make([]ir.Instr, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, loadCell(v.Storage, v.Slot+i))
	}
	return out
}

// genStoreVar emits one store per flattened cell of v, in reverse cell
// order since the stack top holds the last cell (spec §4.3). initial
// must be true for a variable's own declaration (let), which is never
// subject to the mutability check that applies to later assignment.
func (cs *CompilerState) genStoreVar(v *varEntry, initial bool) ([]ir.Instr, error) {
	if v.Storage == storageTemplate || v.Storage == storageConstant {
		return nil, newErr("cannot assign to a %s variable", v.Storage)
	}
	if !initial && !v.IsMutable {
		return nil, newErr("Assign to immutable variable: %s", v.Name)
	}
	n := FlattenTypeLength([]Type{v.Type})
	out := make([]ir.Instr, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, storeCell(v.Storage, v.Slot+i))
	}
	return out, nil
}

// --- array element addressing ---

// resolveArrayRef finds where e's flattened cells live. For a named
// variable, a paren, or constant-indexed nested array access this is
// pure arithmetic with no emitted code. Anything else (e.g. a function
// call producing an array result) is evaluated once into a generated
// temporary local, memoised by expression identity so a repeated
// sub-access does not re-evaluate it (spec §4.2 "array-ref registry").
func (cs *CompilerState) resolveArrayRef(e Expr) ([]ir.Instr, *ArrayRef, error) {
	switch n := e.(type) {
	case *ParenExpr:
		return cs.resolveArrayRef(n.Expr)
	case *VarExpr:
		v, err := cs.GetVariable(n.Name)
		if err != nil {
			return nil, nil, err
		}
		return nil, &ArrayRef{Type: v.Type, Storage: v.Storage, Base: v.Slot}, nil
	case *ArrayElementExpr:
		setup, parentRef, err := cs.resolveArrayRef(n.Array)
		if err != nil {
			return nil, nil, err
		}
		idxVals, allConst := constIndexVals(n.Indexes)
		if !allConst {
			return nil, nil, newErr("nested array indexing requires constant indexes")
		}
		offset, elemType, err := arrayCellOffset(parentRef.Type, idxVals)
		if err != nil {
			return nil, nil, err
		}
		return setup, &ArrayRef{Type: elemType, Storage: parentRef.Storage, Base: parentRef.Base + offset}, nil
	default:
		if ref, ok := cs.GetArrayRef(e); ok {
			return nil, ref, nil
		}
		ts, err := GetType(cs, e)
		if err != nil {
			return nil, nil, err
		}
		if len(ts) != 1 {
			return nil, nil, newErr("Invalid array expr")
		}
		arrType, ok := ts[0].(FixedSizeArrayType)
		if !ok {
			return nil, nil, newErr("Invalid array expr: %s is not an array type", ts[0])
		}
		valInstrs, err := compileExpr(cs, e)
		if err != nil {
			return nil, nil, err
		}
		name := cs.newTempName()
		if err := cs.addLocalVariableGenerated(name, arrType, false); err != nil {
			return nil, nil, err
		}
		v, _ := cs.active.lookup(name)
		storeInstrs, err := cs.genStoreVar(v, true)
		if err != nil {
			return nil, nil, err
		}
		ref := cs.GetOrCreateArrayRef(e, func() *ArrayRef {
			return &ArrayRef{Type: arrType, Storage: v.Storage, Base: v.Slot}
		})
		setup := append(valInstrs, storeInstrs...)
		return setup, ref, nil
	}
}

func constIndexVals(indexes []Expr) ([]int, bool) {
	out := make([]int, len(indexes))
	for i, idx := range indexes {
		u, ok := constU256(idx)
		if !ok {
			return nil, false
		}
		out[i] = int(u.V.Int64())
	}
	return out, true
}

// arrayCellOffset computes the flat cell offset of a constant-indexed
// access into t, and the element type remaining after peeling
// len(idxVals) array layers (spec §4.1/§4.3).
func arrayCellOffset(t Type, idxVals []int) (int, Type, error) {
	offset := 0
	cur := t
	for _, idx := range idxVals {
		arr, ok := cur.(FixedSizeArrayType)
		if !ok {
			return 0, nil, newErr("Invalid array index: %s is not an array type", cur)
		}
		if idx < 0 || idx >= arr.Length {
			return 0, nil, newErr("Invalid array index %d, array length is %d", idx, arr.Length)
		}
		offset += idx * flattenOne(arr.Elem)
		cur = arr.Elem
	}
	return offset, cur, nil
}

func compileArrayElemLoad(cs *CompilerState, e *ArrayElementExpr) ([]ir.Instr, error) {
	setup, ref, err := cs.resolveArrayRef(e.Array)
	if err != nil {
		return nil, err
	}
	idxVals, allConst := constIndexVals(e.Indexes)
	if allConst {
		offset, elemType, err := arrayCellOffset(ref.Type, idxVals)
		if err != nil {
			return nil, err
		}
		n := FlattenTypeLength([]Type{elemType})
		out := append([]ir.Instr{}, setup...)
		for i := 0; i < n; i++ {
			out = append(out, loadCell(ref.Storage, ref.Base+offset+i))
		}
		return out, nil
	}
	return cs.compileDynamicLoad(setup, ref, e.Indexes)
}

func compileArrayElemStore(cs *CompilerState, t ArrayElemTarget) ([]ir.Instr, error) {
	v, err := cs.GetVariable(t.Name)
	if err != nil {
		return nil, err
	}
	if !v.IsMutable {
		return nil, newErr("Assign to immutable variable: %s", t.Name)
	}
	ref := &ArrayRef{Type: v.Type, Storage: v.Storage, Base: v.Slot}

	idxVals, allConst := constIndexVals(t.Indexes)
	if allConst {
		offset, elemType, err := arrayCellOffset(ref.Type, idxVals)
		if err != nil {
			return nil, err
		}
		n := FlattenTypeLength([]Type{elemType})
		out := make([]ir.Instr, 0, n)
		for i := n - 1; i >= 0; i-- {
			out = append(out, storeCell(ref.Storage, ref.Base+offset+i))
		}
		return out, nil
	}

	elemType, err := PeelArrayType(ref.Type, len(t.Indexes))
	if err != nil {
		return nil, err
	}
	return cs.compileDynamicStore(ref, t.Indexes, elemType)
}

// compileDynamicOffset emits the runtime arithmetic computing the flat
// cell offset of a non-constant-indexed array access: each index
// contributes idx * stride, strides folded in as constants (spec §4.3
// "compute the flat offset at runtime"). Dynamic indices are assumed to
// be U256-typed, matching every other integer-indexed position in the
// language.
func compileDynamicOffset(cs *CompilerState, t Type, indexes []Expr) ([]ir.Instr, Type, error) {
	var out []ir.Instr
	cur := t
	first := true
	for _, idxExpr := range indexes {
		arr, ok := cur.(FixedSizeArrayType)
		if !ok {
			return nil, nil, newErr("Invalid array index: %s is not an array type", cur)
		}
		stride := flattenOne(arr.Elem)
		idxInstrs, err := compileExpr(cs, idxExpr)
		if err != nil {
			return nil, nil, err
		}
		term := append([]ir.Instr{}, idxInstrs...)
		if stride != 1 {
			term = append(term, U256Val{V: big.NewInt(int64(stride))}.ToConstInstr())
			term = append(term, ir.U256Mul{})
		}
		if first {
			out = term
			first = false
		} else {
			out = append(out, term...)
			out = append(out, ir.U256Add{})
		}
		cur = arr.Elem
	}
	return out, cur, nil
}

func dynLoadInstr(s storageClass, base uint8) (ir.Instr, error) {
	switch s {
	case storageLocal:
		return ir.LoadLocalDyn{Base: base}, nil
	case storageField:
		return ir.LoadFieldDyn{Base: base}, nil
	default:
		return nil, newErr("dynamic array indexing is only supported for local variables and fields")
	}
}

func dynStoreInstr(s storageClass, base uint8) (ir.Instr, error) {
	switch s {
	case storageLocal:
		return ir.StoreLocalDyn{Base: base}, nil
	case storageField:
		return ir.StoreFieldDyn{Base: base}, nil
	default:
		return nil, newErr("dynamic array indexing is only supported for local variables and fields")
	}
}

// compileDynamicLoad stores the computed offset into a temporary so it
// can be reloaded (with a constant per-cell increment) once per cell of
// a multi-cell element, rather than juggling stack duplication.
func (cs *CompilerState) compileDynamicLoad(setup []ir.Instr, ref *ArrayRef, indexes []Expr) ([]ir.Instr, error) {
	offsetInstrs, elemType, err := compileDynamicOffset(cs, ref.Type, indexes)
	if err != nil {
		return nil, err
	}
	dynLoad, err := dynLoadInstr(ref.Storage, uint8(ref.Base))
	if err != nil {
		return nil, err
	}

	tmpName := cs.newTempName()
	if err := cs.addLocalVariableGenerated(tmpName, U256Type{}, false); err != nil {
		return nil, err
	}
	tmp, _ := cs.active.lookup(tmpName)
	storeTmp, err := cs.genStoreVar(tmp, true)
	if err != nil {
		return nil, err
	}

	out := append([]ir.Instr{}, setup...)
	out = append(out, offsetInstrs...)
	out = append(out, storeTmp...)

	n := FlattenTypeLength([]Type{elemType})
	for i := 0; i < n; i++ {
		out = append(out, cs.genLoadVar(tmp)...)
		if i > 0 {
			out = append(out, U256Val{V: big.NewInt(int64(i))}.ToConstInstr())
			out = append(out, ir.U256Add{})
		}
		out = append(out, dynLoad)
	}
	return out, nil
}

// compileDynamicStore mirrors compileDynamicLoad; the value cells are
// already on the stack (from the enclosing assignment's rhs), so it
// only emits the offset computation and, per cell in reverse order, a
// load of the stashed offset followed by the store opcode.
func (cs *CompilerState) compileDynamicStore(ref *ArrayRef, indexes []Expr, elemType Type) ([]ir.Instr, error) {
	offsetInstrs, _, err := compileDynamicOffset(cs, ref.Type, indexes)
	if err != nil {
		return nil, err
	}
	dynStore, err := dynStoreInstr(ref.Storage, uint8(ref.Base))
	if err != nil {
		return nil, err
	}

	tmpName := cs.newTempName()
	if err := cs.addLocalVariableGenerated(tmpName, U256Type{}, false); err != nil {
		return nil, err
	}
	tmp, _ := cs.active.lookup(tmpName)
	storeTmp, err := cs.genStoreVar(tmp, true)
	if err != nil {
		return nil, err
	}

	out := append([]ir.Instr{}, offsetInstrs...)
	out = append(out, storeTmp...)

	n := FlattenTypeLength([]Type{elemType})
	for i := n - 1; i >= 0; i-- {
		out = append(out, cs.genLoadVar(tmp)...)
		if i > 0 {
			out = append(out, U256Val{V: big.NewInt(int64(i))}.ToConstInstr())
			out = append(out, ir.U256Add{})
		}
		out = append(out, dynStore)
	}
	return out, nil
}
