package contractc

import "fmt"

// Expr is the closed sum type of expression nodes (spec §3). Every
// concrete expression carries a memoised type slot (exprBase), filled
// on first GetType query and never cleared (spec invariant). This is
// the same marker-method sum-type idiom the teacher uses for its own
// expression/statement interfaces, generalized with a type cache.
type Expr interface {
	isExpr()
	base() *exprBase
	computeType(cs *CompilerState) ([]Type, error)
}

type exprBase struct {
	cached   []Type
	resolved bool
}

func (b *exprBase) base() *exprBase { return b }

// GetType returns the flattened type vector of e, computing it on the
// first call and returning the memoised value on every later call
// (spec invariant: "Type cache idempotence").
func GetType(cs *CompilerState, e Expr) ([]Type, error) {
	b := e.base()
	if b.resolved {
		return b.cached, nil
	}
	t, err := e.computeType(cs)
	if err != nil {
		return nil, err
	}
	b.cached = t
	b.resolved = true
	return t, nil
}

// ConstExpr is a literal value.
type ConstExpr struct {
	exprBase
	Value Val
}

func (*ConstExpr) isExpr() {}
func (e *ConstExpr) computeType(*CompilerState) ([]Type, error) {
	return []Type{e.Value.PrimType()}, nil
}

// ArrayExpr is an array literal `[e1, ..., en]`; all elements must
// share a single-cell type.
type ArrayExpr struct {
	exprBase
	Elems []Expr
}

func (*ArrayExpr) isExpr() {}
func (e *ArrayExpr) computeType(cs *CompilerState) ([]Type, error) {
	if len(e.Elems) == 0 {
		return nil, newErr("Array literal must have at least one element")
	}
	var elemType Type
	for i, elt := range e.Elems {
		ts, err := GetType(cs, elt)
		if err != nil {
			return nil, err
		}
		if len(ts) != 1 {
			return nil, newErr("Array elements should have same type, element %d is not single-typed", i)
		}
		if i == 0 {
			elemType = ts[0]
			continue
		}
		if !TypesEqual(elemType, ts[0]) {
			return nil, newErr("Array elements should have same type: %s vs %s", elemType, ts[0])
		}
	}
	return []Type{FixedSizeArrayType{Elem: elemType, Length: len(e.Elems)}}, nil
}

// ArrayRepeatExpr is `[e; n]`: n (a constant Integer) copies of e.
type ArrayRepeatExpr struct {
	exprBase
	Elem Expr
	N    Expr
}

func (*ArrayRepeatExpr) isExpr() {}
func (e *ArrayRepeatExpr) computeType(cs *CompilerState) ([]Type, error) {
	n, ok := constU256(e.N)
	if !ok {
		return nil, newErr("Array repeat count must be a constant U256 literal")
	}
	ts, err := GetType(cs, e.Elem)
	if err != nil {
		return nil, err
	}
	if len(ts) != 1 {
		return nil, newErr("Array repeat element must be single-typed")
	}
	return []Type{FixedSizeArrayType{Elem: ts[0], Length: int(n.V.Int64())}}, nil
}

// ArrayElementExpr is `a[i1]...[ik]`.
type ArrayElementExpr struct {
	exprBase
	Array   Expr
	Indexes []Expr
}

func (*ArrayElementExpr) isExpr() {}
func (e *ArrayElementExpr) computeType(cs *CompilerState) ([]Type, error) {
	ts, err := GetType(cs, e.Array)
	if err != nil {
		return nil, err
	}
	if len(ts) != 1 {
		return nil, newErr("Invalid array expr")
	}
	base, err := PeelArrayType(ts[0], len(e.Indexes))
	if err != nil {
		return nil, err
	}
	return []Type{base}, nil
}

// VarExpr references a variable, field, template variable or constant
// by name.
type VarExpr struct {
	exprBase
	Name Ident
}

func (*VarExpr) isExpr() {}
func (e *VarExpr) computeType(cs *CompilerState) ([]Type, error) {
	v, err := cs.GetVariable(e.Name)
	if err != nil {
		return nil, err
	}
	return []Type{v.Type}, nil
}

// EnumFieldExpr references "EnumName.FieldName".
type EnumFieldExpr struct {
	exprBase
	Enum  TypeId
	Field Ident
}

func (*EnumFieldExpr) isExpr() {}
func (e *EnumFieldExpr) computeType(cs *CompilerState) ([]Type, error) {
	key := enumFieldKey(e.Enum, e.Field)
	v, ok := cs.enumFields[key]
	if !ok {
		return nil, newErr("Enum field %s does not exist", key)
	}
	return []Type{v.PrimType()}, nil
}

func enumFieldKey(enum TypeId, field Ident) string {
	return fmt.Sprintf("%s.%s", enum, field)
}

// UnaryExpr is a prefix operator application.
type UnaryExpr struct {
	exprBase
	Op   string
	Expr Expr
}

func (*UnaryExpr) isExpr() {}
func (e *UnaryExpr) computeType(cs *CompilerState) ([]Type, error) {
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
	return []Type{op.Result}, nil
}

// BinaryExpr is an infix operator application.
type BinaryExpr struct {
	exprBase
	Op          string
	Left, Right Expr
}

func (*BinaryExpr) isExpr() {}
func (e *BinaryExpr) computeType(cs *CompilerState) ([]Type, error) {
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
	return []Type{op.Result}, nil
}

// ContractConvExpr converts a ByteVec address into a ContractType
// handle.
type ContractConvExpr struct {
	exprBase
	Target TypeId
	Expr   Expr
}

func (*ContractConvExpr) isExpr() {}
func (e *ContractConvExpr) computeType(cs *CompilerState) ([]Type, error) {
	ts, err := GetType(cs, e.Expr)
	if err != nil {
		return nil, err
	}
	if len(ts) != 1 || !TypesEqual(ts[0], ByteVecType{}) {
		return nil, newErr("Invalid type of contract conversion argument, expected ByteVec")
	}
	kind, ok := cs.contractKind(e.Target)
	if !ok {
		return nil, newErr("Contract %s does not exist", e.Target)
	}
	return []Type{ContractType{Id: e.Target, Kind: kind}}, nil
}

// CallExpr is an internal (same-contract) function call used in
// expression position.
type CallExpr struct {
	exprBase
	Func Ident
	Args []Expr
}

func (*CallExpr) isExpr() {}
func (e *CallExpr) computeType(cs *CompilerState) ([]Type, error) {
	fn, err := cs.GetFunc(string(e.Func))
	if err != nil {
		return nil, err
	}
	if err := cs.CheckArguments(fn, e.Args); err != nil {
		return nil, err
	}
	cs.AddInternalCall(FuncId{Name: string(e.Func)})
	return fn.Returns, nil
}

// ContractCallExpr is an external (cross-contract) call used in
// expression position.
type ContractCallExpr struct {
	exprBase
	Contract Expr
	Func     Ident
	Args     []Expr
	Approve  []ApproveAsset
}

// ApproveAsset is the optional approve-list metadata layered onto a
// call node (spec §9: "represent with an optional approve-list struct
// rather than a mixin").
type ApproveAsset struct {
	Address Expr
	Asset   Expr
	Amount  Expr
}

func (*ContractCallExpr) isExpr() {}
func (e *ContractCallExpr) computeType(cs *CompilerState) ([]Type, error) {
	cts, err := GetType(cs, e.Contract)
	if err != nil {
		return nil, err
	}
	if len(cts) != 1 {
		return nil, newErr("Expect contract for external call target")
	}
	ct, ok := cts[0].(ContractType)
	if !ok {
		return nil, newErr("Expect contract for %s", e.Func)
	}
	fn, err := cs.GetExternalFunc(ct.Id, string(e.Func))
	if err != nil {
		return nil, err
	}
	if err := cs.CheckArguments(fn, e.Args); err != nil {
		return nil, err
	}
	cs.AddExternalCall(ct.Id, FuncId{Name: string(e.Func)})
	return fn.Returns, nil
}

// ParenExpr is a parenthesised sub-expression, kept distinct so
// pretty-printing (and peephole analysis of `!(...)` conditions) can
// see through it without losing source shape.
type ParenExpr struct {
	exprBase
	Expr Expr
}

func (*ParenExpr) isExpr() {}
func (e *ParenExpr) computeType(cs *CompilerState) ([]Type, error) {
	return GetType(cs, e.Expr)
}

// IfElseExpr is `if (cond) a else b` used in expression position; both
// branches must yield the same type sequence.
type IfElseExpr struct {
	exprBase
	Cond       Expr
	Then, Else Expr
}

func (*IfElseExpr) isExpr() {}
func (e *IfElseExpr) computeType(cs *CompilerState) ([]Type, error) {
	ct, err := GetType(cs, e.Cond)
	if err != nil {
		return nil, err
	}
	if len(ct) != 1 || !TypesEqual(ct[0], BoolType{}) {
		return nil, newErr("Invalid type of condition expr")
	}
	tt, err := GetType(cs, e.Then)
	if err != nil {
		return nil, err
	}
	et, err := GetType(cs, e.Else)
	if err != nil {
		return nil, err
	}
	if !TypeSeqEqual(tt, et) {
		return nil, newErr("Assign %v to %v: if-else branches must have the same type", et, tt)
	}
	return tt, nil
}

// PlaceholderExpr is the `?` token inside an unrolled loop body,
// replaced by a constant U256 literal for each emitted iteration.
type PlaceholderExpr struct {
	exprBase
}

func (*PlaceholderExpr) isExpr() {}
func (*PlaceholderExpr) computeType(*CompilerState) ([]Type, error) {
	return []Type{U256Type{}}, nil
}

// constU256 extracts a constant U256 literal from e, if it is one
// (peeling parens), for compile-time-only constructs (array repeat
// counts, array constant indexes, unrolled-loop bounds).
func constU256(e Expr) (U256Val, bool) {
	for {
		if p, ok := e.(*ParenExpr); ok {
			e = p.Expr
			continue
		}
		break
	}
	c, ok := e.(*ConstExpr)
	if !ok {
		return U256Val{}, false
	}
	u, ok := c.Value.(U256Val)
	return u, ok
}
