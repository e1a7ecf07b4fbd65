package contractc

import "github.com/suyanlong/alephium/protocol/ir"

// binaryOpDef and unaryOpDef are table-driven operator descriptors,
// keyed by operator and by this package's structured Type, with
// per-primitive-type opcode pairs.

type binaryOpDef struct {
	op     string
	opType Type // nil means "any primitive, same on both sides"
	result Type
	u256   ir.Instr
	i256   ir.Instr
	other  ir.Instr // used for non-integer operands (Bool for ||/&&; any non-integer primitive for ==/!=)
}

var binaryOps = []binaryOpDef{
	{op: "||", opType: BoolType{}, result: BoolType{}, other: ir.BoolOr{}},
	{op: "&&", opType: BoolType{}, result: BoolType{}, other: ir.BoolAnd{}},

	{op: ">", result: BoolType{}, u256: ir.U256Gt{}, i256: ir.I256Gt{}},
	{op: "<", result: BoolType{}, u256: ir.U256Lt{}, i256: ir.I256Lt{}},
	{op: ">=", result: BoolType{}, u256: ir.U256Ge{}, i256: ir.I256Ge{}},
	{op: "<=", result: BoolType{}, u256: ir.U256Le{}, i256: ir.I256Le{}},

	{op: "==", result: BoolType{}, u256: ir.U256Eq{}, i256: ir.I256Eq{}, other: ir.ByteVecEq{}},
	{op: "!=", result: BoolType{}, u256: ir.U256Neq{}, i256: ir.I256Neq{}, other: ir.ByteVecNeq{}},

	{op: "+", u256: ir.U256Add{}, i256: ir.I256Add{}},
	{op: "-", u256: ir.U256Sub{}, i256: ir.I256Sub{}},
	{op: "*", u256: ir.U256Mul{}, i256: ir.I256Mul{}},
	{op: "/", u256: ir.U256Div{}, i256: ir.I256Div{}},
	{op: "%", u256: ir.U256Mod{}, i256: ir.I256Mod{}},
}

type unaryOpDef struct {
	op     string
	opType Type
	result Type
	instr  ir.Instr
}

var unaryOps = []unaryOpDef{
	{op: "!", opType: BoolType{}, result: BoolType{}, instr: ir.BoolNot{}},
}

func lookupBinaryOp(op string, left, right Type) (*resolvedBinaryOp, error) {
	if !TypesEqual(left, right) {
		return nil, newErr("Invalid param types for %s: %s, %s", op, left, right)
	}
	for _, d := range binaryOps {
		if d.op != op {
			continue
		}
		if d.opType != nil && !TypesEqual(d.opType, left) {
			continue
		}
		result := d.result
		if result == nil {
			result = left
		}
		instr, err := pickArithInstr(d, left)
		if err != nil {
			return nil, err
		}
		return &resolvedBinaryOp{Result: result, Instr: instr}, nil
	}
	return nil, newErr("Invalid param types for %s: %s", op, left)
}

func pickArithInstr(d binaryOpDef, t Type) (ir.Instr, error) {
	switch {
	case TypesEqual(t, U256Type{}) && d.u256 != nil:
		return d.u256, nil
	case TypesEqual(t, I256Type{}) && d.i256 != nil:
		return d.i256, nil
	case d.other != nil:
		// Array equality is forbidden (spec §4.3): ByteVecEq/ByteVecNeq/
		// BoolOr/BoolAnd are the only "other" instructions and none apply to
		// FixedSizeArrayType, so an array slipping through here is
		// itself the bug signal.
		if _, isArr := t.(FixedSizeArrayType); isArr {
			return nil, newErr("Array equality is not supported")
		}
		return d.other, nil
	default:
		return nil, newErr("Invalid param type %s for operator", t)
	}
}

type resolvedBinaryOp struct {
	Result Type
	Instr  ir.Instr
}

func lookupUnaryOp(op string, operand Type) (*resolvedUnaryOp, error) {
	for _, d := range unaryOps {
		if d.op == op && TypesEqual(d.opType, operand) {
			return &resolvedUnaryOp{Result: d.result, Instr: d.instr}, nil
		}
	}
	// "-" on I256/U256 desugars to 0 - x at codegen time, handled
	// there directly since it needs two instructions (push 0, sub)
	// rather than a single opcode.
	if op == "-" && (TypesEqual(operand, I256Type{}) || TypesEqual(operand, U256Type{})) {
		return &resolvedUnaryOp{Result: operand, Instr: nil}, nil
	}
	return nil, newErr("Invalid operand type %s for unary %s", operand, op)
}

type resolvedUnaryOp struct {
	Result Type
	Instr  ir.Instr
}

// Built-in function names recognised directly by the compiler rather
// than resolved against a contract's own function table.
const (
	BuiltinCheckPermission = "checkPermission"
	BuiltinPanic           = "panic"
)

func isBuiltinFunc(name string) bool {
	switch name {
	case BuiltinCheckPermission, BuiltinPanic:
		return true
	}
	return false
}
