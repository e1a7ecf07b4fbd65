package contractc

import (
	"math/big"

	"github.com/suyanlong/alephium/protocol/ir"
)

// BuildRegistry constructs the cross-contract lookup table external
// calls and permission analysis need (spec §4.2 "Contract registry").
// It must run after ResolveInheritance so each entry's function table
// already reflects inherited funcs.
func BuildRegistry(mc *MultiContract) map[TypeId]*contractInfo {
	reg := make(map[TypeId]*contractInfo, len(mc.Contracts))
	for _, decl := range mc.Contracts {
		switch d := decl.(type) {
		case *Contract:
			kind := KindContract
			if d.IsAbstract {
				kind = KindAbstractContract
			}
			reg[d.Name] = toInfo(kind, d.Fields, d.Funcs)
		case *ContractInterface:
			reg[d.Name] = toInfo(KindInterface, nil, d.Funcs)
		case *TxScript:
			reg[d.Name] = toInfo(KindTxScript, nil, d.Funcs)
		case *AssetScript:
			reg[d.Name] = toInfo(KindAssetScript, nil, d.Funcs)
		}
	}
	return reg
}

func toInfo(kind ContractKind, fields []Arg, funcs []*FuncDef) *contractInfo {
	info := &contractInfo{Kind: kind, Fields: fields, Funcs: make(map[string]*FuncDef, len(funcs))}
	for _, f := range funcs {
		info.Funcs[f.Id.Name] = f
		info.FuncOrder = append(info.FuncOrder, f.Id.Name)
	}
	return info
}

// registerContract walks a Contract's declarations into a fresh
// CompilerState (spec §5 "Semantic pass": registers
// variables/fields/templates/constants/enums, reports duplicates).
func registerContract(cs *CompilerState, c *Contract) error {
	for _, p := range c.TemplateVars {
		if err := cs.AddTemplateVariable(p.Name, p.Type); err != nil {
			return err
		}
	}
	for _, f := range c.Fields {
		if err := cs.AddFieldVariable(f.Name, f.Type, f.IsMutable, f.IsUnused); err != nil {
			return err
		}
	}
	for _, enum := range c.Enums {
		for _, field := range enum.Fields {
			if err := cs.addEnumField(enum.Name, field.Name, field.Value); err != nil {
				return err
			}
		}
	}
	for _, cst := range c.Constants {
		v, err := evalConstExpr(cst.Value)
		if err != nil {
			return wrapErr(err, "evaluating constant "+string(cst.Name))
		}
		if err := cs.AddConstantVariable(cst.Name, v, []ir.Instr{v.ToConstInstr()}); err != nil {
			return err
		}
	}
	for _, ev := range c.Events {
		if err := cs.addEvent(ev); err != nil {
			return err
		}
	}
	for _, fn := range c.Funcs {
		if err := cs.addFunc(fn); err != nil {
			return err
		}
	}
	return nil
}

func registerInterface(cs *CompilerState, i *ContractInterface) error {
	for _, ev := range i.Events {
		if err := cs.addEvent(ev); err != nil {
			return err
		}
	}
	for _, fn := range i.Funcs {
		if err := cs.addFunc(fn); err != nil {
			return err
		}
	}
	return nil
}

func registerScriptFuncs(cs *CompilerState, templateVars []Arg, funcs []*FuncDef) error {
	for _, p := range templateVars {
		if err := cs.AddTemplateVariable(p.Name, p.Type); err != nil {
			return err
		}
	}
	for _, fn := range funcs {
		if err := cs.addFunc(fn); err != nil {
			return err
		}
	}
	return nil
}

// evalConstExpr folds a constant-initializer expression down to a
// Val at registration time, so ConstantVarDef entries carry their
// pre-computed toConstInstr load sequence (spec §4.2).
func evalConstExpr(e Expr) (Val, error) {
	switch n := e.(type) {
	case *ConstExpr:
		return n.Value, nil
	case *ParenExpr:
		return evalConstExpr(n.Expr)
	case *UnaryExpr:
		v, err := evalConstExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return evalConstUnary(n.Op, v)
	case *BinaryExpr:
		l, err := evalConstExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := evalConstExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return evalConstBinary(n.Op, l, r)
	default:
		return nil, newErr("constant initializer must be a compile-time constant expression")
	}
}

func evalConstUnary(op string, v Val) (Val, error) {
	switch op {
	case "!":
		b, ok := v.(BoolVal)
		if !ok {
			return nil, newErr("Invalid operand type for unary !")
		}
		return BoolVal(!bool(b)), nil
	case "-":
		switch n := v.(type) {
		case I256Val:
			return I256Val{V: new(big.Int).Neg(n.V)}, nil
		case U256Val:
			return I256Val{V: new(big.Int).Neg(n.V)}, nil
		}
	}
	return nil, newErr("Invalid operand type for unary %s", op)
}

func evalConstBinary(op string, l, r Val) (Val, error) {
	li, lok := asBigInt(l)
	ri, rok := asBigInt(r)
	if lok && rok {
		result := new(big.Int)
		switch op {
		case "+":
			result.Add(li, ri)
		case "-":
			result.Sub(li, ri)
		case "*":
			result.Mul(li, ri)
		case "/":
			if ri.Sign() == 0 {
				return nil, newErr("division by zero in constant expression")
			}
			result.Div(li, ri)
		case "%":
			if ri.Sign() == 0 {
				return nil, newErr("division by zero in constant expression")
			}
			result.Mod(li, ri)
		case "==":
			return BoolVal(li.Cmp(ri) == 0), nil
		case "!=":
			return BoolVal(li.Cmp(ri) != 0), nil
		case "<":
			return BoolVal(li.Cmp(ri) < 0), nil
		case "<=":
			return BoolVal(li.Cmp(ri) <= 0), nil
		case ">":
			return BoolVal(li.Cmp(ri) > 0), nil
		case ">=":
			return BoolVal(li.Cmp(ri) >= 0), nil
		default:
			return nil, newErr("unsupported constant operator %s", op)
		}
		if _, isU256 := l.(U256Val); isU256 {
			return U256Val{V: result}, nil
		}
		return I256Val{V: result}, nil
	}
	lb, lok := l.(BoolVal)
	rb, rok := r.(BoolVal)
	if lok && rok {
		switch op {
		case "&&":
			return BoolVal(bool(lb) && bool(rb)), nil
		case "||":
			return BoolVal(bool(lb) || bool(rb)), nil
		case "==":
			return BoolVal(lb == rb), nil
		case "!=":
			return BoolVal(lb != rb), nil
		}
	}
	return nil, newErr("Invalid param types for %s in constant expression", op)
}

func asBigInt(v Val) (*big.Int, bool) {
	switch n := v.(type) {
	case U256Val:
		return n.V, true
	case I256Val:
		return n.V, true
	default:
		return nil, false
	}
}
