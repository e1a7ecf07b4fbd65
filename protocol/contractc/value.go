package contractc

import (
	"math/big"

	"github.com/suyanlong/alephium/protocol/ir"
)

// Val is a tagged-union runtime-ish constant value known at compile
// time (literals, folded constants). Each concrete type knows its own
// primitive Type and how to load itself, mirroring the marker-method
// sum-type idiom used throughout this package for expressions and
// statements.
type Val interface {
	isVal()
	// PrimType returns the primitive Type this value carries.
	PrimType() Type
	// ToConstInstr returns the instruction that pushes this value.
	ToConstInstr() ir.Instr
}

type baseVal struct{}

func (baseVal) isVal() {}

type BoolVal bool

func (BoolVal) PrimType() Type { return BoolType{} }
func (v BoolVal) ToConstInstr() ir.Instr {
	return ir.BoolConst{Value: bool(v)}
}
func (BoolVal) isVal() {}

type U256Val struct{ V *big.Int }

func (U256Val) PrimType() Type { return U256Type{} }
func (v U256Val) ToConstInstr() ir.Instr {
	switch {
	case v.V.Cmp(big.NewInt(0)) == 0:
		return ir.U256Const0{}
	case v.V.Cmp(big.NewInt(1)) == 0:
		return ir.U256Const1{}
	case v.V.Cmp(big.NewInt(2)) == 0:
		return ir.U256Const2{}
	case v.V.Cmp(big.NewInt(3)) == 0:
		return ir.U256Const3{}
	case v.V.Cmp(big.NewInt(4)) == 0:
		return ir.U256Const4{}
	case v.V.Cmp(big.NewInt(5)) == 0:
		return ir.U256Const5{}
	default:
		return ir.U256Const{Value: new(big.Int).Set(v.V)}
	}
}
func (U256Val) isVal() {}

type I256Val struct{ V *big.Int }

func (I256Val) PrimType() Type { return I256Type{} }
func (v I256Val) ToConstInstr() ir.Instr {
	return ir.I256Const{Value: new(big.Int).Set(v.V)}
}
func (I256Val) isVal() {}

type ByteVecVal []byte

func (ByteVecVal) PrimType() Type { return ByteVecType{} }
func (v ByteVecVal) ToConstInstr() ir.Instr {
	return ir.BytesConst{Value: append([]byte(nil), v...)}
}
func (ByteVecVal) isVal() {}

type AddressVal []byte

func (AddressVal) PrimType() Type { return AddressType{} }
func (v AddressVal) ToConstInstr() ir.Instr {
	return ir.AddressConst{Value: append([]byte(nil), v...)}
}
func (AddressVal) isVal() {}

// NewU256 constructs a U256Val from an int64 convenience constant.
func NewU256(n int64) U256Val { return U256Val{V: big.NewInt(n)} }

// NewI256 constructs an I256Val from an int64 convenience constant.
func NewI256(n int64) I256Val { return I256Val{V: big.NewInt(n)} }
