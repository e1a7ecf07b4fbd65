package contractc

import (
	"fmt"
	"reflect"
)

// Type is the closed sum type of the type language: primitives, fixed
// size arrays, and contract handles (spec §3).
type Type interface {
	isType()
	String() string
}

type baseType struct{}

func (baseType) isType() {}

type BoolType struct{ baseType }

func (BoolType) String() string { return "Bool" }

type I256Type struct{ baseType }

func (I256Type) String() string { return "I256" }

type U256Type struct{ baseType }

func (U256Type) String() string { return "U256" }

type ByteVecType struct{ baseType }

func (ByteVecType) String() string { return "ByteVec" }

type AddressType struct{ baseType }

func (AddressType) String() string { return "Address" }

// FixedSizeArrayType is `Elem[Length]`.
type FixedSizeArrayType struct {
	baseType
	Elem   Type
	Length int
}

func (t FixedSizeArrayType) String() string {
	return fmt.Sprintf("[%s;%d]", t.Elem, t.Length)
}

// ContractKind distinguishes the five compilation-unit flavours a
// Contract-type value can reference.
type ContractKind byte

const (
	KindContract ContractKind = iota
	KindAbstractContract
	KindInterface
	KindTxScript
	KindAssetScript
)

// Instantiable reports whether a value of this kind can be deployed /
// referenced by a contract-conversion expression.
func (k ContractKind) Instantiable() bool {
	switch k {
	case KindContract:
		return true
	default:
		return false
	}
}

// Inheritable reports whether other declarations may extend this kind.
func (k ContractKind) Inheritable() bool {
	switch k {
	case KindContract, KindAbstractContract, KindInterface:
		return true
	default:
		return false
	}
}

func (k ContractKind) String() string {
	switch k {
	case KindContract:
		return "Contract"
	case KindAbstractContract:
		return "AbstractContract"
	case KindInterface:
		return "Interface"
	case KindTxScript:
		return "TxScript"
	case KindAssetScript:
		return "AssetScript"
	default:
		return "Unknown"
	}
}

// ContractType is a handle to a deployed contract of the named type.
type ContractType struct {
	baseType
	Id   TypeId
	Kind ContractKind
}

func (t ContractType) String() string { return string(t.Id) }

// TypesEqual is structural type equality (spec §4.1: "Type equality is
// structural").
func TypesEqual(a, b Type) bool {
	return reflect.DeepEqual(a, b)
}

// TypeSeqEqual compares two type sequences element-wise; used whenever
// an expression's type vector is compared against a declared signature
// (spec §4.1: "a function's return type is always a sequence").
func TypeSeqEqual(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !TypesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// FlattenTypeLength returns the total number of scalar stack cells the
// given type sequence occupies once arrays are fully lowered (spec
// §4.1): primitives and contract handles count as 1, a
// FixedSizeArrayType of length n and element type t counts as
// n * FlattenTypeLength([t]).
func FlattenTypeLength(types []Type) int {
	total := 0
	for _, t := range types {
		total += flattenOne(t)
	}
	return total
}

func flattenOne(t Type) int {
	if arr, ok := t.(FixedSizeArrayType); ok {
		return arr.Length * flattenOne(arr.Elem)
	}
	return 1
}

// PeelArrayType peels k FixedSizeArrayType layers off t, as required
// when typing an array-element access `a[i1]...[ik]` (spec §4.1). It is
// an error if t is not an array, or if there are fewer layers than
// indices.
func PeelArrayType(t Type, k int) (Type, error) {
	cur := t
	for i := 0; i < k; i++ {
		arr, ok := cur.(FixedSizeArrayType)
		if !ok {
			return nil, newErr("Invalid array index %d: %s is not an array type", i, cur)
		}
		cur = arr.Elem
	}
	return cur, nil
}
