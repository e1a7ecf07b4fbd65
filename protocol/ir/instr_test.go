package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suyanlong/alephium/protocol/ir"
)

func TestStackDeltaBalancesArgumentsAndConstants(t *testing.T) {
	require.Equal(t, 1, ir.U256Const0{}.StackDelta())
	require.Equal(t, -1, ir.U256Add{}.StackDelta())
	require.Equal(t, -1, ir.StoreLocal{Index: 3}.StackDelta())
	require.Equal(t, 1, ir.LoadField{Index: 2}.StackDelta())
}

func TestLogNDeltaScalesWithArgCount(t *testing.T) {
	require.Equal(t, -1, ir.LogN{N: 0}.StackDelta())
	require.Equal(t, -4, ir.LogN{N: 3}.StackDelta())
}

func TestCheckPermissionDeltaScalesWithArgCount(t *testing.T) {
	require.Equal(t, 0, ir.CheckPermission{N: 0}.StackDelta())
	require.Equal(t, -2, ir.CheckPermission{N: 2}.StackDelta())
}

func TestDynamicAddressingInstructionsPopOffsetAndValue(t *testing.T) {
	require.Equal(t, 0, ir.LoadLocalDyn{Base: 0}.StackDelta())
	require.Equal(t, -2, ir.StoreLocalDyn{Base: 0}.StackDelta())
	require.Equal(t, 0, ir.LoadFieldDyn{Base: 0}.StackDelta())
	require.Equal(t, -2, ir.StoreFieldDyn{Base: 0}.StackDelta())
}

func TestBranchOffsetsAreSigned(t *testing.T) {
	j := ir.Jump{Offset: -12}
	require.Equal(t, int16(-12), j.Offset)
	require.Equal(t, 0, j.StackDelta())
}
