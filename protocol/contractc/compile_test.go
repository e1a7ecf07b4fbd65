package contractc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suyanlong/alephium/protocol/contractc"
	"github.com/suyanlong/alephium/protocol/ir"
)

// --- scenario 1: asset-script arithmetic (spec §8) ---

func TestAssetScriptArithmetic(t *testing.T) {
	script := &contractc.AssetScript{
		Name: "Arithmetic",
		Funcs: []*contractc.FuncDef{
			{
				Id:       contractc.FuncId{Name: "main"},
				IsPublic: true,
				Returns:  []contractc.Type{contractc.U256Type{}},
				Body: []contractc.Stmt{
					&contractc.ReturnStmt{Exprs: []contractc.Expr{
						&contractc.BinaryExpr{
							Op:   "+",
							Left: &contractc.ConstExpr{Value: contractc.NewU256(2)},
							Right: &contractc.BinaryExpr{
								Op:    "*",
								Left:  &contractc.ConstExpr{Value: contractc.NewU256(3)},
								Right: &contractc.ConstExpr{Value: contractc.NewU256(4)},
							},
						},
					}},
				},
			},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{script}}
	registry := contractc.BuildRegistry(mc)

	result, warnings, err := contractc.CompileAssetScript(script, registry, contractc.CompilerConfig{})
	require.NoError(t, err)
	require.Len(t, result.Methods, 1)
	require.True(t, result.Methods[0].IsPublic)
	require.Equal(t, 1, result.Methods[0].ReturnLength)
	require.Empty(t, warnings)
	require.NotEmpty(t, result.Methods[0].Instrs)
}

// --- scenario 2: Fibonacci recursion (spec §8) ---

func fibContract() (*contractc.Contract, *contractc.MultiContract) {
	fib := &contractc.FuncDef{
		Id:       contractc.FuncId{Name: "fib"},
		IsPublic: true,
		Args:     []contractc.Arg{{Name: "n", Type: contractc.U256Type{}}},
		Returns:  []contractc.Type{contractc.U256Type{}},
		Body: []contractc.Stmt{
			&contractc.IfElseStmt{
				Cond: &contractc.BinaryExpr{
					Op:    "<",
					Left:  &contractc.VarExpr{Name: "n"},
					Right: &contractc.ConstExpr{Value: contractc.NewU256(2)},
				},
				Then: []contractc.Stmt{
					&contractc.ReturnStmt{Exprs: []contractc.Expr{&contractc.VarExpr{Name: "n"}}},
				},
				Else: []contractc.Stmt{
					&contractc.ReturnStmt{Exprs: []contractc.Expr{
						&contractc.BinaryExpr{
							Op: "+",
							Left: &contractc.CallExpr{Func: "fib", Args: []contractc.Expr{
								&contractc.BinaryExpr{Op: "-", Left: &contractc.VarExpr{Name: "n"}, Right: &contractc.ConstExpr{Value: contractc.NewU256(1)}},
							}},
							Right: &contractc.CallExpr{Func: "fib", Args: []contractc.Expr{
								&contractc.BinaryExpr{Op: "-", Left: &contractc.VarExpr{Name: "n"}, Right: &contractc.ConstExpr{Value: contractc.NewU256(2)}},
							}},
						},
					}},
				},
			},
		},
	}
	c := &contractc.Contract{Name: "Fib", Funcs: []*contractc.FuncDef{fib}}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{c}}
	return c, mc
}

func TestFibonacciRecursion(t *testing.T) {
	c, mc := fibContract()
	require.NoError(t, contractc.ResolveInheritance(mc))
	registry := contractc.BuildRegistry(mc)

	result, warnings, err := contractc.CompileContract(mc, c.Name, registry, contractc.CompilerConfig{})
	require.NoError(t, err)
	require.Len(t, result.Methods, 1)
	require.Empty(t, warnings)
	require.Equal(t, 1, result.Methods[0].ArgsLength)
	require.Equal(t, 1, result.Methods[0].ReturnLength)
}

// --- scenario 3: assignment mutability ---

func TestAssignToImmutableFieldIsError(t *testing.T) {
	c := &contractc.Contract{
		Name:   "Box",
		Fields: []contractc.Arg{{Name: "x", Type: contractc.U256Type{}, IsMutable: false}},
		Funcs: []*contractc.FuncDef{
			{
				Id:       contractc.FuncId{Name: "set"},
				IsPublic: true,
				Body: []contractc.Stmt{
					&contractc.AssignStmt{
						Targets: []contractc.AssignTarget{contractc.SimpleTarget{Name: "x"}},
						Rhs:     &contractc.ConstExpr{Value: contractc.NewU256(1)},
					},
					&contractc.ReturnStmt{},
				},
			},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{c}}
	require.NoError(t, contractc.ResolveInheritance(mc))
	registry := contractc.BuildRegistry(mc)

	_, _, err := contractc.CompileContract(mc, c.Name, registry, contractc.CompilerConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "immutable")
}

// TestAssignToImmutableLocalReportsExactSpecMessage reproduces spec §8
// scenario 3's literal worked example verbatim: `let a = 0; let b = 1;
// a, b = bar()` is rejected with the exact text "Assign to immutable
// variable: b", naming the offending target rather than a bare
// "immutable" substring.
func TestAssignToImmutableLocalReportsExactSpecMessage(t *testing.T) {
	bar := &contractc.FuncDef{
		Id:       contractc.FuncId{Name: "bar"},
		IsPublic: false,
		Returns:  []contractc.Type{contractc.U256Type{}, contractc.U256Type{}},
		Body: []contractc.Stmt{
			&contractc.ReturnStmt{Exprs: []contractc.Expr{
				&contractc.ConstExpr{Value: contractc.NewU256(2)},
				&contractc.ConstExpr{Value: contractc.NewU256(3)},
			}},
		},
	}
	main := &contractc.FuncDef{
		Id:       contractc.FuncId{Name: "main"},
		IsPublic: true,
		Body: []contractc.Stmt{
			&contractc.VarDefStmt{
				Targets: []contractc.VarDefTarget{{Name: "a", IsMutable: false}},
				Rhs:     &contractc.ConstExpr{Value: contractc.NewU256(0)},
			},
			&contractc.VarDefStmt{
				Targets: []contractc.VarDefTarget{{Name: "b", IsMutable: false}},
				Rhs:     &contractc.ConstExpr{Value: contractc.NewU256(1)},
			},
			&contractc.AssignStmt{
				Targets: []contractc.AssignTarget{
					contractc.SimpleTarget{Name: "a"},
					contractc.SimpleTarget{Name: "b"},
				},
				Rhs: &contractc.CallExpr{Func: "bar"},
			},
			&contractc.ReturnStmt{},
		},
	}
	c := &contractc.Contract{Name: "Box", Funcs: []*contractc.FuncDef{bar, main}}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{c}}
	require.NoError(t, contractc.ResolveInheritance(mc))
	registry := contractc.BuildRegistry(mc)

	_, _, err := contractc.CompileContract(mc, c.Name, registry, contractc.CompilerConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Assign to immutable variable: b")
}

// TestFuncEndingInPanicSatisfiesReturnCheck ensures a function with a
// non-empty return type is accepted when its body's last statement is
// a standalone call to the built-in panic rather than a Return (spec:
// "must end every control path in Return or a call to the built-in
// panic").
func TestFuncEndingInPanicSatisfiesReturnCheck(t *testing.T) {
	c := &contractc.Contract{
		Name: "Box",
		Funcs: []*contractc.FuncDef{
			{
				Id:       contractc.FuncId{Name: "get"},
				IsPublic: true,
				Returns:  []contractc.Type{contractc.U256Type{}},
				Body: []contractc.Stmt{
					&contractc.CallStmt{Call: &contractc.CallExpr{Func: "panic"}},
				},
			},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{c}}
	require.NoError(t, contractc.ResolveInheritance(mc))
	registry := contractc.BuildRegistry(mc)

	result, _, err := contractc.CompileContract(mc, c.Name, registry, contractc.CompilerConfig{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Methods[0].Instrs)
}

// --- scenario 4: array literal lowering ---

func TestArrayLiteralLowering(t *testing.T) {
	arrType := contractc.FixedSizeArrayType{Elem: contractc.U256Type{}, Length: 3}
	script := &contractc.AssetScript{
		Name: "ArrayLit",
		Funcs: []*contractc.FuncDef{
			{
				Id:       contractc.FuncId{Name: "main"},
				IsPublic: true,
				Returns:  []contractc.Type{contractc.U256Type{}},
				Body: []contractc.Stmt{
					&contractc.VarDefStmt{
						Targets: []contractc.VarDefTarget{{Name: "xs", IsMutable: false}},
						Rhs: &contractc.ArrayExpr{Elems: []contractc.Expr{
							&contractc.ConstExpr{Value: contractc.NewU256(10)},
							&contractc.ConstExpr{Value: contractc.NewU256(20)},
							&contractc.ConstExpr{Value: contractc.NewU256(30)},
						}},
					},
					&contractc.ReturnStmt{Exprs: []contractc.Expr{
						&contractc.ArrayElementExpr{
							Array:   &contractc.VarExpr{Name: "xs"},
							Indexes: []contractc.Expr{&contractc.ConstExpr{Value: contractc.NewU256(1)}},
						},
					}},
				},
			},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{script}}
	registry := contractc.BuildRegistry(mc)

	result, _, err := contractc.CompileAssetScript(script, registry, contractc.CompilerConfig{})
	require.NoError(t, err)
	require.Equal(t, 3, contractc.FlattenTypeLength([]contractc.Type{arrType}))
	require.NotEmpty(t, result.Methods[0].Instrs)
}

func TestArrayDynamicIndexLowering(t *testing.T) {
	script := &contractc.AssetScript{
		Name: "ArrayDyn",
		Funcs: []*contractc.FuncDef{
			{
				Id:       contractc.FuncId{Name: "main"},
				IsPublic: true,
				Args:     []contractc.Arg{{Name: "i", Type: contractc.U256Type{}}},
				Returns:  []contractc.Type{contractc.U256Type{}},
				Body: []contractc.Stmt{
					&contractc.VarDefStmt{
						Targets: []contractc.VarDefTarget{{Name: "xs", IsMutable: false}},
						Rhs: &contractc.ArrayExpr{Elems: []contractc.Expr{
							&contractc.ConstExpr{Value: contractc.NewU256(10)},
							&contractc.ConstExpr{Value: contractc.NewU256(20)},
							&contractc.ConstExpr{Value: contractc.NewU256(30)},
						}},
					},
					&contractc.ReturnStmt{Exprs: []contractc.Expr{
						&contractc.ArrayElementExpr{
							Array:   &contractc.VarExpr{Name: "xs"},
							Indexes: []contractc.Expr{&contractc.VarExpr{Name: "i"}},
						},
					}},
				},
			},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{script}}
	registry := contractc.BuildRegistry(mc)

	result, _, err := contractc.CompileAssetScript(script, registry, contractc.CompilerConfig{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Methods[0].Instrs)
}

// --- scenario 5: loop unrolling with limit ---

func loopScript(from, to, step int64) *contractc.AssetScript {
	return &contractc.AssetScript{
		Name: "Loopy",
		Funcs: []*contractc.FuncDef{
			{
				Id:       contractc.FuncId{Name: "main"},
				IsPublic: true,
				Body: []contractc.Stmt{
					&contractc.LoopStmt{
						From: &contractc.ConstExpr{Value: contractc.NewU256(from)},
						To:   &contractc.ConstExpr{Value: contractc.NewU256(to)},
						Step: &contractc.ConstExpr{Value: contractc.NewU256(step)},
						Body: &contractc.CallStmt{Call: &contractc.CallExpr{Func: "panic"}},
					},
					&contractc.ReturnStmt{},
				},
			},
		},
	}
}

func TestLoopUnrollingWithinLimit(t *testing.T) {
	script := loopScript(0, 4, 1)
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{script}}
	registry := contractc.BuildRegistry(mc)

	_, _, err := contractc.CompileAssetScript(script, registry, contractc.CompilerConfig{LoopUnrollingLimit: 8})
	require.NoError(t, err)
}

func TestLoopUnrollingExceedsLimit(t *testing.T) {
	script := loopScript(0, 100, 1)
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{script}}
	registry := contractc.BuildRegistry(mc)

	_, _, err := contractc.CompileAssetScript(script, registry, contractc.CompilerConfig{LoopUnrollingLimit: 8})
	require.Error(t, err)
	require.Contains(t, err.Error(), "loop range too large")
}

// --- scenario 6: cyclic inheritance ---

func TestCyclicInheritanceIsError(t *testing.T) {
	a := &contractc.Contract{
		Name:         "A",
		IsAbstract:   true,
		Inheritances: []contractc.ContractInheritance{{Parent: "B"}},
	}
	b := &contractc.Contract{
		Name:         "B",
		IsAbstract:   true,
		Inheritances: []contractc.ContractInheritance{{Parent: "A"}},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{a, b}}

	err := contractc.ResolveInheritance(mc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Cyclic inheritance")
}

// --- scenario 7: permission warning ---

func TestExternalCallPermissionWarning(t *testing.T) {
	callee := &contractc.Contract{
		Name: "Callee",
		Funcs: []*contractc.FuncDef{
			{
				Id:                 contractc.FuncId{Name: "withdraw"},
				IsPublic:           true,
				UsePermissionCheck: true,
				Body:               []contractc.Stmt{&contractc.ReturnStmt{}},
			},
		},
	}
	caller := &contractc.Contract{
		Name: "Caller",
		Funcs: []*contractc.FuncDef{
			{
				Id:       contractc.FuncId{Name: "callWithdraw"},
				IsPublic: true,
				Args:     []contractc.Arg{{Name: "target", Type: contractc.ContractType{Id: "Callee", Kind: contractc.KindContract}}},
				Body: []contractc.Stmt{
					&contractc.ExternalCallStmt{Call: &contractc.ContractCallExpr{
						Contract: &contractc.VarExpr{Name: "target"},
						Func:     "withdraw",
					}},
					&contractc.ReturnStmt{},
				},
			},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{callee, caller}}
	require.NoError(t, contractc.ResolveInheritance(mc))
	registry := contractc.BuildRegistry(mc)

	result, warnings, err := contractc.CompileContract(mc, caller.Name, registry, contractc.CompilerConfig{})
	require.NoError(t, err)
	require.Len(t, result.Methods, 1)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "No permission check for function: Callee.withdraw")
}

// --- event emission ---

func TestEmitEventLowersToLogN(t *testing.T) {
	c := &contractc.Contract{
		Name: "Ledger",
		Events: []*contractc.EventDef{
			{Id: "Transfer", Fields: []contractc.EventField{
				{Name: "to", Type: contractc.AddressType{}},
				{Name: "amount", Type: contractc.U256Type{}},
			}},
		},
		Funcs: []*contractc.FuncDef{
			{
				Id:       contractc.FuncId{Name: "send"},
				IsPublic: true,
				Args:     []contractc.Arg{{Name: "to", Type: contractc.AddressType{}}, {Name: "amount", Type: contractc.U256Type{}}},
				Body: []contractc.Stmt{
					&contractc.EmitStmt{EventName: "Transfer", Args: []contractc.Expr{
						&contractc.VarExpr{Name: "to"},
						&contractc.VarExpr{Name: "amount"},
					}},
					&contractc.ReturnStmt{},
				},
			},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{c}}
	require.NoError(t, contractc.ResolveInheritance(mc))
	registry := contractc.BuildRegistry(mc)

	result, warnings, err := contractc.CompileContract(mc, c.Name, registry, contractc.CompilerConfig{})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, result.Methods, 1)

	found := false
	for _, in := range result.Methods[0].Instrs {
		if logN, ok := in.(ir.LogN); ok {
			require.Equal(t, 2, logN.N)
			found = true
		}
	}
	require.True(t, found, "expected a LogN instruction in the emitted method")
}

func TestEventWithArrayFieldIsRejected(t *testing.T) {
	c := &contractc.Contract{
		Name: "Ledger",
		Events: []*contractc.EventDef{
			{Id: "Batch", Fields: []contractc.EventField{
				{Name: "amounts", Type: contractc.FixedSizeArrayType{Elem: contractc.U256Type{}, Length: 3}},
			}},
		},
		Funcs: []*contractc.FuncDef{
			{Id: contractc.FuncId{Name: "noop"}, IsPublic: true, Body: []contractc.Stmt{&contractc.ReturnStmt{}}},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{c}}
	require.NoError(t, contractc.ResolveInheritance(mc))
	registry := contractc.BuildRegistry(mc)

	_, _, err := contractc.CompileContract(mc, c.Name, registry, contractc.CompilerConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Array type not supported for event")
}

// --- permission propagation: a private checked callee protects its public caller ---

func TestPermissionCheckPropagatesThroughPrivateCallee(t *testing.T) {
	c := &contractc.Contract{
		Name: "Guarded",
		Funcs: []*contractc.FuncDef{
			{
				Id:                 contractc.FuncId{Name: "guard"},
				IsPublic:           false,
				UsePermissionCheck: true,
				Body: []contractc.Stmt{
					&contractc.CallStmt{Call: &contractc.CallExpr{Func: "checkPermission"}},
				},
			},
			{
				Id:                 contractc.FuncId{Name: "sensitive"},
				IsPublic:           true,
				UsePermissionCheck: true,
				Body: []contractc.Stmt{
					&contractc.CallStmt{Call: &contractc.CallExpr{Func: "guard"}},
					&contractc.ReturnStmt{},
				},
			},
		},
	}
	mc := &contractc.MultiContract{Contracts: []contractc.Declaration{c}}
	require.NoError(t, contractc.ResolveInheritance(mc))
	registry := contractc.BuildRegistry(mc)

	result, warnings, err := contractc.CompileContract(mc, c.Name, registry, contractc.CompilerConfig{})
	require.NoError(t, err)
	require.Len(t, result.Methods, 2)
	require.Empty(t, warnings)
}
