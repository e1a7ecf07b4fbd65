package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suyanlong/alephium/protocol/contractc"
)

var demoCmd = &cobra.Command{
	Use:   "demo [scenario]",
	Short: "Compile a built-in scenario and print the result",
	Long: `demo runs one of the compiler's built-in scenarios end to end
and reports the compiled method count plus any warnings. Available
scenarios: arithmetic, fibonacci, permission-warning.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("loop-unrolling-limit")
		if err != nil {
			return err
		}
		cfg := contractc.CompilerConfig{LoopUnrollingLimit: limit}

		switch args[0] {
		case "arithmetic":
			return runArithmeticDemo(cmd, cfg)
		case "fibonacci":
			return runFibonacciDemo(cmd, cfg)
		case "permission-warning":
			return runPermissionWarningDemo(cmd, cfg)
		default:
			return fmt.Errorf("unknown scenario %q", args[0])
		}
	},
}

// runArithmeticDemo compiles an AssetScript with a single public method
// returning a U256 arithmetic expression (spec §8 scenario 1).
func runArithmeticDemo(cmd *cobra.Command, cfg contractc.CompilerConfig) error {
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

	registry := contractc.BuildRegistry(&contractc.MultiContract{Contracts: []contractc.Declaration{script}})
	result, warnings, err := contractc.CompileAssetScript(script, registry, cfg)
	if err != nil {
		return err
	}
	cmd.Printf("compiled %d method(s), %d warning(s)\n", len(result.Methods), len(warnings))
	for _, w := range warnings {
		cmd.Println("warning:", w)
	}
	return nil
}

// runFibonacciDemo compiles a Contract with a recursive Fibonacci
// function (spec §8 scenario 2).
func runFibonacciDemo(cmd *cobra.Command, cfg contractc.CompilerConfig) error {
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

	if err := contractc.ResolveInheritance(mc); err != nil {
		return err
	}
	registry := contractc.BuildRegistry(mc)
	result, warnings, err := contractc.CompileContract(mc, c.Name, registry, cfg)
	if err != nil {
		return err
	}
	cmd.Printf("compiled %d method(s), %d field(s), %d warning(s)\n", len(result.Methods), result.FieldLength, len(warnings))
	return nil
}

// runPermissionWarningDemo builds a two-contract scenario where one
// contract's public method calls another contract's unchecked method,
// demonstrating the permission-warning rule (spec §8 scenario 7).
func runPermissionWarningDemo(cmd *cobra.Command, cfg contractc.CompilerConfig) error {
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
	if err := contractc.ResolveInheritance(mc); err != nil {
		return err
	}
	registry := contractc.BuildRegistry(mc)
	result, warnings, err := contractc.CompileContract(mc, caller.Name, registry, cfg)
	if err != nil {
		return err
	}
	cmd.Printf("compiled %d method(s), %d warning(s)\n", len(result.Methods), len(warnings))
	for _, w := range warnings {
		cmd.Println("warning:", w)
	}
	return nil
}
