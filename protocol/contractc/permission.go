package contractc

// computePermissionTable implements the fixed-point analysis of spec
// §4.5: seed every func whose hasDirectPermissionCheck holds, then
// propagate the mark backward through the internal call graph, but only
// through private callers — a public function stops the propagation
// since its external callers cannot be presumed to have checked.
func computePermissionTable(cs *CompilerState) map[string]bool {
	reversed := make(map[string][]string) // callee -> callers
	for caller, callees := range cs.internalCalls {
		for callee := range callees {
			reversed[callee] = append(reversed[callee], caller)
		}
	}

	checked := make(map[string]bool)
	var mark func(name string)
	mark = func(name string) {
		if checked[name] {
			return
		}
		checked[name] = true
		f, ok := cs.funcs[name]
		if !ok || f.IsPublic {
			return
		}
		for _, caller := range reversed[name] {
			mark(caller)
		}
	}

	for _, name := range cs.funcOrder {
		if hasDirectPermissionCheck(cs.funcs[name]) {
			mark(name)
		}
	}
	return checked
}

// hasDirectPermissionCheck holds when a func imposes no permission
// obligation of its own (usePermissionCheck is false) or its body
// directly invokes the checkPermission builtin.
func hasDirectPermissionCheck(f *FuncDef) bool {
	if !f.UsePermissionCheck {
		return true
	}
	return stmtsCallCheckPermission(f.Body)
}

func stmtsCallCheckPermission(stmts []Stmt) bool {
	for _, s := range stmts {
		if stmtCallsCheckPermission(s) {
			return true
		}
	}
	return false
}

func stmtCallsCheckPermission(s Stmt) bool {
	switch n := s.(type) {
	case *VarDefStmt:
		return exprCallsCheckPermission(n.Rhs)
	case *AssignStmt:
		return exprCallsCheckPermission(n.Rhs)
	case *CallStmt:
		return exprCallsCheckPermission(n.Call)
	case *ExternalCallStmt:
		return exprCallsCheckPermission(n.Call)
	case *IfElseStmt:
		if exprCallsCheckPermission(n.Cond) || stmtsCallCheckPermission(n.Then) {
			return true
		}
		return stmtsCallCheckPermission(n.Else)
	case *WhileStmt:
		return exprCallsCheckPermission(n.Cond) || stmtsCallCheckPermission(n.Body)
	case *ForStmt:
		if n.Init != nil && stmtCallsCheckPermission(n.Init) {
			return true
		}
		if exprCallsCheckPermission(n.Cond) || stmtsCallCheckPermission(n.Body) {
			return true
		}
		return n.Update != nil && stmtCallsCheckPermission(n.Update)
	case *ReturnStmt:
		for _, e := range n.Exprs {
			if exprCallsCheckPermission(e) {
				return true
			}
		}
	case *EmitStmt:
		for _, e := range n.Args {
			if exprCallsCheckPermission(e) {
				return true
			}
		}
	case *LoopStmt:
		return stmtCallsCheckPermission(n.Body)
	}
	return false
}

func exprCallsCheckPermission(e Expr) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *ArrayExpr:
		for _, el := range n.Elems {
			if exprCallsCheckPermission(el) {
				return true
			}
		}
	case *ArrayRepeatExpr:
		return exprCallsCheckPermission(n.Elem) || exprCallsCheckPermission(n.N)
	case *ArrayElementExpr:
		if exprCallsCheckPermission(n.Array) {
			return true
		}
		for _, ix := range n.Indexes {
			if exprCallsCheckPermission(ix) {
				return true
			}
		}
	case *UnaryExpr:
		return exprCallsCheckPermission(n.Expr)
	case *BinaryExpr:
		return exprCallsCheckPermission(n.Left) || exprCallsCheckPermission(n.Right)
	case *ContractConvExpr:
		return exprCallsCheckPermission(n.Expr)
	case *CallExpr:
		if string(n.Func) == BuiltinCheckPermission {
			return true
		}
		for _, a := range n.Args {
			if exprCallsCheckPermission(a) {
				return true
			}
		}
	case *ContractCallExpr:
		if exprCallsCheckPermission(n.Contract) {
			return true
		}
		for _, a := range n.Args {
			if exprCallsCheckPermission(a) {
				return true
			}
		}
		for _, ap := range n.Approve {
			if exprCallsCheckPermission(ap.Address) || exprCallsCheckPermission(ap.Amount) {
				return true
			}
			if ap.Asset != nil && exprCallsCheckPermission(ap.Asset) {
				return true
			}
		}
	case *ParenExpr:
		return exprCallsCheckPermission(n.Expr)
	case *IfElseExpr:
		return exprCallsCheckPermission(n.Cond) || exprCallsCheckPermission(n.Then) || exprCallsCheckPermission(n.Else)
	}
	return false
}

// checkInterfaceImplementingRule implements spec §4.5's interface rule:
// the first k functions of the merged Funcs list (k = the count of
// distinct function names contributed by inherited interfaces) must end
// up permission-checked if they declared usePermissionCheck.
func checkInterfaceImplementingRule(c *Contract, cs *CompilerState, checked map[string]bool) error {
	k := c.interfaceFuncCount
	if k > len(cs.funcOrder) {
		k = len(cs.funcOrder)
	}
	for i := 0; i < k; i++ {
		name := cs.funcOrder[i]
		f := cs.funcs[name]
		if f.UsePermissionCheck && !checked[name] {
			return newErr("No permission check for function: %s.%s", c.Name, name)
		}
	}
	return nil
}

// checkExternalCallPermissions implements spec §4.5's external-call
// rule: for every external call recorded while compiling the target
// contract, the callee's own permission table (computed the same way,
// by compiling that other contract solely to populate it) must mark the
// callee func checked, else a warning (not an error) is recorded.
// Interface callees are always treated as checked. Per spec §9 this
// only looks at the direct callee; transitive external-call chains are
// out of scope.
func checkExternalCallPermissions(cs *CompilerState, selfName TypeId, calleeTables map[TypeId]map[string]bool) {
	for _, caller := range cs.funcOrder {
		for callee := range cs.externalCalls[caller] {
			if kind, ok := cs.contractKind(callee.Type); ok && kind == KindInterface {
				continue
			}
			table := calleeTables[callee.Type]
			if table != nil && table[callee.Func] {
				continue
			}
			cs.addWarning("No permission check for function: " + string(callee.Type) + "." + callee.Func + ", please use checkPermission!(...) to enforce the caller's permission")
		}
	}
}
