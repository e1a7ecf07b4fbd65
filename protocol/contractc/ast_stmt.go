package contractc

// Stmt is the closed sum type of statement nodes (spec §3). Unlike
// expressions, statements carry no memoised type slot; they use the
// same marker-method idiom as Expr.
type Stmt interface {
	isStmt()
}

type baseStmt struct{}

func (baseStmt) isStmt() {}

// VarDefTarget is one destructuring target of a variable definition:
// either a named, optionally mutable binding, or an anonymous discard.
type VarDefTarget struct {
	Name      Ident
	IsMutable bool
	Anonymous bool
}

// VarDefStmt is `let [mut] a, [mut] b, _ = rhs`.
type VarDefStmt struct {
	baseStmt
	Targets []VarDefTarget
	Rhs     Expr
}

// AssignTarget is either a plain variable name or an array-element
// access, as an assignment target.
type AssignTarget interface {
	isAssignTarget()
}

type SimpleTarget struct{ Name Ident }

func (SimpleTarget) isAssignTarget() {}

type ArrayElemTarget struct {
	Name    Ident
	Indexes []Expr
}

func (ArrayElemTarget) isAssignTarget() {}

// AssignStmt is `t1, ..., tn = rhs`.
type AssignStmt struct {
	baseStmt
	Targets []AssignTarget
	Rhs     Expr
}

// CallStmt is an internal call used as a standalone statement (its
// return value, if any, is discarded).
type CallStmt struct {
	baseStmt
	Call *CallExpr
}

// ExternalCallStmt is an external call used as a standalone statement.
type ExternalCallStmt struct {
	baseStmt
	Call *ContractCallExpr
}

// IfElseStmt is `if (cond) { then } else { else }`; Else may itself be
// a single-element []Stmt{*IfElseStmt} to represent "else if", or nil
// for a bodyless else.
type IfElseStmt struct {
	baseStmt
	Cond       Expr
	Then, Else []Stmt
}

// WhileStmt is `while (cond) { body }`.
type WhileStmt struct {
	baseStmt
	Cond Expr
	Body []Stmt
}

// ForStmt is `for (init; cond; update) { body }`; Init may be nil (no
// declaration), and is scoped to the for statement alone.
type ForStmt struct {
	baseStmt
	Init   Stmt
	Cond   Expr
	Update Stmt
	Body   []Stmt
}

// ReturnStmt is `return e1, ..., en`.
type ReturnStmt struct {
	baseStmt
	Exprs []Expr
}

// EmitStmt is `emit EventName(args...)`.
type EmitStmt struct {
	baseStmt
	EventName Ident
	Args      []Expr
}

// LoopStmt is the unrolled-loop primitive `loop(from, to, step, body)`.
// Body must be exactly one statement (itself possibly a block wrapped
// in an IfElseStmt/etc.) containing occurrences of *PlaceholderExpr in
// place of the literal `?`.
type LoopStmt struct {
	baseStmt
	From, To, Step Expr
	Body           Stmt
}
