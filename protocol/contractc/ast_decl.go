package contractc

// Arg is a function formal argument or a field/template-variable
// declaration.
type Arg struct {
	Name      Ident
	Type      Type
	IsMutable bool
	IsUnused  bool
}

// EventField is one field of an event declaration.
type EventField struct {
	Name Ident
	Type Type
}

// AnnotationField is one (ident, value) pair inside an Annotation.
type AnnotationField struct {
	Name  Ident
	Value Val
}

// Annotation is a decoration attached to a FuncDef (e.g. `@using(...)`).
type Annotation struct {
	Id     Ident
	Fields []AnnotationField
}

// FuncDef is a function declaration. A nil Body means the function is
// abstract (spec invariant: "An abstract FuncDef has no body; a
// non-abstract one has a body").
type FuncDef struct {
	Annotations          []Annotation
	Id                   FuncId
	IsPublic             bool
	UsePreapprovedAssets bool
	UseAssetsInContract  bool
	UsePermissionCheck   bool
	Args                 []Arg
	Returns              []Type
	Body                 []Stmt
}

func (f *FuncDef) IsAbstract() bool { return f.Body == nil }

// EventDef declares an event; Index is filled in by the compiler state
// when the event is registered (its position in declaration order).
type EventDef struct {
	Id     TypeId
	Fields []EventField
	Index  int
}

// ConstantVarDef is a module-level constant bound to a (constant-
// foldable) expression.
type ConstantVarDef struct {
	Name  Ident
	Value Expr
}

// EnumField is one member of an EnumDef.
type EnumField struct {
	Name  Ident
	Value Val
}

// EnumDef declares an enum; its fields live in the flat namespace
// "EnumName.FieldName" (spec §3).
type EnumDef struct {
	Name   TypeId
	Fields []EnumField
}

// ContractInheritance is `contract C extends P(f1, f2, ...)`: the
// named fields of C are forwarded to P's constructor and must match
// P's own field list exactly (spec §4.4).
type ContractInheritance struct {
	Parent TypeId
	Fields []Ident
}

// InterfaceInheritance is `interface I extends P`.
type InterfaceInheritance struct {
	Parent TypeId
}

// Declaration is the closed sum type of top-level compilation units
// (spec §3: "Declaration = { AssetScript | TxScript | Contract |
// Interface }", spec §9 design note).
type Declaration interface {
	isDeclaration()
	TypeName() TypeId
}

type baseDeclaration struct{}

func (baseDeclaration) isDeclaration() {}

// AssetScript is a stateless compilation unit: only template
// variables and functions, no fields/constants/enums/events/
// inheritance.
type AssetScript struct {
	baseDeclaration
	Name         TypeId
	TemplateVars []Arg
	Funcs        []*FuncDef
}

func (s *AssetScript) TypeName() TypeId { return s.Name }

// TxScript is a stateful compilation unit: template variables and
// functions, no fields/constants/enums/events/inheritance.
type TxScript struct {
	baseDeclaration
	Name         TypeId
	TemplateVars []Arg
	Funcs        []*FuncDef
}

func (s *TxScript) TypeName() TypeId { return s.Name }

// Contract is a (possibly abstract) stateful compilation unit.
type Contract struct {
	baseDeclaration
	Name         TypeId
	IsAbstract   bool
	TemplateVars []Arg
	Fields       []Arg
	Funcs        []*FuncDef
	Events       []*EventDef
	Constants    []*ConstantVarDef
	Enums        []*EnumDef
	Inheritances []ContractInheritance

	// filled in by the inheritance resolver
	resolvedAncestors []TypeId
	// interfaceFuncCount is the number of distinct function names
	// contributed by inherited interfaces, occupying the first slots of
	// the merged Funcs list (spec §4.5 "interface-implementing rule:
	// the first k functions").
	interfaceFuncCount int
}

func (c *Contract) TypeName() TypeId { return c.Name }

// ContractInterface declares a set of (all-abstract) functions and
// events that implementing contracts must provide.
type ContractInterface struct {
	baseDeclaration
	Name         TypeId
	Funcs        []*FuncDef
	Events       []*EventDef
	Inheritances []InterfaceInheritance

	resolvedAncestors []TypeId
}

func (i *ContractInterface) TypeName() TypeId { return i.Name }

// MultiContract is an ordered collection of compilation units that may
// reference one another (inheritance, external calls).
type MultiContract struct {
	Contracts []Declaration
}

// ByName looks up a declaration by its type id within the same
// MultiContract.
func (mc *MultiContract) ByName(id TypeId) (Declaration, bool) {
	for _, d := range mc.Contracts {
		if d.TypeName() == id {
			return d, true
		}
	}
	return nil, false
}
