// Package contractc compiles a fully-constructed contract-language AST
// (contracts, interfaces, scripts, inheritance, events, enums, constants,
// arrays, loops) into the flat instruction stream described by
// protocol/ir. It owns the type system, the per-contract compiler state,
// the semantic pass, inheritance resolution, code generation, and the
// permission-check static analysis; it performs no I/O and executes
// nothing itself — that is the VM's job, out of scope here.
package contractc

// Ident names a value-level binding: a local variable, a field, a
// template variable, a constant, or a function argument. Distinct from
// TypeId so a value name can never be mistaken for a type name.
type Ident string

// TypeId names a type-level declaration: a contract, an interface, or
// an enum.
type TypeId string

// FuncId names a function. Built-in functions (checkPermission and
// panic) share the namespace with user-defined ones but are
// flagged so the compiler never tries to resolve a body or inheritance
// entry for them.
type FuncId struct {
	Name      string
	IsBuiltin bool
}

func (f FuncId) String() string { return f.Name }
