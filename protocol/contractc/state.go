package contractc

import (
	"sort"
	"strconv"

	"github.com/suyanlong/alephium/protocol/ir"
)

// storageClass is the storage location a variable's cells live in.
type storageClass int

const (
	storageLocal storageClass = iota
	storageField
	storageTemplate
	storageConstant
)

func (s storageClass) String() string {
	switch s {
	case storageLocal:
		return "local"
	case storageField:
		return "field"
	case storageTemplate:
		return "template"
	case storageConstant:
		return "constant"
	default:
		return "unknown"
	}
}

// varEntry is one row of the compiler state's variables table (spec
// §4.2).
type varEntry struct {
	Name        Ident
	Type        Type
	IsMutable   bool
	IsUnused    bool // declared "intentionally unused" (e.g. `_name`)
	IsGenerated bool
	Storage     storageClass
	Slot        int // base slot: local/field index, or template index
	used        bool
	// constInstrs is the pre-computed load sequence for a constant
	// variable (spec: "Constants additionally carry the pre-computed
	// toConstInstr sequence that loads them").
	constInstrs []ir.Instr
}

// scope is a chained lookup frame. The global frame holds the current
// contract/script's fields, template vars, constants and enum-derived
// names; each function pushes one function-root frame as its child,
// and block constructs that introduce their own bindings (the for
// statement's init clause) push and pop further child frames.
type scope struct {
	vars   map[Ident]*varEntry
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[Ident]*varEntry), parent: parent}
}

func (s *scope) lookup(name Ident) (*varEntry, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *scope) declare(name Ident, v *varEntry) error {
	if _, exists := s.vars[name]; exists {
		return newErr("Variable %s is defined multiple times", name)
	}
	s.vars[name] = v
	return nil
}

// externalCallee identifies a cross-contract call target.
type externalCallee struct {
	Type TypeId
	Func string
}

// contractInfo is the per-contract registry entry the external-call
// type checker and permission analyser consult (spec §4.2: "Contract
// registry").
type contractInfo struct {
	Kind   ContractKind
	Fields []Arg
	Funcs  map[string]*FuncDef
	// FuncOrder preserves declaration order; a function's position in it
	// is the method index CallExternal carries.
	FuncOrder []string
}

// CompilerConfig holds the compiler's recognised options (spec §4.2,
// §6). The zero value behaves as "effectively unbounded" loop
// unrolling, per spec.
type CompilerConfig struct {
	LoopUnrollingLimit int
}

func (c CompilerConfig) unrollLimit() int {
	if c.LoopUnrollingLimit <= 0 {
		return 1<<31 - 1
	}
	return c.LoopUnrollingLimit
}

// CompilerState is the per-compilation-unit symbol table, call-graph
// recorder, warning accumulator and slot allocator (spec §4.2). One
// instance exists per contract/script being compiled; CompileContract
// builds one for the target and one for every other non-abstract
// contract in the MultiContract (spec §4.4: the permission analyser
// needs those contracts' own tables).
type CompilerState struct {
	selfType TypeId
	selfKind ContractKind

	global *scope
	active *scope // currently active frame (global, or nested under it while compiling a function)

	nextLocalSlot    int
	nextFieldSlot    int
	nextTemplateSlot int
	localsLength     map[string]int // per-func final locals_length, filled as functions finish

	funcs     map[string]*FuncDef
	funcOrder []string

	events        []*EventDef
	enumFields    map[string]Val
	arrayRefs     map[interface{}]*ArrayRef
	internalCalls map[string]map[string]bool
	externalCalls map[string]map[externalCallee]bool

	warnings    []string
	warningSeen map[string]bool

	registry map[TypeId]*contractInfo
	config   CompilerConfig

	curFunc string

	tempCounter int

	// compiled caches each func's lowered body, keyed by name, so the
	// output assembler can read it back without recompiling (spec §4.4:
	// a contract is code-generated once, its per-func call graphs and
	// bodies both coming out of that single pass).
	compiled map[string]*compiledBody
}

// newTempName mints a fresh compiler-generated local variable name, used
// by array-element lowering when an array-valued expression must be
// evaluated once and then addressed repeatedly (spec §4.3).
func (cs *CompilerState) newTempName() Ident {
	cs.tempCounter++
	return Ident("$tmp" + strconv.Itoa(cs.tempCounter))
}

// ArrayRef describes where an array-valued expression's flattened
// cells live: a contiguous run of Storage-class slots starting at
// Base, one cell per leaf of Type (spec §4.2).
type ArrayRef struct {
	Type    Type
	Storage storageClass
	Base    int
}

// NewCompilerState constructs a fresh state for one contract/script,
// given the shared cross-contract registry built once per
// MultiContract compilation (spec §4.4).
func NewCompilerState(selfType TypeId, selfKind ContractKind, registry map[TypeId]*contractInfo, cfg CompilerConfig) *CompilerState {
	g := newScope(nil)
	return &CompilerState{
		selfType:      selfType,
		selfKind:      selfKind,
		global:        g,
		active:        g,
		localsLength:  make(map[string]int),
		funcs:         make(map[string]*FuncDef),
		enumFields:    make(map[string]Val),
		arrayRefs:     make(map[interface{}]*ArrayRef),
		internalCalls: make(map[string]map[string]bool),
		externalCalls: make(map[string]map[externalCallee]bool),
		warningSeen:   make(map[string]bool),
		registry:      registry,
		config:        cfg,
	}
}

// --- registration (semantic pass) ---

func (cs *CompilerState) AddLocalVariable(name Ident, t Type, isMutable, isUnused bool) error {
	slot := cs.nextLocalSlot
	cs.nextLocalSlot += FlattenTypeLength([]Type{t})
	return cs.active.declare(name, &varEntry{Name: name, Type: t, IsMutable: isMutable, IsUnused: isUnused, Storage: storageLocal, Slot: slot})
}

// addLocalVariableGenerated is used by array-element lowering to
// introduce compiler-synthesised temporaries.
func (cs *CompilerState) addLocalVariableGenerated(name Ident, t Type, isMutable bool) error {
	slot := cs.nextLocalSlot
	cs.nextLocalSlot += FlattenTypeLength([]Type{t})
	return cs.active.declare(name, &varEntry{Name: name, Type: t, IsMutable: isMutable, IsGenerated: true, Storage: storageLocal, Slot: slot})
}

func (cs *CompilerState) AddFieldVariable(name Ident, t Type, isMutable, isUnused bool) error {
	slot := cs.nextFieldSlot
	cs.nextFieldSlot += FlattenTypeLength([]Type{t})
	return cs.global.declare(name, &varEntry{Name: name, Type: t, IsMutable: isMutable, IsUnused: isUnused, Storage: storageField, Slot: slot})
}

func (cs *CompilerState) AddTemplateVariable(name Ident, t Type) error {
	slot := cs.nextTemplateSlot
	cs.nextTemplateSlot += FlattenTypeLength([]Type{t})
	return cs.global.declare(name, &varEntry{Name: name, Type: t, IsMutable: false, Storage: storageTemplate, Slot: slot})
}

func (cs *CompilerState) AddConstantVariable(name Ident, value Val, instrs []ir.Instr) error {
	return cs.global.declare(name, &varEntry{Name: name, Type: value.PrimType(), IsMutable: false, Storage: storageConstant, constInstrs: instrs})
}

func (cs *CompilerState) addEnumField(enum TypeId, field Ident, v Val) error {
	key := enumFieldKey(enum, field)
	if _, exists := cs.enumFields[key]; exists {
		return newErr("Enum field %s is defined multiple times", key)
	}
	cs.enumFields[key] = v
	return nil
}

func (cs *CompilerState) addEvent(e *EventDef) error {
	for _, existing := range cs.events {
		if existing.Id == e.Id {
			return newErr("These events are defined multiple times: %s", e.Id)
		}
	}
	for _, f := range e.Fields {
		if _, isArr := f.Type.(FixedSizeArrayType); isArr {
			return newErr("Array type not supported for event %s", e.Id)
		}
	}
	e.Index = len(cs.events)
	cs.events = append(cs.events, e)
	return nil
}

func (cs *CompilerState) addFunc(f *FuncDef) error {
	if _, exists := cs.funcs[f.Id.Name]; exists {
		return newErr("Function %s is defined multiple times", f.Id.Name)
	}
	cs.funcs[f.Id.Name] = f
	cs.funcOrder = append(cs.funcOrder, f.Id.Name)
	return nil
}

// --- scope management ---

func (cs *CompilerState) EnterFunction(name string) {
	cs.curFunc = name
	cs.nextLocalSlot = 0
	cs.active = newScope(cs.global)
}

func (cs *CompilerState) LeaveFunction() {
	cs.localsLength[cs.curFunc] = cs.nextLocalSlot
	cs.active = cs.global
	cs.curFunc = ""
}

// PushBlockScope opens a nested lookup frame under the currently
// active one (used for the for-statement's init binding).
func (cs *CompilerState) PushBlockScope() {
	cs.active = newScope(cs.active)
}

// PopBlockScope closes the most recently opened nested frame.
func (cs *CompilerState) PopBlockScope() {
	if cs.active.parent != nil {
		cs.active = cs.active.parent
	}
}

// --- lookups ---

func (cs *CompilerState) GetVariable(name Ident) (*varEntry, error) {
	v, ok := cs.active.lookup(name)
	if !ok {
		return nil, newErr("Variable %s does not exist", name)
	}
	v.used = true
	return v, nil
}

func (cs *CompilerState) GetFunc(name string) (*FuncDef, error) {
	if isBuiltinFunc(name) {
		return builtinFuncDef(name), nil
	}
	f, ok := cs.funcs[name]
	if !ok {
		return nil, newErr("Function %s does not exist", name)
	}
	return f, nil
}

func (cs *CompilerState) GetExternalFunc(contractId TypeId, name string) (*FuncDef, error) {
	info, ok := cs.registry[contractId]
	if !ok {
		return nil, newErr("Contract %s does not exist", contractId)
	}
	f, ok := info.Funcs[name]
	if !ok {
		return nil, newErr("Function %s does not exist on contract %s", name, contractId)
	}
	return f, nil
}

func (cs *CompilerState) contractKind(id TypeId) (ContractKind, bool) {
	info, ok := cs.registry[id]
	if !ok {
		return 0, false
	}
	return info.Kind, true
}

// builtinFuncDef synthesises a signature for a compiler built-in.
func builtinFuncDef(name string) *FuncDef {
	switch name {
	case BuiltinCheckPermission:
		return &FuncDef{Id: FuncId{Name: name, IsBuiltin: true}, Returns: nil}
	case BuiltinPanic:
		return &FuncDef{Id: FuncId{Name: name, IsBuiltin: true}, Returns: nil}
	default:
		return &FuncDef{Id: FuncId{Name: name, IsBuiltin: true}}
	}
}

// --- argument / return checking ---

func (cs *CompilerState) CheckArguments(fn *FuncDef, args []Expr) error {
	if fn.Id.IsBuiltin {
		return nil
	}
	if len(fn.Args) != len(args) {
		return newErr("Invalid number of arguments for %s: expected %d, got %d", fn.Id.Name, len(fn.Args), len(args))
	}
	for i, a := range fn.Args {
		ts, err := GetType(cs, args[i])
		if err != nil {
			return err
		}
		if len(ts) != 1 || !TypesEqual(ts[0], a.Type) {
			return newErr("Assign %v to %s: wrong argument type for %s", ts, a.Type, fn.Id.Name)
		}
	}
	return nil
}

func (cs *CompilerState) CheckReturn(fn *FuncDef, actual []Type) error {
	if !TypeSeqEqual(fn.Returns, actual) {
		return newErr("Assign %v to %v: wrong return type for %s", actual, fn.Returns, fn.Id.Name)
	}
	return nil
}

// --- call graph ---

func (cs *CompilerState) AddInternalCall(callee FuncId) {
	if cs.internalCalls[cs.curFunc] == nil {
		cs.internalCalls[cs.curFunc] = make(map[string]bool)
	}
	cs.internalCalls[cs.curFunc][callee.Name] = true
}

func (cs *CompilerState) AddExternalCall(contractId TypeId, callee FuncId) {
	if cs.externalCalls[cs.curFunc] == nil {
		cs.externalCalls[cs.curFunc] = make(map[externalCallee]bool)
	}
	cs.externalCalls[cs.curFunc][externalCallee{Type: contractId, Func: callee.Name}] = true
}

// --- array refs ---

func (cs *CompilerState) GetArrayRef(key interface{}) (*ArrayRef, bool) {
	r, ok := cs.arrayRefs[key]
	return r, ok
}

func (cs *CompilerState) GetOrCreateArrayRef(key interface{}, make_ func() *ArrayRef) *ArrayRef {
	if r, ok := cs.arrayRefs[key]; ok {
		return r
	}
	r := make_()
	cs.arrayRefs[key] = r
	return r
}

// --- warnings ---

func (cs *CompilerState) addWarning(msg string) {
	if cs.warningSeen[msg] {
		return
	}
	cs.warningSeen[msg] = true
	cs.warnings = append(cs.warnings, msg)
}

func (cs *CompilerState) Warnings() []string {
	out := make([]string, len(cs.warnings))
	copy(out, cs.warnings)
	return out
}

// --- unused checks ---

func (cs *CompilerState) CheckUnusedFields() {
	for name, v := range cs.global.vars {
		if v.Storage != storageField {
			continue
		}
		if !v.used && !v.IsUnused {
			cs.addWarning("Field " + string(cs.selfType) + "." + string(name) + " is unused")
		}
	}
}

func (cs *CompilerState) CheckUnusedLocalVars(funcScope *scope) {
	names := make([]string, 0, len(funcScope.vars))
	for name := range funcScope.vars {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		v := funcScope.vars[Ident(name)]
		if v.Storage != storageLocal || v.IsGenerated {
			continue
		}
		if !v.used && !v.IsUnused {
			cs.addWarning("Local variable " + name + " is unused")
		}
	}
}
