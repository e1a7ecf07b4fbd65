package contractc

import "github.com/suyanlong/alephium/protocol/ir"

// Method is one compiled function (spec §4.6). All lengths are in
// flattened cell counts.
type Method struct {
	IsPublic             bool       `json:"is_public"`
	UsePreapprovedAssets bool       `json:"use_preapproved_assets"`
	UseAssetsInContract  bool       `json:"use_assets_in_contract"`
	ArgsLength           int        `json:"args_length"`
	LocalsLength         int        `json:"locals_length"`
	ReturnLength         int        `json:"return_length"`
	Instrs               []ir.Instr `json:"instrs"`
}

// StatelessScript is the compiled output of an AssetScript.
type StatelessScript struct {
	Methods []Method `json:"methods"`
}

// StatefulScript is the compiled output of a TxScript: its first
// method must be public, and every other method private.
type StatefulScript struct {
	Methods []Method `json:"methods"`
}

// StatefulContract is the compiled output of a Contract.
type StatefulContract struct {
	FieldLength int      `json:"field_length"`
	Methods     []Method `json:"methods"`
}

// CompileResult bundles the three possible output shapes with the
// ordered, deduplicated warning list produced alongside them (spec §6).
type CompileResult struct {
	Stateless *StatelessScript  `json:"stateless,omitempty"`
	Stateful  *StatefulScript   `json:"stateful,omitempty"`
	Contract  *StatefulContract `json:"contract,omitempty"`
	Warnings  []string          `json:"warnings"`
}

// compileMethod lowers one FuncDef into its Method record.
func compileMethod(cs *CompilerState, fn *FuncDef) (Method, error) {
	body, err := CompileFuncBody(cs, fn)
	if err != nil {
		return Method{}, err
	}
	argsLen := 0
	for _, a := range fn.Args {
		argsLen += FlattenTypeLength([]Type{a.Type})
	}
	return Method{
		IsPublic:             fn.IsPublic,
		UsePreapprovedAssets: fn.UsePreapprovedAssets,
		UseAssetsInContract:  fn.UseAssetsInContract,
		ArgsLength:           argsLen,
		LocalsLength:         body.LocalsLength,
		ReturnLength:         FlattenTypeLength(fn.Returns),
		Instrs:               body.Instrs,
	}, nil
}

// CompileAssetScript compiles an AssetScript into a StatelessScript
// (spec §6: "StatelessScript{methods[]} — from an AssetScript").
func CompileAssetScript(s *AssetScript, registry map[TypeId]*contractInfo, cfg CompilerConfig) (*StatelessScript, []string, error) {
	cs := NewCompilerState(s.Name, KindAssetScript, registry, cfg)
	if err := registerScriptFuncs(cs, s.TemplateVars, s.Funcs); err != nil {
		return nil, nil, err
	}
	methods := make([]Method, 0, len(s.Funcs))
	for _, fn := range s.Funcs {
		m, err := compileMethod(cs, fn)
		if err != nil {
			return nil, nil, err
		}
		methods = append(methods, m)
	}
	return &StatelessScript{Methods: methods}, cs.Warnings(), nil
}

// CompileTxScript compiles a TxScript into a StatefulScript, enforcing
// "first method public, rest private" (spec §4.6).
func CompileTxScript(s *TxScript, registry map[TypeId]*contractInfo, cfg CompilerConfig) (*StatefulScript, []string, error) {
	cs := NewCompilerState(s.Name, KindTxScript, registry, cfg)
	if err := registerScriptFuncs(cs, s.TemplateVars, s.Funcs); err != nil {
		return nil, nil, err
	}
	methods := make([]Method, 0, len(s.Funcs))
	for _, fn := range s.Funcs {
		m, err := compileMethod(cs, fn)
		if err != nil {
			return nil, nil, err
		}
		methods = append(methods, m)
	}
	if err := validateStatefulScriptShape(methods); err != nil {
		return nil, nil, err
	}
	return &StatefulScript{Methods: methods}, cs.Warnings(), nil
}

func validateStatefulScriptShape(methods []Method) error {
	if len(methods) == 0 {
		return newErr("A tx script must declare at least one method")
	}
	if !methods[0].IsPublic {
		return newErr("The first method of a tx script must be public")
	}
	for _, m := range methods[1:] {
		if m.IsPublic {
			return newErr("Only the first method of a tx script may be public")
		}
	}
	return nil
}

// CompileContract compiles the Contract named target inside mc into a
// StatefulContract, following spec §4.4's multi-contract pipeline:
//
//   - build a CompilerState for the target and for every other
//     non-abstract contract (the external-call permission analyser
//     needs their tables); interfaces and abstract contracts get none;
//   - run gen_code on the target contract, populating its own call
//     graphs;
//   - run gen_code on every other non-abstract contract solely to
//     populate its permission table;
//   - run the permission analysis and fold its warnings into the
//     target contract's warning list.
func CompileContract(mc *MultiContract, target TypeId, registry map[TypeId]*contractInfo, cfg CompilerConfig) (*StatefulContract, []string, error) {
	decl, ok := mc.ByName(target)
	if !ok {
		return nil, nil, newErr("Invalid contract index: %s does not exist", target)
	}
	c, ok := decl.(*Contract)
	if !ok {
		return nil, nil, newErr("Invalid contract index: %s is not a contract", target)
	}
	if c.IsAbstract {
		return nil, nil, newErr("Cannot compile abstract contract %s", c.Name)
	}

	targetCS, err := genContractCode(c, registry, cfg)
	if err != nil {
		return nil, nil, err
	}

	checkedTables := map[TypeId]map[string]bool{target: computePermissionTable(targetCS)}
	if err := checkInterfaceImplementingRule(c, targetCS, checkedTables[target]); err != nil {
		return nil, nil, err
	}

	for _, other := range mc.Contracts {
		oc, ok := other.(*Contract)
		if !ok || oc.Name == target || oc.IsAbstract {
			continue
		}
		oCS, err := genContractCode(oc, registry, cfg)
		if err != nil {
			return nil, nil, err
		}
		checkedTables[oc.Name] = computePermissionTable(oCS)
	}

	checkExternalCallPermissions(targetCS, target, checkedTables)

	fieldsLen := 0
	for _, f := range c.Fields {
		fieldsLen += FlattenTypeLength([]Type{f.Type})
	}
	methods := make([]Method, 0, len(c.Funcs))
	for _, fn := range c.Funcs {
		m, err := methodFromCompiled(targetCS, fn)
		if err != nil {
			return nil, nil, err
		}
		methods = append(methods, m)
	}

	return &StatefulContract{FieldLength: fieldsLen, Methods: methods}, targetCS.Warnings(), nil
}

// genContractCode registers and fully code-generates every func of c
// into a fresh CompilerState, and caches the compiled bodies on the
// state so CompileContract need not redo the work for the target
// contract. It is run for the target contract (to populate its call
// graphs for the permission analyser) and for every other non-abstract
// contract (solely for its permission table).
func genContractCode(c *Contract, registry map[TypeId]*contractInfo, cfg CompilerConfig) (*CompilerState, error) {
	kind := KindContract
	if c.IsAbstract {
		kind = KindAbstractContract
	}
	cs := NewCompilerState(c.Name, kind, registry, cfg)
	if err := registerContract(cs, c); err != nil {
		return nil, err
	}
	cs.compiled = make(map[string]*compiledBody, len(c.Funcs))
	for _, fn := range c.Funcs {
		if fn.IsAbstract() {
			continue
		}
		body, err := CompileFuncBody(cs, fn)
		if err != nil {
			return nil, err
		}
		cs.compiled[fn.Id.Name] = body
	}
	cs.CheckUnusedFields()
	return cs, nil
}

func methodFromCompiled(cs *CompilerState, fn *FuncDef) (Method, error) {
	body, ok := cs.compiled[fn.Id.Name]
	if !ok {
		return Method{}, newErr("Function %s is abstract and has no body", fn.Id.Name)
	}
	argsLen := 0
	for _, a := range fn.Args {
		argsLen += FlattenTypeLength([]Type{a.Type})
	}
	return Method{
		IsPublic:             fn.IsPublic,
		UsePreapprovedAssets: fn.UsePreapprovedAssets,
		UseAssetsInContract:  fn.UseAssetsInContract,
		ArgsLength:           argsLen,
		LocalsLength:         body.LocalsLength,
		ReturnLength:         FlattenTypeLength(fn.Returns),
		Instrs:               body.Instrs,
	}, nil
}
