package contractc

import "sort"

// ancestorInfo is what the inheritance resolver memoises per type id:
// the ordered list of ancestors, whose declarations are looked up to
// gather each ancestor's own funcs/events/constants/enums, and the
// depth used to order interface parents.
type ancestorInfo struct {
	ancestors []TypeId // each parent followed by its own ancestors, deduplicated
	depth     int      // longest inheritance chain to any ancestor
}

// inheritanceResolver walks a MultiContract's non-script declarations,
// detects inheritance cycles (spec §4.4 step 1), memoises per-type
// ancestor chains, and then expands each contract/interface's
// funcs/events/constants/enums per the merge rules (step 3-5).
type inheritanceResolver struct {
	mc      *MultiContract
	cache   map[TypeId]*ancestorInfo
	visited map[TypeId]int // 0 = unvisited, 1 = in-progress, 2 = done
}

const (
	visitUnseen = iota
	visitInProgress
	visitDone
)

func newInheritanceResolver(mc *MultiContract) *inheritanceResolver {
	return &inheritanceResolver{
		mc:      mc,
		cache:   make(map[TypeId]*ancestorInfo),
		visited: make(map[TypeId]int),
	}
}

// ResolveInheritance runs the full resolver: cycle detection, field
// validation, and func/event/constant/enum expansion (spec §4.4).
func ResolveInheritance(mc *MultiContract) error {
	r := newInheritanceResolver(mc)
	for _, decl := range mc.Contracts {
		switch d := decl.(type) {
		case *Contract:
			if _, err := r.ancestorsOf(d.Name); err != nil {
				return err
			}
		case *ContractInterface:
			if _, err := r.ancestorsOf(d.Name); err != nil {
				return err
			}
		}
	}
	// Expansion reads every parent as declared, not as already expanded
	// earlier in the loop below, so the result does not depend on the
	// order of mc.Contracts.
	declared := &MultiContract{Contracts: make([]Declaration, 0, len(mc.Contracts))}
	for _, decl := range mc.Contracts {
		switch d := decl.(type) {
		case *Contract:
			cp := *d
			decl = &cp
		case *ContractInterface:
			cp := *d
			decl = &cp
		}
		declared.Contracts = append(declared.Contracts, decl)
	}
	r.mc = declared
	for _, decl := range mc.Contracts {
		switch d := decl.(type) {
		case *Contract:
			if err := r.validateInheritedFields(d); err != nil {
				return err
			}
			if err := r.expandContract(d); err != nil {
				return err
			}
		case *ContractInterface:
			if err := r.expandInterface(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *inheritanceResolver) parentsOf(id TypeId) ([]TypeId, error) {
	decl, ok := r.mc.ByName(id)
	if !ok {
		return nil, newErr("Contract %s does not exist", id)
	}
	switch d := decl.(type) {
	case *Contract:
		parents := make([]TypeId, 0, len(d.Inheritances))
		for _, inh := range d.Inheritances {
			parents = append(parents, inh.Parent)
		}
		return parents, nil
	case *ContractInterface:
		parents := make([]TypeId, 0, len(d.Inheritances))
		for _, inh := range d.Inheritances {
			parents = append(parents, inh.Parent)
		}
		return parents, nil
	default:
		return nil, nil
	}
}

// ancestorsOf returns the memoised, cycle-checked ordered ancestor
// list of id (spec §4.4 step 1: DFS with a visited set, memoised in a
// cache keyed by type id).
func (r *inheritanceResolver) ancestorsOf(id TypeId) (*ancestorInfo, error) {
	if info, ok := r.cache[id]; ok {
		return info, nil
	}
	switch r.visited[id] {
	case visitInProgress:
		return nil, newErr("Cyclic inheritance detected for contract %s", id)
	}
	r.visited[id] = visitInProgress

	parents, err := r.parentsOf(id)
	if err != nil {
		return nil, err
	}

	var ancestors []TypeId
	seen := map[TypeId]bool{}
	depth := 0
	for _, p := range parents {
		pinfo, err := r.ancestorsOf(p)
		if err != nil {
			return nil, err
		}
		if !seen[p] {
			seen[p] = true
			ancestors = append(ancestors, p)
		}
		for _, a := range pinfo.ancestors {
			if !seen[a] {
				seen[a] = true
				ancestors = append(ancestors, a)
			}
		}
		if pinfo.depth+1 > depth {
			depth = pinfo.depth + 1
		}
	}

	info := &ancestorInfo{ancestors: ancestors, depth: depth}
	r.cache[id] = info
	r.visited[id] = visitDone
	return info, nil
}

// validateInheritedFields checks spec §4.4 step 2: each
// ContractInheritance's forwarded field idents must name fields of the
// child whose type/mutability/order exactly matches the parent's own
// field list.
func (r *inheritanceResolver) validateInheritedFields(c *Contract) error {
	for _, inh := range c.Inheritances {
		parentDecl, ok := r.mc.ByName(inh.Parent)
		if !ok {
			return newErr("Contract %s does not exist", inh.Parent)
		}
		parent, ok := parentDecl.(*Contract)
		if !ok {
			continue // interface parents carry no field list to validate
		}
		if len(inh.Fields) != len(parent.Fields) {
			return newErr("Invalid contract inheritance fields for %s extends %s: field count mismatch", c.Name, inh.Parent)
		}
		own := make(map[Ident]Arg, len(c.Fields))
		for _, f := range c.Fields {
			own[f.Name] = f
		}
		for i, fname := range inh.Fields {
			childField, ok := own[fname]
			if !ok {
				return newErr("Invalid contract inheritance fields for %s extends %s: %s is not a field of %s", c.Name, inh.Parent, fname, c.Name)
			}
			parentField := parent.Fields[i]
			if !TypesEqual(childField.Type, parentField.Type) || childField.IsMutable != parentField.IsMutable {
				return newErr("Invalid contract inheritance fields for %s extends %s: %s does not match parent field %s", c.Name, inh.Parent, fname, parentField.Name)
			}
		}
	}
	return nil
}

// depthOf returns the memoised ancestor-chain depth computed in
// ancestorsOf; expandContract/expandInterface use it to order inherited
// interface functions "fewest ancestors first" (spec §4.4 step 3),
// with a stable sort to keep source order deterministic among ties
// (spec §9 Open Question: "an implementation should use a stable
// sort").
func (r *inheritanceResolver) depthOf(id TypeId) int {
	if info, ok := r.cache[id]; ok {
		return info.depth
	}
	return 0
}

func (r *inheritanceResolver) expandContract(c *Contract) error {
	info := r.cache[c.Name]

	var interfaceParents, contractParents []TypeId
	for _, a := range info.ancestors {
		decl, _ := r.mc.ByName(a)
		switch decl.(type) {
		case *ContractInterface:
			interfaceParents = append(interfaceParents, a)
		case *Contract:
			contractParents = append(contractParents, a)
		}
	}
	sort.SliceStable(interfaceParents, func(i, j int) bool {
		return r.depthOf(interfaceParents[i]) < r.depthOf(interfaceParents[j])
	})

	var abstractFuncs, concreteFuncs []*FuncDef
	for _, id := range interfaceParents {
		decl, _ := r.mc.ByName(id)
		iface := decl.(*ContractInterface)
		abstractFuncs = append(abstractFuncs, iface.Funcs...)
	}
	for _, id := range contractParents {
		decl, _ := r.mc.ByName(id)
		parent := decl.(*Contract)
		for _, f := range parent.Funcs {
			if f.IsAbstract() {
				abstractFuncs = append(abstractFuncs, f)
			} else {
				concreteFuncs = append(concreteFuncs, f)
			}
		}
	}
	for _, f := range c.Funcs {
		if f.IsAbstract() {
			abstractFuncs = append(abstractFuncs, f)
		} else {
			concreteFuncs = append(concreteFuncs, f)
		}
	}

	merged, err := mergeFuncs(abstractFuncs, concreteFuncs)
	if err != nil {
		return err
	}
	if !c.IsAbstract {
		for _, f := range merged {
			if f.IsAbstract() {
				return newErr("Contract %s has unimplemented methods: %s", c.Name, f.Id.Name)
			}
		}
	}
	c.Funcs = merged

	interfaceFuncNames := make(map[string]bool)
	for _, id := range interfaceParents {
		decl, _ := r.mc.ByName(id)
		for _, f := range decl.(*ContractInterface).Funcs {
			interfaceFuncNames[f.Id.Name] = true
		}
	}
	c.interfaceFuncCount = len(interfaceFuncNames)

	var events []*EventDef
	for _, id := range interfaceParents {
		decl, _ := r.mc.ByName(id)
		events = append(events, decl.(*ContractInterface).Events...)
	}
	for _, id := range contractParents {
		decl, _ := r.mc.ByName(id)
		events = append(events, decl.(*Contract).Events...)
	}
	events = append(events, c.Events...)
	c.Events = events

	var consts []*ConstantVarDef
	var enums []*EnumDef
	for _, id := range contractParents {
		decl, _ := r.mc.ByName(id)
		parent := decl.(*Contract)
		consts = append(consts, parent.Constants...)
		enums = append(enums, parent.Enums...)
	}
	consts = append(consts, c.Constants...)
	enums = append(enums, c.Enums...)
	c.Constants = consts
	c.Enums = enums

	c.resolvedAncestors = info.ancestors
	return nil
}

func (r *inheritanceResolver) expandInterface(i *ContractInterface) error {
	info := r.cache[i.Name]
	sorted := append([]TypeId(nil), info.ancestors...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return r.depthOf(sorted[a]) < r.depthOf(sorted[b])
	})

	var funcs []*FuncDef
	var events []*EventDef
	for _, id := range sorted {
		decl, ok := r.mc.ByName(id)
		if !ok {
			continue
		}
		parent, ok := decl.(*ContractInterface)
		if !ok {
			continue
		}
		funcs = append(funcs, parent.Funcs...)
		events = append(events, parent.Events...)
	}
	funcs = append(funcs, i.Funcs...)
	events = append(events, i.Events...)
	for _, f := range funcs {
		if !f.IsAbstract() {
			return newErr("Interface %s has implemented methods: %s", i.Name, f.Id.Name)
		}
	}
	i.Funcs = funcs
	i.Events = events
	i.resolvedAncestors = info.ancestors
	return nil
}

// mergeFuncs applies spec §4.4 step 4: merge abstract with
// non-abstract funcs by name, keeping the implementation; the
// implementation's signature (modulo body) must equal the abstract
// declaration's. Duplicate abstract or duplicate concrete names are
// errors.
func mergeFuncs(abstractFuncs, concreteFuncs []*FuncDef) ([]*FuncDef, error) {
	byName := make(map[string]*FuncDef)
	var order []string

	seenAbstract := make(map[string]bool)
	for _, f := range abstractFuncs {
		if seenAbstract[f.Id.Name] {
			return nil, newErr("Function %s is declared abstract multiple times", f.Id.Name)
		}
		seenAbstract[f.Id.Name] = true
		if _, exists := byName[f.Id.Name]; !exists {
			order = append(order, f.Id.Name)
		}
		byName[f.Id.Name] = f
	}

	seenConcrete := make(map[string]bool)
	for _, f := range concreteFuncs {
		if seenConcrete[f.Id.Name] {
			return nil, newErr("Function %s is implemented multiple times", f.Id.Name)
		}
		seenConcrete[f.Id.Name] = true
		if existing, ok := byName[f.Id.Name]; ok && existing.Body == nil {
			if !sameSignature(existing, f) {
				return nil, newErr("Function %s is implemented with wrong signature", f.Id.Name)
			}
		} else if !ok {
			order = append(order, f.Id.Name)
		}
		byName[f.Id.Name] = f
	}

	out := make([]*FuncDef, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

func sameSignature(a, b *FuncDef) bool {
	if a.IsPublic != b.IsPublic || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if !TypesEqual(a.Args[i].Type, b.Args[i].Type) || a.Args[i].IsMutable != b.Args[i].IsMutable {
			return false
		}
	}
	return TypeSeqEqual(a.Returns, b.Returns)
}
