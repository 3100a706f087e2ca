package svsim

// InstanceState is the persistent, per-instance-path state of a
// sequential module: its registers, its memory arrays, and the previous
// cycle's clock values used for edge detection (§3, §4.6). It is created
// on first use and retained across cycles by the caller; sibling
// instances never share one.
type InstanceState struct {
	Vars      map[string]Value
	Mem       map[string][]Value
	PrevClock map[string]Value
	Children  map[string]*InstanceState
}

// NewInstanceState returns an empty top-level sequential state.
func NewInstanceState() *InstanceState {
	return &InstanceState{
		Vars:      map[string]Value{},
		Mem:       map[string][]Value{},
		PrevClock: map[string]Value{},
		Children:  map[string]*InstanceState{},
	}
}

func (s *InstanceState) child(label string) *InstanceState {
	if s.Children == nil {
		s.Children = map[string]*InstanceState{}
	}
	c, ok := s.Children[label]
	if !ok {
		c = NewInstanceState()
		s.Children[label] = c
	}
	return c
}

// pendingWrite is a queued non-blocking assignment awaiting the write
// phase of a cycle.
type pendingWrite struct {
	target Lvalue
	value  Value
	isMem  bool
	memIdx uint64
	hasIdx bool
	idxHi  int
	idxLo  int
}

// StepSequential advances m's persistent state, and the persistent state
// of every sequential instance in its instantiation tree, by one cycle
// (§4.6). inputs must cover every input port of m; state is mutated to
// reflect the committed post-cycle state, and m's output values (read
// from the post-commit environment) are returned.
//
// The cycle runs in two decoupled phases hierarchy-wide: first preEnv
// resolves m's combinational steady state with every descendant's
// registers frozen at their pre-edge values (evalCombFixpoint never
// triggers a child's edge on its own — see tryEvalInstance); only once
// that snapshot exists do commitOwnEdges and stepChildEdges detect edges
// and commit writes, both reading exclusively from preEnv. This keeps a
// child's write from landing before the parent's own always_ff bodies
// have read this cycle's pre-edge values, which a naive per-instance
// recursive step would not guarantee.
func StepSequential(cache *Cache, dir string, m *Module, inputs map[string]Value, state *InstanceState) (map[string]Value, error) {
	ensureDefaultState(m, state)

	preEnv, err := evalCombFixpoint(cache, dir, m, inputs, state)
	if err != nil {
		return nil, err
	}

	if err := commitOwnEdges(m, preEnv, state); err != nil {
		return nil, err
	}
	if err := stepChildEdges(cache, dir, m, preEnv, state); err != nil {
		return nil, err
	}

	postEnv, err := evalCombFixpoint(cache, dir, m, inputs, state)
	if err != nil {
		return nil, err
	}
	out := map[string]Value{}
	for _, p := range m.Outputs() {
		out[p.Name] = postEnv.Vars[p.Name]
	}
	return out, nil
}

// commitOwnEdges detects a rising edge on each always_ff block m declares
// directly and commits its non-blocking writes to state, reading only
// preEnv — m's own pre-edge steady state. It never looks at a child
// instance's always_ff blocks; those are stepChildEdges' job.
func commitOwnEdges(m *Module, preEnv *Env, state *InstanceState) error {
	var pending []pendingWrite
	// Clock samples are recorded only after every block has been checked,
	// so all blocks sharing a clock see the same previous value.
	sampled := map[string]Value{}
	for _, blk := range m.Procedural {
		if blk.Kind != AlwaysFf {
			continue
		}
		cur, ok := preEnv.Vars[blk.Clock]
		if !ok {
			return newErr(KindUndefinedIdentifier, blk.Loc, "clock signal %q not defined", blk.Clock)
		}
		prev := state.PrevClock[blk.Clock]
		triggered := prev.Bits == 0 && cur.Bits != 0
		sampled[blk.Clock] = cur

		if !triggered {
			continue
		}
		shadow := &Env{Vars: cloneVars(preEnv.Vars), Mem: state.Mem, Signed: preEnv.Signed}
		writes, err := execFfBody(blk.Body, shadow, m)
		if err != nil {
			return err
		}
		pending = append(pending, writes...)
	}
	for clk, v := range sampled {
		state.PrevClock[clk] = v
	}
	commitWrites(m, state, pending)
	return nil
}

// stepChildEdges recurses StepSequential into every sequential child
// instance of m, deriving each child's inputs from preEnv rather than
// letting the child sample its own inputs after m's own commit above —
// so every level of the hierarchy steps its edge off the same shared
// pre-edge snapshot, not a mix of pre- and post-edge values.
func stepChildEdges(cache *Cache, dir string, m *Module, preEnv *Env, state *InstanceState) error {
	for i := range m.Instances {
		inst := &m.Instances[i]
		child, err := cache.Resolve(inst.ModuleName, dir)
		if err != nil {
			return err
		}
		if !child.IsSequential() {
			continue
		}
		if isRom, _ := cache.romInfo(child); isRom {
			continue
		}
		childInputs, err := resolveInstanceInputs(child, inst, preEnv)
		if err != nil {
			return err
		}
		if _, err := StepSequential(cache, dir, child, childInputs, state.child(inst.Label)); err != nil {
			return err
		}
	}
	return nil
}

// resolveInstanceInputs evaluates inst's input-port bindings against env,
// the already-stable combinational network of the module declaring inst.
func resolveInstanceInputs(child *Module, inst *Instance, env *Env) (map[string]Value, error) {
	inputs := map[string]Value{}
	for i, p := range child.Inputs() {
		e, ok := lookupBinding(inst, p.Name, i)
		if !ok {
			inputs[p.Name] = NewValue(p.Width, 0)
			continue
		}
		v, err := eval(e, env)
		if err != nil {
			return nil, err
		}
		inputs[p.Name] = NewValue(p.Width, v.Bits)
	}
	return inputs, nil
}

// ensureDefaultState zero-initializes every register an always_ff block
// writes non-blockingly, and every declared memory array, the first time
// they are touched — registers otherwise start undefined, which this
// subset's forgiving, tri-state-free semantics disallow (§9: "educational
// context prefers forgiving semantics").
func ensureDefaultState(m *Module, state *InstanceState) {
	for _, mem := range m.Memories {
		if _, ok := state.Mem[mem.Name]; !ok {
			arr := make([]Value, mem.Depth)
			for i := range arr {
				arr[i] = NewValue(mem.ElementWidth, 0)
			}
			state.Mem[mem.Name] = arr
		}
	}
	for _, blk := range m.Procedural {
		if blk.Kind != AlwaysFf {
			continue
		}
		for _, lv := range collectNonBlockingTargets(blk.Body) {
			if isMemoryName(m, lv.Name) {
				continue
			}
			if _, ok := state.Vars[lv.Name]; ok {
				continue
			}
			w, _ := declaredWidth(m, lv.Name)
			if w == 0 {
				w = 1
			}
			state.Vars[lv.Name] = NewValue(w, 0)
		}
	}
}

func collectNonBlockingTargets(s *Stmt) []Lvalue {
	var out []Lvalue
	var walk func(*Stmt)
	walk = func(s *Stmt) {
		if s == nil {
			return
		}
		switch s.Kind {
		case StmtBlock:
			for _, sub := range s.Body {
				walk(sub)
			}
		case StmtAssign:
			if s.Assign.Kind == NonBlocking {
				out = append(out, s.Assign.Target)
			}
		case StmtIf:
			walk(s.Then)
			walk(s.Else)
		case StmtCase:
			for _, arm := range s.Cases {
				walk(arm.Body)
			}
		}
	}
	walk(s)
	return out
}

// execFfBody runs one triggered always_ff block's statements against
// shadow, applying blocking assignments immediately (visible only within
// this block) and queuing non-blocking assignments for the write phase
// instead of applying them (§4.6 step 3).
func execFfBody(s *Stmt, shadow *Env, m *Module) ([]pendingWrite, error) {
	var pending []pendingWrite
	var walk func(*Stmt) error
	walk = func(s *Stmt) error {
		switch s.Kind {
		case StmtBlock:
			for _, sub := range s.Body {
				if err := walk(sub); err != nil {
					return err
				}
			}
			return nil
		case StmtAssign:
			v, err := eval(s.Assign.Expr, shadow)
			if err != nil {
				return err
			}
			if s.Assign.Kind == Blocking {
				return bindAssign(s.Assign.Target, v, shadow, m)
			}
			return queueNonBlocking(s.Assign.Target, v, shadow, m, &pending)
		case StmtIf:
			c, err := eval(s.Cond, shadow)
			if err != nil {
				return err
			}
			if c.Truthy() {
				return walk(s.Then)
			}
			if s.Else != nil {
				return walk(s.Else)
			}
			return nil
		case StmtCase:
			sel, err := eval(s.Selector, shadow)
			if err != nil {
				return err
			}
			for _, arm := range s.Cases {
				if arm.IsDefault {
					continue
				}
				v, err := eval(arm.Value, shadow)
				if err != nil {
					return err
				}
				if v.Bits == sel.Bits {
					return walk(arm.Body)
				}
			}
			for _, arm := range s.Cases {
				if arm.IsDefault {
					return walk(arm.Body)
				}
			}
			return nil
		}
		return newErr(KindUnsupportedConstruct, Location{}, "unsupported statement kind in always_ff")
	}
	if err := walk(s); err != nil {
		return nil, err
	}
	return pending, nil
}

// queueNonBlocking evaluates a non-blocking assignment's addressing (for
// memory/bit/range targets) against the current shadow and records it as
// a pending write; the value itself was already computed by the caller
// against the pre-write shadow, per §4.6's read-then-write discipline.
func queueNonBlocking(target Lvalue, v Value, shadow *Env, m *Module, pending *[]pendingWrite) error {
	if isMemoryName(m, target.Name) {
		addrV, err := eval(target.AddrExpr, shadow)
		if err != nil {
			return err
		}
		*pending = append(*pending, pendingWrite{target: target, value: v, isMem: true, memIdx: addrV.Bits})
		return nil
	}
	pw := pendingWrite{target: target, value: v}
	switch target.Kind {
	case LvalueBit:
		idxV, err := eval(target.BitIndex, shadow)
		if err != nil {
			return err
		}
		pw.hasIdx = true
		pw.idxHi, pw.idxLo = int(idxV.Bits), int(idxV.Bits)
	case LvalueRange:
		hiV, err := eval(target.RangeHi, shadow)
		if err != nil {
			return err
		}
		loV, err := eval(target.RangeLo, shadow)
		if err != nil {
			return err
		}
		pw.hasIdx = true
		pw.idxHi, pw.idxLo = int(hiV.Bits), int(loV.Bits)
	}
	*pending = append(*pending, pw)
	return nil
}

// commitWrites applies every pending non-blocking write to state
// atomically, per §4.6 step 3's write phase and §5's "observe the same
// pre-cycle state regardless of textual order" (all writes here were
// computed from the same pre-cycle shadow, independent of application
// order).
func commitWrites(m *Module, state *InstanceState, pending []pendingWrite) {
	for _, w := range pending {
		if w.isMem {
			arr := state.Mem[w.target.Name]
			if int(w.memIdx) < 0 || int(w.memIdx) >= len(arr) {
				continue // out-of-range writes are silently dropped (§9)
			}
			arr[w.memIdx] = NewValue(int(arr[w.memIdx].Width), w.value.Bits)
			continue
		}
		commitScalarWrite(m, state, w)
	}
}

// commitScalarWrite applies one resolved (non-memory) pending write to
// state.Vars, using the bit/range indices already resolved against the
// pre-write shadow rather than re-evaluating index expressions now.
func commitScalarWrite(m *Module, state *InstanceState, w pendingWrite) {
	name := w.target.Name
	width, _ := declaredWidth(m, name)
	if width == 0 {
		width = 1
	}
	if w.target.Kind == LvalueWhole {
		state.Vars[name] = NewValue(width, w.value.Bits)
		return
	}
	base, ok := state.Vars[name]
	if !ok {
		base = NewValue(width, 0)
	}
	hi, lo := w.idxHi, w.idxLo
	if lo < 0 || hi < lo || hi >= int(base.Width) {
		return // out-of-range writes are silently dropped (§9)
	}
	rw := hi - lo + 1
	clearMask := mask(rw) << uint(lo)
	newBits := (base.Bits &^ clearMask) | ((w.value.Bits & mask(rw)) << uint(lo))
	state.Vars[name] = NewValue(int(base.Width), newBits)
}
