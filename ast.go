package svsim

// Direction is a port's signal direction.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Port is a module input or output (§3).
type Port struct {
	Name      string
	Direction Direction
	Width     int
	Signed    bool
}

// Net is an intermediate signal declared with wire/logic/reg.
type Net struct {
	Name   string
	Width  int
	Signed bool
}

// Memory is a `reg [W-1:0] name [D-1:0]` declaration, or one implied by a
// ROM primitive.
type Memory struct {
	Name          string
	ElementWidth  int
	Depth         int
}

// AssignKind distinguishes the three assignment flavors of §3. Blocking
// and non-blocking are never collapsed into one node: the difference is
// semantic, not syntactic (§9).
type AssignKind int

const (
	Continuous AssignKind = iota
	Blocking
	NonBlocking
)

// LvalueKind identifies which of the four lvalue shapes an Lvalue is.
type LvalueKind int

const (
	LvalueWhole LvalueKind = iota
	LvalueBit
	LvalueRange
	LvalueMemElem
)

// Lvalue is an assignment target: a whole signal, a single bit, a
// contiguous bit range, or a memory element (§3).
type Lvalue struct {
	Kind LvalueKind
	Name string

	// LvalueBit
	BitIndex Expr

	// LvalueRange
	RangeHi Expr
	RangeLo Expr

	// LvalueMemElem
	AddrExpr Expr
}

// Assignment is a continuous or procedural (blocking/non-blocking)
// assignment of an expression to an lvalue.
type Assignment struct {
	Kind   AssignKind
	Target Lvalue
	Expr   Expr
}

// EdgePolarity is the trigger polarity of an always_ff clock. Only
// positive-edge triggering is supported (§4.2).
type EdgePolarity int

const (
	PosEdge EdgePolarity = iota
)

// BlockKind distinguishes always_comb from always_ff.
type BlockKind int

const (
	AlwaysComb BlockKind = iota
	AlwaysFf
)

// Stmt is a statement inside a procedural block: an assignment, an
// if/else, a case/default, or a nested block. Exactly one of the typed
// fields is populated, selected by Kind.
type StmtKind int

const (
	StmtAssign StmtKind = iota
	StmtIf
	StmtCase
	StmtBlock
)

type Stmt struct {
	Kind StmtKind

	// StmtAssign
	Assign *Assignment

	// StmtIf
	Cond Expr
	Then *Stmt
	Else *Stmt

	// StmtCase
	Selector Expr
	Cases    []CaseArm

	// StmtBlock
	Body []*Stmt
}

// CaseArm is one `value: statement` arm of a case block, or the default
// arm when IsDefault is true (Value is then unused).
type CaseArm struct {
	Value     Expr
	IsDefault bool
	Body      *Stmt
}

// ProceduralBlock is an always_comb or always_ff block (§3).
type ProceduralBlock struct {
	Kind   BlockKind
	Clock  string // AlwaysFf only
	Edge   EdgePolarity
	Body   *Stmt // always a StmtBlock
	Loc    Location
}

// Instance is a child-module instantiation with named or positional port
// bindings, normalized to named bindings by the parser (§3).
type Instance struct {
	ModuleName string
	Label      string
	Bindings   map[string]Expr
	Loc        Location
}

// Module is the parsed AST of one `module … endmodule` declaration (§3).
type Module struct {
	Name          string
	Ports         []Port
	Nets          []Net
	Memories      []Memory
	Continuous    []Assignment
	Procedural    []*ProceduralBlock
	Instances     []Instance
	Loc           Location

	portIndex map[string]*Port
}

// PortByName returns the named port, or nil if none exists.
func (m *Module) PortByName(name string) *Port {
	if m.portIndex == nil {
		m.portIndex = make(map[string]*Port, len(m.Ports))
		for i := range m.Ports {
			m.portIndex[m.Ports[i].Name] = &m.Ports[i]
		}
	}
	if p, ok := m.portIndex[name]; ok {
		return p
	}
	return nil
}

// IsSequential reports whether m contains at least one always_ff block
// (§4.6's definition of "sequential").
func (m *Module) IsSequential() bool {
	for _, b := range m.Procedural {
		if b.Kind == AlwaysFf {
			return true
		}
	}
	return false
}

// Inputs returns the module's input ports, in declaration order.
func (m *Module) Inputs() []Port {
	var out []Port
	for _, p := range m.Ports {
		if p.Direction == Input {
			out = append(out, p)
		}
	}
	return out
}

// Outputs returns the module's output ports, in declaration order.
func (m *Module) Outputs() []Port {
	var out []Port
	for _, p := range m.Ports {
		if p.Direction == Output {
			out = append(out, p)
		}
	}
	return out
}
