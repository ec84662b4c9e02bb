package il

// Global is a module-level datum: a string literal, or any other constant
// or mutable module-scoped value a front end needs addressable storage for.
type Global struct {
	ID          GlobalID
	Name        string
	Type        Type
	Initializer []byte // raw bytes for Str literals; front-end defined otherwise
	IsConst     bool
}

// ExternDecl declares a function implemented in native runtime code. The
// callee is resolved at VM load time against internal/extern's registry.
type ExternDecl struct {
	Name string
	Sig  Signature
}

// Module is the top-level compilation unit: functions, globals and extern
// declarations, plus the IL version that produced it.
type Module struct {
	ILVersion string
	Functions []*Function
	Globals   []*Global
	Externs   []*ExternDecl
}

// NewModule creates an empty module stamped with the core's current IL
// version.
func NewModule() *Module {
	return &Module{ILVersion: "0.1.2"}
}

// FunctionByName finds a function by name, or nil.
func (m *Module) FunctionByName(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ExternByName finds an extern declaration by name, or nil.
func (m *Module) ExternByName(name string) *ExternDecl {
	for _, e := range m.Externs {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// GlobalByID finds a global by id, or nil.
func (m *Module) GlobalByID(id GlobalID) *Global {
	for _, g := range m.Globals {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// AddFunction appends a function to the module.
func (m *Module) AddFunction(f *Function) { m.Functions = append(m.Functions, f) }

// AddExtern declares an extern on the module.
func (m *Module) AddExtern(e *ExternDecl) { m.Externs = append(m.Externs, e) }

// InternString adds a Str-typed global holding the given bytes and returns
// its id. Callers wanting literal deduplication across a module should use
// Builder.InternString instead, which consults a table; this is the raw
// non-deduplicating primitive Builder builds on.
func (m *Module) InternString(data []byte) GlobalID {
	id := GlobalID(len(m.Globals))
	m.Globals = append(m.Globals, &Global{
		ID:          id,
		Name:        "",
		Type:        TypeStr,
		Initializer: data,
		IsConst:     true,
	})
	return id
}
