package object

// Environment is a lexically scoped name→value mapping used by the
// tree-walking evaluator. Lookup walks the Outer chain; insertion is always
// local to the current Environment.
type Environment struct {
	store map[string]Object
	outer *Environment
}

// NewEnvironment creates an empty top-level Environment.
func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]Object)}
}

// NewEnclosedEnvironment creates an Environment for a function call, chained
// to outer (the environment captured by the Function being invoked).
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

// Get looks up name in this Environment, then walks outer links until it's
// found or the chain is exhausted.
func (e *Environment) Get(name string) (Object, bool) {
	obj, ok := e.store[name]
	if !ok && e.outer != nil {
		return e.outer.Get(name)
	}
	return obj, ok
}

// Set binds name to val in this Environment (never in an outer one) and
// returns val, so `let` and assignment expressions can chain.
func (e *Environment) Set(name string, val Object) Object {
	e.store[name] = val
	return val
}
