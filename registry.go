package pickle

// ProxyRegistry is the host extension point for GLOBAL/STACK_GLOBAL/INST/
// OBJ/NEWOBJ/NEWOBJ_EX: a two-level mapping module → (name → factory). It
// is the only way foreign types enter the result graph. Unlike the
// reference Python implementation, which resolves (module, name) by live
// import and calls whatever arbitrary object it finds there, this decoder
// never resolves anything the host hasn't explicitly registered.
type ProxyRegistry struct {
	types map[string]map[string]Factory
}

// NewProxyRegistry returns an empty registry.
func NewProxyRegistry() *ProxyRegistry {
	return &ProxyRegistry{types: make(map[string]map[string]Factory)}
}

// Register adds a factory under (module, name). Registering the same pair
// twice is an error.
func (r *ProxyRegistry) Register(module, name string, factory Factory) error {
	names, ok := r.types[module]
	if !ok {
		names = make(map[string]Factory)
		r.types[module] = names
	}
	if _, exists := names[name]; exists {
		return newErr(KindMalformedOperand, "proxy already registered: %s.%s", module, name)
	}
	names[name] = factory
	return nil
}

// Lookup returns the factory registered for (module, name), or an
// UnregisteredProxy error.
func (r *ProxyRegistry) Lookup(module, name string) (Factory, error) {
	names, ok := r.types[module]
	if ok {
		if factory, ok := names[name]; ok {
			return factory, nil
		}
	}
	return nil, newErr(KindUnregisteredProxy, "unregistered proxy: %s.%s", module, name)
}
