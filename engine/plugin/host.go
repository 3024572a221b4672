package plugin

import (
	"fmt"
	stdplugin "plugin"
)

// Host loads a built shared library and resolves its three C-ABI-style
// entry points. Grounded on
// streamspace-dev-streamspace/api/internal/plugins/discovery.go's
// loadDynamicPlugin/getPluginHandler pattern (plugin.Open + symbol
// Lookup); adapted from that pack's single "NewPlugin" factory symbol to
// the three lifecycle symbols spec.md §4.5 specifies directly
// (Initialize/Execute/Teardown), since no cgo or purego dependency
// appears anywhere in the retrieved examples — see DESIGN.md for why the
// standard library's plugin.Open is the grounded substitute for a true
// C-ABI dlopen here.
type Host struct {
	Name       string
	initialize func(string) int32
	execute    func(string) int32
	teardown   func() int32
}

// Load opens the shared library at soPath and resolves its Initialize,
// Execute and Teardown symbols.
func Load(name, soPath string) (*Host, error) {
	p, err := stdplugin.Open(soPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open plugin library %q: %s", ErrLoadFailed, soPath, err)
	}

	initFn, err := lookupFunc(p, "Initialize")
	if err != nil {
		return nil, err
	}
	execFn, err := lookupFunc(p, "Execute")
	if err != nil {
		return nil, err
	}
	teardownSym, err := p.Lookup("Teardown")
	if err != nil {
		return nil, fmt.Errorf("%w: plugin %q missing Teardown symbol: %s", ErrLoadFailed, name, err)
	}
	teardownFn, ok := teardownSym.(func() int32)
	if !ok {
		return nil, fmt.Errorf("%w: plugin %q Teardown symbol has unexpected signature", ErrLoadFailed, name)
	}

	return &Host{Name: name, initialize: initFn, execute: execFn, teardown: teardownFn}, nil
}

func lookupFunc(p *stdplugin.Plugin, symbol string) (func(string) int32, error) {
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s symbol: %s", ErrLoadFailed, symbol, err)
	}
	fn, ok := sym.(func(string) int32)
	if !ok {
		return nil, fmt.Errorf("%w: %s symbol has unexpected signature", ErrLoadFailed, symbol)
	}
	return fn, nil
}

// Initialize calls the plugin's Initialize entry point with its
// JSON-encoded configuration. Its return code is currently ignored by the
// host (spec.md §4.5, §9 Open Question #1): the call either happens or the
// symbol call itself panics/traps at the FFI boundary, but a non-zero
// return never fails the load.
func (h *Host) Initialize(configJSON string) error {
	h.initialize(configJSON)
	return nil
}

// Execute calls the plugin's Execute entry point with its JSON-encoded
// per-invocation configuration. Its return code is discarded (spec.md
// §4.6.4: "Currently always reports success (the return code is not
// propagated)") — a plugin task always succeeds once Execute has been
// called, same as spec.md §9 Open Question #1 leaves this unresolved.
func (h *Host) Execute(configJSON string) (ok bool) {
	h.execute(configJSON)
	return true
}

// Teardown calls the plugin's Teardown entry point. It is safe to call
// at most once per Host; the Runner calls it exactly once, after the
// final stage, regardless of task outcomes (spec.md §4.5).
func (h *Host) Teardown() error {
	if code := h.teardown(); code != 0 {
		return fmt.Errorf("plugin %q Teardown returned code %d", h.Name, code)
	}
	return nil
}
