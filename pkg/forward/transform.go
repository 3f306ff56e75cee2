package forward

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// transform holds a compiled transform_js program. Runtimes are pooled and
// never shared between concurrent calls.
type transform struct {
	program *goja.Program
	mu      sync.Mutex
	pool    []*goja.Runtime
}

func compileTransform(source string) (*transform, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	program, err := goja.Compile("transform_js", "var transform = "+source, false)
	if err != nil {
		return nil, fmt.Errorf("compile transform_js: %w", err)
	}
	tr := &transform{program: program}
	vm, err := tr.runtime()
	if err != nil {
		return nil, err
	}
	tr.release(vm)
	return tr, nil
}

func (t *transform) runtime() (*goja.Runtime, error) {
	t.mu.Lock()
	if n := len(t.pool); n > 0 {
		vm := t.pool[n-1]
		t.pool = t.pool[:n-1]
		t.mu.Unlock()
		return vm, nil
	}
	t.mu.Unlock()

	vm := goja.New()
	if _, err := vm.RunProgram(t.program); err != nil {
		return nil, fmt.Errorf("compile transform_js: %w", err)
	}
	if _, ok := goja.AssertFunction(vm.Get("transform")); !ok {
		return nil, fmt.Errorf("transform_js must define a function")
	}
	return vm, nil
}

func (t *transform) release(vm *goja.Runtime) {
	t.mu.Lock()
	t.pool = append(t.pool, vm)
	t.mu.Unlock()
}

// apply runs the transform over a JSON round-tripped copy of payload so the
// script never mutates the caller's value.
func (t *transform) apply(payload interface{}) (interface{}, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode transform input: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decode transform input: %w", err)
	}

	vm, err := t.runtime()
	if err != nil {
		return nil, err
	}
	defer t.release(vm)

	fn, _ := goja.AssertFunction(vm.Get("transform"))
	result, err := fn(goja.Undefined(), vm.ToValue(input))
	if err != nil {
		return nil, fmt.Errorf("execute transform_js: %w", err)
	}
	if goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, fmt.Errorf("transform_js returned no payload")
	}
	return result.Export(), nil
}
