// Package binding exposes Go values to foreign callers as named modules,
// classes and methods. Callers address everything by name and exchange
// float64 operands, so any transport that can carry a string and a list of
// numbers can drive a registered class.
package binding

import (
	"errors"
	"fmt"
	"sync"
)

// Errors returned by Module operations. They are wrapped with the name that
// failed to resolve, so match them with errors.Is.
var (
	// ErrUnknownClass means no class of that name is registered.
	ErrUnknownClass = errors.New("unknown class")
	// ErrUnknownMethod means the class has no method of that name.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrUnknownHandle means the handle was never issued or was released.
	ErrUnknownHandle = errors.New("unknown handle")
	// ErrArity is matched by every *ArityError.
	ErrArity = errors.New("wrong number of arguments")
	// ErrTypeMismatch means a method was called with a receiver of the
	// wrong type.
	ErrTypeMismatch = errors.New("receiver type mismatch")
)

// ArityError reports a call with the wrong number of arguments.
type ArityError struct {
	Method string
	Want   int
	Got    int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s() takes %d arguments (%d given)", e.Method, e.Want, e.Got)
}

// Is lets errors.Is(err, ErrArity) match.
func (e *ArityError) Is(target error) bool {
	return target == ErrArity
}

// Method is the calling convention for every bound method.
type Method func(self any, args []float64) (float64, error)

// Func is a Method together with the number of arguments it accepts.
type Func struct {
	Arity int
	Call  Method
}

// Binary adapts a typed two-operand method to the Method convention.
func Binary[T any](fn func(self T, a, b float64) float64) Func {
	return Func{
		Arity: 2,
		Call: func(self any, args []float64) (float64, error) {
			recv, ok := self.(T)
			if !ok {
				return 0, fmt.Errorf("%w: got %T", ErrTypeMismatch, self)
			}
			return fn(recv, args[0], args[1]), nil
		},
	}
}

// Class is a constructor plus a set of named methods.
type Class struct {
	name    string
	init    func() any
	mu      sync.RWMutex
	order   []string
	methods map[string]Func
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// Def registers a method. Defining the same name again replaces it.
// Def panics if fn.Call is nil.
func (c *Class) Def(name string, fn Func) *Class {
	if fn.Call == nil {
		panic("binding: nil method " + c.name + "." + name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.methods[name]; !exists {
		c.order = append(c.order, name)
	}
	c.methods[name] = fn
	return c
}

func (c *Class) lookup(name string) (Func, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.methods[name]
	return m, ok
}

func (c *Class) call(self any, name string, args []float64) (float64, error) {
	m, ok := c.lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, c.name, name)
	}
	if len(args) != m.Arity {
		return 0, &ArityError{Method: c.name + "." + name, Want: m.Arity, Got: len(args)}
	}
	return m.Call(self, args)
}

// MethodInfo describes one bound method.
type MethodInfo struct {
	Name  string `json:"name"`
	Arity int    `json:"arity"`
}

// ClassInfo describes one bound class.
type ClassInfo struct {
	Name    string       `json:"name"`
	Methods []MethodInfo `json:"methods"`
}

type instance struct {
	class *Class
	value any
}

// Module is a named collection of classes plus the table of live instances.
// It is safe for concurrent use.
type Module struct {
	name string
	gen  *HandleGenerator

	mu        sync.Mutex
	order     []string
	classes   map[string]*Class
	instances map[string]instance
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{
		name:      name,
		gen:       NewHandleGenerator(nil),
		classes:   make(map[string]*Class),
		instances: make(map[string]instance),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Class registers a class with a no-argument constructor. Registering an
// existing name returns the class already registered. Class panics if init
// is nil.
func (m *Module) Class(name string, init func() any) *Class {
	if init == nil {
		panic("binding: nil constructor for class " + name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.classes[name]; ok {
		return c
	}
	c := &Class{name: name, init: init, methods: make(map[string]Func)}
	m.classes[name] = c
	m.order = append(m.order, name)
	return c
}

// Construct creates an instance of class and returns its handle.
func (m *Module) Construct(class string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[class]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownClass, m.name, class)
	}

	handle, err := m.gen.Generate(func(candidate string) bool {
		_, taken := m.instances[candidate]
		return taken
	})
	if err != nil {
		return "", err
	}
	m.instances[handle] = instance{class: c, value: c.init()}
	return handle, nil
}

// Call invokes method on the instance identified by handle.
func (m *Module) Call(handle, method string, args []float64) (float64, error) {
	m.mu.Lock()
	inst, ok := m.instances[handle]
	m.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	return inst.class.call(inst.value, method, args)
}

// Release discards the instance identified by handle.
func (m *Module) Release(handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	delete(m.instances, handle)
	return nil
}

// Invoke constructs a temporary instance of class, calls method on it and
// discards it.
func (m *Module) Invoke(class, method string, args []float64) (float64, error) {
	m.mu.Lock()
	c, ok := m.classes[class]
	m.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownClass, m.name, class)
	}
	return c.call(c.init(), method, args)
}

// Instances returns the number of live instances.
func (m *Module) Instances() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// Describe lists classes and their methods in registration order.
func (m *Module) Describe() []ClassInfo {
	m.mu.Lock()
	classes := make([]*Class, 0, len(m.order))
	for _, name := range m.order {
		classes = append(classes, m.classes[name])
	}
	m.mu.Unlock()

	out := make([]ClassInfo, 0, len(classes))
	for _, c := range classes {
		c.mu.RLock()
		info := ClassInfo{Name: c.name, Methods: make([]MethodInfo, 0, len(c.order))}
		for _, name := range c.order {
			info.Methods = append(info.Methods, MethodInfo{Name: name, Arity: c.methods[name].Arity})
		}
		c.mu.RUnlock()
		out = append(out, info)
	}
	return out
}
