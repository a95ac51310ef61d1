package binding

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
)

type counter struct {
	calls int
}

func (c *counter) scale(a, b float64) float64 {
	c.calls++
	return a * b
}

func newTestModule() *Module {
	m := NewModule("test")
	m.Class("Counter", func() any { return &counter{} }).
		Def("scale", Binary((*counter).scale)).
		Def("calls", Func{Arity: 0, Call: func(self any, _ []float64) (float64, error) {
			return float64(self.(*counter).calls), nil
		}})
	return m
}

func TestConstructCallRelease(t *testing.T) {
	m := newTestModule()

	handle, err := m.Construct("Counter")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if len(handle) < minHandleLength {
		t.Fatalf("handle %q shorter than %d", handle, minHandleLength)
	}
	if m.Instances() != 1 {
		t.Fatalf("expected 1 instance, got %d", m.Instances())
	}

	got, err := m.Call(handle, "scale", []float64{3, 4})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got != 12 {
		t.Errorf("scale(3, 4) = %v, want 12", got)
	}

	// state persists on the same instance
	if _, err := m.Call(handle, "scale", []float64{1, 1}); err != nil {
		t.Fatalf("call: %v", err)
	}
	calls, err := m.Call(handle, "calls", nil)
	if err != nil {
		t.Fatalf("call calls: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %v, want 2", calls)
	}

	if err := m.Release(handle); err != nil {
		t.Fatalf("release: %v", err)
	}
	if m.Instances() != 0 {
		t.Fatalf("expected 0 instances, got %d", m.Instances())
	}
	if _, err := m.Call(handle, "scale", []float64{1, 1}); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("call after release: expected ErrUnknownHandle, got %v", err)
	}
	if err := m.Release(handle); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("double release: expected ErrUnknownHandle, got %v", err)
	}
}

func TestInvokeUsesFreshInstance(t *testing.T) {
	m := newTestModule()

	for i := 0; i < 3; i++ {
		if _, err := m.Invoke("Counter", "scale", []float64{1, 1}); err != nil {
			t.Fatalf("invoke: %v", err)
		}
	}
	calls, err := m.Invoke("Counter", "calls", nil)
	if err != nil {
		t.Fatalf("invoke calls: %v", err)
	}
	if calls != 0 {
		t.Errorf("calls = %v, want 0 on a fresh instance", calls)
	}
	if m.Instances() != 0 {
		t.Errorf("invoke left %d instances behind", m.Instances())
	}
}

func TestErrors(t *testing.T) {
	m := newTestModule()

	if _, err := m.Construct("Missing"); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("construct missing: expected ErrUnknownClass, got %v", err)
	}
	if _, err := m.Invoke("Missing", "scale", []float64{1, 2}); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("invoke missing class: expected ErrUnknownClass, got %v", err)
	}
	if _, err := m.Invoke("Counter", "missing", nil); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("invoke missing method: expected ErrUnknownMethod, got %v", err)
	}

	_, err := m.Invoke("Counter", "scale", []float64{1})
	if !errors.Is(err, ErrArity) {
		t.Fatalf("expected ErrArity, got %v", err)
	}
	var arity *ArityError
	if !errors.As(err, &arity) {
		t.Fatalf("expected *ArityError, got %T", err)
	}
	if arity.Want != 2 || arity.Got != 1 || arity.Method != "Counter.scale" {
		t.Errorf("unexpected arity error: %+v", arity)
	}
	if arity.Error() != "Counter.scale() takes 2 arguments (1 given)" {
		t.Errorf("unexpected message: %q", arity.Error())
	}
}

func TestTypeMismatch(t *testing.T) {
	m := NewModule("test")
	m.Class("Wrong", func() any { return "not a counter" }).
		Def("scale", Binary((*counter).scale))

	if _, err := m.Invoke("Wrong", "scale", []float64{1, 2}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestClassRegistration(t *testing.T) {
	m := newTestModule()

	again := m.Class("Counter", func() any { return nil })
	if again.Name() != "Counter" {
		t.Fatalf("unexpected class %q", again.Name())
	}
	if got := len(m.Describe()); got != 1 {
		t.Fatalf("re-registering added a class: %d classes", got)
	}

	again.Def("scale", Func{Arity: 1, Call: func(any, []float64) (float64, error) { return 7, nil }})
	got, err := m.Invoke("Counter", "scale", []float64{1})
	if err != nil {
		t.Fatalf("invoke redefined: %v", err)
	}
	if got != 7 {
		t.Errorf("redefined scale = %v, want 7", got)
	}

	info := m.Describe()[0]
	if len(info.Methods) != 2 || info.Methods[0].Name != "scale" || info.Methods[0].Arity != 1 {
		t.Errorf("unexpected describe after redefinition: %+v", info)
	}
}

func TestConcurrentInstances(t *testing.T) {
	m := newTestModule()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := m.Construct("Counter")
			if err != nil {
				errs <- err
				return
			}
			got, err := m.Call(h, "scale", []float64{float64(i), 2})
			if err != nil {
				errs <- err
				return
			}
			if got != float64(i*2) {
				errs <- fmt.Errorf("scale(%d, 2) = %v", i, got)
				return
			}
			if err := m.Release(h); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if m.Instances() != 0 {
		t.Errorf("expected all instances released, got %d", m.Instances())
	}
}

func TestHandleGeneratorGrowsOnCollision(t *testing.T) {
	gen := NewHandleGenerator(rand.New(rand.NewSource(1)))

	handle, err := gen.Generate(func(candidate string) bool {
		return len(candidate) == minHandleLength
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(handle) != minHandleLength+1 {
		t.Errorf("expected length %d after collisions, got %q", minHandleLength+1, handle)
	}

	if _, err := gen.Generate(func(string) bool { return true }); err == nil {
		t.Error("expected error when every candidate collides")
	}
}

func TestNilRegistrationsPanic(t *testing.T) {
	expectPanic := func(t *testing.T, register func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		register()
	}

	t.Run("nil constructor", func(t *testing.T) {
		m := NewModule("test")
		expectPanic(t, func() { m.Class("Broken", nil) })
		if _, err := m.Construct("Broken"); !errors.Is(err, ErrUnknownClass) {
			t.Fatalf("construct after rejected registration: %v", err)
		}
	})

	t.Run("nil method", func(t *testing.T) {
		m := newTestModule()
		c := m.Class("Counter", func() any { return &counter{} })
		expectPanic(t, func() { c.Def("broken", Func{Arity: 1}) })
		if _, err := m.Invoke("Counter", "broken", []float64{1}); !errors.Is(err, ErrUnknownMethod) {
			t.Fatalf("invoke after rejected registration: %v", err)
		}
	})
}
