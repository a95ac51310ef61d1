package calculator

import "github.com/meandmytram/pybind-example/internal/binding"

const (
	// ModuleName is the name foreign callers import.
	ModuleName = "calculator"
	// ClassName is the name of the bound Calculator class.
	ClassName = "Calculator"

	// MethodAdd and MethodSubtract name the two bound methods. Both take two
	// operands.
	MethodAdd      = "add"
	MethodSubtract = "subtract"
)

// NewModule returns the calculator module with the Calculator class bound.
func NewModule() *binding.Module {
	m := binding.NewModule(ModuleName)
	m.Class(ClassName, func() any { return New() }).
		Def(MethodAdd, binding.Binary((*Calculator).Add)).
		Def(MethodSubtract, binding.Binary((*Calculator).Subtract))
	return m
}
