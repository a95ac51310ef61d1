// Package calculator provides basic arithmetic operations.
package calculator

// Number is any built-in integer or floating point type.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Add returns the sum of a and b.
func Add[T Number](a, b T) T {
	return a + b
}

// Subtract returns a minus b.
func Subtract[T Number](a, b T) T {
	return a - b
}

// Calculator is the stateless value exposed to foreign callers.
type Calculator struct{}

// New returns a Calculator. It takes no arguments.
func New() *Calculator {
	return &Calculator{}
}

// Add returns the sum of a and b.
func (c *Calculator) Add(a, b float64) float64 {
	return Add(a, b)
}

// Subtract returns a minus b.
func (c *Calculator) Subtract(a, b float64) float64 {
	return Subtract(a, b)
}
