package resource

// Schema is the output shape of one operation.
type Schema[T any] interface {
	Name() string
	Present(T) any
}

type schemaFunc[T any] struct {
	name string
	fn   func(T) any
}

// NewSchema adapts a presenter function into a Schema.
func NewSchema[T any](name string, present func(T) any) Schema[T] {
	return schemaFunc[T]{name: name, fn: present}
}

func (s schemaFunc[T]) Name() string { return s.name }

func (s schemaFunc[T]) Present(v T) any { return s.fn(v) }
