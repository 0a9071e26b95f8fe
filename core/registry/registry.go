package registry

import "github.com/pkg/errors"

var (
	ErrDup = errors.New("registry: duplicate object")
)

type IRegistry[T any] interface {
	Register(name string, v T) error
	Unregister(name string)
	IsRegistered(name string) bool
	Get(name string) T
	GetAll() map[string]T
}
