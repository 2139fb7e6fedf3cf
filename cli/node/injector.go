package node

import (
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/xerrors"
)

// ErrNotFound is the error matched by the error of an injector that has no
// dependency compatible with the requested type.
var ErrNotFound = xerrors.New("dependency not found")

// notFoundError is returned when no dependency matches the requested type.
type notFoundError struct {
	typ reflect.Type
}

func (err notFoundError) Error() string {
	return fmt.Sprintf("couldn't find dependency for '%v'", err.typ)
}

// Is implements the interface used by xerrors.Is to match ErrNotFound.
func (err notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// reflectInjector is a dependency injector that uses reflection to resolve
// specific interfaces.
//
// - implements node.Injector
type reflectInjector struct {
	sync.Mutex
	mapper map[reflect.Type]interface{}
}

// NewInjector returns a empty injector.
func NewInjector() Injector {
	return &reflectInjector{
		mapper: make(map[reflect.Type]interface{}),
	}
}

// Resolve implements node.Injector. It populates the given interface with the
// first compatible dependency.
func (inj *reflectInjector) Resolve(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return xerrors.New("expect a pointer")
	}

	if !rv.Elem().IsValid() {
		return xerrors.Errorf("reflect value '%v' is invalid", rv)
	}

	inj.Lock()
	defer inj.Unlock()

	for typ, value := range inj.mapper {
		if typ.AssignableTo(rv.Elem().Type()) {
			rv.Elem().Set(reflect.ValueOf(value))
			return nil
		}
	}

	return notFoundError{typ: rv.Elem().Type()}
}

// Inject implements node.Injector. It injects the dependency to be available
// later on. A dependency of the same type replaces the previous one.
func (inj *reflectInjector) Inject(v interface{}) {
	inj.Lock()
	inj.mapper[reflect.TypeOf(v)] = v
	inj.Unlock()
}
