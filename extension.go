package erre

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"unicode"
)

// Extension registry errors.
var (
	ErrExtensionExists  = errors.New("extension already installed")
	ErrInvalidExtension = errors.New("invalid extension")
)

// Built-in extension names. They are installed at package init and can
// never be replaced.
//
// The built-ins reserve the names the stream itself gives meaning to.
// Their values only report the control outcome they stand for: the cancel
// entry returns KindCancel and is not a stage result, so stages still
// cancel with Cancel[T](); the off entry returns Unsubscribe, which a
// handler may return directly.
const (
	CancelExtension      Name = "cancel"
	UnsubscribeExtension Name = "off"
)

// extensions is the process-wide registry of named helpers. It is meant to
// be populated during program start-up and read afterwards.
var extensions = struct {
	fns map[Name]any
	mu  sync.RWMutex
}{
	fns: map[Name]any{
		CancelExtension:      func() Kind { return KindCancel },
		UnsubscribeExtension: func() Reply { return Unsubscribe },
	},
}

// Install registers fn as a process-wide helper under name.
//
// name must be a non-empty identifier (a letter or underscore followed by
// letters, digits or underscores) and fn must be a non-nil function.
// Installing a name twice, including the built-in names, fails with
// ErrExtensionExists; nothing already registered is affected.
//
//	err := erre.Install("double", func(n int) int { return n * 2 })
func Install(name Name, fn any) error {
	if !isIdentifier(name) {
		return fmt.Errorf("%w: name %q is not an identifier", ErrInvalidExtension, name)
	}
	if fn == nil {
		return fmt.Errorf("%w: %s is nil", ErrInvalidExtension, name)
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("%w: %s is a %T, not a function", ErrInvalidExtension, name, fn)
	}

	extensions.mu.Lock()
	defer extensions.mu.Unlock()
	if _, exists := extensions.fns[name]; exists {
		return fmt.Errorf("%w: %s", ErrExtensionExists, name)
	}
	extensions.fns[name] = fn
	return nil
}

// Extension returns the helper installed under name.
//
//	if fn, ok := erre.Extension("double"); ok {
//	    double := fn.(func(int) int)
//	}
func Extension(name Name) (any, bool) {
	extensions.mu.RLock()
	defer extensions.mu.RUnlock()
	fn, ok := extensions.fns[name]
	return fn, ok
}

// Extensions returns the sorted names of every installed helper.
func Extensions() []Name {
	extensions.mu.RLock()
	defer extensions.mu.RUnlock()
	names := make([]Name, 0, len(extensions.fns))
	for name := range extensions.fns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
