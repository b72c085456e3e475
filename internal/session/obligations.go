package session

import "errors"

// obligations tracks release functions for held resources. Each resource
// registers once on acquisition and is released exactly once, whichever
// path (transition, error, reset, close) gets there first.
type obligations struct {
	order []string
	fns   map[string]func() error
}

func newObligations() *obligations {
	return &obligations{fns: make(map[string]func() error)}
}

// register adds a release function. An existing obligation under the same
// name is fired first so nothing is dropped unreleased.
func (o *obligations) register(name string, fn func() error) error {
	err := o.fire(name)
	o.fns[name] = fn
	o.order = append(o.order, name)
	return err
}

func (o *obligations) fire(name string) error {
	fn, ok := o.fns[name]
	if !ok {
		return nil
	}
	delete(o.fns, name)
	for i, n := range o.order {
		if n == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return fn()
}

func (o *obligations) held(name string) bool {
	_, ok := o.fns[name]
	return ok
}

// fireAll releases everything, newest first.
func (o *obligations) fireAll() error {
	var errs []error
	for len(o.order) > 0 {
		name := o.order[len(o.order)-1]
		if err := o.fire(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
