// Package arity holds the process-wide table of callable shapes, indexed by
// argument count and whether the callable returns a value.
//
// The table is filled once, on first use, and never changes afterwards.
package arity

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/funvibe/accessor/internal/config"
	"github.com/funvibe/accessor/internal/diagnostics"
)

// MaxArgs is the largest supported argument count, instance slot included.
const MaxArgs = config.MaxArgs

// Template is a generic callable shape with Args parameter slots and an
// optional return slot. Bind substitutes concrete types into it.
type Template struct {
	Args   int
	Return bool
}

// Bind instantiates the template. out must be empty for a no-return
// template and non-empty otherwise.
func (t Template) Bind(in, out []reflect.Type, variadic bool) (reflect.Type, error) {
	if len(in) != t.Args {
		return nil, fmt.Errorf("template %s: got %d parameter types", t, len(in))
	}
	if t.Return != (len(out) > 0) {
		return nil, fmt.Errorf("template %s: got %d result types", t, len(out))
	}
	if variadic && (len(in) == 0 || in[len(in)-1].Kind() != reflect.Slice) {
		return nil, fmt.Errorf("template %s: variadic shape needs a trailing slice parameter", t)
	}
	return reflect.FuncOf(in, out, variadic), nil
}

func (t Template) String() string {
	params := make([]string, t.Args)
	for i := range params {
		params[i] = fmt.Sprintf("T%d", i+1)
	}
	if t.Return {
		return "Func<" + strings.Join(append(params, "TResult"), ", ") + ">"
	}
	if t.Args == 0 {
		return "Action"
	}
	return "Action<" + strings.Join(params, ", ") + ">"
}

// Tables are the two parallel shape arrays.
type Tables struct {
	WithReturn    [MaxArgs + 1]Template
	WithoutReturn [MaxArgs + 1]Template
}

var (
	once        sync.Once
	table       *Tables
	initialized int
)

// EnsureInitialized fills the table on first call. Later calls do nothing.
func EnsureInitialized() {
	once.Do(func() {
		table = build()
		initialized++
	})
}

func build() *Tables {
	t := &Tables{}
	for n := 0; n <= MaxArgs; n++ {
		t.WithReturn[n] = Template{Args: n, Return: true}
		t.WithoutReturn[n] = Template{Args: n}
	}
	return t
}

// Table returns a copy of the frozen table, initializing it if needed.
func Table() Tables {
	EnsureInitialized()
	return *table
}

// Initializations reports how many times the table has been derived.
func Initializations() int { return initialized }

// Lookup selects the template for args parameters.
func Lookup(args int, hasReturn bool) (Template, error) {
	EnsureInitialized()
	if args < 0 || args > MaxArgs {
		return Template{}, diagnostics.NewTooManyArgumentsError("", "", args, MaxArgs)
	}
	if hasReturn {
		return table.WithReturn[args], nil
	}
	return table.WithoutReturn[args], nil
}
