// Package inspect checks accessor manifests against Go source without
// running the program. Lookups follow the run-time rules: the shallowest
// embedding depth wins, several candidates there are ambiguous, scope
// filters by export status and routines are bounded by the arity table.
// Unexported methods are outside reflect's method sets, so they are reported
// missing here just as the default resolver reports them.
package inspect

import (
	"fmt"
	"go/token"
	"go/types"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/accessor/internal/arity"
	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/member"
)

// Result is the outcome of checking one entry. Err is a *diagnostics.Error
// for member problems and a plain error for malformed entries.
type Result struct {
	Entry Entry
	// Found describes the resolved member, e.g. "field string User.email".
	Found string
	Err   error
}

// Inspector loads Go packages and answers member queries on them.
type Inspector struct {
	// dir is where package patterns are resolved.
	dir string

	// loadedPkgs caches loaded packages by pattern.
	loadedPkgs map[string]*packages.Package
}

// NewInspector creates an Inspector resolving patterns from dir.
func NewInspector(dir string) *Inspector {
	return &Inspector{
		dir:        dir,
		loadedPkgs: make(map[string]*packages.Package),
	}
}

// Check loads m's package and checks every entry. The error is only for
// load failures; member problems are reported per Result.
func (ins *Inspector) Check(m *Manifest) ([]Result, error) {
	pkg, err := ins.load(m.Package)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(m.Accessors))
	for _, e := range m.Accessors {
		found, err := ins.checkEntry(pkg, e)
		results = append(results, Result{Entry: e, Found: found, Err: err})
	}
	return results, nil
}

// load loads a single package using go/packages.
func (ins *Inspector) load(pattern string) (*packages.Package, error) {
	if pkg, ok := ins.loadedPkgs[pattern]; ok {
		return pkg, nil
	}
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax |
			packages.NeedImports,
		Dir: ins.dir,
		Env: append(os.Environ(), "GOWORK=off"),
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", pattern, err)
	}
	if len(pkgs) != 1 {
		return nil, fmt.Errorf("loading %s: matched %d packages, want 1", pattern, len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		var errs []string
		for _, e := range pkg.Errors {
			errs = append(errs, e.Msg)
		}
		return nil, fmt.Errorf("package errors in %s:\n  %s", pattern, strings.Join(errs, "\n  "))
	}
	ins.loadedPkgs[pattern] = pkg
	return pkg, nil
}

func (ins *Inspector) checkEntry(pkg *packages.Package, e Entry) (string, error) {
	scope, ok := member.ParseScope(e.Scope)
	if !ok {
		return "", fmt.Errorf("unknown scope %q", e.Scope)
	}
	switch {
	case e.Field != "":
		return checkField(pkg, e, scope.ForInstance())
	case e.Method != "":
		return checkMethod(pkg, e, scope.ForInstance())
	case e.StaticField != "":
		return checkStaticField(pkg, e, scope.ForStatic())
	case e.StaticMethod != "":
		return checkStaticMethod(pkg, e, scope.ForStatic())
	}
	return "", fmt.Errorf("entry names no member")
}

func lookupType(pkg *packages.Package, name string) (types.Type, error) {
	obj := pkg.Types.Scope().Lookup(name)
	if obj == nil {
		return nil, diagnostics.NewMemberNotFoundError(name, "", "no such type in "+pkg.PkgPath)
	}
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, diagnostics.NewMemberNotFoundError(name, "", "not a type in "+pkg.PkgPath)
	}
	return tn.Type(), nil
}

// lookup finds name on owner as Go selects it. A nil object with a non-nil
// index is a collision at the shallowest depth.
func lookup(pkg *packages.Package, owner types.Type, typeName, name string) (types.Object, error) {
	obj, index, _ := types.LookupFieldOrMethod(owner, true, pkg.Types, name)
	if obj == nil {
		if index != nil {
			return nil, diagnostics.NewAmbiguousMemberError(typeName, name, 2)
		}
		return nil, diagnostics.NewMemberNotFoundError(typeName, name, "")
	}
	return obj, nil
}

func checkField(pkg *packages.Package, e Entry, scope member.Scope) (string, error) {
	owner, err := lookupType(pkg, e.Type)
	if err != nil {
		return "", err
	}
	obj, err := lookup(pkg, owner, e.Type, e.Field)
	if err != nil {
		return "", err
	}
	v, ok := obj.(*types.Var)
	if !ok || !v.IsField() {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.Field, "not a field")
	}
	if !scope.Allows(v.Exported()) {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.Field, "field, scope "+scope.String())
	}
	if err := checkValue(pkg, e, v.Type()); err != nil {
		return "", err
	}
	return "field " + qualified(pkg, v.Type()) + " " + e.Type + "." + v.Name(), nil
}

func checkStaticField(pkg *packages.Package, e Entry, scope member.Scope) (string, error) {
	obj := pkg.Types.Scope().Lookup(e.StaticField)
	v, ok := obj.(*types.Var)
	if !ok {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.StaticField, "no package-level variable")
	}
	if !scope.Allows(v.Exported()) {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.StaticField, "static field, scope "+scope.String())
	}
	if err := checkValue(pkg, e, v.Type()); err != nil {
		return "", err
	}
	return "static field " + qualified(pkg, v.Type()) + " " + v.Name(), nil
}

// checkValue applies the getter rule, and the setter rule when asked.
func checkValue(pkg *packages.Package, e Entry, declared types.Type) error {
	if e.Value == "" {
		return nil
	}
	name, _ := e.Member()
	want, err := evalType(pkg, e.Value)
	if err != nil {
		return err
	}
	incompatible := diagnostics.NewIncompatibleValueTypeError(e.Type, name, qualified(pkg, declared), e.Value)
	if !types.AssignableTo(declared, want) {
		return incompatible
	}
	if e.Setter && !types.AssignableTo(want, declared) {
		return incompatible
	}
	return nil
}

func checkMethod(pkg *packages.Package, e Entry, scope member.Scope) (string, error) {
	owner, err := lookupType(pkg, e.Type)
	if err != nil {
		return "", err
	}
	obj, err := lookup(pkg, owner, e.Type, e.Method)
	if err != nil {
		return "", err
	}
	fn, ok := obj.(*types.Func)
	if !ok {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.Method, "not a method")
	}
	if !scope.Allows(fn.Exported()) {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.Method, "routine, scope "+scope.String())
	}
	if !fn.Exported() {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.Method, "unexported methods resolve only through a Registry")
	}
	return checkRoutine(pkg, e, e.Method, fn, 1)
}

func checkStaticMethod(pkg *packages.Package, e Entry, scope member.Scope) (string, error) {
	fn, ok := pkg.Types.Scope().Lookup(e.StaticMethod).(*types.Func)
	if !ok {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.StaticMethod, "no package-level function")
	}
	if !scope.Allows(fn.Exported()) {
		return "", diagnostics.NewMemberNotFoundError(e.Type, e.StaticMethod, "routine, scope "+scope.String())
	}
	return checkRoutine(pkg, e, e.StaticMethod, fn, 0)
}

// checkRoutine matches the signature, if given, and the arity bound.
// instance is the number of implicit slots before the parameters.
func checkRoutine(pkg *packages.Package, e Entry, name string, fn *types.Func, instance int) (string, error) {
	sig := fn.Type().(*types.Signature)
	if e.Signature != nil {
		if err := matchSignature(pkg, sig, e.Signature); err != nil {
			return "", diagnostics.NewMemberNotFoundError(e.Type, name, err.Error())
		}
	}
	args := sig.Params().Len() + instance
	if _, err := arity.Lookup(args, sig.Results().Len() > 0); err != nil {
		return "", diagnostics.NewTooManyArgumentsError(e.Type, name, args, arity.MaxArgs)
	}
	return "routine " + types.TypeString(sig, types.RelativeTo(pkg.Types)) + " " + fn.Name(), nil
}

func matchSignature(pkg *packages.Package, sig *types.Signature, want []string) error {
	if sig.Params().Len() != len(want) {
		return fmt.Errorf("signature %v: routine takes %d parameters", want, sig.Params().Len())
	}
	for i, text := range want {
		t, err := evalType(pkg, text)
		if err != nil {
			return err
		}
		if !types.Identical(sig.Params().At(i).Type(), t) {
			return fmt.Errorf("signature %v: parameter %d is %s", want, i, qualified(pkg, sig.Params().At(i).Type()))
		}
	}
	return nil
}

// evalType evaluates a type expression in the package scope.
func evalType(pkg *packages.Package, expr string) (types.Type, error) {
	tv, err := types.Eval(token.NewFileSet(), pkg.Types, token.NoPos, expr)
	if err != nil {
		return nil, fmt.Errorf("type %q: %w", expr, err)
	}
	if !tv.IsType() {
		return nil, fmt.Errorf("%q is not a type", expr)
	}
	return tv.Type, nil
}

func qualified(pkg *packages.Package, t types.Type) string {
	return types.TypeString(t, types.RelativeTo(pkg.Types))
}
