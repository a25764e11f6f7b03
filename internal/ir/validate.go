package ir

import (
	"errors"
	"fmt"

	"rill/internal/types"
)

// Validate checks the module-level input contract. A failure here is an
// upstream bug (malformed IR, missing callee signature), not a user-facing
// diagnostic: callers must abort checking the offending function.
func Validate(m *Module) error {
	if m == nil {
		return errors.New("ir: nil module")
	}
	if m.Types == nil {
		return errors.New("ir: module has no type table")
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := ValidateFunc(f, m.Types, m.Sigs); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateFunc checks one function's input contract.
func ValidateFunc(f *Func, typesIn *types.Interner, sigs *SignatureTable) error {
	if f == nil {
		return nil
	}
	var errs []error
	if err := validateLabels(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateLocals(f, typesIn); err != nil {
		errs = append(errs, err)
	}
	if err := validateCallTargets(f, sigs); err != nil {
		errs = append(errs, err)
	}
	if err := validateReturns(f, typesIn); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateLabels checks that labels are unique and every transfer resolves.
func validateLabels(f *Func) error {
	var errs []error
	defined := make(map[string]bool)
	for i := range f.Body {
		s := &f.Body[i]
		if s.Kind != StmtLabel {
			continue
		}
		if s.Label.Name == "" {
			errs = append(errs, fmt.Errorf("stmt %d: empty label", i))
			continue
		}
		if defined[s.Label.Name] {
			errs = append(errs, fmt.Errorf("stmt %d: duplicate label %q", i, s.Label.Name))
		}
		defined[s.Label.Name] = true
	}
	check := func(i int, label string) {
		if label == "" {
			errs = append(errs, fmt.Errorf("stmt %d: empty transfer target", i))
			return
		}
		if !defined[label] {
			errs = append(errs, fmt.Errorf("stmt %d: unresolved label %q", i, label))
		}
	}
	for i := range f.Body {
		s := &f.Body[i]
		switch s.Kind {
		case StmtGoto:
			check(i, s.Goto.Label)
		case StmtBranch:
			check(i, s.Branch.Then)
			check(i, s.Branch.Else)
		case StmtSwitch:
			seen := make(map[string]bool)
			for _, c := range s.Switch.Cases {
				if seen[c.Tag] {
					errs = append(errs, fmt.Errorf("stmt %d: duplicate switch arm for tag %s", i, c.Tag))
				}
				seen[c.Tag] = true
				check(i, c.Label)
			}
			check(i, s.Switch.Default)
		}
	}
	return errors.Join(errs...)
}

// validateLocals checks that every referenced local exists and carries a
// resolved type.
func validateLocals(f *Func, typesIn *types.Interner) error {
	var errs []error

	for i, loc := range f.Locals {
		if loc.Type == types.NoTypeID {
			errs = append(errs, fmt.Errorf("local L%d (%s): unknown type", i, loc.Name))
			continue
		}
		if _, ok := typesIn.Lookup(loc.Type); !ok {
			errs = append(errs, fmt.Errorf("local L%d (%s): type %d is not in the type table", i, loc.Name, loc.Type))
		}
	}
	if len(f.Params) > len(f.Locals) {
		errs = append(errs, fmt.Errorf("%d params but only %d locals", len(f.Params), len(f.Locals)))
	}

	localExists := func(id LocalID) bool {
		return id >= 0 && int(id) < len(f.Locals)
	}
	checkPlace := func(p Place, ctx string) {
		if !localExists(p.Local) {
			errs = append(errs, fmt.Errorf("%s: local L%d does not exist", ctx, p.Local))
		}
	}
	checkOperand := func(op *Operand, ctx string) {
		switch op.Kind {
		case OperandCopy, OperandMove, OperandBorrow, OperandBorrowMut:
			checkPlace(op.Place, ctx)
		}
	}

	var scratch []*Operand
	for i := range f.Body {
		s := &f.Body[i]
		ctx := fmt.Sprintf("stmt %d", i)
		switch s.Kind {
		case StmtAssign:
			checkPlace(s.Assign.Dst, ctx)
			scratch = s.Assign.Src.Operands(scratch[:0])
			for _, op := range scratch {
				checkOperand(op, ctx)
			}
		case StmtCall:
			if s.Call.HasDst {
				checkPlace(s.Call.Dst, ctx)
			}
			for j := range s.Call.Args {
				checkOperand(&s.Call.Args[j], ctx)
			}
		case StmtDrop:
			checkPlace(s.Drop.Place, ctx)
		case StmtBranch:
			checkOperand(&s.Branch.Cond, ctx)
		case StmtSwitch:
			checkOperand(&s.Switch.Value, ctx)
		case StmtReturn:
			if s.Return.HasValue {
				checkOperand(&s.Return.Value, ctx)
			}
		}
	}
	return errors.Join(errs...)
}

// validateCallTargets checks that every call resolves to a known signature
// with a matching arity.
func validateCallTargets(f *Func, sigs *SignatureTable) error {
	var errs []error
	for i := range f.Body {
		s := &f.Body[i]
		if s.Kind != StmtCall {
			continue
		}
		sig, ok := sigs.Lookup(s.Call.Callee)
		if !ok {
			errs = append(errs, fmt.Errorf("stmt %d: no signature for call target %q", i, s.Call.Callee))
			continue
		}
		if len(sig.Params) != len(s.Call.Args) {
			errs = append(errs, fmt.Errorf("stmt %d: call to %q has %d args, signature wants %d",
				i, s.Call.Callee, len(s.Call.Args), len(sig.Params)))
		}
	}
	return errors.Join(errs...)
}

// validateReturns checks return arity against the declared result type.
func validateReturns(f *Func, typesIn *types.Interner) error {
	var errs []error
	unit := typesIn.Builtins().Unit
	isUnit := f.Result.Type == types.NoTypeID || f.Result.Type == unit
	for i := range f.Body {
		s := &f.Body[i]
		if s.Kind != StmtReturn {
			continue
		}
		if isUnit && s.Return.HasValue {
			errs = append(errs, fmt.Errorf("stmt %d: return with value in unit function", i))
		}
		if !isUnit && !s.Return.HasValue {
			errs = append(errs, fmt.Errorf("stmt %d: return without value in non-unit function", i))
		}
	}
	return errors.Join(errs...)
}
