package borrow

import (
	"testing"

	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/source"
	"rill/internal/types"
)

func sp(n uint32) source.Span {
	return source.Span{File: 0, Start: n, End: n + 1}
}

type testEnv struct {
	tin    *types.Interner
	str    types.TypeID
	num    types.TypeID
	flag   types.TypeID
	refStr types.TypeID
	mutStr types.TypeID
}

func newTestEnv() *testEnv {
	tin := types.NewInterner()
	b := tin.Builtins()
	return &testEnv{
		tin:    tin,
		str:    b.String,
		num:    b.Int,
		flag:   b.Bool,
		refStr: tin.Ref(b.String, false),
		mutStr: tin.Ref(b.String, true),
	}
}

func mustCheck(t *testing.T, fn *ir.Func, tin *types.Interner, sigs *ir.SignatureTable) *Result {
	t.Helper()
	res, err := CheckFunc(fn, tin, sigs, Options{})
	if err != nil {
		t.Fatalf("CheckFunc(%s): %v", fn.Name, err)
	}
	return res
}

func countCode(res *Result, code diag.Code) int {
	n := 0
	for _, d := range res.Diags.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}

func requireCode(t *testing.T, res *Result, code diag.Code) diag.Diagnostic {
	t.Helper()
	for _, d := range res.Diags.Items() {
		if d.Code == code {
			return d
		}
	}
	t.Fatalf("expected %s, got %d diagnostics: %v", code.ID(), res.Diags.Len(), diagSummary(res))
	return diag.Diagnostic{}
}

func forbidCode(t *testing.T, res *Result, code diag.Code) {
	t.Helper()
	for _, d := range res.Diags.Items() {
		if d.Code == code {
			t.Fatalf("unexpected %s: %s", code.ID(), d.Message)
		}
	}
}

func diagSummary(res *Result) []string {
	var out []string
	for _, d := range res.Diags.Items() {
		out = append(out, d.Code.ID()+": "+d.Message)
	}
	return out
}

func requireAccepted(t *testing.T, res *Result) {
	t.Helper()
	if !res.Accepted {
		t.Fatalf("expected acceptance, got: %v", diagSummary(res))
	}
}

func TestSharedBorrowsCoexist(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("shared_pair")
	x := b.Local("x", env.str, sp(1))
	r1 := b.Local("r1", env.refStr, sp(2))
	r2 := b.Local("r2", env.refStr, sp(3))
	y1 := b.Local("y1", env.str, sp(4))
	y2 := b.Local("y2", env.str, sp(5))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("hi"))
	b.AssignOp(sp(11), ir.PlaceOf(r1), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(12), ir.PlaceOf(r2), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(13), ir.PlaceOf(y1), ir.Copy(ir.PlaceOf(r1).Deref()))
	b.AssignOp(sp(14), ir.PlaceOf(y2), ir.Copy(ir.PlaceOf(r2).Deref()))
	b.Return(sp(15))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestExclusiveBorrowAfterSharedEnds(t *testing.T) {
	// The shared borrow's last use precedes the exclusive one: regions do
	// not overlap, so this is fine.
	env := newTestEnv()
	mutNum := env.tin.Ref(env.num, true)
	refNum := env.tin.Ref(env.num, false)

	b := ir.NewFuncBuilder("nll")
	x := b.Local("x", env.num, sp(1))
	r := b.Local("r", refNum, sp(2))
	y := b.Local("y", env.num, sp(3))
	m := b.Local("m", mutNum, sp(4))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.IntConst(1))
	b.AssignOp(sp(11), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(12), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(r).Deref()))
	b.AssignOp(sp(13), ir.PlaceOf(m), ir.BorrowMut(ir.PlaceOf(x)))
	b.AssignOp(sp(14), ir.PlaceOf(m).Deref(), ir.IntConst(2))
	b.Return(sp(15))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestConflictingExclusiveBorrow(t *testing.T) {
	env := newTestEnv()
	refNum := env.tin.Ref(env.num, false)
	mutNum := env.tin.Ref(env.num, true)

	b := ir.NewFuncBuilder("excl_overlap")
	x := b.Local("x", env.num, sp(1))
	m := b.Local("m", mutNum, sp(2))
	r := b.Local("r", refNum, sp(3))
	y := b.Local("y", env.num, sp(4))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.IntConst(1))
	b.AssignOp(sp(11), ir.PlaceOf(m), ir.BorrowMut(ir.PlaceOf(x)))
	b.AssignOp(sp(12), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(13), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(m).Deref()))
	b.Return(sp(14))

	res := mustCheck(t, b.Build(), env.tin, nil)
	if res.Accepted {
		t.Fatal("expected rejection")
	}
	d := requireCode(t, res, diag.OwnConflictingBorrow)
	if d.Primary != sp(12) {
		t.Errorf("conflict reported at %v, want %v", d.Primary, sp(12))
	}
	if len(d.Notes) == 0 || d.Notes[0].Span != sp(11) {
		t.Errorf("expected note at the exclusive borrow, got %v", d.Notes)
	}
}

func TestWriteWhileShared(t *testing.T) {
	env := newTestEnv()
	refNum := env.tin.Ref(env.num, false)

	b := ir.NewFuncBuilder("write_under_loan")
	x := b.Local("x", env.num, sp(1))
	r := b.Local("r", refNum, sp(2))
	y := b.Local("y", env.num, sp(3))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.IntConst(1))
	b.AssignOp(sp(11), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(12), ir.PlaceOf(x), ir.IntConst(2))
	b.AssignOp(sp(13), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(r).Deref()))
	b.Return(sp(14))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d := requireCode(t, res, diag.OwnUseWhileBorrowed)
	if d.Primary != sp(12) {
		t.Errorf("conflict reported at %v, want %v", d.Primary, sp(12))
	}
}

func TestMoveWhileBorrowed(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("move_under_loan")
	x := b.Local("x", env.str, sp(1))
	r := b.Local("r", env.refStr, sp(2))
	tl := b.Local("t", env.str, sp(3))
	y := b.Local("y", env.str, sp(4))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("s"))
	b.AssignOp(sp(11), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(12), ir.PlaceOf(tl), ir.Move(ir.PlaceOf(x)))
	b.AssignOp(sp(13), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(r).Deref()))
	b.Return(sp(14))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d := requireCode(t, res, diag.OwnUseWhileBorrowed)
	if d.Primary != sp(12) {
		t.Errorf("conflict reported at %v, want %v", d.Primary, sp(12))
	}
}

func TestUseAfterMove(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("use_after_move")
	s := b.Local("s", env.str, sp(1))
	d := b.Local("d", env.str, sp(2))
	u := b.Local("u", env.str, sp(3))

	b.AssignOp(sp(10), ir.PlaceOf(s), ir.StringConst("s"))
	b.AssignOp(sp(11), ir.PlaceOf(d), ir.Move(ir.PlaceOf(s)))
	b.AssignOp(sp(12), ir.PlaceOf(u), ir.Copy(ir.PlaceOf(s)))
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	dg := requireCode(t, res, diag.OwnUseAfterMove)
	if dg.Primary != sp(12) {
		t.Errorf("use reported at %v, want %v", dg.Primary, sp(12))
	}
	if len(dg.Notes) == 0 || dg.Notes[0].Span != sp(11) {
		t.Errorf("expected note at the move site, got %v", dg.Notes)
	}
}

func TestDuplicableValuesNeverMove(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("copy_scalars")
	x := b.Local("x", env.num, sp(1))
	y := b.Local("y", env.num, sp(2))
	z := b.Local("z", env.num, sp(3))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.IntConst(7))
	b.AssignOp(sp(11), ir.PlaceOf(y), ir.Move(ir.PlaceOf(x)))
	b.AssignOp(sp(12), ir.PlaceOf(z), ir.Move(ir.PlaceOf(x)))
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestUninitializedOnOnePath(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("half_init")
	c := b.Param("c", env.flag, "", sp(1))
	x := b.Local("x", env.str, sp(2))
	y := b.Local("y", env.str, sp(3))

	b.Branch(sp(10), ir.Copy(ir.PlaceOf(c)), "then", "join")
	b.Label("then")
	b.AssignOp(sp(11), ir.PlaceOf(x), ir.StringConst("v"))
	b.Goto("join")
	b.Label("join")
	b.AssignOp(sp(12), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(x)))
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d := requireCode(t, res, diag.OwnUseOfUninit)
	if d.Primary != sp(12) {
		t.Errorf("use reported at %v, want %v", d.Primary, sp(12))
	}
}

func TestBothBranchesInitialize(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("full_init")
	c := b.Param("c", env.flag, "", sp(1))
	x := b.Local("x", env.str, sp(2))
	y := b.Local("y", env.str, sp(3))

	b.Branch(sp(10), ir.Copy(ir.PlaceOf(c)), "then", "else")
	b.Label("then")
	b.AssignOp(sp(11), ir.PlaceOf(x), ir.StringConst("a"))
	b.Goto("join")
	b.Label("else")
	b.AssignOp(sp(12), ir.PlaceOf(x), ir.StringConst("b"))
	b.Goto("join")
	b.Label("join")
	b.AssignOp(sp(13), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(x)))
	b.Return(sp(14))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestLoopCarriedMove(t *testing.T) {
	// A move inside a loop body is a use-after-move on the second trip.
	env := newTestEnv()
	b := ir.NewFuncBuilder("loop_move")
	c := b.Param("c", env.flag, "", sp(1))
	s := b.Local("s", env.str, sp(2))
	d := b.Local("d", env.str, sp(3))

	b.AssignOp(sp(10), ir.PlaceOf(s), ir.StringConst("s"))
	b.Label("loop")
	b.Branch(sp(11), ir.Copy(ir.PlaceOf(c)), "body", "exit")
	b.Label("body")
	b.AssignOp(sp(12), ir.PlaceOf(d), ir.Move(ir.PlaceOf(s)))
	b.Goto("loop")
	b.Label("exit")
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d2 := requireCode(t, res, diag.OwnUseAfterMove)
	if d2.Primary != sp(12) {
		t.Errorf("use reported at %v, want %v", d2.Primary, sp(12))
	}
}

func TestLoopReinitAccepted(t *testing.T) {
	// Reinitializing before the back edge heals the state at the header.
	env := newTestEnv()
	b := ir.NewFuncBuilder("loop_reinit")
	c := b.Param("c", env.flag, "", sp(1))
	s := b.Local("s", env.str, sp(2))
	d := b.Local("d", env.str, sp(3))

	b.AssignOp(sp(10), ir.PlaceOf(s), ir.StringConst("s"))
	b.Label("loop")
	b.Branch(sp(11), ir.Copy(ir.PlaceOf(c)), "body", "exit")
	b.Label("body")
	b.AssignOp(sp(12), ir.PlaceOf(d), ir.Move(ir.PlaceOf(s)))
	b.AssignOp(sp(13), ir.PlaceOf(s), ir.StringConst("again"))
	b.Goto("loop")
	b.Label("exit")
	b.Return(sp(14))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestDisjointFieldMovesAccepted(t *testing.T) {
	env := newTestEnv()
	pair := env.tin.NewStruct("Pair", []types.Field{
		{Name: "a", Type: env.str},
		{Name: "b", Type: env.str},
	})

	b := ir.NewFuncBuilder("split_pair")
	p := b.Local("p", pair, sp(1))
	a := b.Local("a", env.str, sp(2))
	bb := b.Local("b", env.str, sp(3))

	b.Assign(sp(10), ir.PlaceOf(p), ir.RValue{Kind: ir.RValueStructLit, StructLit: ir.StructLit{
		Type: pair,
		Fields: []ir.StructLitField{
			{Name: "a", Value: ir.StringConst("x")},
			{Name: "b", Value: ir.StringConst("y")},
		},
	}})
	b.AssignOp(sp(11), ir.PlaceOf(a), ir.Move(ir.PlaceOf(p).Field("a", 0)))
	b.AssignOp(sp(12), ir.PlaceOf(bb), ir.Move(ir.PlaceOf(p).Field("b", 1)))
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestDisjointFieldBorrowsAccepted(t *testing.T) {
	env := newTestEnv()
	pair := env.tin.NewStruct("Pair", []types.Field{
		{Name: "a", Type: env.str},
		{Name: "b", Type: env.str},
	})

	b := ir.NewFuncBuilder("split_borrows")
	p := b.Local("p", pair, sp(1))
	ma := b.Local("ma", env.mutStr, sp(2))
	rb := b.Local("rb", env.refStr, sp(3))
	yb := b.Local("yb", env.str, sp(4))

	b.Assign(sp(10), ir.PlaceOf(p), ir.RValue{Kind: ir.RValueStructLit, StructLit: ir.StructLit{
		Type: pair,
		Fields: []ir.StructLitField{
			{Name: "a", Value: ir.StringConst("x")},
			{Name: "b", Value: ir.StringConst("y")},
		},
	}})
	b.AssignOp(sp(11), ir.PlaceOf(ma), ir.BorrowMut(ir.PlaceOf(p).Field("a", 0)))
	b.AssignOp(sp(12), ir.PlaceOf(rb), ir.Borrow(ir.PlaceOf(p).Field("b", 1)))
	b.AssignOp(sp(13), ir.PlaceOf(ma).Deref(), ir.StringConst("z"))
	b.AssignOp(sp(14), ir.PlaceOf(yb), ir.Copy(ir.PlaceOf(rb).Deref()))
	b.Return(sp(15))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestPartiallyMovedWholeUse(t *testing.T) {
	env := newTestEnv()
	pair := env.tin.NewStruct("Pair", []types.Field{
		{Name: "a", Type: env.str},
		{Name: "b", Type: env.str},
	})

	b := ir.NewFuncBuilder("partial_use")
	p := b.Local("p", pair, sp(1))
	a := b.Local("a", env.str, sp(2))
	q := b.Local("q", pair, sp(3))

	b.Assign(sp(10), ir.PlaceOf(p), ir.RValue{Kind: ir.RValueStructLit, StructLit: ir.StructLit{
		Type: pair,
		Fields: []ir.StructLitField{
			{Name: "a", Value: ir.StringConst("x")},
			{Name: "b", Value: ir.StringConst("y")},
		},
	}})
	b.AssignOp(sp(11), ir.PlaceOf(a), ir.Move(ir.PlaceOf(p).Field("a", 0)))
	b.AssignOp(sp(12), ir.PlaceOf(q), ir.Move(ir.PlaceOf(p)))
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d := requireCode(t, res, diag.OwnUseAfterMove)
	if d.Primary != sp(12) {
		t.Errorf("use reported at %v, want %v", d.Primary, sp(12))
	}
}

func TestReinitHealsPartialMove(t *testing.T) {
	env := newTestEnv()
	pair := env.tin.NewStruct("Pair", []types.Field{
		{Name: "a", Type: env.str},
		{Name: "b", Type: env.str},
	})

	b := ir.NewFuncBuilder("heal_partial")
	p := b.Local("p", pair, sp(1))
	a := b.Local("a", env.str, sp(2))
	q := b.Local("q", pair, sp(3))

	b.Assign(sp(10), ir.PlaceOf(p), ir.RValue{Kind: ir.RValueStructLit, StructLit: ir.StructLit{
		Type: pair,
		Fields: []ir.StructLitField{
			{Name: "a", Value: ir.StringConst("x")},
			{Name: "b", Value: ir.StringConst("y")},
		},
	}})
	b.AssignOp(sp(11), ir.PlaceOf(a), ir.Move(ir.PlaceOf(p).Field("a", 0)))
	b.AssignOp(sp(12), ir.PlaceOf(p).Field("a", 0), ir.StringConst("z"))
	b.AssignOp(sp(13), ir.PlaceOf(q), ir.Move(ir.PlaceOf(p)))
	b.Return(sp(14))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestIndexMovesAreConservative(t *testing.T) {
	// Two index projections are never provably distinct.
	env := newTestEnv()
	arr := env.tin.Array(env.str, 4)

	b := ir.NewFuncBuilder("index_moves")
	xs := b.Local("xs", arr, sp(1))
	a := b.Local("a", env.str, sp(2))
	bb := b.Local("b", env.str, sp(3))

	b.Assign(sp(10), ir.PlaceOf(xs), ir.RValue{Kind: ir.RValueArrayLit, ArrayLit: ir.ArrayLit{
		Elems: []ir.Operand{ir.StringConst("p"), ir.StringConst("q"), ir.StringConst("r"), ir.StringConst("s")},
	}})
	b.AssignOp(sp(11), ir.PlaceOf(a), ir.Move(ir.PlaceOf(xs).IndexAt(0)))
	b.AssignOp(sp(12), ir.PlaceOf(bb), ir.Move(ir.PlaceOf(xs).IndexAt(1)))
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d := requireCode(t, res, diag.OwnUseAfterMove)
	if d.Primary != sp(12) {
		t.Errorf("use reported at %v, want %v", d.Primary, sp(12))
	}
}

func TestReturnReferenceToLocal(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("escape_local")
	b.SetResult(env.refStr, "")
	x := b.Local("x", env.str, sp(1))
	r := b.Local("r", env.refStr, sp(2))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("s"))
	b.AssignOp(sp(11), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(x)))
	b.ReturnValue(sp(12), ir.Move(ir.PlaceOf(r)))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d := requireCode(t, res, diag.OwnDanglingReference)
	if d.Primary != sp(12) {
		t.Errorf("escape reported at %v, want %v", d.Primary, sp(12))
	}
}

func TestReturnReferenceThroughParam(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("pass_through")
	b.SetResult(env.refStr, "'a")
	p := b.Param("p", env.refStr, "'a", sp(1))
	r := b.Local("r", env.refStr, sp(2))

	b.AssignOp(sp(10), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(p).Deref()))
	b.ReturnValue(sp(11), ir.Move(ir.PlaceOf(r)))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestReturnReferenceRegionMismatch(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("region_mismatch")
	b.SetResult(env.refStr, "'b")
	p := b.Param("p", env.refStr, "'a", sp(1))
	r := b.Local("r", env.refStr, sp(2))

	b.AssignOp(sp(10), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(p).Deref()))
	b.ReturnValue(sp(11), ir.Move(ir.PlaceOf(r)))

	res := mustCheck(t, b.Build(), env.tin, ir.NewSignatureTable(nil))
	requireCode(t, res, diag.OwnDanglingReference)
}

func TestDeclaredOutlivesAllowsReturn(t *testing.T) {
	env := newTestEnv()
	sigs := ir.NewSignatureTable([]ir.Signature{{
		Name: "with_outlives",
		Params: []ir.SigParam{
			{Type: env.refStr, Region: "'a"},
		},
		Result:   ir.SigResult{Type: env.refStr, Region: "'b"},
		Outlives: []ir.RegionPair{{Longer: "'a", Shorter: "'b"}},
	}})

	b := ir.NewFuncBuilder("with_outlives")
	b.SetResult(env.refStr, "'b")
	p := b.Param("p", env.refStr, "'a", sp(1))
	r := b.Local("r", env.refStr, sp(2))

	b.AssignOp(sp(10), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(p).Deref()))
	b.ReturnValue(sp(11), ir.Move(ir.PlaceOf(r)))

	res := mustCheck(t, b.Build(), env.tin, sigs)
	requireAccepted(t, res)
}

func TestStoreLocalRefThroughOutParam(t *testing.T) {
	// *out = &x hands the reference to the caller, same as returning it.
	env := newTestEnv()
	mutRefStr := env.tin.Ref(env.refStr, true)

	b := ir.NewFuncBuilder("store_out")
	out := b.Param("out", mutRefStr, "'a", sp(1))
	x := b.Local("x", env.str, sp(2))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("s"))
	b.AssignOp(sp(11), ir.PlaceOf(out).Deref(), ir.Borrow(ir.PlaceOf(x)))
	b.Return(sp(12))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d := requireCode(t, res, diag.OwnDanglingReference)
	if d.Primary != sp(11) {
		t.Errorf("escape reported at %v, want %v", d.Primary, sp(11))
	}
}

func TestStoreCallerRefThroughOutParam(t *testing.T) {
	env := newTestEnv()
	mutRefStr := env.tin.Ref(env.refStr, true)

	b := ir.NewFuncBuilder("forward_ref")
	out := b.Param("out", mutRefStr, "'a", sp(1))
	src := b.Param("src", env.refStr, "'a", sp(2))

	b.AssignOp(sp(10), ir.PlaceOf(out).Deref(), ir.Borrow(ir.PlaceOf(src).Deref()))
	b.Return(sp(11))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestStoreThroughOutParamRegionMismatch(t *testing.T) {
	env := newTestEnv()
	mutRefStr := env.tin.Ref(env.refStr, true)

	b := ir.NewFuncBuilder("region_leak")
	out := b.Param("out", mutRefStr, "'a", sp(1))
	src := b.Param("src", env.refStr, "'b", sp(2))

	b.AssignOp(sp(10), ir.PlaceOf(out).Deref(), ir.Borrow(ir.PlaceOf(src).Deref()))
	b.Return(sp(11))

	res := mustCheck(t, b.Build(), env.tin, ir.NewSignatureTable(nil))
	d := requireCode(t, res, diag.OwnDanglingReference)
	if d.Primary != sp(10) {
		t.Errorf("escape reported at %v, want %v", d.Primary, sp(10))
	}
}

func TestDeclaredOutlivesAllowsStore(t *testing.T) {
	env := newTestEnv()
	mutRefStr := env.tin.Ref(env.refStr, true)
	sigs := ir.NewSignatureTable([]ir.Signature{{
		Name: "keep_ref",
		Params: []ir.SigParam{
			{Type: mutRefStr, Region: "'a"},
			{Type: env.refStr, Region: "'b"},
		},
		Outlives: []ir.RegionPair{{Longer: "'b", Shorter: "'a"}},
	}})

	b := ir.NewFuncBuilder("keep_ref")
	out := b.Param("out", mutRefStr, "'a", sp(1))
	src := b.Param("src", env.refStr, "'b", sp(2))

	b.AssignOp(sp(10), ir.PlaceOf(out).Deref(), ir.Borrow(ir.PlaceOf(src).Deref()))
	b.Return(sp(11))

	res := mustCheck(t, b.Build(), env.tin, sigs)
	requireAccepted(t, res)
}

func TestDropWhileBorrowed(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("early_drop")
	x := b.Local("x", env.str, sp(1))
	r := b.Local("r", env.refStr, sp(2))
	y := b.Local("y", env.str, sp(3))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("s"))
	b.AssignOp(sp(11), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(x)))
	b.Drop(sp(12), ir.PlaceOf(x))
	b.AssignOp(sp(13), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(r).Deref()))
	b.Return(sp(14))

	res := mustCheck(t, b.Build(), env.tin, nil)
	d := requireCode(t, res, diag.OwnDanglingReference)
	if d.Primary != sp(12) {
		t.Errorf("dangling reported at %v, want %v", d.Primary, sp(12))
	}
}

func TestDropAfterLastUseAccepted(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("late_drop")
	x := b.Local("x", env.str, sp(1))
	r := b.Local("r", env.refStr, sp(2))
	y := b.Local("y", env.str, sp(3))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("s"))
	b.AssignOp(sp(11), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(12), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(r).Deref()))
	b.Drop(sp(13), ir.PlaceOf(x))
	b.Return(sp(14))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
}

func TestCallResultCarriesArgumentLoans(t *testing.T) {
	env := newTestEnv()
	sigs := ir.NewSignatureTable([]ir.Signature{{
		Name: "pick",
		Params: []ir.SigParam{
			{Type: env.refStr, Region: "'a"},
			{Type: env.refStr, Region: "'a"},
		},
		Result: ir.SigResult{Type: env.refStr, Region: "'a"},
	}})

	b := ir.NewFuncBuilder("caller")
	x := b.Local("x", env.str, sp(1))
	y := b.Local("y", env.str, sp(2))
	rx := b.Local("rx", env.refStr, sp(3))
	ry := b.Local("ry", env.refStr, sp(4))
	r := b.Local("r", env.refStr, sp(5))
	u := b.Local("u", env.str, sp(6))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("x"))
	b.AssignOp(sp(11), ir.PlaceOf(y), ir.StringConst("y"))
	b.AssignOp(sp(12), ir.PlaceOf(rx), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(13), ir.PlaceOf(ry), ir.Borrow(ir.PlaceOf(y)))
	b.CallInto(sp(14), ir.PlaceOf(r), "pick", ir.Move(ir.PlaceOf(rx)), ir.Move(ir.PlaceOf(ry)))
	b.Drop(sp(15), ir.PlaceOf(x))
	b.AssignOp(sp(16), ir.PlaceOf(u), ir.Copy(ir.PlaceOf(r).Deref()))
	b.Return(sp(17))

	res := mustCheck(t, b.Build(), env.tin, sigs)
	d := requireCode(t, res, diag.OwnDanglingReference)
	if d.Primary != sp(15) {
		t.Errorf("dangling reported at %v, want %v", d.Primary, sp(15))
	}
}

func TestOwnedCallResultCarriesNoLoans(t *testing.T) {
	env := newTestEnv()
	sigs := ir.NewSignatureTable([]ir.Signature{{
		Name: "render",
		Params: []ir.SigParam{
			{Type: env.refStr, Region: "'a"},
		},
		Result: ir.SigResult{Type: env.str},
	}})

	b := ir.NewFuncBuilder("owned_result")
	x := b.Local("x", env.str, sp(1))
	rx := b.Local("rx", env.refStr, sp(2))
	out := b.Local("out", env.str, sp(3))
	u := b.Local("u", env.str, sp(4))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("x"))
	b.AssignOp(sp(11), ir.PlaceOf(rx), ir.Borrow(ir.PlaceOf(x)))
	b.CallInto(sp(12), ir.PlaceOf(out), "render", ir.Move(ir.PlaceOf(rx)))
	b.Drop(sp(13), ir.PlaceOf(x))
	b.AssignOp(sp(14), ir.PlaceOf(u), ir.Move(ir.PlaceOf(out)))
	b.Return(sp(15))

	res := mustCheck(t, b.Build(), env.tin, sigs)
	requireAccepted(t, res)
}

func TestDeadCodeIsAdvisory(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("after_return")
	x := b.Local("x", env.num, sp(1))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.IntConst(1))
	b.Return(sp(11))
	b.Label("dead")
	b.AssignOp(sp(12), ir.PlaceOf(x), ir.IntConst(2))
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
	requireCode(t, res, diag.FlowDeadCode)
	if !res.Diags.HasWarnings() {
		t.Fatal("expected a warning in the bag")
	}
}

func TestUnknownCalleeIsMalformed(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("bad_call")
	x := b.Local("x", env.num, sp(1))
	b.AssignOp(sp(10), ir.PlaceOf(x), ir.IntConst(1))
	b.Call(sp(11), "nowhere", ir.Copy(ir.PlaceOf(x)))
	b.Return(sp(12))

	if _, err := CheckFunc(b.Build(), env.tin, ir.NewSignatureTable(nil), Options{}); err == nil {
		t.Fatal("expected a malformed-input error")
	}
}

func TestUnresolvedLabelIsMalformed(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("bad_label")
	b.Goto("nowhere")

	if _, err := CheckFunc(b.Build(), env.tin, nil, Options{}); err == nil {
		t.Fatal("expected a malformed-input error")
	}
}

func TestIterationCapAborts(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("capped")
	c := b.Param("c", env.flag, "", sp(1))
	b.Label("loop")
	b.Branch(sp(10), ir.Copy(ir.PlaceOf(c)), "loop", "exit")
	b.Label("exit")
	b.Return(sp(11))

	if _, err := CheckFunc(b.Build(), env.tin, nil, Options{MaxIters: 1}); err == nil {
		t.Fatal("expected an iteration cap error")
	}
}

func TestLoanRegionsAreExposed(t *testing.T) {
	env := newTestEnv()
	b := ir.NewFuncBuilder("regions")
	x := b.Local("x", env.str, sp(1))
	r := b.Local("r", env.refStr, sp(2))
	y := b.Local("y", env.str, sp(3))

	b.AssignOp(sp(10), ir.PlaceOf(x), ir.StringConst("s"))
	b.AssignOp(sp(11), ir.PlaceOf(r), ir.Borrow(ir.PlaceOf(x)))
	b.AssignOp(sp(12), ir.PlaceOf(y), ir.Copy(ir.PlaceOf(r).Deref()))
	b.Return(sp(13))

	res := mustCheck(t, b.Build(), env.tin, nil)
	requireAccepted(t, res)
	if len(res.Loans) != 1 {
		t.Fatalf("expected 1 loan, got %d", len(res.Loans))
	}
	loan := res.Loans[0]
	if loan.Kind != LoanShared {
		t.Errorf("loan kind = %v, want shared", loan.Kind)
	}
	if !loan.Region.Has(loan.Origin) {
		t.Error("loan region must contain its origin")
	}
	if loan.Region.Count() < 2 {
		t.Errorf("loan region should span origin and use, got %d points", loan.Region.Count())
	}
}

func TestRejectionsAreDeterministic(t *testing.T) {
	env := newTestEnv()
	build := func() *ir.Func {
		b := ir.NewFuncBuilder("det")
		s := b.Local("s", env.str, sp(1))
		d := b.Local("d", env.str, sp(2))
		u := b.Local("u", env.str, sp(3))
		b.AssignOp(sp(10), ir.PlaceOf(s), ir.StringConst("s"))
		b.AssignOp(sp(11), ir.PlaceOf(d), ir.Move(ir.PlaceOf(s)))
		b.AssignOp(sp(12), ir.PlaceOf(u), ir.Copy(ir.PlaceOf(s)))
		b.AssignOp(sp(13), ir.PlaceOf(u), ir.Copy(ir.PlaceOf(s)))
		b.Return(sp(14))
		return b.Build()
	}

	first := mustCheck(t, build(), env.tin, nil)
	for n := 0; n < 5; n++ {
		again := mustCheck(t, build(), env.tin, nil)
		if len(again.Diags.Items()) != len(first.Diags.Items()) {
			t.Fatal("diagnostic count varies between runs")
		}
		for i, d := range again.Diags.Items() {
			want := first.Diags.Items()[i]
			if d.Code != want.Code || d.Primary != want.Primary {
				t.Fatalf("diagnostic %d differs: %v vs %v", i, d, want)
			}
		}
	}
	if n := countCode(first, diag.OwnUseAfterMove); n != 2 {
		t.Errorf("expected 2 use-after-move reports, got %d", n)
	}
}
