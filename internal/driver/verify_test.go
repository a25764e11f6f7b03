package driver

import (
	"context"
	"testing"

	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/source"
	"rill/internal/types"
)

func sp(n uint32) source.Span {
	return source.Span{File: 0, Start: n, End: n + 1}
}

// testModule has one clean function and one with a use-after-move.
func testModule() *ir.Module {
	tin := types.NewInterner()
	bt := tin.Builtins()

	good := ir.NewFuncBuilder("good")
	x := good.Local("x", bt.Int, sp(1))
	good.AssignOp(sp(10), ir.PlaceOf(x), ir.IntConst(1))
	good.Return(sp(11))

	bad := ir.NewFuncBuilder("bad")
	s := bad.Local("s", bt.String, sp(1))
	d := bad.Local("d", bt.String, sp(2))
	u := bad.Local("u", bt.String, sp(3))
	bad.AssignOp(sp(10), ir.PlaceOf(s), ir.StringConst("s"))
	bad.AssignOp(sp(11), ir.PlaceOf(d), ir.Move(ir.PlaceOf(s)))
	bad.AssignOp(sp(12), ir.PlaceOf(u), ir.Copy(ir.PlaceOf(s)))
	bad.Return(sp(13))

	return &ir.Module{
		Name:  "demo",
		Types: tin,
		Sigs:  ir.NewSignatureTable(nil),
		Funcs: []*ir.Func{good.Build(), bad.Build()},
	}
}

func TestVerifyModule(t *testing.T) {
	res, err := VerifyModule(context.Background(), testModule(), Options{Jobs: 4})
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted {
		t.Error("batch with a rejected function must not be accepted")
	}
	if len(res.Funcs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res.Funcs))
	}
	// Result order matches module order regardless of scheduling.
	if res.Funcs[0].Name != "good" || res.Funcs[1].Name != "bad" {
		t.Errorf("result order = %s, %s", res.Funcs[0].Name, res.Funcs[1].Name)
	}
	if !res.Funcs[0].Accepted || res.Funcs[1].Accepted {
		t.Error("per-function verdicts are wrong")
	}
	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.OwnUseAfterMove {
			found = true
		}
	}
	if !found {
		t.Error("merged bag is missing the rejection")
	}
}

func TestVerifyModuleEvents(t *testing.T) {
	events := make(chan Event, 64)
	done := make(chan map[string][]Status, 1)
	go func() {
		byFunc := make(map[string][]Status)
		for ev := range events {
			byFunc[ev.Func] = append(byFunc[ev.Func], ev.Status)
		}
		done <- byFunc
	}()

	_, err := VerifyModule(context.Background(), testModule(), Options{Jobs: 1, Events: events})
	if err != nil {
		t.Fatal(err)
	}
	// VerifyModule closes the channel, so the collector terminates.
	byFunc := <-done
	wantLast := map[string]Status{"good": StatusOK, "bad": StatusRejected}
	for name, last := range wantLast {
		got := byFunc[name]
		if len(got) == 0 || got[0] != StatusChecking {
			t.Errorf("%s: first event = %v, want checking", name, got)
		}
		if got[len(got)-1] != last {
			t.Errorf("%s: last event = %v, want %v", name, got[len(got)-1], last)
		}
	}
}

func TestVerifyModuleCache(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Cache: cache}

	first, err := VerifyModule(context.Background(), testModule(), opts)
	if err != nil {
		t.Fatal(err)
	}
	for _, fr := range first.Funcs {
		if fr.Cached {
			t.Errorf("%s: cold run should not hit the cache", fr.Name)
		}
	}

	second, err := VerifyModule(context.Background(), testModule(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.Accepted != first.Accepted {
		t.Error("cached verdict differs from the cold one")
	}
	for _, fr := range second.Funcs {
		if !fr.Cached {
			t.Errorf("%s: warm run should hit the cache", fr.Name)
		}
	}
	if second.Bag.Len() != first.Bag.Len() {
		t.Errorf("cached diagnostics differ: %d vs %d", second.Bag.Len(), first.Bag.Len())
	}
}

func TestVerifyModuleCacheKeyedByBody(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Cache: cache}
	if _, err := VerifyModule(context.Background(), testModule(), opts); err != nil {
		t.Fatal(err)
	}

	// Fixing the bad function changes its digest; the stale verdict must not
	// come back.
	mod := testModule()
	fixed := ir.NewFuncBuilder("bad")
	bt := mod.Types.Builtins()
	s := fixed.Local("s", bt.String, sp(1))
	d := fixed.Local("d", bt.String, sp(2))
	fixed.AssignOp(sp(10), ir.PlaceOf(s), ir.StringConst("s"))
	fixed.AssignOp(sp(11), ir.PlaceOf(d), ir.Move(ir.PlaceOf(s)))
	fixed.Return(sp(12))
	mod.Funcs[1] = fixed.Build()

	res, err := VerifyModule(context.Background(), mod, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Funcs[1].Accepted {
		t.Error("fixed function should verify clean")
	}
	if res.Funcs[1].Cached {
		t.Error("changed body must miss the cache")
	}
}

func TestVerifyModuleMalformedAborts(t *testing.T) {
	mod := testModule()
	broken := ir.NewFuncBuilder("broken")
	broken.Goto("nowhere")
	mod.Funcs = append(mod.Funcs, broken.Build())

	if _, err := VerifyModule(context.Background(), mod, Options{}); err == nil {
		t.Fatal("expected malformed input to abort the batch")
	}
}
