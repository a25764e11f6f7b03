package cfg

import (
	"fmt"
	"strconv"
	"strings"

	"rill/internal/ir"
)

// Dump renders the graph in a stable textual form, one block per paragraph.
// The output is for humans and golden tests, not for machine consumption.
func Dump(g *Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fn %s {\n", g.Fn.Name)
	for _, blk := range g.Blocks {
		mark := ""
		if !g.Reachable[blk.ID] {
			mark = " ; unreachable"
		} else if g.LoopHeads[blk.ID] {
			mark = " ; loop head"
		}
		fmt.Fprintf(&b, "bb%d:%s\n", blk.ID, mark)
		for i := range blk.Stmts {
			fmt.Fprintf(&b, "    %s\n", dumpStmt(g.Fn, &blk.Stmts[i]))
		}
		fmt.Fprintf(&b, "    %s\n", dumpTerm(g.Fn, &blk.Term))
	}
	b.WriteString("}\n")
	return b.String()
}

func dumpStmt(fn *ir.Func, s *ir.Stmt) string {
	switch s.Kind {
	case ir.StmtNop:
		return "nop"
	case ir.StmtAssign:
		return fn.PlaceString(s.Assign.Dst) + " = " + dumpRValue(fn, &s.Assign.Src)
	case ir.StmtCall:
		var b strings.Builder
		if s.Call.HasDst {
			b.WriteString(fn.PlaceString(s.Call.Dst))
			b.WriteString(" = ")
		}
		b.WriteString(s.Call.Callee)
		b.WriteByte('(')
		for i := range s.Call.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(dumpOperand(fn, &s.Call.Args[i]))
		}
		b.WriteByte(')')
		return b.String()
	case ir.StmtDrop:
		return "drop " + fn.PlaceString(s.Drop.Place)
	}
	return "?"
}

func dumpTerm(fn *ir.Func, t *Terminator) string {
	switch t.Kind {
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.Goto.Target)
	case TermIf:
		return fmt.Sprintf("if %s then bb%d else bb%d",
			dumpOperand(fn, &t.If.Cond), t.If.Then, t.If.Else)
	case TermSwitch:
		var b strings.Builder
		fmt.Fprintf(&b, "switch %s [", dumpOperand(fn, &t.Switch.Value))
		for i, c := range t.Switch.Cases {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: bb%d", c.Tag, c.Target)
		}
		fmt.Fprintf(&b, "] default bb%d", t.Switch.Default)
		return b.String()
	case TermReturn:
		if t.Return.HasValue {
			return "return " + dumpOperand(fn, &t.Return.Value)
		}
		return "return"
	case TermUnreachable:
		return "unreachable"
	}
	return "?"
}

func dumpOperand(fn *ir.Func, op *ir.Operand) string {
	switch op.Kind {
	case ir.OperandConst:
		return dumpConst(op.Const)
	case ir.OperandCopy:
		return "copy " + fn.PlaceString(op.Place)
	case ir.OperandMove:
		return "move " + fn.PlaceString(op.Place)
	case ir.OperandBorrow:
		return "&" + fn.PlaceString(op.Place)
	case ir.OperandBorrowMut:
		return "&mut " + fn.PlaceString(op.Place)
	}
	return "?"
}

func dumpConst(c ir.Const) string {
	switch c.Kind {
	case ir.ConstInt:
		return strconv.FormatInt(c.IntValue, 10)
	case ir.ConstUint:
		return strconv.FormatUint(c.UintValue, 10)
	case ir.ConstFloat:
		return strconv.FormatFloat(c.FloatValue, 'g', -1, 64)
	case ir.ConstBool:
		return strconv.FormatBool(c.BoolValue)
	case ir.ConstString:
		return strconv.Quote(c.StringValue)
	case ir.ConstUnit:
		return "()"
	}
	return "?"
}

func dumpRValue(fn *ir.Func, rv *ir.RValue) string {
	switch rv.Kind {
	case ir.RValueUse:
		return dumpOperand(fn, &rv.Use)
	case ir.RValueUnary:
		op := "-"
		if rv.Unary.Op == ir.UnaryNot {
			op = "!"
		}
		return op + dumpOperand(fn, &rv.Unary.Operand)
	case ir.RValueBinary:
		return dumpOperand(fn, &rv.Binary.Left) + " " + binaryOpString(rv.Binary.Op) +
			" " + dumpOperand(fn, &rv.Binary.Right)
	case ir.RValueStructLit:
		var b strings.Builder
		b.WriteString("struct{")
		for i, f := range rv.StructLit.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(dumpOperand(fn, &f.Value))
		}
		b.WriteByte('}')
		return b.String()
	case ir.RValueArrayLit:
		return dumpElems(fn, "[", rv.ArrayLit.Elems, "]")
	case ir.RValueTupleLit:
		return dumpElems(fn, "(", rv.TupleLit.Elems, ")")
	case ir.RValueTagTest:
		return fmt.Sprintf("is %s(%s)", rv.TagTest.TagName, dumpOperand(fn, &rv.TagTest.Value))
	case ir.RValueTagPayload:
		return fmt.Sprintf("payload %s.%d(%s)", rv.TagPayload.TagName, rv.TagPayload.Index,
			dumpOperand(fn, &rv.TagPayload.Value))
	}
	return "?"
}

func dumpElems(fn *ir.Func, open string, elems []ir.Operand, closing string) string {
	var b strings.Builder
	b.WriteString(open)
	for i := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(dumpOperand(fn, &elems[i]))
	}
	b.WriteString(closing)
	return b.String()
}

func binaryOpString(op ir.BinaryOpKind) string {
	switch op {
	case ir.BinaryAdd:
		return "+"
	case ir.BinarySub:
		return "-"
	case ir.BinaryMul:
		return "*"
	case ir.BinaryDiv:
		return "/"
	case ir.BinaryEq:
		return "=="
	case ir.BinaryNe:
		return "!="
	case ir.BinaryLt:
		return "<"
	case ir.BinaryLe:
		return "<="
	case ir.BinaryGt:
		return ">"
	case ir.BinaryGe:
		return ">="
	case ir.BinaryAnd:
		return "&&"
	case ir.BinaryOr:
		return "||"
	}
	return "?"
}
