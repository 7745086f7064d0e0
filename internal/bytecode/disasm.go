package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders chunks as a flat, human-readable listing for the
// CLI's `-d/--disassemble` flag (spec.md §6.2): one instruction per line,
// its operand resolved against the owning chunk's own payload storage
// where the opcode carries one. Chunks must already be stitched (spec
// §4.6) since this reads Seamless, not the pre-stitch Snippets.
func Disassemble(chunks []*Chunk) string {
	var b strings.Builder
	for ci, chunk := range chunks {
		fmt.Fprintf(&b, "chunk %d (%s)\n", ci, chunk.Name)
		for ip, ins := range chunk.Seamless {
			fmt.Fprintf(&b, "  %4d  %-14s", ip, ins.Op.String())
			if operand := describeOperand(chunk, ins); operand != "" {
				b.WriteString(operand)
			}
			fmt.Fprintf(&b, "  ; line %d\n", ins.Line)
		}
	}
	return b.String()
}

func describeOperand(chunk *Chunk, ins Instruction) string {
	switch ins.Op.Payload() {
	case PayloadStatic:
		if int(ins.Arg) < len(chunk.Statics) {
			return describeStatic(chunk.Statics[ins.Arg])
		}
		return fmt.Sprintf("%d", ins.Arg)
	case PayloadJump:
		if int(ins.Arg) < len(chunk.Jumps) {
			return fmt.Sprintf("-> %d", chunk.Jumps[ins.Arg])
		}
		return fmt.Sprintf("%d", ins.Arg)
	case PayloadSymbol:
		if int(ins.Arg) < len(chunk.Symbols) {
			sym := chunk.Symbols[ins.Arg]
			return fmt.Sprintf("%s@%d", sym.Name, sym.Nest)
		}
		return fmt.Sprintf("%d", ins.Arg)
	case PayloadFunction:
		if int(ins.Arg) < len(chunk.Functions) {
			fn := chunk.Functions[ins.Arg]
			return fmt.Sprintf("%s -> chunk %d", fn.Symbol, fn.ChunkRef)
		}
		return fmt.Sprintf("%d", ins.Arg)
	default:
		return ""
	}
}

func describeStatic(s Static) string {
	switch s.Kind {
	case StaticInt:
		return fmt.Sprintf("%d", s.I)
	case StaticNum:
		return s.Num.String()
	default:
		return fmt.Sprintf("%q", s.Str)
	}
}
