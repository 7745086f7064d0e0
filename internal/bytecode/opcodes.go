// Package bytecode implements the chosen opcode revision (spec §4.7, §9
// open question): labels, snippets, instructions, payload vehicles and
// chunks. This file names the opcode set adopted — the stack-machine set
// of spec.md §4.7 — and nothing else; the teacher's several divergent VM
// revisions are not carried forward (see DESIGN.md).
package bytecode

type OpCode byte

const (
	// No-payload opcodes.
	OpPop OpCode = iota
	OpPop2
	OpDup
	OpTon  // to_num
	OpTos  // to_str
	OpTob  // to_bool
	OpToib // into-bool
	OpTrue
	OpFalse
	OpTov // to_vec
	OpNeg
	OpLen
	OpEns  // ensure, dies on false
	OpUput // superlocal push
	OpUpop // superlocal pop
	OpUref // superlocal peek
	OpClear
	OpRet
	OpInc
	OpDec
	OpMapSetup
	OpMapAppend
	OpMapIter
	OpRemToVec
	OpFalseIfEmpty

	// Static-payload opcodes (arg indexes into Chunk.Statics unless noted).
	OpNum
	OpStr
	OpVec  // arg = element count
	OpPcre // arg indexes Chunk.Statics, a regex source string
	OpGoto // arg = absolute instruction index; neither the compiler nor the stitcher emits it
	OpCall // arg = argument count
	OpReduce
	OpBinary // arg indexes Chunk.Statics, an operator string

	// Jump-payload opcodes (arg indexes Chunk.Jumps).
	OpJ
	OpJit
	OpJif
	OpGifp // == OpJif, used at if-statement fail labels
	OpJitElsePop
	OpJifElsePop
	// OpTryPop's jump target is where execution resumes, with the guard
	// popped as "exited normally", if control reaches it without a runtime
	// error unwinding the frame first; see the dies (`dies`) protocol.
	OpTryPop

	// Symbol-payload opcodes (arg indexes Chunk.Symbols).
	OpSym
	OpSetPop
	OpSetTap

	// Function-payload opcodes (arg indexes Chunk.Functions).
	OpFun
)

var names = map[OpCode]string{
	OpPop: "POP", OpPop2: "POP2", OpDup: "DUP",
	OpTon: "TON", OpTos: "TOS", OpTob: "TOB", OpToib: "TOIB",
	OpTrue: "TRUE", OpFalse: "FALSE", OpTov: "TOV", OpNeg: "NEG", OpLen: "LEN",
	OpEns: "ENS", OpUput: "UPUT", OpUpop: "UPOP", OpUref: "UREF",
	OpClear: "CLEAR", OpRet: "RET", OpInc: "INC", OpDec: "DEC",
	OpMapSetup: "MAP_SETUP", OpMapAppend: "MAP_APPEND", OpMapIter: "MAP_ITER",
	OpRemToVec: "REM_TO_VEC", OpFalseIfEmpty: "FALSE_IF_EMPTY",
	OpNum: "NUM", OpStr: "STR", OpVec: "VEC", OpPcre: "PCRE", OpGoto: "GOTO",
	OpCall: "CALL", OpReduce: "REDUCE", OpBinary: "BINARY",
	OpJ: "J", OpJit: "JIT", OpJif: "JIF", OpGifp: "GIFP",
	OpJitElsePop: "JIT_ELSE_POP", OpJifElsePop: "JIF_ELSE_POP", OpTryPop: "TRY_POP",
	OpSym: "SYM", OpSetPop: "SET_POP", OpSetTap: "SET_TAP",
	OpFun: "FUN",
}

func (op OpCode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}

// PayloadKind classifies which storage, if any, an opcode's arg indexes.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadStatic
	PayloadJump
	PayloadSymbol
	PayloadFunction
)

func (op OpCode) Payload() PayloadKind {
	switch op {
	case OpNum, OpStr, OpVec, OpPcre, OpGoto, OpCall, OpReduce, OpBinary:
		return PayloadStatic
	case OpJ, OpJit, OpJif, OpGifp, OpJitElsePop, OpJifElsePop, OpTryPop:
		return PayloadJump
	case OpSym, OpSetPop, OpSetTap:
		return PayloadSymbol
	case OpFun:
		return PayloadFunction
	default:
		return PayloadNone
	}
}

// PutsOne reports whether the opcode's postcondition adds exactly one
// value to the stack — used by the optimizer's `<puts_one>, POP` peephole
// (spec §4.5).
func (op OpCode) PutsOne() bool {
	switch op {
	case OpNum, OpStr, OpPcre, OpTrue, OpFalse, OpSym, OpDup, OpUpop, OpUref:
		return true
	default:
		return false
	}
}
