package ucode

// Control flow instructions are packed in pairs: every 3 dwords of ucode hold
// two 48-bit instructions. Instruction A occupies dword 0 and the low 16 bits
// of dword 1, instruction B the high 16 bits of dword 1 and dword 2. The
// opcode for both lives in the top 4 bits of the instruction (bits 44-47).
//
// All field offsets below are a fixed hardware contract (Adreno A2xx family)
// and must not be re-derived.

type ControlFlowOpcode uint8

const (
	ControlFlowOpcodeNop                  ControlFlowOpcode = 0
	ControlFlowOpcodeExec                 ControlFlowOpcode = 1
	ControlFlowOpcodeExecEnd              ControlFlowOpcode = 2
	ControlFlowOpcodeCondExec             ControlFlowOpcode = 3
	ControlFlowOpcodeCondExecEnd          ControlFlowOpcode = 4
	ControlFlowOpcodeCondExecPred         ControlFlowOpcode = 5
	ControlFlowOpcodeCondExecPredEnd      ControlFlowOpcode = 6
	ControlFlowOpcodeLoopStart            ControlFlowOpcode = 7
	ControlFlowOpcodeLoopEnd              ControlFlowOpcode = 8
	ControlFlowOpcodeCondCall             ControlFlowOpcode = 9
	ControlFlowOpcodeReturn               ControlFlowOpcode = 10
	ControlFlowOpcodeCondJmp              ControlFlowOpcode = 11
	ControlFlowOpcodeAlloc                ControlFlowOpcode = 12
	ControlFlowOpcodeCondExecPredClean    ControlFlowOpcode = 13
	ControlFlowOpcodeCondExecPredCleanEnd ControlFlowOpcode = 14
	ControlFlowOpcodeMarkVsFetchDone      ControlFlowOpcode = 15
)

func (op ControlFlowOpcode) String() string {
	switch op {
	case ControlFlowOpcodeNop:
		return "cnop"
	case ControlFlowOpcodeExec:
		return "exec"
	case ControlFlowOpcodeExecEnd:
		return "exece"
	case ControlFlowOpcodeCondExec:
		return "cexec"
	case ControlFlowOpcodeCondExecEnd:
		return "cexece"
	case ControlFlowOpcodeCondExecPred:
		return "exec_pred"
	case ControlFlowOpcodeCondExecPredEnd:
		return "exece_pred"
	case ControlFlowOpcodeLoopStart:
		return "loop"
	case ControlFlowOpcodeLoopEnd:
		return "endloop"
	case ControlFlowOpcodeCondCall:
		return "ccall"
	case ControlFlowOpcodeReturn:
		return "ret"
	case ControlFlowOpcodeCondJmp:
		return "cjmp"
	case ControlFlowOpcodeAlloc:
		return "alloc"
	case ControlFlowOpcodeCondExecPredClean:
		return "exec_pred_clean"
	case ControlFlowOpcodeCondExecPredCleanEnd:
		return "exece_pred_clean"
	case ControlFlowOpcodeMarkVsFetchDone:
		return "vfetch_done"
	}
	return "unknown"
}

// IsControlFlowOpcodeExec reports whether the opcode executes a block of
// fetch/ALU instructions at an address, which makes its address field a
// usable upper bound on the control flow program length.
func IsControlFlowOpcodeExec(op ControlFlowOpcode) bool {
	switch op {
	case ControlFlowOpcodeExec, ControlFlowOpcodeExecEnd,
		ControlFlowOpcodeCondExec, ControlFlowOpcodeCondExecEnd,
		ControlFlowOpcodeCondExecPred, ControlFlowOpcodeCondExecPredEnd,
		ControlFlowOpcodeCondExecPredClean, ControlFlowOpcodeCondExecPredCleanEnd:
		return true
	}
	return false
}

// DoesControlFlowOpcodeEndShader reports whether the opcode terminates the
// shader after its block completes.
func DoesControlFlowOpcodeEndShader(op ControlFlowOpcode) bool {
	switch op {
	case ControlFlowOpcodeExecEnd, ControlFlowOpcodeCondExecEnd,
		ControlFlowOpcodeCondExecPredEnd, ControlFlowOpcodeCondExecPredCleanEnd:
		return true
	}
	return false
}

// ControlFlowInstruction is one unpacked 48-bit control flow instruction:
// word0 holds bits 0-31, the low half of word1 holds bits 32-47.
type ControlFlowInstruction struct {
	word0 uint32
	word1 uint32
}

// NewControlFlowInstruction assembles an instruction from its raw halves.
// The high 16 bits of word1 are ignored.
func NewControlFlowInstruction(word0, word1 uint32) ControlFlowInstruction {
	return ControlFlowInstruction{word0: word0, word1: word1 & 0xFFFF}
}

func (i ControlFlowInstruction) Words() (uint32, uint32) { return i.word0, i.word1 }

func (i ControlFlowInstruction) Opcode() ControlFlowOpcode {
	return ControlFlowOpcode((i.word1 >> 12) & 0b1111)
}

// UnpackControlFlowInstructions splits one 3-dword pair into its two
// instructions.
func UnpackControlFlowInstructions(words [3]uint32) [2]ControlFlowInstruction {
	return [2]ControlFlowInstruction{
		NewControlFlowInstruction(words[0], words[1]&0xFFFF),
		NewControlFlowInstruction((words[1]>>16)|(words[2]<<16), words[2]>>16),
	}
}

// PackControlFlowInstructions is the inverse of UnpackControlFlowInstructions.
func PackControlFlowInstructions(a, b ControlFlowInstruction) [3]uint32 {
	return [3]uint32{
		a.word0,
		(a.word1 & 0xFFFF) | (b.word0 << 16),
		(b.word0 >> 16) | (b.word1 << 16),
	}
}

// Exec-class view (exec, exece). Word 0: address 0-11, count 12-14,
// yield 15, sequence 16-27, vertex cache hint 28-31. Word 1 (bits 32+):
// vertex cache hint 0-1, clean 9.
type ControlFlowExecInstruction ControlFlowInstruction

func (i ControlFlowExecInstruction) Opcode() ControlFlowOpcode {
	return ControlFlowInstruction(i).Opcode()
}
func (i ControlFlowExecInstruction) Address() uint32 { return i.word0 & 0xFFF }
func (i ControlFlowExecInstruction) Count() uint32 { return (i.word0 >> 12) & 0b111 }
func (i ControlFlowExecInstruction) IsYield() bool { return (i.word0>>15)&1 != 0 }
func (i ControlFlowExecInstruction) Sequence() uint32 { return (i.word0 >> 16) & 0xFFF }
func (i ControlFlowExecInstruction) Clean() bool { return (i.word1>>9)&1 != 0 }

// Conditional exec view (cexec, cexece). Same word 0 as exec; word 1:
// bool constant address 2-9, condition 10.
type ControlFlowCondExecInstruction ControlFlowInstruction

func (i ControlFlowCondExecInstruction) Opcode() ControlFlowOpcode {
	return ControlFlowInstruction(i).Opcode()
}
func (i ControlFlowCondExecInstruction) Address() uint32 { return i.word0 & 0xFFF }
func (i ControlFlowCondExecInstruction) Count() uint32 { return (i.word0 >> 12) & 0b111 }
func (i ControlFlowCondExecInstruction) IsYield() bool { return (i.word0>>15)&1 != 0 }
func (i ControlFlowCondExecInstruction) Sequence() uint32 { return (i.word0 >> 16) & 0xFFF }
func (i ControlFlowCondExecInstruction) BoolAddress() uint32 { return (i.word1 >> 2) & 0xFF }
func (i ControlFlowCondExecInstruction) Condition() bool { return (i.word1>>10)&1 != 0 }

// Predicated exec view (exec_pred). Same word 0 as exec; word 1: clean 9,
// condition 11.
type ControlFlowCondExecPredInstruction ControlFlowInstruction

func (i ControlFlowCondExecPredInstruction) Opcode() ControlFlowOpcode {
	return ControlFlowInstruction(i).Opcode()
}
func (i ControlFlowCondExecPredInstruction) Address() uint32 { return i.word0 & 0xFFF }
func (i ControlFlowCondExecPredInstruction) Count() uint32 { return (i.word0 >> 12) & 0b111 }
func (i ControlFlowCondExecPredInstruction) IsYield() bool { return (i.word0>>15)&1 != 0 }
func (i ControlFlowCondExecPredInstruction) Sequence() uint32 { return (i.word0 >> 16) & 0xFFF }
func (i ControlFlowCondExecPredInstruction) Clean() bool { return (i.word1>>9)&1 != 0 }
func (i ControlFlowCondExecPredInstruction) Condition() bool { return (i.word1>>11)&1 != 0 }

// Loop start view. Word 0: address 0-12, repeat 13, loop constant id 16-20.
type ControlFlowLoopStartInstruction ControlFlowInstruction

func (i ControlFlowLoopStartInstruction) Address() uint32 { return i.word0 & 0x1FFF }
func (i ControlFlowLoopStartInstruction) IsRepeat() bool { return (i.word0>>13)&1 != 0 }
func (i ControlFlowLoopStartInstruction) LoopID() uint32 { return (i.word0 >> 16) & 0b11111 }

// Loop end view. Word 0: address 0-12, loop constant id 16-20, predicated
// break 21. Word 1: condition 10.
type ControlFlowLoopEndInstruction ControlFlowInstruction

func (i ControlFlowLoopEndInstruction) Address() uint32 { return i.word0 & 0x1FFF }
func (i ControlFlowLoopEndInstruction) LoopID() uint32 { return (i.word0 >> 16) & 0b11111 }
func (i ControlFlowLoopEndInstruction) IsPredicatedBreak() bool { return (i.word0>>21)&1 != 0 }
func (i ControlFlowLoopEndInstruction) Condition() bool { return (i.word1>>10)&1 != 0 }

// Conditional call view. Word 0: address 0-12, unconditional 13,
// predicated 14. Word 1: bool constant address 2-9, condition 10.
type ControlFlowCondCallInstruction ControlFlowInstruction

func (i ControlFlowCondCallInstruction) Address() uint32 { return i.word0 & 0x1FFF }
func (i ControlFlowCondCallInstruction) IsUnconditional() bool { return (i.word0>>13)&1 != 0 }
func (i ControlFlowCondCallInstruction) IsPredicated() bool { return (i.word0>>14)&1 != 0 }
func (i ControlFlowCondCallInstruction) BoolAddress() uint32 { return (i.word1 >> 2) & 0xFF }
func (i ControlFlowCondCallInstruction) Condition() bool { return (i.word1>>10)&1 != 0 }

// Return view. Carries no fields besides the opcode.
type ControlFlowReturnInstruction ControlFlowInstruction

// Conditional jump view. Word 0: address 0-12, unconditional 13,
// predicated 14. Word 1: direction 1, bool constant address 2-9,
// condition 10.
type ControlFlowCondJmpInstruction ControlFlowInstruction

func (i ControlFlowCondJmpInstruction) Address() uint32 { return i.word0 & 0x1FFF }
func (i ControlFlowCondJmpInstruction) IsUnconditional() bool { return (i.word0>>13)&1 != 0 }
func (i ControlFlowCondJmpInstruction) IsPredicated() bool { return (i.word0>>14)&1 != 0 }
func (i ControlFlowCondJmpInstruction) Direction() bool { return (i.word1>>1)&1 != 0 }
func (i ControlFlowCondJmpInstruction) BoolAddress() uint32 { return (i.word1 >> 2) & 0xFF }
func (i ControlFlowCondJmpInstruction) Condition() bool { return (i.word1>>10)&1 != 0 }

// AllocType selects what an alloc instruction reserves space for.
type AllocType uint8

const (
	AllocTypeNone AllocType = 0
	// Vertex shader exports of a position.
	AllocTypePosition AllocType = 1
	// Vertex shader interpolators or pixel shader colors.
	AllocTypeInterpolators AllocType = 2
	// Memory export via eA/eM registers.
	AllocTypeMemory AllocType = 3
)

// Alloc view. Word 0: size 0-2. Word 1: no serial 8, alloc type 9-10.
type ControlFlowAllocInstruction ControlFlowInstruction

func (i ControlFlowAllocInstruction) Size() uint32 { return i.word0 & 0b111 }
func (i ControlFlowAllocInstruction) IsUnserialized() bool {
	return (i.word1>>8)&1 != 0
}
func (i ControlFlowAllocInstruction) AllocType() AllocType {
	return AllocType((i.word1 >> 9) & 0b11)
}

// Typed views over the shared 48 bits.
func (i ControlFlowInstruction) Exec() ControlFlowExecInstruction {
	return ControlFlowExecInstruction(i)
}
func (i ControlFlowInstruction) CondExec() ControlFlowCondExecInstruction {
	return ControlFlowCondExecInstruction(i)
}
func (i ControlFlowInstruction) CondExecPred() ControlFlowCondExecPredInstruction {
	return ControlFlowCondExecPredInstruction(i)
}
func (i ControlFlowInstruction) LoopStart() ControlFlowLoopStartInstruction {
	return ControlFlowLoopStartInstruction(i)
}
func (i ControlFlowInstruction) LoopEnd() ControlFlowLoopEndInstruction {
	return ControlFlowLoopEndInstruction(i)
}
func (i ControlFlowInstruction) CondCall() ControlFlowCondCallInstruction {
	return ControlFlowCondCallInstruction(i)
}
func (i ControlFlowInstruction) CondJmp() ControlFlowCondJmpInstruction {
	return ControlFlowCondJmpInstruction(i)
}
func (i ControlFlowInstruction) Alloc() ControlFlowAllocInstruction {
	return ControlFlowAllocInstruction(i)
}
