package shader

import (
	"github.com/xenosgpu/xenos/internal/ucode"
)

// The control flow parsers normalize the three hardware exec encodings
// (unconditional, boolean conditional, predicate conditional) and the
// call/jump condition variants into one record shape per family. They are
// pure; registering referenced boolean/loop constants is the caller's job.

func parseControlFlowExec(cf ucode.ControlFlowExecInstruction, cfIndex uint32) ParsedExecInstruction {
	instr := ParsedExecInstruction{
		DwordIndex:         cfIndex,
		Opcode:             cf.Opcode(),
		OpcodeName:         "exec",
		InstructionAddress: cf.Address(),
		InstructionCount:   cf.Count(),
		Type:               ExecTypeUnconditional,
		IsEnd:              cf.Opcode() == ucode.ControlFlowOpcodeExecEnd,
		Clean:              cf.Clean(),
		IsYield:            cf.IsYield(),
		Sequence:           cf.Sequence(),
	}
	if instr.IsEnd {
		instr.OpcodeName = "exece"
	}
	return instr
}

func parseControlFlowCondExec(cf ucode.ControlFlowCondExecInstruction, cfIndex uint32) ParsedExecInstruction {
	instr := ParsedExecInstruction{
		DwordIndex:         cfIndex,
		Opcode:             cf.Opcode(),
		OpcodeName:         "cexec",
		InstructionAddress: cf.Address(),
		InstructionCount:   cf.Count(),
		Type:               ExecTypeConditional,
		BoolConstantIndex:  cf.BoolAddress(),
		Condition:          cf.Condition(),
		Clean:              true,
		IsYield:            cf.IsYield(),
		Sequence:           cf.Sequence(),
	}
	switch cf.Opcode() {
	case ucode.ControlFlowOpcodeCondExecEnd, ucode.ControlFlowOpcodeCondExecPredCleanEnd:
		instr.OpcodeName = "cexece"
		instr.IsEnd = true
	}
	// Only the pred-clean encodings reset the predicate.
	switch cf.Opcode() {
	case ucode.ControlFlowOpcodeCondExec, ucode.ControlFlowOpcodeCondExecEnd:
		instr.Clean = false
	}
	return instr
}

func parseControlFlowCondExecPred(cf ucode.ControlFlowCondExecPredInstruction, cfIndex uint32) ParsedExecInstruction {
	instr := ParsedExecInstruction{
		DwordIndex:         cfIndex,
		Opcode:             cf.Opcode(),
		OpcodeName:         "exec",
		InstructionAddress: cf.Address(),
		InstructionCount:   cf.Count(),
		Type:               ExecTypePredicated,
		Condition:          cf.Condition(),
		IsEnd:              cf.Opcode() == ucode.ControlFlowOpcodeCondExecPredEnd,
		Clean:              cf.Clean(),
		IsYield:            cf.IsYield(),
		Sequence:           cf.Sequence(),
	}
	if instr.IsEnd {
		instr.OpcodeName = "exece"
	}
	return instr
}

func parseControlFlowLoopStart(cf ucode.ControlFlowLoopStartInstruction, cfIndex uint32) ParsedLoopStartInstruction {
	return ParsedLoopStartInstruction{
		DwordIndex:        cfIndex,
		LoopConstantIndex: cf.LoopID(),
		IsRepeat:          cf.IsRepeat(),
		LoopSkipAddress:   cf.Address(),
	}
}

func parseControlFlowLoopEnd(cf ucode.ControlFlowLoopEndInstruction, cfIndex uint32) ParsedLoopEndInstruction {
	return ParsedLoopEndInstruction{
		DwordIndex:         cfIndex,
		IsPredicatedBreak:  cf.IsPredicatedBreak(),
		PredicateCondition: cf.Condition(),
		LoopConstantIndex:  cf.LoopID(),
		LoopBodyAddress:    cf.Address(),
	}
}

func parseControlFlowCondCall(cf ucode.ControlFlowCondCallInstruction, cfIndex uint32) ParsedCallInstruction {
	instr := ParsedCallInstruction{
		DwordIndex:    cfIndex,
		TargetAddress: cf.Address(),
	}
	switch {
	case cf.IsUnconditional():
		instr.Type = ControlFlowTypeUnconditional
	case cf.IsPredicated():
		instr.Type = ControlFlowTypePredicated
		instr.Condition = cf.Condition()
	default:
		instr.Type = ControlFlowTypeConditional
		instr.BoolConstantIndex = cf.BoolAddress()
		instr.Condition = cf.Condition()
	}
	return instr
}

func parseControlFlowReturn(cfIndex uint32) ParsedReturnInstruction {
	return ParsedReturnInstruction{DwordIndex: cfIndex}
}

func parseControlFlowCondJmp(cf ucode.ControlFlowCondJmpInstruction, cfIndex uint32) ParsedJumpInstruction {
	instr := ParsedJumpInstruction{
		DwordIndex:    cfIndex,
		TargetAddress: cf.Address(),
	}
	switch {
	case cf.IsUnconditional():
		instr.Type = ControlFlowTypeUnconditional
	case cf.IsPredicated():
		instr.Type = ControlFlowTypePredicated
		instr.Condition = cf.Condition()
	default:
		instr.Type = ControlFlowTypeConditional
		instr.BoolConstantIndex = cf.BoolAddress()
		instr.Condition = cf.Condition()
	}
	return instr
}

func parseControlFlowAlloc(cf ucode.ControlFlowAllocInstruction, cfIndex uint32, isVertexShader bool) ParsedAllocInstruction {
	return ParsedAllocInstruction{
		DwordIndex:     cfIndex,
		Type:           cf.AllocType(),
		Count:          cf.Size(),
		IsVertexShader: isVertexShader,
	}
}
