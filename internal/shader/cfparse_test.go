package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xenosgpu/xenos/internal/ucode"
)

func makeCf(op ucode.ControlFlowOpcode, word0, word1 uint32) ucode.ControlFlowInstruction {
	return ucode.NewControlFlowInstruction(word0, (word1&0x0FFF)|uint32(op)<<12)
}

func TestParseControlFlowExec(t *testing.T) {
	cf := makeCf(ucode.ControlFlowOpcodeExec, 0x30|2<<12|1<<15|0b0100<<16, 1<<9)
	instr := parseControlFlowExec(cf.Exec(), 7)

	assert.Equal(t, uint32(7), instr.DwordIndex)
	assert.Equal(t, "exec", instr.OpcodeName)
	assert.Equal(t, uint32(0x30), instr.InstructionAddress)
	assert.Equal(t, uint32(2), instr.InstructionCount)
	assert.Equal(t, ExecTypeUnconditional, instr.Type)
	assert.False(t, instr.IsEnd)
	assert.True(t, instr.Clean)
	assert.True(t, instr.IsYield)
	assert.Equal(t, uint32(0b0100), instr.Sequence)

	end := makeCf(ucode.ControlFlowOpcodeExecEnd, 0x30|1<<12, 0)
	instrEnd := parseControlFlowExec(end.Exec(), 0)
	assert.Equal(t, "exece", instrEnd.OpcodeName)
	assert.True(t, instrEnd.IsEnd)
}

func TestParseControlFlowCondExec(t *testing.T) {
	tests := []struct {
		name      string
		opcode    ucode.ControlFlowOpcode
		wantName  string
		wantEnd   bool
		wantClean bool
	}{
		{"cexec", ucode.ControlFlowOpcodeCondExec, "cexec", false, false},
		{"cexec end", ucode.ControlFlowOpcodeCondExecEnd, "cexece", true, false},
		{"pred clean", ucode.ControlFlowOpcodeCondExecPredClean, "cexec", false, true},
		{"pred clean end", ucode.ControlFlowOpcodeCondExecPredCleanEnd, "cexece", true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cf := makeCf(tc.opcode, 0x10|3<<12, 0x9C<<2|1<<10)
			instr := parseControlFlowCondExec(cf.CondExec(), 1)
			assert.Equal(t, tc.wantName, instr.OpcodeName)
			assert.Equal(t, ExecTypeConditional, instr.Type)
			assert.Equal(t, uint32(0x9C), instr.BoolConstantIndex)
			assert.True(t, instr.Condition)
			assert.Equal(t, tc.wantEnd, instr.IsEnd)
			assert.Equal(t, tc.wantClean, instr.Clean)
		})
	}
}

func TestParseControlFlowCondExecPred(t *testing.T) {
	cf := makeCf(ucode.ControlFlowOpcodeCondExecPredEnd, 0x40|1<<12, 1<<9|1<<11)
	instr := parseControlFlowCondExecPred(cf.CondExecPred(), 3)

	assert.Equal(t, "exece", instr.OpcodeName)
	assert.Equal(t, ExecTypePredicated, instr.Type)
	assert.True(t, instr.Condition)
	assert.True(t, instr.IsEnd)
	assert.True(t, instr.Clean)
}

func TestParseControlFlowLoop(t *testing.T) {
	start := makeCf(ucode.ControlFlowOpcodeLoopStart, 9|1<<13|5<<16, 0)
	parsedStart := parseControlFlowLoopStart(start.LoopStart(), 2)
	assert.Equal(t, uint32(5), parsedStart.LoopConstantIndex)
	assert.True(t, parsedStart.IsRepeat)
	assert.Equal(t, uint32(9), parsedStart.LoopSkipAddress)

	end := makeCf(ucode.ControlFlowOpcodeLoopEnd, 3|5<<16|1<<21, 1<<10)
	parsedEnd := parseControlFlowLoopEnd(end.LoopEnd(), 8)
	assert.Equal(t, uint32(5), parsedEnd.LoopConstantIndex)
	assert.True(t, parsedEnd.IsPredicatedBreak)
	assert.True(t, parsedEnd.PredicateCondition)
	assert.Equal(t, uint32(3), parsedEnd.LoopBodyAddress)
}

func TestParseControlFlowCondCall(t *testing.T) {
	uncond := makeCf(ucode.ControlFlowOpcodeCondCall, 6|1<<13, 0)
	parsed := parseControlFlowCondCall(uncond.CondCall(), 0)
	assert.Equal(t, ControlFlowTypeUnconditional, parsed.Type)
	assert.Equal(t, uint32(6), parsed.TargetAddress)

	pred := makeCf(ucode.ControlFlowOpcodeCondCall, 6|1<<14, 1<<10)
	parsed = parseControlFlowCondCall(pred.CondCall(), 0)
	assert.Equal(t, ControlFlowTypePredicated, parsed.Type)
	assert.True(t, parsed.Condition)

	cond := makeCf(ucode.ControlFlowOpcodeCondCall, 6, 0x12<<2)
	parsed = parseControlFlowCondCall(cond.CondCall(), 0)
	assert.Equal(t, ControlFlowTypeConditional, parsed.Type)
	assert.Equal(t, uint32(0x12), parsed.BoolConstantIndex)
	assert.False(t, parsed.Condition)
}

func TestParseControlFlowCondJmp(t *testing.T) {
	cond := makeCf(ucode.ControlFlowOpcodeCondJmp, 11, 0x34<<2|1<<10)
	parsed := parseControlFlowCondJmp(cond.CondJmp(), 4)
	assert.Equal(t, ControlFlowTypeConditional, parsed.Type)
	assert.Equal(t, uint32(11), parsed.TargetAddress)
	assert.Equal(t, uint32(0x34), parsed.BoolConstantIndex)
	assert.True(t, parsed.Condition)
}

func TestParseControlFlowAlloc(t *testing.T) {
	cf := makeCf(ucode.ControlFlowOpcodeAlloc, 3, uint32(ucode.AllocTypeMemory)<<9)
	parsed := parseControlFlowAlloc(cf.Alloc(), 5, true)
	assert.Equal(t, ucode.AllocTypeMemory, parsed.Type)
	assert.Equal(t, uint32(3), parsed.Count)
	assert.True(t, parsed.IsVertexShader)
}
