package shader

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenosgpu/xenos/internal/ucode"
)

// recordingBackend logs every hook invocation in walk order and can be told
// to fail specific hooks.
type recordingBackend struct {
	calls []string

	modificationRegisterCount uint32
	binary                    []byte
	failAlu                   bool
	failAluMessage            string
	postTranslation           func(*Translation)
}

func (b *recordingBackend) record(call string) { b.calls = append(b.calls, call) }

func (b *recordingBackend) ModificationRegisterCount() uint32 { return b.modificationRegisterCount }

func (b *recordingBackend) StartTranslation() error {
	b.record("start")
	return nil
}

func (b *recordingBackend) CompleteTranslation() ([]byte, error) {
	b.record("complete")
	return b.binary, nil
}

func (b *recordingBackend) PostTranslation(translation *Translation) {
	b.record("post")
	if b.postTranslation != nil {
		b.postTranslation(translation)
	}
}

func (b *recordingBackend) PreProcessControlFlowInstructions(instrs []ucode.ControlFlowInstruction) error {
	b.record("preprocess")
	return nil
}

func (b *recordingBackend) ProcessLabel(cfIndex uint32) error {
	b.record("label")
	return nil
}

func (b *recordingBackend) ProcessControlFlowInstructionBegin(cfIndex uint32) error {
	b.record("cf begin")
	return nil
}

func (b *recordingBackend) ProcessControlFlowInstructionEnd(cfIndex uint32) error {
	b.record("cf end")
	return nil
}

func (b *recordingBackend) ProcessControlFlowNopInstruction(cfIndex uint32) error {
	b.record("cnop")
	return nil
}

func (b *recordingBackend) ProcessExecInstructionBegin(instr ParsedExecInstruction) error {
	b.record("exec begin")
	return nil
}

func (b *recordingBackend) ProcessExecInstructionEnd(instr ParsedExecInstruction) error {
	b.record("exec end")
	return nil
}

func (b *recordingBackend) ProcessLoopStartInstruction(instr ParsedLoopStartInstruction) error {
	b.record("loop start")
	return nil
}

func (b *recordingBackend) ProcessLoopEndInstruction(instr ParsedLoopEndInstruction) error {
	b.record("loop end")
	return nil
}

func (b *recordingBackend) ProcessCallInstruction(instr ParsedCallInstruction) error {
	b.record("call")
	return nil
}

func (b *recordingBackend) ProcessReturnInstruction(instr ParsedReturnInstruction) error {
	b.record("return")
	return nil
}

func (b *recordingBackend) ProcessJumpInstruction(instr ParsedJumpInstruction) error {
	b.record("jump")
	return nil
}

func (b *recordingBackend) ProcessAllocInstruction(instr ParsedAllocInstruction) error {
	b.record("alloc")
	return nil
}

func (b *recordingBackend) ProcessVertexFetchInstruction(instr ParsedVertexFetchInstruction) error {
	b.record("vfetch")
	return nil
}

func (b *recordingBackend) ProcessTextureFetchInstruction(instr ParsedTextureFetchInstruction) error {
	b.record("tfetch")
	return nil
}

func (b *recordingBackend) ProcessAluInstruction(instr ParsedAluInstruction) error {
	b.record("alu")
	if b.failAlu {
		if b.failAluMessage != "" {
			return errors.New(b.failAluMessage)
		}
		return errors.New("alu unsupported")
	}
	return nil
}

// cfVisitRecordingBackend additionally records the control flow indices the
// walk visits, in order.
type cfVisitRecordingBackend struct {
	recordingBackend
	visited []uint32
}

func (b *cfVisitRecordingBackend) ProcessControlFlowInstructionBegin(cfIndex uint32) error {
	b.visited = append(b.visited, cfIndex)
	return b.recordingBackend.ProcessControlFlowInstructionBegin(cfIndex)
}

func analyzedTestShader(t *testing.T) *Shader {
	t.Helper()
	vfetch := [3]uint32{1 << 12, 0b011_010_001_000, 4}
	export := [3]uint32{
		62 | 1<<15 | 0b1111<<16 | uint32(ucode.AluScalarOpcodeRetainPrev)<<26,
		0,
		1<<16 | 1<<8 | 1<<31 | 1<<30,
	}
	data := assembleProgram(
		[][2]ucode.ControlFlowInstruction{{
			execCf(ucode.ControlFlowOpcodeExec, 1, 2, 0b0001),
			makeCf(ucode.ControlFlowOpcodeNop, 0, 0),
		}},
		vfetch, export)
	sh := NewShader(TypeVertex, data)
	require.NoError(t, sh.Analyze())
	return sh
}

func TestTranslateRequiresAnalysis(t *testing.T) {
	sh := NewShader(TypeVertex, nil)
	translator := NewTranslator(&recordingBackend{})
	err := translator.Translate(NewTranslation(sh))
	assert.ErrorIs(t, err, ErrNotAnalyzed)
}

func TestTranslateWalkOrder(t *testing.T) {
	sh := analyzedTestShader(t)
	backend := &recordingBackend{binary: []byte{0xAB}}
	translator := NewTranslator(backend)
	translation := NewTranslation(sh)
	require.NoError(t, translator.Translate(translation))

	assert.Equal(t, []string{
		"start", "preprocess",
		"cf begin", "exec begin", "vfetch", "alu", "exec end", "cf end",
		"cf begin", "cnop", "cf end",
		"complete", "post",
	}, backend.calls)

	assert.True(t, translation.IsTranslated())
	assert.True(t, translation.IsValid())
	assert.Equal(t, []byte{0xAB}, translation.TranslatedBinary())
	assert.Empty(t, translation.Errors())
}

func TestTranslateHookErrorsAreFatalButWalkContinues(t *testing.T) {
	sh := analyzedTestShader(t)
	backend := &recordingBackend{failAlu: true}
	translator := NewTranslator(backend)
	translation := NewTranslation(sh)
	require.NoError(t, translator.Translate(translation))

	// The walk reached the end despite the failing hook.
	assert.Equal(t, "post", backend.calls[len(backend.calls)-1])
	assert.True(t, translation.IsTranslated())
	assert.False(t, translation.IsValid())
	require.Len(t, translation.Errors(), 1)
	assert.True(t, translation.Errors()[0].IsFatal)
	assert.Equal(t, "alu unsupported", translation.Errors()[0].Message)
}

func TestTranslateRegisterCount(t *testing.T) {
	sh := analyzedTestShader(t)
	translator := NewTranslator(&recordingBackend{modificationRegisterCount: 64})
	require.NoError(t, translator.Translate(NewTranslation(sh)))

	// No dynamic addressing, so the static bound wins over the backend floor.
	assert.Equal(t, sh.RegisterStaticAddressBound(), translator.RegisterCount())

	// With dynamic register addressing the backend floor applies.
	dynAlu := [3]uint32{
		0b1111<<16 | uint32(ucode.AluScalarOpcodeRetainPrev)<<26,
		0,
		uint32(0x45)<<16 | 1<<8 | 1<<31 | 1<<30,
	}
	dynData := assembleProgram(
		[][2]ucode.ControlFlowInstruction{{
			execCf(ucode.ControlFlowOpcodeExecEnd, 1, 1, 0),
			makeCf(ucode.ControlFlowOpcodeNop, 0, 0),
		}},
		dynAlu)
	dynShader := NewShader(TypeVertex, dynData)
	require.NoError(t, dynShader.Analyze())
	require.True(t, dynShader.UsesRegisterDynamicAddressing())

	require.NoError(t, translator.Translate(NewTranslation(dynShader)))
	assert.Equal(t, uint32(64), translator.RegisterCount())
}

func TestTranslateKeepsEarlierTranslationErrors(t *testing.T) {
	backend := &recordingBackend{failAlu: true, failAluMessage: "first"}
	translator := NewTranslator(backend)

	first := NewTranslation(analyzedTestShader(t))
	require.NoError(t, translator.Translate(first))
	require.Len(t, first.Errors(), 1)

	backend.failAluMessage = "second"
	second := NewTranslation(analyzedTestShader(t))
	require.NoError(t, translator.Translate(second))
	require.Len(t, second.Errors(), 1)

	// Reusing the translator must not touch the list handed to the first
	// translation.
	assert.Equal(t, "first", first.Errors()[0].Message)
	assert.Equal(t, "second", second.Errors()[0].Message)
}

func TestTranslateExecPastBufferEnd(t *testing.T) {
	data := assembleProgram([][2]ucode.ControlFlowInstruction{{
		execCf(ucode.ControlFlowOpcodeExecEnd, 1, 1, 0),
		makeCf(ucode.ControlFlowOpcodeNop, 0, 0),
	}})
	sh := NewShader(TypeVertex, data)
	// Sidestep the analysis-time range check so the translation-time one
	// gets exercised on its own.
	sh.analyzed = true
	sh.cfPairIndexBound = 1

	backend := &recordingBackend{}
	translator := NewTranslator(backend)
	translation := NewTranslation(sh)
	require.NoError(t, translator.Translate(translation))

	assert.False(t, translation.IsValid())
	require.NotEmpty(t, translation.Errors())
	assert.True(t, translation.Errors()[0].IsFatal)
	assert.Contains(t, translation.Errors()[0].Message, "past the microcode end")
	// The walk still balanced the exec block and finished.
	assert.Contains(t, backend.calls, "exec end")
	assert.Equal(t, "post", backend.calls[len(backend.calls)-1])
}

func TestAnalysisAndTranslationWalksMatch(t *testing.T) {
	vfetch := [3]uint32{1 << 12, 0b011_010_001_000, 4}
	mul := [3]uint32{
		2 | 0b1111<<16 | uint32(ucode.AluScalarOpcodeRetainPrev)<<26,
		0,
		1<<16 | 10<<8 | uint32(ucode.AluVectorOpcodeMul)<<24 | 1<<31,
	}
	export := [3]uint32{
		62 | 1<<15 | 0b1111<<16 | uint32(ucode.AluScalarOpcodeRetainPrev)<<26,
		0,
		2<<16 | 2<<8 | 1<<31 | 1<<30,
	}
	data := assembleProgram(
		[][2]ucode.ControlFlowInstruction{
			{
				makeCf(ucode.ControlFlowOpcodeAlloc, 0, uint32(ucode.AllocTypePosition)<<9),
				execCf(ucode.ControlFlowOpcodeExec, 2, 2, 0b0001),
			},
			{
				execCf(ucode.ControlFlowOpcodeExecEnd, 4, 1, 0),
				makeCf(ucode.ControlFlowOpcodeNop, 0, 0),
			},
		},
		vfetch, mul, export)
	sh := NewShader(TypeVertex, data)
	require.NoError(t, sh.Analyze())
	require.Equal(t, uint32(2), sh.CfPairIndexBound())

	// Control flow slots visited by analysis, read back from the listing
	// prefixes.
	var analysisVisited []uint32
	for _, line := range strings.Split(sh.UcodeDisassembly(), "\n") {
		if !strings.HasPrefix(line, "/*") || len(line) < 10 || line[7] != '.' {
			continue
		}
		pair, err := strconv.Atoi(strings.TrimSpace(line[3:7]))
		require.NoError(t, err)
		slot := int(line[8] - '0')
		analysisVisited = append(analysisVisited, uint32(pair*2+slot))
	}

	backend := &cfVisitRecordingBackend{}
	translator := NewTranslator(backend)
	require.NoError(t, translator.Translate(NewTranslation(sh)))

	// Both walks see the same control flow slots in the same order.
	require.Equal(t, analysisVisited, backend.visited)

	var opcodes []ucode.ControlFlowOpcode
	ucodeData := sh.UcodeData()
	for _, cfIndex := range backend.visited {
		pair := cfIndex / 2
		cfAB := ucode.UnpackControlFlowInstructions([3]uint32{
			ucodeData[pair*3], ucodeData[pair*3+1], ucodeData[pair*3+2]})
		opcodes = append(opcodes, cfAB[cfIndex%2].Opcode())
	}
	assert.Equal(t, []ucode.ControlFlowOpcode{
		ucode.ControlFlowOpcodeAlloc, ucode.ControlFlowOpcodeExec,
		ucode.ControlFlowOpcodeExecEnd, ucode.ControlFlowOpcodeNop,
	}, opcodes)
}

func TestTranslationInvalidate(t *testing.T) {
	sh := analyzedTestShader(t)
	backend := &recordingBackend{
		postTranslation: func(tr *Translation) { tr.Invalidate() },
	}
	translator := NewTranslator(backend)
	translation := NewTranslation(sh)
	require.NoError(t, translator.Translate(translation))

	assert.True(t, translation.IsTranslated())
	assert.False(t, translation.IsValid())
}
