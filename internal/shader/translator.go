package shader

import (
	"errors"
	"fmt"

	"github.com/xenosgpu/xenos/internal/ucode"
	"github.com/xenosgpu/xenos/pkg/log"
)

// ErrNotAnalyzed is returned when translation is attempted before Analyze.
var ErrNotAnalyzed = errors.New("shader must be analyzed before translation")

// Translation is one backend's output for a shader. A shader can have
// several translations (different backends or modifications), all sharing
// the analysis results.
type Translation struct {
	shader *Shader

	translatedBinary []byte
	translationErrs  []Error
	isTranslated     bool
	isValid          bool
}

// NewTranslation prepares an empty translation of sh.
func NewTranslation(sh *Shader) *Translation {
	return &Translation{shader: sh}
}

func (t *Translation) Shader() *Shader { return t.shader }

// TranslatedBinary is the backend output, valid once IsTranslated.
func (t *Translation) TranslatedBinary() []byte { return t.translatedBinary }

func (t *Translation) Errors() []Error { return t.translationErrs }
func (t *Translation) IsTranslated() bool { return t.isTranslated }

// IsValid reports whether the binary is usable: translated without fatal
// errors.
func (t *Translation) IsValid() bool { return t.isValid }

// Invalidate marks the translation unusable. Backends can call this from
// their post-translation hook when late validation fails.
func (t *Translation) Invalidate() { t.isValid = false }

// Backend receives the translation walk of a shader and produces the target
// representation. All hooks run in microcode order; a hook returning an
// error records it as fatal, and the walk still continues so every problem
// in the program is reported at once.
type Backend interface {
	// ModificationRegisterCount is the dynamically addressable register file
	// size the pipeline state requires, applied as a floor when the shader
	// uses register dynamic addressing.
	ModificationRegisterCount() uint32

	StartTranslation() error
	// CompleteTranslation returns the final binary.
	CompleteTranslation() ([]byte, error)
	// PostTranslation runs after the translation is assembled and validated.
	PostTranslation(translation *Translation)

	// PreProcessControlFlowInstructions sees the whole control flow program
	// before any instruction hook, for backends that need jump targets ahead
	// of time.
	PreProcessControlFlowInstructions(instrs []ucode.ControlFlowInstruction) error

	ProcessLabel(cfIndex uint32) error
	ProcessControlFlowInstructionBegin(cfIndex uint32) error
	ProcessControlFlowInstructionEnd(cfIndex uint32) error
	ProcessControlFlowNopInstruction(cfIndex uint32) error

	ProcessExecInstructionBegin(instr ParsedExecInstruction) error
	ProcessExecInstructionEnd(instr ParsedExecInstruction) error
	ProcessLoopStartInstruction(instr ParsedLoopStartInstruction) error
	ProcessLoopEndInstruction(instr ParsedLoopEndInstruction) error
	ProcessCallInstruction(instr ParsedCallInstruction) error
	ProcessReturnInstruction(instr ParsedReturnInstruction) error
	ProcessJumpInstruction(instr ParsedJumpInstruction) error
	ProcessAllocInstruction(instr ParsedAllocInstruction) error

	ProcessVertexFetchInstruction(instr ParsedVertexFetchInstruction) error
	ProcessTextureFetchInstruction(instr ParsedTextureFetchInstruction) error
	ProcessAluInstruction(instr ParsedAluInstruction) error
}

// Translator drives one backend over analyzed shaders. It replays the same
// walk Analyze performs, so a backend sees exactly the instructions that
// were gathered. Not safe for concurrent use; one translator per goroutine.
type Translator struct {
	backend Backend

	translationErrs    []Error
	previousVfetchFull ucode.VertexFetchInstruction
	cfIndex            uint32
	registerCount      uint32
}

func NewTranslator(backend Backend) *Translator {
	return &Translator{backend: backend}
}

// RegisterCount is the temporary register file size of the shader being
// translated: the static addressing bound, raised to the backend's
// modification floor when dynamic addressing is in use.
func (t *Translator) RegisterCount() uint32 { return t.registerCount }

func (t *Translator) reset() {
	// The previous run's slice now belongs to its Translation; never reuse
	// the backing array.
	t.translationErrs = nil
	t.previousVfetchFull = ucode.VertexFetchInstruction{}
}

// EmitError records a translation problem. Fatal errors invalidate the
// produced binary but never stop the walk.
func (t *Translator) EmitError(message string, isFatal bool) {
	t.translationErrs = append(t.translationErrs, Error{Message: message, IsFatal: isFatal})
	evt := log.Translator.Warn()
	if isFatal {
		evt = log.Translator.Error()
	}
	evt.Bool("fatal", isFatal).Msg(message)
}

// Translate runs the backend over the translation's shader and fills in the
// binary, errors and validity. The returned error covers driver failures
// only; per-instruction problems land in translation.Errors.
func (t *Translator) Translate(translation *Translation) error {
	sh := translation.shader
	if !sh.IsUcodeAnalyzed() {
		return ErrNotAnalyzed
	}

	t.reset()

	t.registerCount = sh.RegisterStaticAddressBound()
	if sh.UsesRegisterDynamicAddressing() {
		// A register array at the end of the r# space may be dynamically
		// addressed; the pipeline state decides how much space that needs.
		if floor := t.backend.ModificationRegisterCount(); floor > t.registerCount {
			t.registerCount = floor
		}
	}

	if err := t.backend.StartTranslation(); err != nil {
		return err
	}

	ucodeData := sh.UcodeData()
	bound := sh.CfPairIndexBound()

	cfInstructions := make([]ucode.ControlFlowInstruction, 0, bound*2)
	for i := uint32(0); i < bound; i++ {
		cfAB := ucode.UnpackControlFlowInstructions(
			[3]uint32{ucodeData[i*3], ucodeData[i*3+1], ucodeData[i*3+2]})
		cfInstructions = append(cfInstructions, cfAB[0], cfAB[1])
	}
	if err := t.backend.PreProcessControlFlowInstructions(cfInstructions); err != nil {
		return err
	}

	for i := uint32(0); i < bound; i++ {
		for j := uint32(0); j < 2; j++ {
			cfIndex := i*2 + j
			t.cfIndex = cfIndex
			if sh.HasLabel(cfIndex) {
				t.hook(t.backend.ProcessLabel(cfIndex))
			}
			t.hook(t.backend.ProcessControlFlowInstructionBegin(cfIndex))
			t.translateControlFlowInstruction(sh, cfInstructions[cfIndex])
			t.hook(t.backend.ProcessControlFlowInstructionEnd(cfIndex))
		}
	}

	translation.translationErrs = t.translationErrs
	binary, err := t.backend.CompleteTranslation()
	if err != nil {
		return err
	}
	translation.translatedBinary = binary
	translation.isTranslated = true

	isValid := true
	for _, e := range translation.translationErrs {
		if e.IsFatal {
			isValid = false
			break
		}
	}
	translation.isValid = isValid

	t.backend.PostTranslation(translation)
	return nil
}

// hook records a backend error as fatal without stopping the walk.
func (t *Translator) hook(err error) {
	if err != nil {
		t.EmitError(err.Error(), true)
	}
}

func (t *Translator) translateControlFlowInstruction(sh *Shader, cf ucode.ControlFlowInstruction) {
	cfIndex := t.cfIndex
	switch cf.Opcode() {
	case ucode.ControlFlowOpcodeNop:
		t.hook(t.backend.ProcessControlFlowNopInstruction(cfIndex))
	case ucode.ControlFlowOpcodeExec, ucode.ControlFlowOpcodeExecEnd:
		instr := parseControlFlowExec(ucode.ControlFlowExecInstruction(cf), cfIndex)
		t.translateExecInstructions(sh, instr)
	case ucode.ControlFlowOpcodeCondExec, ucode.ControlFlowOpcodeCondExecEnd,
		ucode.ControlFlowOpcodeCondExecPredClean, ucode.ControlFlowOpcodeCondExecPredCleanEnd:
		instr := parseControlFlowCondExec(ucode.ControlFlowCondExecInstruction(cf), cfIndex)
		t.translateExecInstructions(sh, instr)
	case ucode.ControlFlowOpcodeCondExecPred, ucode.ControlFlowOpcodeCondExecPredEnd:
		instr := parseControlFlowCondExecPred(ucode.ControlFlowCondExecPredInstruction(cf), cfIndex)
		t.translateExecInstructions(sh, instr)
	case ucode.ControlFlowOpcodeLoopStart:
		instr := parseControlFlowLoopStart(ucode.ControlFlowLoopStartInstruction(cf), cfIndex)
		t.hook(t.backend.ProcessLoopStartInstruction(instr))
	case ucode.ControlFlowOpcodeLoopEnd:
		instr := parseControlFlowLoopEnd(ucode.ControlFlowLoopEndInstruction(cf), cfIndex)
		t.hook(t.backend.ProcessLoopEndInstruction(instr))
	case ucode.ControlFlowOpcodeCondCall:
		instr := parseControlFlowCondCall(ucode.ControlFlowCondCallInstruction(cf), cfIndex)
		t.hook(t.backend.ProcessCallInstruction(instr))
	case ucode.ControlFlowOpcodeReturn:
		instr := parseControlFlowReturn(cfIndex)
		t.hook(t.backend.ProcessReturnInstruction(instr))
	case ucode.ControlFlowOpcodeCondJmp:
		instr := parseControlFlowCondJmp(ucode.ControlFlowCondJmpInstruction(cf), cfIndex)
		t.hook(t.backend.ProcessJumpInstruction(instr))
	case ucode.ControlFlowOpcodeAlloc:
		instr := parseControlFlowAlloc(ucode.ControlFlowAllocInstruction(cf), cfIndex,
			sh.Type() == TypeVertex)
		t.hook(t.backend.ProcessAllocInstruction(instr))
	case ucode.ControlFlowOpcodeMarkVsFetchDone:
	default:
		panic("unreachable")
	}
}

func (t *Translator) translateExecInstructions(sh *Shader, instr ParsedExecInstruction) {
	t.hook(t.backend.ProcessExecInstructionBegin(instr))
	ucodeData := sh.UcodeData()
	totalSlots := uint32(len(ucodeData) / 3)
	if instr.InstructionAddress > totalSlots ||
		instr.InstructionCount > totalSlots-instr.InstructionAddress {
		t.EmitError(fmt.Sprintf(
			"exec block at cf %d references instructions [%d, %d) past the microcode end (%d slots)",
			instr.DwordIndex, instr.InstructionAddress,
			instr.InstructionAddress+instr.InstructionCount, totalSlots), true)
		t.hook(t.backend.ProcessExecInstructionEnd(instr))
		return
	}
	sequence := instr.Sequence
	for offset := instr.InstructionAddress; offset < instr.InstructionAddress+instr.InstructionCount; offset++ {
		words := [3]uint32{
			ucodeData[offset*3], ucodeData[offset*3+1], ucodeData[offset*3+2]}
		if sequence&0b01 != 0 {
			if ucode.FetchOpcodeFromWord(words[0]) == ucode.FetchOpcodeVertexFetch {
				op := ucode.NewVertexFetchInstruction(words)
				vfetchInstr, wasFull := parseVertexFetchInstruction(op, t.previousVfetchFull)
				if wasFull {
					t.previousVfetchFull = op
				}
				t.hook(t.backend.ProcessVertexFetchInstruction(vfetchInstr))
			} else {
				op := ucode.NewTextureFetchInstruction(words)
				t.hook(t.backend.ProcessTextureFetchInstruction(parseTextureFetchInstruction(op)))
			}
		} else {
			op := ucode.NewAluInstruction(words)
			aluInstr, err := parseAluInstruction(op, sh.Type())
			if err != nil {
				t.EmitError(err.Error(), true)
			}
			t.hook(t.backend.ProcessAluInstruction(aluInstr))
		}
		sequence >>= 2
	}
	t.hook(t.backend.ProcessExecInstructionEnd(instr))
}
