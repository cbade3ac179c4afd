package shader

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/xenosgpu/xenos/internal/crypto"
	"github.com/xenosgpu/xenos/internal/ucode"
	"github.com/xenosgpu/xenos/pkg/log"
)

// MaxMemExports is the hardware limit of memory export streams (alloc
// export-memory instructions) in one shader.
const MaxMemExports = 16

// Error is one problem found while translating a shader. Fatal errors make
// the produced binary unusable.
type Error struct {
	Message string
	IsFatal bool
}

// ConstantRegisterMap records which constant registers a shader can access.
type ConstantRegisterMap struct {
	// One bit per float constant register, 256 total.
	FloatBitmap [4]uint64
	// One bit per boolean constant, 256 total.
	BoolBitmap [8]uint32
	// One bit per loop constant, 32 total.
	LoopBitmap uint32

	// Number of float4 constants referenced, 256 when dynamically addressed.
	FloatCount uint32
	// Float constants are indexed through the address register somewhere, so
	// the static bitmap is not exhaustive.
	FloatDynamicAddressing bool
}

// VertexBindingAttribute is one vertex fetch drawing from a binding.
type VertexBindingAttribute struct {
	FetchInstr ParsedVertexFetchInstruction
}

// VertexBinding is one vertex buffer the shader fetches from, grouping all
// fetches sharing a fetch constant.
type VertexBinding struct {
	BindingIndex  int
	FetchConstant uint32
	// Stride between vertices, in dwords.
	StrideWords uint32
	Attributes  []VertexBindingAttribute
}

// TextureBinding is one texture fetch site. Fetches reusing a fetch constant
// share a binding index but keep their own entries.
type TextureBinding struct {
	BindingIndex  uint32
	FetchConstant uint32
	FetchInstr    ParsedTextureFetchInstruction
}

// Shader is one Xenos shader program: the raw microcode plus everything
// analysis derives from it. Analyze must run before translation.
type Shader struct {
	shaderType Type
	ucodeData  []uint32
	ucodeHash  crypto.Hash

	analyzed         bool
	cfPairIndexBound uint32
	labelAddresses   map[uint32]struct{}
	disassembly      string

	constantRegisterMap        ConstantRegisterMap
	vertexBindings             []VertexBinding
	textureBindings            []TextureBinding
	uniqueTextureBindingCount  uint32
	registerStaticAddressBound uint32
	usesRegisterDynamicAddr    bool
	killsPixels                bool
	writesColorTargets         uint32
	writesDepth                bool

	memExportStreamConstants map[uint32]struct{}
	memExportEMWritten       [MaxMemExports]uint32
}

// NewShader wraps raw microcode dwords. The data is not copied.
func NewShader(shaderType Type, ucodeData []uint32) *Shader {
	return &Shader{
		shaderType:               shaderType,
		ucodeData:                ucodeData,
		ucodeHash:                crypto.HashU32Data(ucodeData),
		labelAddresses:           make(map[uint32]struct{}),
		memExportStreamConstants: make(map[uint32]struct{}),
	}
}

func (s *Shader) Type() Type { return s.shaderType }
func (s *Shader) UcodeData() []uint32 { return s.ucodeData }
func (s *Shader) UcodeHash() crypto.Hash { return s.ucodeHash }
func (s *Shader) IsUcodeAnalyzed() bool { return s.analyzed }
func (s *Shader) CfPairIndexBound() uint32 { return s.cfPairIndexBound }

// UcodeDisassembly is the canonical disassembly listing, built by Analyze.
func (s *Shader) UcodeDisassembly() string { return s.disassembly }

func (s *Shader) ConstantRegisterMap() *ConstantRegisterMap { return &s.constantRegisterMap }
func (s *Shader) VertexBindings() []VertexBinding { return s.vertexBindings }
func (s *Shader) TextureBindings() []TextureBinding { return s.textureBindings }
func (s *Shader) UniqueTextureBindingCount() uint32 { return s.uniqueTextureBindingCount }

// RegisterStaticAddressBound is one past the highest statically addressed
// temporary register.
func (s *Shader) RegisterStaticAddressBound() uint32 { return s.registerStaticAddressBound }

func (s *Shader) UsesRegisterDynamicAddressing() bool { return s.usesRegisterDynamicAddr }
func (s *Shader) KillsPixels() bool { return s.killsPixels }

// WritesColorTarget reports whether render target rt receives a color export.
func (s *Shader) WritesColorTarget(rt uint32) bool {
	return s.writesColorTargets&(1<<rt) != 0
}

func (s *Shader) WritesDepth() bool { return s.writesDepth }

// MemExportStreamConstants returns the float constant indices holding memory
// export stream descriptors.
func (s *Shader) MemExportStreamConstants() map[uint32]struct{} {
	return s.memExportStreamConstants
}

// HasLabel reports whether address is a control flow jump/call/loop target.
func (s *Shader) HasLabel(address uint32) bool {
	_, ok := s.labelAddresses[address]
	return ok
}

func (s *Shader) resetAnalysisState() {
	s.cfPairIndexBound = 0
	s.labelAddresses = make(map[uint32]struct{})
	s.disassembly = ""
	s.constantRegisterMap = ConstantRegisterMap{}
	s.vertexBindings = nil
	s.textureBindings = nil
	s.uniqueTextureBindingCount = 0
	s.registerStaticAddressBound = 0
	s.usesRegisterDynamicAddr = false
	s.killsPixels = false
	s.writesColorTargets = 0
	s.writesDepth = false
	s.memExportStreamConstants = make(map[uint32]struct{})
	s.memExportEMWritten = [MaxMemExports]uint32{}
}

// Analyze walks the microcode once to find the control flow program bound,
// label addresses, resource usage and the disassembly listing. It is
// idempotent; repeated calls return the first result.
func (s *Shader) Analyze() error {
	if s.analyzed {
		return nil
	}

	// A failed earlier attempt may have left partial results behind.
	s.resetAnalysisState()

	// Control flow instructions come paired in blocks of 3 dwords, listed at
	// the top of the microcode and executed sequentially. The program length
	// is not encoded anywhere; guess it by scanning for the lowest address
	// any exec-class instruction targets, the way freedreno does. The scan
	// covers every pair of the buffer, not just those below the shrinking
	// bound, so labels in skipped tail pairs still register.
	totalPairCount := uint32(len(s.ucodeData) / 3)
	bound := totalPairCount
	for i := uint32(0); i < totalPairCount; i++ {
		cfAB := ucode.UnpackControlFlowInstructions(
			[3]uint32{s.ucodeData[i*3], s.ucodeData[i*3+1], s.ucodeData[i*3+2]})
		for j := 0; j < 2; j++ {
			cf := cfAB[j]
			if ucode.IsControlFlowOpcodeExec(cf.Opcode()) {
				addr := ucode.ControlFlowExecInstruction(cf).Address()
				if addr < bound {
					bound = addr
				}
			}
			switch cf.Opcode() {
			case ucode.ControlFlowOpcodeCondCall:
				s.labelAddresses[ucode.ControlFlowCondCallInstruction(cf).Address()] = struct{}{}
			case ucode.ControlFlowOpcodeCondJmp:
				s.labelAddresses[ucode.ControlFlowCondJmpInstruction(cf).Address()] = struct{}{}
			case ucode.ControlFlowOpcodeLoopStart:
				s.labelAddresses[ucode.ControlFlowLoopStartInstruction(cf).Address()] = struct{}{}
			case ucode.ControlFlowOpcodeLoopEnd:
				s.labelAddresses[ucode.ControlFlowLoopEndInstruction(cf).Address()] = struct{}{}
			}
		}
	}
	s.cfPairIndexBound = bound

	// Disassemble and gather information in one pass.
	var disasm strings.Builder
	var previousVfetchFull ucode.VertexFetchInstruction
	memExportAllocCount := uint32(0)
	memExportEAWritten := uint32(0)
	for i := uint32(0); i < s.cfPairIndexBound; i++ {
		cfAB := ucode.UnpackControlFlowInstructions(
			[3]uint32{s.ucodeData[i*3], s.ucodeData[i*3+1], s.ucodeData[i*3+2]})
		for j := uint32(0); j < 2; j++ {
			cfIndex := i*2 + j
			if s.HasLabel(cfIndex) {
				fmt.Fprintf(&disasm, "                label L%d\n", cfIndex)
			}
			fmt.Fprintf(&disasm, "/* %4d.%d */ ", i, j)

			cf := cfAB[j]
			boolConstantIndex := ^uint32(0)
			switch cf.Opcode() {
			case ucode.ControlFlowOpcodeNop:
				disasm.WriteString("      cnop\n")
			case ucode.ControlFlowOpcodeExec, ucode.ControlFlowOpcodeExecEnd:
				instr := parseControlFlowExec(ucode.ControlFlowExecInstruction(cf), cfIndex)
				if err := s.gatherExecInformation(instr, &previousVfetchFull,
					memExportAllocCount, &memExportEAWritten, &disasm); err != nil {
					return err
				}
			case ucode.ControlFlowOpcodeCondExec, ucode.ControlFlowOpcodeCondExecEnd,
				ucode.ControlFlowOpcodeCondExecPredClean, ucode.ControlFlowOpcodeCondExecPredCleanEnd:
				boolConstantIndex = ucode.ControlFlowCondExecInstruction(cf).BoolAddress()
				instr := parseControlFlowCondExec(ucode.ControlFlowCondExecInstruction(cf), cfIndex)
				if err := s.gatherExecInformation(instr, &previousVfetchFull,
					memExportAllocCount, &memExportEAWritten, &disasm); err != nil {
					return err
				}
			case ucode.ControlFlowOpcodeCondExecPred, ucode.ControlFlowOpcodeCondExecPredEnd:
				instr := parseControlFlowCondExecPred(ucode.ControlFlowCondExecPredInstruction(cf), cfIndex)
				if err := s.gatherExecInformation(instr, &previousVfetchFull,
					memExportAllocCount, &memExportEAWritten, &disasm); err != nil {
					return err
				}
			case ucode.ControlFlowOpcodeLoopStart:
				instr := parseControlFlowLoopStart(ucode.ControlFlowLoopStartInstruction(cf), cfIndex)
				instr.Disassemble(&disasm)
				s.constantRegisterMap.LoopBitmap |= 1 << instr.LoopConstantIndex
			case ucode.ControlFlowOpcodeLoopEnd:
				instr := parseControlFlowLoopEnd(ucode.ControlFlowLoopEndInstruction(cf), cfIndex)
				instr.Disassemble(&disasm)
				s.constantRegisterMap.LoopBitmap |= 1 << instr.LoopConstantIndex
			case ucode.ControlFlowOpcodeCondCall:
				instr := parseControlFlowCondCall(ucode.ControlFlowCondCallInstruction(cf), cfIndex)
				instr.Disassemble(&disasm)
				if instr.Type == ControlFlowTypeConditional {
					boolConstantIndex = instr.BoolConstantIndex
				}
			case ucode.ControlFlowOpcodeReturn:
				instr := parseControlFlowReturn(cfIndex)
				instr.Disassemble(&disasm)
			case ucode.ControlFlowOpcodeCondJmp:
				instr := parseControlFlowCondJmp(ucode.ControlFlowCondJmpInstruction(cf), cfIndex)
				instr.Disassemble(&disasm)
				if instr.Type == ControlFlowTypeConditional {
					boolConstantIndex = instr.BoolConstantIndex
				}
			case ucode.ControlFlowOpcodeAlloc:
				instr := parseControlFlowAlloc(ucode.ControlFlowAllocInstruction(cf), cfIndex,
					s.shaderType == TypeVertex)
				instr.Disassemble(&disasm)
				if instr.Type == ucode.AllocTypeMemory {
					memExportAllocCount++
				}
			case ucode.ControlFlowOpcodeMarkVsFetchDone:
			default:
				panic("unreachable")
			}
			if boolConstantIndex != ^uint32(0) {
				s.constantRegisterMap.BoolBitmap[boolConstantIndex/32] |=
					1 << (boolConstantIndex % 32)
			}
		}
	}
	s.disassembly = disasm.String()

	if s.constantRegisterMap.FloatDynamicAddressing {
		// All of them can potentially be referenced.
		s.constantRegisterMap.FloatCount = 256
		for i := range s.constantRegisterMap.FloatBitmap {
			s.constantRegisterMap.FloatBitmap[i] = ^uint64(0)
		}
	} else {
		s.constantRegisterMap.FloatCount = 0
		for _, word := range s.constantRegisterMap.FloatBitmap {
			s.constantRegisterMap.FloatCount += uint32(bits.OnesCount64(word))
		}
	}

	// Discard memory export streams that never got a usable address or have
	// no data writes at all.
	for i := uint32(0); i < MaxMemExports; i++ {
		if memExportEAWritten&(1<<i) == 0 {
			s.memExportEMWritten[i] = 0
		} else if s.memExportEMWritten[i] == 0 {
			memExportEAWritten &^= 1 << i
		}
	}
	if memExportEAWritten == 0 {
		s.memExportStreamConstants = make(map[uint32]struct{})
	}

	s.analyzed = true
	return nil
}

// MemExportEMWritten returns the eM0-eM4 write mask of memory export stream
// index, zero for streams discarded by analysis.
func (s *Shader) MemExportEMWritten(index uint32) uint32 {
	return s.memExportEMWritten[index]
}

func (s *Shader) gatherExecInformation(instr ParsedExecInstruction,
	previousVfetchFull *ucode.VertexFetchInstruction,
	memExportAllocCount uint32, memExportEAWritten *uint32,
	disasm *strings.Builder) error {
	totalSlots := uint32(len(s.ucodeData) / 3)
	if instr.InstructionAddress > totalSlots ||
		instr.InstructionCount > totalSlots-instr.InstructionAddress {
		return fmt.Errorf(
			"exec block at cf %d references instructions [%d, %d) past the microcode end (%d slots)",
			instr.DwordIndex, instr.InstructionAddress,
			instr.InstructionAddress+instr.InstructionCount, totalSlots)
	}
	instr.Disassemble(disasm)
	sequence := instr.Sequence
	for offset := instr.InstructionAddress; offset < instr.InstructionAddress+instr.InstructionCount; offset++ {
		fmt.Fprintf(disasm, "/* %4d   */ ", offset)
		if sequence&0b10 != 0 {
			disasm.WriteString("         serialize\n             ")
		}
		words := [3]uint32{
			s.ucodeData[offset*3], s.ucodeData[offset*3+1], s.ucodeData[offset*3+2]}
		if sequence&0b01 != 0 {
			if ucode.FetchOpcodeFromWord(words[0]) == ucode.FetchOpcodeVertexFetch {
				op := ucode.NewVertexFetchInstruction(words)
				if err := s.gatherVertexFetchInformation(op, previousVfetchFull, disasm); err != nil {
					return err
				}
			} else {
				op := ucode.NewTextureFetchInstruction(words)
				s.gatherTextureFetchInformation(op, disasm)
			}
		} else {
			op := ucode.NewAluInstruction(words)
			s.gatherAluInstructionInformation(op, memExportAllocCount, memExportEAWritten, disasm)
		}
		sequence >>= 2
	}
	return nil
}

func (s *Shader) gatherVertexFetchInformation(op ucode.VertexFetchInstruction,
	previousVfetchFull *ucode.VertexFetchInstruction, disasm *strings.Builder) error {
	fetchInstr, wasFull := parseVertexFetchInstruction(op, *previousVfetchFull)
	if wasFull {
		*previousVfetchFull = op
	}
	fetchInstr.Disassemble(disasm)

	s.gatherFetchResultInformation(&fetchInstr.Result)

	// An instruction that fetches nothing does not need a binding.
	if fetchInstr.Result.GetUsedResultComponents() == 0 {
		return nil
	}

	for i := uint32(0); i < fetchInstr.OperandCount; i++ {
		s.gatherOperandInformation(&fetchInstr.Operands[i])
	}

	// Attach the attribute to the binding of its fetch slot, creating the
	// binding on first use.
	for bi := range s.vertexBindings {
		binding := &s.vertexBindings[bi]
		if binding.FetchConstant != op.FetchConstantIndex() {
			continue
		}
		if fetchInstr.Attributes.Stride != 0 &&
			binding.StrideWords != fetchInstr.Attributes.Stride {
			return fmt.Errorf(
				"vertex fetch constant %d has conflicting strides %d and %d",
				op.FetchConstantIndex(), binding.StrideWords, fetchInstr.Attributes.Stride)
		}
		binding.Attributes = append(binding.Attributes, VertexBindingAttribute{FetchInstr: fetchInstr})
		return nil
	}
	s.vertexBindings = append(s.vertexBindings, VertexBinding{
		BindingIndex:  len(s.vertexBindings),
		FetchConstant: op.FetchConstantIndex(),
		StrideWords:   fetchInstr.Attributes.Stride,
		Attributes:    []VertexBindingAttribute{{FetchInstr: fetchInstr}},
	})
	return nil
}

func (s *Shader) gatherTextureFetchInformation(op ucode.TextureFetchInstruction,
	disasm *strings.Builder) {
	var binding TextureBinding
	binding.FetchInstr = parseTextureFetchInstruction(op)
	binding.FetchInstr.Disassemble(disasm)

	s.gatherFetchResultInformation(&binding.FetchInstr.Result)
	for i := uint32(0); i < binding.FetchInstr.OperandCount; i++ {
		s.gatherOperandInformation(&binding.FetchInstr.Operands[i])
	}

	if !isTextureBindingOpcode(op.Opcode()) {
		return
	}
	binding.FetchConstant = binding.FetchInstr.Operands[1].StorageIndex

	// Fetches sharing a fetch constant share a binding index.
	bindingIndex := ^uint32(0)
	for _, prev := range s.textureBindings {
		if prev.FetchConstant == binding.FetchConstant {
			bindingIndex = prev.BindingIndex
			break
		}
	}
	if bindingIndex == ^uint32(0) {
		bindingIndex = s.uniqueTextureBindingCount
		s.uniqueTextureBindingCount++
	}
	binding.BindingIndex = bindingIndex
	s.textureBindings = append(s.textureBindings, binding)
}

func (s *Shader) gatherAluInstructionInformation(op ucode.AluInstruction,
	memExportAllocCount uint32, memExportEAWritten *uint32,
	disasm *strings.Builder) {
	instr, err := parseAluInstruction(op, s.shaderType)
	if err != nil {
		log.Shader.Warn().Err(err).Msg("alu instruction export analysis")
	}
	instr.Disassemble(disasm)

	s.killsPixels = s.killsPixels ||
		ucode.AluVectorOpcodeIsKill(op.VectorOpcode()) ||
		ucode.AluScalarOpcodeIsKill(op.ScalarOpcode())

	s.gatherAluResultInformation(&instr.VectorAndConstantResult, memExportAllocCount)
	s.gatherAluResultInformation(&instr.ScalarResult, memExportAllocCount)
	for i := uint32(0); i < instr.VectorOperandCount; i++ {
		s.gatherOperandInformation(&instr.VectorOperands[i])
	}
	for i := uint32(0); i < instr.ScalarOperandCount; i++ {
		s.gatherOperandInformation(&instr.ScalarOperands[i])
	}

	// Record the stream descriptor constant of an export address write. CPU
	// code needs the addresses and sizes, and backends need to know which
	// eA/eM# registers see writes. The address is normally set up with
	// mad eA, r#, const0100, c#.
	if instr.VectorAndConstantResult.Target == StorageTargetExportAddress &&
		memExportAllocCount > 0 && memExportAllocCount <= MaxMemExports {
		streamConstant := instr.GetMemExportStreamConstant()
		if streamConstant != MemExportStreamConstantNone {
			*memExportEAWritten |= 1 << (memExportAllocCount - 1)
			s.memExportStreamConstants[streamConstant] = struct{}{}
		} else {
			log.Shader.Warn().Uint32("cf_alloc", memExportAllocCount-1).
				Msg("could not extract memexport stream constant index")
		}
	}
}

func (s *Shader) gatherOperandInformation(operand *InstructionOperand) {
	switch operand.Source {
	case StorageSourceRegister:
		if operand.AddressingMode == StorageAddressingModeStatic {
			if bound := operand.StorageIndex + 1; bound > s.registerStaticAddressBound {
				s.registerStaticAddressBound = bound
			}
		} else {
			s.usesRegisterDynamicAddr = true
		}
	case StorageSourceConstantFloat:
		if operand.AddressingMode == StorageAddressingModeStatic {
			// Record statically used float constants so backends can pack
			// them tightly when nothing is dynamically indexed.
			s.constantRegisterMap.FloatBitmap[operand.StorageIndex>>6] |=
				1 << (operand.StorageIndex & 63)
		} else {
			s.constantRegisterMap.FloatDynamicAddressing = true
		}
	}
}

func (s *Shader) gatherFetchResultInformation(result *InstructionResult) {
	if result.GetUsedWriteMask() == 0 {
		return
	}
	// Fetch instructions cannot export.
	if result.AddressingMode == StorageAddressingModeStatic {
		if bound := result.StorageIndex + 1; bound > s.registerStaticAddressBound {
			s.registerStaticAddressBound = bound
		}
	} else {
		s.usesRegisterDynamicAddr = true
	}
}

func (s *Shader) gatherAluResultInformation(result *InstructionResult,
	memExportAllocCount uint32) {
	if result.GetUsedWriteMask() == 0 {
		return
	}
	switch result.Target {
	case StorageTargetRegister:
		if result.AddressingMode == StorageAddressingModeStatic {
			if bound := result.StorageIndex + 1; bound > s.registerStaticAddressBound {
				s.registerStaticAddressBound = bound
			}
		} else {
			s.usesRegisterDynamicAddr = true
		}
	case StorageTargetExportData:
		if memExportAllocCount > 0 && memExportAllocCount <= MaxMemExports {
			s.memExportEMWritten[memExportAllocCount-1] |= 1 << result.StorageIndex
		}
	case StorageTargetColor:
		s.writesColorTargets |= 1 << result.StorageIndex
	case StorageTargetDepth:
		s.writesDepth = true
	}
}
