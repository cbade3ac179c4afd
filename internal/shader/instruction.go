// Package shader decodes Xenos shader microcode into normalized instruction
// records, derives the resource requirements of a program, and replays the
// control flow walk for backend code generation.
package shader

import (
	"github.com/xenosgpu/xenos/internal/ucode"
)

// Type is the pipeline stage a shader program runs at. It changes export
// register resolution and alloc semantics.
type Type uint8

const (
	TypeVertex Type = iota
	TypePixel
)

func (t Type) String() string {
	if t == TypeVertex {
		return "vertex"
	}
	return "pixel"
}

// SwizzleSource selects what one component of an operand or result reads:
// a component of the storage value, or a fixed 0/1.
type SwizzleSource uint8

const (
	SwizzleX SwizzleSource = iota
	SwizzleY
	SwizzleZ
	SwizzleW
	Swizzle0
	Swizzle1
)

func (s SwizzleSource) String() string {
	return string("xyzw01"[s])
}

// SwizzleFromComponentIndex maps component ordinal 0-3 to its selector.
func SwizzleFromComponentIndex(i uint32) SwizzleSource {
	return SwizzleSource(i & 0b11)
}

// StorageSource is where an operand reads from.
type StorageSource uint8

const (
	StorageSourceRegister StorageSource = iota
	StorageSourceConstantFloat
	StorageSourceVertexFetchConstant
	StorageSourceTextureFetchConstant
)

// StorageTarget is where a result writes to.
type StorageTarget uint8

const (
	StorageTargetNone StorageTarget = iota
	StorageTargetRegister
	// Memory export address register eA.
	StorageTargetExportAddress
	// Memory export data registers eM0-eM4.
	StorageTargetExportData
	// Vertex shader interpolators o0-o15.
	StorageTargetInterpolator
	StorageTargetPosition
	StorageTargetPointSizeEdgeFlagKillVertex
	// Pixel shader color outputs oC0-oC3.
	StorageTargetColor
	StorageTargetDepth
)

// StorageAddressingMode is how a storage index is combined with the address
// register.
type StorageAddressingMode uint8

const (
	StorageAddressingModeStatic StorageAddressingMode = iota
	// storage_index + a0.
	StorageAddressingModeAddressRelative
	// a0 alone, the index is ignored.
	StorageAddressingModeAddressAbsolute
)

// InstructionOperand is one normalized instruction source.
type InstructionOperand struct {
	Source          StorageSource
	StorageIndex    uint32
	AddressingMode  StorageAddressingMode
	IsNegated       bool
	IsAbsoluteValue bool
	// Number of components read, 1-4.
	ComponentCount uint32
	Components     [4]SwizzleSource
}

// IsStandardSwizzle reports whether the operand reads its components in
// identity order with no modifiers.
func (op *InstructionOperand) IsStandardSwizzle() bool {
	if op.IsNegated || op.IsAbsoluteValue {
		return false
	}
	for i := uint32(0); i < op.ComponentCount; i++ {
		if op.Components[i] != SwizzleFromComponentIndex(i) {
			return false
		}
	}
	return true
}

// InstructionResult is one normalized instruction destination.
type InstructionResult struct {
	Target         StorageTarget
	StorageIndex   uint32
	AddressingMode StorageAddressingMode
	IsClamped      bool
	// Which of the four components are written at all.
	WriteMask uint32
	// What each written component holds: an instruction result component or
	// a constant 0/1.
	Components [4]SwizzleSource
}

// GetUsedWriteMask is the write mask, empty when there is no destination.
func (r *InstructionResult) GetUsedWriteMask() uint32 {
	if r.Target == StorageTargetNone {
		return 0
	}
	return r.WriteMask
}

// GetUsedResultComponents returns which components of the instruction's own
// result value are consumed, as opposed to constant 0/1 fills.
func (r *InstructionResult) GetUsedResultComponents() uint32 {
	mask := r.GetUsedWriteMask()
	used := uint32(0)
	for i := uint32(0); i < 4; i++ {
		if mask&(1<<i) != 0 && r.Components[i] <= SwizzleW {
			used |= 1 << uint32(r.Components[i])
		}
	}
	return used
}

// ExecType discriminates the three hardware exec encodings.
type ExecType uint8

const (
	// Always executed.
	ExecTypeUnconditional ExecType = iota
	// Executed if a boolean constant matches the condition.
	ExecTypeConditional
	// Executed if the predicate register matches the condition.
	ExecTypePredicated
)

// ParsedExecInstruction is a normalized exec-class control flow instruction.
type ParsedExecInstruction struct {
	// Index within the control flow program.
	DwordIndex uint32
	Opcode     ucode.ControlFlowOpcode
	OpcodeName string
	// First fetch/ALU instruction address executed by the block.
	InstructionAddress uint32
	InstructionCount   uint32
	Type               ExecType
	// Boolean constant index, valid for ExecTypeConditional.
	BoolConstantIndex uint32
	Condition         bool
	IsEnd             bool
	// Whether to reset the predicate before the block.
	Clean   bool
	IsYield bool
	// 2 bits per instruction: bit 0 fetch vs ALU, bit 1 serialize.
	Sequence uint32
}

// ParsedLoopStartInstruction is a normalized loop entry.
type ParsedLoopStartInstruction struct {
	DwordIndex        uint32
	LoopConstantIndex uint32
	IsRepeat          bool
	// Target when the iteration count is zero.
	LoopSkipAddress uint32
}

// ParsedLoopEndInstruction is a normalized loop back edge.
type ParsedLoopEndInstruction struct {
	DwordIndex         uint32
	IsPredicatedBreak  bool
	PredicateCondition bool
	LoopConstantIndex  uint32
	LoopBodyAddress    uint32
}

// ControlFlowType discriminates call/jump condition encodings.
type ControlFlowType uint8

const (
	ControlFlowTypeUnconditional ControlFlowType = iota
	ControlFlowTypePredicated
	ControlFlowTypeConditional
)

// ParsedCallInstruction is a normalized subroutine call.
type ParsedCallInstruction struct {
	DwordIndex        uint32
	TargetAddress     uint32
	Type              ControlFlowType
	BoolConstantIndex uint32
	Condition         bool
}

// ParsedReturnInstruction is a normalized subroutine return.
type ParsedReturnInstruction struct {
	DwordIndex uint32
}

// ParsedJumpInstruction is a normalized jump.
type ParsedJumpInstruction struct {
	DwordIndex        uint32
	TargetAddress     uint32
	Type              ControlFlowType
	BoolConstantIndex uint32
	Condition         bool
}

// ParsedAllocInstruction is a normalized export allocation.
type ParsedAllocInstruction struct {
	DwordIndex     uint32
	Type           ucode.AllocType
	Count          uint32
	IsVertexShader bool
}

// VertexFetchAttributes are the sampling parameters of a vertex fetch.
type VertexFetchAttributes struct {
	DataFormat     uint32
	Offset         uint32
	Stride         uint32
	ExpAdjust      int32
	PrefetchCount  uint32
	IsIndexRounded bool
	IsSigned       bool
	IsInteger      bool
	SignedRFMode   ucode.SignedRepeatingFractionMode
}

// ParsedVertexFetchInstruction is a normalized vertex fetch. A mini fetch
// inherits source, swizzle and stride from the previous full fetch.
type ParsedVertexFetchInstruction struct {
	Opcode             ucode.FetchOpcode
	OpcodeName         string
	IsMiniFetch        bool
	IsPredicated       bool
	PredicateCondition bool
	// Operands[0] is the index source register, Operands[1] the vertex fetch
	// constant.
	OperandCount uint32
	Operands     [2]InstructionOperand
	Result       InstructionResult
	Attributes   VertexFetchAttributes
}

// TextureFetchAttributes are the sampling parameters of a texture fetch.
type TextureFetchAttributes struct {
	FetchValidOnly          bool
	UnnormalizedCoordinates bool
	MagFilter               ucode.TextureFilter
	MinFilter               ucode.TextureFilter
	MipFilter               ucode.TextureFilter
	AnisoFilter             ucode.AnisoFilter
	VolMagFilter            ucode.TextureFilter
	VolMinFilter            ucode.TextureFilter
	UseComputedLOD          bool
	UseRegisterLOD          bool
	UseRegisterGradients    bool
	LODBias                 float32
	OffsetX                 float32
	OffsetY                 float32
	OffsetZ                 float32
}

// ParsedTextureFetchInstruction is a normalized texture fetch (or sampler
// state setter).
type ParsedTextureFetchInstruction struct {
	Opcode             ucode.FetchOpcode
	OpcodeName         string
	Dimension          ucode.FetchOpDimension
	IsPredicated       bool
	PredicateCondition bool
	// Operands[0] is the coordinate register; Operands[1], when present, the
	// texture fetch constant.
	OperandCount uint32
	Operands     [2]InstructionOperand
	Result       InstructionResult
	Attributes   TextureFetchAttributes
}

// GetNonZeroResultComponents returns which written components are
// structurally guaranteed to be non-zero for the sub-opcode and dimension.
// Backends use this to skip dead code for the rest.
func (i *ParsedTextureFetchInstruction) GetNonZeroResultComponents() uint32 {
	var components uint32
	switch i.Opcode {
	case ucode.FetchOpcodeTextureFetch, ucode.FetchOpcodeGetTextureGradients:
		components = 0b1111
	case ucode.FetchOpcodeGetTextureBorderColorFrac:
		components = 0b0001
	case ucode.FetchOpcodeGetTextureComputedLod:
		components = 0b0001
	case ucode.FetchOpcodeGetTextureWeights:
		switch i.Dimension {
		case ucode.FetchOpDimension1D:
			components = 0b1001
		case ucode.FetchOpDimension2D, ucode.FetchOpDimensionCube:
			components = 0b1011
		case ucode.FetchOpDimension3DStacked:
			components = 0b1111
		}
		// The depth lerp factor in W is zero when mips are not blended.
		if i.Attributes.MipFilter == ucode.TextureFilterBaseMap ||
			i.Attributes.MipFilter == ucode.TextureFilterPoint {
			components &^= 0b1000
		}
	case ucode.FetchOpcodeSetTextureLod, ucode.FetchOpcodeSetTextureGradientsHorz,
		ucode.FetchOpcodeSetTextureGradientsVert:
		components = 0b0000
	default:
		panic("unreachable")
	}
	return i.Result.GetUsedResultComponents() & components
}

// ParsedAluInstruction is a normalized combined vector/scalar ALU
// instruction.
type ParsedAluInstruction struct {
	IsPredicated       bool
	PredicateCondition bool

	VectorOpcode     ucode.AluVectorOpcode
	VectorOpcodeName string
	// Destination of the vector operation, also carrying the constant 0/1
	// component fills of exports.
	VectorAndConstantResult InstructionResult
	VectorOperandCount      uint32
	VectorOperands          [3]InstructionOperand

	ScalarOpcode       ucode.AluScalarOpcode
	ScalarOpcodeName   string
	ScalarResult       InstructionResult
	ScalarOperandCount uint32
	ScalarOperands     [2]InstructionOperand
}

// IsVectorOpDefaultNop reports whether the vector half is the canonical
// structural no-op (max r0, r0 with an empty write mask).
func (i *ParsedAluInstruction) IsVectorOpDefaultNop() bool {
	if i.VectorOpcode != ucode.AluVectorOpcodeMax ||
		i.VectorAndConstantResult.WriteMask != 0 ||
		i.VectorAndConstantResult.IsClamped ||
		!isDefaultNopOperand(&i.VectorOperands[0]) ||
		!isDefaultNopOperand(&i.VectorOperands[1]) {
		return false
	}
	if i.VectorAndConstantResult.Target == StorageTargetRegister {
		if i.VectorAndConstantResult.StorageIndex != 0 ||
			i.VectorAndConstantResult.AddressingMode != StorageAddressingModeStatic {
			return false
		}
	} else {
		// When both halves are no-ops the vector half still records that the
		// unused destination is an export, which a faithful re-encoding needs.
		if i.IsScalarOpDefaultNop() {
			return false
		}
	}
	return true
}

func isDefaultNopOperand(op *InstructionOperand) bool {
	return op.Source == StorageSourceRegister &&
		op.StorageIndex == 0 &&
		op.AddressingMode == StorageAddressingModeStatic &&
		!op.IsNegated && !op.IsAbsoluteValue &&
		op.IsStandardSwizzle()
}

// IsScalarOpDefaultNop reports whether the scalar half is the canonical
// structural no-op (retain_prev with an empty write mask).
func (i *ParsedAluInstruction) IsScalarOpDefaultNop() bool {
	if i.ScalarOpcode != ucode.AluScalarOpcodeRetainPrev ||
		i.ScalarResult.WriteMask != 0 ||
		i.ScalarResult.IsClamped {
		return false
	}
	if i.ScalarResult.Target == StorageTargetRegister {
		if i.ScalarResult.StorageIndex != 0 ||
			i.ScalarResult.AddressingMode != StorageAddressingModeStatic {
			return false
		}
	}
	return true
}

// IsNop reports whether the whole instruction has no observable effect.
func (i *ParsedAluInstruction) IsNop() bool {
	return i.ScalarOpcode == ucode.AluScalarOpcodeRetainPrev &&
		i.ScalarResult.GetUsedWriteMask() == 0 &&
		i.VectorAndConstantResult.GetUsedWriteMask() == 0 &&
		!ucode.AluVectorOpHasSideEffects(i.VectorOpcode)
}

// MemExportStreamConstantNone marks a failed stream constant extraction.
const MemExportStreamConstantNone = ^uint32(0)

// GetMemExportStreamConstant returns the float constant index identifying
// the memory export stream set up by this instruction, or
// MemExportStreamConstantNone when the instruction does not match the
// canonical "mad eA, r#, const0100, c#" shape.
func (i *ParsedAluInstruction) GetMemExportStreamConstant() uint32 {
	if i.VectorAndConstantResult.Target == StorageTargetExportAddress &&
		i.VectorOpcode == ucode.AluVectorOpcodeMad &&
		i.VectorAndConstantResult.GetUsedResultComponents() == 0b1111 &&
		!i.VectorAndConstantResult.IsClamped &&
		i.VectorOperands[2].Source == StorageSourceConstantFloat &&
		i.VectorOperands[2].AddressingMode == StorageAddressingModeStatic &&
		i.VectorOperands[2].IsStandardSwizzle() &&
		!i.VectorOperands[2].IsNegated &&
		!i.VectorOperands[2].IsAbsoluteValue {
		return i.VectorOperands[2].StorageIndex
	}
	return MemExportStreamConstantNone
}
