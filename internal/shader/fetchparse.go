package shader

import (
	"github.com/xenosgpu/xenos/internal/ucode"
)

// parseFetchInstructionResult decodes a fetch destination. The 3-bit
// per-component destination swizzle carries sentinels besides plain
// component selects: 4 and 6 write constant 0, 5 writes constant 1, 7
// leaves the component untouched.
func parseFetchInstructionResult(dest, swizzle uint32, isRelative bool) InstructionResult {
	result := InstructionResult{
		Target:       StorageTargetRegister,
		StorageIndex: dest,
		WriteMask:    0b1111,
	}
	if isRelative {
		result.AddressingMode = StorageAddressingModeAddressRelative
	}
	for i := 0; i < 4; i++ {
		switch swizzle & 0b111 {
		case 4, 6:
			result.Components[i] = Swizzle0
		case 5:
			result.Components[i] = Swizzle1
		case 7:
			result.WriteMask &^= 1 << i
		default:
			result.Components[i] = SwizzleFromComponentIndex(swizzle & 0b11)
		}
		swizzle >>= 3
	}
	return result
}

// parseVertexFetchInstruction decodes a vertex fetch. A mini fetch only
// encodes its destination and reuses the source register, swizzle and
// stride of previousFull. The returned bool tells the caller to replace its
// previous-full-fetch slot with op.
func parseVertexFetchInstruction(op, previousFull ucode.VertexFetchInstruction) (ParsedVertexFetchInstruction, bool) {
	instr := ParsedVertexFetchInstruction{
		Opcode:             ucode.FetchOpcodeVertexFetch,
		OpcodeName:         "vfetch_full",
		IsMiniFetch:        op.IsMiniFetch(),
		IsPredicated:       op.IsPredicated(),
		PredicateCondition: op.PredicateCondition(),
	}
	if instr.IsMiniFetch {
		instr.OpcodeName = "vfetch_mini"
	}

	instr.Result = parseFetchInstructionResult(op.Dest(), op.DestSwizzle(), op.IsDestRelative())

	fullOp := op
	if op.IsMiniFetch() {
		fullOp = previousFull
	}
	srcOp := &instr.Operands[0]
	srcOp.Source = StorageSourceRegister
	srcOp.StorageIndex = fullOp.Src()
	if fullOp.IsSrcRelative() {
		srcOp.AddressingMode = StorageAddressingModeAddressRelative
	}
	srcOp.ComponentCount = 1
	srcOp.Components[0] = SwizzleFromComponentIndex(fullOp.SrcSwizzle() & 0b11)

	constOp := &instr.Operands[1]
	constOp.Source = StorageSourceVertexFetchConstant
	constOp.StorageIndex = fullOp.FetchConstantIndex()
	constOp.ComponentCount = 1
	instr.OperandCount = 2

	instr.Attributes = VertexFetchAttributes{
		DataFormat:     op.DataFormat(),
		Offset:         op.Offset(),
		Stride:         fullOp.Stride(),
		ExpAdjust:      op.ExpAdjust(),
		PrefetchCount:  op.PrefetchCount(),
		IsIndexRounded: op.IsIndexRounded(),
		IsSigned:       op.IsSigned(),
		IsInteger:      !op.IsNormalized(),
		SignedRFMode:   op.SignedRFMode(),
	}

	return instr, !op.IsMiniFetch()
}

// textureFetchOpcodeInfo is the fixed decoding profile of one texture fetch
// sub-opcode.
type textureFetchOpcodeInfo struct {
	name                   string
	hasDest                bool
	hasConst               bool
	hasAttributes          bool
	overrideComponentCount uint32
}

func textureFetchOpcodeInfoFor(op ucode.TextureFetchInstruction) textureFetchOpcodeInfo {
	switch op.Opcode() {
	case ucode.FetchOpcodeTextureFetch:
		names := [4]string{"tfetch1D", "tfetch2D", "tfetch3D", "tfetchCube"}
		return textureFetchOpcodeInfo{names[op.Dimension()], true, true, true, 0}
	case ucode.FetchOpcodeGetTextureBorderColorFrac:
		names := [4]string{"getBCF1D", "getBCF2D", "getBCF3D", "getBCFCube"}
		return textureFetchOpcodeInfo{names[op.Dimension()], true, true, true, 0}
	case ucode.FetchOpcodeGetTextureComputedLod:
		names := [4]string{"getCompTexLOD1D", "getCompTexLOD2D", "getCompTexLOD3D", "getCompTexLODCube"}
		return textureFetchOpcodeInfo{names[op.Dimension()], true, true, true, 0}
	case ucode.FetchOpcodeGetTextureGradients:
		return textureFetchOpcodeInfo{"getGradients", true, true, true, 2}
	case ucode.FetchOpcodeGetTextureWeights:
		names := [4]string{"getWeights1D", "getWeights2D", "getWeights3D", "getWeightsCube"}
		return textureFetchOpcodeInfo{names[op.Dimension()], true, true, true, 0}
	case ucode.FetchOpcodeSetTextureLod:
		return textureFetchOpcodeInfo{"setTexLOD", false, false, false, 1}
	case ucode.FetchOpcodeSetTextureGradientsHorz:
		return textureFetchOpcodeInfo{"setGradientH", false, false, false, 3}
	case ucode.FetchOpcodeSetTextureGradientsVert:
		return textureFetchOpcodeInfo{"setGradientV", false, false, false, 3}
	default:
		panic("unreachable")
	}
}

// parseTextureFetchInstruction decodes a texture fetch or sampler state
// setter according to its sub-opcode profile.
func parseTextureFetchInstruction(op ucode.TextureFetchInstruction) ParsedTextureFetchInstruction {
	info := textureFetchOpcodeInfoFor(op)

	instr := ParsedTextureFetchInstruction{
		Opcode:             op.Opcode(),
		OpcodeName:         info.name,
		Dimension:          op.Dimension(),
		IsPredicated:       op.IsPredicated(),
		PredicateCondition: op.PredicateCondition(),
	}

	if info.hasDest {
		instr.Result = parseFetchInstructionResult(op.Dest(), op.DestSwizzle(), op.IsDestRelative())
	} else {
		instr.Result.Target = StorageTargetNone
	}

	srcOp := &instr.Operands[0]
	srcOp.Source = StorageSourceRegister
	srcOp.StorageIndex = op.Src()
	if op.IsSrcRelative() {
		srcOp.AddressingMode = StorageAddressingModeAddressRelative
	}
	srcOp.ComponentCount = info.overrideComponentCount
	if srcOp.ComponentCount == 0 {
		srcOp.ComponentCount = op.Dimension().ComponentCount()
	}
	swizzle := op.SrcSwizzle()
	for j := uint32(0); j < srcOp.ComponentCount; j++ {
		srcOp.Components[j] = SwizzleFromComponentIndex(swizzle & 0b11)
		swizzle >>= 2
	}
	instr.OperandCount = 1

	if info.hasConst {
		constOp := &instr.Operands[1]
		constOp.Source = StorageSourceTextureFetchConstant
		constOp.StorageIndex = op.FetchConstantIndex()
		constOp.ComponentCount = 1
		instr.OperandCount = 2
	}

	if info.hasAttributes {
		instr.Attributes = TextureFetchAttributes{
			FetchValidOnly:          op.FetchValidOnly(),
			UnnormalizedCoordinates: op.UnnormalizedCoordinates(),
			MagFilter:               op.MagFilter(),
			MinFilter:               op.MinFilter(),
			MipFilter:               op.MipFilter(),
			AnisoFilter:             op.AnisoFilter(),
			VolMagFilter:            op.VolMagFilter(),
			VolMinFilter:            op.VolMinFilter(),
			UseComputedLOD:          op.UseComputedLOD(),
			UseRegisterLOD:          op.UseRegisterLOD(),
			UseRegisterGradients:    op.UseRegisterGradients(),
			LODBias:                 op.LODBias(),
			OffsetX:                 op.OffsetX(),
			OffsetY:                 op.OffsetY(),
			OffsetZ:                 op.OffsetZ(),
		}
	}

	return instr
}

// isTextureBindingOpcode reports whether the sub-opcode references a texture
// fetch constant and therefore participates in binding assignment.
func isTextureBindingOpcode(op ucode.FetchOpcode) bool {
	switch op {
	case ucode.FetchOpcodeSetTextureLod, ucode.FetchOpcodeSetTextureGradientsHorz,
		ucode.FetchOpcodeSetTextureGradientsVert:
		return false
	}
	return true
}
