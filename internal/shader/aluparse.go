package shader

import (
	"fmt"

	"github.com/xenosgpu/xenos/internal/ucode"
)

// aluOpcodeInfo is the fixed decoding profile of one ALU opcode: its
// disassembly mnemonic, how many source operands it takes, and how many
// swizzle components each source carries.
type aluOpcodeInfo struct {
	name                     string
	argumentCount            uint32
	srcSwizzleComponentCount uint32
}

var aluVectorOpcodeInfos = [32]aluOpcodeInfo{
	{"add", 2, 4},          // 0
	{"mul", 2, 4},          // 1
	{"max", 2, 4},          // 2
	{"min", 2, 4},          // 3
	{"seq", 2, 4},          // 4
	{"sgt", 2, 4},          // 5
	{"sge", 2, 4},          // 6
	{"sne", 2, 4},          // 7
	{"frc", 1, 4},          // 8
	{"trunc", 1, 4},        // 9
	{"floor", 1, 4},        // 10
	{"mad", 3, 4},          // 11
	{"cndeq", 3, 4},        // 12
	{"cndge", 3, 4},        // 13
	{"cndgt", 3, 4},        // 14
	{"dp4", 2, 4},          // 15
	{"dp3", 2, 4},          // 16
	{"dp2add", 3, 4},       // 17
	{"cube", 2, 4},         // 18
	{"max4", 1, 4},         // 19
	{"setp_eq_push", 2, 4}, // 20
	{"setp_ne_push", 2, 4}, // 21
	{"setp_gt_push", 2, 4}, // 22
	{"setp_ge_push", 2, 4}, // 23
	{"kill_eq", 2, 4},      // 24
	{"kill_gt", 2, 4},      // 25
	{"kill_ge", 2, 4},      // 26
	{"kill_ne", 2, 4},      // 27
	{"dst", 2, 4},          // 28
	{"maxa", 2, 4},         // 29
}

var aluScalarOpcodeInfos = [64]aluOpcodeInfo{
	{"adds", 1, 2},        // 0
	{"adds_prev", 1, 1},   // 1
	{"muls", 1, 2},        // 2
	{"muls_prev", 1, 1},   // 3
	{"muls_prev2", 1, 2},  // 4
	{"maxs", 1, 2},        // 5
	{"mins", 1, 2},        // 6
	{"seqs", 1, 1},        // 7
	{"sgts", 1, 1},        // 8
	{"sges", 1, 1},        // 9
	{"snes", 1, 1},        // 10
	{"frcs", 1, 1},        // 11
	{"truncs", 1, 1},      // 12
	{"floors", 1, 1},      // 13
	{"exp", 1, 1},         // 14
	{"logc", 1, 1},        // 15
	{"log", 1, 1},         // 16
	{"rcpc", 1, 1},        // 17
	{"rcpf", 1, 1},        // 18
	{"rcp", 1, 1},         // 19
	{"rsqc", 1, 1},        // 20
	{"rsqf", 1, 1},        // 21
	{"rsq", 1, 1},         // 22
	{"maxas", 1, 2},       // 23
	{"maxasf", 1, 2},      // 24
	{"subs", 1, 2},        // 25
	{"subs_prev", 1, 1},   // 26
	{"setp_eq", 1, 1},     // 27
	{"setp_ne", 1, 1},     // 28
	{"setp_gt", 1, 1},     // 29
	{"setp_ge", 1, 1},     // 30
	{"setp_inv", 1, 1},    // 31
	{"setp_pop", 1, 1},    // 32
	{"setp_clr", 0, 0},    // 33
	{"setp_rstr", 1, 1},   // 34
	{"kills_eq", 1, 1},    // 35
	{"kills_gt", 1, 1},    // 36
	{"kills_ge", 1, 1},    // 37
	{"kills_ne", 1, 1},    // 38
	{"kills_one", 1, 1},   // 39
	{"sqrt", 1, 1},        // 40
	{"UNKNOWN", 0, 0},     // 41
	{"mulsc", 2, 1},       // 42
	{"mulsc", 2, 1},       // 43
	{"addsc", 2, 1},       // 44
	{"addsc", 2, 1},       // 45
	{"subsc", 2, 1},       // 46
	{"subsc", 2, 1},       // 47
	{"sin", 1, 1},         // 48
	{"cos", 1, 1},         // 49
	{"retain_prev", 0, 0}, // 50
}

// parseAluInstructionOperand decodes ALU source slot i (1-based, the
// hardware numbers sources from 1). The swizzle field rotates differently
// per component count, matching the assembler's encoding.
func parseAluInstructionOperand(op ucode.AluInstruction, i, swizzleComponentCount uint32) InstructionOperand {
	// The const slot decides which of the two per-instruction constant
	// relative-addressing bits applies to this operand.
	constSlot := 0
	switch i {
	case 2:
		if op.SrcIsTemp(1) {
			constSlot = 0
		} else {
			constSlot = 1
		}
	case 3:
		if op.SrcIsTemp(1) && op.SrcIsTemp(2) {
			constSlot = 0
		} else {
			constSlot = 1
		}
	}

	var out InstructionOperand
	out.IsNegated = op.SrcNegate(i)
	reg := op.SrcReg(i)
	if op.SrcIsTemp(i) {
		out.Source = StorageSourceRegister
		out.StorageIndex = reg & 0x1F
		out.IsAbsoluteValue = reg&0x80 != 0
		if reg&0x40 != 0 {
			out.AddressingMode = StorageAddressingModeAddressRelative
		}
	} else {
		out.Source = StorageSourceConstantFloat
		out.StorageIndex = reg
		if (constSlot == 0 && op.IsConst0Addressed()) ||
			(constSlot == 1 && op.IsConst1Addressed()) {
			if op.IsAddressRelative() {
				out.AddressingMode = StorageAddressingModeAddressAbsolute
			} else {
				out.AddressingMode = StorageAddressingModeAddressRelative
			}
		}
		out.IsAbsoluteValue = op.AbsConstants()
	}

	out.ComponentCount = swizzleComponentCount
	swizzle := op.SrcSwizzle(i)
	switch swizzleComponentCount {
	case 1:
		out.Components[0] = SwizzleFromComponentIndex(((swizzle >> 6) + 3) & 0b11)
	case 2:
		out.Components[0] = SwizzleFromComponentIndex(((swizzle >> 6) + 3) & 0b11)
		out.Components[1] = SwizzleFromComponentIndex(swizzle & 0b11)
	case 4:
		for j := uint32(0); j < 4; j++ {
			out.Components[j] = SwizzleFromComponentIndex((swizzle + j) & 0b11)
			swizzle >>= 2
		}
	default:
		panic("unreachable")
	}
	return out
}

// parseAluInstructionOperandSpecial decodes one source of a two-operand
// scalar operation (mulsc/addsc/subsc), where the second register index is
// packed into the slot 3 swizzle field.
func parseAluInstructionOperandSpecial(op ucode.AluInstruction, source StorageSource,
	reg uint32, negate bool, constSlot int, componentIndex uint32) InstructionOperand {
	var out InstructionOperand
	out.IsNegated = negate
	out.IsAbsoluteValue = op.AbsConstants()
	out.Source = source
	if source == StorageSourceRegister {
		out.StorageIndex = reg & 0x7F
	} else {
		out.StorageIndex = reg
		if (constSlot == 0 && op.IsConst0Addressed()) ||
			(constSlot == 1 && op.IsConst1Addressed()) {
			if op.IsAddressRelative() {
				out.AddressingMode = StorageAddressingModeAddressAbsolute
			} else {
				out.AddressingMode = StorageAddressingModeAddressRelative
			}
		}
	}
	out.ComponentCount = 1
	out.Components[0] = SwizzleFromComponentIndex(componentIndex)
	return out
}

// parseAluInstruction normalizes a co-issued vector/scalar ALU instruction.
// The export bit routes both halves to the same export register, resolved
// against the shader stage; an export register that is not valid for the
// stage is reported through the returned error while the instruction keeps a
// TargetNone destination.
func parseAluInstruction(op ucode.AluInstruction, shaderType Type) (ParsedAluInstruction, error) {
	var instr ParsedAluInstruction
	instr.IsPredicated = op.IsPredicated()
	instr.PredicateCondition = op.PredicateCondition()

	isExport := op.IsExport()

	var err error
	storageTarget := StorageTargetRegister
	storageIndexExport := uint32(0)
	if isExport {
		storageTarget = StorageTargetNone
		// Both the vector and the scalar operation export to vectorDest.
		exportRegister := ucode.ExportRegister(op.VectorDest())
		switch {
		case exportRegister == ucode.ExportRegisterExportAddress:
			storageTarget = StorageTargetExportAddress
		case exportRegister >= ucode.ExportRegisterExportData0 &&
			exportRegister <= ucode.ExportRegisterExportData4:
			storageTarget = StorageTargetExportData
			storageIndexExport = uint32(exportRegister - ucode.ExportRegisterExportData0)
		case shaderType == TypeVertex:
			switch {
			case exportRegister <= ucode.ExportRegisterVSInterpolator15:
				storageTarget = StorageTargetInterpolator
				storageIndexExport = uint32(exportRegister)
			case exportRegister == ucode.ExportRegisterVSPosition:
				storageTarget = StorageTargetPosition
			case exportRegister == ucode.ExportRegisterVSPointSizeEdgeFlagKillVertex:
				storageTarget = StorageTargetPointSizeEdgeFlagKillVertex
			}
		case shaderType == TypePixel:
			switch {
			case exportRegister <= ucode.ExportRegisterPSColor3:
				storageTarget = StorageTargetColor
				storageIndexExport = uint32(exportRegister)
			case exportRegister == ucode.ExportRegisterPSDepth:
				storageTarget = StorageTargetDepth
			}
		}
		if storageTarget == StorageTargetNone {
			err = fmt.Errorf("unsupported write to export register %d", uint32(exportRegister))
		}
	}

	// Vector operation and constant 0/1 writes.

	instr.VectorOpcode = op.VectorOpcode()
	vectorInfo := &aluVectorOpcodeInfos[instr.VectorOpcode]
	instr.VectorOpcodeName = vectorInfo.name

	instr.VectorAndConstantResult.Target = storageTarget
	if isExport {
		instr.VectorAndConstantResult.StorageIndex = storageIndexExport
	} else {
		instr.VectorAndConstantResult.StorageIndex = op.VectorDest()
		if op.IsVectorDestRelative() {
			instr.VectorAndConstantResult.AddressingMode = StorageAddressingModeAddressRelative
		}
	}
	instr.VectorAndConstantResult.IsClamped = op.VectorClamp()
	constant0Mask := op.GetConstant0WriteMask()
	constant1Mask := op.GetConstant1WriteMask()
	instr.VectorAndConstantResult.WriteMask =
		op.GetVectorOpResultWriteMask() | constant0Mask | constant1Mask
	for i := uint32(0); i < 4; i++ {
		component := SwizzleFromComponentIndex(i)
		if constant0Mask&(1<<i) != 0 {
			component = Swizzle0
		} else if constant1Mask&(1<<i) != 0 {
			component = Swizzle1
		}
		instr.VectorAndConstantResult.Components[i] = component
	}

	instr.VectorOperandCount = vectorInfo.argumentCount
	for i := uint32(0); i < instr.VectorOperandCount; i++ {
		instr.VectorOperands[i] =
			parseAluInstructionOperand(op, i+1, vectorInfo.srcSwizzleComponentCount)
	}

	// Scalar operation.

	instr.ScalarOpcode = op.ScalarOpcode()
	scalarInfo := &aluScalarOpcodeInfos[instr.ScalarOpcode]
	instr.ScalarOpcodeName = scalarInfo.name

	instr.ScalarResult.Target = storageTarget
	if isExport {
		instr.ScalarResult.StorageIndex = storageIndexExport
	} else {
		instr.ScalarResult.StorageIndex = op.ScalarDest()
		if op.IsScalarDestRelative() {
			instr.ScalarResult.AddressingMode = StorageAddressingModeAddressRelative
		}
	}
	instr.ScalarResult.IsClamped = op.ScalarClamp()
	instr.ScalarResult.WriteMask = op.GetScalarOpResultWriteMask()
	for i := uint32(0); i < 4; i++ {
		instr.ScalarResult.Components[i] = SwizzleFromComponentIndex(i)
	}

	instr.ScalarOperandCount = scalarInfo.argumentCount
	switch instr.ScalarOperandCount {
	case 1:
		instr.ScalarOperands[0] =
			parseAluInstructionOperand(op, 3, scalarInfo.srcSwizzleComponentCount)
	case 2:
		src3Swizzle := op.SrcSwizzle(3)
		componentA := ((src3Swizzle >> 6) + 3) & 0b11
		componentB := src3Swizzle & 0b11
		reg2 := src3Swizzle & 0x3C
		if op.SrcIsTemp(3) {
			reg2 |= 0b10
		}
		reg2 |= uint32(op.ScalarOpcode()) & 1
		constSlot := 0
		if op.SrcIsTemp(1) || op.SrcIsTemp(2) {
			constSlot = 1
		}
		instr.ScalarOperands[0] = parseAluInstructionOperandSpecial(
			op, StorageSourceConstantFloat, op.SrcReg(3), op.SrcNegate(3), 0, componentA)
		instr.ScalarOperands[1] = parseAluInstructionOperandSpecial(
			op, StorageSourceRegister, reg2, op.SrcNegate(3), constSlot, componentB)
	}

	return instr, err
}
