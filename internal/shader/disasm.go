package shader

import (
	"fmt"
	"strings"

	"github.com/xenosgpu/xenos/internal/ucode"
)

// Disassembly renderers for parsed instructions. The output follows the
// listing layout produced during analysis: control flow lines carry a
// /* pair.slot */ prefix and fetch/ALU lines a /* addr */ prefix, both
// written by the caller.

func disasmResultTarget(r *InstructionResult) string {
	switch r.Target {
	case StorageTargetNone:
		return "_"
	case StorageTargetRegister:
		if r.AddressingMode != StorageAddressingModeStatic {
			return fmt.Sprintf("r[%d+a0]", r.StorageIndex)
		}
		return fmt.Sprintf("r%d", r.StorageIndex)
	case StorageTargetInterpolator:
		return fmt.Sprintf("o%d", r.StorageIndex)
	case StorageTargetPosition:
		return "oPos"
	case StorageTargetPointSizeEdgeFlagKillVertex:
		return "oPts"
	case StorageTargetColor:
		return fmt.Sprintf("oC%d", r.StorageIndex)
	case StorageTargetDepth:
		return "oDepth"
	case StorageTargetExportAddress:
		return "eA"
	case StorageTargetExportData:
		return fmt.Sprintf("eM%d", r.StorageIndex)
	}
	panic("unreachable")
}

// disasmResult renders a destination with its write mask, using _ for
// masked-out components and 0/1 for constant fills.
func disasmResult(r *InstructionResult) string {
	out := disasmResultTarget(r)
	identity := true
	for i := uint32(0); i < 4; i++ {
		if r.WriteMask&(1<<i) == 0 || r.Components[i] != SwizzleFromComponentIndex(i) {
			identity = false
			break
		}
	}
	if identity {
		return out
	}
	var b strings.Builder
	b.WriteString(out)
	b.WriteByte('.')
	for i := uint32(0); i < 4; i++ {
		if r.WriteMask&(1<<i) == 0 {
			b.WriteByte('_')
		} else {
			b.WriteString(r.Components[i].String())
		}
	}
	return b.String()
}

func disasmOperand(op *InstructionOperand) string {
	var b strings.Builder
	if op.IsNegated {
		b.WriteByte('-')
	}
	if op.IsAbsoluteValue {
		b.WriteByte('|')
	}
	switch op.Source {
	case StorageSourceRegister:
		switch op.AddressingMode {
		case StorageAddressingModeStatic:
			fmt.Fprintf(&b, "r%d", op.StorageIndex)
		default:
			fmt.Fprintf(&b, "r[%d+a0]", op.StorageIndex)
		}
	case StorageSourceConstantFloat:
		switch op.AddressingMode {
		case StorageAddressingModeStatic:
			fmt.Fprintf(&b, "c%d", op.StorageIndex)
		case StorageAddressingModeAddressRelative:
			fmt.Fprintf(&b, "c[%d+a0]", op.StorageIndex)
		case StorageAddressingModeAddressAbsolute:
			b.WriteString("c[a0]")
		}
	case StorageSourceVertexFetchConstant:
		fmt.Fprintf(&b, "vf%d", op.StorageIndex)
	case StorageSourceTextureFetchConstant:
		fmt.Fprintf(&b, "tf%d", op.StorageIndex)
	}
	if !standardComponents(op) {
		b.WriteByte('.')
		for i := uint32(0); i < op.ComponentCount; i++ {
			b.WriteString(op.Components[i].String())
		}
	}
	if op.IsAbsoluteValue {
		b.WriteByte('|')
	}
	return b.String()
}

func standardComponents(op *InstructionOperand) bool {
	if op.ComponentCount != 4 {
		return false
	}
	for i := uint32(0); i < 4; i++ {
		if op.Components[i] != SwizzleFromComponentIndex(i) {
			return false
		}
	}
	return true
}

func predicatePrefix(predicated, condition bool) string {
	if !predicated {
		return "      "
	}
	if condition {
		return " (p0) "
	}
	return "(!p0) "
}

func (i *ParsedExecInstruction) Disassemble(b *strings.Builder) {
	switch i.Type {
	case ExecTypeUnconditional:
		fmt.Fprintf(b, "      %s", i.OpcodeName)
	case ExecTypeConditional:
		fmt.Fprintf(b, "      %s b%d == %d", i.OpcodeName, i.BoolConstantIndex, boolToInt(i.Condition))
	case ExecTypePredicated:
		fmt.Fprintf(b, "%s%s", predicatePrefix(true, i.Condition), i.OpcodeName)
	}
	if !i.Clean {
		b.WriteString(" // PredicateClean=false")
	}
	if i.IsYield {
		b.WriteString(" Yield=true")
	}
	b.WriteByte('\n')
}

func (i *ParsedLoopStartInstruction) Disassemble(b *strings.Builder) {
	fmt.Fprintf(b, "      loop i%d, L%d", i.LoopConstantIndex, i.LoopSkipAddress)
	if i.IsRepeat {
		b.WriteString(", Repeat=true")
	}
	b.WriteByte('\n')
}

func (i *ParsedLoopEndInstruction) Disassemble(b *strings.Builder) {
	fmt.Fprintf(b, "%sendloop i%d, L%d\n",
		predicatePrefix(i.IsPredicatedBreak, i.PredicateCondition),
		i.LoopConstantIndex, i.LoopBodyAddress)
}

func (i *ParsedCallInstruction) Disassemble(b *strings.Builder) {
	switch i.Type {
	case ControlFlowTypeUnconditional:
		fmt.Fprintf(b, "      call L%d\n", i.TargetAddress)
	case ControlFlowTypePredicated:
		fmt.Fprintf(b, "%scall L%d\n", predicatePrefix(true, i.Condition), i.TargetAddress)
	case ControlFlowTypeConditional:
		fmt.Fprintf(b, "      ccall b%d == %d, L%d\n",
			i.BoolConstantIndex, boolToInt(i.Condition), i.TargetAddress)
	}
}

func (i *ParsedReturnInstruction) Disassemble(b *strings.Builder) {
	b.WriteString("      ret\n")
}

func (i *ParsedJumpInstruction) Disassemble(b *strings.Builder) {
	switch i.Type {
	case ControlFlowTypeUnconditional:
		fmt.Fprintf(b, "      jmp L%d\n", i.TargetAddress)
	case ControlFlowTypePredicated:
		fmt.Fprintf(b, "%sjmp L%d\n", predicatePrefix(true, i.Condition), i.TargetAddress)
	case ControlFlowTypeConditional:
		fmt.Fprintf(b, "      cjmp b%d == %d, L%d\n",
			i.BoolConstantIndex, boolToInt(i.Condition), i.TargetAddress)
	}
}

func (i *ParsedAllocInstruction) Disassemble(b *strings.Builder) {
	b.WriteString("      alloc ")
	switch i.Type {
	case ucode.AllocTypePosition:
		b.WriteString("position\n")
	case ucode.AllocTypeInterpolators:
		if i.IsVertexShader {
			b.WriteString("interpolators\n")
		} else {
			b.WriteString("colors\n")
		}
	case ucode.AllocTypeMemory:
		fmt.Fprintf(b, "export = %d\n", i.Count)
	default:
		b.WriteString("none\n")
	}
}

func (i *ParsedVertexFetchInstruction) Disassemble(b *strings.Builder) {
	fmt.Fprintf(b, "%s%s", predicatePrefix(i.IsPredicated, i.PredicateCondition), i.OpcodeName)
	fmt.Fprintf(b, " %s", disasmResult(&i.Result))
	if !i.IsMiniFetch {
		fmt.Fprintf(b, ", %s, %s", disasmOperand(&i.Operands[0]), disasmOperand(&i.Operands[1]))
		fmt.Fprintf(b, ", DataFormat=%d", i.Attributes.DataFormat)
		fmt.Fprintf(b, ", Stride=%d", i.Attributes.Stride)
		if i.Attributes.Offset != 0 {
			fmt.Fprintf(b, ", Offset=%d", i.Attributes.Offset)
		}
		if i.Attributes.ExpAdjust != 0 {
			fmt.Fprintf(b, ", ExpAdjust=%d", i.Attributes.ExpAdjust)
		}
		if i.Attributes.IsSigned {
			b.WriteString(", Signed=true")
		}
		if i.Attributes.IsInteger {
			b.WriteString(", Integer=true")
		}
	}
	b.WriteByte('\n')
}

func (i *ParsedTextureFetchInstruction) Disassemble(b *strings.Builder) {
	fmt.Fprintf(b, "%s%s %s, %s",
		predicatePrefix(i.IsPredicated, i.PredicateCondition), i.OpcodeName,
		disasmResult(&i.Result), disasmOperand(&i.Operands[0]))
	if i.OperandCount > 1 {
		fmt.Fprintf(b, ", %s", disasmOperand(&i.Operands[1]))
	}
	if i.Attributes.UnnormalizedCoordinates {
		b.WriteString(", UnnormalizedTextureCoords=true")
	}
	if i.Attributes.UseRegisterLOD {
		b.WriteString(", UseRegisterLOD=true")
	}
	if i.Attributes.UseRegisterGradients {
		b.WriteString(", UseRegisterGradients=true")
	}
	if i.Attributes.LODBias != 0 {
		fmt.Fprintf(b, ", LODBias=%g", i.Attributes.LODBias)
	}
	b.WriteByte('\n')
}

func (i *ParsedAluInstruction) Disassemble(b *strings.Builder) {
	prefix := predicatePrefix(i.IsPredicated, i.PredicateCondition)
	vectorNop := i.IsVectorOpDefaultNop()
	if !vectorNop {
		fmt.Fprintf(b, "%s%s", prefix, i.VectorOpcodeName)
		if i.VectorAndConstantResult.IsClamped {
			b.WriteString("_sat")
		}
		fmt.Fprintf(b, " %s", disasmResult(&i.VectorAndConstantResult))
		for j := uint32(0); j < i.VectorOperandCount; j++ {
			fmt.Fprintf(b, ", %s", disasmOperand(&i.VectorOperands[j]))
		}
		b.WriteByte('\n')
	}
	if !i.IsScalarOpDefaultNop() {
		if vectorNop {
			fmt.Fprintf(b, "%s%s", prefix, i.ScalarOpcodeName)
		} else {
			fmt.Fprintf(b, "         %s+ %s", prefix, i.ScalarOpcodeName)
		}
		if i.ScalarResult.IsClamped {
			b.WriteString("_sat")
		}
		fmt.Fprintf(b, " %s", disasmResult(&i.ScalarResult))
		for j := uint32(0); j < i.ScalarOperandCount; j++ {
			fmt.Fprintf(b, ", %s", disasmOperand(&i.ScalarOperands[j]))
		}
		b.WriteByte('\n')
	} else if vectorNop {
		fmt.Fprintf(b, "%snop\n", prefix)
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
