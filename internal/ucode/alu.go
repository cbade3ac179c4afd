package ucode

// ALU instructions occupy 3 dwords and combine an independent vector and
// scalar operation that share one destination-redirection (export) decision.
//
// Word 0: vector dest 0-5, vector dest relative 6, abs constants 7, scalar
// dest 8-13, scalar dest relative 14, export 15, vector write mask 16-19,
// scalar write mask 20-23, vector clamp 24, scalar clamp 25, scalar opcode
// 26-31.
// Word 1: src3 swizzle 0-7, src2 swizzle 8-15, src1 swizzle 16-23, src3
// negate 24, src2 negate 25, src1 negate 26, predicate condition 27,
// predicated 28, address absolute 29, constant 1 relative 30, constant 0
// relative 31.
// Word 2: src3 register 0-7, src2 register 8-15, src1 register 16-23,
// vector opcode 24-28, src3 select 29, src2 select 30, src1 select 31.

type AluVectorOpcode uint8

const (
	AluVectorOpcodeAdd        AluVectorOpcode = 0
	AluVectorOpcodeMul        AluVectorOpcode = 1
	AluVectorOpcodeMax        AluVectorOpcode = 2
	AluVectorOpcodeMin        AluVectorOpcode = 3
	AluVectorOpcodeSeq        AluVectorOpcode = 4
	AluVectorOpcodeSgt        AluVectorOpcode = 5
	AluVectorOpcodeSge        AluVectorOpcode = 6
	AluVectorOpcodeSne        AluVectorOpcode = 7
	AluVectorOpcodeFrc        AluVectorOpcode = 8
	AluVectorOpcodeTrunc      AluVectorOpcode = 9
	AluVectorOpcodeFloor      AluVectorOpcode = 10
	AluVectorOpcodeMad        AluVectorOpcode = 11
	AluVectorOpcodeCndEq      AluVectorOpcode = 12
	AluVectorOpcodeCndGe      AluVectorOpcode = 13
	AluVectorOpcodeCndGt      AluVectorOpcode = 14
	AluVectorOpcodeDp4        AluVectorOpcode = 15
	AluVectorOpcodeDp3        AluVectorOpcode = 16
	AluVectorOpcodeDp2Add     AluVectorOpcode = 17
	AluVectorOpcodeCube       AluVectorOpcode = 18
	AluVectorOpcodeMax4       AluVectorOpcode = 19
	AluVectorOpcodeSetpEqPush AluVectorOpcode = 20
	AluVectorOpcodeSetpNePush AluVectorOpcode = 21
	AluVectorOpcodeSetpGtPush AluVectorOpcode = 22
	AluVectorOpcodeSetpGePush AluVectorOpcode = 23
	AluVectorOpcodeKillEq     AluVectorOpcode = 24
	AluVectorOpcodeKillGt     AluVectorOpcode = 25
	AluVectorOpcodeKillGe     AluVectorOpcode = 26
	AluVectorOpcodeKillNe     AluVectorOpcode = 27
	AluVectorOpcodeDst        AluVectorOpcode = 28
	AluVectorOpcodeMaxA       AluVectorOpcode = 29
)

type AluScalarOpcode uint8

const (
	AluScalarOpcodeAdds       AluScalarOpcode = 0
	AluScalarOpcodeAddsPrev   AluScalarOpcode = 1
	AluScalarOpcodeMuls       AluScalarOpcode = 2
	AluScalarOpcodeMulsPrev   AluScalarOpcode = 3
	AluScalarOpcodeMulsPrev2  AluScalarOpcode = 4
	AluScalarOpcodeMaxs       AluScalarOpcode = 5
	AluScalarOpcodeMins       AluScalarOpcode = 6
	AluScalarOpcodeSeqs       AluScalarOpcode = 7
	AluScalarOpcodeSgts       AluScalarOpcode = 8
	AluScalarOpcodeSges       AluScalarOpcode = 9
	AluScalarOpcodeSnes       AluScalarOpcode = 10
	AluScalarOpcodeFrcs       AluScalarOpcode = 11
	AluScalarOpcodeTruncs     AluScalarOpcode = 12
	AluScalarOpcodeFloors     AluScalarOpcode = 13
	AluScalarOpcodeExp        AluScalarOpcode = 14
	AluScalarOpcodeLogc       AluScalarOpcode = 15
	AluScalarOpcodeLog        AluScalarOpcode = 16
	AluScalarOpcodeRcpc       AluScalarOpcode = 17
	AluScalarOpcodeRcpf       AluScalarOpcode = 18
	AluScalarOpcodeRcp        AluScalarOpcode = 19
	AluScalarOpcodeRsqc       AluScalarOpcode = 20
	AluScalarOpcodeRsqf       AluScalarOpcode = 21
	AluScalarOpcodeRsq        AluScalarOpcode = 22
	AluScalarOpcodeMaxAs      AluScalarOpcode = 23
	AluScalarOpcodeMaxAsf     AluScalarOpcode = 24
	AluScalarOpcodeSubs       AluScalarOpcode = 25
	AluScalarOpcodeSubsPrev   AluScalarOpcode = 26
	AluScalarOpcodeSetpEq     AluScalarOpcode = 27
	AluScalarOpcodeSetpNe     AluScalarOpcode = 28
	AluScalarOpcodeSetpGt     AluScalarOpcode = 29
	AluScalarOpcodeSetpGe     AluScalarOpcode = 30
	AluScalarOpcodeSetpInv    AluScalarOpcode = 31
	AluScalarOpcodeSetpPop    AluScalarOpcode = 32
	AluScalarOpcodeSetpClr    AluScalarOpcode = 33
	AluScalarOpcodeSetpRstr   AluScalarOpcode = 34
	AluScalarOpcodeKillsEq    AluScalarOpcode = 35
	AluScalarOpcodeKillsGt    AluScalarOpcode = 36
	AluScalarOpcodeKillsGe    AluScalarOpcode = 37
	AluScalarOpcodeKillsNe    AluScalarOpcode = 38
	AluScalarOpcodeKillsOne   AluScalarOpcode = 39
	AluScalarOpcodeSqrt       AluScalarOpcode = 40
	AluScalarOpcodeMulsc0     AluScalarOpcode = 42
	AluScalarOpcodeMulsc1     AluScalarOpcode = 43
	AluScalarOpcodeAddsc0     AluScalarOpcode = 44
	AluScalarOpcodeAddsc1     AluScalarOpcode = 45
	AluScalarOpcodeSubsc0     AluScalarOpcode = 46
	AluScalarOpcodeSubsc1     AluScalarOpcode = 47
	AluScalarOpcodeSin        AluScalarOpcode = 48
	AluScalarOpcodeCos        AluScalarOpcode = 49
	AluScalarOpcodeRetainPrev AluScalarOpcode = 50
)

// AluVectorOpcodeIsKill reports whether the vector opcode discards pixels.
func AluVectorOpcodeIsKill(op AluVectorOpcode) bool {
	return op >= AluVectorOpcodeKillEq && op <= AluVectorOpcodeKillNe
}

// AluScalarOpcodeIsKill reports whether the scalar opcode discards pixels.
func AluScalarOpcodeIsKill(op AluScalarOpcode) bool {
	return op >= AluScalarOpcodeKillsEq && op <= AluScalarOpcodeKillsOne
}

// AluVectorOpHasSideEffects reports whether the vector operation does more
// than write its result (predicate stack pushes, pixel kills, address
// register writes).
func AluVectorOpHasSideEffects(op AluVectorOpcode) bool {
	switch op {
	case AluVectorOpcodeSetpEqPush, AluVectorOpcodeSetpNePush,
		AluVectorOpcodeSetpGtPush, AluVectorOpcodeSetpGePush,
		AluVectorOpcodeKillEq, AluVectorOpcodeKillGt,
		AluVectorOpcodeKillGe, AluVectorOpcodeKillNe,
		AluVectorOpcodeMaxA:
		return true
	}
	return false
}

// ExportRegister is the semantic meaning of an ALU destination when the
// export bit is set. The same numeric space resolves differently for vertex
// and pixel shaders.
type ExportRegister uint32

const (
	ExportRegisterVSInterpolator0  ExportRegister = 0
	ExportRegisterVSInterpolator15 ExportRegister = 15
	ExportRegisterVSPosition       ExportRegister = 62
	// Writes point size in X, edge flag in Y, vertex kill in W.
	ExportRegisterVSPointSizeEdgeFlagKillVertex ExportRegister = 63

	ExportRegisterPSColor0 ExportRegister = 0
	ExportRegisterPSColor3 ExportRegister = 3
	ExportRegisterPSDepth  ExportRegister = 61

	ExportRegisterExportAddress ExportRegister = 32
	ExportRegisterExportData0   ExportRegister = 33
	ExportRegisterExportData4   ExportRegister = 37
)

// AluInstruction is a raw 3-word combined vector/scalar ALU instruction.
type AluInstruction struct {
	words [3]uint32
}

func NewAluInstruction(words [3]uint32) AluInstruction {
	return AluInstruction{words: words}
}

func (i AluInstruction) Words() [3]uint32 { return i.words }

func (i AluInstruction) VectorDest() uint32 { return i.words[0] & 0b111111 }
func (i AluInstruction) IsVectorDestRelative() bool {
	return (i.words[0]>>6)&1 != 0
}
func (i AluInstruction) AbsConstants() bool { return (i.words[0]>>7)&1 != 0 }
func (i AluInstruction) ScalarDest() uint32 { return (i.words[0] >> 8) & 0b111111 }
func (i AluInstruction) IsScalarDestRelative() bool {
	return (i.words[0]>>14)&1 != 0
}
func (i AluInstruction) IsExport() bool { return (i.words[0]>>15)&1 != 0 }
func (i AluInstruction) VectorWriteMask() uint32 { return (i.words[0] >> 16) & 0b1111 }
func (i AluInstruction) ScalarWriteMask() uint32 { return (i.words[0] >> 20) & 0b1111 }
func (i AluInstruction) VectorClamp() bool { return (i.words[0]>>24)&1 != 0 }
func (i AluInstruction) ScalarClamp() bool { return (i.words[0]>>25)&1 != 0 }
func (i AluInstruction) ScalarOpcode() AluScalarOpcode {
	return AluScalarOpcode((i.words[0] >> 26) & 0b111111)
}

// SrcSwizzle returns the 8-bit swizzle of source slot 1-3.
func (i AluInstruction) SrcSwizzle(slot uint32) uint32 {
	return (i.words[1] >> ((3 - slot) * 8)) & 0xFF
}

// SrcNegate reports whether source slot 1-3 is negated.
func (i AluInstruction) SrcNegate(slot uint32) bool {
	return (i.words[1]>>(24+(3-slot)))&1 != 0
}

func (i AluInstruction) PredicateCondition() bool { return (i.words[1]>>27)&1 != 0 }
func (i AluInstruction) IsPredicated() bool { return (i.words[1]>>28)&1 != 0 }
func (i AluInstruction) IsAddressRelative() bool { return (i.words[1]>>29)&1 != 0 }
func (i AluInstruction) IsConst1Addressed() bool { return (i.words[1]>>30)&1 != 0 }
func (i AluInstruction) IsConst0Addressed() bool { return (i.words[1]>>31)&1 != 0 }

// SrcReg returns the 8-bit register/constant index of source slot 1-3.
func (i AluInstruction) SrcReg(slot uint32) uint32 {
	return (i.words[2] >> ((3 - slot) * 8)) & 0xFF
}

func (i AluInstruction) VectorOpcode() AluVectorOpcode {
	return AluVectorOpcode((i.words[2] >> 24) & 0b11111)
}

// SrcIsTemp reports whether source slot 1-3 reads a temporary register
// rather than a float constant.
func (i AluInstruction) SrcIsTemp(slot uint32) bool {
	return (i.words[2]>>(29+(3-slot)))&1 != 0
}

// GetVectorOpResultWriteMask is the write mask of the vector operation
// itself. For exports the scalar mask claims its components.
func (i AluInstruction) GetVectorOpResultWriteMask() uint32 {
	mask := i.VectorWriteMask()
	if i.IsExport() {
		mask &^= i.ScalarWriteMask()
	}
	return mask
}

// GetScalarOpResultWriteMask is the write mask of the scalar operation
// itself. For exports the vector mask claims its components.
func (i AluInstruction) GetScalarOpResultWriteMask() uint32 {
	mask := i.ScalarWriteMask()
	if i.IsExport() {
		mask &^= i.VectorWriteMask()
	}
	return mask
}

// GetConstant0WriteMask is the set of export components written as the
// constant 0 (components claimed by both masks).
func (i AluInstruction) GetConstant0WriteMask() uint32 {
	if !i.IsExport() {
		return 0b0000
	}
	return i.VectorWriteMask() & i.ScalarWriteMask()
}

// GetConstant1WriteMask is the set of export components written as the
// constant 1 (components claimed by neither mask, gated on the repurposed
// scalar-dest-relative bit).
func (i AluInstruction) GetConstant1WriteMask() uint32 {
	if !i.IsExport() || !i.IsScalarDestRelative() {
		return 0b0000
	}
	return ^(i.VectorWriteMask() | i.ScalarWriteMask()) & 0b1111
}
