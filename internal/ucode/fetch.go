package ucode

// Fetch instructions occupy 3 dwords. The low 5 bits of word 0 hold the fetch
// opcode and distinguish a vertex fetch from the texture fetch family.

type FetchOpcode uint8

const (
	FetchOpcodeVertexFetch               FetchOpcode = 0
	FetchOpcodeTextureFetch              FetchOpcode = 1
	FetchOpcodeGetTextureBorderColorFrac FetchOpcode = 16
	FetchOpcodeGetTextureComputedLod     FetchOpcode = 17
	FetchOpcodeGetTextureGradients       FetchOpcode = 18
	FetchOpcodeGetTextureWeights         FetchOpcode = 19
	FetchOpcodeSetTextureLod             FetchOpcode = 24
	FetchOpcodeSetTextureGradientsHorz   FetchOpcode = 25
	FetchOpcodeSetTextureGradientsVert   FetchOpcode = 26
)

// FetchOpcodeFromWord extracts the fetch opcode from the first word of a
// fetch instruction.
func FetchOpcodeFromWord(word0 uint32) FetchOpcode {
	return FetchOpcode(word0 & 0b11111)
}

// FetchOpDimension is the texture dimensionality of a texture fetch.
type FetchOpDimension uint8

const (
	FetchOpDimension1D        FetchOpDimension = 0
	FetchOpDimension2D        FetchOpDimension = 1
	FetchOpDimension3DStacked FetchOpDimension = 2
	FetchOpDimensionCube      FetchOpDimension = 3
)

func (d FetchOpDimension) String() string {
	switch d {
	case FetchOpDimension1D:
		return "1D"
	case FetchOpDimension2D:
		return "2D"
	case FetchOpDimension3DStacked:
		return "3D"
	case FetchOpDimensionCube:
		return "Cube"
	}
	return "unknown"
}

// ComponentCount returns how many coordinate components the dimension needs.
func (d FetchOpDimension) ComponentCount() uint32 {
	switch d {
	case FetchOpDimension1D:
		return 1
	case FetchOpDimension2D:
		return 2
	case FetchOpDimension3DStacked, FetchOpDimensionCube:
		return 3
	}
	return 0
}

type TextureFilter uint8

const (
	TextureFilterPoint         TextureFilter = 0
	TextureFilterLinear        TextureFilter = 1
	TextureFilterBaseMap       TextureFilter = 2
	TextureFilterUseFetchConst TextureFilter = 3
)

type AnisoFilter uint8

const (
	AnisoFilterDisabled      AnisoFilter = 0
	AnisoFilterMax1To1       AnisoFilter = 1
	AnisoFilterMax2To1       AnisoFilter = 2
	AnisoFilterMax4To1       AnisoFilter = 3
	AnisoFilterMax8To1       AnisoFilter = 4
	AnisoFilterMax16To1      AnisoFilter = 5
	AnisoFilterUseFetchConst AnisoFilter = 7
)

type SampleLocation uint8

const (
	SampleLocationCentroid SampleLocation = 0
	SampleLocationCenter   SampleLocation = 1
)

// SignedRepeatingFractionMode controls conversion of signed normalized
// vertex data.
type SignedRepeatingFractionMode uint8

const (
	SignedRepeatingFractionModeZeroClampMinusOne SignedRepeatingFractionMode = 0
	SignedRepeatingFractionModeNoZero            SignedRepeatingFractionMode = 1
)

// VertexFetchInstruction is a raw 3-word vertex fetch.
//
// Word 0: opcode 0-4, src register 5-10, src relative 11, dest register
// 12-17, dest relative 18, must-be-one 19, fetch constant index 20-24,
// fetch constant sub-slot 25-26, prefetch count 27-29, src swizzle 30-31.
// Word 1: dest swizzle 0-11, signed 12, not normalized 13, signed repeating
// fraction mode 14, index rounded 15, data format 16-21, exponent adjust
// 24-29, mini fetch 30, predicated 31.
// Word 2: stride 0-7, offset 8-30, predicate condition 31.
type VertexFetchInstruction struct {
	words [3]uint32
}

func NewVertexFetchInstruction(words [3]uint32) VertexFetchInstruction {
	return VertexFetchInstruction{words: words}
}

func (i VertexFetchInstruction) Words() [3]uint32 { return i.words }

func (i VertexFetchInstruction) Opcode() FetchOpcode {
	return FetchOpcodeFromWord(i.words[0])
}
func (i VertexFetchInstruction) Src() uint32 { return (i.words[0] >> 5) & 0b111111 }
func (i VertexFetchInstruction) IsSrcRelative() bool { return (i.words[0]>>11)&1 != 0 }
func (i VertexFetchInstruction) Dest() uint32 { return (i.words[0] >> 12) & 0b111111 }
func (i VertexFetchInstruction) IsDestRelative() bool {
	return (i.words[0]>>18)&1 != 0
}

// FetchConstantIndex maps the 5-bit constant slot plus the 2-bit sub-slot
// selector to the flat vertex fetch constant index.
func (i VertexFetchInstruction) FetchConstantIndex() uint32 {
	return ((i.words[0]>>20)&0b11111)*3 + ((i.words[0] >> 25) & 0b11)
}
func (i VertexFetchInstruction) PrefetchCount() uint32 { return (i.words[0] >> 27) & 0b111 }
func (i VertexFetchInstruction) SrcSwizzle() uint32 { return (i.words[0] >> 30) & 0b11 }

func (i VertexFetchInstruction) DestSwizzle() uint32 { return i.words[1] & 0xFFF }
func (i VertexFetchInstruction) IsSigned() bool { return (i.words[1]>>12)&1 != 0 }
func (i VertexFetchInstruction) IsNormalized() bool { return (i.words[1]>>13)&1 == 0 }
func (i VertexFetchInstruction) SignedRFMode() SignedRepeatingFractionMode {
	return SignedRepeatingFractionMode((i.words[1] >> 14) & 1)
}
func (i VertexFetchInstruction) IsIndexRounded() bool { return (i.words[1]>>15)&1 != 0 }
func (i VertexFetchInstruction) DataFormat() uint32 { return (i.words[1] >> 16) & 0b111111 }

// ExpAdjust is a signed 6-bit exponent bias applied to fetched data.
func (i VertexFetchInstruction) ExpAdjust() int32 {
	return int32(i.words[1]<<2) >> 26
}
func (i VertexFetchInstruction) IsMiniFetch() bool { return (i.words[1]>>30)&1 != 0 }
func (i VertexFetchInstruction) IsPredicated() bool { return (i.words[1]>>31)&1 != 0 }

func (i VertexFetchInstruction) Stride() uint32 { return i.words[2] & 0xFF }
func (i VertexFetchInstruction) Offset() uint32 { return (i.words[2] >> 8) & 0x7FFFFF }
func (i VertexFetchInstruction) PredicateCondition() bool { return (i.words[2]>>31)&1 != 0 }

// TextureFetchInstruction is a raw 3-word texture fetch.
//
// Word 0: opcode 0-4, src register 5-10, src relative 11, dest register
// 12-17, dest relative 18, fetch valid only 19, fetch constant index 20-24,
// unnormalized coordinates 25, src swizzle 26-31.
// Word 1: dest swizzle 0-11, mag filter 12-13, min filter 14-15, mip filter
// 16-17, aniso filter 18-20, arbitrary filter 21-23, volume mag filter
// 24-25, volume min filter 26-27, use computed LOD 28, use register LOD 29,
// predicated 31.
// Word 2: use register gradients 0, sample location 1, LOD bias 2-8,
// dimension 14-15, offset x 16-20, offset y 21-25, offset z 26-30,
// predicate condition 31.
type TextureFetchInstruction struct {
	words [3]uint32
}

func NewTextureFetchInstruction(words [3]uint32) TextureFetchInstruction {
	return TextureFetchInstruction{words: words}
}

func (i TextureFetchInstruction) Words() [3]uint32 { return i.words }

func (i TextureFetchInstruction) Opcode() FetchOpcode {
	return FetchOpcodeFromWord(i.words[0])
}
func (i TextureFetchInstruction) Src() uint32 { return (i.words[0] >> 5) & 0b111111 }
func (i TextureFetchInstruction) IsSrcRelative() bool { return (i.words[0]>>11)&1 != 0 }
func (i TextureFetchInstruction) Dest() uint32 { return (i.words[0] >> 12) & 0b111111 }
func (i TextureFetchInstruction) IsDestRelative() bool { return (i.words[0]>>18)&1 != 0 }
func (i TextureFetchInstruction) FetchValidOnly() bool { return (i.words[0]>>19)&1 != 0 }
func (i TextureFetchInstruction) FetchConstantIndex() uint32 {
	return (i.words[0] >> 20) & 0b11111
}
func (i TextureFetchInstruction) UnnormalizedCoordinates() bool {
	return (i.words[0]>>25)&1 != 0
}
func (i TextureFetchInstruction) SrcSwizzle() uint32 { return (i.words[0] >> 26) & 0b111111 }

func (i TextureFetchInstruction) DestSwizzle() uint32 { return i.words[1] & 0xFFF }
func (i TextureFetchInstruction) MagFilter() TextureFilter {
	return TextureFilter((i.words[1] >> 12) & 0b11)
}
func (i TextureFetchInstruction) MinFilter() TextureFilter {
	return TextureFilter((i.words[1] >> 14) & 0b11)
}
func (i TextureFetchInstruction) MipFilter() TextureFilter {
	return TextureFilter((i.words[1] >> 16) & 0b11)
}
func (i TextureFetchInstruction) AnisoFilter() AnisoFilter {
	return AnisoFilter((i.words[1] >> 18) & 0b111)
}
func (i TextureFetchInstruction) VolMagFilter() TextureFilter {
	return TextureFilter((i.words[1] >> 24) & 0b11)
}
func (i TextureFetchInstruction) VolMinFilter() TextureFilter {
	return TextureFilter((i.words[1] >> 26) & 0b11)
}
func (i TextureFetchInstruction) UseComputedLOD() bool { return (i.words[1]>>28)&1 != 0 }
func (i TextureFetchInstruction) UseRegisterLOD() bool { return (i.words[1]>>29)&1 != 0 }
func (i TextureFetchInstruction) IsPredicated() bool { return (i.words[1]>>31)&1 != 0 }

func (i TextureFetchInstruction) UseRegisterGradients() bool { return i.words[2]&1 != 0 }
func (i TextureFetchInstruction) SampleLocation() SampleLocation {
	return SampleLocation((i.words[2] >> 1) & 1)
}

// LODBias is a signed 4.3 fixed point bias in the range [-8, 7.875].
func (i TextureFetchInstruction) LODBias() float32 {
	return float32(int32(i.words[2]<<23)>>25) / 8.0
}
func (i TextureFetchInstruction) Dimension() FetchOpDimension {
	return FetchOpDimension((i.words[2] >> 14) & 0b11)
}

// OffsetX/Y/Z are signed half-texel offsets in the range [-8, 7.5].
func (i TextureFetchInstruction) OffsetX() float32 {
	return float32(int32(i.words[2]<<11)>>27) / 2.0
}
func (i TextureFetchInstruction) OffsetY() float32 {
	return float32(int32(i.words[2]<<6)>>27) / 2.0
}
func (i TextureFetchInstruction) OffsetZ() float32 {
	return float32(int32(i.words[2]<<1)>>27) / 2.0
}
func (i TextureFetchInstruction) PredicateCondition() bool { return (i.words[2]>>31)&1 != 0 }
