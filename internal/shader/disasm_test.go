package shader

import (
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"

	"github.com/xenosgpu/xenos/internal/ucode"
)

// requireEqualListings compares two disassembly listings and fails with a
// unified diff. Similar to testify's require.Equal, but the diff output is
// far more readable for multi-line listings.
func requireEqualListings(t *testing.T, expected, actual string) {
	t.Helper()
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	if diff != "" {
		t.Fatalf("Listing mismatch:\n%s", diff)
	}
}

func TestShaderDisassemblyListing(t *testing.T) {
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
				makeCf(ucode.ControlFlowOpcodeExec, 2|2<<12|0b1001<<16, 1<<9),
			},
			{
				makeCf(ucode.ControlFlowOpcodeExecEnd, 4|1<<12, 1<<9),
				makeCf(ucode.ControlFlowOpcodeNop, 0, 0),
			},
		},
		vfetch, mul, export)

	sh := NewShader(TypeVertex, data)
	require.NoError(t, sh.Analyze())

	// The eager bound scan also decodes the trailing instruction slots as
	// control flow, and the mul slot happens to alias to a loop end
	// targeting address 0, so slot 0 carries a label.
	expected := "                label L0\n" +
		"/*    0.0 */       alloc position\n" +
		"/*    0.1 */       exec\n" +
		"/*    2   */       vfetch_full r1, r0.x, vf0.x, DataFormat=0, Stride=4\n" +
		"/*    3   */          serialize\n" +
		"                   mul r2, r1, c10\n" +
		"/*    1.0 */       exece\n" +
		"/*    4   */       add oPos, r2, r2\n" +
		"/*    1.1 */       cnop\n"
	requireEqualListings(t, expected, sh.UcodeDisassembly())
}

func TestDisassembleAluCoIssue(t *testing.T) {
	// mul writing xy of r3 co-issued with muls writing z of r4.
	word0 := uint32(3) | 4<<8 | 0b0011<<16 | 0b0100<<20 |
		uint32(ucode.AluScalarOpcodeMuls)<<26
	word1 := uint32(0x42)
	word2 := uint32(5) | 10<<8 | 1<<16 |
		uint32(ucode.AluVectorOpcodeMul)<<24 | 1<<31
	instr, err := parseAluInstruction(makeAlu(word0, word1, word2), TypeVertex)
	require.NoError(t, err)

	var b strings.Builder
	instr.Disassemble(&b)
	requireEqualListings(t,
		"      mul r3.xy__, r1, c10\n"+
			"               + muls r4.__z_, c5.xz\n",
		b.String())
}

func TestDisassembleScalarOnly(t *testing.T) {
	// A default-nop vector half hides in the listing.
	word0 := uint32(7)<<8 | 0b0001<<20 | uint32(ucode.AluScalarOpcodeRcp)<<26
	word2 := uint32(9) | uint32(ucode.AluVectorOpcodeMax)<<24 | 1<<31 | 1<<30 | 1<<29
	instr, err := parseAluInstruction(makeAlu(word0, 0, word2), TypePixel)
	require.NoError(t, err)

	var b strings.Builder
	instr.Disassemble(&b)
	requireEqualListings(t, "      rcp r7.x___, r9.w\n", b.String())
}
