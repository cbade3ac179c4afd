package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenosgpu/xenos/internal/crypto"
	"github.com/xenosgpu/xenos/internal/shader"
	"github.com/xenosgpu/xenos/internal/ucode"
	"github.com/xenosgpu/xenos/pkg/db/pebble"
)

func newTestDumps(t *testing.T) *ShaderDumps {
	t.Helper()
	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, kv.Close())
	})
	return NewShaderDumps(kv)
}

func analyzedShader(t *testing.T) *shader.Shader {
	t.Helper()
	cf := ucode.NewControlFlowInstruction(
		1|1<<12, uint32(ucode.ControlFlowOpcodeExecEnd)<<12)
	nop := ucode.NewControlFlowInstruction(0, 0)
	words := ucode.PackControlFlowInstructions(cf, nop)
	alu := []uint32{
		uint32(ucode.AluScalarOpcodeRetainPrev) << 26, 0,
		uint32(ucode.AluVectorOpcodeMax)<<24 | 1<<31 | 1<<30,
	}
	sh := shader.NewShader(shader.TypeVertex, append(words[:], alu...))
	require.NoError(t, sh.Analyze())
	return sh
}

func TestShaderDumpsRoundtrip(t *testing.T) {
	dumps := newTestDumps(t)
	sh := analyzedShader(t)

	require.NoError(t, dumps.PutShader(sh))

	has, err := dumps.HasShader(sh.Type(), sh.UcodeHash())
	require.NoError(t, err)
	assert.True(t, has)

	data, err := dumps.GetUcode(sh.Type(), sh.UcodeHash())
	require.NoError(t, err)
	assert.Equal(t, sh.UcodeData(), data)

	disasm, err := dumps.GetDisassembly(sh.Type(), sh.UcodeHash())
	require.NoError(t, err)
	assert.Equal(t, sh.UcodeDisassembly(), disasm)
}

func TestShaderDumpsKeyedByStage(t *testing.T) {
	dumps := newTestDumps(t)
	sh := analyzedShader(t)
	require.NoError(t, dumps.PutShader(sh))

	// The same hash under the other stage is a different shader.
	has, err := dumps.HasShader(shader.TypePixel, sh.UcodeHash())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestShaderDumpsListShaderHashes(t *testing.T) {
	dumps := newTestDumps(t)
	sh := analyzedShader(t)
	require.NoError(t, dumps.PutShader(sh))

	hashes, err := dumps.ListShaderHashes(shader.TypeVertex)
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	assert.Equal(t, sh.UcodeHash(), hashes[0])

	pixelHashes, err := dumps.ListShaderHashes(shader.TypePixel)
	require.NoError(t, err)
	assert.Empty(t, pixelHashes)
}

func TestShaderDumpsNotFound(t *testing.T) {
	dumps := newTestDumps(t)

	var hash crypto.Hash
	_, err := dumps.GetUcode(shader.TypeVertex, hash)
	assert.ErrorIs(t, err, ErrShaderNotFound)

	_, err = dumps.GetDisassembly(shader.TypeVertex, hash)
	assert.ErrorIs(t, err, ErrShaderNotFound)

	has, err := dumps.HasShader(shader.TypeVertex, hash)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestShaderDumpsSkipsEmptyAndUnanalyzed(t *testing.T) {
	dumps := newTestDumps(t)

	// An empty dummy program is skipped without error.
	require.NoError(t, dumps.PutShader(shader.NewShader(shader.TypeVertex, nil)))

	// A non-empty program must be analyzed first.
	sh := shader.NewShader(shader.TypeVertex, []uint32{0, 0, 0})
	assert.Error(t, dumps.PutShader(sh))
}
