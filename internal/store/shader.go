// Package store persists shader dumps: raw microcode and its disassembly
// listing, keyed by stage and microcode hash.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"github.com/xenosgpu/xenos/internal/crypto"
	"github.com/xenosgpu/xenos/internal/shader"
	"github.com/xenosgpu/xenos/pkg/db"
	"github.com/xenosgpu/xenos/pkg/db/pebble"
)

var ErrShaderNotFound = errors.New("shader not found")

type ShaderDumps struct {
	db.KVStore
}

// NewShaderDumps creates a new shader dump store using KVStore
func NewShaderDumps(db db.KVStore) *ShaderDumps {
	return &ShaderDumps{KVStore: db}
}

// PutShader stores the microcode and disassembly of an analyzed shader in
// one batch. Empty dummy programs are skipped.
func (s *ShaderDumps) PutShader(sh *shader.Shader) error {
	if len(sh.UcodeData()) == 0 {
		return nil
	}
	if !sh.IsUcodeAnalyzed() {
		return errors.New("shader must be analyzed before dumping")
	}

	batch := s.NewBatch()
	defer func() {
		if err := batch.Close(); err != nil {
			log.Printf("error closing batch: %v", err)
		}
	}()

	ucodeKey := makeShaderKey(prefixShaderUcode, sh.Type(), sh.UcodeHash())
	if err := batch.Put(ucodeKey, encodeUcode(sh.UcodeData())); err != nil {
		return fmt.Errorf("put shader ucode: %w", err)
	}
	disasmKey := makeShaderKey(prefixShaderDisassembly, sh.Type(), sh.UcodeHash())
	if err := batch.Put(disasmKey, []byte(sh.UcodeDisassembly())); err != nil {
		return fmt.Errorf("put shader disassembly: %w", err)
	}
	return batch.Commit()
}

// GetUcode retrieves the raw microcode of a stored shader
func (s *ShaderDumps) GetUcode(shaderType shader.Type, hash crypto.Hash) ([]uint32, error) {
	bytes, err := s.Get(makeShaderKey(prefixShaderUcode, shaderType, hash))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrShaderNotFound
		}
		return nil, fmt.Errorf("get shader ucode: %w", err)
	}
	return decodeUcode(bytes)
}

// GetDisassembly retrieves the disassembly listing of a stored shader
func (s *ShaderDumps) GetDisassembly(shaderType shader.Type, hash crypto.Hash) (string, error) {
	bytes, err := s.Get(makeShaderKey(prefixShaderDisassembly, shaderType, hash))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrShaderNotFound
		}
		return "", fmt.Errorf("get shader disassembly: %w", err)
	}
	return string(bytes), nil
}

// HasShader reports whether a shader with the given stage and hash is stored
func (s *ShaderDumps) HasShader(shaderType shader.Type, hash crypto.Hash) (bool, error) {
	_, err := s.Get(makeShaderKey(prefixShaderUcode, shaderType, hash))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get shader ucode: %w", err)
	}
	return true, nil
}

// ListShaderHashes returns the microcode hashes of every stored shader of
// one stage, in key order.
func (s *ShaderDumps) ListShaderHashes(shaderType shader.Type) ([]crypto.Hash, error) {
	start := []byte{prefixShaderUcode, byte(shaderType)}
	end := []byte{prefixShaderUcode, byte(shaderType) + 1}
	iter, err := s.NewIterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("list shaders: %w", err)
	}
	defer func() {
		if err := iter.Close(); err != nil {
			log.Printf("error closing iterator: %v", err)
		}
	}()

	var hashes []crypto.Hash
	for iter.Next() {
		key := iter.Key()
		if len(key) != 2+crypto.HashSize {
			return nil, fmt.Errorf("malformed shader key of length %d", len(key))
		}
		var hash crypto.Hash
		copy(hash[:], key[2:])
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

func encodeUcode(data []uint32) []byte {
	buf := make([]byte, len(data)*4)
	for i, w := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func decodeUcode(buf []byte) ([]uint32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("ucode dump length %d is not dword aligned", len(buf))
	}
	data := make([]uint32, len(buf)/4)
	for i := range data {
		data[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return data, nil
}
