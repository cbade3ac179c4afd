package store

import (
	"github.com/xenosgpu/xenos/internal/crypto"
	"github.com/xenosgpu/xenos/internal/shader"
)

// Prefix constants for all store types
const (
	prefixShaderUcode byte = iota + 1
	prefixShaderDisassembly
)

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixShaderUcode:
		return "shaderUcode"
	case prefixShaderDisassembly:
		return "shaderDisassembly"
	default:
		return "unknown"
	}
}

// makeShaderKey creates a key from a prefix, shader stage and microcode hash
func makeShaderKey(prefix byte, shaderType shader.Type, hash crypto.Hash) []byte {
	key := make([]byte, 2+len(hash))
	key[0] = prefix
	key[1] = byte(shaderType)
	copy(key[2:], hash[:])
	return key
}
