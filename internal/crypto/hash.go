package crypto

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

type Hash [HashSize]byte

func HashData(data []byte) Hash {
	hash := blake2b.Sum256(data)
	return hash
}

// HashU32Data hashes a dword slice in little-endian byte order, the layout
// microcode uses in memory.
func HashU32Data(data []uint32) Hash {
	buf := make([]byte, len(data)*4)
	for i, w := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return HashData(buf)
}

// String returns the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}
