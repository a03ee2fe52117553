package tokenmeta

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/mr-tron/base58"
)

func putKey(dst []byte, v ed25519.PublicKey, offset *int) {
	copy(dst[*offset:], v)
	*offset += ed25519.PublicKeySize
}
func getKey(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src[*offset:])
	*offset += ed25519.PublicKeySize
}

func putUint8(dst []byte, v uint8, offset *int) {
	dst[*offset] = v
	*offset += 1
}

func putUint16(dst []byte, v uint16, offset *int) {
	binary.LittleEndian.PutUint16(dst[*offset:], v)
	*offset += 2
}

func putUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst[*offset:], v)
	*offset += 4
}

// Borsh strings are serialized as a u32 length followed by the raw bytes.
func putBorshString(dst []byte, v string, offset *int) {
	binary.LittleEndian.PutUint32(dst[*offset:], uint32(len(v)))
	*offset += 4
	copy(dst[*offset:], v)
	*offset += len(v)
}
func getBorshString(src []byte, dst *string, offset *int) bool {
	if len(src) < *offset+4 {
		return false
	}
	length := int(binary.LittleEndian.Uint32(src[*offset:]))
	*offset += 4
	if len(src) < *offset+length {
		return false
	}
	*dst = string(src[*offset : *offset+length])
	*offset += length
	return true
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
