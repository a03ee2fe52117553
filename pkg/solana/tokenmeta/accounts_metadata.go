package tokenmeta

import (
	"crypto/ed25519"
	"encoding/binary"
)

// MetadataAccount is the decoded prefix of a token metadata account. Only the
// fields up to and including the immediate data payload are unmarshalled.
//
// Reference: https://github.com/metaplex-foundation/metaplex-program-library/blob/master/token-metadata/program/src/state/metadata.rs
type MetadataAccount struct {
	Key             uint8
	UpdateAuthority ed25519.PublicKey
	Mint            ed25519.PublicKey
	Data            DataV2
	IsMutable       bool
}

func (obj *MetadataAccount) Unmarshal(data []byte) error {
	if len(data) < 1+2*ed25519.PublicKeySize {
		return ErrInvalidAccountData
	}

	var offset int

	obj.Key = data[offset]
	offset += 1

	getKey(data, &obj.UpdateAuthority, &offset)
	getKey(data, &obj.Mint, &offset)

	if !getBorshString(data, &obj.Data.Name, &offset) {
		return ErrInvalidAccountData
	}
	if !getBorshString(data, &obj.Data.Symbol, &offset) {
		return ErrInvalidAccountData
	}
	if !getBorshString(data, &obj.Data.Uri, &offset) {
		return ErrInvalidAccountData
	}

	if len(data) < offset+2 {
		return ErrInvalidAccountData
	}
	obj.Data.SellerFeeBasisPoints = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	if len(data) < offset+1 {
		return ErrInvalidAccountData
	}
	hasCreators := data[offset] == 1
	offset += 1

	if hasCreators {
		if len(data) < offset+4 {
			return ErrInvalidAccountData
		}
		count := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4

		if len(data) < offset+count*(ed25519.PublicKeySize+2) {
			return ErrInvalidAccountData
		}
		obj.Data.Creators = make([]Creator, count)
		for i := 0; i < count; i++ {
			getKey(data, &obj.Data.Creators[i].Address, &offset)
			obj.Data.Creators[i].Verified = data[offset] == 1
			offset += 1
			obj.Data.Creators[i].Share = data[offset]
			offset += 1
		}
	}

	// primary_sale_happened
	if len(data) < offset+2 {
		return ErrInvalidAccountData
	}
	offset += 1
	obj.IsMutable = data[offset] == 1

	return nil
}
