package tokenmeta

import (
	"crypto/ed25519"

	"github.com/token-lab/token-lab-server/pkg/solana"
)

const createMetadataAccountV3Discriminant = 33

type Creator struct {
	Address  ed25519.PublicKey
	Verified bool
	Share    uint8
}

// DataV2 is the on-chain token metadata payload.
//
// Reference: https://github.com/metaplex-foundation/metaplex-program-library/blob/master/token-metadata/program/src/state/data.rs
type DataV2 struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
}

type CreateMetadataAccountV3InstructionArgs struct {
	Data      DataV2
	IsMutable bool
}

type CreateMetadataAccountV3InstructionAccounts struct {
	Metadata        ed25519.PublicKey
	Mint            ed25519.PublicKey
	MintAuthority   ed25519.PublicKey
	Payer           ed25519.PublicKey
	UpdateAuthority ed25519.PublicKey
}

func NewCreateMetadataAccountV3Instruction(
	accounts *CreateMetadataAccountV3InstructionAccounts,
	args *CreateMetadataAccountV3InstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	argsSize := (4 + len(args.Data.Name) + // name
		4 + len(args.Data.Symbol) + // symbol
		4 + len(args.Data.Uri) + // uri
		2 + // seller_fee_basis_points
		1 + // creators option
		1 + // collection option
		1 + // uses option
		1 + // is_mutable
		1) // collection_details option
	if len(args.Data.Creators) > 0 {
		argsSize += 4 + len(args.Data.Creators)*(ed25519.PublicKeySize+2)
	}

	data := make([]byte, 1+argsSize)

	putUint8(data, createMetadataAccountV3Discriminant, &offset)
	putBorshString(data, args.Data.Name, &offset)
	putBorshString(data, args.Data.Symbol, &offset)
	putBorshString(data, args.Data.Uri, &offset)
	putUint16(data, args.Data.SellerFeeBasisPoints, &offset)
	if len(args.Data.Creators) > 0 {
		putUint8(data, 1, &offset)
		putUint32(data, uint32(len(args.Data.Creators)), &offset)
		for _, creator := range args.Data.Creators {
			putKey(data, creator.Address, &offset)
			if creator.Verified {
				putUint8(data, 1, &offset)
			} else {
				putUint8(data, 0, &offset)
			}
			putUint8(data, creator.Share, &offset)
		}
	} else {
		putUint8(data, 0, &offset)
	}
	putUint8(data, 0, &offset) // collection
	putUint8(data, 0, &offset) // uses
	if args.IsMutable {
		putUint8(data, 1, &offset)
	} else {
		putUint8(data, 0, &offset)
	}
	putUint8(data, 0, &offset) // collection_details

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Metadata,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Mint,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.MintAuthority,
				IsWritable: false,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Payer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.UpdateAuthority,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_RENT_PUBKEY,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
