package metadata

import (
	"context"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/token-lab/token-lab-server/pkg/lab/common"
	"github.com/token-lab/token-lab-server/pkg/solana"
	"github.com/token-lab/token-lab-server/pkg/solana/tokenmeta"
)

// Attacher creates the on-chain metadata account for a mint.
type Attacher struct {
	log          *logrus.Entry
	solanaClient solana.Client
}

func NewAttacher(solanaClient solana.Client) *Attacher {
	return &Attacher{
		log:          logrus.StandardLogger().WithField("type", "metadata/attacher"),
		solanaClient: solanaClient,
	}
}

// Attach derives the metadata account for the mint and creates it referencing
// the uploaded metadata document. If the account already exists the call is a
// no-op and an empty signature is returned; there is no update path.
func (a *Attacher) Attach(ctx context.Context, payer, mint *common.Account, name, symbol, uri string, updateAuthorityRevoked bool) (string, error) {
	metadataAddress, _, err := tokenmeta.GetMetadataAddress(&tokenmeta.GetMetadataAddressArgs{
		Mint: mint.ToEd25519PublicKey(),
	})
	if err != nil {
		return "", errors.Wrap(err, "error deriving metadata address")
	}

	_, err = a.solanaClient.GetAccountInfo(metadataAddress, solana.CommitmentConfirmed)
	if err == nil {
		a.log.WithField("mint", mint.PublicKey().ToBase58()).Info("metadata account already exists")
		return "", nil
	}
	if err != solana.ErrNoAccountInfo {
		return "", errors.Wrap(err, "error getting metadata account info")
	}

	instruction := tokenmeta.NewCreateMetadataAccountV3Instruction(
		&tokenmeta.CreateMetadataAccountV3InstructionAccounts{
			Metadata:        metadataAddress,
			Mint:            mint.ToEd25519PublicKey(),
			MintAuthority:   payer.ToEd25519PublicKey(),
			Payer:           payer.ToEd25519PublicKey(),
			UpdateAuthority: payer.ToEd25519PublicKey(),
		},
		&tokenmeta.CreateMetadataAccountV3InstructionArgs{
			Data: tokenmeta.DataV2{
				Name:   name,
				Symbol: symbol,
				Uri:    uri,
			},
			IsMutable: !updateAuthorityRevoked,
		},
	)

	txn := solana.NewTransaction(payer.ToEd25519PublicKey(), instruction)

	blockhash, err := a.solanaClient.GetLatestBlockhash()
	if err != nil {
		return "", errors.Wrap(err, "error getting latest blockhash")
	}
	txn.SetBlockhash(blockhash)

	privateKey, err := payer.ToEd25519PrivateKey()
	if err != nil {
		return "", err
	}
	if err := txn.Sign(privateKey); err != nil {
		return "", errors.Wrap(err, "error signing transaction")
	}

	sig, err := a.solanaClient.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return "", errors.Wrap(err, "error submitting transaction")
	}

	if _, err := a.solanaClient.GetSignatureStatus(sig, solana.CommitmentConfirmed); err != nil {
		return "", errors.Wrap(err, "error confirming transaction")
	}

	return base58.Encode(sig[:]), nil
}
