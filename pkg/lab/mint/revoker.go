package mint

import (
	"context"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/token-lab/token-lab-server/pkg/lab/common"
	"github.com/token-lab/token-lab-server/pkg/solana"
	"github.com/token-lab/token-lab-server/pkg/solana/token"
)

// Revoker irrevocably removes authorities from a mint.
type Revoker struct {
	log          *logrus.Entry
	solanaClient solana.Client
}

func NewRevoker(solanaClient solana.Client) *Revoker {
	return &Revoker{
		log:          logrus.StandardLogger().WithField("type", "mint/revoker"),
		solanaClient: solanaClient,
	}
}

// RevokeMintAuthority removes the mint authority so no further supply can be
// minted.
func (r *Revoker) RevokeMintAuthority(ctx context.Context, authority, mint *common.Account) (string, error) {
	return r.revoke(ctx, authority, mint, token.AuthorityTypeMintTokens)
}

// RevokeFreezeAuthority removes the freeze authority so token accounts can
// never be frozen.
func (r *Revoker) RevokeFreezeAuthority(ctx context.Context, authority, mint *common.Account) (string, error) {
	return r.revoke(ctx, authority, mint, token.AuthorityTypeFreezeAccount)
}

func (r *Revoker) revoke(ctx context.Context, authority, mint *common.Account, authorityType token.AuthorityType) (string, error) {
	txn := solana.NewTransaction(
		authority.ToEd25519PublicKey(),
		token.SetAuthority(
			mint.ToEd25519PublicKey(),
			authority.ToEd25519PublicKey(),
			nil,
			authorityType,
		),
	)

	blockhash, err := r.solanaClient.GetLatestBlockhash()
	if err != nil {
		return "", errors.Wrap(err, "error getting latest blockhash")
	}
	txn.SetBlockhash(blockhash)

	privateKey, err := authority.ToEd25519PrivateKey()
	if err != nil {
		return "", err
	}
	if err := txn.Sign(privateKey); err != nil {
		return "", errors.Wrap(err, "error signing transaction")
	}

	sig, err := r.solanaClient.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return "", errors.Wrap(err, "error submitting transaction")
	}

	if _, err := r.solanaClient.GetSignatureStatus(sig, solana.CommitmentConfirmed); err != nil {
		return "", errors.Wrap(err, "error confirming transaction")
	}

	r.log.WithFields(logrus.Fields{
		"mint":           mint.PublicKey().ToBase58(),
		"authority_type": int(authorityType),
	}).Info("revoked authority")

	return base58.Encode(sig[:]), nil
}
