package mint

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/token-lab/token-lab-server/pkg/lab/common"
	"github.com/token-lab/token-lab-server/pkg/retry"
	"github.com/token-lab/token-lab-server/pkg/retry/backoff"
	"github.com/token-lab/token-lab-server/pkg/solana"
	"github.com/token-lab/token-lab-server/pkg/solana/system"
	"github.com/token-lab/token-lab-server/pkg/solana/token"
)

const (
	confirmationPollInitialDelay = 2 * time.Second
	confirmationPollMaxDelay     = 30 * time.Second
	confirmationPollAttempts     = 10
)

var (
	// ErrQuantityOverflow indicates quantity * 10^decimals doesn't fit in the
	// token's u64 base unit space
	ErrQuantityOverflow = errors.New("minted amount overflows base units")

	errAwaitingConfirmation = errors.New("awaiting confirmation")
)

// MintedToken is the result of a successful mint.
type MintedToken struct {
	Mint         *common.Account
	TokenAccount *common.Account
	Signature    string
}

// Service creates new token mints and mints supply into the recipient's
// associated token account.
type Service struct {
	log          *logrus.Entry
	solanaClient solana.Client
}

func NewService(solanaClient solana.Client) *Service {
	return &Service{
		log:          logrus.StandardLogger().WithField("type", "mint/service"),
		solanaClient: solanaClient,
	}
}

// CreateAndMint creates a new mint with the payer as mint and freeze
// authority, creates the recipient's associated token account, and mints
// quantity * 10^decimals base units into it. All in one transaction.
func (s *Service) CreateAndMint(ctx context.Context, payer, recipient *common.Account, decimals uint8, quantity uint64) (*MintedToken, error) {
	amount, err := ScaleQuantity(quantity, decimals)
	if err != nil {
		return nil, err
	}

	mintAccount, err := common.NewRandomAccount()
	if err != nil {
		return nil, errors.Wrap(err, "error generating mint account")
	}

	rent, err := s.solanaClient.GetMinimumBalanceForRentExemption(token.MintSize)
	if err != nil {
		return nil, errors.Wrap(err, "error getting rent exemption")
	}

	createAta, ata, err := token.CreateAssociatedTokenAccount(
		payer.ToEd25519PublicKey(),
		recipient.ToEd25519PublicKey(),
		mintAccount.ToEd25519PublicKey(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error building create token account instruction")
	}

	txn := solana.NewTransaction(
		payer.ToEd25519PublicKey(),
		system.CreateAccount(
			payer.ToEd25519PublicKey(),
			mintAccount.ToEd25519PublicKey(),
			token.ProgramKey,
			rent,
			token.MintSize,
		),
		token.InitializeMint(
			mintAccount.ToEd25519PublicKey(),
			payer.ToEd25519PublicKey(),
			payer.ToEd25519PublicKey(),
			decimals,
		),
		createAta,
		token.MintTo(
			mintAccount.ToEd25519PublicKey(),
			ata,
			payer.ToEd25519PublicKey(),
			amount,
		),
	)

	sig, err := s.signAndSubmit(ctx, &txn, payer, mintAccount)
	if err != nil {
		return nil, err
	}

	if _, err := s.solanaClient.GetSignatureStatus(sig, solana.CommitmentConfirmed); err != nil {
		return nil, errors.Wrap(err, "error confirming transaction")
	}

	tokenAccount, err := common.NewAccountFromPublicKeyBytes(ata)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"mint":          mintAccount.PublicKey().ToBase58(),
		"token_account": tokenAccount.PublicKey().ToBase58(),
		"amount":        amount,
	}).Info("minted token")

	return &MintedToken{
		Mint:         mintAccount,
		TokenAccount: tokenAccount,
		Signature:    base58.Encode(sig[:]),
	}, nil
}

// CreateAndMintCompressed is the metadata-less mint variant. Confirmation is
// polled with a doubling backoff instead of the default poll rate.
func (s *Service) CreateAndMintCompressed(ctx context.Context, payer, recipient *common.Account, decimals uint8, quantity uint64) (*MintedToken, error) {
	amount, err := ScaleQuantity(quantity, decimals)
	if err != nil {
		return nil, err
	}

	mintAccount, err := common.NewRandomAccount()
	if err != nil {
		return nil, errors.Wrap(err, "error generating mint account")
	}

	rent, err := s.solanaClient.GetMinimumBalanceForRentExemption(token.MintSize)
	if err != nil {
		return nil, errors.Wrap(err, "error getting rent exemption")
	}

	createAta, ata, err := token.CreateAssociatedTokenAccount(
		payer.ToEd25519PublicKey(),
		recipient.ToEd25519PublicKey(),
		mintAccount.ToEd25519PublicKey(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error building create token account instruction")
	}

	txn := solana.NewTransaction(
		payer.ToEd25519PublicKey(),
		system.CreateAccount(
			payer.ToEd25519PublicKey(),
			mintAccount.ToEd25519PublicKey(),
			token.ProgramKey,
			rent,
			token.MintSize,
		),
		token.InitializeMint(
			mintAccount.ToEd25519PublicKey(),
			payer.ToEd25519PublicKey(),
			nil,
			decimals,
		),
		createAta,
		token.MintTo(
			mintAccount.ToEd25519PublicKey(),
			ata,
			payer.ToEd25519PublicKey(),
			amount,
		),
	)

	sig, err := s.signAndSubmit(ctx, &txn, payer, mintAccount)
	if err != nil {
		return nil, err
	}

	if err := s.awaitConfirmed(sig); err != nil {
		return nil, err
	}

	tokenAccount, err := common.NewAccountFromPublicKeyBytes(ata)
	if err != nil {
		return nil, err
	}

	return &MintedToken{
		Mint:         mintAccount,
		TokenAccount: tokenAccount,
		Signature:    base58.Encode(sig[:]),
	}, nil
}

func (s *Service) signAndSubmit(ctx context.Context, txn *solana.Transaction, signers ...*common.Account) (solana.Signature, error) {
	var sig solana.Signature

	blockhash, err := s.solanaClient.GetLatestBlockhash()
	if err != nil {
		return sig, errors.Wrap(err, "error getting latest blockhash")
	}
	txn.SetBlockhash(blockhash)

	privateKeys := make([]ed25519.PrivateKey, 0, len(signers))
	for _, signer := range signers {
		privateKey, err := signer.ToEd25519PrivateKey()
		if err != nil {
			return sig, err
		}
		privateKeys = append(privateKeys, privateKey)
	}
	if err := txn.Sign(privateKeys...); err != nil {
		return sig, errors.Wrap(err, "error signing transaction")
	}

	sig, err = s.solanaClient.SubmitTransaction(*txn, solana.CommitmentConfirmed)
	if err != nil {
		return sig, errors.Wrap(err, "error submitting transaction")
	}
	return sig, nil
}

// awaitConfirmed polls the signature status with a doubling delay, capped at
// confirmationPollAttempts attempts.
func (s *Service) awaitConfirmed(sig solana.Signature) error {
	_, err := retry.Retry(
		func() error {
			statuses, err := s.solanaClient.GetSignatureStatuses([]solana.Signature{sig})
			if err != nil {
				return err
			}

			status := statuses[0]
			if status == nil {
				return errAwaitingConfirmation
			}
			if status.ErrorResult != nil {
				return status.ErrorResult
			}
			if !status.Confirmed() {
				return errAwaitingConfirmation
			}
			return nil
		},
		retry.RetriableErrors(errAwaitingConfirmation),
		retry.Limit(confirmationPollAttempts),
		retry.Backoff(backoff.BinaryExponential(confirmationPollInitialDelay), confirmationPollMaxDelay),
	)
	return err
}

// ScaleQuantity converts a whole token quantity to base units, rejecting
// amounts that overflow a u64.
func ScaleQuantity(quantity uint64, decimals uint8) (uint64, error) {
	amount := quantity
	for i := uint8(0); i < decimals; i++ {
		next := amount * 10
		if next/10 != amount {
			return 0, ErrQuantityOverflow
		}
		amount = next
	}
	return amount, nil
}
