package fees

import (
	"context"
	"math"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/token-lab/token-lab-server/pkg/lab/common"
	"github.com/token-lab/token-lab-server/pkg/lab/config"
	"github.com/token-lab/token-lab-server/pkg/solana"
	"github.com/token-lab/token-lab-server/pkg/solana/system"
	"github.com/token-lab/token-lab-server/pkg/solana/token"
)

const (
	lamportsPerSol = 1_000_000_000

	// Wrapped SOL mint, used to quote the native asset's USD price
	nativeMintAddress = "So11111111111111111111111111111111111111112"
)

var (
	// ErrMissingConfig indicates a treasury or fee token mint isn't configured
	ErrMissingConfig = errors.New("treasury configuration is missing")

	// ErrSimulationFailed indicates the fee transfer failed pre-flight simulation
	ErrSimulationFailed = errors.New("fee transfer simulation failed")

	// ErrInsufficientBalance indicates the payer cannot cover the fee
	ErrInsufficientBalance = errors.New("insufficient balance for minting fee")
)

// PriceOracle quotes the current USD price of a token mint
type PriceOracle interface {
	GetUsdPrice(ctx context.Context, mint string) (float64, error)
}

// FeeQuote is the USD-denominated view of a minting fee. Computed fresh per
// charge and never persisted.
type FeeQuote struct {
	UsdPrice  float64
	FeeAmount float64
	FeeUsd    float64
}

// Charger executes minting fee transfers to the treasury.
type Charger struct {
	log          *logrus.Entry
	conf         *config.Config
	oracle       PriceOracle
	solanaClient solana.Client
}

func NewCharger(conf *config.Config, oracle PriceOracle, solanaClient solana.Client) *Charger {
	return &Charger{
		log:          logrus.StandardLogger().WithField("type", "fees/charger"),
		conf:         conf,
		oracle:       oracle,
		solanaClient: solanaClient,
	}
}

// quoteUsd computes the USD value of the fee. Quotes are informational, so a
// price api failure is logged and the charge proceeds without one.
func (c *Charger) quoteUsd(ctx context.Context, mint string, feeAmount float64) *FeeQuote {
	quote := &FeeQuote{FeeAmount: feeAmount}
	if c.oracle == nil {
		return quote
	}

	price, err := c.oracle.GetUsdPrice(ctx, mint)
	if err != nil {
		c.log.WithError(err).WithField("mint", mint).Warn("failed to quote fee usd price")
		return quote
	}

	quote.UsdPrice = price
	quote.FeeUsd = price * feeAmount
	return quote
}

// Charge transfers the minting fee from the payer to the treasury and returns
// the total charged in the paid asset's primary unit.
func (c *Charger) Charge(ctx context.Context, payer *common.Account, paymentType common.PaymentType) (float64, error) {
	switch paymentType {
	case common.PaymentTypeSol:
		return c.chargeSol(ctx, payer)
	case common.PaymentTypeLabs:
		return c.chargeLabs(ctx, payer)
	}
	return 0, common.ErrInvalidPaymentType
}

func (c *Charger) chargeSol(ctx context.Context, payer *common.Account) (float64, error) {
	log := c.log.WithField("method", "chargeSol")

	treasuryAddress := c.conf.TreasuryWalletSol.Get(ctx)
	if len(treasuryAddress) == 0 {
		return 0, ErrMissingConfig
	}
	treasury, err := common.NewAccountFromPublicKeyString(treasuryAddress)
	if err != nil {
		return 0, errors.Wrap(err, "invalid treasury address")
	}

	feeSol := c.conf.MintingFeeSol.Get(ctx)
	lamports := uint64(math.Round(feeSol * lamportsPerSol))

	quote := c.quoteUsd(ctx, nativeMintAddress, feeSol)
	log = log.WithField("fee_usd", quote.FeeUsd)

	balance, err := c.solanaClient.GetBalance(payer.ToEd25519PublicKey())
	if err != nil {
		return 0, errors.Wrap(err, "error getting payer balance")
	}

	if balance < lamports {
		if !c.conf.AirdropIfInsufficientFunds.Get(ctx) {
			return 0, ErrInsufficientBalance
		}

		log.WithField("balance", balance).Info("requesting airdrop for insufficient balance")
		if _, err := c.solanaClient.RequestAirdrop(payer.ToEd25519PublicKey(), lamports, solana.CommitmentConfirmed); err != nil {
			return 0, errors.Wrap(err, "error requesting airdrop")
		}

		balance, err = c.solanaClient.GetBalance(payer.ToEd25519PublicKey())
		if err != nil {
			return 0, errors.Wrap(err, "error getting payer balance")
		}
		if balance < lamports {
			return 0, ErrInsufficientBalance
		}
	}

	txn := solana.NewTransaction(
		payer.ToEd25519PublicKey(),
		system.Transfer(payer.ToEd25519PublicKey(), treasury.ToEd25519PublicKey(), lamports),
	)

	sig, err := c.signAndSubmit(ctx, payer, &txn)
	if err != nil {
		return 0, err
	}

	// The fee is treated as charged once the transfer is accepted by the
	// network. A confirmation failure after submission is logged and
	// swallowed.
	if _, err := c.solanaClient.GetSignatureStatus(sig, solana.CommitmentConfirmed); err != nil {
		log.WithError(err).WithField("signature", base58.Encode(sig[:])).Warn("failed to confirm fee transfer")
	}

	return feeSol, nil
}

func (c *Charger) chargeLabs(ctx context.Context, payer *common.Account) (float64, error) {
	treasuryAddress := c.conf.TreasuryWalletLabs.Get(ctx)
	mintAddress := c.conf.LabsTokenMintAddress.Get(ctx)
	if len(treasuryAddress) == 0 || len(mintAddress) == 0 {
		return 0, ErrMissingConfig
	}

	treasury, err := common.NewAccountFromPublicKeyString(treasuryAddress)
	if err != nil {
		return 0, errors.Wrap(err, "invalid treasury address")
	}
	mint, err := common.NewAccountFromPublicKeyString(mintAddress)
	if err != nil {
		return 0, errors.Wrap(err, "invalid fee token mint address")
	}

	// The fee is specified directly in the fee token's base units. No
	// decimal scaling is applied.
	feeLabs := c.conf.MintingFeeLabs.Get(ctx)

	c.quoteUsd(ctx, mintAddress, float64(feeLabs))

	tokenClient := token.NewClient(c.solanaClient, mint.ToEd25519PublicKey())

	source, err := c.resolveTokenAccount(ctx, tokenClient, payer, payer, mint, false)
	if err != nil {
		return 0, err
	}
	destination, err := c.resolveTokenAccount(ctx, tokenClient, payer, treasury, mint, true)
	if err != nil {
		return 0, err
	}

	txn := solana.NewTransaction(
		payer.ToEd25519PublicKey(),
		token.Transfer(
			source.ToEd25519PublicKey(),
			destination.ToEd25519PublicKey(),
			payer.ToEd25519PublicKey(),
			feeLabs,
		),
	)

	if _, err := c.signAndSubmit(ctx, payer, &txn); err != nil {
		return 0, err
	}

	return float64(feeLabs), nil
}

// resolveTokenAccount derives the owner's associated token account, creating
// it when allowed and it doesn't exist yet. An existing account that isn't a
// valid token account for the fee mint is an error.
func (c *Charger) resolveTokenAccount(ctx context.Context, tokenClient *token.Client, payer, owner, mint *common.Account, createIfMissing bool) (*common.Account, error) {
	ata, err := owner.ToAssociatedTokenAccount(mint)
	if err != nil {
		return nil, err
	}

	_, err = tokenClient.GetAccount(ata.ToEd25519PublicKey(), solana.CommitmentConfirmed)
	if err == nil {
		return ata, nil
	}
	if err != token.ErrAccountNotFound {
		return nil, errors.Wrap(err, "error getting token account")
	}

	if !createIfMissing {
		return nil, errors.Errorf("token account %s doesn't exist", ata.PublicKey().ToBase58())
	}

	instruction, _, err := token.CreateAssociatedTokenAccount(
		payer.ToEd25519PublicKey(),
		owner.ToEd25519PublicKey(),
		mint.ToEd25519PublicKey(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error building create token account instruction")
	}

	txn := solana.NewTransaction(payer.ToEd25519PublicKey(), instruction)
	if _, err := c.signAndSubmit(ctx, payer, &txn); err != nil {
		return nil, err
	}
	return ata, nil
}

func (c *Charger) signAndSubmit(ctx context.Context, payer *common.Account, txn *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature

	blockhash, err := c.solanaClient.GetLatestBlockhash()
	if err != nil {
		return sig, errors.Wrap(err, "error getting latest blockhash")
	}
	txn.SetBlockhash(blockhash)

	privateKey, err := payer.ToEd25519PrivateKey()
	if err != nil {
		return sig, err
	}
	if err := txn.Sign(privateKey); err != nil {
		return sig, errors.Wrap(err, "error signing transaction")
	}

	simulation, err := c.solanaClient.SimulateTransaction(*txn)
	if err != nil {
		return sig, errors.Wrap(ErrSimulationFailed, err.Error())
	}
	if simulation.Err != nil {
		return sig, errors.Wrap(ErrSimulationFailed, simulation.Err.Error())
	}

	sig, err = c.solanaClient.SubmitTransaction(*txn, solana.CommitmentConfirmed)
	if err != nil {
		return sig, errors.Wrap(err, "error submitting transaction")
	}
	return sig, nil
}
