package minter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/token-lab/token-lab-server/pkg/lab/common"
	"github.com/token-lab/token-lab-server/pkg/lab/config"
	"github.com/token-lab/token-lab-server/pkg/lab/fees"
	"github.com/token-lab/token-lab-server/pkg/lab/mint"
	"github.com/token-lab/token-lab-server/pkg/metrics"
)

const (
	maxTokenNameLength   = 32
	maxTokenSymbolLength = 9
)

// FeeCharger charges the minting fee to the treasury
type FeeCharger interface {
	Charge(ctx context.Context, payer *common.Account, paymentType common.PaymentType) (float64, error)
}

// MetadataUploader pins the token image and metadata document
type MetadataUploader interface {
	Upload(ctx context.Context, name, symbol, imageReference string) (string, error)
}

// MetadataAttacher creates the on-chain metadata account
type MetadataAttacher interface {
	Attach(ctx context.Context, payer, mintAccount *common.Account, name, symbol, uri string, updateAuthorityRevoked bool) (string, error)
}

// TokenMinter creates the mint and mints supply into the recipient's account
type TokenMinter interface {
	CreateAndMint(ctx context.Context, payer, recipient *common.Account, decimals uint8, quantity uint64) (*mint.MintedToken, error)
	CreateAndMintCompressed(ctx context.Context, payer, recipient *common.Account, decimals uint8, quantity uint64) (*mint.MintedToken, error)
}

// AuthorityRevoker removes mint and freeze authorities
type AuthorityRevoker interface {
	RevokeMintAuthority(ctx context.Context, authority, mintAccount *common.Account) (string, error)
	RevokeFreezeAuthority(ctx context.Context, authority, mintAccount *common.Account) (string, error)
}

// AssetStore deletes temporary image assets uploaded ahead of a mint request
type AssetStore interface {
	Delete(ctx context.Context, name string) error
	ObjectName(url string) (string, bool)
}

// Orchestrator sequences validation, fee charging, metadata upload, minting,
// metadata attachment, and authority revocation for a mint request. Failure
// at any stage aborts the remaining stages; the only compensating action is
// deletion of the temporary image asset.
type Orchestrator struct {
	log      *logrus.Entry
	conf     *config.Config
	fees     FeeCharger
	uploader MetadataUploader
	attacher MetadataAttacher
	minter   TokenMinter
	revoker  AuthorityRevoker
	assets   AssetStore
}

func NewOrchestrator(
	conf *config.Config,
	feeCharger FeeCharger,
	uploader MetadataUploader,
	attacher MetadataAttacher,
	tokenMinter TokenMinter,
	revoker AuthorityRevoker,
	assets AssetStore,
) *Orchestrator {
	return &Orchestrator{
		log:      logrus.StandardLogger().WithField("type", "minter/orchestrator"),
		conf:     conf,
		fees:     feeCharger,
		uploader: uploader,
		attacher: attacher,
		minter:   tokenMinter,
		revoker:  revoker,
		assets:   assets,
	}
}

// Mint runs the full minting sequence for a request.
func (o *Orchestrator) Mint(ctx context.Context, req *MintRequest) (*MintResult, error) {
	return o.mint(ctx, req, false)
}

// CompressMint is the mint variant without metadata upload or attachment.
func (o *Orchestrator) CompressMint(ctx context.Context, req *MintRequest) (*MintResult, error) {
	return o.mint(ctx, req, true)
}

func (o *Orchestrator) mint(ctx context.Context, req *MintRequest, compressed bool) (*MintResult, error) {
	log := o.log.WithField("method", "Mint")

	// Validation is eager. No external calls are made until the request is
	// fully validated.
	paymentType, requester, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	cleanup := o.newAssetCleanup(req.ImageReference)
	defer cleanup.release(ctx)

	signer, err := o.loadSigner(ctx)
	if err != nil {
		cleanup.release(ctx)
		return nil, err
	}

	var actions []string

	totalCharged, err := o.fees.Charge(ctx, signer, paymentType)
	if err != nil {
		log.WithError(err).Warn("fee charge failed")
		cleanup.release(ctx)
		return nil, NewError(classify(err), "Failed to charge minting fee.", err)
	}
	actions = append(actions, "Fee charge")

	var metadataUrl string
	if !compressed {
		metadataUrl, err = o.uploader.Upload(ctx, req.TokenName, req.TokenSymbol, req.ImageReference)
		if err != nil {
			log.WithError(err).Warn("metadata upload failed")
			cleanup.release(ctx)
			return nil, NewError(classify(err), "Failed to upload image and metadata.", err)
		}
		actions = append(actions, "Metadata upload")
	}

	var minted *mint.MintedToken
	if compressed {
		minted, err = o.minter.CreateAndMintCompressed(ctx, signer, requester, uint8(req.Decimals), req.Quantity)
	} else {
		minted, err = o.minter.CreateAndMint(ctx, signer, requester, uint8(req.Decimals), req.Quantity)
	}
	if err != nil {
		log.WithError(err).Warn("minting failed")
		cleanup.release(ctx)
		return nil, NewError(classify(err), "Failed to mint tokens.", err)
	}
	actions = append(actions, "Minting")

	var metadataTransaction string
	if !compressed {
		metadataTransaction, err = o.attacher.Attach(ctx, signer, minted.Mint, req.TokenName, req.TokenSymbol, metadataUrl, req.RevokeUpdateAuthority)
		if err != nil {
			log.WithError(err).Warn("metadata attachment failed")
			cleanup.release(ctx)
			return nil, NewError(classify(err), "Failed to create token metadata.", err)
		}
		actions = append(actions, "Token metadata")
	}

	if req.RevokeMintAuthority {
		if _, err := o.revoker.RevokeMintAuthority(ctx, signer, minted.Mint); err != nil {
			log.WithError(err).Warn("mint authority revocation failed")
			cleanup.release(ctx)
			return nil, NewError(classify(err), "Failed to revoke mint authority.", err)
		}
		actions = append(actions, "Mint authority")
	}

	if req.RevokeFreezeAuthority {
		if _, err := o.revoker.RevokeFreezeAuthority(ctx, signer, minted.Mint); err != nil {
			log.WithError(err).Warn("freeze authority revocation failed")
			cleanup.release(ctx)
			return nil, NewError(classify(err), "Failed to revoke freeze authority.", err)
		}
		actions = append(actions, "Freeze authority")
	}

	if req.RevokeUpdateAuthority {
		// Update authority revocation is expressed through the metadata
		// account being created immutable.
		actions = append(actions, "Update authority")
	}

	cleanup.release(ctx)

	metrics.RecordCount(ctx, "minted_tokens", 1)
	metrics.RecordEvent(ctx, "TokenMinted", map[string]interface{}{
		"mint":          minted.Mint.PublicKey().ToBase58(),
		"payment_type":  paymentType.String(),
		"total_charged": totalCharged,
		"compressed":    compressed,
	})

	return &MintResult{
		MintAddress:         minted.Mint.PublicKey().ToBase58(),
		TokenAccount:        minted.TokenAccount.PublicKey().ToBase58(),
		MetadataTransaction: metadataTransaction,
		MetadataUrl:         metadataUrl,
		ExplorerLink:        o.explorerLink(ctx, minted.Mint),
		TotalCharged:        totalCharged,
		ActionsPerformed:    actions,
	}, nil
}

func (o *Orchestrator) validate(req *MintRequest) (common.PaymentType, *common.Account, error) {
	var missing []string
	if len(req.TokenName) == 0 {
		missing = append(missing, "tokenName")
	}
	if len(req.TokenSymbol) == 0 {
		missing = append(missing, "tokenSymbol")
	}
	if len(req.RequesterAddress) == 0 {
		missing = append(missing, "userPublicKey")
	}
	if req.Quantity == 0 {
		missing = append(missing, "quantity")
	}
	if len(req.PaymentType) == 0 {
		missing = append(missing, "paymentType")
	}
	if len(req.ImageReference) == 0 {
		missing = append(missing, "imagePath")
	}
	if len(missing) > 0 {
		return common.PaymentTypeUnknown, nil, NewValidationError(fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")))
	}

	if len(req.TokenName) > maxTokenNameLength || !isAlphanumericWithSpaces(req.TokenName) {
		return common.PaymentTypeUnknown, nil, NewValidationError("Token name must be at most 32 alphanumeric characters and spaces.")
	}
	if len(req.TokenSymbol) > maxTokenSymbolLength {
		return common.PaymentTypeUnknown, nil, NewValidationError("Token symbol must be at most 9 characters.")
	}

	paymentType, err := common.ParsePaymentType(req.PaymentType)
	if err != nil {
		return common.PaymentTypeUnknown, nil, NewValidationError("Invalid payment type.")
	}

	requester, err := common.NewAccountFromPublicKeyString(req.RequesterAddress)
	if err != nil {
		return common.PaymentTypeUnknown, nil, NewValidationError("Invalid user public key.")
	}

	if req.Decimals < 0 || req.Decimals > 9 {
		return common.PaymentTypeUnknown, nil, NewValidationError("Decimals must be a non-negative integer and <= 9.")
	}

	if _, managed := o.assets.ObjectName(req.ImageReference); !managed {
		if _, err := os.Stat(req.ImageReference); err != nil {
			return common.PaymentTypeUnknown, nil, NewValidationError("File not found at the specified path.")
		}
	}

	return paymentType, requester, nil
}

func isAlphanumericWithSpaces(value string) bool {
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == ' ':
		default:
			return false
		}
	}
	return true
}

func (o *Orchestrator) loadSigner(ctx context.Context) (*common.Account, error) {
	privateKey := o.conf.SolanaPrivateKey.Get(ctx)
	if len(privateKey) == 0 {
		return nil, NewError(KindConfiguration, "Server configuration error.", errors.New("service signer isn't configured"))
	}

	signer, err := common.NewAccountFromPrivateKeyString(privateKey)
	if err != nil {
		return nil, NewError(KindConfiguration, "Server configuration error.", errors.Wrap(err, "invalid service signer"))
	}
	return signer, nil
}

func (o *Orchestrator) explorerLink(ctx context.Context, mintAccount *common.Account) string {
	return fmt.Sprintf(
		"https://explorer.solana.com/address/%s?cluster=%s",
		mintAccount.PublicKey().ToBase58(),
		o.conf.ExplorerCluster.Get(ctx),
	)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, fees.ErrSimulationFailed):
		return KindSimulation
	case errors.Is(err, fees.ErrMissingConfig):
		return KindConfiguration
	default:
		return KindDownstream
	}
}

// assetCleanup releases the temporary image asset exactly once across all
// exit paths. Release is safe to call repeatedly.
type assetCleanup struct {
	log      *logrus.Entry
	assets   AssetStore
	name     string
	released bool
}

func (o *Orchestrator) newAssetCleanup(imageReference string) *assetCleanup {
	name, managed := o.assets.ObjectName(imageReference)
	if !managed {
		name = ""
	}

	return &assetCleanup{
		log:    o.log.WithField("method", "assetCleanup"),
		assets: o.assets,
		name:   name,
	}
}

func (c *assetCleanup) release(ctx context.Context) {
	if c.released || len(c.name) == 0 {
		return
	}
	c.released = true

	if err := c.assets.Delete(ctx, c.name); err != nil {
		c.log.WithError(err).WithField("asset", c.name).Warn("failed to delete temporary asset")
	}
}
