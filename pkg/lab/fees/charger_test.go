package fees

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/token-lab/token-lab-server/pkg/lab/common"
	"github.com/token-lab/token-lab-server/pkg/lab/config"
	"github.com/token-lab/token-lab-server/pkg/solana"
	"github.com/token-lab/token-lab-server/pkg/solana/system"
	"github.com/token-lab/token-lab-server/pkg/solana/token"
)

type fakeSolanaClient struct {
	solana.Client

	balances     []uint64
	balanceCalls int
	airdropCalls int

	existingAccounts map[string]solana.AccountInfo

	simulateErr error
	submitted   []solana.Transaction

	statusCalls int
	statusErr   error
}

func (f *fakeSolanaClient) GetBalance(ed25519.PublicKey) (uint64, error) {
	index := f.balanceCalls
	if index >= len(f.balances) {
		index = len(f.balances) - 1
	}
	f.balanceCalls++
	return f.balances[index], nil
}

func (f *fakeSolanaClient) RequestAirdrop(ed25519.PublicKey, uint64, solana.Commitment) (solana.Signature, error) {
	f.airdropCalls++
	return solana.Signature{}, nil
}

func (f *fakeSolanaClient) GetAccountInfo(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	if info, ok := f.existingAccounts[string(account)]; ok {
		return info, nil
	}
	return solana.AccountInfo{}, solana.ErrNoAccountInfo
}

func (f *fakeSolanaClient) GetLatestBlockhash() (solana.Blockhash, error) {
	return solana.Blockhash{1}, nil
}

func (f *fakeSolanaClient) SimulateTransaction(solana.Transaction) (*solana.SimulationResult, error) {
	if f.simulateErr != nil {
		return nil, f.simulateErr
	}
	return &solana.SimulationResult{}, nil
}

func (f *fakeSolanaClient) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	f.submitted = append(f.submitted, txn)
	return solana.Signature{2}, nil
}

func (f *fakeSolanaClient) GetSignatureStatus(solana.Signature, solana.Commitment) (*solana.SignatureStatus, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &solana.SignatureStatus{ConfirmationStatus: "confirmed"}, nil
}

type fakePriceOracle struct {
	calls int
	price float64
	err   error
}

func (f *fakePriceOracle) GetUsdPrice(context.Context, string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

type chargerTestEnv struct {
	charger  *Charger
	client   *fakeSolanaClient
	oracle   *fakePriceOracle
	payer    *common.Account
	treasury *common.Account
	labsMint *common.Account
}

func setupCharger(t *testing.T, modify func(*config.TestOverrides)) *chargerTestEnv {
	payer, err := common.NewRandomAccount()
	require.NoError(t, err)
	treasury, err := common.NewRandomAccount()
	require.NoError(t, err)
	labsMint, err := common.NewRandomAccount()
	require.NoError(t, err)

	overrides := &config.TestOverrides{
		TreasuryWalletSol:    treasury.PublicKey().ToBase58(),
		TreasuryWalletLabs:   treasury.PublicKey().ToBase58(),
		LabsTokenMintAddress: labsMint.PublicKey().ToBase58(),
	}
	if modify != nil {
		modify(overrides)
	}

	client := &fakeSolanaClient{
		balances:         []uint64{1_000_000_000},
		existingAccounts: make(map[string]solana.AccountInfo),
	}
	oracle := &fakePriceOracle{price: 150}

	return &chargerTestEnv{
		charger:  NewCharger(config.WithManualTestOverrides(overrides)(), oracle, client),
		client:   client,
		oracle:   oracle,
		payer:    payer,
		treasury: treasury,
		labsMint: labsMint,
	}
}

func (e *chargerTestEnv) markTokenAccountExists(ata, owner *common.Account) {
	tokenAccount := token.Account{
		Mint:  e.labsMint.ToEd25519PublicKey(),
		Owner: owner.ToEd25519PublicKey(),
		State: token.AccountStateInitialized,
	}
	e.client.existingAccounts[string(ata.ToEd25519PublicKey())] = solana.AccountInfo{
		Owner: token.ProgramKey,
		Data:  tokenAccount.Marshal(),
	}
}

func TestCharge_InvalidPaymentType(t *testing.T) {
	env := setupCharger(t, nil)

	_, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeUnknown)
	assert.Equal(t, common.ErrInvalidPaymentType, err)
	assert.Empty(t, env.client.submitted)
}

func TestChargeSol_MissingTreasury(t *testing.T) {
	env := setupCharger(t, func(overrides *config.TestOverrides) {
		overrides.TreasuryWalletSol = ""
	})

	_, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	assert.True(t, errors.Is(err, ErrMissingConfig))
	assert.Empty(t, env.client.submitted)
}

func TestChargeSol_Success(t *testing.T) {
	env := setupCharger(t, nil)

	charged, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	require.NoError(t, err)
	assert.Equal(t, 0.05, charged)

	require.Len(t, env.client.submitted, 1)
	transfer, err := system.DecompileTransfer(env.client.submitted[0].Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, env.payer.ToEd25519PublicKey(), transfer.Sender)
	assert.EqualValues(t, env.treasury.ToEd25519PublicKey(), transfer.Recipient)
	assert.EqualValues(t, 50_000_000, transfer.Lamports)

	assert.Equal(t, 0, env.client.airdropCalls)
	assert.Equal(t, 1, env.client.statusCalls)
	assert.Equal(t, 1, env.oracle.calls)
}

func TestChargeSol_FeeRoundsToNearestLamport(t *testing.T) {
	env := setupCharger(t, func(overrides *config.TestOverrides) {
		overrides.MintingFeeSol = 0.29
	})

	charged, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	require.NoError(t, err)
	assert.Equal(t, 0.29, charged)

	require.Len(t, env.client.submitted, 1)
	transfer, err := system.DecompileTransfer(env.client.submitted[0].Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 290_000_000, transfer.Lamports)
}

func TestChargeSol_PriceApiFailureIsSwallowed(t *testing.T) {
	env := setupCharger(t, nil)
	env.oracle.err = errors.New("price api unavailable")

	charged, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	require.NoError(t, err)
	assert.Equal(t, 0.05, charged)
}

func TestChargeSol_InsufficientBalance(t *testing.T) {
	env := setupCharger(t, nil)
	env.client.balances = []uint64{0}

	_, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, 0, env.client.airdropCalls)
	assert.Empty(t, env.client.submitted)
}

func TestChargeSol_AirdropCoversBalance(t *testing.T) {
	env := setupCharger(t, func(overrides *config.TestOverrides) {
		overrides.AirdropIfInsufficientFunds = true
	})
	env.client.balances = []uint64{0, 100_000_000}

	charged, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	require.NoError(t, err)
	assert.Equal(t, 0.05, charged)
	assert.Equal(t, 1, env.client.airdropCalls)
	assert.Len(t, env.client.submitted, 1)
}

func TestChargeSol_AirdropStillInsufficient(t *testing.T) {
	env := setupCharger(t, func(overrides *config.TestOverrides) {
		overrides.AirdropIfInsufficientFunds = true
	})
	env.client.balances = []uint64{0, 0}

	_, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, 1, env.client.airdropCalls)
	assert.Empty(t, env.client.submitted)
}

func TestChargeSol_SimulationFailure(t *testing.T) {
	env := setupCharger(t, nil)
	env.client.simulateErr = errors.New("rpc unavailable")

	_, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	assert.True(t, errors.Is(err, ErrSimulationFailed))
	assert.Empty(t, env.client.submitted)
}

func TestChargeSol_ConfirmationFailureIsSwallowed(t *testing.T) {
	env := setupCharger(t, nil)
	env.client.statusErr = solana.ErrSignatureNotFound

	charged, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeSol)
	require.NoError(t, err)
	assert.Equal(t, 0.05, charged)
	assert.Len(t, env.client.submitted, 1)
}

func TestChargeLabs_MissingConfig(t *testing.T) {
	env := setupCharger(t, func(overrides *config.TestOverrides) {
		overrides.LabsTokenMintAddress = ""
	})

	_, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeLabs)
	assert.True(t, errors.Is(err, ErrMissingConfig))
}

func TestChargeLabs_Success(t *testing.T) {
	env := setupCharger(t, nil)

	payerAta, err := env.payer.ToAssociatedTokenAccount(env.labsMint)
	require.NoError(t, err)
	treasuryAta, err := env.treasury.ToAssociatedTokenAccount(env.labsMint)
	require.NoError(t, err)
	env.markTokenAccountExists(payerAta, env.payer)
	env.markTokenAccountExists(treasuryAta, env.treasury)

	charged, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeLabs)
	require.NoError(t, err)

	// The fee is the raw base unit amount, unscaled
	assert.Equal(t, float64(5000), charged)

	require.Len(t, env.client.submitted, 1)
	transfer, err := token.DecompileTransfer(env.client.submitted[0].Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, payerAta.ToEd25519PublicKey(), transfer.Source)
	assert.EqualValues(t, treasuryAta.ToEd25519PublicKey(), transfer.Destination)
	assert.EqualValues(t, env.payer.ToEd25519PublicKey(), transfer.Owner)
	assert.EqualValues(t, 5000, transfer.Amount)
}

func TestChargeLabs_CreatesTreasuryTokenAccount(t *testing.T) {
	env := setupCharger(t, nil)

	payerAta, err := env.payer.ToAssociatedTokenAccount(env.labsMint)
	require.NoError(t, err)
	env.markTokenAccountExists(payerAta, env.payer)

	charged, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeLabs)
	require.NoError(t, err)
	assert.Equal(t, float64(5000), charged)

	// One transaction to create the treasury's token account, one to transfer
	require.Len(t, env.client.submitted, 2)
	_, err = token.DecompileTransfer(env.client.submitted[1].Message, 0)
	assert.NoError(t, err)
}

func TestChargeLabs_PayerTokenAccountMissing(t *testing.T) {
	env := setupCharger(t, nil)

	_, err := env.charger.Charge(context.Background(), env.payer, common.PaymentTypeLabs)
	assert.Error(t, err)
	assert.Empty(t, env.client.submitted)
}

func TestChargeLabs_InvalidTokenAccount(t *testing.T) {
	env := setupCharger(t, nil)

	payerAta, err := env.payer.ToAssociatedTokenAccount(env.labsMint)
	require.NoError(t, err)

	// Account exists but holds a different mint
	otherMint, err := common.NewRandomAccount()
	require.NoError(t, err)
	tokenAccount := token.Account{
		Mint:  otherMint.ToEd25519PublicKey(),
		Owner: env.payer.ToEd25519PublicKey(),
		State: token.AccountStateInitialized,
	}
	env.client.existingAccounts[string(payerAta.ToEd25519PublicKey())] = solana.AccountInfo{
		Owner: token.ProgramKey,
		Data:  tokenAccount.Marshal(),
	}

	_, err = env.charger.Charge(context.Background(), env.payer, common.PaymentTypeLabs)
	assert.True(t, errors.Is(err, token.ErrInvalidTokenAccount))
	assert.Empty(t, env.client.submitted)
}
