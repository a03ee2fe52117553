package config

import (
	"github.com/token-lab/token-lab-server/pkg/config"
	"github.com/token-lab/token-lab-server/pkg/config/env"
	"github.com/token-lab/token-lab-server/pkg/config/memory"
	"github.com/token-lab/token-lab-server/pkg/config/wrapper"
)

const (
	SolanaPrivateKeyConfigEnvName = "SOLANA_PRIVATE_KEY"

	RpcEndpointConfigEnvName = "CUSTOM_RPC_ENDPOINT"
	defaultRpcEndpoint       = "https://api.devnet.solana.com"

	PinataBearerTokenConfigEnvName = "PINATA_BEARER_TOKEN"

	PinataApiBaseUrlConfigEnvName = "PINATA_API_BASE_URL"

	PinataGatewayUrlConfigEnvName = "PINATA_GATEWAY_URL"

	PriceApiBaseUrlConfigEnvName = "PRICE_API_BASE_URL"

	FirebaseStorageBucketConfigEnvName = "FIREBASE_STORAGE_BUCKET"

	GoogleApplicationCredentialsConfigEnvName = "GOOGLE_APPLICATION_CREDENTIALS"

	TreasuryWalletSolConfigEnvName = "TREASURY_WALLET_SOL"

	TreasuryWalletLabsConfigEnvName = "TREASURY_WALLET_LABS"

	LabsTokenMintAddressConfigEnvName = "LABS_TOKEN_MINT_ADDRESS"

	MintingFeeSolConfigEnvName = "MINTING_FEE_SOL"
	defaultMintingFeeSol       = 0.05

	MintingFeeLabsConfigEnvName = "MINTING_FEE_LABS"
	defaultMintingFeeLabs       = 5000

	AirdropIfInsufficientFundsConfigEnvName = "AIRDROP_IF_INSUFFICIENT_FUNDS"
	defaultAirdropIfInsufficientFunds       = false

	TokenDescriptionConfigEnvName = "TOKEN_DESCRIPTION"
	defaultTokenDescription       = "Created with The Token Lab"

	TokenExternalUrlConfigEnvName = "TOKEN_EXTERNAL_URL"

	ExplorerClusterConfigEnvName = "EXPLORER_CLUSTER"
	defaultExplorerCluster       = "devnet"

	PortConfigEnvName = "PORT"
	defaultPort       = 3001
)

// Config is the set of service level configuration values
type Config struct {
	SolanaPrivateKey             config.String
	RpcEndpoint                  config.String
	PinataBearerToken            config.String
	PinataApiBaseUrl             config.String
	PinataGatewayUrl             config.String
	PriceApiBaseUrl              config.String
	FirebaseStorageBucket        config.String
	GoogleApplicationCredentials config.String
	TreasuryWalletSol            config.String
	TreasuryWalletLabs           config.String
	LabsTokenMintAddress         config.String
	MintingFeeSol                config.Float64
	MintingFeeLabs               config.Uint64
	AirdropIfInsufficientFunds   config.Bool
	TokenDescription             config.String
	TokenExternalUrl             config.String
	ExplorerCluster              config.String
	Port                         config.Uint64
}

// Provider defines how config values are pulled
type Provider func() *Config

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() Provider {
	return func() *Config {
		return &Config{
			SolanaPrivateKey:             env.NewStringConfig(SolanaPrivateKeyConfigEnvName, ""),
			RpcEndpoint:                  env.NewStringConfig(RpcEndpointConfigEnvName, defaultRpcEndpoint),
			PinataBearerToken:            env.NewStringConfig(PinataBearerTokenConfigEnvName, ""),
			PinataApiBaseUrl:             env.NewStringConfig(PinataApiBaseUrlConfigEnvName, ""),
			PinataGatewayUrl:             env.NewStringConfig(PinataGatewayUrlConfigEnvName, ""),
			PriceApiBaseUrl:              env.NewStringConfig(PriceApiBaseUrlConfigEnvName, ""),
			FirebaseStorageBucket:        env.NewStringConfig(FirebaseStorageBucketConfigEnvName, ""),
			GoogleApplicationCredentials: env.NewStringConfig(GoogleApplicationCredentialsConfigEnvName, ""),
			TreasuryWalletSol:            env.NewStringConfig(TreasuryWalletSolConfigEnvName, ""),
			TreasuryWalletLabs:           env.NewStringConfig(TreasuryWalletLabsConfigEnvName, ""),
			LabsTokenMintAddress:         env.NewStringConfig(LabsTokenMintAddressConfigEnvName, ""),
			MintingFeeSol:                env.NewFloat64Config(MintingFeeSolConfigEnvName, defaultMintingFeeSol),
			MintingFeeLabs:               env.NewUint64Config(MintingFeeLabsConfigEnvName, defaultMintingFeeLabs),
			AirdropIfInsufficientFunds:   env.NewBoolConfig(AirdropIfInsufficientFundsConfigEnvName, defaultAirdropIfInsufficientFunds),
			TokenDescription:             env.NewStringConfig(TokenDescriptionConfigEnvName, defaultTokenDescription),
			TokenExternalUrl:             env.NewStringConfig(TokenExternalUrlConfigEnvName, ""),
			ExplorerCluster:              env.NewStringConfig(ExplorerClusterConfigEnvName, defaultExplorerCluster),
			Port:                         env.NewUint64Config(PortConfigEnvName, defaultPort),
		}
	}
}

// TestOverrides are config values for tests
type TestOverrides struct {
	SolanaPrivateKey           string
	TreasuryWalletSol          string
	TreasuryWalletLabs         string
	LabsTokenMintAddress       string
	MintingFeeSol              float64
	MintingFeeLabs             uint64
	AirdropIfInsufficientFunds bool
}

// WithManualTestOverrides returns configuration for tests
func WithManualTestOverrides(overrides *TestOverrides) Provider {
	return func() *Config {
		mintingFeeSol := overrides.MintingFeeSol
		if mintingFeeSol == 0 {
			mintingFeeSol = defaultMintingFeeSol
		}
		mintingFeeLabs := overrides.MintingFeeLabs
		if mintingFeeLabs == 0 {
			mintingFeeLabs = defaultMintingFeeLabs
		}

		return &Config{
			SolanaPrivateKey:             wrapper.NewStringConfig(memory.NewConfig(overrides.SolanaPrivateKey), ""),
			RpcEndpoint:                  wrapper.NewStringConfig(memory.NewConfig(defaultRpcEndpoint), defaultRpcEndpoint),
			PinataBearerToken:            wrapper.NewStringConfig(memory.NewConfig("test-jwt"), ""),
			PinataApiBaseUrl:             wrapper.NewStringConfig(memory.NewConfig(""), ""),
			PinataGatewayUrl:             wrapper.NewStringConfig(memory.NewConfig(""), ""),
			PriceApiBaseUrl:              wrapper.NewStringConfig(memory.NewConfig(""), ""),
			FirebaseStorageBucket:        wrapper.NewStringConfig(memory.NewConfig("test-bucket"), ""),
			GoogleApplicationCredentials: wrapper.NewStringConfig(memory.NewConfig(""), ""),
			TreasuryWalletSol:            wrapper.NewStringConfig(memory.NewConfig(overrides.TreasuryWalletSol), ""),
			TreasuryWalletLabs:           wrapper.NewStringConfig(memory.NewConfig(overrides.TreasuryWalletLabs), ""),
			LabsTokenMintAddress:         wrapper.NewStringConfig(memory.NewConfig(overrides.LabsTokenMintAddress), ""),
			MintingFeeSol:                wrapper.NewFloat64Config(memory.NewConfig(mintingFeeSol), defaultMintingFeeSol),
			MintingFeeLabs:               wrapper.NewUint64Config(memory.NewConfig(mintingFeeLabs), defaultMintingFeeLabs),
			AirdropIfInsufficientFunds:   wrapper.NewBoolConfig(memory.NewConfig(overrides.AirdropIfInsufficientFunds), defaultAirdropIfInsufficientFunds),
			TokenDescription:             wrapper.NewStringConfig(memory.NewConfig(defaultTokenDescription), defaultTokenDescription),
			TokenExternalUrl:             wrapper.NewStringConfig(memory.NewConfig(""), ""),
			ExplorerCluster:              wrapper.NewStringConfig(memory.NewConfig(defaultExplorerCluster), defaultExplorerCluster),
			Port:                         wrapper.NewUint64Config(memory.NewConfig(uint64(defaultPort)), defaultPort),
		}
	}
}
