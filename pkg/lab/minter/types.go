package minter

// MintRequest is a validated-on-entry request to mint a new token. It is
// immutable once validated and discarded after the response is sent.
type MintRequest struct {
	TokenName        string
	TokenSymbol      string
	RequesterAddress string
	Quantity         uint64
	Decimals         int
	PaymentType      string
	ImageReference   string

	RevokeMintAuthority   bool
	RevokeFreezeAuthority bool
	RevokeUpdateAuthority bool
}

// MintResult is returned to the caller on a fully successful mint. Nothing is
// persisted server-side.
type MintResult struct {
	MintAddress         string
	TokenAccount        string
	MetadataTransaction string
	MetadataUrl         string
	ExplorerLink        string
	TotalCharged        float64
	ActionsPerformed    []string
}
