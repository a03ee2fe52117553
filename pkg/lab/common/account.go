package common

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/token-lab/token-lab-server/pkg/solana/token"
)

// Account is a Solana account. The private key is only set for accounts the
// service can sign for.
type Account struct {
	publicKey  *Key
	privateKey *Key // Optional
}

func NewAccountFromPublicKey(publicKey *Key) (*Account, error) {
	account := &Account{
		publicKey: publicKey,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func NewAccountFromPublicKeyBytes(publicKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(publicKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPublicKey(key)
}

func NewAccountFromPublicKeyString(publicKey string) (*Account, error) {
	key, err := NewKeyFromString(publicKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPublicKey(key)
}

func NewAccountFromPrivateKey(privateKey *Key) (*Account, error) {
	publicKeyBytes := ed25519.PrivateKey(privateKey.ToBytes()).Public().(ed25519.PublicKey)
	publicKey, err := NewKeyFromBytes(publicKeyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "error creating public key from private key")
	}

	account := &Account{
		publicKey:  publicKey,
		privateKey: privateKey,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func NewAccountFromPrivateKeyBytes(privateKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(privateKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPrivateKey(key)
}

func NewAccountFromPrivateKeyString(privateKey string) (*Account, error) {
	key, err := NewKeyFromString(privateKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPrivateKey(key)
}

func NewRandomAccount() (*Account, error) {
	key, err := NewRandomKey()
	if err != nil {
		return nil, err
	}

	return NewAccountFromPrivateKey(key)
}

func (a *Account) PublicKey() *Key {
	return a.publicKey
}

// PrivateKey returns the account's private key, or an error if the service
// cannot sign for the account.
func (a *Account) PrivateKey() (*Key, error) {
	if a.privateKey == nil {
		return nil, errors.New("account doesn't have a private key")
	}
	return a.privateKey, nil
}

func (a *Account) ToEd25519PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a.publicKey.ToBytes())
}

func (a *Account) ToEd25519PrivateKey() (ed25519.PrivateKey, error) {
	privateKey, err := a.PrivateKey()
	if err != nil {
		return nil, err
	}
	return ed25519.PrivateKey(privateKey.ToBytes()), nil
}

// ToAssociatedTokenAccount derives the account's associated token account
// for the provided mint.
func (a *Account) ToAssociatedTokenAccount(mint *Account) (*Account, error) {
	ata, err := token.GetAssociatedAccount(a.ToEd25519PublicKey(), mint.ToEd25519PublicKey())
	if err != nil {
		return nil, errors.Wrap(err, "error deriving associated token account")
	}

	return NewAccountFromPublicKeyBytes(ata)
}

func (a *Account) Validate() error {
	if a == nil {
		return errors.New("account is nil")
	}

	if err := a.publicKey.Validate(); err != nil {
		return errors.Wrap(err, "error validating public key")
	}
	if !a.publicKey.IsPublic() {
		return errors.New("public key value isn't a public key")
	}

	if a.privateKey == nil {
		return nil
	}

	if err := a.privateKey.Validate(); err != nil {
		return errors.Wrap(err, "error validating private key")
	}
	if a.privateKey.IsPublic() {
		return errors.New("private key value isn't a private key")
	}

	derived := ed25519.PrivateKey(a.privateKey.ToBytes()).Public().(ed25519.PublicKey)
	if !bytes.Equal(a.publicKey.ToBytes(), derived) {
		return errors.New("private key doesn't map to public key")
	}

	return nil
}
