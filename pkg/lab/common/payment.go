package common

import (
	"strings"

	"github.com/pkg/errors"
)

// PaymentType selects the asset a minting fee is charged in.
type PaymentType uint8

const (
	PaymentTypeUnknown PaymentType = iota
	PaymentTypeSol
	PaymentTypeLabs
)

var ErrInvalidPaymentType = errors.New("invalid payment type")

// ParsePaymentType maps the wire values onto a PaymentType. Both the short
// asset names and the legacy enum values are accepted.
func ParsePaymentType(value string) (PaymentType, error) {
	switch strings.ToUpper(value) {
	case "SOL", "NATIVE":
		return PaymentTypeSol, nil
	case "LABS", "FEE_TOKEN":
		return PaymentTypeLabs, nil
	}
	return PaymentTypeUnknown, ErrInvalidPaymentType
}

func (t PaymentType) String() string {
	switch t {
	case PaymentTypeSol:
		return "SOL"
	case PaymentTypeLabs:
		return "LABS"
	}
	return "unknown"
}
