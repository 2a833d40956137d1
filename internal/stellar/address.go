// Package stellar contains the boundary clients for the ledger API (Horizon), the contract
// RPC (Soroban) and the indexer (Mercury), plus address and asset helpers shared by them.
package stellar

import (
	"fmt"

	"github.com/stellar/go/strkey"

	"stellar-wallet-core/internal/domain"
)

// ValidatePublicKey checks that s is a well-formed G... account id.
// Account creation does not check the curve, so off-curve keys are accepted.
func ValidatePublicKey(s string) error {
	if _, err := strkey.Decode(strkey.VersionByteAccountID, s); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPublicKey, err)
	}
	return nil
}

// IsAccountID reports whether s is a valid G... account id.
func IsAccountID(s string) bool {
	return ValidatePublicKey(s) == nil
}

// IsContractID reports whether s is a valid C... contract id.
func IsContractID(s string) bool {
	_, err := strkey.Decode(strkey.VersionByteContract, s)
	return err == nil
}
