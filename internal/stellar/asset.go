package stellar

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"

	"stellar-wallet-core/internal/domain"
)

// ClassicKey returns the balance key of a classic asset.
func ClassicKey(code, issuer string) string {
	if code == "" || code == domain.NativeKey {
		return domain.NativeKey
	}
	return code + ":" + issuer
}

// ParseClassicKey splits "CODE:ISSUER". The native key returns ok with empty parts.
func ParseClassicKey(key string) (code, issuer string, ok bool) {
	if key == domain.NativeKey {
		return "", "", true
	}
	code, issuer, found := strings.Cut(key, ":")
	if !found || !validAssetCode(code) || !IsAccountID(issuer) {
		return "", "", false
	}
	return code, issuer, true
}

// DecodeAssetCode recovers an asset code from its on-chain representation.
// Indexer rows carry the raw 4 or 12 byte code base64 encoded and NUL padded.
// Anything else is taken as plain ASCII.
func DecodeAssetCode(encoded string) string {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || (len(raw) != 4 && len(raw) != 12) {
		return encoded
	}
	code := string(bytes.TrimRight(raw, "\x00"))
	if !validAssetCode(code) {
		return encoded
	}
	return code
}

func validAssetCode(code string) bool {
	if len(code) == 0 || len(code) > 12 {
		return false
	}
	for _, r := range code {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// AssetType returns the ledger asset type for a classic code.
func AssetType(code string) string {
	if code == "" || code == domain.NativeKey {
		return domain.AssetTypeNative
	}
	if len(code) <= 4 {
		return domain.AssetTypeCreditAlphanum4
	}
	return domain.AssetTypeCreditAlphanum12
}

// SACContractID returns the Stellar Asset Contract id wrapping a classic asset.
func SACContractID(code, issuer, passphrase string) (string, error) {
	var asset xdr.Asset
	if code == "" || code == domain.NativeKey {
		asset = xdr.MustNewNativeAsset()
	} else {
		a, err := xdr.NewCreditAsset(code, issuer)
		if err != nil {
			return "", fmt.Errorf("build asset %s:%s: %w", code, issuer, err)
		}
		asset = a
	}

	id, err := asset.ContractID(passphrase)
	if err != nil {
		return "", fmt.Errorf("derive contract id: %w", err)
	}
	return strkey.Encode(strkey.VersionByteContract, id[:])
}

// SACKey returns the classic balance key when contractID is the asset contract of the
// classic asset named by name ("native" or "CODE:ISSUER"). Contracts that merely advertise
// a classic-looking name do not alias.
func SACKey(name, contractID, passphrase string) (string, bool) {
	code, issuer, ok := ParseClassicKey(name)
	if !ok {
		return "", false
	}
	sac, err := SACContractID(code, issuer, passphrase)
	if err != nil || sac != contractID {
		return "", false
	}
	return ClassicKey(code, issuer), true
}
