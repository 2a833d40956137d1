package orchestrator

import (
	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/stellar"
)

// ClassicAssetKey returns the balance key of a classic balance line.
// Codes may arrive base64 encoded (indexer) or as plain ASCII (ledger API).
func ClassicAssetKey(assetType, code, issuer string) string {
	if assetType == domain.AssetTypeNative {
		return domain.NativeKey
	}
	return stellar.ClassicKey(stellar.DecodeAssetCode(code), issuer)
}

// PoolShareKey returns the balance key of a liquidity pool share balance.
func PoolShareKey(poolID string) string {
	return poolID + ":lp"
}

// ContractTokenKey returns the balance key of a contract token.
//
// A Stellar Asset Contract advertises its classic asset as its name. When the
// contract id really is the asset contract of that asset on this network, the
// classic key is used so the balance collides with (and loses to) the trustline.
// Everything else is keyed symbol:contractID.
func ContractTokenKey(meta domain.TokenMetadata, contractID, passphrase string) string {
	if key, ok := stellar.SACKey(meta.Name, contractID, passphrase); ok {
		return key
	}
	return meta.Symbol + ":" + contractID
}
