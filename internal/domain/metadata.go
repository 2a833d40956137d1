package domain

// TokenMetadata is the immutable on-chain metadata of a contract token.
// Corresponds to token_metadata table in PostgreSQL.
type TokenMetadata struct {
	Name     string `json:"name"` // SAC tokens advertise "CODE:ISSUER" or "native"
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// TokenDetails is cached metadata plus an optional, never cached, balance.
type TokenDetails struct {
	TokenMetadata
	Balance *string `json:"balance,omitempty"` // raw integer amount in the token's smallest unit
}
