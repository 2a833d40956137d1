package domain

import (
	"fmt"
	"strings"

	"github.com/stellar/go/network"
)

// Network selects endpoints, credentials and the network passphrase.
type Network string

const (
	NetworkPublic    Network = "PUBLIC"
	NetworkTestnet   Network = "TESTNET"
	NetworkFuturenet Network = "FUTURENET"
)

// Networks lists every supported network.
var Networks = []Network{NetworkPublic, NetworkTestnet, NetworkFuturenet}

// String returns the string representation of Network.
func (n Network) String() string {
	return string(n)
}

// IsValid checks if the network is a supported value.
func (n Network) IsValid() bool {
	return n == NetworkPublic || n == NetworkTestnet || n == NetworkFuturenet
}

// Passphrase returns the network passphrase used for contract ids and envelopes.
func (n Network) Passphrase() string {
	switch n {
	case NetworkPublic:
		return network.PublicNetworkPassphrase
	case NetworkTestnet:
		return network.TestNetworkPassphrase
	case NetworkFuturenet:
		return network.FutureNetworkPassphrase
	default:
		return ""
	}
}

// ParseNetwork parses a case-insensitive network name.
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToUpper(strings.TrimSpace(s)))
	if !n.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, s)
	}
	return n, nil
}
