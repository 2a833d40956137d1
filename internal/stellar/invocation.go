package stellar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// ErrBuilderUsed is returned when an InvocationBuilder is asked for a second operation.
var ErrBuilderUsed = errors.New("invocation builder already used")

// XDR discriminants used to assemble addresses.
const (
	scvAddress        = 18
	scAddressAccount  = 0
	scAddressContract = 1
	publicKeyEd25519  = 0
	invocationBaseFee = txnbuild.MinBaseFee
)

// InvocationBuilder assembles exactly one contract invocation per simulated transaction.
type InvocationBuilder struct {
	source   string
	sequence int64
	used     bool
}

// NewInvocationBuilder creates a builder for a source account at a given sequence.
func NewInvocationBuilder(source string, sequence int64) *InvocationBuilder {
	return &InvocationBuilder{source: source, sequence: sequence}
}

// Build returns the base64 envelope of a transaction invoking fn on contractID.
func (b *InvocationBuilder) Build(contractID, fn string, args ...xdr.ScVal) (string, error) {
	if b.used {
		return "", ErrBuilderUsed
	}
	b.used = true

	contract, err := ContractAddress(contractID)
	if err != nil {
		return "", err
	}

	op := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contract,
				FunctionName:    xdr.ScSymbol(fn),
				Args:            args,
			},
		},
		SourceAccount: b.source,
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: b.source, Sequence: b.sequence},
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              invocationBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	if err != nil {
		return "", fmt.Errorf("build %s invocation: %w", fn, err)
	}
	return tx.Base64()
}

// ContractAddress converts a C... contract id into an ScAddress.
func ContractAddress(contractID string) (xdr.ScAddress, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, contractID)
	if err != nil {
		return xdr.ScAddress{}, fmt.Errorf("decode contract id %s: %w", contractID, err)
	}
	buf := make([]byte, 0, 36)
	buf = binary.BigEndian.AppendUint32(buf, scAddressContract)
	buf = append(buf, raw...)

	var addr xdr.ScAddress
	if err := xdr.SafeUnmarshal(buf, &addr); err != nil {
		return xdr.ScAddress{}, fmt.Errorf("unmarshal contract address: %w", err)
	}
	return addr, nil
}

// AddressArg converts a G... account id or C... contract id into an ScVal argument.
func AddressArg(address string) (xdr.ScVal, error) {
	buf := make([]byte, 0, 44)
	buf = binary.BigEndian.AppendUint32(buf, scvAddress)

	if raw, err := strkey.Decode(strkey.VersionByteAccountID, address); err == nil {
		buf = binary.BigEndian.AppendUint32(buf, scAddressAccount)
		buf = binary.BigEndian.AppendUint32(buf, publicKeyEd25519)
		buf = append(buf, raw...)
	} else if raw, err := strkey.Decode(strkey.VersionByteContract, address); err == nil {
		buf = binary.BigEndian.AppendUint32(buf, scAddressContract)
		buf = append(buf, raw...)
	} else {
		return xdr.ScVal{}, fmt.Errorf("unsupported address %q", address)
	}

	var val xdr.ScVal
	if err := xdr.SafeUnmarshal(buf, &val); err != nil {
		return xdr.ScVal{}, fmt.Errorf("unmarshal address value: %w", err)
	}
	return val, nil
}

// SymbolArg returns a symbol ScVal.
func SymbolArg(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

// EncodeScVal returns the base64 XDR of a value.
func EncodeScVal(v xdr.ScVal) (string, error) {
	return xdr.MarshalBase64(v)
}

// BalanceKeyXDR returns the SEP-41 balance ledger key value Vec[Symbol("Balance"), Address].
func BalanceKeyXDR(address string) (string, error) {
	addr, err := AddressArg(address)
	if err != nil {
		return "", err
	}
	vec := xdr.ScVec{SymbolArg("Balance"), addr}
	pvec := &vec
	return EncodeScVal(xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &pvec})
}

// DecodeScVal decodes a base64 ScVal.
func DecodeScVal(b64 string) (xdr.ScVal, error) {
	var v xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(b64, &v); err != nil {
		return xdr.ScVal{}, fmt.Errorf("decode scval: %w", err)
	}
	return v, nil
}

// ScValString reads a string or symbol value.
func ScValString(v xdr.ScVal) (string, error) {
	switch {
	case v.Type == xdr.ScValTypeScvString && v.Str != nil:
		return string(*v.Str), nil
	case v.Type == xdr.ScValTypeScvSymbol && v.Sym != nil:
		return string(*v.Sym), nil
	default:
		return "", fmt.Errorf("expected string value, got %s", v.Type)
	}
}

// ScValUint reads an unsigned 32 or 64 bit value.
func ScValUint(v xdr.ScVal) (uint64, error) {
	switch {
	case v.Type == xdr.ScValTypeScvU32 && v.U32 != nil:
		return uint64(*v.U32), nil
	case v.Type == xdr.ScValTypeScvU64 && v.U64 != nil:
		return uint64(*v.U64), nil
	default:
		return 0, fmt.Errorf("expected unsigned value, got %s", v.Type)
	}
}

// ScValAmount reads an i128 amount, either bare or as the "amount" member of a balance map.
func ScValAmount(v xdr.ScVal) (*big.Int, error) {
	if v.Type == xdr.ScValTypeScvI128 && v.I128 != nil {
		return int128ToBig(*v.I128), nil
	}
	if m, ok := v.GetMap(); ok && m != nil {
		for _, e := range *m {
			if e.Key.Type == xdr.ScValTypeScvSymbol && e.Key.Sym != nil && string(*e.Key.Sym) == "amount" {
				return ScValAmount(e.Val)
			}
		}
		return nil, fmt.Errorf("balance map has no amount")
	}
	return nil, fmt.Errorf("expected i128 value, got %s", v.Type)
}

// I128Arg builds an i128 value. Used by tests and stubs.
func I128Arg(n *big.Int) xdr.ScVal {
	lo := new(big.Int).And(n, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(n, 64)
	parts := xdr.Int128Parts{Hi: xdr.Int64(hi.Int64()), Lo: xdr.Uint64(lo.Uint64())}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}
}

func int128ToBig(p xdr.Int128Parts) *big.Int {
	n := big.NewInt(int64(p.Hi))
	n.Lsh(n, 64)
	return n.Add(n, new(big.Int).SetUint64(uint64(p.Lo)))
}

// StringArg builds a string value.
func StringArg(s string) xdr.ScVal {
	str := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}
}

// U32Arg builds an unsigned 32 bit value.
func U32Arg(n uint32) xdr.ScVal {
	u := xdr.Uint32(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}
