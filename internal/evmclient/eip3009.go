// Package evmclient talks to a single EVM chain on behalf of the
// stablecoin payment rail: EIP-3009 signature recovery, balance and
// nonce-state reads, simulated and broadcast transferWithAuthorization
// calls.
package evmclient

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/myceliasignal/slo/internal/x402types"
)

// TokenDomain names the EIP-712 domain an EIP-3009 token signs under.
// USDC's is {"USD Coin", "2"}; other EIP-3009 tokens vary.
type TokenDomain struct {
	Name    string
	Version string
}

var transferWithAuthorizationTypeHash = crypto.Keccak256Hash(
	[]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"),
)

// EIP3009Digest computes the EIP-712 signing digest for a
// transferWithAuthorization call, per EIP-3009 §4 / EIP-712.
func EIP3009Digest(domain TokenDomain, chainID *big.Int, tokenAddress string, auth x402types.EIP3009Authorization) ([]byte, error) {
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return nil, fmt.Errorf("evmclient: invalid value %q", auth.Value)
	}
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("evmclient: invalid validAfter %q", auth.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return nil, fmt.Errorf("evmclient: invalid validBefore %q", auth.ValidBefore)
	}
	nonce, err := hexToBytes32(auth.Nonce)
	if err != nil {
		return nil, fmt.Errorf("evmclient: invalid nonce: %w", err)
	}

	domainSeparator := crypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
		crypto.Keccak256([]byte(domain.Name)),
		crypto.Keccak256([]byte(domain.Version)),
		leftPadBig(chainID, 32),
		leftPadAddress(tokenAddress),
	)

	structHash := crypto.Keccak256(
		transferWithAuthorizationTypeHash.Bytes(),
		leftPadAddress(auth.From),
		leftPadAddress(auth.To),
		leftPadBig(value, 32),
		leftPadBig(validAfter, 32),
		leftPadBig(validBefore, 32),
		nonce[:],
	)

	return crypto.Keccak256([]byte("\x19\x01"), domainSeparator, structHash), nil
}

// RecoverEIP3009Signer recovers the address that produced sigHex over the
// authorization's EIP-712 digest.
func RecoverEIP3009Signer(domain TokenDomain, chainID *big.Int, tokenAddress string, auth x402types.EIP3009Authorization, sigHex string) (string, error) {
	digest, err := EIP3009Digest(domain, chainID, tokenAddress, auth)
	if err != nil {
		return "", err
	}

	v, r, s, err := SplitSignature(sigHex)
	if err != nil {
		return "", err
	}
	sig := make([]byte, 65)
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("evmclient: signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// SplitSignature decodes a 65-byte r||s||v signature and normalizes v to
// the 0/1 convention go-ethereum's SigToPub expects.
func SplitSignature(sigHex string) (v uint8, r [32]byte, s [32]byte, err error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return 0, r, s, fmt.Errorf("evmclient: bad signature hex: %w", err)
	}
	if len(raw) != 65 {
		return 0, r, s, fmt.Errorf("evmclient: signature must be 65 bytes, got %d", len(raw))
	}
	copy(r[:], raw[0:32])
	copy(s[:], raw[32:64])
	v = raw[64]
	if v >= 27 {
		v -= 27
	}
	return v, r, s, nil
}

// NonceBytes32 decodes an EIP-3009 authorization nonce (hex bytes32) for
// use as an authorizationState() call argument.
func NonceBytes32(s string) ([32]byte, error) {
	return hexToBytes32(s)
}

func hexToBytes32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func leftPadBig(n *big.Int, size int) []byte {
	b := n.Bytes()
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}

func leftPadAddress(addr string) []byte {
	a := common.HexToAddress(addr)
	return append(make([]byte, 12), a.Bytes()...)
}
