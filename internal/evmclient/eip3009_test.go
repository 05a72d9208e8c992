package evmclient

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myceliasignal/slo/internal/x402types"
)

var usdcDomain = TokenDomain{Name: "USD Coin", Version: "2"}

func testAuth(from, to string) x402types.EIP3009Authorization {
	return x402types.EIP3009Authorization{
		From:        from,
		To:          to,
		Value:       "1000000",
		ValidAfter:  "0",
		ValidBefore: "4102444800", // year 2100
		Nonce:       "0x" + hex.EncodeToString(make([]byte, 32)),
	}
}

func TestRecoverEIP3009Signer_RecoversSignerAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	auth := testAuth(signerAddr, "0x00000000000000000000000000000000000002")
	chainID := big.NewInt(8453)

	digest, err := EIP3009Digest(usdcDomain, chainID, "0x00000000000000000000000000000000000003", auth)
	require.NoError(t, err)

	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sigHex := "0x" + hex.EncodeToString(sig)

	recovered, err := RecoverEIP3009Signer(usdcDomain, chainID, "0x00000000000000000000000000000000000003", auth, sigHex)
	require.NoError(t, err)
	assert.Equal(t, signerAddr, recovered)
}

func TestRecoverEIP3009Signer_WrongDomainProducesDifferentSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	auth := testAuth(signerAddr, "0x00000000000000000000000000000000000002")
	chainID := big.NewInt(8453)
	token := "0x00000000000000000000000000000000000003"

	digest, err := EIP3009Digest(usdcDomain, chainID, token, auth)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sigHex := "0x" + hex.EncodeToString(sig)

	wrongChain := big.NewInt(1)
	recovered, err := RecoverEIP3009Signer(usdcDomain, wrongChain, token, auth, sigHex)
	require.NoError(t, err)
	assert.NotEqual(t, signerAddr, recovered)
}

func TestSplitSignature_NormalizesVTo0Or1(t *testing.T) {
	raw := make([]byte, 65)
	raw[64] = 28
	v, _, _, err := SplitSignature("0x" + hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v)
}

func TestSplitSignature_RejectsWrongLength(t *testing.T) {
	_, _, _, err := SplitSignature("0x1234")
	assert.Error(t, err)
}
