package lightning

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRootKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func testPreimage(t *testing.T) (preimage, hash []byte) {
	t.Helper()
	preimage = make([]byte, 32)
	_, err := rand.Read(preimage)
	require.NoError(t, err)
	h := sha256.Sum256(preimage)
	return preimage, h[:]
}

func TestMinter_MintThenVerifyRoundTrips(t *testing.T) {
	m := NewMinter(testRootKey(t), "slo")
	preimage, hash := testPreimage(t)

	mac, err := m.Mint(hash)
	require.NoError(t, err)

	encoded, err := mac.MarshalBinary()
	require.NoError(t, err)
	authHeader := fmt.Sprintf("L402 %s:%s", base64.StdEncoding.EncodeToString(encoded), hex.EncodeToString(preimage))

	gotHash, gotPreimage, err := m.Verify(authHeader)
	require.NoError(t, err)
	assert.Equal(t, hash, gotHash)
	assert.Equal(t, preimage, gotPreimage)
}

func TestMinter_VerifyAcceptsLegacyLSATScheme(t *testing.T) {
	m := NewMinter(testRootKey(t), "slo")
	_, hash := testPreimage(t)

	mac, err := m.Mint(hash)
	require.NoError(t, err)
	encoded, err := mac.MarshalBinary()
	require.NoError(t, err)

	authHeader := fmt.Sprintf("LSAT %s:%s", base64.StdEncoding.EncodeToString(encoded), hex.EncodeToString(make([]byte, 32)))
	_, _, err = m.Verify(authHeader)
	require.NoError(t, err)
}

func TestMinter_VerifyRejectsWrongRootKey(t *testing.T) {
	m := NewMinter(testRootKey(t), "slo")
	_, hash := testPreimage(t)

	mac, err := m.Mint(hash)
	require.NoError(t, err)
	encoded, err := mac.MarshalBinary()
	require.NoError(t, err)
	authHeader := fmt.Sprintf("L402 %s:%s", base64.StdEncoding.EncodeToString(encoded), hex.EncodeToString(make([]byte, 32)))

	other := NewMinter(testRootKey(t), "slo")
	_, _, err = other.Verify(authHeader)
	assert.Error(t, err)
}

func TestMinter_VerifyRejectsMalformedHeader(t *testing.T) {
	m := NewMinter(testRootKey(t), "slo")

	_, _, err := m.Verify("Bearer sometoken")
	assert.Error(t, err)

	_, _, err = m.Verify("L402 not-a-valid-pair")
	assert.Error(t, err)

	_, _, err = m.Verify("L402 !!!invalid-base64!!!:deadbeef")
	assert.Error(t, err)
}

func TestMinter_VerifyRejectsTamperedMacaroon(t *testing.T) {
	m := NewMinter(testRootKey(t), "slo")
	_, hash := testPreimage(t)

	mac, err := m.Mint(hash)
	require.NoError(t, err)
	encoded, err := mac.MarshalBinary()
	require.NoError(t, err)
	encoded[len(encoded)-1] ^= 0xFF

	authHeader := fmt.Sprintf("L402 %s:%s", base64.StdEncoding.EncodeToString(encoded), hex.EncodeToString(make([]byte, 32)))
	_, _, err = m.Verify(authHeader)
	assert.Error(t, err)
}

func TestGateway_AdmitAcceptsMatchingPreimage(t *testing.T) {
	minter := NewMinter(testRootKey(t), "slo")
	gw := NewGateway(nil, minter)
	preimage, hash := testPreimage(t)

	mac, err := minter.Mint(hash)
	require.NoError(t, err)
	encoded, err := mac.MarshalBinary()
	require.NoError(t, err)
	authHeader := fmt.Sprintf("L402 %s:%s", base64.StdEncoding.EncodeToString(encoded), hex.EncodeToString(preimage))

	oracleErr, err := gw.Admit(authHeader)
	require.NoError(t, err)
	assert.Nil(t, oracleErr)
}

func TestGateway_AdmitRejectsPreimageNotMatchingHash(t *testing.T) {
	minter := NewMinter(testRootKey(t), "slo")
	gw := NewGateway(nil, minter)
	_, hash := testPreimage(t)
	wrongPreimage, _ := testPreimage(t)

	mac, err := minter.Mint(hash)
	require.NoError(t, err)
	encoded, err := mac.MarshalBinary()
	require.NoError(t, err)
	authHeader := fmt.Sprintf("L402 %s:%s", base64.StdEncoding.EncodeToString(encoded), hex.EncodeToString(wrongPreimage))

	oracleErr, err := gw.Admit(authHeader)
	require.NoError(t, err)
	require.NotNil(t, oracleErr)
	assert.Equal(t, "token_invalid", string(oracleErr.Code))
}

func TestGateway_AdmitRejectsUnparseableHeader(t *testing.T) {
	gw := NewGateway(nil, NewMinter(testRootKey(t), "slo"))

	oracleErr, err := gw.Admit("")
	require.NoError(t, err)
	require.NotNil(t, oracleErr)
}

func TestChallenge_WWWAuthenticateFormatsMacaroonAndInvoice(t *testing.T) {
	c := Challenge{Macaroon: "bWFj", Invoice: "lnbc1..."}
	assert.Equal(t, `L402 macaroon="bWFj", invoice="lnbc1..."`, c.WWWAuthenticate())
}
