package signer

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// DigestMessage builds the per-digit message SHA256(event_id/digit_index/digit)
// spec §4.3 hashes into the challenge scalar e_i. Exported so the scheduler
// and tests can reconstruct it without re-deriving the format.
func DigestMessage(eventID string, digitIndex, digit int) []byte {
	s := fmt.Sprintf("%s/%d/%d", eventID, digitIndex, digit)
	h := sha256.Sum256([]byte(s))
	return h[:]
}

// GenerateNonce produces one per-digit nonce commitment: a fresh scalar k
// and its public point R = k*G, compressed. Callers must persist k under a
// single-use discipline keyed by (event_id, digit_index) and consume it
// exactly once at attestation; reusing k across two attestations leaks the
// oracle's private scalar.
func GenerateNonce() (k []byte, rPoint []byte, err error) {
	nonceKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("schnorr: generate nonce: %w", err)
	}
	kBytes := nonceKey.Serialize()
	defer zero(kBytes)
	out := make([]byte, 32)
	copy(out, kBytes)
	return out, nonceKey.PubKey().SerializeCompressed(), nil
}

// AttestDigit releases s_i = k_i + e_i*x mod N for one digit position, where
// x is the oracle's private scalar and e_i = DigestMessage(...) reduced mod
// the group order. k must be the nonce scalar committed to at announcement
// for this exact (event_id, digit_index); the caller is responsible for
// zeroing and discarding it immediately after this call.
func AttestDigit(eventID string, digitIndex, digit int, k []byte, oraclePriv *secp256k1.PrivateKey) ([]byte, error) {
	if len(k) != 32 {
		return nil, fmt.Errorf("schnorr: nonce scalar must be 32 bytes, got %d", len(k))
	}

	var kScalar secp256k1.ModNScalar
	if overflow := kScalar.SetByteSlice(k); overflow {
		return nil, fmt.Errorf("schnorr: nonce scalar out of range")
	}

	var e secp256k1.ModNScalar
	e.SetByteSlice(DigestMessage(eventID, digitIndex, digit))

	ex := new(secp256k1.ModNScalar).Set(&e)
	ex.Mul(&oraclePriv.Key)

	s := new(secp256k1.ModNScalar).Set(&kScalar)
	s.Add(ex)

	sBytes := s.Bytes()
	return sBytes[:], nil
}

// VerifyDigit checks s_i*G == R_i + e_i*P for one digit position, where P is
// the oracle's public key. Used to self-check freshly produced attestations
// and by consumers validating a published attestation.
func VerifyDigit(eventID string, digitIndex, digit int, sBytes, rPoint, oraclePub []byte) (bool, error) {
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sBytes); overflow {
		return false, fmt.Errorf("schnorr: s value out of range")
	}

	var sG secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s, &sG)
	sG.ToAffine()

	rPub, err := secp256k1.ParsePubKey(rPoint)
	if err != nil {
		return false, fmt.Errorf("schnorr: parse R point: %w", err)
	}
	var rJac secp256k1.JacobianPoint
	rPub.AsJacobian(&rJac)

	oPub, err := secp256k1.ParsePubKey(oraclePub)
	if err != nil {
		return false, fmt.Errorf("schnorr: parse oracle pubkey: %w", err)
	}
	var pJac secp256k1.JacobianPoint
	oPub.AsJacobian(&pJac)

	var e secp256k1.ModNScalar
	e.SetByteSlice(DigestMessage(eventID, digitIndex, digit))

	var eP secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&e, &pJac, &eP)

	var sum secp256k1.JacobianPoint
	secp256k1.AddNonConst(&rJac, &eP, &sum)
	sum.ToAffine()

	return sG.X.Equals(&sum.X) && sG.Y.Equals(&sum.Y), nil
}

// zero overwrites a nonce scalar's backing bytes. Best-effort: Go provides
// no guarantee against compiler reordering, but this mirrors the
// attestor's "delete immediately after use" discipline at the byte level.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
