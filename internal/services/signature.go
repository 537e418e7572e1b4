// internal/services/signature.go
package services

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/licenseforge/royalty-backend/internal/models"
)

// SignatureVerifier recovers the signer identity from a signature over a
// 32-byte digest.
type SignatureVerifier interface {
	Recover(digest [32]byte, signature []byte) (models.Address, error)
}

// Secp256k1Verifier verifies compact secp256k1 signatures: 65 bytes with the
// recovery code first, then r and s. The recovered identity is the last 20
// bytes of the Keccak-256 of the uncompressed public key.
type Secp256k1Verifier struct{}

func (Secp256k1Verifier) Recover(digest [32]byte, signature []byte) (models.Address, error) {
	if len(signature) != 65 {
		return "", fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrInvalidSignature, len(signature))
	}

	pubKey, _, err := secpecdsa.RecoverCompact(signature, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return PublicKeyAddress(pubKey), nil
}

// PublicKeyAddress derives the 20-byte hex identity of a public key.
func PublicKeyAddress(pubKey *secp256k1.PublicKey) models.Address {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(pubKey.SerializeUncompressed()[1:])
	sum := hasher.Sum(nil)
	return models.NormalizeAddress(fmt.Sprintf("0x%x", sum[12:]))
}

// SubmissionDigest computes the canonical hash a licensee signs when
// submitting an application. The salt lets a licensee submit multiple
// otherwise-identical applications with distinct digests.
func SubmissionDigest(caller models.Address, licenseHash string, terms, reporting *uint256.Int, modifications, salt []byte) [32]byte {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(caller))
	hasher.Write([]byte(licenseHash))
	termsBytes := terms.Bytes32()
	reportingBytes := reporting.Bytes32()
	hasher.Write(termsBytes[:])
	hasher.Write(reportingBytes[:])
	hasher.Write(modifications)
	hasher.Write(salt)

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}
