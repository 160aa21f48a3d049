// Package crypto implements the ownership-binding commitment scheme that
// links a hedge position to its owner wallet without storing the owner
// address in the clear.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// bindingSecret is an application-wide constant, not a per-user secret.
// The scheme is a deterministic commitment: any party who knows a candidate
// address can verify a match. Its privacy guarantee is only that the stored
// record does not itself reveal the owner. Do not strengthen this into a
// capability token without revisiting that model.
const bindingSecret = "hedgecore-binding-v1"

// NormalizeAddress validates a hex wallet address and returns it lowercased.
// A malformed address yields domain.ErrInvalidAddress.
func NormalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("crypto: %q: %w", addr, domain.ErrInvalidAddress)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// BindingHash returns the deterministic commitment binding owner to the
// given position: H("zk-binding:" + lower(owner) + ":" + positionID + ":" + secret).
func BindingHash(owner, positionID string) (string, error) {
	norm, err := NormalizeAddress(owner)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte("zk-binding:" + norm + ":" + positionID + ":" + bindingSecret))
	return hex.EncodeToString(sum[:]), nil
}

// OwnerCommitment returns the owner commitment for a position created at the
// given time: H("owner-commitment:" + lower(owner) + ":" + creation unix).
func OwnerCommitment(owner string, createdAt time.Time) (string, error) {
	norm, err := NormalizeAddress(owner)
	if err != nil {
		return "", err
	}
	ts := strconv.FormatInt(createdAt.UTC().Unix(), 10)
	sum := sha256.Sum256([]byte("owner-commitment:" + norm + ":" + ts))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyOwnership recomputes the binding hash for the candidate address and
// compares it against the stored hash in constant time. An invalid candidate
// address simply fails verification.
func VerifyOwnership(candidate, positionID, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	computed, err := BindingHash(candidate, positionID)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
