// Package wallet checks EIP-191 personal_sign signatures.
package wallet

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/smallbiznis/guildgate/internal/domain"
)

const personalPrefix = "\x19Ethereum Signed Message:\n"

// HashPersonalMessage returns the keccak-256 digest wallets sign for personal_sign.
func HashPersonalMessage(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(personalPrefix + strconv.Itoa(len(message)) + message))
	return h.Sum(nil)
}

// NormalizeAddress lower-cases a 0x-prefixed 20 byte hex address.
func NormalizeAddress(address string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		return "", fmt.Errorf("%w: malformed wallet address", domain.ErrInvalidRequest)
	}
	if _, err := hex.DecodeString(addr[2:]); err != nil {
		return "", fmt.Errorf("%w: malformed wallet address", domain.ErrInvalidRequest)
	}
	return addr, nil
}

// RecoverAddress returns the address that produced signature over message.
// signature is the 65 byte r||s||v hex string wallets return.
func RecoverAddress(message, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil || len(sig) != 65 {
		return "", fmt.Errorf("%w: malformed signature", domain.ErrInvalidSignature)
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", fmt.Errorf("%w: bad recovery id", domain.ErrInvalidSignature)
	}

	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, HashPersonalMessage(message))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	return "0x" + hex.EncodeToString(h.Sum(nil)[12:]), nil
}

// VerifyPersonalSign reports ErrInvalidSignature unless address signed message.
func VerifyPersonalSign(address, message, signature string) error {
	want, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	got, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: signer does not match wallet", domain.ErrInvalidSignature)
	}
	return nil
}
