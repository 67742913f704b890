package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0gfoundation/0g-mint-engine/internal/eip712"
)

// HashMessage constructs the EIP-191 prefixed hash:
// keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg)
func HashMessage(msg []byte) common.Hash {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256Hash([]byte(prefix), msg)
}

// Recover extracts the signer address from an EIP-191 personal_sign
// signature. Same rules as typed-data signatures: 65 bytes, V in {0,1} or
// {27,28}, low S only.
func Recover(msg []byte, sig []byte) (common.Address, error) {
	return eip712.Recover(HashMessage(msg), sig)
}
