package eip712

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	domainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))
	payloadTypeHash = crypto.Keccak256Hash([]byte(
		"Payload(address sender,string topic,uint256 nonce)",
	))
	ticketTypeHash = crypto.Keccak256Hash([]byte(
		"Ticket(address beneficiary,address asset,uint256 unitPrice,uint256 quantity,uint256 groupId)",
	))
)

var (
	ErrSignatureLength = errors.New("invalid signature length")
	ErrMalleable       = errors.New("signature values out of range")
	ErrFieldRange      = errors.New("uint256 field negative or wider than 256 bits")
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Separator computes the EIP-712 domain separator.
func (d Domain) Separator() [32]byte {
	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))

	// ABI-encode: (bytes32, bytes32, bytes32, uint256, address)
	encoded := make([]byte, 5*32)
	copy(encoded[0:32], domainTypeHash[:])
	copy(encoded[32:64], nameHash[:])
	copy(encoded[64:96], versionHash[:])
	putUint256(encoded[96:128], d.ChainID)
	copy(encoded[140:160], d.VerifyingContract.Bytes()) // addr is right-aligned in 32-byte slot

	return crypto.Keccak256Hash(encoded)
}

// PayloadHash returns the digest a trusted signer signs for p.
func PayloadHash(p *Payload, d Domain) [32]byte {
	topicHash := crypto.Keccak256Hash([]byte(p.Topic))

	encoded := make([]byte, 4*32)
	copy(encoded[0:32], payloadTypeHash[:])
	copy(encoded[44:64], p.Sender.Bytes())
	copy(encoded[64:96], topicHash[:])
	putUint256(encoded[96:128], p.Nonce)

	return digest(d, crypto.Keccak256Hash(encoded))
}

// TicketHash returns the digest for t with its group replaced by groupID.
// Validators pass the group they expect, so a ticket presented to another
// group yields a different digest.
func TicketHash(t *Ticket, groupID *big.Int, d Domain) [32]byte {
	encoded := make([]byte, 6*32)
	copy(encoded[0:32], ticketTypeHash[:])
	copy(encoded[44:64], t.Beneficiary.Bytes())
	copy(encoded[76:96], t.Asset.Bytes())
	putUint256(encoded[96:128], t.UnitPrice)
	putUint256(encoded[128:160], t.Quantity)
	putUint256(encoded[160:192], groupID)

	return digest(d, crypto.Keccak256Hash(encoded))
}

// SignPayload signs p in place.
func SignPayload(p *Payload, privKey *ecdsa.PrivateKey, d Domain) error {
	if !inUint256(p.Nonce) {
		return fmt.Errorf("sign payload: %w", ErrFieldRange)
	}
	h := PayloadHash(p, d)
	sig, err := sign(h, privKey)
	if err != nil {
		return fmt.Errorf("sign payload: %w", err)
	}
	p.Signature = sig
	return nil
}

// RecoverPayload returns the address that signed p under d.
func RecoverPayload(p *Payload, d Domain) (common.Address, error) {
	if !inUint256(p.Nonce) {
		return common.Address{}, ErrFieldRange
	}
	return Recover(PayloadHash(p, d), p.Signature)
}

// SignTicket signs t in place over its own group id.
func SignTicket(t *Ticket, privKey *ecdsa.PrivateKey, d Domain) error {
	if !ticketInRange(t, t.GroupID) {
		return fmt.Errorf("sign ticket: %w", ErrFieldRange)
	}
	h := TicketHash(t, t.GroupID, d)
	sig, err := sign(h, privKey)
	if err != nil {
		return fmt.Errorf("sign ticket: %w", err)
	}
	t.Signature = sig
	return nil
}

// RecoverTicket returns the address that signed t for groupID under d.
func RecoverTicket(t *Ticket, groupID *big.Int, d Domain) (common.Address, error) {
	if !ticketInRange(t, groupID) {
		return common.Address{}, ErrFieldRange
	}
	return Recover(TicketHash(t, groupID, d), t.Signature)
}

// Recover extracts the signer of a 32-byte digest. sig must be 65 bytes
// (R || S || V) with V in {0,1} or {27,28}; high-S signatures are rejected.
func Recover(h [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, ErrSignatureLength
	}
	sigCopy := make([]byte, 65)
	copy(sigCopy, sig)
	if sigCopy[64] >= 27 {
		sigCopy[64] -= 27
	}
	r := new(big.Int).SetBytes(sigCopy[0:32])
	s := new(big.Int).SetBytes(sigCopy[32:64])
	if !crypto.ValidateSignatureValues(sigCopy[64], r, s, true) {
		return common.Address{}, ErrMalleable
	}
	pub, err := crypto.SigToPub(h[:], sigCopy)
	if err != nil {
		return common.Address{}, fmt.Errorf("ecrecover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Canonical returns sig with V in {27,28}. Recover accepts both encodings,
// so anything keyed by a signature must key on this form.
func Canonical(sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if len(out) == 65 && out[64] < 27 {
		out[64] += 27
	}
	return out
}

func sign(h [32]byte, privKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(h[:], privKey)
	if err != nil {
		return nil, err
	}
	// Convert V from 0/1 to 27/28 for Solidity ecrecover
	sig[64] += 27
	return sig, nil
}

// digest is keccak256(0x1901 || domainSeparator || structHash).
func digest(d Domain, structHash common.Hash) [32]byte {
	sep := d.Separator()
	msg := make([]byte, 2+32+32)
	msg[0] = 0x19
	msg[1] = 0x01
	copy(msg[2:34], sep[:])
	copy(msg[34:66], structHash[:])
	return crypto.Keccak256Hash(msg)
}

func ticketInRange(t *Ticket, groupID *big.Int) bool {
	return inUint256(t.UnitPrice) && inUint256(t.Quantity) && inUint256(groupID)
}

// inUint256 reports whether n encodes losslessly as a uint256. nil is zero.
func inUint256(n *big.Int) bool {
	return n == nil || (n.Sign() >= 0 && n.Cmp(maxUint256) <= 0)
}

// putUint256 writes n big-endian into a 32-byte slot; nil encodes as zero.
// Out-of-range values are rejected by the sign and recover paths before
// they reach here; the hashes alone truncate to the low 32 bytes.
func putUint256(dst []byte, n *big.Int) {
	if n == nil {
		return
	}
	b := n.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(dst[32-len(b):], b)
}
