package eip712

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Domain is the EIP-712 domain a signature is bound to.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           *big.Int       `json:"chain_id"`
	VerifyingContract common.Address `json:"verifying_contract"`
}

// Payload authorizes Sender to perform Topic at sequence Nonce.
type Payload struct {
	Sender    common.Address `json:"sender"`
	Topic     string         `json:"topic"`
	Nonce     *big.Int       `json:"nonce"`
	Signature hexutil.Bytes  `json:"signature"`
}

// Ticket is a signed entitlement for Beneficiary to mint up to Quantity
// units of Asset at UnitPrice within GroupID.
type Ticket struct {
	Beneficiary common.Address `json:"beneficiary"`
	Asset       common.Address `json:"asset"`
	UnitPrice   *big.Int       `json:"unit_price"`
	Quantity    *big.Int       `json:"quantity"`
	GroupID     *big.Int       `json:"group_id"`
	Signature   hexutil.Bytes  `json:"signature"`
}

// Domain names and version shared with the off-chain signer.
const (
	PayloadDomainName = "Mint Payload"
	TicketDomainName  = "Mint Ticket"
	DomainVersion     = "1"
)

// PayloadDomain returns the payload domain for an asset contract.
func PayloadDomain(chainID *big.Int, asset common.Address) Domain {
	return Domain{Name: PayloadDomainName, Version: DomainVersion, ChainID: chainID, VerifyingContract: asset}
}

// TicketDomain returns the ticket domain for a ticket manager.
func TicketDomain(chainID *big.Int, manager common.Address) Domain {
	return Domain{Name: TicketDomainName, Version: DomainVersion, ChainID: chainID, VerifyingContract: manager}
}
