// Package signer is the off-chain authority holding the key that assets and
// the ticket manager trust. It issues payloads and tickets and keeps the
// ticket allowlist and issuance log in Redis.
package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/asset"
	"github.com/0gfoundation/0g-mint-engine/internal/eip712"
)

const (
	allowlistKeyFmt = "signer:allowlist:%s" // asset (lowercase hex)
	ticketLogKeyFmt = "signer:tickets:%s"   // asset (lowercase hex)
	issuedKeyFmt    = "signer:issued:%s:%s" // asset, topic
	ticketKeyFmt    = "signer:ticket:%s:%s:%d" // asset, beneficiary, group
)

var (
	ErrUnknownTopic    = errors.New("unknown topic")
	ErrNotAllowlisted  = errors.New("beneficiary not allow-listed")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrTicketExists    = errors.New("ticket already issued for this group")
	ErrTicketNotFound  = errors.New("no ticket issued")
)

// Signer signs payloads and tickets with the trusted key.
type Signer struct {
	privKey       *ecdsa.PrivateKey
	addr          common.Address
	chainID       *big.Int
	ticketManager common.Address
	rdb           *redis.Client
	log           *zap.Logger
}

// New parses keyHex (with or without 0x). ticketManager is the contract
// tickets are bound to.
func New(keyHex string, chainID *big.Int, ticketManager common.Address, rdb *redis.Client, log *zap.Logger) (*Signer, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return &Signer{
		privKey:       privKey,
		addr:          crypto.PubkeyToAddress(privKey.PublicKey),
		chainID:       new(big.Int).Set(chainID),
		ticketManager: ticketManager,
		rdb:           rdb,
		log:           log,
	}, nil
}

func (s *Signer) Address() common.Address       { return s.addr }
func (s *Signer) TicketManager() common.Address { return s.ticketManager }

// IssuePayload authorizes sender to call topic on assetAddr within group.
// The group id is the payload nonce.
func (s *Signer) IssuePayload(ctx context.Context, assetAddr, sender common.Address, topic string, group uint64) (*eip712.Payload, error) {
	if topic != asset.TopicMint && topic != asset.TopicTicket {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	p := &eip712.Payload{
		Sender: sender,
		Topic:  topic,
		Nonce:  new(big.Int).SetUint64(group),
	}
	if err := eip712.SignPayload(p, s.privKey, eip712.PayloadDomain(s.chainID, assetAddr)); err != nil {
		return nil, err
	}
	if err := s.rdb.Incr(ctx, issuedKey(assetAddr, topic)).Err(); err != nil {
		return nil, fmt.Errorf("incr issued: %w", err)
	}
	s.log.Debug("payload issued",
		zap.String("asset", assetAddr.Hex()),
		zap.String("sender", sender.Hex()),
		zap.String("topic", topic),
		zap.Uint64("group", group),
	)
	return p, nil
}

// PayloadsIssued returns how many payloads for topic were signed for assetAddr.
func (s *Signer) PayloadsIssued(ctx context.Context, assetAddr common.Address, topic string) (int64, error) {
	n, err := s.rdb.Get(ctx, issuedKey(assetAddr, topic)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// IssueTicket signs an entitlement for an allow-listed beneficiary and
// appends it to the asset's ticket log. Price and quantity are set by the
// issuing operator; a beneficiary holds at most one ticket per group.
func (s *Signer) IssueTicket(ctx context.Context, assetAddr, beneficiary common.Address, unitPrice *big.Int, quantity, group uint64) (*eip712.Ticket, error) {
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	ok, err := s.Allowed(ctx, assetAddr, beneficiary)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAllowlisted
	}
	if unitPrice == nil {
		unitPrice = new(big.Int)
	}
	t := &eip712.Ticket{
		Beneficiary: beneficiary,
		Asset:       assetAddr,
		UnitPrice:   new(big.Int).Set(unitPrice),
		Quantity:    new(big.Int).SetUint64(quantity),
		GroupID:     new(big.Int).SetUint64(group),
	}
	if err := eip712.SignTicket(t, s.privKey, eip712.TicketDomain(s.chainID, s.ticketManager)); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket: %w", err)
	}
	set, err := s.rdb.SetNX(ctx, ticketKey(assetAddr, beneficiary, group), string(raw), 0).Result()
	if err != nil {
		return nil, fmt.Errorf("store ticket: %w", err)
	}
	if !set {
		return nil, ErrTicketExists
	}
	if err := s.rdb.RPush(ctx, ticketLogKey(assetAddr), string(raw)).Err(); err != nil {
		return nil, fmt.Errorf("log ticket: %w", err)
	}
	s.log.Info("ticket issued",
		zap.String("asset", assetAddr.Hex()),
		zap.String("beneficiary", beneficiary.Hex()),
		zap.Uint64("quantity", quantity),
		zap.Uint64("group", group),
	)
	return t, nil
}

// Ticket returns the ticket issued to beneficiary for group.
func (s *Signer) Ticket(ctx context.Context, assetAddr, beneficiary common.Address, group uint64) (*eip712.Ticket, error) {
	raw, err := s.rdb.Get(ctx, ticketKey(assetAddr, beneficiary, group)).Result()
	if err == redis.Nil {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read ticket: %w", err)
	}
	var t eip712.Ticket
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &t, nil
}

// Tickets returns every ticket issued for assetAddr, oldest first.
func (s *Signer) Tickets(ctx context.Context, assetAddr common.Address) ([]eip712.Ticket, error) {
	raws, err := s.rdb.LRange(ctx, ticketLogKey(assetAddr), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read ticket log: %w", err)
	}
	out := make([]eip712.Ticket, 0, len(raws))
	for _, raw := range raws {
		var t eip712.Ticket
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			s.log.Warn("skipping corrupt ticket log entry", zap.String("raw", raw), zap.Error(err))
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Allow adds addrs to the ticket allowlist of assetAddr.
func (s *Signer) Allow(ctx context.Context, assetAddr common.Address, addrs ...common.Address) error {
	if len(addrs) == 0 {
		return nil
	}
	return s.rdb.SAdd(ctx, allowlistKey(assetAddr), members(addrs)...).Err()
}

// Disallow removes addrs from the ticket allowlist of assetAddr.
func (s *Signer) Disallow(ctx context.Context, assetAddr common.Address, addrs ...common.Address) error {
	if len(addrs) == 0 {
		return nil
	}
	return s.rdb.SRem(ctx, allowlistKey(assetAddr), members(addrs)...).Err()
}

func (s *Signer) Allowed(ctx context.Context, assetAddr, addr common.Address) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, allowlistKey(assetAddr), strings.ToLower(addr.Hex())).Result()
	if err != nil {
		return false, fmt.Errorf("check allowlist: %w", err)
	}
	return ok, nil
}

func members(addrs []common.Address) []any {
	out := make([]any, len(addrs))
	for i, a := range addrs {
		out[i] = strings.ToLower(a.Hex())
	}
	return out
}

func allowlistKey(a common.Address) string {
	return fmt.Sprintf(allowlistKeyFmt, strings.ToLower(a.Hex()))
}

func ticketLogKey(a common.Address) string {
	return fmt.Sprintf(ticketLogKeyFmt, strings.ToLower(a.Hex()))
}

func ticketKey(a, beneficiary common.Address, group uint64) string {
	return fmt.Sprintf(ticketKeyFmt, strings.ToLower(a.Hex()), strings.ToLower(beneficiary.Hex()), group)
}

func issuedKey(a common.Address, topic string) string {
	return fmt.Sprintf(issuedKeyFmt, strings.ToLower(a.Hex()), topic)
}
