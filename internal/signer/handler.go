package signer

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/auth"
	"github.com/0gfoundation/0g-mint-engine/internal/eip712"
)

// Signed actions accepted by the handler.
const (
	ActionPayload   = "payload"
	ActionTicket    = "ticket"
	ActionIssue     = "issue_ticket"
	ActionAllowlist = "allowlist"
	ActionTickets   = "tickets"
)

type payloadRequest struct {
	Topic string `json:"topic"`
	Group uint64 `json:"group"`
}

type ticketRequest struct {
	Group uint64 `json:"group"`
}

type issueRequest struct {
	Beneficiary string `json:"beneficiary"`
	UnitPrice   string `json:"unit_price"`
	Quantity    uint64 `json:"quantity"`
	Group       uint64 `json:"group"`
}

type allowlistRequest struct {
	Addresses []string `json:"addresses"`
	Remove    bool     `json:"remove"`
}

// Handler exposes the signer over HTTP. Every route expects the auth
// middleware to have run; the signed request's asset selects the contract.
type Handler struct {
	signer *Signer
	admin  common.Address
	log    *zap.Logger
}

// NewHandler returns a handler; admin is the only wallet allowed to issue
// tickets, edit allowlists and read the ticket log.
func NewHandler(s *Signer, admin common.Address, log *zap.Logger) *Handler {
	return &Handler{signer: s, admin: admin, log: log}
}

// Register mounts the routes. authMiddleware should already be applied to rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/payload", auth.RequireAction(ActionPayload), h.handlePayload)
	rg.POST("/ticket", auth.RequireAction(ActionTicket), h.handleTicket)
	rg.POST("/ticket/issue", auth.RequireAction(ActionIssue), h.onlyAdmin, h.handleIssue)
	rg.POST("/allowlist", auth.RequireAction(ActionAllowlist), h.onlyAdmin, h.handleAllowlist)
	rg.POST("/tickets", auth.RequireAction(ActionTickets), h.onlyAdmin, h.handleTickets)
}

// Info is unauthenticated: clients need the signer and ticket manager
// addresses to build domains.
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"signer":         h.signer.Address().Hex(),
		"ticket_manager": h.signer.TicketManager().Hex(),
		"chain_id":       h.signer.chainID.String(),
	})
}

func (h *Handler) onlyAdmin(c *gin.Context) {
	wallet, _ := auth.WalletFrom(c)
	if wallet != h.admin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}
	c.Next()
}

// request returns the authenticated wallet, the target asset and the inner
// payload decoded into v.
func (h *Handler) request(c *gin.Context, v any) (common.Address, common.Address, bool) {
	wallet, _ := auth.WalletFrom(c)
	req, ok := auth.SignedRequestFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return common.Address{}, common.Address{}, false
	}
	if !common.IsHexAddress(req.Asset) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset"})
		return common.Address{}, common.Address{}, false
	}
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return common.Address{}, common.Address{}, false
		}
	}
	return wallet, common.HexToAddress(req.Asset), true
}

func (h *Handler) handlePayload(c *gin.Context) {
	var body payloadRequest
	wallet, assetAddr, ok := h.request(c, &body)
	if !ok {
		return
	}
	p, err := h.signer.IssuePayload(c.Request.Context(), assetAddr, wallet, body.Topic, body.Group)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// handleTicket returns the caller's own ticket for a group.
func (h *Handler) handleTicket(c *gin.Context) {
	var body ticketRequest
	wallet, assetAddr, ok := h.request(c, &body)
	if !ok {
		return
	}
	t, err := h.signer.Ticket(c.Request.Context(), assetAddr, wallet, body.Group)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) handleIssue(c *gin.Context) {
	var body issueRequest
	_, assetAddr, ok := h.request(c, &body)
	if !ok {
		return
	}
	if !common.IsHexAddress(body.Beneficiary) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid beneficiary"})
		return
	}
	price := new(big.Int)
	if body.UnitPrice != "" {
		if _, ok := price.SetString(body.UnitPrice, 10); !ok || price.Sign() < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit_price"})
			return
		}
	}
	t, err := h.signer.IssueTicket(c.Request.Context(), assetAddr, common.HexToAddress(body.Beneficiary), price, body.Quantity, body.Group)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) handleAllowlist(c *gin.Context) {
	var body allowlistRequest
	_, assetAddr, ok := h.request(c, &body)
	if !ok {
		return
	}
	addrs := make([]common.Address, 0, len(body.Addresses))
	for _, a := range body.Addresses {
		if !common.IsHexAddress(a) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address: " + a})
			return
		}
		addrs = append(addrs, common.HexToAddress(a))
	}
	var err error
	if body.Remove {
		err = h.signer.Disallow(c.Request.Context(), assetAddr, addrs...)
	} else {
		err = h.signer.Allow(c.Request.Context(), assetAddr, addrs...)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(addrs)})
}

func (h *Handler) handleTickets(c *gin.Context) {
	var body struct{}
	_, assetAddr, ok := h.request(c, &body)
	if !ok {
		return
	}
	tickets, err := h.signer.Tickets(c.Request.Context(), assetAddr)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotAllowlisted):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnknownTopic), errors.Is(err, ErrInvalidQuantity), errors.Is(err, eip712.ErrFieldRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrTicketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrTicketExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error("signer request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
