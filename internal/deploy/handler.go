package deploy

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/asset"
	"github.com/0gfoundation/0g-mint-engine/internal/auth"
	"github.com/0gfoundation/0g-mint-engine/internal/manifest"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
)

const ActionTenant = "tenant"

type tenantRequest struct {
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	MaxSupply uint64 `json:"max_supply"`
	CoverURI  string `json:"cover_uri"`
}

// Handler serves the manifest, tenant views and tenant creation.
type Handler struct {
	stack *Stack
	rdb   *redis.Client
	log   *zap.Logger
}

func NewHandler(s *Stack, rdb *redis.Client, log *zap.Logger) *Handler {
	return &Handler{stack: s, rdb: rdb, log: log}
}

// RegisterPublic mounts the read-only routes.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/contracts", h.handleContracts)
	rg.GET("/assets/:address", h.handleAsset)
}

// Register mounts the authenticated routes. authMiddleware should already
// be applied to rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/tenant", auth.RequireAction(ActionTenant), h.handleTenant)
}

func (h *Handler) handleContracts(c *gin.Context) {
	entries, err := manifest.All(c.Request.Context(), h.rdb)
	if err != nil {
		h.log.Error("read manifest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		row := gin.H{"name": e.Name, "address": e.Address.Hex(), "block": e.Block}
		if e.Implementation != (common.Address{}) {
			row["implementation"] = e.Implementation.Hex()
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, gin.H{"contracts": out})
}

func (h *Handler) handleAsset(c *gin.Context) {
	addr := c.Param("address")
	if !common.IsHexAddress(addr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}
	a, ok := h.stack.Asset(common.HexToAddress(addr))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	var resp gin.H
	h.stack.Ledger().View(func() {
		active, price := a.PublicSale()
		resp = gin.H{
			"address":        a.Address().Hex(),
			"implementation": a.Implementation().Hex(),
			"name":           a.Name(),
			"symbol":         a.Symbol(),
			"owner":          a.Owner().Hex(),
			"signer":         a.Signer().Hex(),
			"total_supply":   a.TotalSupply(),
			"max_supply":     a.MaxSupply(),
			"public_sale":    active,
			"base_price":     price.String(),
			"sale_ended":     a.SaleEnded(),
			"revealed":       a.Revealed(),
		}
	})
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleTenant(c *gin.Context) {
	wallet, _ := auth.WalletFrom(c)
	req, _ := auth.SignedRequestFrom(c)
	var body tenantRequest
	if req == nil || json.Unmarshal(req.Payload, &body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	a, err := h.stack.Tenant(c.Request.Context(), wallet, asset.Config{
		Name:      body.Name,
		Symbol:    body.Symbol,
		MaxSupply: body.MaxSupply,
		CoverURI:  body.CoverURI,
	})
	if err != nil {
		if code := revert.CodeOf(err); code != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": code})
			return
		}
		h.log.Error("create tenant", zap.String("owner", wallet.Hex()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": a.Address().Hex(), "owner": wallet.Hex()})
}
