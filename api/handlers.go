package api

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/defistate/ammquote-go/quoter"
	"github.com/gin-gonic/gin"
)

// Quote modes accepted by GET /api/v1/quote.
const (
	ModeExactIn  = "exact_in"
	ModeExactOut = "exact_out"
)

func parseAmount(v, name string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer, got %q", name, v)
	}
	return amount, nil
}

type quoteHandler struct {
	server *Server
}

func (h *quoteHandler) Root() string { return "quote" }

func (h *quoteHandler) SetRoutes(g *gin.RouterGroup) {
	g.GET("", h.getQuote)
}

type quoteParams struct {
	TokenIn     string  `form:"tokenIn" binding:"required"`
	TokenOut    string  `form:"tokenOut" binding:"required"`
	Amount      string  `form:"amount" binding:"required"`
	Mode        string  `form:"mode"`
	SlippageBps *uint16 `form:"slippageBps"`
}

func (h *quoteHandler) getQuote(c *gin.Context) {
	var p quoteParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	amount, err := parseAmount(p.Amount, "amount")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	req := quoter.QuoteRequest{TokenIn: p.TokenIn, TokenOut: p.TokenOut, Amount: amount, SlippageBps: p.SlippageBps}
	switch strings.ToLower(p.Mode) {
	case "", ModeExactIn:
		q, err := h.server.quoter.QuoteExactIn(c.Request.Context(), req)
		h.server.respond(c, q, err)
	case ModeExactOut:
		q, err := h.server.quoter.QuoteExactOut(c.Request.Context(), req)
		h.server.respond(c, q, err)
	default:
		badRequest(c, fmt.Sprintf("mode must be %s or %s", ModeExactIn, ModeExactOut))
	}
}

type zapHandler struct {
	server *Server
}

func (h *zapHandler) Root() string { return "zap" }

func (h *zapHandler) SetRoutes(g *gin.RouterGroup) {
	g.GET("", h.getZap)
}

type zapParams struct {
	TokenIn     string  `form:"tokenIn" binding:"required"`
	TokenOther  string  `form:"tokenOther" binding:"required"`
	Amount      string  `form:"amount" binding:"required"`
	PoolID      uint64  `form:"poolId"`
	SplitBps    *uint16 `form:"splitBps"`
	Optimal     bool    `form:"optimal"`
	PriceSource string  `form:"priceSource"`
	SlippageBps *uint16 `form:"slippageBps"`
}

func (h *zapHandler) getZap(c *gin.Context) {
	var p zapParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	amount, err := parseAmount(p.Amount, "amount")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	preview, err := h.server.quoter.PreviewZap(c.Request.Context(), quoter.ZapRequest{
		TokenIn:     p.TokenIn,
		TokenOther:  p.TokenOther,
		Amount:      amount,
		PoolID:      p.PoolID,
		SplitBps:    p.SplitBps,
		Optimal:     p.Optimal,
		PriceSource: p.PriceSource,
		SlippageBps: p.SlippageBps,
	})
	h.server.respond(c, preview, err)
}

type liquidityHandler struct {
	server *Server
}

func (h *liquidityHandler) Root() string { return "liquidity" }

func (h *liquidityHandler) SetRoutes(g *gin.RouterGroup) {
	g.GET("/add", h.getAdd)
	g.GET("/remove", h.getRemove)
}

type addLiquidityParams struct {
	TokenA      string  `form:"tokenA" binding:"required"`
	TokenB      string  `form:"tokenB" binding:"required"`
	AmountA     string  `form:"amountA" binding:"required"`
	AmountB     string  `form:"amountB" binding:"required"`
	PoolID      uint64  `form:"poolId"`
	SlippageBps *uint16 `form:"slippageBps"`
}

func (h *liquidityHandler) getAdd(c *gin.Context) {
	var p addLiquidityParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	amountA, err := parseAmount(p.AmountA, "amountA")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	amountB, err := parseAmount(p.AmountB, "amountB")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	preview, err := h.server.quoter.PreviewAddLiquidity(c.Request.Context(), quoter.AddLiquidityRequest{
		TokenA:      p.TokenA,
		TokenB:      p.TokenB,
		AmountA:     amountA,
		AmountB:     amountB,
		PoolID:      p.PoolID,
		SlippageBps: p.SlippageBps,
	})
	h.server.respond(c, preview, err)
}

type removeLiquidityParams struct {
	TokenA      string  `form:"tokenA" binding:"required"`
	TokenB      string  `form:"tokenB" binding:"required"`
	Shares      string  `form:"shares" binding:"required"`
	PoolID      uint64  `form:"poolId"`
	SlippageBps *uint16 `form:"slippageBps"`
}

func (h *liquidityHandler) getRemove(c *gin.Context) {
	var p removeLiquidityParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	shares, err := parseAmount(p.Shares, "shares")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	preview, err := h.server.quoter.PreviewRemoveLiquidity(c.Request.Context(), quoter.RemoveLiquidityRequest{
		TokenA:      p.TokenA,
		TokenB:      p.TokenB,
		Shares:      shares,
		PoolID:      p.PoolID,
		SlippageBps: p.SlippageBps,
	})
	h.server.respond(c, preview, err)
}

type slippageHandler struct {
	server *Server
}

func (h *slippageHandler) Root() string { return "slippage" }

func (h *slippageHandler) SetRoutes(g *gin.RouterGroup) {
	g.GET("/presets", h.getPresets)
}

type presetsResponse struct {
	DefaultBps uint16   `json:"defaultBps"`
	Presets    []uint16 `json:"presets"`
}

func (h *slippageHandler) getPresets(c *gin.Context) {
	d := h.server.quoter.Defaults()
	success(c, presetsResponse{DefaultBps: d.SlippageBps, Presets: d.SlippagePresets})
}
