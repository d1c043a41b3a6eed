package http

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/internal/modules/randomness"
	"github.com/frankieli/raffle_engine/pkg/auth"
	"github.com/frankieli/raffle_engine/pkg/logger"
	"github.com/frankieli/raffle_engine/pkg/service"
)

// RaffleUseCase is what the HTTP surface needs from the raffle module.
type RaffleUseCase interface {
	Enter(ctx context.Context, participant string, stake int64) (*domain.EntryReceipt, error)
	GetRound(ctx context.Context) domain.RoundView
	GetParticipant(ctx context.Context, index int) (string, error)
	CheckUpkeep(ctx context.Context) domain.UpkeepStatus
	PerformUpkeep(ctx context.Context) (string, error)
	Fulfill(ctx context.Context, requestID string, words []*big.Int) (*domain.WinnerAnnouncement, error)
	ListDraws(ctx context.Context, limit int) ([]*domain.DrawRecord, error)
	GetDraw(ctx context.Context, requestID string) (*domain.DrawRecord, error)
}

// Handler serves the raffle REST API.
type Handler struct {
	uc     RaffleUseCase
	wallet service.WalletService
	issuer *auth.Issuer
}

// NewHandler creates the handler. wallet may be nil. With an issuer, entries
// need a player token and the fulfillment callback a provider token; without
// one, entries name their participant in the body and the callback is not
// mounted.
func NewHandler(uc RaffleUseCase, wallet service.WalletService, issuer *auth.Issuer) *Handler {
	return &Handler{uc: uc, wallet: wallet, issuer: issuer}
}

// RegisterRoutes mounts the API on router (normally /api/raffle).
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("", h.GetRound)
	if h.issuer != nil {
		router.POST("/entries", h.issuer.RequireRole(auth.RolePlayer), h.Enter)
	} else {
		router.POST("/entries", h.Enter)
	}
	router.GET("/participants/:index", h.GetParticipant)
	router.GET("/upkeep", h.CheckUpkeep)
	router.POST("/upkeep", h.PerformUpkeep)
	router.GET("/draws", h.ListDraws)
	router.GET("/draws/:request_id", h.GetDraw)
	if h.wallet != nil {
		router.GET("/balances/:account", h.GetBalance)
	}
	if h.issuer != nil {
		router.POST("/fulfillments", h.issuer.RequireRole(auth.RoleProvider), h.Fulfill)
	}
}

type enterRequest struct {
	Participant string `json:"participant"` // must match the token subject when set
	Stake       int64  `json:"stake"`
}

type fulfillRequest struct {
	RequestID   string   `json:"request_id" binding:"required"`
	RandomWords []string `json:"random_words"`
}

type upkeepResponse struct {
	UpkeepNeeded bool                `json:"upkeep_needed"`
	Status       domain.UpkeepStatus `json:"status"`
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, domain.ErrInvalidParticipant),
		errors.Is(err, domain.ErrParticipantIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOpenForEntry),
		errors.Is(err, domain.ErrUpkeepNotNeeded),
		errors.Is(err, domain.ErrDrawAlreadyInProgress),
		errors.Is(err, domain.ErrStakeOverflow):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownRequest),
		errors.Is(err, domain.ErrDrawNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRandomness),
		errors.Is(err, randomness.ErrInvalidWord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransferFailed),
		errors.Is(err, domain.ErrRandomnessRequestFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var notNeeded *domain.UpkeepNotNeededError
	if errors.As(err, &notNeeded) {
		body["balance"] = notNeeded.Balance
		body["participants"] = notNeeded.Participants
		body["state"] = notNeeded.State
	}
	c.JSON(status, body)
}

func (h *Handler) Enter(c *gin.Context) {
	ctx := c.Request.Context()
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn(ctx).Err(err).Msg("Enter: invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant := req.Participant
	if sub, ok := auth.Subject(c); ok {
		if participant != "" && participant != sub {
			c.JSON(http.StatusForbidden, gin.H{"error": "participant does not match token subject"})
			return
		}
		participant = sub
	}

	receipt, err := h.uc.Enter(ctx, participant, req.Stake)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) GetRound(c *gin.Context) {
	c.JSON(http.StatusOK, h.uc.GetRound(c.Request.Context()))
}

func (h *Handler) GetParticipant(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	participant, err := h.uc.GetParticipant(c.Request.Context(), index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index, "participant": participant})
}

func (h *Handler) CheckUpkeep(c *gin.Context) {
	status := h.uc.CheckUpkeep(c.Request.Context())
	c.JSON(http.StatusOK, upkeepResponse{UpkeepNeeded: status.Needed, Status: status})
}

func (h *Handler) PerformUpkeep(c *gin.Context) {
	requestID, err := h.uc.PerformUpkeep(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": requestID})
}

// Fulfill is the randomness provider's callback.
func (h *Handler) Fulfill(c *gin.Context) {
	ctx := c.Request.Context()
	var req fulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn(ctx).Err(err).Msg("Fulfill: invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	words, err := randomness.ParseWords(req.RandomWords)
	if err != nil {
		abortWithError(c, err)
		return
	}

	logger.Info(ctx).
		Str("provider", c.GetString(auth.ContextSubject)).
		Str("request_id", req.RequestID).
		Msg("Fulfill: callback received")

	announcement, err := h.uc.Fulfill(ctx, req.RequestID, words)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, announcement)
}

func (h *Handler) ListDraws(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	draws, err := h.uc.ListDraws(c.Request.Context(), limit)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Msg("ListDraws: failed")
		abortWithError(c, err)
		return
	}
	if draws == nil {
		draws = []*domain.DrawRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"draws": draws})
}

func (h *Handler) GetDraw(c *gin.Context) {
	draw, err := h.uc.GetDraw(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, draw)
}

func (h *Handler) GetBalance(c *gin.Context) {
	account := c.Param("account")
	balance, err := h.wallet.GetBalance(c.Request.Context(), account)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Str("account", account).Msg("GetBalance: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "balance": balance})
}
