package handler

import (
	"net/http"
	"strconv"

	"github.com/BarryBaker/GG/internal/config"
	"github.com/BarryBaker/GG/internal/service"
	"github.com/BarryBaker/GG/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	maxRowLimit    = 100
	maxColumnLimit = 50
	maxTopLimit    = 200
)

type LeaderboardHandler struct {
	service service.LeaderboardService
	cfg     *config.Config
}

func NewLeaderboardHandler(service service.LeaderboardService, cfg *config.Config) *LeaderboardHandler {
	return &LeaderboardHandler{service: service, cfg: cfg}
}

func (h *LeaderboardHandler) GetLeaderboards(c *gin.Context) {
	prefix := c.Query("prefix")

	names, err := h.service.ListLeaderboards(c.Request.Context(), prefix)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboards": names})
}

func (h *LeaderboardHandler) GetLeaderboardView(c *gin.Context) {
	name := c.Param("name")
	rows := clampedQueryInt(c, "rows", h.cfg.ViewRowLimit, maxRowLimit)
	cols := clampedQueryInt(c, "cols", h.cfg.ViewColumnLimit, maxColumnLimit)

	view, err := h.service.GetLeaderboardView(c.Request.Context(), name, rows, cols)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *LeaderboardHandler) GetPlayerHistory(c *gin.Context) {
	name := c.Param("name")
	player := c.Param("player")

	history, err := h.service.GetPlayerHistory(c.Request.Context(), name, player)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *LeaderboardHandler) GetTopPlayers(c *gin.Context) {
	name := c.Param("name")
	limit := clampedQueryInt(c, "limit", h.cfg.TopPlayersLimit, maxTopLimit)

	cutoff := h.cfg.DailyCutoff
	if raw := c.Query("cutoff"); raw != "" {
		parsed, err := config.ParseClock(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cutoff must be HH:MM"})
			return
		}
		cutoff = parsed
	}

	players, err := h.service.GetTopPlayers(c.Request.Context(), name, limit, cutoff)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"players": players})
}

func (h *LeaderboardHandler) GetLastUpdate(c *gin.Context) {
	marker, err := h.service.LastUpdateMarker(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"last_update": marker})
}

func (h *LeaderboardHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func clampedQueryInt(c *gin.Context, key string, fallback, max int) int {
	value, _ := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if value < 1 {
		value = fallback
	}
	if value > max {
		value = max
	}
	return value
}
