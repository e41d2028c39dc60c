package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/providentia/internal/chat"
	"github.com/suPer8Hu/providentia/internal/common"
	"github.com/suPer8Hu/providentia/internal/httpapi/middleware"
	"github.com/suPer8Hu/providentia/internal/rag"
)

type chatReq struct {
	Question string `json:"question" binding:"required"`
}

// Chat runs the full pipeline. Credential verification happens inside
// the orchestrator (stage one), so this route carries no auth
// middleware; the handler only ships the raw bearer string through.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "question is required")
		return
	}

	resp, err := h.Orch.Handle(c.Request.Context(), chat.Request{
		Credential: middleware.BearerToken(c),
		Question:   req.Question,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		writeAbort(c, err)
		return
	}

	common.OK(c, gin.H{
		"interaction_id": resp.InteractionID,
		"answer":         resp.Answer,
		"source_context": resp.Context,
		"generated_at":   resp.GeneratedAt,
	})
}

// writeAbort maps pipeline reason codes to HTTP statuses. Only the code
// and a safe message go out; upstream detail stays in the logs.
func writeAbort(c *gin.Context, err error) {
	var a *chat.Abort
	if !errors.As(err, &a) {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	switch a.Reason {
	case chat.ReasonInvalidQuestion:
		common.Fail(c, http.StatusBadRequest, 10002, "question must be non-empty and at most 1000 characters")
	case chat.ReasonUnauthenticated:
		c.Header("WWW-Authenticate", "Bearer")
		common.Fail(c, http.StatusUnauthorized, 40101, "invalid authentication credentials")
	case chat.ReasonRateLimited:
		seconds := int64(math.Ceil(a.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.FormatInt(seconds, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":        42901,
			"message":     "rate limit exceeded, please try again later",
			"retry_after": seconds,
			"data":        nil,
		})
	case chat.ReasonRetrievalUnavailable:
		common.Fail(c, http.StatusBadGateway, 50201, "context retrieval unavailable")
	case chat.ReasonGenerationUnavailable:
		common.Fail(c, http.StatusServiceUnavailable, 50301, "answer generation unavailable")
	case chat.ReasonTimeout:
		common.Fail(c, http.StatusGatewayTimeout, 50401, "request timed out")
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

type historyItem struct {
	InteractionID string        `json:"interaction_id"`
	Question      string        `json:"question"`
	Answer        string        `json:"answer"`
	SourceContext []rag.Passage `json:"source_context"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (h *Handler) History(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, err := h.Repo.ListInteractions(c.Request.Context(), uid, limit, offset)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load chat history")
		return
	}

	items := make([]historyItem, 0, len(rows))
	for _, row := range rows {
		passages, err := row.Context()
		if err != nil {
			// old or hand-edited rows should not break the whole page
			passages = []rag.Passage{}
		}
		items = append(items, historyItem{
			InteractionID: row.InteractionID,
			Question:      row.Question,
			Answer:        row.Answer,
			SourceContext: passages,
			CreatedAt:     row.CreatedAt,
		})
	}

	common.OK(c, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *Handler) Stats(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	s, err := h.Repo.StatsForUser(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to load stats")
		return
	}
	common.OK(c, s)
}
