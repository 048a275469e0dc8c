package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepdeck/prepdeck/internal/providers/avatar"
	"github.com/prepdeck/prepdeck/internal/providers/speechsynth"
	"github.com/prepdeck/prepdeck/internal/utils"
)

// MediaHandler exposes the optional question-delivery renders: spoken audio
// and the interviewer avatar video. Both report not_configured instead of
// failing when their provider has no API key.
type MediaHandler struct {
	speech speechsynth.Renderer
	avatar avatar.Renderer
}

func NewMediaHandler(speech speechsynth.Renderer, av avatar.Renderer) *MediaHandler {
	return &MediaHandler{speech: speech, avatar: av}
}

type RenderRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *MediaHandler) Speech(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MediaHandler.Speech", "invalid request body", err))
		return
	}

	res, err := h.speech.Render(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "MediaHandler.Speech", "speech synthesis failed", err))
		return
	}
	if res.NotConfigured {
		c.JSON(http.StatusOK, gin.H{"not_configured": true})
		return
	}

	c.Data(http.StatusOK, res.ContentType, res.Audio)
}

func (h *MediaHandler) Avatar(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MediaHandler.Avatar", "invalid request body", err))
		return
	}

	res, err := h.avatar.Render(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "MediaHandler.Avatar", "avatar render failed", err))
		return
	}
	if res.NotConfigured {
		c.JSON(http.StatusOK, gin.H{"not_configured": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"video_id":  res.VideoID,
		"video_url": res.VideoURL,
		"status":    res.Status,
	})
}
