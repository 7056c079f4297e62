package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"playsync/internal/channel"
	"playsync/internal/domain"
)

// ChannelHandler exposes the channel listening session's control surface.
type ChannelHandler struct {
	manager *channel.Manager
}

func NewChannelHandler(manager *channel.Manager) *ChannelHandler {
	return &ChannelHandler{manager: manager}
}

type joinReq struct {
	// Song ids seed the queue on first join. Playlist expansion into song
	// ids happens upstream in the catalog service.
	PlaylistID string   `json:"playlist_id"`
	SongIDs    []string `json:"song_ids"`
}

type playReq struct {
	SongID string `json:"song_id" binding:"required"`
}

type queueReq struct {
	SongID string `json:"song_id" binding:"required"`
}

type volumeReq struct {
	Volume int `json:"volume" binding:"min=0,max=100"`
}

func (h *ChannelHandler) Join(c *gin.Context) {
	var req joinReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	status, err := h.manager.Join(c, c.Param("id"), req.SongIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *ChannelHandler) Leave(c *gin.Context) {
	if err := h.manager.Leave(c, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChannelHandler) Play(c *gin.Context) {
	var req playReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func() (channel.Status, error) {
		return h.manager.PlaySong(c, c.Param("id"), req.SongID)
	})
}

func (h *ChannelHandler) Queue(c *gin.Context) {
	var req queueReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func() (channel.Status, error) {
		return h.manager.AddToQueue(c, c.Param("id"), req.SongID)
	})
}

func (h *ChannelHandler) Pause(c *gin.Context) {
	h.respond(c, func() (channel.Status, error) {
		return h.manager.Pause(c, c.Param("id"))
	})
}

func (h *ChannelHandler) Resume(c *gin.Context) {
	h.respond(c, func() (channel.Status, error) {
		return h.manager.Resume(c, c.Param("id"))
	})
}

func (h *ChannelHandler) Skip(c *gin.Context) {
	h.respond(c, func() (channel.Status, error) {
		return h.manager.Skip(c, c.Param("id"))
	})
}

func (h *ChannelHandler) Volume(c *gin.Context) {
	var req volumeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func() (channel.Status, error) {
		return h.manager.SetVolume(c, c.Param("id"), req.Volume)
	})
}

func (h *ChannelHandler) Status(c *gin.Context) {
	status, err := h.manager.Status(c, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *ChannelHandler) respond(c *gin.Context, op func() (channel.Status, error)) {
	status, err := op()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *ChannelHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrChannelSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
