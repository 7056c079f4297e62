package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"playsync/internal/hub"
	"playsync/internal/middleware"
)

// DeviceHandler serves the REST read of the caller's device list. The same
// data is pushed over the websocket; this is the late-join convenience.
type DeviceHandler struct {
	hub *hub.Hub
}

func NewDeviceHandler(h *hub.Hub) *DeviceHandler {
	return &DeviceHandler{hub: h}
}

func (h *DeviceHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	c.JSON(http.StatusOK, h.hub.GetConnectedDevices(userID))
}
