package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"playsync/internal/middleware"
	"playsync/internal/transport/ws"
)

func NewRouter(
	gateway *ws.Gateway,
	channelHandler *ChannelHandler,
	deviceHandler *DeviceHandler,
	healthHandler *HealthHandler,
	limiter *middleware.RateLimiter,
	accessSecret string,
) *gin.Engine {
	r := gin.Default()

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(config))

	r.GET("/healthz", healthHandler.Check)

	auth := middleware.AuthMiddleware(accessSecret)

	r.GET("/ws", auth, gateway.Handle)

	api := r.Group("/api/v1")
	api.Use(auth)
	{
		api.GET("/devices", deviceHandler.List)

		channels := api.Group("/channels/:id")
		channels.Use(limiter.Limit("channel", 30, 1*time.Minute))
		{
			channels.POST("/join", channelHandler.Join)
			channels.POST("/leave", channelHandler.Leave)
			channels.POST("/play", channelHandler.Play)
			channels.POST("/queue", channelHandler.Queue)
			channels.POST("/pause", channelHandler.Pause)
			channels.POST("/resume", channelHandler.Resume)
			channels.POST("/skip", channelHandler.Skip)
			channels.POST("/volume", channelHandler.Volume)
			channels.GET("/status", channelHandler.Status)
		}
	}

	return r
}
