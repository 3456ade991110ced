package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chathistory-server/internal/config"
	"chathistory-server/internal/interfaces/httpserver/routes/v1/conversation"
)

type V1Route struct {
	conversation *conversation.ConversationRoute
	message      *conversation.MessageRoute
}

func NewV1Route(
	conversation *conversation.ConversationRoute,
	message *conversation.MessageRoute,
) *V1Route {
	return &V1Route{
		conversation,
		message,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")

	v1Route.conversation.RegisterRouter(v1Router)
	v1Route.message.RegisterRouter(v1Router)
}

// RegisterPublicRouter registers endpoints that do not require authentication.
func (v1Route *V1Route) RegisterPublicRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)
	v1Router.GET("/healthz", GetHealthz)
	v1Router.GET("/readyz", GetReadyz)
}

// GetVersion returns the current build version of the API server.
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": config.Version})
}

// GetHealthz reports liveness for orchestrators and monitoring.
func GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetReadyz reports whether the service is ready to accept traffic.
func GetReadyz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
