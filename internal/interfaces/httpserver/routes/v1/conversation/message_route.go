package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainconv "chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/domain/user"
	"chathistory-server/internal/interfaces/httpserver/handlers/messagehandler"
	"chathistory-server/internal/interfaces/httpserver/middlewares"
	"chathistory-server/internal/interfaces/httpserver/requests"
	"chathistory-server/internal/interfaces/httpserver/responses"
	"chathistory-server/internal/utils/platformerrors"
)

// MessageRoute exposes the message stream under /conversations/:conv_public_id/messages.
type MessageRoute struct {
	handler *messagehandler.MessageHandler
}

func NewMessageRoute(handler *messagehandler.MessageHandler) *MessageRoute {
	return &MessageRoute{handler: handler}
}

func (route *MessageRoute) RegisterRouter(router gin.IRouter) {
	messages := router.Group("/conversations/:conv_public_id/messages")
	messages.POST("", route.appendMessage)
	messages.GET("", route.listMessages)
	messages.DELETE("", route.deleteAllMessages)
	messages.GET("/paged", route.listMessagesPaged)
	messages.GET("/recent", route.listRecentMessages)
	messages.GET("/last", route.lastMessage)
	messages.GET("/search", route.searchMessages)
	messages.GET("/since", route.listMessagesSince)
	messages.GET("/stats", route.messageStats)
	messages.GET("/role/:role", route.listMessagesByRole)
	messages.GET("/:message_public_id", route.getMessage)
	messages.GET("/:message_public_id/replies", route.listReplies)
	messages.DELETE("/:message_public_id", route.deleteMessage)
}

// requireUser resolves the authenticated user or writes a 401.
func requireUser(reqCtx *gin.Context) (*user.User, bool) {
	usr, ok := middlewares.UserFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return nil, false
	}
	return usr, true
}

func (route *MessageRoute) appendMessage(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var req requests.CreateMessageRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body")
		return
	}

	response, err := route.handler.AppendMessage(ctx, usr.ID, reqCtx.Param("conv_public_id"), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to append message")
		return
	}

	reqCtx.JSON(http.StatusCreated, response)
}

func (route *MessageRoute) listMessages(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.ListMessages(ctx, usr.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list messages")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) listMessagesPaged(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	pagination, err := requests.GetPaginationFromQuery(reqCtx)
	if err != nil {
		responses.HandleError(reqCtx, err, "invalid pagination parameters")
		return
	}

	response, err := route.handler.ListMessagesPaged(ctx, usr.ID, reqCtx.Param("conv_public_id"), pagination)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list messages")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) listRecentMessages(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var params requests.RecentMessagesQueryParams
	if err := reqCtx.ShouldBindQuery(&params); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid limit parameter")
		return
	}

	response, err := route.handler.ListRecentMessages(ctx, usr.ID, reqCtx.Param("conv_public_id"), params.Limit)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list recent messages")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) lastMessage(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.LastMessage(ctx, usr.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get last message")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) listMessagesByRole(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	role := domainconv.MessageRole(reqCtx.Param("role"))
	response, err := route.handler.ListMessagesByRole(ctx, usr.ID, reqCtx.Param("conv_public_id"), role)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list messages by role")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) searchMessages(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var params requests.SearchMessagesQueryParams
	if err := reqCtx.ShouldBindQuery(&params); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "missing search keyword")
		return
	}

	response, err := route.handler.SearchMessages(ctx, usr.ID, reqCtx.Param("conv_public_id"), params.Q)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to search messages")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) listMessagesSince(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var params requests.MessagesSinceQueryParams
	if err := reqCtx.ShouldBindQuery(&params); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid since parameter")
		return
	}

	response, err := route.handler.ListMessagesSince(ctx, usr.ID, reqCtx.Param("conv_public_id"), params.Since)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list messages since")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) messageStats(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.Stats(ctx, usr.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get message stats")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) getMessage(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.GetMessage(ctx, usr.ID, reqCtx.Param("conv_public_id"), reqCtx.Param("message_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get message")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) listReplies(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.ListReplies(ctx, usr.ID, reqCtx.Param("conv_public_id"), reqCtx.Param("message_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list replies")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) deleteMessage(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.DeleteMessage(ctx, usr.ID, reqCtx.Param("conv_public_id"), reqCtx.Param("message_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to delete message")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *MessageRoute) deleteAllMessages(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	usr, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.DeleteAllMessages(ctx, usr.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to delete messages")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}
