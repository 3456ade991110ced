package conversation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainconv "chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/interfaces/httpserver/handlers/conversationhandler"
	"chathistory-server/internal/interfaces/httpserver/requests"
	"chathistory-server/internal/interfaces/httpserver/responses"
	"chathistory-server/internal/utils/platformerrors"
)

// ConversationRoute exposes conversation CRUD under /conversations.
type ConversationRoute struct {
	handler *conversationhandler.ConversationHandler
}

func NewConversationRoute(handler *conversationhandler.ConversationHandler) *ConversationRoute {
	return &ConversationRoute{handler: handler}
}

func (route *ConversationRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")
	conversations.GET("", route.listConversations)
	conversations.POST("", route.createConversation)
	conversations.GET("/search", route.searchConversations)
	conversations.GET("/:conv_public_id", route.getConversation)
	conversations.PATCH("/:conv_public_id", route.updateConversation)
	conversations.POST("/:conv_public_id/archive", route.archiveConversation)
	conversations.DELETE("/:conv_public_id", route.deleteConversation)
}

func (route *ConversationRoute) listConversations(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	user, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var params requests.ListConversationsQueryParams
	if err := reqCtx.ShouldBindQuery(&params); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid query parameters")
		return
	}

	pagination, err := requests.GetPaginationFromQuery(reqCtx)
	if err != nil {
		responses.HandleError(reqCtx, err, "invalid pagination parameters")
		return
	}

	sort, err := requests.GetSortFromQuery(reqCtx)
	if err != nil {
		responses.HandleError(reqCtx, err, "invalid sort parameters")
		return
	}

	var status *domainconv.ConversationStatus
	if params.Status != nil {
		value := domainconv.ConversationStatus(strings.ToLower(*params.Status))
		status = &value
	}

	response, err := route.handler.ListConversations(ctx, user.ID, status, pagination, sort)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list conversations")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) createConversation(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	user, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var req requests.CreateConversationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body")
		return
	}

	response, err := route.handler.CreateConversation(ctx, user.ID, req)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to create conversation")
		return
	}

	reqCtx.JSON(http.StatusCreated, response)
}

func (route *ConversationRoute) searchConversations(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	user, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var params requests.SearchConversationsQueryParams
	if err := reqCtx.ShouldBindQuery(&params); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "missing search keyword")
		return
	}

	results, err := route.handler.SearchConversations(ctx, user.ID, params.Q)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to search conversations")
		return
	}

	reqCtx.JSON(http.StatusOK, gin.H{"object": "list", "data": results})
}

func (route *ConversationRoute) getConversation(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	user, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var params requests.GetConversationQueryParams
	if err := reqCtx.ShouldBindQuery(&params); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid query parameters")
		return
	}

	response, err := route.handler.GetConversation(ctx, user.ID, reqCtx.Param("conv_public_id"), params.IncludeMessages)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get conversation")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) updateConversation(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	user, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	var patch domainconv.UpdatePatch
	if err := reqCtx.ShouldBindJSON(&patch); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body")
		return
	}

	response, err := route.handler.UpdateConversation(ctx, user.ID, reqCtx.Param("conv_public_id"), patch)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to update conversation")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) archiveConversation(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	user, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.ArchiveConversation(ctx, user.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to archive conversation")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) deleteConversation(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	user, ok := requireUser(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.DeleteConversation(ctx, user.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to delete conversation")
		return
	}

	reqCtx.JSON(http.StatusOK, response)
}
