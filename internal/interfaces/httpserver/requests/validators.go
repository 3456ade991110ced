package requests

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"chathistory-server/internal/domain/conversation"
)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("messagerole", func(fl validator.FieldLevel) bool {
		return conversation.MessageRole(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("conversationstatus", func(fl validator.FieldLevel) bool {
		return conversation.ConversationStatus(fl.Field().String()).Valid()
	})
}
