package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"chathistory-server/internal/utils/idgen"
)

// ValidationConfig holds the aggregate's validation limits.
type ValidationConfig struct {
	MaxTitleLength    int
	MaxSummaryLength  int
	MaxContentLength  int
	MaxMetadataLength int
}

// DefaultValidationConfig returns the stock limits.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MaxTitleLength:    255,
		MaxSummaryLength:  4096,
		MaxContentLength:  65536,
		MaxMetadataLength: 8192,
	}
}

// Validator checks conversations and messages against the configured limits.
type Validator struct {
	config *ValidationConfig
}

// NewValidator creates a Validator, falling back to defaults on nil config.
func NewValidator(config *ValidationConfig) *Validator {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &Validator{config: config}
}

// ValidateConversationID checks the "conv_" public ID format.
func (v *Validator) ValidateConversationID(id string) error {
	if id == "" {
		return fmt.Errorf("conversation ID cannot be empty")
	}
	if !idgen.ValidateIDFormat(id, "conv") {
		return fmt.Errorf("invalid conversation ID format: %s", id)
	}
	return nil
}

// ValidateMessageID checks the "msg_" public ID format.
func (v *Validator) ValidateMessageID(id string) error {
	if id == "" {
		return fmt.Errorf("message ID cannot be empty")
	}
	if !idgen.ValidateIDFormat(id, "msg") {
		return fmt.Errorf("invalid message ID format: %s", id)
	}
	return nil
}

// ValidateTitle rejects overlong, whitespace-only, or null-byte titles. An
// empty title is allowed; it resolves to the default elsewhere.
func (v *Validator) ValidateTitle(title string) error {
	if title == "" {
		return nil
	}

	length := utf8.RuneCountInString(title)
	if length > v.config.MaxTitleLength {
		return fmt.Errorf("title cannot exceed %d characters (got %d)", v.config.MaxTitleLength, length)
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title cannot be only whitespace")
	}
	if strings.Contains(title, "\x00") {
		return fmt.Errorf("title cannot contain null bytes")
	}
	return nil
}

// ValidateSummary bounds the summary text.
func (v *Validator) ValidateSummary(summary string) error {
	length := utf8.RuneCountInString(summary)
	if length > v.config.MaxSummaryLength {
		return fmt.Errorf("summary cannot exceed %d characters (got %d)", v.config.MaxSummaryLength, length)
	}
	if strings.Contains(summary, "\x00") {
		return fmt.Errorf("summary cannot contain null bytes")
	}
	return nil
}

// ValidateStatus checks the status against the known set.
func (v *Validator) ValidateStatus(status ConversationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid conversation status: %s (must be active, archived, or deleted)", status)
	}
	return nil
}

// ValidateMetadata requires metadata to be a JSON object within limits.
func (v *Validator) ValidateMetadata(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	if len(raw) > v.config.MaxMetadataLength {
		return fmt.Errorf("metadata cannot exceed %d bytes (got %d)", v.config.MaxMetadataLength, len(raw))
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("metadata must be a JSON object: %w", err)
	}
	return nil
}

// ValidateMessage performs full validation of a message to append.
func (v *Validator) ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if !msg.Role.Valid() {
		return fmt.Errorf("invalid message role: %s (must be user, assistant, system, or tool)", msg.Role)
	}

	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	length := utf8.RuneCountInString(msg.Content)
	if length > v.config.MaxContentLength {
		return fmt.Errorf("message content cannot exceed %d characters (got %d)", v.config.MaxContentLength, length)
	}

	for name, value := range map[string]*int{
		"prompt_tokens":     msg.PromptTokens,
		"completion_tokens": msg.CompletionTokens,
		"total_tokens":      msg.TotalTokens,
	} {
		if value != nil && *value < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if msg.LatencyMs != nil && *msg.LatencyMs < 0 {
		return fmt.Errorf("latency_ms cannot be negative")
	}

	if msg.Metadata != nil {
		if err := v.ValidateMetadata([]byte(*msg.Metadata)); err != nil {
			return err
		}
	}

	return nil
}
