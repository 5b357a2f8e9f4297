package telegram

// SendMessageRequest is the payload of the sendMessage method
type SendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// ResponseParameters carries extra details of a failed call
type ResponseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// APIResponse is the Bot API response wrapper
type APIResponse struct {
	OK          bool                `json:"ok"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}
