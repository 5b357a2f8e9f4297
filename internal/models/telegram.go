package models

import "time"

// TelegramLink connects a user to a Telegram chat that receives digests
type TelegramLink struct {
	UserID   string    `json:"uid"`
	ChatID   int64     `json:"chatId"`
	LinkedAt time.Time `json:"linked_at"`
}

// ConnectTelegramRequest is the body of POST /api/connect-telegram.
// Telegram chat ids arrive as strings from the bot deep link.
type ConnectTelegramRequest struct {
	ChatID string `json:"chatId" validate:"required,max=21,chat_id"`
}

// TelegramStatus is returned by GET /api/telegram/status/{uid}
type TelegramStatus struct {
	Connected bool   `json:"connected"`
	ChatID    *int64 `json:"chatId,omitempty"`
}
