package cmsapi

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// PageResponse is the public read of one page.
type PageResponse struct {
	Status  string                     `json:"status"`
	Page    string                     `json:"page"`
	Content map[string]json.RawMessage `json:"content"`
}

// UpdateResponse reports a content batch.
type UpdateResponse struct {
	Status  string   `json:"status"`
	Pages   []string `json:"pages"`
	Keys    []string `json:"keys"`
	Skipped []string `json:"skipped"`
}

type HistoryEntry struct {
	ID        uint64          `json:"id"`
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// HistoryResponse lists every write of one field, oldest first.
type HistoryResponse struct {
	Status  string         `json:"status"`
	Page    string         `json:"page"`
	Key     string         `json:"key"`
	History []HistoryEntry `json:"history"`
}

type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UploadResponse struct {
	URL string `json:"url"`
}
