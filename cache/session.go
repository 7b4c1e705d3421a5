package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

const sessionKeyPrefix = "user:"

// SessionKey is the cache key for a logged-in user's session entry.
func SessionKey(email string) string {
	return sessionKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

type SessionEntry struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (s SessionEntry) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeSession(raw string) (SessionEntry, error) {
	var s SessionEntry
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return SessionEntry{}, fmt.Errorf("decode session entry: %w", err)
	}
	if s.UserID == "" {
		return SessionEntry{}, fmt.Errorf("decode session entry: missing userId")
	}
	return s, nil
}
