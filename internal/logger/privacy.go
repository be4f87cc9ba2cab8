package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

const defaultHashSalt = "default-salt-change-in-production"

var hashSalt = defaultHashSalt

// InitHashSalt loads the log hashing salt from LOG_HASH_SALT.
// In production, set LOG_HASH_SALT; the default salt is only meant for development.
func InitHashSalt() {
	if salt := os.Getenv("LOG_HASH_SALT"); salt != "" {
		hashSalt = salt
		return
	}
	Log.Warn().Msg("LOG_HASH_SALT not set, using default salt for log hashing")
	hashSalt = defaultHashSalt
}

// InitHashSaltForTesting sets a fixed salt.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashUserID creates a privacy-preserving hash of a user ID.
// This allows tracking user actions without exposing actual user IDs.
func HashUserID(userID int64) string {
	data := fmt.Sprintf("%d:%s", userID, hashSalt)
	hash := sha256.Sum256([]byte(data))
	// Return first 8 characters for readability
	return hex.EncodeToString(hash[:])[:8]
}

// HashTelegramID creates a privacy-preserving hash of a Telegram chat or user ID.
func HashTelegramID(telegramID int64) string {
	data := fmt.Sprintf("tg:%d:%s", telegramID, hashSalt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeText is a general-purpose sanitizer for any user-provided text,
// such as decision comments.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	// For short text, show only the length
	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	// For longer text, show prefix and length
	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}
