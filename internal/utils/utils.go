package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// ShortenString cuts s to l bytes and appends an ellipsis. l == 0 disables shortening.
func ShortenString(s string, l int) string {
	if len(s) > l && l != 0 {
		return fmt.Sprintf("%s...", s[:l])
	}
	return s
}

// RandomString returns prefix followed by a dash and eight random hex characters.
func RandomString(prefix string) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(b)), nil
}

// SafeFileName replaces characters that are awkward in file names.
func SafeFileName(s string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", "?", "_", "&", "_", "=", "_", "#", "_")
	return r.Replace(s)
}
