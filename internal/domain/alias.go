package domain

import (
	"net/mail"
	"strings"
)

// Alias is a forwarding address managed by the alias provider.
// Identity is ID; Email and Description are informational.
type Alias struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// ValidEmail reports whether addr is a bare, syntactically valid address.
func ValidEmail(addr string) bool {
	if addr == "" || strings.TrimSpace(addr) != addr {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return false
	}
	return parsed.Address == addr && parsed.Name == ""
}
