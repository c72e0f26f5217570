// Package email derives display fields from contact addresses for claim-mail
// dispatch. Issuance often happens before the recipient has completed a
// profile, so the greeting falls back to the address local part.
package email

import (
	"strings"
	"unicode"
)

// GreetingName returns a presentable name for a claim notification. The stored
// display name wins when present; otherwise the name is derived from the email
// local part.
func GreetingName(displayName, address string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return name
	}
	first, last := DeriveNameFromAddress(address)
	if last == "User" {
		return first
	}
	return first + " " + last
}

// DeriveNameFromAddress splits the local part of an email address on common
// separators and capitalizes the first and last segments.
func DeriveNameFromAddress(address string) (string, string) {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
