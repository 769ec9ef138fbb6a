package user

import "strings"

const bearerScheme = "bearer "

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively. It returns "" for any other scheme.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerScheme):])
}
