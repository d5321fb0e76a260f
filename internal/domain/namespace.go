package domain

import (
	"fmt"
	"strings"
)

// NamespaceToken maps a tenant identifier to a token that is safe to use in
// storage namespace names (sheet names, file names, schema identifiers).
// Lowercase letters and digits pass through; every other byte is escaped as
// an underscore followed by its two-digit hex code, so the mapping is pure
// and collision-free: two distinct tenant ids never share a token.
func NamespaceToken(tenantID string) string {
	var b strings.Builder
	b.Grow(len(tenantID) + 2)
	b.WriteString("t_")
	for i := 0; i < len(tenantID); i++ {
		c := tenantID[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}
