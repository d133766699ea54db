package database

import (
	"strconv"
	"strings"
)

// numberPlaceholders rewrites '?' into "$1", "$2", ... leaving quoted text alone
func numberPlaceholders(query string) string {
	var (
		b     strings.Builder
		n     int
		quote rune
	)
	b.Grow(len(query) + 8)

	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
