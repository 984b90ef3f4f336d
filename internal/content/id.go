package content

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const maxSlugLen = 48

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	slug := sb.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}

// NewContentID builds "<slug>_<type>_<unix nanos>". Images pass a non-zero
// index so that several images from one run stay distinct.
func NewContentID(slug string, t Type, index int, at time.Time) string {
	kind := string(t)
	if index > 0 {
		kind = fmt.Sprintf("%s%d", kind, index)
	}
	return fmt.Sprintf("%s_%s_%d", slug, kind, at.UnixNano())
}

// TypeFromID recovers the artifact type from a content id.
func TypeFromID(id string) (Type, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return "", false
	}
	// Slugs never contain underscores; the type may (x_dev).
	kind := strings.Join(parts[1:len(parts)-1], "_")
	kind = strings.TrimRightFunc(kind, unicode.IsDigit)
	t, err := ParseType(kind)
	if err != nil {
		return "", false
	}
	return t, true
}
