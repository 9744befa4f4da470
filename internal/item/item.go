// Package item holds the little pimsync knows about calendar and contact
// payloads: how to find a UID in an iCalendar or vCard body and how to derive
// a stable storage name from it. Everything else about the content is opaque.
package item

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/MKhiriev/go-pim-sync/internal/utils"
)

const uidProperty = "UID"

// UID returns the value of the first UID property in content, unfolding
// continuation lines (lines starting with a space or a tab). Property
// parameters such as "UID;VALUE=TEXT:" are accepted.
func UID(content []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), len(content)+1)

	var (
		value   strings.Builder
		reading bool
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if reading {
			if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
				value.WriteString(line[1:])
				continue
			}
			break
		}

		name, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if name, _, _ = strings.Cut(name, ";"); strings.EqualFold(name, uidProperty) {
			value.WriteString(rest)
			reading = true
		}
	}

	uid := strings.TrimSpace(value.String())
	return uid, uid != ""
}

// Ident returns the UID of content or, when it has none, its content hash.
func Ident(content []byte) string {
	if uid, ok := UID(content); ok {
		return uid
	}
	return utils.ContentHash(content)
}

// FileName turns an ident into a file or resource name with extension ext.
// Characters outside [A-Za-z0-9@._-] are dropped; an ident with nothing left,
// or one that would start with a dot, is replaced by its hash.
func FileName(ident, ext string) string {
	var b strings.Builder
	for _, r := range ident {
		if isSafe(r) {
			b.WriteRune(r)
		}
	}

	name := b.String()
	if name == "" || strings.HasPrefix(name, ".") {
		name = utils.ContentHash([]byte(ident))
	}
	return name + ext
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '@' || r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}
