// Package textutil normalizes the free text found in bill exports and
// mapping files.
package textutil

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/unicode/norm"
)

var invisible = strings.NewReplacer(
	"\u200b", "",
	"\ufeff", "",
	"\u00a0", " ",
	"\u3000", " ",
)

// Normalize folds full-width forms (NFKC), drops zero-width characters,
// collapses whitespace runs to one space and lower-cases the result.
func Normalize(s string) string {
	return strings.ToLower(Clean(s))
}

// Clean is Normalize without case folding. Regular expressions from the
// mapping file go through Clean so escapes like \S keep their meaning.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = invisible.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// ToUTF8 strips a UTF-8 byte order mark, or decodes b from GB18030 when it
// is not valid UTF-8. Bill exports from Chinese apps use either.
func ToUTF8(b []byte) ([]byte, error) {
	if bytes.HasPrefix(b, utf8BOM) {
		return b[len(utf8BOM):], nil
	}
	if utf8.Valid(b) {
		return b, nil
	}
	return simplifiedchinese.GB18030.NewDecoder().Bytes(b)
}
