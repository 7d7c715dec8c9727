// Package textnorm canonicalizes free text before it is indexed or matched.
package textnorm

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// maxPasses bounds both the mojibake repair loop and the outer
// fixed-point loop in Normalize.
const maxPasses = 4

// folder is stateless and safe for concurrent use.
var folder = cases.Fold()

// mojibakeEncodings are the single-byte code pages UTF-8 text is most often
// mis-decoded as. Order matters: cp1252 first, then strict Latin-1.
var mojibakeEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
}

// Normalize repairs mojibake, applies NFC, case-folds, trims and collapses
// whitespace. It never fails and Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}

	out := s
	for i := 0; i < maxPasses; i++ {
		next := pass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// NormalizeAny is Normalize for loosely typed input; anything that is not a
// string (including nil) yields "".
func NormalizeAny(v any) string {
	switch t := v.(type) {
	case string:
		return Normalize(t)
	case *string:
		if t == nil {
			return ""
		}
		return Normalize(*t)
	case []byte:
		return Normalize(string(t))
	default:
		return ""
	}
}

// pass peels every mojibake layer before folding: a folded layer ("ã" for
// "Ã") no longer maps back to the original bytes.
func pass(s string) string {
	s = repairAll(s)
	s = norm.NFC.String(s)
	s = folder.String(s)
	return collapseSpace(s)
}

func repairAll(s string) string {
	for i := 0; i < maxPasses; i++ {
		next := RepairMojibake(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// RepairMojibake reverses a UTF-8 -> single-byte mis-decode when the result
// is valid UTF-8 and differs from the input. Otherwise s is returned as is.
func RepairMojibake(s string) string {
	if isASCII(s) {
		return s
	}
	for _, enc := range mojibakeEncodings {
		raw, err := enc.NewEncoder().String(s)
		if err != nil {
			continue
		}
		if raw != s && utf8.ValidString(raw) {
			return raw
		}
	}
	return s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
