// Package expand substitutes ${env.KEY} references in configuration text.
package expand

import (
	"os"
	"strings"
	"unicode"
)

const prefix = "${env."

// Env replaces every ${env.KEY} in value with the result of lookup(KEY), or
// an empty string when the key is unset. Keys may contain letters, digits and
// '_' only; an invalid reference is copied literally and scanning resumes
// right after its prefix. A nil lookup uses the process environment.
func Env(value string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var b strings.Builder
	for {
		idx := strings.Index(value, prefix)
		if idx < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:idx])
		rest := value[idx+len(prefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(value[idx:])
			return b.String()
		}
		key := rest[:end]
		if !validKey(key) {
			b.WriteString(prefix)
			value = rest
			continue
		}
		if v, ok := lookup(key); ok {
			b.WriteString(v)
		}
		value = rest[end+1:]
	}
}

func validKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
