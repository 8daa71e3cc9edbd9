package core

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Tokens embedded in strings are encoded as opaque markers of the form
// ${Token[cirrus.N]}. The marker text is unique per token and survives
// ordinary string manipulation (concatenation, formatting), which makes the
// encoding reversible at resolution time.
const (
	tokenMarkerPrefix = "${Token[cirrus."
	tokenMarkerSuffix = "]}"
)

var tokenMarkerRE = regexp.MustCompile(`\$\{Token\[cirrus\.[0-9]+\]\}`)

// tokenRegistry maps markers back to their tokens. Registration happens at
// token creation; the table only grows. Guarded by a mutex so that token
// creation is safe even though tree construction is single-threaded by
// contract.
type tokenRegistry struct {
	mu       sync.Mutex
	byMarker map[string]Token
	next     int
}

var tokens = &tokenRegistry{byMarker: make(map[string]Token)}

func (r *tokenRegistry) register(t Token) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	marker := fmt.Sprintf("%s%d%s", tokenMarkerPrefix, r.next, tokenMarkerSuffix)
	r.next++
	r.byMarker[marker] = t
	return marker
}

func (r *tokenRegistry) lookup(marker string) (Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byMarker[marker]
	return t, ok
}

// ContainsToken reports whether s embeds at least one token marker.
func ContainsToken(s string) bool {
	return tokenMarkerRE.MatchString(s)
}

// stringFragment is either a literal run of text or an embedded token.
type stringFragment struct {
	literal string
	token   Token
}

// splitTokenString decodes a string into its literal and token fragments, in
// order. A marker that does not correspond to a registered token is kept as
// literal text.
func splitTokenString(s string) []stringFragment {
	var frags []stringFragment
	rest := s
	for {
		loc := tokenMarkerRE.FindStringIndex(rest)
		if loc == nil {
			break
		}
		if loc[0] > 0 {
			frags = append(frags, stringFragment{literal: rest[:loc[0]]})
		}
		marker := rest[loc[0]:loc[1]]
		if tok, ok := tokens.lookup(marker); ok {
			frags = append(frags, stringFragment{token: tok})
		} else {
			frags = append(frags, stringFragment{literal: marker})
		}
		rest = rest[loc[1]:]
	}
	if rest != "" || len(frags) == 0 {
		frags = append(frags, stringFragment{literal: rest})
	}
	return frags
}

// sanitizeSegment strips every character that is not a letter or digit and
// upper-cases the first rune of what remains, so path segments compose into
// a readable CamelCase identifier base.
func sanitizeSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return out
	}
	return strings.ToUpper(out[:1]) + out[1:]
}
