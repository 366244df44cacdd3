// Package sshconfig parses sshd configuration text into a directive map.
//
// The parser is deliberately permissive: it accepts both hand-written
// /etc/ssh/sshd_config files and the normalized output of `sshd -T`.
// Directive names are case-insensitive; values keep their casing verbatim.
package sshconfig

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseError indicates input that could not be treated as configuration
// text at all (binary payloads). Ordinary malformed lines never produce it.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config parse error: %s", e.Reason)
}

// Config is the parsed directive map. Directive names are normalized to
// lower case; repeated directives accumulate in encounter order. A directive
// present with an empty value is distinct from an absent directive.
type Config struct {
	entries map[string][]string
}

// Parse tokenizes raw sshd configuration text. Blank lines and comment
// lines are skipped. Each remaining line splits on the first whitespace
// run: the first token is the directive name, the rest of the line is the
// value (which may itself contain whitespace, e.g. "AllowUsers alice bob").
// A line holding a lone token is kept with an empty value.
func Parse(raw string) (*Config, error) {
	if strings.ContainsRune(raw, 0) {
		return nil, &ParseError{Reason: "input contains NUL bytes"}
	}
	if !utf8.ValidString(raw) {
		return nil, &ParseError{Reason: "input is not valid UTF-8"}
	}

	cfg := &Config{entries: make(map[string][]string)}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value := line, ""
		if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
			name, value = line[:i], strings.TrimSpace(line[i:])
		}
		key := strings.ToLower(name)
		cfg.entries[key] = append(cfg.entries[key], value)
	}
	return cfg, nil
}

// Has reports whether the directive appears at least once, regardless of value.
func (c *Config) Has(name string) bool {
	_, ok := c.entries[strings.ToLower(name)]
	return ok
}

// Value returns the first occurrence of the directive. sshd applies
// first-match-wins for single-value directives, so rules inspect the
// first occurrence; ok is false when the directive is absent.
func (c *Config) Value(name string) (string, bool) {
	vs, ok := c.entries[strings.ToLower(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Values returns every occurrence of the directive in encounter order.
// Multi-value directives (Port, ListenAddress, HostKey) may legitimately
// repeat; precedence policy is left to the caller.
func (c *Config) Values(name string) []string {
	return c.entries[strings.ToLower(name)]
}

// Len returns the number of distinct directives.
func (c *Config) Len() int {
	return len(c.entries)
}
