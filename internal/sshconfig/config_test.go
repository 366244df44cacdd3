package sshconfig

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse_BasicDirectives(t *testing.T) {
	raw := "Port 2222\nPasswordAuthentication no\nPermitRootLogin no\n"

	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	testCases := []struct {
		directive string
		expected  string
	}{
		{"Port", "2222"},
		{"PasswordAuthentication", "no"},
		{"PermitRootLogin", "no"},
	}
	for _, tc := range testCases {
		v, ok := cfg.Value(tc.directive)
		if !ok {
			t.Errorf("expected %s to be present", tc.directive)
			continue
		}
		if v != tc.expected {
			t.Errorf("expected %s=%q, got %q", tc.directive, tc.expected, v)
		}
	}
}

func TestParse_SkipsCommentsAndBlanks(t *testing.T) {
	raw := "# This is a comment\n\n   \n  # indented comment\nPort 22\n"

	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.Len() != 1 {
		t.Errorf("expected 1 directive, got %d", cfg.Len())
	}
	if _, ok := cfg.Value("Port"); !ok {
		t.Error("expected Port to survive comment stripping")
	}
}

func TestParse_CaseInsensitiveDirectives(t *testing.T) {
	lower, err := Parse("permitrootlogin no\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	mixed, err := Parse("PermitRootLogin no\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	lv, _ := lower.Value("PermitRootLogin")
	mv, _ := mixed.Value("permitrootlogin")
	if lv != "no" || mv != "no" {
		t.Errorf("case-insensitive lookup failed: lower=%q mixed=%q", lv, mv)
	}
}

func TestParse_ValueCasingPreserved(t *testing.T) {
	cfg, err := Parse("AllowUsers Alice BOB\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	v, _ := cfg.Value("allowusers")
	if v != "Alice BOB" {
		t.Errorf("expected value casing preserved, got %q", v)
	}
}

func TestParse_EmptyValueDistinctFromAbsent(t *testing.T) {
	withEmpty, err := Parse("PermitRootLogin\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	empty, err := Parse("")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if !withEmpty.Has("PermitRootLogin") {
		t.Error("expected lone token to be present with empty value")
	}
	if v, ok := withEmpty.Value("PermitRootLogin"); !ok || v != "" {
		t.Errorf("expected present empty value, got %q ok=%v", v, ok)
	}
	if empty.Has("PermitRootLogin") {
		t.Error("expected directive to be absent from empty input")
	}
}

func TestParse_RepeatedDirectivesAccumulate(t *testing.T) {
	cfg, err := Parse("Port 22\nPort 2222\nListenAddress 0.0.0.0\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	all := cfg.Values("Port")
	if !reflect.DeepEqual(all, []string{"22", "2222"}) {
		t.Errorf("expected all occurrences in order, got %v", all)
	}

	// First occurrence wins for single-value lookups.
	first, _ := cfg.Value("Port")
	if first != "22" {
		t.Errorf("expected first occurrence %q, got %q", "22", first)
	}
}

func TestParse_ValueWithWhitespace(t *testing.T) {
	cfg, err := Parse("AllowUsers alice bob carol\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	v, _ := cfg.Value("AllowUsers")
	if v != "alice bob carol" {
		t.Errorf("expected multi-word value kept intact, got %q", v)
	}
}

func TestParse_TabSeparated(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		directive string
		expected  string
	}{
		{"single value", "Port\t2222\n", "Port", "2222"},
		{"multi-word value", "AllowUsers\talice bob\n", "AllowUsers", "alice bob"},
		{"value with later space", "PermitRootLogin\tprohibit-password\nAcceptEnv\tLANG LC_ALL\n", "AcceptEnv", "LANG LC_ALL"},
		{"tab inside value", "Match\tUser alice\tHost bastion\n", "Match", "User alice\tHost bastion"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse(tc.raw)
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if !cfg.Has(tc.directive) {
				t.Fatalf("expected %s to be present", tc.directive)
			}
			if v, _ := cfg.Value(tc.directive); v != tc.expected {
				t.Errorf("expected %s=%q, got %q", tc.directive, tc.expected, v)
			}
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	raw := "Port 22\nPasswordAuthentication yes\nPermitRootLogin prohibit-password\nPort 2222\n"

	first, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	second, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !reflect.DeepEqual(first.entries, second.entries) {
		t.Error("expected repeated parses of identical input to be identical")
	}
}

func TestParse_BinaryInputRejected(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"NUL bytes", "Port 22\x00\x00"},
		{"invalid UTF-8", "Port \xff\xfe22"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
		})
	}
}

func TestParse_SshdTOutput(t *testing.T) {
	// sshd -T emits lower-case directive names.
	raw := strings.Join([]string{
		"port 22",
		"passwordauthentication yes",
		"permitrootlogin without-password",
	}, "\n")

	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if v, _ := cfg.Value("PermitRootLogin"); v != "without-password" {
		t.Errorf("expected sshd -T output to parse, got %q", v)
	}
}
