package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/audit"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/rules"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/transport"
)

func sampleReport() *audit.Report {
	return &audit.Report{
		Host:        "192.0.2.4",
		Port:        2222,
		User:        "root",
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Verdicts: []rules.Verdict{
			{RuleID: "PasswordAuthentication", Status: rules.StatusPass, Message: "password authentication is disabled", Observed: "no"},
			{RuleID: "PermitRootLogin", Status: rules.StatusWarn, Message: "root login is restricted to keys but not disabled", Observed: "prohibit-password"},
			{RuleID: "Port", Status: rules.StatusFail, Message: "sshd listens on the default port 22", Observed: "22"},
		},
		Status: rules.StatusFail,
	}
}

func TestBuildCredential(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		keyFile  string
		wantErr  bool
	}{
		{"password only", "pw", "", false},
		{"key only", "", "/tmp/id_ed25519", false},
		{"both", "pw", "/tmp/id_ed25519", true},
		{"neither", "", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cred, err := buildCredential(tc.password, tc.keyFile)
			if (err != nil) != tc.wantErr {
				t.Fatalf("buildCredential() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && cred.IsZero() {
				t.Error("expected a populated credential")
			}
		})
	}
}

func TestResolveTargets_SingleHost(t *testing.T) {
	base := transport.Descriptor{Port: 22, Credential: transport.PasswordAuth("pw")}
	targets, err := resolveTargets("192.0.2.4", "", base)
	if err != nil {
		t.Fatalf("resolveTargets returned error: %v", err)
	}
	if len(targets) != 1 || targets[0].Host != "192.0.2.4" || targets[0].Port != 22 {
		t.Errorf("unexpected targets %+v", targets)
	}
}

func TestResolveTargets_HostsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.txt")
	contents := "# fleet\nweb-1.example.com\nweb-2.example.com:2222\n\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write hosts file: %v", err)
	}

	base := transport.Descriptor{Port: 22, Credential: transport.PasswordAuth("pw")}
	targets, err := resolveTargets("", path, base)
	if err != nil {
		t.Fatalf("resolveTargets returned error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Host != "web-1.example.com" || targets[0].Port != 22 {
		t.Errorf("unexpected first target %+v", targets[0])
	}
	if targets[1].Host != "web-2.example.com" || targets[1].Port != 2222 {
		t.Errorf("unexpected second target %+v", targets[1])
	}
}

func TestResolveTargets_EmptyHostsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.txt")
	if err := os.WriteFile(path, []byte("# nothing here\n"), 0o600); err != nil {
		t.Fatalf("failed to write hosts file: %v", err)
	}

	base := transport.Descriptor{Credential: transport.PasswordAuth("pw")}
	if _, err := resolveTargets("", path, base); err == nil {
		t.Error("expected an error for a hosts file with no targets")
	}
}

func TestRenderReport_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := renderReport(&buf, sampleReport(), "text"); err != nil {
		t.Fatalf("renderReport returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"192.0.2.4:2222", "PasswordAuthentication", "PermitRootLogin", "Port", "Overall:"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestRenderReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderReport(&buf, sampleReport(), "json"); err != nil {
		t.Fatalf("renderReport returned error: %v", err)
	}

	var decoded audit.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Host != "192.0.2.4" || len(decoded.Verdicts) != 3 {
		t.Errorf("unexpected decoded report %+v", decoded)
	}
}

func TestSaveReport(t *testing.T) {
	dir := t.TempDir()
	path, err := saveReport(dir, sampleReport())
	if err != nil {
		t.Fatalf("saveReport returned error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("report saved outside results dir: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved report: %v", err)
	}
	var decoded audit.Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("saved report is not valid JSON: %v", err)
	}
	if decoded.Status != rules.StatusFail {
		t.Errorf("expected saved status FAIL, got %s", decoded.Status)
	}
}

func TestAuditCommand_MessagesGoToCommandWriter(t *testing.T) {
	// Reserve a port, then close it: the audit gets a guaranteed connection
	// refusal, which still yields a report (single FAIL verdict).
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	resultsDir = t.TempDir()

	var out bytes.Buffer
	auditCmd.SetOut(&out)
	auditCmd.SetContext(context.Background())
	for flag, value := range map[string]string{
		"host":            "127.0.0.1",
		"port":            strconv.Itoa(port),
		"password":        "pw",
		"save":            "true",
		"connect-timeout": "2",
	} {
		if err := auditCmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("setting --%s: %v", flag, err)
		}
	}
	defer func() {
		_ = auditCmd.Flags().Set("save", "false")
		_ = auditCmd.Flags().Set("host", "")
	}()

	if err := auditCmd.RunE(auditCmd, nil); err != nil {
		t.Fatalf("audit returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Connection") {
		t.Errorf("expected the connection verdict on the command writer, got %q", out.String())
	}
	if !strings.Contains(out.String(), "report saved to") {
		t.Errorf("expected the save confirmation on the command writer, got %q", out.String())
	}
}

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"web-1.example.com", "web-1.example.com"},
		{"192.0.2.4", "192.0.2.4"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"host with spaces", "host_with_spaces"},
	}
	for _, tc := range testCases {
		if got := sanitizeHost(tc.input); got != tc.expected {
			t.Errorf("sanitizeHost(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}
