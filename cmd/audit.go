package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/audit"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/rules"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/transport"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit the sshd configuration of one or more remote hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		hostsFile, _ := cmd.Flags().GetString("hosts-file")
		port, _ := cmd.Flags().GetInt("port")
		user, _ := cmd.Flags().GetString("user")
		password, _ := cmd.Flags().GetString("password")
		keyFile, _ := cmd.Flags().GetString("key")
		knownHosts, _ := cmd.Flags().GetString("known-hosts")
		connectTimeout, _ := cmd.Flags().GetInt("connect-timeout")
		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")

		if host == "" && hostsFile == "" {
			return fmt.Errorf("--host or --hosts-file is required")
		}
		if format != "text" && format != "json" {
			return fmt.Errorf("invalid format: %s (must be text or json)", format)
		}
		credential, err := buildCredential(password, keyFile)
		if err != nil {
			return err
		}

		base := transport.Descriptor{
			Port:           port,
			User:           user,
			Credential:     credential,
			KnownHostsFile: knownHosts,
			ConnectTimeout: time.Duration(connectTimeout) * time.Second,
			CommandTimeout: time.Duration(viper.GetInt("command_timeout_secs")) * time.Second,
		}

		targets, err := resolveTargets(host, hostsFile, base)
		if err != nil {
			return err
		}

		auditor := audit.New(rules.DefaultSet(), audit.WithLogger(logger))
		runner := &audit.Runner{Auditor: auditor, Concurrency: concurrency, RateLimit: rateLimit}
		outcomes := runner.RunAll(cmd.Context(), targets)

		var firstErr error
		for _, outcome := range outcomes {
			if outcome.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s audit of %s failed: %v\n", colorFail("✗"), outcome.Host, outcome.Err)
				if firstErr == nil {
					firstErr = outcome.Err
				}
				continue
			}
			if err := renderReport(cmd.OutOrStdout(), outcome.Report, format); err != nil {
				return err
			}
			if save {
				path, err := saveReport(resultsDir, outcome.Report)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s report saved to %s\n", colorInfo("→"), path)
			}
		}
		return firstErr
	},
}

func init() {
	auditCmd.Flags().String("host", "", "Target host or IP address")
	auditCmd.Flags().String("hosts-file", "", "File with one host[:port] per line for batch audits")
	auditCmd.Flags().Int("port", transport.DefaultPort, "SSH port")
	auditCmd.Flags().String("user", transport.DefaultUser, "SSH username")
	auditCmd.Flags().String("password", "", "SSH password")
	auditCmd.Flags().String("key", "", "Path to private key file")
	auditCmd.Flags().String("known-hosts", "", "Path to a known_hosts file for strict host key checking")
	auditCmd.Flags().Int("connect-timeout", 10, "Connect timeout in seconds")
	auditCmd.Flags().String("format", "text", "Output format (text or json)")
	auditCmd.Flags().Bool("save", false, "Save the report JSON into the results directory")
	auditCmd.Flags().Int("concurrency", 4, "Maximum concurrent audits for batch runs")
	auditCmd.Flags().Int("rate-limit", 0, "New audits per second for batch runs (0 = unlimited)")
}

// buildCredential enforces the exactly-one-credential rule at the flag
// boundary, before anything touches the network.
func buildCredential(password, keyFile string) (transport.Credential, error) {
	switch {
	case password != "" && keyFile != "":
		return transport.Credential{}, fmt.Errorf("--password and --key are mutually exclusive")
	case password != "":
		return transport.PasswordAuth(password), nil
	case keyFile != "":
		return transport.PrivateKeyAuth(keyFile), nil
	}
	return transport.Credential{}, fmt.Errorf("--password or --key is required")
}

// resolveTargets expands the host flag or hosts file into descriptors
// sharing the base credential and timeouts.
func resolveTargets(host, hostsFile string, base transport.Descriptor) ([]transport.Descriptor, error) {
	if host != "" {
		d := base
		d.Host = host
		return []transport.Descriptor{d}, nil
	}

	f, err := os.Open(hostsFile)
	if err != nil {
		return nil, fmt.Errorf("opening hosts file: %w", err)
	}
	defer f.Close()

	var targets []transport.Descriptor
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d := base
		if h, p, err := net.SplitHostPort(line); err == nil {
			port, perr := strconv.Atoi(p)
			if perr != nil {
				return nil, fmt.Errorf("invalid port in hosts file entry %q", line)
			}
			d.Host, d.Port = h, port
		} else {
			d.Host = line
		}
		targets = append(targets, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading hosts file: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("hosts file %s contains no targets", hostsFile)
	}
	return targets, nil
}

func renderReport(w io.Writer, report *audit.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "\n=== SSH Config Audit: %s:%d ===\n", report.Host, report.Port)
	fmt.Fprintf(w, "Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tSTATUS\tOBSERVED\tMESSAGE")
	for _, v := range report.Verdicts {
		observed := v.Observed
		if observed == "" {
			observed = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.RuleID, colorizeStatus(v.Status), observed, v.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nOverall: %s\n", colorizeStatus(report.Status))
	return nil
}

func saveReport(dir string, report *audit.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.json", sanitizeHost(report.Host), report.GeneratedAt.Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("saving report: %w", err)
	}
	return path, nil
}

// sanitizeHost keeps report filenames free of path separators and other
// surprises from attacker-influenced hostnames.
func sanitizeHost(host string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-':
			return r
		}
		return '_'
	}, host)
}
