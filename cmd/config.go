package cmd

import (
	"strconv"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// applyConfigDefaults merges config file values into command flags when the
// user did not explicitly set the corresponding flag. Flags the user passed
// on the command line always win.
func applyConfigDefaults() {
	if viper.IsSet("audit.user") {
		setStringFlagIfUnset(auditCmd.Flags(), "user", viper.GetString("audit.user"))
	}
	if viper.IsSet("audit.port") {
		setIntFlagIfUnset(auditCmd.Flags(), "port", viper.GetInt("audit.port"))
	}
	if viper.IsSet("audit.known_hosts") {
		setStringFlagIfUnset(auditCmd.Flags(), "known-hosts", viper.GetString("audit.known_hosts"))
	}
	if viper.IsSet("audit.concurrency") {
		setIntFlagIfUnset(auditCmd.Flags(), "concurrency", viper.GetInt("audit.concurrency"))
	}
	if viper.IsSet("audit.rate_limit") {
		setIntFlagIfUnset(auditCmd.Flags(), "rate-limit", viper.GetInt("audit.rate_limit"))
	}
	if viper.IsSet("connect_timeout_secs") {
		setIntFlagIfUnset(auditCmd.Flags(), "connect-timeout", viper.GetInt("connect_timeout_secs"))
	}

	if viper.IsSet("serve.addr") {
		setStringFlagIfUnset(serveCmd.Flags(), "addr", viper.GetString("serve.addr"))
	}
	if viper.IsSet("serve.auth_token") {
		setStringFlagIfUnset(serveCmd.Flags(), "auth-token", viper.GetString("serve.auth_token"))
	}
	if viper.IsSet("serve.rate_limit") {
		setIntFlagIfUnset(serveCmd.Flags(), "rate-limit", viper.GetInt("serve.rate_limit"))
	}
	if viper.IsSet("serve.rate_burst") {
		setIntFlagIfUnset(serveCmd.Flags(), "rate-burst", viper.GetInt("serve.rate_burst"))
	}
}

func setStringFlagIfUnset(flags *pflag.FlagSet, name, value string) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(value)
}

func setIntFlagIfUnset(flags *pflag.FlagSet, name string, value int) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(strconv.Itoa(value))
}
