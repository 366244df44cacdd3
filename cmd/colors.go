package cmd

import (
	"github.com/fatih/color"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/rules"
)

var (
	colorPass = color.New(color.FgGreen).SprintFunc()
	colorInfo = color.New(color.FgCyan).SprintFunc()
	colorWarn = color.New(color.FgYellow).SprintFunc()
	colorFail = color.New(color.FgRed).SprintFunc()
)

func colorizeStatus(status rules.Status) string {
	switch status {
	case rules.StatusPass:
		return colorPass(string(status))
	case rules.StatusFail:
		return colorFail(string(status))
	case rules.StatusWarn:
		return colorWarn(string(status))
	case rules.StatusInfo:
		return colorInfo(string(status))
	}
	return string(status)
}
