package main

import "github.com/dkrizhanovskyi/ssh-config-auditor/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
