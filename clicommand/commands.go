package clicommand

import "github.com/urfave/cli"

var ProcctlCommands = []cli.Command{
	RunCommand,
	ProbeCommand,
}
