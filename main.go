// procctl runs and inspects child processes without losing their exit
// status.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/buildkite/procctl/clicommand"
	"github.com/buildkite/procctl/version"
	"github.com/urfave/cli"
)

const appHelpTemplate = `Usage:

  {{.Name}} <command> [options...]

Available commands are:

  {{range .Commands}}{{.Name}}{{with .ShortName}}, {{.}}{{end}}{{ "\t" }}{{.Usage}}
  {{end}}
Use "{{.Name}} <command> --help" for more information about a command.

`

const commandHelpTemplate = `{{.Description}}

Options:

   {{range .VisibleFlags}}{{.}}
   {{end}}
`

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	cli.AppHelpTemplate = appHelpTemplate
	cli.CommandHelpTemplate = commandHelpTemplate

	app := newApp()
	if err := app.Run(args); err != nil {
		var exitErr *clicommand.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Unwrap() != nil {
				fmt.Fprintf(app.ErrWriter, "procctl: %v\n", exitErr)
			}
			return exitErr.Code()
		}
		fmt.Fprintf(app.ErrWriter, "procctl: %v\n", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "procctl"
	app.Usage = "Run child processes and observe them without reaping"
	app.Version = version.FullVersion()
	app.ErrWriter = os.Stderr
	app.Commands = clicommand.ProcctlCommands

	app.CommandNotFound = func(c *cli.Context, command string) {
		fmt.Fprintf(app.ErrWriter, "procctl: unknown command '%s'\n", command)
		fmt.Fprintf(app.ErrWriter, "Run '%s --help' for usage.\n", c.App.Name)
		os.Exit(1)
	}

	return app
}
