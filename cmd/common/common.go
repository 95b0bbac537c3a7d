// Package common provides the helpers shared by the warpq commands: error
// reporting, help display and table rendering.
package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli"
)

// VersionCmdStr holds the formatted version string displayed by the version command.
// It is populated at runtime by the Execute function with build-time information.
var VersionCmdStr string

var (
	showAppHelpAndExit = cli.ShowAppHelpAndExit
	showCommandHelp    = cli.ShowCommandHelp
)

// SetShowAppHelpAndExit replaces the app help printer and returns the
// previous one. Tests use it to keep the process alive.
func SetShowAppHelpAndExit(fn func(*cli.Context, int)) func(*cli.Context, int) {
	prev := showAppHelpAndExit
	showAppHelpAndExit = fn
	return prev
}

// SetShowCommandHelp replaces the command help printer and returns the
// previous one.
func SetShowCommandHelp(fn func(*cli.Context, string) error) func(*cli.Context, string) error {
	prev := showCommandHelp
	showCommandHelp = fn
	return prev
}

// Help displays help information for the application or a specific command.
// If no argument is provided or the argument is "help", it displays the
// application-level help and exits.
func Help(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "" || arg == "help" {
		fmt.Printf("%s %s\n", ctx.App.Name, ctx.App.Version)
		showAppHelpAndExit(ctx, 0)
		return nil
	}
	err := showCommandHelp(ctx, arg)
	if err != nil {
		return err
	}
	return nil
}

// GetVersion prints VersionCmdStr.
func GetVersion(ctx *cli.Context) error {
	fmt.Println(VersionCmdStr)
	return nil
}

// PrintRuntimeErr formats and prints a runtime error message to stdout as
// "name: cmd[action]: msg". The ctx parameter may be nil, in which case the
// application name is derived from os.Args[0].
func PrintRuntimeErr(ctx *cli.Context, cmd, action string, err error) {
	if err == nil {
		fmt.Println("err is nil", "[", cmd, "|", action, "]")
		return
	}
	var name string
	if ctx != nil {
		name = ctx.App.HelpName
	} else {
		name = os.Args[0]
	}
	fmt.Printf("%s: %s[%s]: %s\n", name, cmd, action, err.Error())
}

// PrintErrWithCmdHelp prints the error message followed by the current
// command's help text.
func PrintErrWithCmdHelp(ctx *cli.Context, err error) error {
	return printErrWithCallback(
		ctx,
		err,
		func() {
			err := showCommandHelp(ctx, ctx.Command.Name)
			if err != nil {
				fmt.Println(err.Error())
			}
		},
	)
}

// PrintErrWithHelp prints the error message followed by the application-level
// help text and exits with status code 1.
func PrintErrWithHelp(ctx *cli.Context, err error) error {
	return printErrWithCallback(
		ctx,
		err,
		func() {
			showAppHelpAndExit(ctx, 1)
		},
	)
}

func printErrWithCallback(ctx *cli.Context, err error, callback func()) error {
	if err == nil {
		return nil
	}
	estr := strings.ToLower(err.Error())
	if estr == "flag: help requested" {
		return Help(ctx)
	}
	if strings.Contains(estr, "-version") ||
		strings.Contains(estr, "-v") {
		return GetVersion(ctx)
	}
	fmt.Printf("%s: %s\n\n", ctx.App.HelpName, err.Error())
	callback()
	return nil
}

// UsageErrorCallback is the OnUsageError callback for cli.App and
// cli.Command. It prints the error with the matching help text.
func UsageErrorCallback(ctx *cli.Context, err error, _ bool) error {
	if ctx.Command.Name != "" {
		return PrintErrWithCmdHelp(ctx, err)
	}
	return PrintErrWithHelp(ctx, err)
}

// Align is the horizontal alignment of a table column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// RenderTable renders rows under headers as a rounded box table. Short rows
// are padded with empty cells.
func RenderTable(headers []string, rows [][]string, aligns []Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
