package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli"
	cmdCommon "github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/internal/history"
)

var (
	historyLimit int

	historyFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "number of entries to show",
			Value:       history.DefaultListLimit,
			Destination: &historyLimit,
		},
	}
)

func showHistory(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "history", "new_client", err)
		return nil
	}
	defer client.Close()
	entries, err := client.History(historyLimit)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "history", "list", err)
		return nil
	}
	if len(entries) == 0 {
		fmt.Println("warpq: nothing dispatched yet")
		return nil
	}
	fmt.Println(renderHistory(entries))
	return nil
}

func renderHistory(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			cmdCommon.Truncate(e.URI, 48),
			e.Handler,
			e.FileName,
			e.DispatchedAt.Local().Format(time.DateTime),
		})
	}
	return cmdCommon.RenderTable(
		[]string{"ID", "URL", "Handler", "File", "Dispatched"},
		rows,
		[]cmdCommon.Align{cmdCommon.AlignRight},
	)
}
