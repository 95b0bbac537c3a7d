package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli"
	cmdCommon "github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/wishcli"
	"github.com/warpdl/warpq/pkg/wishlib"
)

const codeWishNotFound = -32001

var (
	errNoURL      = errors.New("no url provided")
	errNoPosition = errors.New("no position provided")
)

var (
	addMime     string
	addTitle    string
	addReferer  string
	addFileName string
	addHandler  string
	addHeld     bool

	addFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "mime, m",
			Usage:       "content type of the url, used to pick a handler",
			Destination: &addMime,
		},
		cli.StringFlag{
			Name:        "title, t",
			Usage:       "human readable title",
			Destination: &addTitle,
		},
		cli.StringFlag{
			Name:        "referer, r",
			Usage:       "page the url was found on",
			Destination: &addReferer,
		},
		cli.StringFlag{
			Name:        "file-name, o",
			Usage:       "local file name for the download",
			Destination: &addFileName,
		},
		cli.StringFlag{
			Name:        "handler, x",
			Usage:       "download, stream, open or external:<program>",
			Destination: &addHandler,
		},
		cli.BoolFlag{
			Name:        "held",
			Usage:       "queue the wish held (default: false)",
			Destination: &addHeld,
		},
	}

	lsWide bool

	lsFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "wide, w",
			Usage:       "do not shorten urls and titles (default: false)",
			Destination: &lsWide,
		},
	}

	upSteps int

	upFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "steps, n",
			Usage:       "number of positions to move",
			Value:       1,
			Destination: &upSteps,
		},
	}
)

func add(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	uris := ctx.Args()
	if len(uris) == 0 {
		return cmdCommon.PrintErrWithCmdHelp(ctx, errNoURL)
	}
	if addHandler != "" {
		if _, err := wishlib.ParseHandler(addHandler); err != nil {
			cmdCommon.PrintRuntimeErr(ctx, "add", "parse_handler", err)
			return nil
		}
	}
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "add", "new_client", err)
		return nil
	}
	defer client.Close()

	params := make([]common.WishParams, 0, len(uris))
	for _, uri := range uris {
		params = append(params, common.WishParams{
			URI:      uri,
			Mime:     addMime,
			Title:    addTitle,
			Referer:  addReferer,
			FileName: addFileName,
			Handler:  addHandler,
			Held:     addHeld,
		})
	}
	n, err := client.Add(params...)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "add", "add", err)
		return nil
	}
	if skipped := len(uris) - n; skipped > 0 {
		fmt.Printf("Queued %d wish(es), %d already queued or rejected\n", n, skipped)
		return nil
	}
	fmt.Printf("Queued %d wish(es)\n", n)
	return nil
}

func list(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "list", "new_client", err)
		return nil
	}
	defer client.Close()
	wishes, err := client.List()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "list", "get_list", err)
		return nil
	}
	if len(wishes) == 0 {
		fmt.Println("warpq: the queue is empty")
		return nil
	}
	fmt.Println(renderWishes(wishes, lsWide))
	return nil
}

func renderWishes(wishes []wishlib.Wish, wide bool) string {
	rows := make([][]string, 0, len(wishes))
	for i, w := range wishes {
		uri, title := w.URI, w.Title
		if !wide {
			uri = cmdCommon.Truncate(uri, 48)
			title = cmdCommon.Truncate(title, 24)
		}
		state := "queued"
		if w.Held {
			state = "held"
		}
		handler := "auto"
		if !w.Handler.IsZero() {
			handler = w.Handler.String()
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			uri,
			title,
			handler,
			w.FileName,
			state,
			formatAge(time.Since(w.Timestamp)),
		})
	}
	return cmdCommon.RenderTable(
		[]string{"#", "URL", "Title", "Handler", "File", "State", "Queued"},
		rows,
		[]cmdCommon.Align{cmdCommon.AlignRight},
	)
}

// formatAge renders d coarsely, e.g. "3m ago".
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

func remove(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	uris := ctx.Args()
	if len(uris) == 0 {
		return cmdCommon.PrintErrWithCmdHelp(ctx, errNoURL)
	}
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "rm", "new_client", err)
		return nil
	}
	defer client.Close()
	n, err := client.Remove(uris...)
	if err != nil {
		if code, ok := wishcli.ErrorCode(err); ok && code == codeWishNotFound {
			fmt.Println("No matching wish queued")
			return nil
		}
		cmdCommon.PrintRuntimeErr(ctx, "rm", "remove", err)
		return nil
	}
	fmt.Printf("Removed %d wish(es)\n", n)
	return nil
}

// parsePosition reads the queue position from the first argument.
func parsePosition(ctx *cli.Context) (int, error) {
	arg := ctx.Args().First()
	if arg == "" {
		return 0, errNoPosition
	}
	pos, err := strconv.Atoi(arg)
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("invalid position %q", arg)
	}
	return pos, nil
}

func moveUp(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	pos, err := parsePosition(ctx)
	if err != nil {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "up", "new_client", err)
		return nil
	}
	defer client.Close()
	moved, err := client.MoveUp(pos, upSteps)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "up", "move_up", err)
		return nil
	}
	if !moved {
		fmt.Println("Nothing moved")
		return nil
	}
	fmt.Println("Moved")
	return nil
}

func hold(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	pos, err := parsePosition(ctx)
	if err != nil {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "hold", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.ToggleHeld(pos); err != nil {
		if code, ok := wishcli.ErrorCode(err); ok && code == codeWishNotFound {
			fmt.Printf("No wish at position %d\n", pos)
			return nil
		}
		cmdCommon.PrintRuntimeErr(ctx, "hold", "toggle_held", err)
		return nil
	}
	fmt.Println("Toggled")
	return nil
}

func next(ctx *cli.Context) error {
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "next", "new_client", err)
		return nil
	}
	defer client.Close()
	dispatched, err := client.Next()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "next", "next_please", err)
		return nil
	}
	if !dispatched {
		fmt.Println("Nothing dispatched")
		return nil
	}
	fmt.Println("Dispatched")
	return nil
}

func setName(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if ctx.NArg() != 2 {
		return cmdCommon.PrintErrWithCmdHelp(ctx, errors.New("expected <url> <file name>"))
	}
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "setname", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.SetFileName(ctx.Args().Get(0), ctx.Args().Get(1)); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "setname", "set_file_name", err)
		return nil
	}
	fmt.Println("File name recorded")
	return nil
}

func clearQueue(ctx *cli.Context) error {
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "clear", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.Clear(); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "clear", "clear", err)
		return nil
	}
	fmt.Println("Queue cleared")
	return nil
}
