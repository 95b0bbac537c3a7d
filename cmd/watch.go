package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli"
	cmdCommon "github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/wishcli"
)

func watch(ctx *cli.Context) error {
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "watch", "new_client", err)
		return nil
	}
	defer client.Close()

	sctx, cancel := setupShutdownHandler()
	defer cancel()
	err = client.Watch(sctx, func(n wishcli.Notification) {
		printNotification(os.Stdout, time.Now(), n)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		cmdCommon.PrintRuntimeErr(ctx, "watch", "watch", err)
	}
	return nil
}

func printNotification(w io.Writer, at time.Time, n wishcli.Notification) {
	stamp := at.Format(time.TimeOnly)
	switch n.Method {
	case common.NotifyQueueChanged:
		var p common.QueueChanged
		if err := json.Unmarshal(n.Params, &p); err == nil {
			fmt.Fprintf(w, "%s queue: %d wish(es)\n", stamp, p.Length)
			return
		}
	case common.NotifyNetChanged:
		var p common.NetChanged
		if err := json.Unmarshal(n.Params, &p); err == nil {
			fmt.Fprintf(w, "%s network: %s -> %s\n", stamp, p.Old, p.New)
			return
		}
	}
	fmt.Fprintf(w, "%s %s %s\n", stamp, n.Method, string(n.Params))
}
