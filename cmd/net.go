package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli"
	cmdCommon "github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/netstate"
)

var errNoPolicyChange = errors.New("nothing to change, set allow-metered, vpn or vpn-carrier")

var policyFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "allow-metered, m",
		Usage: "allow dispatching over metered networks, --allow-metered=false forbids it",
	},
	cli.StringFlag{
		Name:  "vpn",
		Usage: "vpn policy: allow, never or always",
	},
	cli.BoolFlag{
		Name:  "vpn-carrier",
		Usage: "require a non-vpn network under a vpn, --vpn-carrier=false drops the requirement",
	},
}

func netState(ctx *cli.Context) error {
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "state", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.NetState()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "state", "net_state", err)
		return nil
	}
	fmt.Println(renderNetState(res))
	return nil
}

// policyParams builds the update from the flags that were set on ctx.
func policyParams(ctx *cli.Context) (common.SetPolicyParams, error) {
	var p common.SetPolicyParams
	if ctx.IsSet("allow-metered") {
		v := ctx.Bool("allow-metered")
		p.AllowMetered = &v
	}
	if ctx.IsSet("vpn") {
		v := strings.ToLower(strings.TrimSpace(ctx.String("vpn")))
		if _, err := netstate.ParseVPNPolicy(v); err != nil {
			return p, err
		}
		p.VPN = &v
	}
	if ctx.IsSet("vpn-carrier") {
		v := ctx.Bool("vpn-carrier")
		p.VPNRequiresCarrier = &v
	}
	if p.AllowMetered == nil && p.VPN == nil && p.VPNRequiresCarrier == nil {
		return p, errNoPolicyChange
	}
	return p, nil
}

func setPolicy(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	params, err := policyParams(ctx)
	if err != nil {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := newClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "policy", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.SetPolicy(params)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "policy", "set_policy", err)
		return nil
	}
	fmt.Println(renderNetState(res))
	return nil
}

func renderNetState(res *common.NetStateResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "State:          %s\n", res.State)
	fmt.Fprintf(&sb, "Notifications:  %s\n", yesNo(res.CanNotify))
	fmt.Fprintf(&sb, "Metered:        %s\n", yesNo(res.ActiveMetered))
	fmt.Fprintf(&sb, "Allow metered:  %s\n", yesNo(res.Policy.AllowMetered))
	fmt.Fprintf(&sb, "VPN policy:     %s\n", res.Policy.VPN)
	fmt.Fprintf(&sb, "VPN carrier:    %s", requiredOrNot(res.Policy.VPNRequiresCarrier))
	if len(res.Transports) == 0 {
		return sb.String()
	}
	rows := make([][]string, 0, len(res.Transports))
	for _, t := range res.Transports {
		rows = append(rows, []string{
			t.Name,
			strconv.FormatBool(t.Default),
			strconv.FormatBool(t.VPN),
			strconv.FormatBool(t.Metered),
			strconv.FormatBool(t.Blocked),
		})
	}
	sb.WriteString("\n\n")
	sb.WriteString(cmdCommon.RenderTable(
		[]string{"Interface", "Default", "VPN", "Metered", "Blocked"},
		rows,
		nil,
	))
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func requiredOrNot(b bool) string {
	if b {
		return "required"
	}
	return "not required"
}
