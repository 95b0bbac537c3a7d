package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/warpdl/warpq/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// currentBuildArgs is what the daemon reports from system.getVersion and
// what the client compares the daemon against.
var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "warpq",
		HelpName:              "warpq",
		Usage:                 "A deferred download-request queue.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "warpq <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "daemon",
				Usage:              "runs the queue daemon in the foreground",
				Action:             daemon,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        DaemonDescription,
			},
			{
				Name:   "stop",
				Usage:  "stops a running daemon",
				Action: stopDaemon,
			},
			{
				Name:                   "add",
				Aliases:                []string{"a"},
				Usage:                  "queues one or more urls",
				Action:                 add,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            AddDescription,
				UseShortOptionHandling: true,
				Flags:                  addFlags,
			},
			{
				Name:               "list",
				Aliases:            []string{"l"},
				Usage:              "displays the queued wishes",
				Action:             list,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ListDescription,
				Flags:              lsFlags,
			},
			{
				Name:               "rm",
				Usage:              "removes wishes by url",
				Action:             remove,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        RemoveDescription,
			},
			{
				Name:               "up",
				Usage:              "moves a wish towards the head of the queue",
				Action:             moveUp,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        UpDescription,
				Flags:              upFlags,
			},
			{
				Name:               "hold",
				Usage:              "toggles the held flag of a wish",
				Action:             hold,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        HoldDescription,
			},
			{
				Name:               "next",
				Aliases:            []string{"n"},
				Usage:              "dispatches the next eligible wish now",
				Action:             next,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        NextDescription,
			},
			{
				Name:               "setname",
				Usage:              "records the local file name of a url",
				Action:             setName,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        SetNameDescription,
			},
			{
				Name:               "state",
				Aliases:            []string{"s"},
				Usage:              "shows the connectivity state",
				Action:             netState,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StateDescription,
			},
			{
				Name:               "policy",
				Usage:              "changes the metered and vpn policies",
				Action:             setPolicy,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        PolicyDescription,
				Flags:              policyFlags,
			},
			{
				Name:               "history",
				Usage:              "displays recently dispatched wishes",
				Action:             showHistory,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        HistoryDescription,
				Flags:              historyFlags,
			},
			{
				Name:               "clear",
				Aliases:            []string{"c"},
				Usage:              "drops every queued wish",
				Action:             clearQueue,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ClearDescription,
			},
			{
				Name:               "watch",
				Aliases:            []string{"w"},
				Usage:              "prints queue and network changes as they happen",
				Action:             watch,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        WatchDescription,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of warpq",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:      list,
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
