package cmd

const DESCRIPTION = `
warpq keeps the links you want downloaded in a persistent queue and
hands them to a downloader, player or external program one at a time,
only while the network is usable under your metered and VPN policies.
`

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const (
	DaemonDescription = `The daemon command runs the queue in the foreground. It
watches the network, dispatches queued wishes when allowed
and serves the JSON-RPC API the other commands talk to.

Example:
        warpq daemon

`
	AddDescription = `The add command queues one or more urls. A url that is
already queued is not added twice.

Example:
        warpq add https://domain.com/file.zip
        warpq add --handler stream https://domain.com/live.m3u8

`
	ListDescription = `The list command displays the queue in dispatch order
together with the position used by "up" and "hold".

Example:
        warpq list

`
	RemoveDescription = `The rm command removes queued wishes by url.

Example:
        warpq rm https://domain.com/file.zip

`
	UpDescription = `The up command moves the wish at the given position one or
more steps towards the head of the queue.

Example:
        warpq up 3
        warpq up --steps 3 3

`
	HoldDescription = `The hold command toggles the held flag of the wish at the
given position. Held wishes are never dispatched.

Example:
        warpq hold 0

`
	NextDescription = `The next command asks the daemon to dispatch the first
eligible wish right away, bypassing the rate limit.

Example:
        warpq next

`
	SetNameDescription = `The setname command records the local file name used for
a url, so an interrupted transfer resumes into the same file.

Example:
        warpq setname https://domain.com/file.zip file.zip

`
	StateDescription = `The state command shows the connectivity state the
dispatcher currently sees and the policies it was reduced with.

Example:
        warpq state

`
	PolicyDescription = `The policy command changes whether metered networks may
be used and how VPN connections are treated. The policies
are stored and survive daemon restarts.

Example:
        warpq policy --allow-metered=false --vpn carrier

`
	HistoryDescription = `The history command displays the most recently dispatched
wishes.

Example:
        warpq history --limit 20

`
	ClearDescription = `The clear command drops every queued wish.

Example:
        warpq clear

`
	WatchDescription = `The watch command prints queue and network changes
until interrupted.

Example:
        warpq watch

`
)
