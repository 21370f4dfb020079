// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP/SSE server"`
	Run      RunCmd      `cmd:"" help:"Execute a goal and stream progress"`
	Sessions SessionsCmd `cmd:"" help:"List recent sessions"`
	Show     ShowCmd     `cmd:"" help:"Show a session transcript"`
	Resume   ResumeCmd   `cmd:"" help:"Resume a paused session"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`

	Config string `help:"Config file path" type:"path"`
	Memory bool   `help:"Use the in-memory store (no durability)"`
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides config)"`
}

// RunCmd executes a single goal from the command line.
type RunCmd struct {
	Goal string `arg:"" help:"Goal to execute"`
}

// SessionsCmd lists recent sessions.
type SessionsCmd struct {
	Limit int `default:"20" help:"Maximum sessions to list"`
}

// ShowCmd renders a session transcript.
type ShowCmd struct {
	Session string `arg:"" help:"Session id"`
	NoPager bool   `help:"Print to stdout instead of the pager"`
	Follow  bool   `short:"f" help:"Keep the view updated as the session progresses"`
}

// ResumeCmd resumes a paused session and streams progress.
type ResumeCmd struct {
	Session string `arg:"" help:"Session id"`
	Input   string `short:"i" help:"Message to append before resuming"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
