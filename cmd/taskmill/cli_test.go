package main

import (
	"testing"

	"github.com/alecthomas/kong"
)

func TestRunCmd_Basic(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"run", "build a landing page"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Run.Goal != "build a landing page" {
		t.Errorf("expected goal to be captured, got %q", cli.Run.Goal)
	}
}

func TestServeCmd_AddrOverride(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"serve", "--addr", ":9000"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Serve.Addr != ":9000" {
		t.Errorf("expected addr :9000, got %q", cli.Serve.Addr)
	}
}

func TestShowCmd_Flags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"show", "abc123", "--no-pager"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Show.Session != "abc123" {
		t.Errorf("expected session abc123, got %q", cli.Show.Session)
	}
	if !cli.Show.NoPager {
		t.Error("expected no-pager to be true")
	}

	_, err = parser.Parse([]string{"show", "abc123", "-f"})
	if err != nil {
		t.Fatal(err)
	}
	if !cli.Show.Follow {
		t.Error("expected follow to be true")
	}
}

func TestResumeCmd_Input(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"resume", "abc123", "-i", "use a darker palette"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Resume.Session != "abc123" {
		t.Errorf("expected session abc123, got %q", cli.Resume.Session)
	}
	if cli.Resume.Input != "use a darker palette" {
		t.Errorf("expected input flag captured, got %q", cli.Resume.Input)
	}
}

func TestSessionsCmd_DefaultLimit(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"sessions"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Sessions.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", cli.Sessions.Limit)
	}
}

func TestGlobalFlags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"--memory", "sessions"})
	if err != nil {
		t.Fatal(err)
	}

	if !cli.Memory {
		t.Error("expected memory store flag to be true")
	}
}
