package main

import (
	"bytes"
	"testing"
)

func resetRootConfiguration() {
	rootConfiguration.help = false
	rootConfiguration.version = false
	rootConfiguration.kill = false
	rootConfiguration.debugLevel = 0
	rootConfiguration.configFiles = nil
}

func TestRootCommandVersion(t *testing.T) {
	resetRootConfiguration()
	defer resetRootConfiguration()

	var out bytes.Buffer
	rootCommand.SetOut(&out)
	rootCommand.SetArgs([]string{"--version"})

	if err := rootCommand.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "0.1.0\n" {
		t.Fatalf("unexpected version output: %q", got)
	}
}

func TestRootCommandNoWatchesPrintsHelp(t *testing.T) {
	resetRootConfiguration()
	defer resetRootConfiguration()

	var out bytes.Buffer
	rootCommand.SetOut(&out)
	rootCommand.SetArgs([]string{})

	if err := rootCommand.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Len() == 0 {
		t.Fatalf("expected help output when no watches are configured")
	}
}

func TestRootCommandKillWithoutRunningDaemonFails(t *testing.T) {
	resetRootConfiguration()
	defer resetRootConfiguration()

	var out bytes.Buffer
	rootCommand.SetOut(&out)
	rootCommand.SetArgs([]string{"--kill"})

	if err := rootCommand.Execute(); err == nil {
		t.Fatalf("expected an error when killing a non-running daemon")
	}
}

func TestTooManyConfigFilesRejected(t *testing.T) {
	resetRootConfiguration()
	defer resetRootConfiguration()

	args := []string{}
	for i := 0; i <= maxConfigFiles; i++ {
		args = append(args, "-c", "/nonexistent.conf")
	}

	var out bytes.Buffer
	rootCommand.SetOut(&out)
	rootCommand.SetArgs(args)

	if err := rootCommand.Execute(); err == nil {
		t.Fatalf("expected an error when exceeding the configuration file limit")
	}
}
