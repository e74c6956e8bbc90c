package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestVersionFlag(t *testing.T) {
	output, err := executeCommand(NewRootCmd(), "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "restapi version dev") {
		t.Errorf("expected version information, got: %s", output)
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := executeCommand(NewRootCmd(), "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "restapi version dev") {
		t.Errorf("expected version information, got: %s", output)
	}
}

func TestHelpListsCommands(t *testing.T) {
	output, err := executeCommand(NewRootCmd(), "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"serve", "migrate", "version", "RESTAPI_"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Setenv("RESTAPI_STORE__DRIVER", "memory")

	_, err := executeCommand(NewRootCmd(), "migrate")
	if err == nil || !strings.Contains(err.Error(), "store.driver=postgres") {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := executeCommand(NewRootCmd(), "frobnicate"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
