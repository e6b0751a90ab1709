package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

func TestCheckReportsUnavailableTools(t *testing.T) {
	statuses := Check(context.Background(), []Tool{
		{Name: "Encoder", Command: "airshift-no-such-binary"},
		{Name: "Probe", Command: "  ", Optional: true},
	})
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("missing binary reported as available")
	}
	if statuses[0].Detail == "" {
		t.Fatal("missing binary carries no detail")
	}
	if statuses[1].Detail != "command not configured" {
		t.Fatalf("blank command detail = %q", statuses[1].Detail)
	}
	if !statuses[1].Optional {
		t.Fatal("optional flag dropped")
	}
}

func TestCheckProbesVersion(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestVersionHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	statuses := Check(context.Background(), []Tool{{Name: "Encoder", Command: "sh"}})
	if !statuses[0].Available {
		t.Fatalf("status = %+v, want available", statuses[0])
	}
	if statuses[0].Version != "ffmpeg version 7.1" {
		t.Fatalf("version = %q, want first output line", statuses[0].Version)
	}
}

func TestVersionHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Println("ffmpeg version 7.1")
	fmt.Println("built with gcc")
	os.Exit(0)
}
