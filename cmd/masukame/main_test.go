package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func devArgs(t *testing.T, args ...string) []string {
	dir := t.TempDir()
	return append([]string{
		"--env", "development",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--db", filepath.Join(dir, "site.db"),
	}, args...)
}

func TestCheckWallet(t *testing.T) {
	lower := "0x" + strings.Repeat("ab", 20)
	out, err := run(t, "check-wallet", lower)
	if err != nil || !strings.HasPrefix(out, "success") {
		t.Fatalf("lowercase: %v %q", err, out)
	}

	if _, err := run(t, "check-wallet", "0x123"); err == nil {
		t.Error("short address accepted")
	}

	out, err = run(t, "check-wallet", lower, "--confirm", "0x"+strings.Repeat("cd", 20))
	if err == nil || !strings.Contains(out, "Wallet addresses do not match") {
		t.Errorf("mismatch: %v %q", err, out)
	}
}

func TestCheckWallet_Checksum(t *testing.T) {
	// EIP-55 reference vector.
	good := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	out, err := run(t, "check-wallet", good)
	if err != nil || !strings.Contains(out, "checksum\t"+good) {
		t.Fatalf("valid checksum: %v %q", err, out)
	}
	bad := "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	if _, err := run(t, "check-wallet", bad); err == nil {
		t.Error("bad checksum accepted")
	}
	if _, err := run(t, "check-wallet", "--lenient", bad); err != nil {
		t.Errorf("lenient: %v", err)
	}
}

func TestPrice(t *testing.T) {
	out, err := run(t, devArgs(t, "price", "3000", "--currency", "JPY", "--from")...)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "From Approx. ¥445,500" {
		t.Errorf("out = %q", out)
	}
	if _, err := run(t, devArgs(t, "price", "3000", "--currency", "GBP")...); err == nil {
		t.Error("unsupported currency accepted")
	}
}

func TestSearchAndStats(t *testing.T) {
	out, err := run(t, devArgs(t, "search", "msk-003", "--transfers")...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"serial": "003"`) || !strings.Contains(out, `"transfers"`) {
		t.Errorf("search = %s", out)
	}
	out, err = run(t, devArgs(t, "stats")...)
	if err != nil || !strings.Contains(out, `"totalMinted": 12`) {
		t.Errorf("stats: %v %s", err, out)
	}
}

func TestOutboxRouteAndList(t *testing.T) {
	args := devArgs(t)
	out, err := run(t, append(args, "outbox", "route", "newsletter", "--strategy", "noop")...)
	if err != nil || !strings.Contains(out, "form_newsletter -> noop") {
		t.Fatalf("route: %v %q", err, out)
	}
	out, err = run(t, append(args, "outbox", "list")...)
	if err != nil || !strings.HasPrefix(out, "ID") {
		t.Fatalf("list: %v %q", err, out)
	}
	if _, err := run(t, append(args, "outbox", "route", "x", "--config-json", "{")...); err == nil {
		t.Error("bad config accepted")
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "search", "stats", "price", "check-wallet", "outbox", "mcp"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %s missing: %v", name, err)
		}
	}
	if _, err := run(t, "mcp", "extra"); err == nil {
		t.Error("mcp accepted arguments")
	}
}
