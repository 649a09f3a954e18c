package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, dataDir, backend string, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"TRADEPOST_STORE_BACKEND", "TRADEPOST_DATA_DIR", "TRADEPOST_DISTANCE_MODE", "TRADEPOST_FIXED_DISTANCE"} {
		t.Setenv(k, "")
	}
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	base := []string{
		"--settings", filepath.Join(dataDir, "missing.yaml"),
		"--data-dir", dataDir,
		"--backend", backend,
		"--log-level", "error",
	}
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dataDir, backend string, args ...string) string {
	t.Helper()
	out, err := run(t, dataDir, backend, args...)
	if err != nil {
		t.Fatalf("shopctl %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestShopctl_ShopLifecycle(t *testing.T) {
	for _, backend := range []string{"sqlite", "json"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			mustRun(t, dir, backend, "shops", "create", "owner-a", "Bakery", "--owner-name", "Alice")
			mustRun(t, dir, backend, "shops", "create", "admin", "Bank")
			if out := mustRun(t, dir, backend, "trades", "add", "owner-a", "bakery", "EMERALD", "2", "BREAD", "3"); !strings.Contains(out, "#1") {
				t.Fatalf("add output: %q", out)
			}
			mustRun(t, dir, backend, "trader", "link", "owner-a", "Bakery", "trader-1")

			out := mustRun(t, dir, backend, "trader", "find", "trader-1")
			if !strings.Contains(out, "Bakery") || !strings.Contains(out, "2 x EMERALD -> 3 x BREAD") {
				t.Fatalf("find output: %q", out)
			}
			out = mustRun(t, dir, backend, "shops", "list")
			if !strings.Contains(out, "[admin]") || !strings.Contains(out, "Total: 2 shops") {
				t.Fatalf("list output: %q", out)
			}

			mustRun(t, dir, backend, "shops", "rename", "owner-a", "Bakery", "Bread Shop")
			mustRun(t, dir, backend, "trades", "update", "owner-a", "bread shop", "1", "EMERALD", "1", "BREAD", "1")
			mustRun(t, dir, backend, "trades", "remove", "owner-a", "bread shop", "1")
			mustRun(t, dir, backend, "trader", "unlink", "owner-a", "Bread Shop")
			if _, err := run(t, dir, backend, "trader", "find", "trader-1"); err == nil {
				t.Fatalf("find after unlink should fail")
			}
			mustRun(t, dir, backend, "shops", "delete", "owner-a", "Bread Shop")
			if _, err := run(t, dir, backend, "shops", "show", "owner-a", "Bread Shop"); err == nil {
				t.Fatalf("show after delete should fail")
			}
		})
	}
}

func TestShopctl_RejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "postgres", "shops", "list"); err == nil {
		t.Fatalf("unknown backend accepted")
	}
	mustRun(t, dir, "json", "shops", "create", "owner-a", "Bakery")
	if _, err := run(t, dir, "json", "trades", "add", "owner-a", "Bakery", "EMERALD", "two", "BREAD", "1"); err == nil {
		t.Fatalf("non-numeric quantity accepted")
	}
	if _, err := run(t, dir, "json", "shops", "create", "owner-b", "bakery"); err != nil {
		t.Fatalf("other owner may reuse a name: %v", err)
	}
}

func TestShopctl_MigrateAndDump(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "sqlite", "shops", "create", "owner-a", "Bakery")
	mustRun(t, dir, "sqlite", "trades", "add", "owner-a", "Bakery", "EMERALD", "1", "BREAD", "2")

	if out := mustRun(t, dir, "sqlite", "migrate", "--to", "json"); !strings.Contains(out, "copied 1 of 1") {
		t.Fatalf("migrate output: %q", out)
	}
	if out := mustRun(t, dir, "json", "shops", "show", "owner-a", "bakery"); !strings.Contains(out, "1 x EMERALD -> 2 x BREAD") {
		t.Fatalf("json show: %q", out)
	}

	dumpPath := filepath.Join(dir, "shops.jsonl.zst")
	mustRun(t, dir, "json", "export", dumpPath)
	other := t.TempDir()
	if out := mustRun(t, other, "sqlite", "import", dumpPath); !strings.Contains(out, "imported 1 shops, skipped 0") {
		t.Fatalf("import output: %q", out)
	}
}

func TestShopctl_Simulate(t *testing.T) {
	dir := t.TempDir()
	items := filepath.Join(dir, "items.json")
	if err := os.WriteFile(items, []byte(`[{"id":"EMERALD"},{"id":"BREAD"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRun(t, dir, "json", "shops", "create", "owner-a", "Bakery")
	mustRun(t, dir, "json", "trades", "add", "owner-a", "Bakery", "EMERALD", "3", "BREAD", "1")
	mustRun(t, dir, "json", "trader", "link", "owner-a", "Bakery", "trader-1")

	out := mustRun(t, dir, "json", "simulate", "trader-1", "--config-dir", dir,
		"--buyer", "EMERALD:10", "--container", "1,0,0:BREAD:5")
	if !strings.Contains(out, "catalog: 2 items, defs ") {
		t.Fatalf("catalog line missing: %q", out)
	}
	if !strings.Contains(out, "status: ok") || !strings.Contains(out, "BREAD x1") || !strings.Contains(out, "EMERALD x7") {
		t.Fatalf("simulate output: %q", out)
	}

	out = mustRun(t, dir, "json", "simulate", "trader-1", "--config-dir", dir,
		"--buyer", "EMERALD:10", "--container", "5,0,0:BREAD:5")
	if !strings.Contains(out, "status: out_of_stock") {
		t.Fatalf("far container should be out of range: %q", out)
	}
}
