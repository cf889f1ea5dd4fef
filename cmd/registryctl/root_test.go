// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	httpAdapter "github.com/leseb/fileregistry/pkg/adapters/http"
	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/events"
	"github.com/leseb/fileregistry/pkg/storage/memory"
	"github.com/leseb/fileregistry/pkg/storage/registrytest"
)

const alice = "0x1111111111111111111111111111111111111111"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	// Keep a developer's real config out of the tests.
	t.Setenv("HOME", t.TempDir())
	dispatcher := events.NewDispatcher(events.NewMemoryJournal(), nil, nil)
	reg := registry.New(memory.New(), registry.WithNotifier(dispatcher))
	srv := httptest.NewServer(httpAdapter.New(reg, dispatcher, nil))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestFingerprint(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeFile(t, "hello world")

	out, err := run(t, "fingerprint", path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if out != want {
		t.Errorf("fingerprint = %q, want %q", out, want)
	}
}

func TestFingerprintAlgorithm(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeFile(t, "")

	out, err := run(t, "fingerprint", "--algorithm", "keccak256", path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if out != "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470" {
		t.Errorf("keccak256 fingerprint = %q", out)
	}

	if _, err := run(t, "fingerprint", "--algorithm", "md5", path); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestRegisterAndLookup(t *testing.T) {
	srv := newServer(t)
	path := writeFile(t, "hello world")
	sig := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	out, err := run(t, "--server", srv.URL, "--identity", alice, "register", "--file", path)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(out, `"id": 1`) || !strings.Contains(out, `"name": "report.txt"`) {
		t.Errorf("register output = %s", out)
	}

	out, err = run(t, "--server", srv.URL, "id", sig)
	if err != nil || out != "1" {
		t.Errorf("id = %q, %v; want 1", out, err)
	}

	out, err = run(t, "--server", srv.URL, "owner", "1")
	if err != nil || out != alice {
		t.Errorf("owner = %q, %v; want %q", out, err, alice)
	}

	out, err = run(t, "--server", srv.URL, "owner-of", sig)
	if err != nil || out != alice {
		t.Errorf("owner-of = %q, %v; want %q", out, err, alice)
	}

	out, err = run(t, "--server", srv.URL, "--identity", alice, "list")
	if err != nil || !strings.Contains(out, "1") {
		t.Errorf("list = %q, %v", out, err)
	}

	out, err = run(t, "--server", srv.URL, "list", "nobody")
	if err != nil || out != "[]" {
		t.Errorf("list nobody = %q, %v; want []", out, err)
	}

	out, err = run(t, "--server", srv.URL, "events")
	if err != nil || !strings.Contains(out, sig) {
		t.Errorf("events = %q, %v", out, err)
	}
}

func TestIdentityFromEnv(t *testing.T) {
	srv := newServer(t)
	t.Setenv("REGISTRYCTL_SERVER", srv.URL)
	t.Setenv("REGISTRYCTL_IDENTITY", alice)

	if _, err := run(t, "register", "--name", "Sales report", "--signature", registrytest.SalesSignature); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := run(t, "owner", "1")
	if err != nil || out != alice {
		t.Errorf("owner = %q, %v; want %q", out, err, alice)
	}
}

func TestConfigFile(t *testing.T) {
	srv := newServer(t)
	cfg := filepath.Join(t.TempDir(), "registryctl.yaml")
	content := "server: " + srv.URL + "\nidentity: " + alice + "\n"
	if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := run(t, "--config", cfg, "register", "--name", "IT", "--signature", registrytest.ITSignature); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := run(t, "--config", cfg, "owner-of", registrytest.ITSignature)
	if err != nil || out != alice {
		t.Errorf("owner-of = %q, %v; want %q", out, err, alice)
	}
}

func TestCommandErrors(t *testing.T) {
	srv := newServer(t)
	if _, err := run(t, "--server", srv.URL, "--identity", alice, "register", "--name", "Sales", "--signature", registrytest.SalesSignature); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"duplicate", []string{"--identity", alice, "register", "--signature", registrytest.SalesSignature}, registry.ErrDuplicateSignature},
		{"short signature", []string{"--identity", alice, "register", "--signature", "too short"}, registry.ErrInvalidSignatureLength},
		{"bad id", []string{"owner", "abc"}, registry.ErrInvalidID},
		{"zero id", []string{"owner", "0"}, registry.ErrInvalidID},
		{"unknown id", []string{"owner", "9"}, registry.ErrIDNotFound},
		{"unknown signature", []string{"id", registrytest.MarketingSignature}, registry.ErrSignatureNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"--server", srv.URL}, tt.args...)...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("register without identity", func(t *testing.T) {
		_, err := run(t, "--server", srv.URL, "register", "--signature", registrytest.ITSignature)
		if err == nil || !strings.Contains(err.Error(), "identity is required") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("register needs a source", func(t *testing.T) {
		if _, err := run(t, "--server", srv.URL, "--identity", alice, "register", "--name", "x"); err == nil {
			t.Error("expected error without --file or --signature")
		}
	})
}
