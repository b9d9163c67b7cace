package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/bugwork/pkg/config"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a.png", []string{"a.png"}},
		{" a.png, b.log ,,", []string{"a.png", "b.log"}},
		{",", nil},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := applyOverrides(config.DefaultConfig(), overrides{
		url:    " http://localhost:8080/ ",
		legacy: true,
		inbox:  "/tmp/inbox",
		poll:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "http://localhost:8080" {
		t.Errorf("url = %q", cfg.Server.URL)
	}
	if !cfg.Legacy() {
		t.Error("legacy flag ignored")
	}
	if cfg.Share.InboxDir != "/tmp/inbox" || !cfg.Share.ForcePoll {
		t.Errorf("share = %+v", cfg.Share)
	}
}

func TestApplyOverrides_KeepsConfig(t *testing.T) {
	base := config.DefaultConfig()
	cfg, err := applyOverrides(base, overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != base.Server.URL || cfg.Mode != config.ModeFull {
		t.Errorf("config changed without overrides: %+v", cfg)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Setenv("BUGWORK_URL", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "mode: 1\nserver:\n  url: https://bugs.example.org\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Legacy() || cfg.Server.URL != "https://bugs.example.org" {
		t.Errorf("cfg = %+v", cfg)
	}

	cfg, err = loadConfig(path, overrides{url: "http://127.0.0.1:9000"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "http://127.0.0.1:9000" {
		t.Errorf("flag did not win: %q", cfg.Server.URL)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mode: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path, overrides{}); err == nil {
		t.Fatal("expected an error for mode 7")
	}
}

func TestOpenLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bugwork.log")
	logger, closeLog, err := openLog(path)
	if err != nil {
		t.Fatal(err)
	}
	logger.Printf("hello")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("log = %q", data)
	}
}
