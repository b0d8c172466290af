package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
	"github.com/hjoncour/gh-to-gl-migrator/policy"
	"github.com/hjoncour/gh-to-gl-migrator/repository"
	"github.com/hjoncour/gh-to-gl-migrator/syncer"
)

func lookupMap(envs map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := envs[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unable to write config err:%v", err)
	}
	return path
}

func Test_validateConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid",
			yaml: `
source:
  remote: https://github.com/org/repo.git
  auth:
    password: secret
target:
  repository: group/sub/repo
  create_if_missing: true
policy:
  mode: keyword
  keyword: "[mirror]"
sync:
  prune: true
  protected: ["release/**"]
run_timeout: 1m
webhook:
  listen: ":9000"
`,
		},
		{
			name:    "missing target",
			yaml:    "source:\n  remote: https://github.com/org/repo.git\n",
			wantErr: "target config section is missing",
		},
		{
			name:    "unknown top level key",
			yaml:    "target:\n  repository: group/repo\nrepositories: []\n",
			wantErr: "unexpected key: .repositories",
		},
		{
			name:    "unknown nested key",
			yaml:    "target:\n  repository: group/repo\n  branch: main\n",
			wantErr: "unexpected key: .target.branch",
		},
		{
			name:    "unknown auth key",
			yaml:    "target:\n  repository: group/repo\nsource:\n  auth:\n    token: abc\n",
			wantErr: "unexpected key: .source.auth.token",
		},
		{
			name:    "root of source is not configurable",
			yaml:    "target:\n  repository: group/repo\nsource:\n  root: /tmp\n",
			wantErr: "unexpected key: .source.root",
		},
		{
			name:    "invalid section",
			yaml:    "target: group/repo\n",
			wantErr: ".target config section is not valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validateConfig() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateConfig() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func Test_loadConfig(t *testing.T) {
	path := writeConfig(t, `
source:
  remote: https://github.com/org/repo.git
target:
  repository: https://gitlab.example.com/group/sub/repo
policy:
  mode: keyword
  keyword: "[mirror]"
  branches: ["feature/**"]
sync:
  tags: false
  prune: true
  protected: ["release/**"]
`)

	conf, err := loadConfig(path, lookupMap(map[string]string{
		"GITLAB_TOKEN":   "gl-token",
		"GITHUB_TOKEN":   "gh-token",
		"WEBHOOK_SECRET": "hook-secret",
	}))
	if err != nil {
		t.Fatalf("loadConfig() unexpected error: %v", err)
	}

	if got, want := conf.targetRef(), (giturl.Ref{Host: "gitlab.example.com", Path: "group/sub/repo"}); got != want {
		t.Errorf("targetRef() got %v want %v", got, want)
	}
	if got, want := conf.targetURL(), "https://gitlab.example.com/group/sub/repo.git"; got != want {
		t.Errorf("targetURL() got %v want %v", got, want)
	}
	if conf.Target.Token != "gl-token" {
		t.Errorf("target token not set from env got %q", conf.Target.Token)
	}
	if conf.Source.Auth.Password != "gh-token" {
		t.Errorf("source password not set from env got %q", conf.Source.Auth.Password)
	}
	if conf.Webhook.Secret != "hook-secret" {
		t.Errorf("webhook secret not set from env got %q", conf.Webhook.Secret)
	}
	if got, want := conf.Source.Root, repository.DefaultRepoDir(defaultRoot); got != want {
		t.Errorf("source root got %v want %v", got, want)
	}

	wantOpts := syncer.Options{Tags: false, Prune: true, Protected: []string{"release/**"}}
	if diff := cmp.Diff(wantOpts, conf.syncOptions()); diff != "" {
		t.Errorf("syncOptions() mismatch (-want +got):\n%s", diff)
	}

	p, err := conf.mirrorPolicy()
	if err != nil {
		t.Fatalf("mirrorPolicy() unexpected error: %v", err)
	}
	k, ok := p.Mode.(policy.Keyword)
	if !ok || k.Word() != "[mirror]" {
		t.Errorf("mirrorPolicy() got mode %v", p.Mode)
	}
	if diff := cmp.Diff([]string{"feature/**"}, p.Branches); diff != "" {
		t.Errorf("branches mismatch (-want +got):\n%s", diff)
	}
}

func Test_loadConfig_envOnly(t *testing.T) {
	conf, err := loadConfig("", lookupMap(map[string]string{
		"GITHUB_REPOSITORY": "org/repo",
		"GITHUB_TOKEN":      "gh-token",
		policy.EnvMode:      "keyword",
		policy.EnvKeyword:   "SYNC",
		policy.EnvTarget:    "group/repo",
	}))
	if err != nil {
		t.Fatalf("loadConfig() unexpected error: %v", err)
	}

	want := &Config{
		Source: repository.Config{
			Remote: "https://github.com/org/repo.git",
			Root:   repository.DefaultRepoDir(defaultRoot),
			Auth:   repository.Auth{Password: "gh-token"},
		},
		Target: TargetConfig{
			Repository:  "group/repo",
			DefaultHost: defaultTargetHost,
			Visibility:  defaultVisibility,
		},
		Policy:     PolicyConfig{Mode: policy.ModeKeyword, Keyword: "SYNC"},
		Sync:       SyncConfig{Tags: ptr(true)},
		Root:       defaultRoot,
		RunTimeout: defaultRunTimeout,
		Webhook:    WebhookConfig{Listen: defaultListen},
	}
	if diff := cmp.Diff(want, conf); diff != "" {
		t.Errorf("loadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func Test_applyEnv(t *testing.T) {
	t.Run("enterprise server", func(t *testing.T) {
		conf := &Config{}
		err := applyEnv(conf, lookupMap(map[string]string{
			"GITHUB_REPOSITORY": "org/repo",
			"GITHUB_SERVER_URL": "https://github.example.com/",
		}))
		if err != nil {
			t.Fatalf("applyEnv() unexpected error: %v", err)
		}
		if got, want := conf.Source.Remote, "https://github.example.com/org/repo.git"; got != want {
			t.Errorf("source remote got %v want %v", got, want)
		}
	})

	t.Run("configured remote is kept", func(t *testing.T) {
		conf := &Config{Source: repository.Config{Remote: "git@github.com:org/other.git"}}
		if err := applyEnv(conf, lookupMap(map[string]string{"GITHUB_REPOSITORY": "org/repo"})); err != nil {
			t.Fatalf("applyEnv() unexpected error: %v", err)
		}
		if got, want := conf.Source.Remote, "git@github.com:org/other.git"; got != want {
			t.Errorf("source remote got %v want %v", got, want)
		}
	})

	t.Run("github token doesn't override app auth", func(t *testing.T) {
		conf := &Config{Source: repository.Config{Auth: repository.Auth{GithubAppID: "1"}}}
		if err := applyEnv(conf, lookupMap(map[string]string{"GITHUB_TOKEN": "gh-token"})); err != nil {
			t.Fatalf("applyEnv() unexpected error: %v", err)
		}
		if conf.Source.Auth.Password != "" {
			t.Errorf("password should not be set got %q", conf.Source.Auth.Password)
		}
	})

	t.Run("mode always clears keyword", func(t *testing.T) {
		conf := &Config{Policy: PolicyConfig{Mode: "keyword", Keyword: "SYNC"}}
		if err := applyEnv(conf, lookupMap(map[string]string{policy.EnvMode: "always"})); err != nil {
			t.Fatalf("applyEnv() unexpected error: %v", err)
		}
		if diff := cmp.Diff(PolicyConfig{Mode: "always"}, conf.Policy); diff != "" {
			t.Errorf("policy mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty keyword", func(t *testing.T) {
		conf := &Config{}
		if err := applyEnv(conf, lookupMap(map[string]string{policy.EnvMode: "keyword"})); err == nil {
			t.Errorf("applyEnv() expected error for empty keyword")
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		conf := &Config{
			Source: repository.Config{Remote: "https://github.com/org/repo.git"},
			Target: TargetConfig{Repository: "group/repo"},
		}
		applyDefaults(conf)
		return conf
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no source", func(c *Config) { c.Source.Remote = "" }, false},
		{"empty target", func(c *Config) { c.Target.Repository = "  " }, true},
		{"invalid source", func(c *Config) { c.Source.Remote = "github.com/org/repo" }, true},
		{"keyword without word", func(c *Config) { c.Policy.Mode = "keyword" }, true},
		{"unknown mode", func(c *Config) { c.Policy.Mode = "sometimes" }, true},
		{"invalid visibility", func(c *Config) { c.Target.Visibility = "secret" }, true},
		{"invalid protected glob", func(c *Config) { c.Sync.Protected = []string{"release/[a"} }, true},
		{"invalid branch glob", func(c *Config) { c.Policy.Branches = []string{"feature/[a"} }, true},
		{"negative timeout", func(c *Config) { c.RunTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := valid()
			tt.modify(conf)
			if err := conf.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_targetURL_override(t *testing.T) {
	conf := &Config{Target: TargetConfig{
		Repository:  "group/repo",
		DefaultHost: "gitlab.com",
		URL:         "git@gitlab.com:group/repo.git",
	}}
	if got, want := conf.targetURL(), "git@gitlab.com:group/repo.git"; got != want {
		t.Errorf("targetURL() got %v want %v", got, want)
	}
}

func ptr[T any](v T) *T {
	return &v
}
