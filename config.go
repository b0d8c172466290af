package main

import (
	"fmt"
	"os"
	"path"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
	"github.com/hjoncour/gh-to-gl-migrator/policy"
	"github.com/hjoncour/gh-to-gl-migrator/repository"
	"github.com/hjoncour/gh-to-gl-migrator/syncer"
)

const (
	defaultTargetHost = "gitlab.com"
	defaultVisibility = "private"
	defaultRunTimeout = 5 * time.Minute
	defaultListen     = ":8080"
	defaultGithubURL  = "https://github.com"
)

var defaultRoot = path.Join(os.TempDir(), "gh-to-gl-migrator")

// Config is the complete configuration of the migrator
type Config struct {
	Source     repository.Config `yaml:"source"`
	Target     TargetConfig      `yaml:"target"`
	Policy     PolicyConfig      `yaml:"policy"`
	Sync       SyncConfig        `yaml:"sync"`
	Root       string            `yaml:"root"`
	RunTimeout time.Duration     `yaml:"run_timeout"`
	Webhook    WebhookConfig     `yaml:"webhook"`
}

type TargetConfig struct {
	// Repository is the target project identifier, any form accepted by giturl.Normalize
	Repository  string `yaml:"repository"`
	DefaultHost string `yaml:"default_host"`
	// URL overrides the git URL used for pushing, default is https URL of the repository
	URL             string `yaml:"url"`
	Token           string `yaml:"token"`
	CreateIfMissing bool   `yaml:"create_if_missing"`
	Visibility      string `yaml:"visibility"`
}

type PolicyConfig struct {
	Mode     string   `yaml:"mode"`
	Keyword  string   `yaml:"keyword"`
	Branches []string `yaml:"branches"`
}

type SyncConfig struct {
	// Tags defaults to true
	Tags      *bool    `yaml:"tags"`
	Prune     bool     `yaml:"prune"`
	Protected []string `yaml:"protected"`
}

type WebhookConfig struct {
	Listen string `yaml:"listen"`
	Secret string `yaml:"secret"`
}

// loadConfig reads config file if path is set, applies environment
// overrides and defaults and validates the result
func loadConfig(path string, lookup func(string) (string, bool)) (*Config, error) {
	conf := &Config{}

	if path != "" {
		var err error
		if conf, err = parseConfigFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(conf, lookup); err != nil {
		return nil, err
	}
	applyDefaults(conf)

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func parseConfigFile(path string) (*Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(yamlFile); err != nil {
		return nil, err
	}

	conf := &Config{}
	if err := yaml.Unmarshal(yamlFile, conf); err != nil {
		return nil, err
	}

	return conf, nil
}

// validateConfig checks all config sections for unexpected keys
func validateConfig(yamlData []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return err
	}

	if _, ok := raw["target"]; !ok {
		return fmt.Errorf("target config section is missing")
	}

	return checkKeys(raw, reflect.TypeOf(Config{}), "")
}

// checkKeys returns error for the first key of raw which is not a yaml
// field of typ, nested struct sections are checked recursively
func checkKeys(raw map[string]interface{}, typ reflect.Type, prefix string) error {
	allowedKeys := getAllowedKeys(typ)
	if key := findUnexpectedKey(raw, allowedKeys); key != "" {
		return fmt.Errorf("unexpected key: %s.%v", prefix, key)
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Type.Kind() != reflect.Struct || field.Type == reflect.TypeOf(time.Duration(0)) {
			continue
		}
		tag := yamlName(field)
		section, ok := raw[tag]
		if !ok || section == nil {
			continue
		}
		sectionMap, ok := section.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s.%s config section is not valid", prefix, tag)
		}
		if err := checkKeys(sectionMap, field.Type, prefix+"."+tag); err != nil {
			return err
		}
	}
	return nil
}

// getAllowedKeys retrieves a list of allowed keys from the specified struct type
func getAllowedKeys(typ reflect.Type) []string {
	var allowedKeys []string
	for i := 0; i < typ.NumField(); i++ {
		if tag := yamlName(typ.Field(i)); tag != "" && tag != "-" {
			allowedKeys = append(allowedKeys, tag)
		}
	}
	return allowedKeys
}

func yamlName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
	return name
}

func findUnexpectedKey(raw map[string]interface{}, allowedKeys []string) string {
	for key := range raw {
		if !slices.Contains(allowedKeys, key) {
			return key
		}
	}
	return ""
}

// applyEnv applies secrets and GitHub Actions / CI contract variables
func applyEnv(conf *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("GITLAB_TOKEN"); ok && v != "" {
		conf.Target.Token = v
	}
	if v, ok := lookup("WEBHOOK_SECRET"); ok && v != "" {
		conf.Webhook.Secret = v
	}

	auth := conf.Source.Auth
	if v, ok := lookup("GITHUB_TOKEN"); ok && v != "" && auth.Password == "" && auth.GithubAppID == "" {
		conf.Source.Auth.Password = v
	}

	// source repository of the workflow run
	if conf.Source.Remote == "" {
		if repo, ok := lookup("GITHUB_REPOSITORY"); ok && repo != "" {
			server, _ := lookup("GITHUB_SERVER_URL")
			if server == "" {
				server = defaultGithubURL
			}
			conf.Source.Remote = strings.TrimRight(server, "/") + "/" + repo + ".git"
		}
	}

	_, hasMode := lookup(policy.EnvMode)
	_, hasTarget := lookup(policy.EnvTarget)
	if !hasMode && !hasTarget {
		return nil
	}

	mode, target, err := policy.FromEnv(lookup)
	if err != nil {
		return err
	}
	if hasMode {
		conf.Policy.Mode = mode.Name()
		conf.Policy.Keyword = ""
		if k, ok := mode.(policy.Keyword); ok {
			conf.Policy.Keyword = k.Word()
		}
	}
	if target != "" {
		conf.Target.Repository = target
	}
	return nil
}

func applyDefaults(conf *Config) {
	if conf.Root == "" {
		conf.Root = defaultRoot
	}
	conf.Source.Root = repository.DefaultRepoDir(conf.Root)

	if conf.RunTimeout == 0 {
		conf.RunTimeout = defaultRunTimeout
	}
	if conf.Target.DefaultHost == "" {
		conf.Target.DefaultHost = defaultTargetHost
	}
	if conf.Target.Visibility == "" {
		conf.Target.Visibility = defaultVisibility
	}
	if conf.Policy.Mode == "" {
		conf.Policy.Mode = policy.ModeAlways
	}
	if conf.Sync.Tags == nil {
		tags := true
		conf.Sync.Tags = &tags
	}
	if conf.Webhook.Listen == "" {
		conf.Webhook.Listen = defaultListen
	}
}

// Validate returns error if config can't be used
func (c *Config) Validate() error {
	if err := giturl.Validate(c.Target.Repository, c.Target.DefaultHost); err != nil {
		return fmt.Errorf("invalid target repository: %w", err)
	}

	// source is only required by commands which mirror
	if c.Source.Remote != "" {
		if err := c.Source.Validate(); err != nil {
			return err
		}
	}

	if _, err := c.mirrorPolicy(); err != nil {
		return err
	}

	switch c.Target.Visibility {
	case "private", "internal", "public":
	default:
		return fmt.Errorf("invalid target visibility %q, must be one of private, internal, public", c.Target.Visibility)
	}

	for _, p := range c.Sync.Protected {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid protected branch pattern %q", p)
		}
	}

	if c.RunTimeout < 0 {
		return fmt.Errorf("run timeout cannot be negative")
	}
	return nil
}

func (c *Config) targetRef() giturl.Ref {
	return giturl.Normalize(c.Target.Repository, c.Target.DefaultHost)
}

func (c *Config) targetURL() string {
	if c.Target.URL != "" {
		return c.Target.URL
	}
	return c.targetRef().HTTPSURL()
}

func (c *Config) mirrorPolicy() (policy.Policy, error) {
	mode, err := policy.ParseMode(c.Policy.Mode, c.Policy.Keyword)
	if err != nil {
		return policy.Policy{}, err
	}
	return policy.New(mode, c.Policy.Branches)
}

func (c *Config) syncOptions() syncer.Options {
	return syncer.Options{
		Tags:      c.Sync.Tags == nil || *c.Sync.Tags,
		Prune:     c.Sync.Prune,
		Protected: c.Sync.Protected,
	}
}
