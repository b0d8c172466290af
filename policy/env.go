package policy

import (
	"fmt"
)

// environment variables consumed by the generated CI workflow
const (
	EnvMode    = "MIRROR_MODE"
	EnvKeyword = "MIRROR_KEYWORD"
	EnvTarget  = "GITLAB_TARGET"
)

// Env returns the environment variable contract for the given mode and
// normalised target identifier. keyword is empty when mode is always.
func Env(mode Mode, target string) map[string]string {
	env := map[string]string{
		EnvMode:    ModeAlways,
		EnvKeyword: "",
		EnvTarget:  target,
	}
	if k, ok := mode.(Keyword); ok {
		env[EnvMode] = ModeKeyword
		env[EnvKeyword] = k.Word()
	}
	return env
}

// FromEnv reads mode and target identifier from the environment using
// given lookup func (os.LookupEnv)
func FromEnv(lookup func(string) (string, bool)) (Mode, string, error) {
	modeName, _ := lookup(EnvMode)
	keyword, _ := lookup(EnvKeyword)
	target, _ := lookup(EnvTarget)

	mode, err := ParseMode(modeName, keyword)
	if err != nil {
		return nil, "", fmt.Errorf("invalid %s: %w", EnvMode, err)
	}
	return mode, target, nil
}
