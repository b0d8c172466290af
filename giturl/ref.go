package giturl

import (
	"errors"
	"path"
	"regexp"
	"strings"
)

// ErrEmptyIdentifier is returned by Validate for identifiers which
// do not contain a repository path.
var ErrEmptyIdentifier = errors.New("repository identifier is empty")

// user@host:path, only considered when no scheme is present
var scpLikeRgx = regexp.MustCompile(`^[^@/\s]+@([^:/\s]+):(.+)$`)

var schemePrefixes = []string{"ssh://", "https://", "http://"}

// Ref is a normalised repository identifier. Host is always lower case and
// Path is the namespace (possibly with sub groups) and the repository leaf
// without leading or trailing slashes and without the '.git' suffix.
type Ref struct {
	Host string
	Path string
}

// String returns the canonical 'host/namespace/repo.git' form
func (r Ref) String() string {
	return r.Host + "/" + r.Path + ".git"
}

// ProjectPath returns the full path of the project without the '.git' suffix.
// it is the value used as project ID by the GitLab API.
func (r Ref) ProjectPath() string {
	return r.Path
}

// Namespace returns the group path of the project. It is empty for
// projects at the root of the host.
func (r Ref) Namespace() string {
	ns := path.Dir(r.Path)
	if ns == "." {
		return ""
	}
	return ns
}

// Name returns the last element of the repository path
func (r Ref) Name() string {
	return path.Base(r.Path)
}

// HTTPSURL returns git URL of the repository over https
func (r Ref) HTTPSURL() string {
	return "https://" + r.String()
}

// Normalize converts repository references like
//   - git@gitlab.com:group/repo.git
//   - ssh://git@gitlab.com/group/repo.git
//   - https://gitlab.example.com/group/sub/repo
//   - gitlab.com/group/repo
//   - group/repo
//
// into a Ref. The first path segment is considered a host if it looks like
// one (contains a '.' or a port, or equals defaultHost) otherwise defaultHost
// is used and the whole remainder is the path.
// Normalize never fails, empty input must be rejected by the caller (see Validate).
func Normalize(raw, defaultHost string) Ref {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, ".git")

	var scheme string
	for _, p := range schemePrefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			scheme, s = p, s[len(p):]
			break
		}
	}

	if scheme == "" {
		if m := scpLikeRgx.FindStringSubmatch(s); m != nil {
			s = m[1] + "/" + m[2]
		}
	}

	host, repoPath := defaultHost, s
	if first, rest, _ := strings.Cut(s, "/"); looksLikeHost(first, defaultHost) {
		host, repoPath = first, rest
	}

	// user info is only meaningful for transport
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	// ssh port is not the port of the web/API host
	if scheme == "ssh://" {
		if h, _, found := strings.Cut(host, ":"); found {
			host = h
		}
	}

	return Ref{
		Host: strings.ToLower(strings.Trim(host, "/")),
		Path: strings.Trim(repoPath, "/"),
	}
}

func looksLikeHost(segment, defaultHost string) bool {
	if segment == "" {
		return false
	}
	return strings.Contains(segment, ".") ||
		strings.Contains(segment, ":") ||
		strings.EqualFold(segment, defaultHost)
}

// Validate returns ErrEmptyIdentifier if raw cannot be normalised into
// an identifier with a repository path
func Validate(raw, defaultHost string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrEmptyIdentifier
	}
	ref := Normalize(raw, defaultHost)
	if ref.Host == "" || ref.Path == "" {
		return ErrEmptyIdentifier
	}
	return nil
}
