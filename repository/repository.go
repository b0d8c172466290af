package repository

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
	"github.com/hjoncour/gh-to-gl-migrator/internal/lock"
	"github.com/hjoncour/gh-to-gl-migrator/internal/utils"
	"github.com/hjoncour/gh-to-gl-migrator/pkg/auth"
)

const (
	defaultDirMode fs.FileMode = os.FileMode(0755) // 'rwxr-xr-x'
	defaultRefSpec             = "+refs/*:refs/*"
)

var defaultGitExec = exec.Command("git").String()

// Repository represents the local mirror of the source repository.
// A Repository is safe for concurrent use by multiple goroutines.
type Repository struct {
	lock      lock.RWMutex // repository will be locked during fetch
	gitURL    *giturl.URL  // parsed remote git URL
	remote    string       // source repo to mirror
	root      string       // absolute path to the root where repo directory created
	dir       string       // absolute path to the repo directory
	git       string       // git executable
	auth      *Auth        // auth information including ssh key path
	githubApp *auth.GithubApp
	envs      []string // envs which will be passed to git commands
	log       *slog.Logger
}

// New creates new repository from the given config.
// Remote repo will not be mirrored until Fetch() is called.
// if gitExec is empty git is looked up on PATH.
func New(conf Config, gitExec string, envs []string, log *slog.Logger) (*Repository, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	remoteURL := giturl.NormaliseURL(conf.Remote)

	gURL, err := giturl.Parse(remoteURL)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}
	log = log.With("repo", gURL.Repo)

	if gitExec == "" {
		gitExec = defaultGitExec
	}

	// we are going to create bare repo which caller cannot use directly
	// hence we can add repo dir (with .git suffix to indicate bare repo) to the provided root.
	// this also makes it safe to delete this dir and re-create it if needed
	repoDir := gURL.Repo
	if !strings.HasSuffix(repoDir, ".git") {
		repoDir += ".git"
	}
	repoDir = filepath.Join(conf.Root, repoDir)

	repo := &Repository{
		gitURL: gURL,
		remote: remoteURL,
		root:   conf.Root,
		dir:    repoDir,
		git:    gitExec,
		auth:   &conf.Auth,
		envs:   envs,
		log:    log,
	}

	if conf.Auth.githubAppConfigured() {
		repo.githubApp = &auth.GithubApp{
			AppID:          conf.Auth.GithubAppID,
			InstallationID: conf.Auth.GithubAppInstallationID,
			PrivateKeyPath: conf.Auth.GithubAppPrivateKeyPath,
		}
	}

	return repo, nil
}

// Remote returns normalised URL of the source repository
func (r *Repository) Remote() string {
	return r.remote
}

// Dir returns absolute path of the bare repository
func (r *Repository) Dir() string {
	return r.dir
}

// TrackingRef returns local ref which tracks given source branch
func (r *Repository) TrackingRef(branch string) string {
	return "refs/heads/" + branch
}

// Fetch makes sure local mirror is initialised and up to date with the source.
// it returns list of updated refs.
func (r *Repository) Fetch(ctx context.Context) ([]string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("unable to init repo:%s  err:%w", r.gitURL.Repo, err)
	}

	refs, err := r.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch repo:%s  err:%w", r.gitURL.Repo, err)
	}

	if err := r.syncHead(ctx); err != nil {
		return nil, err
	}

	r.log.Debug("source fetched", "updated-refs", len(refs))
	return refs, nil
}

// DefaultBranch returns the source default branch as recorded by the
// last Fetch.
func (r *Repository) DefaultBranch(ctx context.Context) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	// git symbolic-ref HEAD
	head, err := r.run(ctx, nil, "symbolic-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(head, "refs/heads/"), nil
}

// Hash returns the hash of the given ref
func (r *Repository) Hash(ctx context.Context, ref string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	// git rev-parse --verify <ref>^{commit}
	return r.run(ctx, nil, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
}

func (r *Repository) run(ctx context.Context, envs []string, args ...string) (string, error) {
	return utils.RunCommand(ctx, r.log, append(envs, r.envs...), r.dir, r.git, args...)
}

// init examines the git repo and determines if it is usable or not. If
// not, it will (re)initialize it.
func (r *Repository) init(ctx context.Context) error {
	_, err := os.Stat(r.dir)
	switch {
	case os.IsNotExist(err):
		// initial mirror
		r.log.Info("repo directory does not exist, creating it", "path", r.dir)
		if err := os.MkdirAll(r.dir, defaultDirMode); err != nil {
			return fmt.Errorf("unable to create repo dir err:%w", err)
		}
	case err != nil:
		return fmt.Errorf("unable to verify repo dir err:%w", err)
	default:
		// Make sure the directory we found is actually usable.
		if !r.sanityCheckRepo(ctx) {
			r.log.Error("repo directory was empty or failed checks, re-creating...", "path", r.dir)
			// since we add own folder to given root path we could just delete whole dir
			// and re-create it
			if err := utils.ReCreate(r.dir); err != nil {
				return fmt.Errorf("unable to re-create repo dir err:%w", err)
			}
		} else {
			r.log.Log(ctx, utils.LevelTrace, "existing repo directory is valid", "path", r.dir)
			return nil
		}
	}

	r.log.Info("initializing repo directory", "path", r.dir)
	// git init -q --bare
	if _, err := r.run(ctx, nil, "init", "-q", "--bare"); err != nil {
		return fmt.Errorf("unable to init repo err:%w", err)
	}

	// use --mirror=fetch as we want to create mirrored bare repository. it will make sure
	// everything in refs/* on the remote will be directly mirrored into refs/* in the local repository.
	// git remote add --mirror=fetch origin <remote>
	if _, err := r.run(ctx, nil, "remote", "add", "--mirror=fetch", "origin", r.remote); err != nil {
		return fmt.Errorf("unable to set remote err:%w", err)
	}

	if !r.sanityCheckRepo(ctx) {
		return fmt.Errorf("can't initialize git repo directory")
	}

	return nil
}

// syncHead sets local HEAD to the source's default branch
func (r *Repository) syncHead(ctx context.Context) error {
	headRef, err := r.getRemoteDefaultBranch(ctx)
	if err != nil {
		return fmt.Errorf("unable to get remote default branch err:%w", err)
	}

	// git symbolic-ref HEAD
	if current, err := r.run(ctx, nil, "symbolic-ref", "HEAD"); err == nil && current == headRef {
		return nil
	}

	// git symbolic-ref HEAD <headRef>(refs/heads/main)
	if _, err := r.run(ctx, nil, "symbolic-ref", "HEAD", headRef); err != nil {
		return fmt.Errorf("unable to set HEAD err:%w", err)
	}
	r.log.Info("local HEAD updated", "default-branch", headRef)
	return nil
}

// getRemoteDefaultBranch will run ls-remote to get HEAD of the remote
// and parse output to get default branch ref
func (r *Repository) getRemoteDefaultBranch(ctx context.Context) (string, error) {
	// git ls-remote --symref origin HEAD
	out, err := r.run(ctx, r.authEnv(ctx), "ls-remote", "--symref", "origin", "HEAD")
	if err != nil {
		return "", fmt.Errorf("unable to get default branch err:%w", err)
	}

	headRef, ok := parseSymref(out)
	if !ok {
		return "", fmt.Errorf("unable to parse ls-remote output:%s", out)
	}
	return headRef, nil
}

// sanityCheckRepo tries to make sure that the repo dir is a valid git repository.
func (r *Repository) sanityCheckRepo(ctx context.Context) bool {
	// If it is empty, we are done.
	if empty, err := utils.DirIsEmpty(r.dir); err != nil {
		r.log.Error("can't list repo directory", "path", r.dir, "err", err)
		return false
	} else if empty {
		r.log.Info("repo directory is empty", "path", r.dir)
		return false
	}

	// make sure repo is bare repository
	// git rev-parse --is-bare-repository
	if ok, err := r.run(ctx, nil, "rev-parse", "--is-bare-repository"); err != nil {
		r.log.Error("unable to verify bare repo", "path", r.dir, "err", err)
		return false
	} else if ok != "true" {
		r.log.Error("repo is not a bare repository", "path", r.dir)
		return false
	}

	// Check that this is actually the root of the repo.
	// git rev-parse --absolute-git-dir
	if root, err := r.run(ctx, nil, "rev-parse", "--absolute-git-dir"); err != nil {
		r.log.Error("can't get repo git dir", "path", r.dir, "err", err)
		return false
	} else if root != r.dir {
		r.log.Error("repo directory is under another repo", "path", r.dir, "parent", root)
		return false
	}

	// git config --get remote.origin.url
	if stdout, err := r.run(ctx, nil, "config", "--get", "remote.origin.url"); err != nil {
		r.log.Error("can't get repo config remote.origin.url", "path", r.dir, "err", err)
		return false
	} else if stdout != r.remote {
		r.log.Error("repo configured with diff remote url", "path", r.dir, "remote.origin.url", stdout)
		return false
	}

	// git config --get remote.origin.fetch
	if stdout, err := r.run(ctx, nil, "config", "--get", "remote.origin.fetch"); err != nil {
		r.log.Error("can't get repo config remote.origin.fetch", "path", r.dir, "err", err)
		return false
	} else if stdout != defaultRefSpec {
		r.log.Error("repo configured with incorrect fetch refspec", "path", r.dir, "remote.origin.fetch", stdout)
		return false
	}

	// git fsck --no-progress --connectivity-only
	if _, err := r.run(ctx, nil, "fsck", "--no-progress", "--connectivity-only"); err != nil {
		r.log.Error("repo fsck failed", "path", r.dir, "err", err)
		return false
	}

	return true
}

// fetch calls git fetch to update all references
func (r *Repository) fetch(ctx context.Context) ([]string, error) {
	// adding --porcelain so output can be parsed for updated refs
	// do not use -v output it will print all refs
	args := []string{"fetch", "origin", "--prune", "--no-progress", "--porcelain", "--no-auto-gc"}

	// git fetch origin --prune --no-progress --porcelain --no-auto-gc
	out, err := r.run(ctx, r.authEnv(ctx), args...)
	return updatedRefs(out), err
}
