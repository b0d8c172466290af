package mirror

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hjoncour/gh-to-gl-migrator/policy"
	"github.com/hjoncour/gh-to-gl-migrator/repository"
	"github.com/hjoncour/gh-to-gl-migrator/syncer"
)

const (
	testMainBranch = "main"
	testGitUser    = "gh2gl-e2e"
)

var testENVs []string

func TestMain(m *testing.M) {
	testTmpDir, err := os.MkdirTemp("", "gh2gl-mirror-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to make dir: %v\n", err)
		os.Exit(1)
	}

	testENVs = []string{
		fmt.Sprintf("GIT_CONFIG_GLOBAL=%s/gitconfig", testTmpDir),
		`GIT_CONFIG_SYSTEM=/dev/null`,
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
	}

	for _, args := range [][]string{
		{"config", "--global", "user.name", testGitUser},
		{"config", "--global", "user.email", testGitUser + "@example.com"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Env = testENVs
		if out, err := cmd.CombinedOutput(); err != nil {
			fmt.Fprintf(os.Stderr, "unable to configure git: %v %s\n", err, out)
			os.Exit(1)
		}
	}

	code := m.Run()

	os.RemoveAll(testTmpDir)

	os.Exit(code)
}

type e2eEnv struct {
	upstream string
	target   string
	repo     *repository.Repository
}

func setupE2E(t *testing.T, targetBranch string) *e2eEnv {
	t.Helper()

	// remote URLs are lower cased hence avoid t.TempDir() which includes test name
	tmp, err := os.MkdirTemp("", "gh2gl-mirror-e2e-*")
	if err != nil {
		t.Fatalf("unable to make dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmp) })

	env := &e2eEnv{
		upstream: filepath.Join(tmp, "upstream"),
		target:   filepath.Join(tmp, "target.git"),
	}

	if err := os.MkdirAll(env.upstream, 0755); err != nil {
		t.Fatalf("unable to create dir: %v", err)
	}
	mustExec(t, env.upstream, "git", "init", "-q", "-b", testMainBranch)
	mustCommit(t, env.upstream, "file", "initial")
	mustExec(t, "", "git", "init", "-q", "--bare", "-b", targetBranch, env.target)

	env.repo, err = repository.New(repository.Config{
		Remote: "file://" + env.upstream,
		Root:   filepath.Join(tmp, "root"),
	}, "", testENVs, nil)
	if err != nil {
		t.Fatalf("unable to create repository: %v", err)
	}
	return env
}

func (e *e2eEnv) mirror(t *testing.T, mode policy.Mode, opts syncer.Options) *Mirror {
	t.Helper()

	p, err := policy.New(mode, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return New(Config{Target: testTarget, Policy: p, Sync: opts}, e.repo, e.repo.Target("file://"+e.target, ""), nil)
}

func Test_e2e_newProjectThenFeature(t *testing.T) {
	env := setupE2E(t, testMainBranch)
	m := env.mirror(t, policy.Always{}, syncer.Options{Tags: true})

	t.Log("TEST-1: push to default branch of new project")
	mainHash := mustExec(t, env.upstream, "git", "rev-list", "-n1", "HEAD")

	report, err := m.Run(t.Context(), policy.PushEvent{Ref: "refs/heads/main", DefaultBranch: testMainBranch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RemoteDefault != testMainBranch {
		t.Errorf("remote default = %s, want %s", report.RemoteDefault, testMainBranch)
	}
	assertRemoteBranches(t, env.target, map[string]string{testMainBranch: mainHash})

	t.Log("TEST-2: push to feature-x pushes feature and re-pushes main")
	mustExec(t, env.upstream, "git", "checkout", "-q", "-b", "feature-x")
	featureHash := mustCommit(t, env.upstream, "feature", "feature work")
	mustExec(t, env.upstream, "git", "checkout", "-q", testMainBranch)
	mainHash = mustCommit(t, env.upstream, "file", "main moved")

	report, err = m.Run(t.Context(), policy.PushEvent{
		Ref:            "refs/heads/feature-x",
		DefaultBranch:  testMainBranch,
		CommitMessages: []string{"feature work"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantSteps := []syncer.StepResult{
		{Step: syncer.StepDefaultBranch, Ref: "refs/heads/main", Updated: true},
		{Step: syncer.StepCurrentBranch, Ref: "refs/heads/feature-x", Updated: true},
		{Step: syncer.StepTags, Ref: "refs/tags/*", Updated: false},
	}
	if diff := cmp.Diff(wantSteps, report.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	assertRemoteBranches(t, env.target, map[string]string{testMainBranch: mainHash, "feature-x": featureHash})

	t.Log("TEST-3: re-run without new commits is a no-op")
	report, err = m.Run(t.Context(), policy.PushEvent{Ref: "refs/heads/feature-x", DefaultBranch: testMainBranch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Updated() {
		t.Errorf("expected no remote change got %+v", report.Steps)
	}
	assertRemoteBranches(t, env.target, map[string]string{testMainBranch: mainHash, "feature-x": featureHash})
}

func Test_e2e_historicalMasterAndPrune(t *testing.T) {
	env := setupE2E(t, "master")

	// target already has history on master and a stale branch
	oldHash := mustCommit(t, env.upstream, "old", "old history")
	mustExec(t, env.upstream, "git", "push", "-q", env.target, "HEAD:refs/heads/master", "HEAD:refs/heads/stale")
	mustExec(t, env.upstream, "git", "reset", "-q", "--hard", "HEAD~1")
	mustExec(t, env.upstream, "git", "tag", "v1.0.0")
	mainHash := mustExec(t, env.upstream, "git", "rev-list", "-n1", "HEAD")
	if mainHash == oldHash {
		t.Fatalf("expected diverged history")
	}

	m := env.mirror(t, policy.Always{}, syncer.Options{Tags: true, Prune: true})

	report, err := m.Run(t.Context(), policy.PushEvent{Kind: policy.ManualDispatch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RemoteDefault != "master" || report.Fallback {
		t.Errorf("expected reconciled default master got %+v", report)
	}
	if diff := cmp.Diff([]string{"stale"}, report.Pruned); diff != "" {
		t.Errorf("pruned mismatch (-want +got):\n%s", diff)
	}

	// source main force pushed over diverged master
	assertRemoteBranches(t, env.target, map[string]string{"master": mainHash})
	if got := mustExec(t, env.target, "git", "rev-parse", "refs/tags/v1.0.0^{commit}"); got != mainHash {
		t.Errorf("tag v1.0.0 = %s, want %s", got, mainHash)
	}
}

func Test_e2e_keywordSkip(t *testing.T) {
	env := setupE2E(t, testMainBranch)
	kw, err := policy.NewKeyword("[mirror]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := env.mirror(t, kw, syncer.Options{Tags: true})

	mustExec(t, env.upstream, "git", "checkout", "-q", "-b", "feature-y")
	featureHash := mustCommit(t, env.upstream, "feature", "feature work")

	report, err := m.Run(t.Context(), policy.PushEvent{
		Ref:            "refs/heads/feature-y",
		DefaultBranch:  testMainBranch,
		CommitMessages: []string{"wip [mir", "ror]"},
	})
	if err != nil || report != nil {
		t.Fatalf("expected skip got report:%v err:%v", report, err)
	}
	assertRemoteBranches(t, env.target, map[string]string{})

	if _, err := m.Run(t.Context(), policy.PushEvent{
		Ref:            "refs/heads/feature-y",
		DefaultBranch:  testMainBranch,
		CommitMessages: []string{"wip", "done [mirror]"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := remoteBranches(t, env.target)
	if got["feature-y"] != featureHash || got[testMainBranch] == "" {
		t.Errorf("expected main and feature-y on target got %v", got)
	}
}

func remoteBranches(t *testing.T, remote string) map[string]string {
	t.Helper()

	out := mustExec(t, remote, "git", "for-each-ref", "--format=%(objectname) %(refname:strip=2)", "refs/heads")
	branches := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		if hash, name, ok := strings.Cut(line, " "); ok {
			branches[name] = hash
		}
	}
	return branches
}

func assertRemoteBranches(t *testing.T, remote string, want map[string]string) {
	t.Helper()

	if diff := cmp.Diff(want, remoteBranches(t, remote)); diff != "" {
		t.Errorf("remote branches mismatch (-want +got):\n%s", diff)
	}
}

func mustCommit(t *testing.T, repo, file, content string) string {
	t.Helper()

	if err := os.WriteFile(filepath.Join(repo, file), []byte(content), 0644); err != nil {
		t.Fatalf("unable to write to file err: %v", err)
	}
	mustExec(t, repo, "git", "add", file)
	mustExec(t, repo, "git", "commit", "-q", "-m", content)
	return mustExec(t, repo, "git", "rev-list", "-n1", "HEAD")
}

func mustExec(t *testing.T, cwd string, name string, arg ...string) string {
	t.Helper()

	cmd := exec.Command(name, arg...)
	if cwd != "" {
		cmd.Dir = cwd
	}

	cmd.Env = testENVs

	stdoutStderr, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("err:%v run(%s): { stdoutStderr %q }", cmd.String(), err, stdoutStderr)
	}
	return strings.TrimSpace(string(stdoutStderr))
}
