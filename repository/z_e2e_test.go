package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/utilitywarehouse/git-backup/internal/utils"
)

const (
	testUpstreamRepo = "upstream1"
	testRoot         = "root"

	testMainBranch = "e2e-main"
	testGitUser    = "git-backup-e2e"
)

var (
	testLog  = slog.Default()
	txtCtx   = context.TODO()
	testENVs []string
)

func TestMain(m *testing.M) {
	t := &testing.T{}

	testTmpDir := mustTmpDir(t)

	testENVs = []string{
		fmt.Sprintf(
			"GIT_CONFIG_GLOBAL=%s/gitconfig", testTmpDir,
		),
		`GIT_CONFIG_SYSTEM=/dev/null`,
	}

	mustExec(t, "", "git", "config", "--global", "user.name", testGitUser)
	mustExec(t, "", "git", "config", "--global", "user.email", testGitUser+"@example.com")

	code := m.Run()

	// clean up
	os.RemoveAll(testTmpDir)

	os.Exit(code)
}

func testTransports() map[string]Transport {
	return map[string]Transport{
		"go-git": NewGoGitTransport(testLog),
		"git":    NewGitCLITransport("", testENVs, testLog),
	}
}

func Test_e2e_mirror_then_update(t *testing.T) {
	for name, transport := range testTransports() {
		t.Run(name, func(t *testing.T) {
			testTmpDir := mustTmpDir(t)
			defer os.RemoveAll(testTmpDir)

			upstream := filepath.Join(testTmpDir, testUpstreamRepo)
			root := filepath.Join(testTmpDir, testRoot)
			d := Descriptor{Source: "github", Owner: "alice", Name: "x", URL: "file://" + upstream}

			s := NewSyncer(transport, testLog)

			t.Log("TEST-1: init upstream and mirror")
			mustInitRepo(t, upstream, "file", t.Name())
			mustExec(t, upstream, "git", "tag", "v1.0.0")

			res, err := s.Sync(txtCtx, root, d, Auth{})
			if err != nil {
				t.Fatalf("unable to sync err:%v", err)
			}
			if res.Outcome != OutcomeMirrored {
				t.Errorf("outcome = %v, want %v", res.Outcome, OutcomeMirrored)
			}

			mirror := filepath.Join(root, "github", "alice", "x")
			assertBareRepo(t, mirror)
			refsAfterMirror := mustRefs(t, mirror)
			if diff := cmp.Diff(mustRefs(t, upstream), refsAfterMirror); diff != "" {
				t.Errorf("mirror refs mismatch (-upstream +mirror):\n%s", diff)
			}

			t.Log("TEST-2: sync again without upstream changes")
			res, err = s.Sync(txtCtx, root, d, Auth{})
			if err != nil {
				t.Fatalf("unable to sync err:%v", err)
			}
			if res.Outcome != OutcomeUpToDate || res.Objects != 0 {
				t.Errorf("Sync() = %+v, want up-to-date with 0 objects", res)
			}
			if diff := cmp.Diff(refsAfterMirror, mustRefs(t, mirror)); diff != "" {
				t.Errorf("ref set changed on up-to-date sync (-want +got):\n%s", diff)
			}

			t.Log("TEST-3: new commit, new branch and deleted tag on upstream")
			hash := mustCommit(t, upstream, "file", t.Name()+"-2")
			mustExec(t, upstream, "git", "branch", "feature")
			mustExec(t, upstream, "git", "tag", "-d", "v1.0.0")

			res, err = s.Sync(txtCtx, root, d, Auth{})
			if err != nil {
				t.Fatalf("unable to sync err:%v", err)
			}
			if res.Outcome != OutcomeUpdated {
				t.Errorf("outcome = %v, want %v", res.Outcome, OutcomeUpdated)
			}
			for _, ref := range []string{"refs/heads/" + testMainBranch, "refs/heads/feature"} {
				if !slices.Contains(res.UpdatedRefs, ref) {
					t.Errorf("updated refs %v should contain %s", res.UpdatedRefs, ref)
				}
			}
			if got := mustExec(t, mirror, "git", "rev-parse", testMainBranch); got != hash {
				t.Errorf("mirror %s = %s, want %s", testMainBranch, got, hash)
			}
			if diff := cmp.Diff(mustRefs(t, upstream), mustRefs(t, mirror)); diff != "" {
				t.Errorf("mirror refs mismatch (-upstream +mirror):\n%s", diff)
			}

			t.Log("TEST-4: force push on upstream")
			mustExec(t, upstream, "git", "reset", "-q", "--hard", "HEAD^")
			if _, err := s.Sync(txtCtx, root, d, Auth{}); err != nil {
				t.Fatalf("unable to sync err:%v", err)
			}
			if diff := cmp.Diff(mustRefs(t, upstream), mustRefs(t, mirror)); diff != "" {
				t.Errorf("mirror refs mismatch (-upstream +mirror):\n%s", diff)
			}
		})
	}
}

func Test_e2e_dirty_target(t *testing.T) {
	for name, transport := range testTransports() {
		t.Run(name, func(t *testing.T) {
			testTmpDir := mustTmpDir(t)
			defer os.RemoveAll(testTmpDir)

			upstream := filepath.Join(testTmpDir, testUpstreamRepo)
			root := filepath.Join(testTmpDir, testRoot)
			d := Descriptor{Source: "github", Owner: "alice", Name: "x", URL: "file://" + upstream}

			mustInitRepo(t, upstream, "file", t.Name())

			dir := d.Dir(root)
			if err := os.MkdirAll(dir, utils.DefaultDirMode); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := NewSyncer(transport, testLog).Sync(txtCtx, root, d, Auth{})
			if !errors.Is(err, ErrDirtyTarget) {
				t.Fatalf("Sync() error = %v, want %v", err, ErrDirtyTarget)
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 || entries[0].Name() != "notes.txt" {
				t.Errorf("dirty target was modified, entries: %v", entries)
			}
			assertFile(t, filepath.Join(dir, "notes.txt"), "keep me")
		})
	}
}

func Test_e2e_empty_upstream(t *testing.T) {
	for name, transport := range testTransports() {
		t.Run(name, func(t *testing.T) {
			testTmpDir := mustTmpDir(t)
			defer os.RemoveAll(testTmpDir)

			upstream := filepath.Join(testTmpDir, testUpstreamRepo)
			root := filepath.Join(testTmpDir, testRoot)
			d := Descriptor{Source: "gitlab", Owner: "group/sub", Name: "x", URL: "file://" + upstream}

			mustReCreate(t, upstream)
			mustExec(t, upstream, "git", "init", "-q", "-b", testMainBranch)

			s := NewSyncer(transport, testLog)
			if _, err := s.Sync(txtCtx, root, d, Auth{}); err != nil {
				t.Fatalf("unable to sync empty upstream err:%v", err)
			}
			assertBareRepo(t, d.Dir(root))

			t.Log("first commit on upstream")
			hash := mustCommit(t, upstream, "file", t.Name())
			res, err := s.Sync(txtCtx, root, d, Auth{})
			if err != nil {
				t.Fatalf("unable to sync err:%v", err)
			}
			if res.Outcome != OutcomeUpdated {
				t.Errorf("outcome = %v, want %v", res.Outcome, OutcomeUpdated)
			}
			if got := mustExec(t, d.Dir(root), "git", "rev-parse", "refs/heads/"+testMainBranch); got != hash {
				t.Errorf("mirror %s = %s, want %s", testMainBranch, got, hash)
			}
		})
	}
}

// mirror created by one transport must be usable by the other
func Test_e2e_switch_transport(t *testing.T) {
	testTmpDir := mustTmpDir(t)
	defer os.RemoveAll(testTmpDir)

	upstream := filepath.Join(testTmpDir, testUpstreamRepo)
	root := filepath.Join(testTmpDir, testRoot)
	d := Descriptor{Source: "github", Owner: "alice", Name: "x", URL: "file://" + upstream}

	mustInitRepo(t, upstream, "file", t.Name())

	if _, err := NewSyncer(NewGitCLITransport("", testENVs, testLog), testLog).Sync(txtCtx, root, d, Auth{}); err != nil {
		t.Fatalf("unable to sync err:%v", err)
	}

	mustCommit(t, upstream, "file", t.Name()+"-2")

	res, err := NewSyncer(NewGoGitTransport(testLog), testLog).Sync(txtCtx, root, d, Auth{})
	if err != nil {
		t.Fatalf("unable to sync err:%v", err)
	}
	if res.Outcome != OutcomeUpdated {
		t.Errorf("outcome = %v, want %v", res.Outcome, OutcomeUpdated)
	}
	if diff := cmp.Diff(mustRefs(t, upstream), mustRefs(t, d.Dir(root))); diff != "" {
		t.Errorf("mirror refs mismatch (-upstream +mirror):\n%s", diff)
	}
}

func Test_e2e_gitcli_interrupted_clone(t *testing.T) {
	testTmpDir := mustTmpDir(t)
	defer os.RemoveAll(testTmpDir)

	upstream := filepath.Join(testTmpDir, testUpstreamRepo)
	root := filepath.Join(testTmpDir, testRoot)
	d := Descriptor{Source: "github", Owner: "alice", Name: "x", URL: "file://" + upstream}

	mustInitRepo(t, upstream, "file", t.Name())

	// simulate crash after init before the first fetch
	dir := d.Dir(root)
	if err := os.MkdirAll(dir, utils.DefaultDirMode); err != nil {
		t.Fatal(err)
	}
	mustExec(t, dir, "git", "init", "-q", "--bare")
	mustExec(t, dir, "git", "remote", "add", "--mirror=fetch", "origin", d.URL)

	res, err := NewSyncer(NewGitCLITransport("", testENVs, testLog), testLog).Sync(txtCtx, root, d, Auth{})
	if err != nil {
		t.Fatalf("unable to sync err:%v", err)
	}
	if res.Outcome != OutcomeUpdated {
		t.Errorf("outcome = %v, want %v", res.Outcome, OutcomeUpdated)
	}
	if diff := cmp.Diff(mustRefs(t, upstream), mustRefs(t, dir)); diff != "" {
		t.Errorf("mirror refs mismatch (-upstream +mirror):\n%s", diff)
	}
}

// mustReCreate removes dir and any children it contains and creates new dir
// on the same path
func mustReCreate(t *testing.T, path string) {
	t.Helper()

	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("unable to delete dir err:%v", err)
	}
	if err := os.MkdirAll(path, utils.DefaultDirMode); err != nil {
		t.Fatalf("unable to create dir err:%v", err)
	}
}

func mustInitRepo(t *testing.T, repo, file, content string) string {
	t.Helper()

	// clear old data if any
	mustReCreate(t, repo)

	mustExec(t, repo, "git", "init", "-q", "-b", testMainBranch)

	return mustCommit(t, repo, file, content)
}

func mustCommit(t *testing.T, repo, file, content string) string {
	t.Helper()

	if err := os.WriteFile(filepath.Join(repo, file), []byte(content), 0644); err != nil {
		t.Fatalf("unable to write to file err: %v", err)
	}
	mustExec(t, repo, "git", "add", file)
	msg := content
	if len(content) > 50 {
		msg = content[:50]
	}
	mustExec(t, repo, "git", "commit", "-m", msg)
	return mustExec(t, repo, "git", "rev-list", "-n1", "HEAD")
}

func mustTmpDir(t *testing.T) string {
	t.Helper()

	testTmpDir, err := os.MkdirTemp("", "git-backup-e2e-*")
	if err != nil {
		t.Fatalf("unable to make dir: %v", err)
	}
	return testTmpDir
}

// mustRefs returns branches and tags of the repo with the object they point to
func mustRefs(t *testing.T, repo string) []string {
	t.Helper()

	out := mustExec(t, repo, "git", "for-each-ref", "--format=%(refname) %(objectname)", "refs/heads", "refs/tags")
	if out == "" {
		return nil
	}
	refs := strings.Split(out, "\n")
	slices.Sort(refs)
	return refs
}

func assertBareRepo(t *testing.T, dir string) {
	t.Helper()

	if got := mustExec(t, dir, "git", "rev-parse", "--is-bare-repository"); got != "true" {
		t.Errorf("%s is not a bare repository", dir)
	}
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
		t.Fatalf("err:%v run(%s): { stdoutStderr %q }", err, cmd.String(), stdoutStderr)
	}
	return strings.TrimSpace(string(stdoutStderr))
}
