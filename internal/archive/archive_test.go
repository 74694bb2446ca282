package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"upapasta/internal/archive"
	"upapasta/internal/stage"
)

type fakeExecutor struct {
	binary string
	args   []string
	dir    string
	lines  []string
	err    error
	calls  int
	onRun  func(opts stage.ExecOptions)
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, opts stage.ExecOptions) error {
	f.calls++
	f.binary = binary
	f.args = args
	f.dir = opts.Dir
	for _, line := range f.lines {
		if opts.OnLine != nil {
			opts.OnLine(line)
		}
	}
	if f.onRun != nil {
		f.onRun(opts)
	}
	return f.err
}

func newSourceFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "photos")
	if err := os.Mkdir(source, 0o755); err != nil {
		t.Fatalf("mkdir source: %v", err)
	}
	if err := os.WriteFile(filepath.Join(source, "a.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return source
}

func TestCreateBuildsStoreOnlyCommand(t *testing.T) {
	source := newSourceFolder(t)
	target := archive.TargetPath(source)

	exec := &fakeExecutor{onRun: func(stage.ExecOptions) {
		if err := os.WriteFile(target, []byte("rar"), 0o644); err != nil {
			t.Fatalf("write target: %v", err)
		}
	}}
	runner, err := archive.New("rar", nil, archive.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	result, err := runner.Create(context.Background(), archive.Request{Source: source})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if result.Status != stage.StatusSucceeded {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if len(result.Outputs) != 1 || result.Outputs[0] != target {
		t.Fatalf("unexpected outputs: %v", result.Outputs)
	}

	want := []string{"a", "-r", "-m0", target, "photos"}
	if len(exec.args) != len(want) {
		t.Fatalf("unexpected args: %v", exec.args)
	}
	for i := range want {
		if exec.args[i] != want[i] {
			t.Fatalf("arg %d: got %q want %q", i, exec.args[i], want[i])
		}
	}
	if exec.dir != filepath.Dir(source) {
		t.Fatalf("expected working dir %q, got %q", filepath.Dir(source), exec.dir)
	}
}

func TestCreateDryRunSpawnsNothing(t *testing.T) {
	source := newSourceFolder(t)
	exec := &fakeExecutor{}
	runner, err := archive.New("rar", nil, archive.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	result, err := runner.Create(context.Background(), archive.Request{Source: source, DryRun: true})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if exec.calls != 0 {
		t.Fatal("dry-run must not invoke the executor")
	}
	if !result.Simulated || result.Status != stage.StatusSucceeded {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Outputs) != 1 || result.Outputs[0] != archive.TargetPath(source) {
		t.Fatalf("unexpected predicted outputs: %v", result.Outputs)
	}
	if _, err := os.Stat(archive.TargetPath(source)); !os.IsNotExist(err) {
		t.Fatal("dry-run must not create the archive")
	}
}

func TestCreateFailsOnExistingTargetWithoutForce(t *testing.T) {
	source := newSourceFolder(t)
	target := archive.TargetPath(source)
	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}

	exec := &fakeExecutor{}
	runner, err := archive.New("rar", nil, archive.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	result, err := runner.Create(context.Background(), archive.Request{Source: source})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if result.Status != stage.StatusFailed {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if exec.calls != 0 {
		t.Fatal("conflict must be detected before spawning the tool")
	}
}

func TestCreateForceRemovesExistingTarget(t *testing.T) {
	source := newSourceFolder(t)
	target := archive.TargetPath(source)
	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}

	exec := &fakeExecutor{onRun: func(stage.ExecOptions) {
		if err := os.WriteFile(target, []byte("new"), 0o644); err != nil {
			t.Fatalf("write target: %v", err)
		}
	}}
	runner, err := archive.New("rar", nil, archive.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := runner.Create(context.Background(), archive.Request{Source: source, Force: true}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("expected one invocation, got %d", exec.calls)
	}
}

func TestCreateFailsWhenToolProducesNoOutput(t *testing.T) {
	source := newSourceFolder(t)
	exec := &fakeExecutor{}
	runner, err := archive.New("rar", nil, archive.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := runner.Create(context.Background(), archive.Request{Source: source}); err == nil {
		t.Fatal("expected error when archive file is missing after run")
	}
}

func TestCreateReportsProgress(t *testing.T) {
	source := newSourceFolder(t)
	target := archive.TargetPath(source)
	exec := &fakeExecutor{
		lines: []string{"Adding    photos/a.jpg   42%", "Adding    photos/a.jpg  100%", "Done"},
		onRun: func(stage.ExecOptions) {
			if err := os.WriteFile(target, []byte("rar"), 0o644); err != nil {
				t.Fatalf("write target: %v", err)
			}
		},
	}
	runner, err := archive.New("rar", nil, archive.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	var seen []int
	_, err = runner.Create(context.Background(), archive.Request{
		Source:   source,
		Progress: func(percent int) { seen = append(seen, percent) },
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(seen) != 2 || seen[0] != 42 || seen[1] != 100 {
		t.Fatalf("unexpected progress values: %v", seen)
	}
}

func TestCreateRejectsFileSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "video.mkv")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	runner, err := archive.New("rar", nil, archive.WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := runner.Create(context.Background(), archive.Request{Source: file}); err == nil {
		t.Fatal("expected validation error for non-directory source")
	}
}
