//go:build !windows

package process

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ecosystem.dev/internal/pubsub"
)

func newTestManager(t *testing.T) (*ProcessManager, string) {
	t.Helper()

	dir := t.TempDir()
	dbFile := filepath.Join(dir, "testing.db")

	topics := &pubsub.Registry{}
	manager, err := NewProcessManager(topics, filepath.Join(dir, "logs"), dbFile)
	if err != nil {
		t.Fatalf("error loading DB: %s", err.Error())
	}

	return manager, dir
}

func waitForExit(t *testing.T, proc *Process) {
	t.Helper()

	select {
	case <-proc.Context.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("process %s did not exit in time", proc.Id)
	}
}

func TestSpawnProcess(t *testing.T) {
	manager, _ := newTestManager(t)

	id := InternalId("long")

	proc, err := manager.SpawnFromPathVar(ProcessConfig{
		Id:      id,
		Command: "sleep",
		Args:    []string{"100"},
	})
	if err != nil {
		t.Fatalf("error spawning process: %s", err.Error())
	}

	if !manager.IsAlive(id) {
		t.Fatalf("manager doesn't think process is alive, even though it just spawned it")
	}

	if !proc.osProcessIsAlive() {
		t.Fatalf("manager doesn't think process is alive, even though it just spawned it")
	}

	err = manager.Kill(id)
	if err != nil {
		t.Fatalf("failed to kill process %+v: %s", id, err.Error())
	}

	if manager.IsAlive(id) {
		t.Fatalf("manager thinks the process is still alive")
	}

	waitForExit(t, proc)
}

func TestSpawnDead(t *testing.T) {
	manager, _ := newTestManager(t)

	id := InternalId("short")

	proc, err := manager.SpawnFromPathVar(ProcessConfig{
		Id:      id,
		Command: "sleep",
		Args:    []string{"0"},
	})
	if err != nil {
		t.Fatalf("error spawning process: %s", err.Error())
	}

	// Wait for the process to die
	waitForExit(t, proc)

	if manager.IsAlive(id) {
		t.Fatalf("manager thinks the process is still alive")
	}
}

func TestSpawnedBeforeManagerStarted(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "testing.db")

	managerA, err := NewProcessManager(&pubsub.Registry{}, dir, dbFile)
	if err != nil {
		t.Fatalf("error loading DB: %s", err.Error())
	}

	id := InternalId("previous")

	_, err = managerA.SpawnFromPathVar(ProcessConfig{
		Id:      id,
		Command: "sleep",
		Args:    []string{"1"},
	})
	if err != nil {
		t.Fatalf("error spawning process: %s", err.Error())
	}

	// The first manager spawns the process and is then left alone. The second
	// one starts fresh, as if the launcher had been invoked again while the
	// process is still running.
	managerB, err := NewProcessManager(&pubsub.Registry{}, dir, dbFile)
	if err != nil {
		t.Fatalf("error loading DB: %s", err.Error())
	}

	procB, err := managerB.FindById(id)
	if err != nil {
		t.Fatalf("error finding process: %s", err.Error())
	}

	if !managerB.IsAlive(id) {
		t.Fatalf("manager doesn't think process is alive, even though it just spawned it")
	}

	waitForExit(t, procB)

	if managerB.IsAlive(id) {
		t.Fatalf("manager thinks process is alive after it died")
	}

	if procB.osProcessIsAlive() {
		t.Fatalf("manager thinks process is alive after it died")
	}
}

func TestSpawnWritesOutput(t *testing.T) {
	manager, dir := newTestManager(t)

	workDir := filepath.Join(dir, "api")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		t.Fatal(err)
	}
	outputPath := filepath.Join(dir, "logs", "api.log")

	id := InternalId("api")
	spawn := func(word string) {
		proc, err := manager.SpawnFromPathVar(ProcessConfig{
			Id:         id,
			Command:    "sh",
			Args:       []string{"-c", `echo "$WORD from $(basename "$PWD")"; echo oops >&2`},
			WorkDir:    workDir,
			Env:        map[string]string{"WORD": word},
			OutputPath: outputPath,
		})
		if err != nil {
			t.Fatalf("error spawning process: %s", err.Error())
		}
		waitForExit(t, proc)
	}

	spawn("hello")
	// A dead entry with the same id gets replaced, and output is appended
	spawn("again")

	buf, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}

	expected := "hello from api\noops\nagain from api\noops\n"
	if string(buf) != expected {
		t.Fatalf("expected output %q, got %q", expected, string(buf))
	}

	// Give the reaper a moment to record the exit
	deadline := time.Now().Add(5 * time.Second)
	for {
		proc, err := manager.FindById(id)
		if err != nil {
			t.Fatal(err)
		}
		if proc.ExitCode != nil {
			if *proc.ExitCode != 0 {
				t.Fatalf("expected exit code 0, got %d", *proc.ExitCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("exit was never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSpawnSeparateErrorFile(t *testing.T) {
	manager, dir := newTestManager(t)

	outputPath := filepath.Join(dir, "out", "consumer.log")
	errorPath := filepath.Join(dir, "err", "consumer.log")

	proc, err := manager.SpawnFromPathVar(ProcessConfig{
		Id:         InternalId("consumer"),
		Command:    "sh",
		Args:       []string{"-c", "echo out; echo err >&2; exit 3"},
		OutputPath: outputPath,
		ErrorPath:  errorPath,
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForExit(t, proc)

	out, _ := os.ReadFile(outputPath)
	errOut, _ := os.ReadFile(errorPath)
	if string(out) != "out\n" || string(errOut) != "err\n" {
		t.Fatalf("unexpected output: out=%q err=%q", out, errOut)
	}
}

func TestSpawnDefaultOutputPath(t *testing.T) {
	manager, dir := newTestManager(t)

	id, err := NewId("/app/letItGo", "producer")
	if err != nil {
		t.Fatal(err)
	}

	proc, err := manager.SpawnFromPathVar(ProcessConfig{
		Id:      id,
		Command: "echo",
		Args:    []string{"produced"},
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForExit(t, proc)

	expectedPath := filepath.Join(dir, "logs", "app", "letItGo", "producer.log")
	if proc.OutputPath != expectedPath {
		t.Fatalf("expected output in '%s', got '%s'", expectedPath, proc.OutputPath)
	}

	logs, err := manager.GetLogFile(id)
	if err != nil {
		t.Fatal(err)
	}
	if logs.Text != "produced\n" {
		t.Fatalf("unexpected log file contents: %q", logs.Text)
	}
}

func TestSpawnAlreadyRunning(t *testing.T) {
	manager, _ := newTestManager(t)
	id := InternalId("twice")

	proc, err := manager.SpawnFromPathVar(ProcessConfig{Id: id, Command: "sleep", Args: []string{"100"}})
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Remove(id)

	prev, err := manager.SpawnFromPathVar(ProcessConfig{Id: id, Command: "sleep", Args: []string{"100"}})
	if !errors.Is(err, ErrProcessAlreadyExists) {
		t.Fatalf("expected ErrProcessAlreadyExists, got %v", err)
	}
	if prev == nil || prev.Pid != proc.Pid {
		t.Fatalf("expected the running process to be returned, got %+v", prev)
	}
}

func TestSpawnMissingCommand(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.SpawnFromPathVar(ProcessConfig{
		Id:      InternalId("missing"),
		Command: "definitely-not-a-real-command-for-ecosystem",
	})
	if err == nil {
		t.Fatalf("expected spawning a missing command to fail")
	}

	if _, err := manager.FindById(InternalId("missing")); !errors.Is(err, ErrProcessNotFound) {
		t.Fatalf("a failed spawn should not be recorded, got %v", err)
	}
}

func TestStop(t *testing.T) {
	manager, _ := newTestManager(t)
	id := InternalId("stoppable")

	proc, err := manager.SpawnFromPathVar(ProcessConfig{
		Id:      id,
		Command: "sleep",
		Args:    []string{"100"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := manager.Stop(id, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	waitForExit(t, proc)

	if _, err := manager.FindById(id); !errors.Is(err, ErrProcessNotFound) {
		t.Fatalf("expected the stopped process to be forgotten, got %v", err)
	}

	if err := manager.Stop(id, time.Second); !errors.Is(err, ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound when stopping twice, got %v", err)
	}
}

func TestStopIgnoringTerm(t *testing.T) {
	manager, _ := newTestManager(t)
	id := InternalId("stubborn")

	proc, err := manager.SpawnFromPathVar(ProcessConfig{
		Id:      id,
		Command: "sh",
		Args:    []string{"-c", "trap '' TERM; echo ready; sleep 100 & wait"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Give the shell a moment to install the trap
	time.Sleep(200 * time.Millisecond)

	if err := manager.Stop(id, 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	waitForExit(t, proc)
}

func TestList(t *testing.T) {
	manager, _ := newTestManager(t)

	for _, key := range []string{"api", "producer"} {
		id, _ := NewId("/app/one", key)
		proc, err := manager.SpawnFromPathVar(ProcessConfig{Id: id, Command: "true"})
		if err != nil {
			t.Fatal(err)
		}
		waitForExit(t, proc)
	}

	other, _ := NewId("/app/two", "consumer")
	proc, err := manager.SpawnFromPathVar(ProcessConfig{Id: other, Command: "true"})
	if err != nil {
		t.Fatal(err)
	}
	waitForExit(t, proc)

	one := manager.List("/app/one")
	if len(one) != 2 || one[0].Id.Key != "api" || one[1].Id.Key != "producer" {
		t.Fatalf("unexpected processes in category: %+v", one)
	}

	if all := manager.List(""); len(all) != 3 {
		t.Fatalf("expected 3 processes in total, got %d", len(all))
	}
}

func TestSubscribeLogs(t *testing.T) {
	manager, dir := newTestManager(t)
	id := InternalId("chatty")
	trigger := filepath.Join(dir, "go")

	proc, err := manager.SpawnFromPathVar(ProcessConfig{
		Id:      id,
		Command: "sh",
		Args:    []string{"-c", "while [ ! -f " + trigger + " ]; do sleep 0.05; done; echo first; echo second; sleep 0.5"},
	})
	if err != nil {
		t.Fatal(err)
	}

	sub, err := manager.SubscribeLogs(id)
	if err != nil {
		t.Fatal(err)
	}

	// Let the tail get set up before anything is written
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(trigger, nil, 0644); err != nil {
		t.Fatal(err)
	}

	var lines []string
	timeout := time.After(10 * time.Second)
	for len(lines) < 2 {
		select {
		case line, ok := <-sub.Out:
			if !ok {
				t.Fatalf("subscription closed early, got %v", lines)
			}
			lines = append(lines, line)
		case <-timeout:
			t.Fatalf("timed out waiting for log lines, got %v", lines)
		}
	}

	if strings.Join(lines, ",") != "first,second" {
		t.Fatalf("unexpected lines: %v", lines)
	}

	waitForExit(t, proc)
}

func TestNewId(t *testing.T) {
	if _, err := NewId("app", "api"); !errors.Is(err, ErrInvalidId) {
		t.Fatalf("expected an error for a category without a leading slash")
	}
	if _, err := NewId("/app", ""); !errors.Is(err, ErrInvalidId) {
		t.Fatalf("expected an error for an empty key")
	}

	id, err := NewId("/app/letItGo", "api")
	if err != nil {
		t.Fatal(err)
	}
	if id.LogsTopicId().Category != "/logs/app/letItGo" {
		t.Fatalf("unexpected logs topic: %v", id.LogsTopicId())
	}
}

func TestManagersShareDatabase(t *testing.T) {
	serve, dir := newTestManager(t)

	cli, err := NewProcessManager(&pubsub.Registry{}, filepath.Join(dir, "logs"), filepath.Join(dir, "testing.db"))
	if err != nil {
		t.Fatal(err)
	}

	short, err := serve.SpawnFromPathVar(ProcessConfig{
		Id:      InternalId("short"),
		Command: "true",
	})
	if err != nil {
		t.Fatal(err)
	}

	long, err := cli.SpawnFromPathVar(ProcessConfig{
		Id:      InternalId("long"),
		Command: "sleep",
		Args:    []string{"100"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Remove(long.Id)

	// Recording the exit rewrites the database from the first manager
	waitForExit(t, short)
	deadline := time.Now().Add(5 * time.Second)
	for {
		proc, err := serve.FindById(short.Id)
		if err != nil {
			t.Fatal(err)
		}
		if proc.ExitCode != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("exit of %s was never recorded", short.Id)
		}
		time.Sleep(20 * time.Millisecond)
	}

	proc, err := serve.FindById(long.Id)
	if err != nil {
		t.Fatalf("process spawned by another manager was lost: %s", err)
	}
	if proc.Pid != long.Pid || !serve.IsAlive(long.Id) {
		t.Fatalf("unexpected record: %+v", proc)
	}

	if err := serve.Stop(long.Id, time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := cli.FindById(long.Id); !errors.Is(err, ErrProcessNotFound) {
		t.Fatalf("expected the stop to be visible to the other manager, got %v", err)
	}
}
