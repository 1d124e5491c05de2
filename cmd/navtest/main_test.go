package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/viam-modules/viam-navtest/testhelper"
)

func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	modelDir := testhelper.WriteModelDir(t, testhelper.ObstacleTypes...)
	historyDB := filepath.Join(dir, "history.db")
	content := fmt.Sprintf("simulator: gazebo\n"+
		"model_directory: %s\n"+
		"allowed_obstacle_types: box,cylinder,sphere\n"+
		"seed: 7\n"+
		"log_dir: %s\n"+
		"report_dir: %s\n"+
		"history_db: %s\n%s",
		modelDir, filepath.Join(dir, "logs"), filepath.Join(dir, "reports"), historyDB, extra)
	path := filepath.Join(dir, "navtest.yaml")
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	return path, historyDB
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := newRootCommand(logging.NewTestLogger(t), out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	path, _ := writeConfig(t, "num_of_obstacles: 3\n")

	t.Run("prints the effective configuration", func(t *testing.T) {
		out, err := execute(t, "config", "--config", path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldStartWith, "num_of_obstacles,3\n")
		test.That(t, out, test.ShouldContainSubstring, "seed,7\n")
		test.That(t, out, test.ShouldContainSubstring, "tolerance,0.45\n")
	})

	t.Run("fails on a config that does not validate", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		test.That(t, os.WriteFile(bad, []byte("simulator: gazebo\n"), 0o600), test.ShouldBeNil)
		_, err := execute(t, "config", "--config", bad)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "model_directory")
	})
}

func TestRunCommand(t *testing.T) {
	t.Run("a dry run passes and is saved to the history", func(t *testing.T) {
		path, historyDB := writeConfig(t, "")
		out, err := execute(t, "run", "--config", path, "--dry-run")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "PASSED")
		test.That(t, out, test.ShouldContainSubstring, "seed 7")

		out, err = execute(t, "history", "--db", historyDB)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "PASSED")
	})

	t.Run("the seed flag overrides the config", func(t *testing.T) {
		path, _ := writeConfig(t, "")
		out, err := execute(t, "run", "--config", path, "--dry-run", "--seed", "11")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "seed 11")
	})

	t.Run("a live run needs an address", func(t *testing.T) {
		path, _ := writeConfig(t, "")
		_, err := execute(t, "run", "--config", path)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "--address is required")
	})
}

func TestHistoryCommand(t *testing.T) {
	t.Run("needs a database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "navtest.yaml")
		content := "simulator: gazebo\nmodel_directory: models\nallowed_obstacle_types: box\n"
		test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
		_, err := execute(t, "history", "--config", path)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "no history database configured")
	})
}
