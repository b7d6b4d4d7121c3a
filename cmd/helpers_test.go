package cmd

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/testutil"
	"github.com/spf13/cobra"
)

// resetFlags restores every command flag between executions of rootCmd
func resetFlags() {
	verbose, storagePath, configPath, backendURL = false, "", "", ""
	listLimit = 0
	limit = 0
	format, outputDir, sessionID = "jsonl", "./exports", ""
	healthcheckDetails = false
	healthcheckTimeout = 5 * time.Second
	inspectFormat, inspectSampleRows = "text", 3
	chatProxyURL, chatSessionID, chatNoSuggest = "", "", false
	serveListen = ""

	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, name := range []string{"help", "version"} {
			if f := c.Flags().Lookup(name); f != nil {
				_ = f.Value.Set("false")
				f.Changed = false
			}
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
}

// testEnv points configuration at temp locations so no user files are read
func testEnv(t *testing.T, backend string) string {
	t.Helper()
	for _, key := range []string{internal.EnvDatabasePath, internal.EnvListenAddr, internal.EnvDictationCmd, internal.EnvTimeout} {
		t.Setenv(key, "")
	}
	t.Setenv(internal.EnvBackendURL, backend)
	return filepath.Join(t.TempDir(), "missing-config.yaml")
}

// seedStorage writes blob as the stored history of a new database file
func seedStorage(t *testing.T, blob string) string {
	t.Helper()
	path := testutil.CreateTestDBFile(t)
	db, err := internal.OpenDatabase(path)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	if blob != "" {
		testutil.InsertKV(t, db, internal.HistoryKey, blob)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return path
}

// runCommand executes rootCmd with args against the given storage file and
// backend and returns what the command wrote
func runCommand(t *testing.T, storage, backend string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	config := testEnv(t, backend)

	full := append([]string{"--config", config, "--storage", storage}, args...)
	rootCmd.SetArgs(full)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	rootCmd.SetIn(stdin)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags()
	})

	err := rootCmd.Execute()
	return out.String(), err
}
