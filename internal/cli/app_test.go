// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-chatstore/internal/export"
	"github.com/jeranaias/rigrun-chatstore/internal/server"
	"github.com/jeranaias/rigrun-chatstore/internal/settings"
	"github.com/jeranaias/rigrun-chatstore/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type runResult struct {
	code   int
	stdout string
	stderr string
}

// envelope mirrors JSONResponse with the payload left raw.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error"`
	ErrorType string          `json:"error_type"`
	Command   string          `json:"command"`
}

// isolate points HOME and the CHATSTORE_* variables away from the real
// user environment.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"CHATSTORE_DATA_DIR", "CHATSTORE_HOST", "CHATSTORE_PORT", "CHATSTORE_WATCH"} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, dataDir, stdin string, argv ...string) runResult {
	t.Helper()
	cmd, args := ParseArgs(append([]string{"--data-dir", dataDir}, argv...))
	app := NewApp(args)
	var out, errOut bytes.Buffer
	app.Stdin = strings.NewReader(stdin)
	app.Stdout = &out
	app.Stderr = &errOut
	code := app.Run(cmd)
	return runResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

func decodeEnvelope(t *testing.T, s string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(s), &env), "output: %s", s)
	return env
}

const sampleConversation = `{"title":"Go generics","model":"llama3","messages":[` +
	`{"role":"user","content":"How do type parameters work?"},` +
	`{"role":"assistant","content":"They let functions accept any type that satisfies a constraint."}]}`

func seed(t *testing.T, dataDir string, names ...string) {
	t.Helper()
	for _, name := range names {
		r := run(t, dataDir, sampleConversation, "save", name)
		require.Equal(t, ExitSuccess, r.code, r.stderr)
	}
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func TestApp_SaveListShow(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "2024-01-01_10-00-00.json", "2024-02-01_10-00-00.json")

	r := run(t, dir, "", "--json", "list")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	env := decodeEnvelope(t, r.stdout)
	assert.True(t, env.Success)
	assert.Equal(t, "list", env.Command)

	var list ListData
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Conversations, 2)
	assert.Equal(t, "2024-02-01_10-00-00.json", list.Conversations[0].Filename, "newest first")
	assert.Equal(t, "Go generics", list.Conversations[0].Title)
	assert.Equal(t, 2, list.Conversations[0].Messages)
	assert.Empty(t, list.Missing)

	r = run(t, dir, "", "show", "2024-01-01_10-00-00.json")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, `"title": "Go generics"`)

	r = run(t, dir, "", "show", "2024-01-01_10-00-00.json", "--md")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "# Go generics")
	assert.Contains(t, r.stdout, "How do type parameters work?")

	r = run(t, dir, "", "-q", "list")
	assert.Equal(t, "2024-02-01_10-00-00.json\n2024-01-01_10-00-00.json\n", r.stdout)
}

func TestApp_SaveFromFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(src, []byte(`[{"role":"user","content":"hi"}]`), 0644))

	r := run(t, dir, "", "save", "bare.json", "--file", src)
	require.Equal(t, ExitSuccess, r.code, r.stderr)

	r = run(t, dir, "", "--json", "show", "bare.json")
	env := decodeEnvelope(t, r.stdout)
	var conv storage.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	assert.Equal(t, "bare.json", conv.Filename)
	assert.IsType(t, []any{}, conv.Content)
}

func TestApp_SaveRejectsBadInput(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := []struct {
		name  string
		file  string
		input string
	}{
		{"empty", "a.json", "  \n"},
		{"not json", "a.json", "{nope"},
		{"trailing data", "a.json", `{"a":1} {"b":2}`},
		{"path traversal", "../escape.json", `{}`},
		{"index name", "index.json", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, dir, tt.input, "save", tt.file)
			assert.Equal(t, ExitUsageError, r.code)
			assert.Contains(t, r.stderr, "[ERROR]")
		})
	}

	r := run(t, dir, "", "save")
	assert.Equal(t, ExitUsageError, r.code)
}

func TestApp_ShowMissing(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	r := run(t, dir, "", "show", "nope.json")
	assert.Equal(t, ExitNotFoundError, r.code)
	assert.Contains(t, r.stderr, "conversation not found: nope.json")

	r = run(t, dir, "", "--json", "show", "nope.json")
	assert.Equal(t, ExitNotFoundError, r.code)
	env := decodeEnvelope(t, r.stdout)
	assert.False(t, env.Success)
	assert.Equal(t, "not_found_error", env.ErrorType)
	require.NotNil(t, env.Error)
	assert.NotContains(t, r.stderr, "[ERROR]", "JSON errors go to stdout")
}

func TestApp_ListMarksMissingFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json", "b.json")
	require.NoError(t, os.Remove(filepath.Join(dir, storage.ConversationsDirName, "a.json")))

	r := run(t, dir, "", "--json", "list")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	var list ListData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &list))
	assert.Equal(t, []string{"a.json"}, list.Missing)
	assert.Len(t, list.Conversations, 2)

	r = run(t, dir, "", "list")
	assert.Contains(t, r.stdout, "(file missing)")
}

func TestApp_DeleteAndClear(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json", "b.json", "c.json")

	r := run(t, dir, "", "delete", "a.json", "ghost.json")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "a.json")

	r = run(t, dir, "", "-q", "list")
	assert.Equal(t, "c.json\nb.json\n", r.stdout)

	// stdin is a buffer, so there is nobody to ask.
	r = run(t, dir, "", "clear")
	assert.Equal(t, ExitGeneralError, r.code)
	assert.Contains(t, r.stderr, "confirmation required")

	r = run(t, dir, "", "--json", "clear", "--confirm")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	var cleared ClearData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &cleared))
	assert.Equal(t, 2, cleared.Deleted)

	r = run(t, dir, "", "-q", "list")
	assert.Empty(t, r.stdout)
}

func TestApp_ClearRefusesCorruptIndex(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json")
	index := filepath.Join(dir, storage.ConversationsDirName, storage.IndexFileName)
	require.NoError(t, os.WriteFile(index, []byte("{broken"), 0644))

	r := run(t, dir, "", "list")
	assert.Equal(t, ExitStorageError, r.code)

	r = run(t, dir, "", "clear", "-y")
	assert.Equal(t, ExitStorageError, r.code)
	data, err := os.ReadFile(index)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))

	r = run(t, dir, "", "--json", "doctor", "--fix")
	require.Equal(t, ExitSuccess, r.code, r.stdout)
	assert.Equal(t, "rebuilt with 1 entries", findCheck(doctorData(t, r), "Index").Message)

	r = run(t, dir, "", "-q", "list")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "a.json\n", r.stdout)
}

func TestApp_Search(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json", "b.json")

	r := run(t, dir, "", "--json", "search", "TYPE", "parameters")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	var data SearchData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &data))
	assert.Equal(t, "TYPE parameters", data.Query)
	require.Len(t, data.Matches, 2)
	assert.Equal(t, "b.json", data.Matches[0].Filename)

	r = run(t, dir, "", "--json", "search", "type", "--limit", "1")
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &data))
	assert.Len(t, data.Matches, 1)

	r = run(t, dir, "", "--json", "search", "no such words")
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &data))
	assert.NotNil(t, data.Matches)
	assert.Empty(t, data.Matches)

	r = run(t, dir, "", "search")
	assert.Equal(t, ExitUsageError, r.code)
	r = run(t, dir, "", "search", "go", "--limit", "0")
	assert.Equal(t, ExitUsageError, r.code)
}

func TestApp_BrowseNeedsTerminal(t *testing.T) {
	isolate(t)
	r := run(t, t.TempDir(), "", "browse")
	assert.Equal(t, ExitGeneralError, r.code)
	assert.Contains(t, r.stderr, "not a terminal")
}

// =============================================================================
// DOCTOR
// =============================================================================

func doctorData(t *testing.T, r runResult) DoctorData {
	t.Helper()
	var data DoctorData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &data))
	return data
}

func findCheck(data DoctorData, name string) DoctorCheck {
	for _, c := range data.Checks {
		if c.Name == name {
			return c
		}
	}
	return DoctorCheck{}
}

func TestApp_DoctorHealthy(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json")

	r := run(t, dir, "", "--json", "doctor")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	data := doctorData(t, r)
	assert.True(t, data.Summary.Healthy)
	assert.Zero(t, data.Summary.Warned)
	assert.Equal(t, "1 entries", findCheck(data, "Index").Message)

	r = run(t, dir, "", "doctor")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Data Directory:")
	assert.Contains(t, r.stdout, "passed")
}

func TestApp_DoctorFix(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json", "b.json")
	convDir := filepath.Join(dir, storage.ConversationsDirName)
	require.NoError(t, os.Remove(filepath.Join(convDir, "a.json")))
	require.NoError(t, os.WriteFile(filepath.Join(convDir, "stray.json"), []byte(`{}`), 0644))

	r := run(t, dir, "", "--json", "doctor")
	require.Equal(t, ExitSuccess, r.code, "warnings do not fail: %s", r.stdout)
	data := doctorData(t, r)
	assert.Equal(t, "warn", findCheck(data, "Dangling Entries").Status)
	assert.Equal(t, "chatstore doctor --fix", findCheck(data, "Dangling Entries").Fix)
	assert.Equal(t, "warn", findCheck(data, "Unindexed Files").Status)
	assert.Equal(t, 2, data.Summary.Warned)

	r = run(t, dir, "", "--json", "doctor", "--fix")
	require.Equal(t, ExitSuccess, r.code)
	data = doctorData(t, r)
	assert.Equal(t, "pass", findCheck(data, "Dangling Entries").Status)
	assert.Contains(t, findCheck(data, "Dangling Entries").Message, "removed 1")

	r = run(t, dir, "", "--json", "doctor")
	data = doctorData(t, r)
	assert.Equal(t, "pass", findCheck(data, "Dangling Entries").Status)
	assert.Equal(t, "none", findCheck(data, "Dangling Entries").Message)
}

func TestApp_DoctorCorruptIndexFails(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json")
	index := filepath.Join(dir, storage.ConversationsDirName, storage.IndexFileName)
	require.NoError(t, os.WriteFile(index, []byte(`{"not":"an array"}`), 0644))

	r := run(t, dir, "", "--json", "doctor")
	assert.Equal(t, ExitGeneralError, r.code)
	data := doctorData(t, r)
	assert.False(t, data.Summary.Healthy)
	assert.Equal(t, "fail", findCheck(data, "Index").Status)
	assert.Contains(t, findCheck(data, "Index").Fix, "doctor --fix")
	assert.NotContains(t, r.stdout, `"success": false`, "doctor reports its own failure")
}

func TestListPreview(t *testing.T) {
	assert.Equal(t, "a, b", listPreview([]string{"a", "b"}))
	assert.Equal(t, "a, b, c, and 2 more", listPreview([]string{"a", "b", "c", "d", "e"}))
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

func TestApp_ExportImportRoundTrip(t *testing.T) {
	isolate(t)
	src := t.TempDir()
	seed(t, src, "a.json", "b.json")

	for _, ext := range []string{"json", "db"} {
		t.Run(ext, func(t *testing.T) {
			backup := filepath.Join(t.TempDir(), "backup."+ext)
			r := run(t, src, "", "--json", "export", backup)
			require.Equal(t, ExitSuccess, r.code, r.stdout+r.stderr)
			var result export.Result
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &result))
			assert.Equal(t, 2, result.Count)
			assert.Equal(t, backup, result.Location)

			dst := t.TempDir()
			r = run(t, dst, "", "import", backup)
			require.Equal(t, ExitSuccess, r.code, r.stderr)
			assert.Contains(t, r.stdout, "Imported 2 conversations")

			r = run(t, dst, "", "-q", "list")
			assert.Equal(t, "b.json\na.json\n", r.stdout)
		})
	}
}

func TestApp_ExportStdoutAndImportStdin(t *testing.T) {
	isolate(t)
	src := t.TempDir()
	seed(t, src, "a.json")

	r := run(t, src, "", "export", "-")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, `"conversations"`)

	dst := t.TempDir()
	r = run(t, dst, r.stdout, "import", "-")
	require.Equal(t, ExitSuccess, r.code, r.stderr)

	r = run(t, dst, "", "-q", "list")
	assert.Equal(t, "a.json\n", r.stdout)
}

func TestApp_ExportErrors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	r := run(t, dir, "", "export")
	assert.Equal(t, ExitUsageError, r.code)

	r = run(t, dir, "", "export", "out.txt", "--format", "yaml")
	assert.Equal(t, ExitUsageError, r.code)

	r = run(t, dir, "", "import", filepath.Join(t.TempDir(), "notes.md"))
	assert.NotEqual(t, ExitSuccess, r.code)
	assert.Contains(t, r.stderr, "cannot be imported")

	r = run(t, dir, "", "import", filepath.Join(t.TempDir(), "absent.json"))
	assert.Equal(t, ExitNotFoundError, r.code)
}

// =============================================================================
// CONFIG / VERSION / UNKNOWN
// =============================================================================

func TestApp_Config(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "conf", "config.toml")

	r := run(t, t.TempDir(), "", "--config", cfgPath, "config", "path")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, cfgPath+"\n", r.stdout)

	r = run(t, t.TempDir(), "", "--config", cfgPath, "config", "init")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.FileExists(t, cfgPath)

	r = run(t, t.TempDir(), "", "--config", cfgPath, "config", "init")
	assert.Equal(t, ExitUsageError, r.code, "init refuses to overwrite")

	r = run(t, t.TempDir(), "", "--config", cfgPath, "config", "set", "server.port", "4100")
	require.Equal(t, ExitSuccess, r.code, r.stderr)

	dataDir := t.TempDir()
	r = run(t, dataDir, "", "--json", "--config", cfgPath, "config", "show")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	var data struct {
		Path   string `json:"config_path"`
		Exists bool   `json:"exists"`
		Config struct {
			DataDir string `json:"data_dir"`
			Server  struct {
				Port int `json:"port"`
			} `json:"server"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &data))
	assert.True(t, data.Exists)
	assert.Equal(t, 4100, data.Config.Server.Port)
	assert.Equal(t, dataDir, data.Config.DataDir, "--data-dir wins over the file")

	r = run(t, t.TempDir(), "", "--config", cfgPath, "config", "set", "server.port", "99999")
	assert.Equal(t, ExitConfigError, r.code)
	r = run(t, t.TempDir(), "", "--config", cfgPath, "config", "set", "nope", "1")
	assert.Equal(t, ExitUsageError, r.code)
	r = run(t, t.TempDir(), "", "--config", cfgPath, "config", "frobnicate")
	assert.Equal(t, ExitUsageError, r.code)
}

func TestApp_InvalidConfigFile(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[server]\nport = 0x\n"), 0644))

	r := run(t, t.TempDir(), "", "--config", cfgPath, "list")
	assert.Equal(t, ExitConfigError, r.code)
}

func TestSetConfigValue(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	for _, kv := range [][2]string{
		{"server.allowed_origins", "http://a, ,http://b"},
		{"watch.enabled", "off"},
		{"server.rate_limit_rps", "2.5"},
	} {
		r := run(t, t.TempDir(), "", "--config", cfgPath, "config", "set", kv[0], kv[1])
		require.Equal(t, ExitSuccess, r.code, r.stderr)
	}
	content, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `allowed_origins = ["http://a", "http://b"]`)
	assert.Contains(t, string(content), "enabled = false")
	assert.Contains(t, string(content), "rate_limit_rps = 2.5")
}

func TestApp_VersionAndUnknown(t *testing.T) {
	isolate(t)

	r := run(t, t.TempDir(), "", "--json", "version")
	require.Equal(t, ExitSuccess, r.code)
	var v VersionData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, r.stdout).Data, &v))
	assert.Equal(t, Version, v.Version)

	r = run(t, t.TempDir(), "", "serch", "x")
	assert.Equal(t, ExitUsageError, r.code)
	assert.Contains(t, r.stderr, "chatstore search")

	r = run(t, t.TempDir(), "")
	assert.Equal(t, ExitSuccess, r.code)
	assert.Contains(t, r.stdout, "Usage")
}

// =============================================================================
// SHELL
// =============================================================================

// scriptedInput feeds fixed lines to the shell, then EOF.
type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) Prompt(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func openApp(t *testing.T, dataDir string) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	_, args := ParseArgs([]string{"--data-dir", dataDir, "shell"})
	app := NewApp(args)
	var out, errOut bytes.Buffer
	app.Stdin = strings.NewReader("")
	app.Stdout = &out
	app.Stderr = &errOut
	require.NoError(t, app.setup())
	return app, &out, &errOut
}

func TestShell(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json", "b.json")
	app, out, errOut := openApp(t, dir)

	in := &scriptedInput{lines: []string{
		"",
		"help",
		"-q ls",
		"rm a.json",
		"serve",
		"lsit",
		"clear",
		"n",
		"-q ls",
		"exit",
		"ls",
	}}
	require.NoError(t, NewShell(app, in).Run())

	assert.Contains(t, out.String(), "Commands:")
	assert.Contains(t, out.String(), "b.json\na.json\n")
	assert.Contains(t, out.String(), "Cancelled.")
	assert.Contains(t, out.String(), "b.json\n")
	assert.Contains(t, errOut.String(), "not available in the shell")
	assert.Contains(t, errOut.String(), "chatstore list")
	assert.Equal(t, []string{"ls"}, in.lines, "exit stops before the last line")
	assert.Contains(t, in.prompts, "Delete all conversations? [y/N]: ")
}

func TestShell_ClearConfirmed(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seed(t, dir, "a.json")
	app, out, _ := openApp(t, dir)

	in := &scriptedInput{lines: []string{"clear", "yes"}}
	require.NoError(t, NewShell(app, in).Run())
	assert.Contains(t, out.String(), "Cleared 1 conversations")

	names, err := app.conversations.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestShell_NeedsTerminal(t *testing.T) {
	isolate(t)
	r := run(t, t.TempDir(), "", "shell")
	assert.Equal(t, ExitGeneralError, r.code)
}

func TestCompleteCommand(t *testing.T) {
	assert.Equal(t, []string{"search", "show"}, completeCommand("s"))
	assert.Equal(t, []string{"exit", "export"}, completeCommand("EX"))
	assert.Nil(t, completeCommand("show a"))
}

// =============================================================================
// SERVE
// =============================================================================

func TestServeUntil(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	conversations, err := storage.New(dir)
	require.NoError(t, err)
	prefs, err := settings.New(dir)
	require.NoError(t, err)

	srv := server.New(conversations, prefs, server.Config{Host: "127.0.0.1", Port: 0, Version: "test"})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntil(ctx, srv, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get(url)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("serveUntil did not return after cancel")
	}
}

func TestServeUntil_ServeError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	conversations, err := storage.New(dir)
	require.NoError(t, err)
	prefs, err := settings.New(dir)
	require.NoError(t, err)

	srv := server.New(conversations, prefs, server.Config{Host: "127.0.0.1", Port: 0})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln.Close()

	err = serveUntil(context.Background(), srv, ln)
	assert.Error(t, err)
}
