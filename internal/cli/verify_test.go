package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velotype/velotype/internal/metrics"
)

func writeKeystrokeLog(t *testing.T, text string) string {
	t.Helper()
	records := make([]metrics.Keystroke, 0, len(text))
	for i, r := range []rune(text) {
		records = append(records, metrics.Keystroke{
			SessionID:    "sess-cli",
			CharExpected: string(r),
			CharTyped:    string(r),
			EventType:    metrics.EventKeyDown,
			TimestampMs:  int64(i) * 150,
			CursorIndex:  i,
			IsCorrect:    true,
		})
	}
	raw, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keystrokes.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestVerify_CleanSession(t *testing.T) {
	path := writeKeystrokeLog(t, "hello world")
	out, err := runCommand(t, "verify", "--keystrokes", path, "--text", "hello world", "--accuracy", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Verified: clean")
}

func TestVerify_InflatedWPMFlagged(t *testing.T) {
	path := writeKeystrokeLog(t, "hello world")
	out, err := runCommand(t, "verify", "--keystrokes", path, "--text", "hello world", "--wpm", "400")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FLAGGED")
	assert.Contains(t, out, "raw wpm mismatch")
}

func TestVerify_MissingFile(t *testing.T) {
	_, err := runCommand(t, "verify", "--keystrokes", "/nope/missing.json", "--text", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerify_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := runCommand(t, "verify", "--keystrokes", path, "--text", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerify_JSONOutputCarriesComputedMetrics(t *testing.T) {
	path := writeKeystrokeLog(t, "abc")
	out, err := runCommand(t, "verify", "--keystrokes", path, "--text", "abc", "--format", "json")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	payload, _ := json.Marshal(resp.Data)
	var verdict metrics.VerificationResult
	require.NoError(t, json.Unmarshal(payload, &verdict))
	assert.True(t, verdict.Valid)
	assert.Equal(t, 100.0, verdict.Computed.Accuracy)
}
