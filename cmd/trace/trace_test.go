package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	ptrace "github.com/Manu343726/pipetrace/pkg/pipeline/trace"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NOTE: Always write tests with testify (assert/require packages)

const fixture = "../../pkg/pipeline/parser/testdata/sim_output.txt"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	var out bytes.Buffer
	TraceCmd.SetOut(&out)
	TraceCmd.SetErr(&out)
	TraceCmd.SetArgs(args)

	err := TraceCmd.Execute()
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	return exitErr.Code
}

func TestConvert_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")

	_, err := run(t, "convert", fixture, "-o", path)
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Instructions []map[string]string `json:"instructions"`
		Cycles       []map[string]any    `json:"cycles"`
		Stats        map[string]any      `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(contents, &doc))
	assert.Len(t, doc.Instructions, 3)
	assert.Len(t, doc.Cycles, 6)
	assert.Equal(t, 6.0, doc.Stats["Total Cycles"])
}

func TestOutputFormat_FromExtension(t *testing.T) {
	convertOutput = "trace.yml"
	defer func() { convertOutput = "" }()

	assert.Equal(t, "yaml", outputFormat(convertCmd))
}

func TestConvert_Errors(t *testing.T) {
	_, err := run(t, "convert", filepath.Join(t.TempDir(), "missing.txt"), "-o", "")
	assert.Equal(t, ExitMissingInput, exitCode(t, err))

	malformed := filepath.Join(t.TempDir(), "malformed.txt")
	require.NoError(t, os.WriteFile(malformed, []byte("=== Cycle 1 ===\n=== Cycle x ===\n"), 0o644))
	_, err = run(t, "convert", malformed, "-o", "")
	assert.Equal(t, ExitMalformedTrace, exitCode(t, err))
}

type closeFailure struct {
	bytes.Buffer
	closed bool
}

func (c *closeFailure) Close() error {
	c.closed = true
	return errors.New("disk full")
}

func TestWriteDocument_CloseErrorIsAnOutputError(t *testing.T) {
	tr, err := loadTrace(fixture)
	require.NoError(t, err)

	out := &closeFailure{}
	err = writeDocument(out, "json", ptrace.WriteJSON, tr)
	require.Error(t, err)
	assert.Equal(t, ExitOutput, exitCode(t, err))
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, out.closed)
	assert.NotEmpty(t, out.String(), "the document was written before the close failed")

	out = &closeFailure{}
	err = writeDocument(out, "yaml", func(io.Writer, ptrace.Trace) error { return errors.New("broken pipe") }, tr)
	assert.Equal(t, ExitOutput, exitCode(t, err))
	assert.Contains(t, err.Error(), "writing yaml document")
	assert.True(t, out.closed, "the output is closed after a failed write")
}

func TestConvert_UnwritableOutput(t *testing.T) {
	_, err := run(t, "convert", fixture, "-o", t.TempDir())
	assert.Equal(t, ExitOutput, exitCode(t, err))
}

func TestStats(t *testing.T) {
	out, err := run(t, "stats", fixture)
	require.NoError(t, err)

	assert.Contains(t, out, "Parsed cycles: 6\n")
	assert.Contains(t, out, "Total Cycles: 6\n")
	assert.Contains(t, out, "CPI: 3\n")
	assert.Less(t, bytes.Index([]byte(out), []byte("Total Cycles")), bytes.Index([]byte(out), []byte("Stalls Due to Control Hazards")))
}

func TestInspect(t *testing.T) {
	out, err := run(t, "inspect", fixture, "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "=== Instructions ===")
	assert.Contains(t, out, "=== Cycle 6 ===")
	assert.Contains(t, out, "=== Statistics ===")

	_, err = run(t, "inspect", fixture, "--cycle", "9")
	assert.Equal(t, ExitUnknownCycle, exitCode(t, err))
}
