package trace

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Manu343726/pipetrace/pkg/pipeline/parser"
	ptrace "github.com/Manu343726/pipetrace/pkg/pipeline/trace"
	"github.com/Manu343726/pipetrace/pkg/riscv"
	"github.com/spf13/cobra"
)

// Process exit codes of the trace commands
const (
	ExitFailure        = 1
	ExitMissingInput   = 2
	ExitMalformedTrace = 3
	ExitOutput         = 4
	ExitUnknownCycle   = 5
)

var programFile string

// TraceCmd represents the trace command
var TraceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Parse and inspect pipeline simulator traces",
	Long: `Commands working on the text output of the pipeline simulator.

Every command takes the path of a trace file. The program instructions are read
from the "Loaded text" lines of the trace, or from a program file given with --program.`,
}

func init() {
	TraceCmd.PersistentFlags().StringVarP(&programFile, "program", "p", "", "Program file (<addr> <instr> per line) whose instructions replace the ones found in the trace")
}

// ExitError carries the process exit code of a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// Maps a parse error to its exit code
func parseExitCode(err error) int {
	switch {
	case errors.Is(err, parser.ErrMissingInput), errors.Is(err, riscv.ErrProgramInput), errors.Is(err, riscv.ErrEmptyProgram):
		return ExitMissingInput
	case errors.Is(err, parser.ErrMalformedCycleHeader):
		return ExitMalformedTrace
	default:
		return ExitFailure
	}
}

// Parses the trace file at path, honoring the --program flag
func loadTrace(path string) (*ptrace.SimulationTrace, error) {
	logger := slog.Default().With("trace", path)
	opts := []parser.Option{parser.WithLogger(logger)}

	if programFile != "" {
		program, err := riscv.LoadProgramFile(programFile)
		if err != nil {
			return nil, exitError(parseExitCode(err), err)
		}

		if len(program.SkippedLines) > 0 {
			logger.Warn("skipped malformed program lines", "program", programFile, "lines", program.SkippedLines)
		}

		opts = append(opts, parser.WithProgram(program))
	}

	t, err := parser.ParseFile(path, opts...)
	if err != nil {
		return nil, exitError(parseExitCode(err), fmt.Errorf("parsing trace: %w", err))
	}

	return t, nil
}
