package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	ptrace "github.com/Manu343726/pipetrace/pkg/pipeline/trace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	convertOutput string
	convertFormat string
)

var writers = map[string]func(io.Writer, ptrace.Trace) error{
	"json": ptrace.WriteJSON,
	"yaml": ptrace.WriteYAML,
}

var convertCmd = &cobra.Command{
	Use:   "convert <trace>",
	Short: "Convert a simulator trace to JSON or YAML",
	Long: `Parses a simulator trace and writes it as a structured document with the
instructions, the state of every cycle and the simulation statistics.

When --format is not given the format is taken from the extension of the output
file (.yaml and .yml select YAML), falling back to the "format" config key.

Example:
  pipetrace trace convert sim_output.txt -o trace.json
  pipetrace trace convert sim_output.txt -f yaml --program program.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	TraceCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file. If omitted, the document is written to stdout")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "", "Output format: json or yaml")
	viper.SetDefault("format", "json")
}

func outputFormat(cmd *cobra.Command) string {
	if cmd.Flags().Changed("format") {
		return strings.ToLower(convertFormat)
	}

	switch strings.ToLower(filepath.Ext(convertOutput)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	}

	return strings.ToLower(viper.GetString("format"))
}

func runConvert(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	format := outputFormat(cmd)
	write, ok := writers[format]
	if !ok {
		return exitError(ExitFailure, fmt.Errorf("unsupported format %q, expected json or yaml", format))
	}

	t, err := loadTrace(args[0])
	if err != nil {
		return err
	}

	if convertOutput == "" {
		if err := write(cmd.OutOrStdout(), t); err != nil {
			return exitError(ExitOutput, fmt.Errorf("writing %s document: %w", format, err))
		}

		return nil
	}

	file, err := os.Create(convertOutput)
	if err != nil {
		return exitError(ExitOutput, fmt.Errorf("creating output file: %w", err))
	}

	return writeDocument(file, format, write, t)
}

// Writes the document to out and closes it. A failed close is an output error.
func writeDocument(out io.WriteCloser, format string, write func(io.Writer, ptrace.Trace) error, t ptrace.Trace) error {
	if err := write(out, t); err != nil {
		out.Close()
		return exitError(ExitOutput, fmt.Errorf("writing %s document: %w", format, err))
	}

	if err := out.Close(); err != nil {
		return exitError(ExitOutput, fmt.Errorf("closing output file: %w", err))
	}

	return nil
}
