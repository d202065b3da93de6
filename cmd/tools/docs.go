package tools

import (
	"fmt"
	"os"
	"strings"

	"github.com/Manu343726/pipetrace/pkg/pipeline/parser"
	"github.com/Manu343726/pipetrace/pkg/riscv"
	"github.com/Manu343726/pipetrace/pkg/utils"
	"github.com/spf13/cobra"
)

var supportedModules = map[string]func() string{
	"trace.grammar":      parser.GrammarDocString,
	"riscv.instructions": instructionsDocString,
}

var docsCmd = &cobra.Command{
	Use:   "docs module",
	Short: "Show pipetrace documentation",
	Long: `Dumps the documentation of the specified pipetrace module.
By default the tool dumps the documentation to stdout, but it can be redirected to a file using the --output flag.

Supported modules:
` + strings.Join(utils.Map(utils.SortedKeys(supportedModules), func(module string) string { return "  " + module }), "\n"),
	Args:      cobra.MatchAll(cobra.OnlyValidArgs, cobra.ExactArgs(1)),
	ValidArgs: utils.SortedKeys(supportedModules),
	Run: func(cmd *cobra.Command, args []string) {
		module := args[0]
		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			file, err := os.Create(outputFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error creating file:", err)
				os.Exit(1)
			}
			defer file.Close()
			fmt.Fprintln(file, supportedModules[module]())
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), supportedModules[module]())
		}
	},
}

// Lists the operations the disassembler recognizes
func instructionsDocString() string {
	var builder strings.Builder

	builder.WriteString("Instructions are disassembled as RV32I with the M extension.\n")
	builder.WriteString("A word encodes an operation when word & mask == match.\n\n")
	builder.WriteString(fmt.Sprintf("%-8s %-10s %-10s %s\n", "MNEMONIC", "FORMAT", "MATCH", "MASK"))

	for _, op := range riscv.Operations {
		builder.WriteString(fmt.Sprintf("%-8s %-10s %s %s\n", op.Mnemonic, op.Format, utils.FormatHex32(op.Match), utils.FormatHex32(op.Mask)))
	}

	return builder.String()
}

func init() {
	ToolsCmd.AddCommand(docsCmd)
	docsCmd.Flags().StringP("output", "o", "", "Output file. If not specified, the documentation is dumped to stdout.")
}
