package trace

import (
	"errors"
	"os"

	ptrace "github.com/Manu343726/pipetrace/pkg/pipeline/trace"
	"github.com/Manu343726/pipetrace/pkg/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	inspectCycles    []int
	inspectRegisters bool
	inspectNoColor   bool
)

// Colors for the trace dump
var (
	colorHeader   = color.New(color.FgWhite, color.Bold, color.Underline)
	colorLabel    = color.New(color.FgCyan)
	colorValue    = color.New(color.FgWhite)
	colorInactive = color.New(color.FgHiBlack)
	colorChanged  = color.New(color.FgGreen, color.Bold)
)

// Printed width of one register file entry, separator included
const registerCellWidth = 31

var inspectCmd = &cobra.Command{
	Use:   "inspect <trace>",
	Short: "Show the cycles of a simulator trace",
	Long: `Prints the stages, pipeline registers, branch prediction and register updates
of each cycle of a trace, followed by the simulation statistics.

Example:
  pipetrace trace inspect sim_output.txt
  pipetrace trace inspect sim_output.txt --cycle 4 --cycle 5 --registers`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	TraceCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().IntSliceVarP(&inspectCycles, "cycle", "c", nil, "Cycle to show. Can be repeated. If omitted, all cycles are shown")
	inspectCmd.Flags().BoolVarP(&inspectRegisters, "registers", "r", false, "Show the full register file of each cycle")
	inspectCmd.Flags().BoolVar(&inspectNoColor, "no-color", false, "Disable colored output")
}

// Registers per row of the register table that fit in the terminal
func registersPerRow() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 4
	}

	fitting := utils.Filter([]int{8, 4, 2}, func(n int) bool { return n*registerCellWidth <= width })
	if len(fitting) == 0 {
		return 1
	}

	return fitting[0]
}

func runInspect(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if inspectNoColor {
		color.NoColor = true
	}

	t, err := loadTrace(args[0])
	if err != nil {
		return err
	}

	for _, n := range inspectCycles {
		if _, err := t.CycleAt(n); err != nil {
			return exitError(ExitUnknownCycle, err)
		}
	}

	err = ptrace.DumpTrace(cmd.OutOrStdout(), t, ptrace.DumpOptions{
		Cycles:       inspectCycles,
		RegisterFile: inspectRegisters,
		Style: ptrace.DumpStyle{
			Header:          colorHeader.SprintFunc(),
			Label:           colorLabel.SprintFunc(),
			Value:           colorValue.SprintFunc(),
			Inactive:        colorInactive.SprintFunc(),
			Changed:         colorChanged.SprintFunc(),
			RegistersPerRow: registersPerRow(),
		},
	})

	switch {
	case errors.Is(err, ptrace.ErrOutOfRange):
		return exitError(ExitUnknownCycle, err)
	case err != nil:
		return exitError(ExitOutput, err)
	}

	return nil
}
