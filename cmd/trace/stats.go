package trace

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsNames []string

var statsCmd = &cobra.Command{
	Use:   "stats <trace>",
	Short: "Print the simulation statistics of a trace",
	Long: `Prints the statistics block at the end of a simulator trace, in the order the
simulator emitted them, along with the number of parsed cycles.

Example:
  pipetrace trace stats sim_output.txt
  pipetrace trace stats sim_output.txt --name CPI --name "Total Cycles"`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	TraceCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringArrayVarP(&statsNames, "name", "n", nil, "Statistic to print. Can be repeated. If omitted, all statistics are printed")
}

func runStats(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	t, err := loadTrace(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	statistics := t.Statistics()

	names := statsNames
	if len(names) == 0 {
		names = t.StatisticNames()
		fmt.Fprintf(out, "%s %d\n", colorLabel.Sprint("Parsed cycles:"), t.CycleCount())
	}

	for _, name := range names {
		statistic, ok := statistics[name]
		if !ok {
			return exitError(ExitFailure, fmt.Errorf("statistic %q is not in the trace", name))
		}

		fmt.Fprintf(out, "%s %s\n", colorLabel.Sprint(name+":"), colorValue.Sprint(statistic.String()))
	}

	return nil
}
