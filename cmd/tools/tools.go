package tools

import (
	"github.com/spf13/cobra"
)

// ToolsCmd represents the tools command
var ToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Pipetrace miscellaneous tools",
	Long:  `Helpers around the trace parser, such as the reference of the trace line grammar.`,
}
