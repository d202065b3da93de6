package parser

import (
	"strings"

	"github.com/Manu343726/pipetrace/pkg/pipeline/trace"
)

// Parses the text after "Prediction:" or "Predict:". Correctness and update are left
// nil when the simulator did not report them, as in the fetch time "Predict:" lines.
func parsePrediction(text string) *trace.PredictionInfo {
	info := &trace.PredictionInfo{Message: text}

	if !strings.Contains(text, "PC=") {
		return info
	}

	m := match(predictionPattern, text)
	if m == nil {
		return info
	}

	info.ProgramCounter = m.str(1)
	info.Message = m.str(2)

	if m.has(3) {
		correct := m.flag(3)
		update := m.str(4)
		info.Correct = &correct
		info.Update = &update
	}

	return info
}

// Returns the BTB description of a branch predictor state block given the lines of
// the block read so far
func joinBTBEntries(entries []string) string {
	return strings.Join(entries, "; ")
}
