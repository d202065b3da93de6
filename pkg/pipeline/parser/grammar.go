package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Manu343726/pipetrace/pkg/pipeline/trace"
	"github.com/Manu343726/pipetrace/pkg/utils"
)

// Field grammars of the trace lines. Stage and pipeline register grammars match the
// text after the line label.
const hexPattern = `0x[0-9A-Fa-f]+`

var (
	cycleNumberPattern = regexp.MustCompile(`^=+\s*Cycle\s+(\d+)\b`)

	fetchPattern = regexp.MustCompile(`PC=(` + hexPattern + `), IR=(` + hexPattern + `), Instr#=(\d+), NextPC=(` + hexPattern + `)`)

	decodePattern       = regexp.MustCompile(`PC=(` + hexPattern + `), IR=(` + hexPattern + `), rs1=x(\d+)\((-?\d+)\), rs2=x(\d+)\((-?\d+)\), rd=x(\d+)`)
	decodeDetailPattern = regexp.MustCompile(`^Decode (\w+):\s*(.*)$`)
	branchPattern       = regexp.MustCompile(`Taken=([01]), Target=(` + hexPattern + `)`)
	rs1Pattern          = regexp.MustCompile(`rs1=x(\d+)\((-?\d+)\)`)
	rs2Pattern          = regexp.MustCompile(`rs2=x(\d+)\((-?\d+)\)`)

	executePattern = regexp.MustCompile(`^PC=(` + hexPattern + `), IR=(` + hexPattern + `)(?:, (.*?))?(?:, Result=(-?\d+))?$`)

	// Shared by memory and writeback lines
	instructionRefPattern = regexp.MustCompile(`PC=(` + hexPattern + `), Instr#=(\d+)`)

	writebackRegisterPattern = regexp.MustCompile(`x(\d+) = (` + hexPattern + `)(?: \((-?\d+)\))?`)

	ifIdPattern  = regexp.MustCompile(`PC=(` + hexPattern + `), IR=(` + hexPattern + `), Instr#=(\d+)`)
	idExPattern  = regexp.MustCompile(`PC=(` + hexPattern + `), rs1=x(\d+)\((-?\d+)\), rs2=x(\d+)\((-?\d+)\), rd=x(\d+), imm=(-?\d+), ALU=(\w+), Instr#=(\d+)`)
	exMemPattern = regexp.MustCompile(`PC=(` + hexPattern + `), ALU=(-?\d+), rs2_val=(-?\d+), rd=x(\d+), Ctrl=([\w ]*?)\s*,?\s*Instr#=(\d+)`)
	memWbPattern = regexp.MustCompile(`PC=(` + hexPattern + `), WData=(-?\d+), rd=x(\d+), Ctrl=([\w ]*?)\s*,?\s*Instr#=(\d+)`)

	predictionPattern = regexp.MustCompile(`PC=(` + hexPattern + `), (.*?)(?:, Correct=([01]), Update=(.*))?$`)

	registerFileEntryPattern = regexp.MustCompile(`x(\d+):\s*(-?\d+)\s*\((` + hexPattern + `)\)`)

	statisticPattern = regexp.MustCompile(`^(\w[\w\s/]*?):\s*(-?\d+(?:\.\d*)?)$`)

	loadedInstructionPattern = regexp.MustCompile(`^Loaded text: Addr=(` + hexPattern + `), Instr=(` + hexPattern + `)`)
)

// Splits a trace line into its label and the text after the first colon
func splitLabel(line string) (label string, rest string) {
	label, rest, _ = strings.Cut(line, ":")
	return strings.TrimSpace(label), strings.TrimSpace(rest)
}

// Returns whether text contains any of the markers, ignoring case
func containsAny(text string, markers ...string) bool {
	lower := strings.ToLower(text)

	for _, marker := range markers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}

	return false
}

// Converts the submatches of a grammar match into typed values. The first conversion
// failure is kept and every later conversion returns a zero value, so a sequence of
// reads can be checked once at the end.
type matchReader struct {
	groups []string
	err    error
}

// Matches a grammar against text. Returns nil if the grammar does not match.
func match(pattern *regexp.Regexp, text string) *matchReader {
	groups := pattern.FindStringSubmatch(text)
	if groups == nil {
		return nil
	}

	return &matchReader{groups: groups}
}

func (m *matchReader) str(group int) string {
	return m.groups[group]
}

func (m *matchReader) has(group int) bool {
	return m.groups[group] != ""
}

func (m *matchReader) int(group int) int {
	return int(m.int64(group))
}

func (m *matchReader) int64(group int) int64 {
	if m.err != nil {
		return 0
	}

	value, err := strconv.ParseInt(m.groups[group], 10, 64)
	if err != nil {
		m.err = err
	}

	return value
}

func (m *matchReader) hex32(group int) uint32 {
	if m.err != nil {
		return 0
	}

	value, err := utils.ParseHex32(m.groups[group])
	if err != nil {
		m.err = err
	}

	return value
}

func (m *matchReader) flag(group int) bool {
	return m.groups[group] == "1"
}

// Reads a register operand from an index group and the value group that follows it
func (m *matchReader) operand(indexGroup int) trace.RegisterOperand {
	return trace.RegisterOperand{
		Index: m.int(indexGroup),
		Value: m.int64(indexGroup + 1),
	}
}

func (m *matchReader) ok() bool {
	return m.err == nil
}
