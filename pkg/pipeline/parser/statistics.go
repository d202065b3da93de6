package parser

import (
	"strconv"
	"strings"

	"github.com/Manu343726/pipetrace/pkg/pipeline/trace"
)

// A named value of the statistics summary
type statisticEntry struct {
	Name  string
	Value trace.Statistic
}

// Parses a "<name>: <number>" statistics row. A number with a decimal point is a
// floating point statistic, anything else an integer one.
func parseStatistic(line string) (statisticEntry, bool) {
	m := match(statisticPattern, line)
	if m == nil {
		return statisticEntry{}, false
	}

	name, number := strings.TrimSpace(m.str(1)), m.str(2)

	if strings.Contains(number, ".") {
		value, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return statisticEntry{}, false
		}

		return statisticEntry{Name: name, Value: trace.FloatStatistic(value)}, true
	}

	value, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		return statisticEntry{}, false
	}

	return statisticEntry{Name: name, Value: trace.IntStatistic(value)}, true
}

// Statistics summary in the order the names were first reported
type statisticsTable struct {
	values map[string]trace.Statistic
	names  []string
}

func newStatisticsTable() *statisticsTable {
	return &statisticsTable{values: map[string]trace.Statistic{}}
}

// Adds a statistic. A repeated name overwrites the earlier value and keeps its position.
func (t *statisticsTable) add(entry statisticEntry) {
	if _, exists := t.values[entry.Name]; !exists {
		t.names = append(t.names, entry.Name)
	}

	t.values[entry.Name] = entry.Value
}
