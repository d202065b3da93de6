package trace

import (
	"fmt"
	"io"
	"strings"
)

// DumpStyle decorates the pieces of a trace dump. Zero values leave text undecorated,
// so the zero DumpStyle produces plain text.
type DumpStyle struct {
	Header   func(a ...any) string
	Label    func(a ...any) string
	Value    func(a ...any) string
	Inactive func(a ...any) string
	Changed  func(a ...any) string

	// Registers per row of the register file table. Zero means 4.
	RegistersPerRow int
}

// DumpOptions selects which parts of a trace are dumped
type DumpOptions struct {
	Style DumpStyle
	// Cycles to dump. Empty dumps all cycles.
	Cycles []int
	// Dump the full register file of each dumped cycle
	RegisterFile bool
	// Skip the instruction listing and the statistics summary
	CyclesOnly bool
}

// DumpTrace writes a human readable representation of a trace to the given writer.
// This output is intended for inspection, not for parsing.
func DumpTrace(w io.Writer, t Trace, opts DumpOptions) error {
	d := &traceDumper{w: w, t: t, opts: opts, style: opts.Style.withDefaults()}
	return d.dump()
}

type traceDumper struct {
	w     io.Writer
	t     Trace
	opts  DumpOptions
	style DumpStyle
}

func plain(a ...any) string {
	return fmt.Sprint(a...)
}

func (s DumpStyle) withDefaults() DumpStyle {
	for _, f := range []*func(a ...any) string{&s.Header, &s.Label, &s.Value, &s.Inactive, &s.Changed} {
		if *f == nil {
			*f = plain
		}
	}

	if s.RegistersPerRow <= 0 {
		s.RegistersPerRow = 4
	}

	return s
}

func (d *traceDumper) dump() error {
	if !d.opts.CyclesOnly {
		d.dumpInstructions()
	}

	if err := d.dumpCycles(); err != nil {
		return err
	}

	if !d.opts.CyclesOnly {
		d.dumpStatistics()
	}

	return nil
}

func (d *traceDumper) dumpInstructions() {
	instructions := d.t.Instructions()
	fmt.Fprintln(d.w, d.style.Header("=== Instructions ==="))
	if len(instructions) == 0 {
		fmt.Fprintln(d.w, "(none)")
	}
	for i, instr := range instructions {
		fmt.Fprintf(d.w, "[%3d] %s %s  %s\n", i, d.style.Label(instr.Address), d.style.Value(instr.Encoding), instr.Mnemonic)
	}
	fmt.Fprintln(d.w)
}

func (d *traceDumper) dumpCycles() error {
	cycles := d.opts.Cycles
	if len(cycles) == 0 {
		for _, c := range d.t.Cycles() {
			cycles = append(cycles, c.CycleNumber)
		}
	}

	for _, n := range cycles {
		cycle, err := d.t.CycleAt(n)
		if err != nil {
			return err
		}

		d.dumpCycle(cycle)

		if d.opts.RegisterFile {
			file, err := d.t.RegisterFileAt(n)
			if err != nil {
				return err
			}
			d.dumpRegisterFile(file, cycle.RegisterUpdates)
		}

		fmt.Fprintln(d.w)
	}

	return nil
}

func (d *traceDumper) dumpCycle(c CycleSnapshot) {
	fmt.Fprintln(d.w, d.style.Header(fmt.Sprintf("=== Cycle %d ===", c.CycleNumber)))

	for _, stage := range Stages {
		state := c.Stage(stage)
		if state.Active {
			fmt.Fprintf(d.w, "  %-10s %s\n", d.style.Label(stage.String()+":"), d.style.Value(state.String()))
		} else {
			fmt.Fprintf(d.w, "  %-10s %s\n", d.style.Label(stage.String()+":"), d.style.Inactive(state.Reason))
		}
	}

	for _, kind := range LatchKinds {
		latch := c.Latches.Get(kind)
		if latch.Valid {
			fmt.Fprintf(d.w, "  %-10s %s\n", d.style.Label(kind.String()+":"), d.style.Value(latch.String()))
		} else {
			fmt.Fprintf(d.w, "  %-10s %s\n", d.style.Label(kind.String()+":"), d.style.Inactive(latch.String()))
		}
	}

	if c.BTB != "" {
		fmt.Fprintf(d.w, "  %-10s %s\n", d.style.Label("BTB:"), c.BTB)
	}

	if c.Prediction != nil {
		fmt.Fprintf(d.w, "  %-10s %s\n", d.style.Label("Predict:"), c.Prediction.String())
	}

	if len(c.RegisterUpdates) > 0 {
		updates := make([]string, len(c.RegisterUpdates))
		for i, u := range c.RegisterUpdates {
			updates[i] = d.style.Changed(u.String())
		}
		fmt.Fprintf(d.w, "  %-10s %s\n", d.style.Label("Updates:"), strings.Join(updates, ", "))
	}
}

func (d *traceDumper) dumpRegisterFile(file RegisterFile, updates []RegisterUpdate) {
	changed := map[int]bool{}
	for _, u := range updates {
		changed[u.RegisterIndex] = true
	}

	for i, value := range file {
		if i%d.style.RegistersPerRow == 0 {
			fmt.Fprint(d.w, "  ")
		}

		text := fmt.Sprintf("x%02d: %11d (0x%08x)", i, int32(value), value)
		if changed[i] {
			text = d.style.Changed(text)
		}
		fmt.Fprint(d.w, text)

		if (i+1)%d.style.RegistersPerRow == 0 || i == len(file)-1 {
			fmt.Fprintln(d.w)
		} else {
			fmt.Fprint(d.w, "  ")
		}
	}
}

func (d *traceDumper) dumpStatistics() {
	statistics := d.t.Statistics()
	fmt.Fprintln(d.w, d.style.Header("=== Statistics ==="))
	if len(statistics) == 0 {
		fmt.Fprintln(d.w, "(none)")
	}
	for _, name := range d.t.StatisticNames() {
		fmt.Fprintf(d.w, "%s: %s\n", d.style.Label(name), d.style.Value(statistics[name].String()))
	}
}
