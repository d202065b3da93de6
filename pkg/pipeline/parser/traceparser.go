package parser

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Manu343726/pipetrace/pkg/logging"
	"github.com/Manu343726/pipetrace/pkg/pipeline/trace"
	"github.com/Manu343726/pipetrace/pkg/riscv"
	"github.com/Manu343726/pipetrace/pkg/utils"
)

// Longest trace line accepted by the reader
const maxLineLength = 1024 * 1024

// TraceParser turns the text output of the pipeline simulator into a trace model
type TraceParser struct {
	logger *slog.Logger

	// Explicit program instructions. When set they replace the instructions found
	// in the trace.
	instructions []trace.Instruction
}

// Configures a TraceParser
type Option func(*TraceParser)

// Sets the logger used to report recoverable parse problems
func WithLogger(logger *slog.Logger) Option {
	return func(p *TraceParser) {
		p.logger = logger
	}
}

// Sets the program instructions of the trace, replacing the "Loaded text" lines of the trace
func WithInstructions(instructions []trace.Instruction) Option {
	return func(p *TraceParser) {
		p.instructions = utils.Clone(instructions)
	}
}

// Sets the program instructions of the trace from a loaded program
func WithProgram(program riscv.Program) Option {
	return WithInstructions(InstructionsFromProgram(program))
}

// Returns the instructions of a program, disassembled
func InstructionsFromProgram(program riscv.Program) []trace.Instruction {
	return utils.Map(program.Words, func(w riscv.Word) trace.Instruction {
		return trace.NewInstruction(w.Address, w.Encoding, w.Disassemble())
	})
}

// NewTraceParser creates a parser with the given options
func NewTraceParser(opts ...Option) *TraceParser {
	p := &TraceParser{
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ParseFile reads and parses a trace file
func ParseFile(path string, opts ...Option) (*trace.SimulationTrace, error) {
	return NewTraceParser(opts...).ParseFile(path)
}

// ParseFile reads and parses a trace file
func (p *TraceParser) ParseFile(path string) (*trace.SimulationTrace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.MakeError(ErrMissingInput, "%s: %w", path, err)
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return nil, utils.MakeError(ErrMissingInput, "%s: %w", path, err)
	}

	p.logger.Debug("read trace file", "path", path, "lines", len(lines))
	return p.Parse(lines)
}

// ParseReader reads the whole trace from r and parses it
func (p *TraceParser) ParseReader(r io.Reader) (*trace.SimulationTrace, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, utils.MakeError(ErrMissingInput, "%w", err)
	}

	return p.Parse(lines)
}

func readLines(r io.Reader) ([]string, error) {
	lines := []string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines, scanner.Err()
}

// Parse parses the lines of a trace in a single pass and resolves the register
// updates of every cycle. The only fatal condition is a cycle marker without a
// valid cycle number, in which case no trace is returned. Blocks whose cycle number
// does not increase are skipped.
func (p *TraceParser) Parse(lines []string) (*trace.SimulationTrace, error) {
	ctx := newParseContext(p.logger)

	for _, line := range lines {
		if err := ctx.processLine(line); err != nil {
			return nil, err
		}
	}

	ctx.sealCycle()
	registerFiles := ctx.tracker.Finalize(ctx.cycles)

	instructions := ctx.instructions
	if p.instructions != nil {
		instructions = p.instructions
	}

	p.logger.Info("parsed trace",
		"lines", len(lines),
		"cycles", len(ctx.cycles),
		"instructions", len(instructions),
		"statistics", len(ctx.statistics.names))

	return trace.NewSimulationTrace(trace.TraceContents{
		Instructions:   instructions,
		Cycles:         ctx.cycles,
		RegisterFiles:  registerFiles,
		Statistics:     ctx.statistics.values,
		StatisticNames: ctx.statistics.names,
	}), nil
}

// State of a parse in progress
type parseContext struct {
	logger *slog.Logger

	lineNum int
	mode    BlockMode

	// Open cycle, nil before the first cycle marker
	current   *trace.CycleSnapshot
	lastCycle int
	cycles    []trace.CycleSnapshot

	tracker      *trace.RegisterFileTracker
	instructions []trace.Instruction
	statistics   *statisticsTable
	btbEntries   []string
}

func newParseContext(logger *slog.Logger) *parseContext {
	return &parseContext{
		logger:       logger,
		tracker:      trace.NewRegisterFileTracker(),
		instructions: []trace.Instruction{},
		statistics:   newStatisticsTable(),
	}
}

// Handles one classified line. line is the trimmed line text.
type lineHandler func(ctx *parseContext, c Classification, line string) error

var lineHandlers = map[LineKind]lineHandler{
	LineCycleMarker: (*parseContext).handleCycleMarker,

	LineFetch:        stageHandler(trace.StageFetch, parseFetch),
	LineDecode:       stageHandler(trace.StageDecode, parseDecode),
	LineExecute:      stageHandler(trace.StageExecute, parseExecute),
	LineMemory:       stageHandler(trace.StageMemory, parseMemory),
	LineWriteback:    inCycle((*parseContext).handleWriteback),
	LineDecodeDetail: inCycle((*parseContext).handleDecodeDetail),

	LineLatch:      inCycle((*parseContext).handleLatch),
	LineBTB:        inCycle((*parseContext).handleBTB),
	LineBTBEntry:   inCycle((*parseContext).handleBTBEntry),
	LinePrediction: inCycle((*parseContext).handlePrediction),

	LineRegisterFileRow: inCycle((*parseContext).handleRegisterFileRow),

	LineRegisterFileHeader:     enterBlock(ModeRegisterFile),
	LinePipelineRegisterHeader: enterBlock(ModeLatches),
	LineBranchPredictorHeader:  enterBlock(ModeBranchPredictor),
	LineStatisticsHeader:       enterBlock(ModeStatistics),
	LineInstructionTraceHeader: enterBlock(ModeInstructionTrace),

	LineStatisticsRow:     (*parseContext).handleStatisticsRow,
	LineLoadedInstruction: (*parseContext).handleLoadedInstruction,
}

func (ctx *parseContext) processLine(raw string) error {
	ctx.lineNum++
	line := strings.TrimSpace(raw)

	if line == "" {
		return nil
	}

	c := Classify(line, ctx.mode)

	// Statistics and branch predictor blocks have no terminator, the first line that is
	// not one of their rows ends them and is handled on its own
	if ctx.mode.endsOnMismatch() && !c.InBlock {
		ctx.exitBlock()
	}

	handler, ok := lineHandlers[c.Kind]
	if !ok {
		return nil
	}

	return handler(ctx, c, line)
}

// Returns a handler that ignores the line when there is no open cycle
func inCycle(handler lineHandler) lineHandler {
	return func(ctx *parseContext, c Classification, line string) error {
		if ctx.current == nil {
			ctx.logger.Debug("ignoring line outside of a cycle", "line", ctx.lineNum, "kind", c.Kind, "text", line)
			return nil
		}

		return handler(ctx, c, line)
	}
}

func stageHandler(stage trace.Stage, parse func(text string) (trace.StageState, bool)) lineHandler {
	return inCycle(func(ctx *parseContext, c Classification, line string) error {
		_, text := splitLabel(line)
		state, matched := parse(text)
		ctx.setStage(stage, state, matched, line)
		return nil
	})
}

func enterBlock(mode BlockMode) lineHandler {
	return func(ctx *parseContext, c Classification, line string) error {
		ctx.exitBlock()
		ctx.mode = mode
		return nil
	}
}

func (ctx *parseContext) exitBlock() {
	ctx.mode = ModeNone
	ctx.btbEntries = nil
}

func (ctx *parseContext) setStage(stage trace.Stage, state trace.StageState, matched bool, line string) {
	if !matched {
		ctx.logger.Debug("unparsed stage line", "line", ctx.lineNum, "stage", stage, "text", line)
	}

	ctx.current.SetStage(stage, state)
}

func (ctx *parseContext) sealCycle() {
	if ctx.current == nil {
		return
	}

	ctx.cycles = append(ctx.cycles, *ctx.current)
	ctx.current = nil
}

func (ctx *parseContext) handleCycleMarker(c Classification, line string) error {
	m := match(cycleNumberPattern, line)
	if m == nil {
		return utils.MakeError(ErrMalformedCycleHeader, "line %d: %q", ctx.lineNum, line)
	}

	number := m.int(1)
	if !m.ok() {
		return utils.MakeError(ErrMalformedCycleHeader, "line %d: %q", ctx.lineNum, line)
	}

	ctx.sealCycle()
	ctx.exitBlock()

	// Lines of a block whose cycle number does not increase are dropped until the next
	// increasing marker
	if number <= ctx.lastCycle {
		ctx.logger.Warn("skipping out of order cycle", "line", ctx.lineNum, "cycle", number, "previous", ctx.lastCycle)
		return nil
	}

	cycle := trace.NewCycleSnapshot(number)
	ctx.current = &cycle
	ctx.lastCycle = number
	return nil
}

func (ctx *parseContext) handleWriteback(c Classification, line string) error {
	_, text := splitLabel(line)
	state, update, matched := parseWriteback(text)
	ctx.setStage(trace.StageWriteback, state, matched, line)

	if update == nil {
		return nil
	}

	if err := ctx.tracker.RecordWriteback(ctx.current.CycleNumber, update.RegisterIndex, update.Value); err != nil {
		ctx.logger.Warn("skipping register update", "line", ctx.lineNum, "error", err)
	}

	return nil
}

func (ctx *parseContext) handleDecodeDetail(c Classification, line string) error {
	branch, ok := parseDecodeDetail(line, ctx.current.Decode)
	if !ok {
		ctx.logger.Debug("unparsed decode detail line", "line", ctx.lineNum, "text", line)
		return nil
	}

	fields, ok := ctx.current.Decode.Fields.(trace.DecodeFields)
	if !ctx.current.Decode.Active || !ok {
		ctx.logger.Debug("branch details for an inactive decode stage", "line", ctx.lineNum, "text", line)
		return nil
	}

	fields.Branch = branch
	ctx.current.Decode = trace.Active(fields)
	return nil
}

func (ctx *parseContext) handleLatch(c Classification, line string) error {
	_, text := splitLabel(line)
	state, matched := parseLatch(c.Latch, text)

	if !matched {
		ctx.logger.Debug("unparsed pipeline register line", "line", ctx.lineNum, "register", c.Latch, "text", line)
	}

	ctx.current.Latches.Set(c.Latch, state)
	return nil
}

func (ctx *parseContext) handleBTB(c Classification, line string) error {
	_, text := splitLabel(line)
	ctx.current.BTB = text
	return nil
}

func (ctx *parseContext) handleBTBEntry(c Classification, line string) error {
	ctx.btbEntries = append(ctx.btbEntries, line)
	ctx.current.BTB = joinBTBEntries(ctx.btbEntries)
	return nil
}

func (ctx *parseContext) handlePrediction(c Classification, line string) error {
	_, text := splitLabel(line)
	ctx.current.Prediction = parsePrediction(text)
	return nil
}

func (ctx *parseContext) handleRegisterFileRow(c Classification, line string) error {
	for _, groups := range registerFileEntryPattern.FindAllStringSubmatch(line, -1) {
		m := &matchReader{groups: groups}
		register, value := m.int(1), m.hex32(3)

		if !m.ok() {
			ctx.logger.Debug("unparsed register file entry", "line", ctx.lineNum, "entry", groups[0])
			continue
		}

		if err := ctx.tracker.RecordDump(ctx.current.CycleNumber, register, value); err != nil {
			ctx.logger.Warn("skipping register file entry", "line", ctx.lineNum, "error", err)
		}
	}

	return nil
}

func (ctx *parseContext) handleStatisticsRow(c Classification, line string) error {
	entry, ok := parseStatistic(line)
	if !ok {
		ctx.logger.Debug("unparsed statistics line", "line", ctx.lineNum, "text", line)
		return nil
	}

	ctx.statistics.add(entry)
	return nil
}

func (ctx *parseContext) handleLoadedInstruction(c Classification, line string) error {
	m := match(loadedInstructionPattern, line)
	if m == nil {
		return nil
	}

	address, encoding := m.hex32(1), m.hex32(2)
	if !m.ok() {
		ctx.logger.Debug("unparsed loaded instruction line", "line", ctx.lineNum, "text", line)
		return nil
	}

	ctx.instructions = append(ctx.instructions, trace.NewInstruction(address, encoding, riscv.Disassemble(encoding)))
	return nil
}
