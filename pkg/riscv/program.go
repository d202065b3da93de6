package riscv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Manu343726/pipetrace/pkg/utils"
)

var (
	ErrEmptyProgram = errors.New("no valid instructions")
	ErrProgramInput = errors.New("cannot read program")
)

// An instruction word of a program text segment
type Word struct {
	Address  uint32
	Encoding uint32
}

// Returns the assembly text of the word
func (w Word) Disassemble() string {
	return Disassemble(w.Encoding)
}

// A program text segment as loaded by the simulator
type Program struct {
	Words []Word
	// Line numbers of the lines that were skipped because they were malformed
	SkippedLines []int
}

// LoadProgram reads a program text segment in the simulator input format: one
// "<address> <encoding>" pair of hex numbers per line. Blank lines and lines starting
// with '#' are ignored, malformed lines are skipped and reported in SkippedLines.
func LoadProgram(r io.Reader) (Program, error) {
	program := Program{}
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		word, ok := parseWord(line)
		if !ok {
			program.SkippedLines = append(program.SkippedLines, lineNum)
			continue
		}

		program.Words = append(program.Words, word)
	}

	if err := scanner.Err(); err != nil {
		return Program{}, utils.MakeError(ErrProgramInput, "%w", err)
	}

	if len(program.Words) == 0 {
		return program, ErrEmptyProgram
	}

	return program, nil
}

// LoadProgramFile reads a program text segment from a file. See LoadProgram.
func LoadProgramFile(path string) (Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return Program{}, utils.MakeError(ErrProgramInput, "%w", err)
	}
	defer f.Close()

	program, err := LoadProgram(f)
	if err != nil {
		return program, fmt.Errorf("%s: %w", path, err)
	}

	return program, nil
}

func parseWord(line string) (Word, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Word{}, false
	}

	address, err := utils.ParseHex32(fields[0])
	if err != nil {
		return Word{}, false
	}

	encoding, err := utils.ParseHex32(fields[1])
	if err != nil {
		return Word{}, false
	}

	return Word{Address: address, Encoding: encoding}, true
}
