package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Manu343726/pipetrace/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Output Document
//
// The trace model is exported as a document consumed by the visualization tools:
//
//	instructions:  [{addr, instr, asm}]
//	cycles:        [{cycle, fetch, decode, execute, memory, writeback, prediction, btb,
//	                 registers: {ifId, idEx, exMem, memWb}, registerUpdates: [{register, value}]}]
//	stats:         {name: number}
//
// Stages are {valid, message} when inactive or message only, {valid, <fields>} otherwise.
// Pipeline registers are {valid: false} or {valid: true, <fields>}.
// Key order is part of the format, so objects are encoded from ordered pairs.

// An object of the output document, encoded with its keys in order
type Object []utils.Pair[string, any]

func field(name string, value any) utils.Pair[string, any] {
	return utils.MakePair(name, value)
}

func (o Object) String() string {
	return "{" + formatPairs(o) + "}"
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')

	for i, pair := range o {
		if i > 0 {
			buffer.WriteByte(',')
		}

		key, err := json.Marshal(pair.First)
		if err != nil {
			return nil, err
		}

		value, err := json.Marshal(pair.Second)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", pair.First, err)
		}

		buffer.Write(key)
		buffer.WriteByte(':')
		buffer.Write(value)
	}

	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

func (o Object) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, pair := range o {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: pair.First}
		value := &yaml.Node{}

		if err := value.Encode(pair.Second); err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", pair.First, err)
		}

		node.Content = append(node.Content, key, value)
	}

	return node, nil
}

// Builds the output document of a trace
func Document(t Trace) Object {
	statistics := t.Statistics()

	return Object{
		field("instructions", utils.Map(t.Instructions(), instructionDocument)),
		field("cycles", utils.Map(t.Cycles(), cycleDocument)),
		field("stats", Object(utils.Map(t.StatisticNames(), func(name string) utils.Pair[string, any] {
			return field(name, statistics[name].Value())
		}))),
	}
}

// Writes the output document of a trace as indented JSON
func WriteJSON(w io.Writer, t Trace) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Document(t))
}

// Writes the output document of a trace as YAML
func WriteYAML(w io.Writer, t Trace) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(Document(t)); err != nil {
		return err
	}

	return encoder.Close()
}

func instructionDocument(i Instruction) Object {
	return Object{
		field("addr", i.Address),
		field("instr", i.Encoding),
		field("asm", i.Mnemonic),
	}
}

func cycleDocument(c CycleSnapshot) Object {
	return Object{
		field("cycle", c.CycleNumber),
		field("fetch", stageDocument(c.Fetch)),
		field("decode", stageDocument(c.Decode)),
		field("execute", stageDocument(c.Execute)),
		field("memory", stageDocument(c.Memory)),
		field("writeback", stageDocument(c.Writeback)),
		field("prediction", predictionDocument(c.Prediction)),
		field("btb", c.BTB),
		field("registers", Object(utils.Map(LatchKinds, func(kind LatchKind) utils.Pair[string, any] {
			return field(kind.DocumentKey(), latchDocument(c.Latches.Get(kind)))
		}))),
		field("registerUpdates", utils.Map(c.RegisterUpdates, func(u RegisterUpdate) Object {
			return Object{
				field("register", registerName(u.RegisterIndex)),
				field("value", fmt.Sprintf("0x%08x", u.Value)),
			}
		})),
	}
}

func stageDocument(s StageState) Object {
	if !s.Active {
		return Object{field("valid", false), field("message", s.Reason)}
	}

	return append(Object{field("valid", true)}, s.Fields.Pairs()...)
}

func latchDocument(l LatchState) Object {
	if !l.Valid {
		return Object{field("valid", false)}
	}

	return append(Object{field("valid", true)}, l.Fields.Pairs()...)
}

func predictionDocument(p *PredictionInfo) Object {
	switch {
	case p == nil:
		return Object{}
	case p.ProgramCounter == "":
		return Object{field("message", p.Message)}
	default:
		return Object{
			field("pc", p.ProgramCounter),
			field("message", p.Message),
			field("correct", p.Correct),
			field("update", p.Update),
		}
	}
}
