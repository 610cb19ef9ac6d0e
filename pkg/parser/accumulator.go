package parser

import (
	"strings"

	"github.com/logflow/actionlog/internal/model"
)

// keyValueSeparator splits a block body line into key and value.
const keyValueSeparator = ":"

// State is the block state of an Accumulator.
type State uint8

const (
	StateIdle State = iota
	StateInBlock
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInBlock:
		return "in_block"
	default:
		return "unknown"
	}
}

// block is the data of the currently open action block.
type block struct {
	fields         map[string]string
	startRecord    int64
	startTimestamp string
	startLine      int
}

// Accumulator is the block state machine. It is fed one line at a time in
// input order and emits a record each time a block carrying the identifier
// key closes. It never fails on malformed input: lines that fit no expected
// shape are skipped.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	cfg   Config
	state State
	open  *block
}

// NewAccumulator creates an idle Accumulator for the given grammar.
func NewAccumulator(cfg Config) *Accumulator {
	return &Accumulator{cfg: cfg}
}

// State returns the current block state.
func (a *Accumulator) State() State {
	return a.state
}

// Reset discards any open block and returns to idle.
func (a *Accumulator) Reset() {
	a.state = StateIdle
	a.open = nil
}

// Feed advances the state machine by one line. numbered reports whether
// Classify matched the line. A record is returned when the line closes a
// block that contains the identifier key.
//
// A numbered line whose content holds the open marker always starts a fresh
// block, discarding a block that is still open. Every other line inside a
// block is either the close marker or a candidate key:value pair.
func (a *Accumulator) Feed(line model.LogLine, numbered bool) (*model.ActionRecord, bool) {
	if a.opens(line, numbered) {
		a.state = StateInBlock
		a.open = &block{
			fields:         make(map[string]string),
			startRecord:    line.RecordNumber,
			startTimestamp: line.Timestamp,
			startLine:      line.LineNumber,
		}
		return nil, false
	}

	if a.state != StateInBlock {
		return nil, false
	}

	if line.Text == a.cfg.CloseMarker {
		b := a.open
		a.Reset()
		return a.emit(b)
	}

	if key, value, ok := strings.Cut(line.Text, keyValueSeparator); ok {
		a.open.fields[key] = value
	}
	return nil, false
}

// opens reports whether line starts a block.
func (a *Accumulator) opens(line model.LogLine, numbered bool) bool {
	return numbered && strings.Contains(line.Content, a.cfg.OpenMarker)
}

// emit builds the record for a closed block, or reports false when the block
// has no identifier.
func (a *Accumulator) emit(b *block) (*model.ActionRecord, bool) {
	guid, ok := b.fields[a.cfg.IdentifierKey]
	if !ok {
		return nil, false
	}

	rec := &model.ActionRecord{
		Line:         b.startRecord,
		Timestamp:    b.startTimestamp,
		GUID:         guid,
		Operation:    b.fields[KeyOperation],
		FeatureName:  b.fields[KeyFeatureName],
		TextCategory: b.fields[KeyTextCategory],
		LayersSource: b.fields[KeyLayersSource],
		SourceLine:   b.startLine,
	}

	for k, v := range b.fields {
		switch k {
		case a.cfg.IdentifierKey, KeyOperation, KeyFeatureName, KeyTextCategory, KeyLayersSource:
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[k] = v
	}

	return rec, true
}
