// Package parser extracts structured action records from line-oriented
// diagnostic logs.
//
// A log is a sequence of numbered lines of the form
//
//	<record number> | <timestamp> | <content>
//
// Some content fields open an action block; the block body is a run of
// unnumbered key:value lines ending with a line holding only the close
// marker. The Classifier recognises numbered lines, the Accumulator tracks
// block boundaries, and Scanner composes both with the frame extractor in a
// single forward pass.
package parser

import (
	"context"
	"io"

	"github.com/logflow/actionlog/internal/model"
)

// Parser streams action records out of a log.
// Implementations must not retain references to the output channel after
// returning.
type Parser interface {
	// Parse reads from r and sends each emitted record to out.
	// It should respect context cancellation.
	// The caller is responsible for closing the out channel.
	Parse(ctx context.Context, r io.Reader, out chan<- *model.ActionRecord) error
}

// Well-known keys of an action block.
const (
	KeyTextStyleGUID = "text_style_guid"
	KeyOperation     = "operation"
	KeyFeatureName   = "feature_name"
	KeyTextCategory  = "text_category"
	KeyLayersSource  = "layers_source"
)

// Config holds the log grammar and read settings.
type Config struct {
	// OpenMarker opens a block when found inside a numbered line's content.
	OpenMarker string

	// CloseMarker closes a block when a trimmed line equals it exactly.
	CloseMarker string

	// IdentifierKey must be present for a closed block to produce a record.
	IdentifierKey string

	// BufferSize is the size of the read buffer in bytes.
	BufferSize int
}

// DefaultConfig returns a Config matching the text-style action log format.
func DefaultConfig() Config {
	return Config{
		OpenMarker:    "Action:{",
		CloseMarker:   "}",
		IdentifierKey: KeyTextStyleGUID,
		BufferSize:    64 * 1024,
	}
}

// Validate reports whether the grammar is usable.
func (c Config) Validate() error {
	if c.OpenMarker == "" {
		return ErrEmptyOpenMarker
	}
	if c.CloseMarker == "" {
		return ErrEmptyCloseMarker
	}
	if c.IdentifierKey == "" {
		return ErrEmptyIdentifierKey
	}
	return nil
}

// Descriptor describes a registered scanner profile.
type Descriptor struct {
	ID          string
	Name        string
	Version     string
	Description string

	// Target is the crash signature the profile was written for.
	Target string

	// Frames enables expandFrame/renderSize extraction.
	Frames bool
}

var descriptors = []Descriptor{
	{
		ID:          "action",
		Name:        "Action Block Parser",
		Version:     "1.0.0",
		Description: "Extracts text-style action blocks identified by a GUID",
		Target:      "General",
	},
	{
		ID:          "expandFrame",
		Name:        "ExpandFrame Crash Parser",
		Version:     "1.0.0",
		Description: "Action blocks plus frame and render size changes for expandFrameWithSize crashes",
		Target:      "-[TextBubbleStickerView expandFrameWithSize:]",
		Frames:      true,
	},
}

// Descriptors returns the registered scanner profiles.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Lookup returns the profile registered under id.
func Lookup(id string) (Descriptor, error) {
	for _, d := range descriptors {
		if d.ID == id {
			return d, nil
		}
	}
	return Descriptor{}, ErrUnknownParser
}

// New creates a Scanner for the profile registered under id. opts are
// applied after the profile's own options.
func New(id string, cfg Config, opts ...ScanOption) (*Scanner, error) {
	d, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewScanner(cfg, append([]ScanOption{WithFrames(d.Frames)}, opts...)...), nil
}
