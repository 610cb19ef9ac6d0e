package model

import (
	"encoding/json"
	"math"
	"strconv"
)

// jsonFloat encodes NaN and infinities as strings, which encoding/json
// rejects as numbers.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// MarshalJSON implements json.Marshaler.
func (f FrameChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Line      int64     `json:"line"`
		Timestamp string    `json:"timestamp"`
		Kind      FrameKind `json:"type"`
		Width     jsonFloat `json:"width"`
		Height    jsonFloat `json:"height"`
	}{f.Line, f.Timestamp, f.Kind, jsonFloat(f.Width), jsonFloat(f.Height)})
}

// MarshalJSON implements json.Marshaler.
func (r RenderSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Line      int64     `json:"line"`
		Timestamp string    `json:"timestamp"`
		Width     jsonFloat `json:"width"`
		Height    jsonFloat `json:"height"`
		Ratio     jsonFloat `json:"ratio"`
	}{r.Line, r.Timestamp, jsonFloat(r.Width), jsonFloat(r.Height), jsonFloat(r.Ratio)})
}
