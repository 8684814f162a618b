package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Object is a crushable catalog entry
type Object struct {
	ID                string
	Name              string
	Type              string
	Difficulty        int
	SatisfactionScore float64
	CrushTime         float64 // seconds
	Particles         string  // particle material tag
	Sound             string
	VibrationPattern  []int
}

// Mode is a game mode offered by the backend
type Mode struct {
	ID          string
	Name        string
	Icon        string
	Description string
}

// Position is an arena-centred crush point
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CrushRequest is the body of a crush call
type CrushRequest struct {
	ObjectID string   `json:"object_id"`
	Force    float64  `json:"force"`
	Position Position `json:"position"`
}

// CrushResult is the scored outcome of one crush
type CrushResult struct {
	Object             Object
	HasObject          bool
	Success            bool
	SatisfactionGained float64
	Particles          string
	Sound              string
	Vibration          []int
	AnimationDuration  float64 // seconds
	ForceApplied       float64
}

// Stats is the backend view of a session
type Stats struct {
	TotalCrushed      int
	TotalSatisfaction float64
	SessionDuration   float64
	ObjectsCrushed    []string
}

// Health is the root endpoint payload
type Health struct {
	Message string
	Status  string
}

// Wire decoding. Every field is untrusted: numbers accept JSON numbers and numeric
// strings, anything else decodes to zero; strings accept only JSON strings.

// num decodes leniently into a float64
type num float64

func (n *num) UnmarshalJSON(b []byte) error {
	*n = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	} else {
		s = string(b)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*n = num(f)
	return nil
}

// str decodes only JSON strings, other values become empty
type str string

func (s *str) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		*s = ""
		return nil
	}
	*s = str(v)
	return nil
}

// flag accepts JSON booleans and "true"/"false" strings
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flag(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flag(strings.EqualFold(strings.TrimSpace(s), "true"))
		return nil
	}
	*f = false
	return nil
}

// list decodes a JSON array element by element, dropping elements that fail
// A non-array value decodes to an empty list
type list[T any] []T

func (l *list[T]) UnmarshalJSON(b []byte) error {
	*l = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// loose decodes an optional nested object, recording whether it was usable
type loose[T any] struct {
	V  T
	OK bool
}

func (o *loose[T]) UnmarshalJSON(b []byte) error {
	var v T
	if err := json.Unmarshal(b, &v); err != nil || bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = loose[T]{}
		return nil
	}
	*o = loose[T]{V: v, OK: true}
	return nil
}

type wireObject struct {
	ID                str       `json:"id"`
	Name              str       `json:"name"`
	Type              str       `json:"type"`
	Difficulty        num       `json:"difficulty"`
	SatisfactionScore num       `json:"satisfaction_score"`
	CrushTime         num       `json:"crush_time"`
	Particles         str       `json:"particles"`
	Sound             str       `json:"sound"`
	VibrationPattern  list[num] `json:"vibration_pattern"`
}

func (w wireObject) object() Object {
	return Object{
		ID:                string(w.ID),
		Name:              string(w.Name),
		Type:              string(w.Type),
		Difficulty:        wholeNumber(float64(w.Difficulty)),
		SatisfactionScore: float64(w.SatisfactionScore),
		CrushTime:         float64(w.CrushTime),
		Particles:         string(w.Particles),
		Sound:             string(w.Sound),
		VibrationPattern:  durations(w.VibrationPattern),
	}
}

type wireMode struct {
	ID          str `json:"id"`
	Name        str `json:"name"`
	Icon        str `json:"icon"`
	Description str `json:"description"`
}

func (w wireMode) mode() Mode {
	return Mode{ID: string(w.ID), Name: string(w.Name), Icon: string(w.Icon), Description: string(w.Description)}
}

type wireObjects struct {
	Objects list[wireObject] `json:"objects"`
}

type wireModes struct {
	Modes list[wireMode] `json:"modes"`
}

type wireSession struct {
	SessionID str `json:"session_id"`
	Message   str `json:"message"`
}

type wireCrush struct {
	Object             loose[wireObject] `json:"object"`
	Success            flag              `json:"success"`
	SatisfactionGained num               `json:"satisfaction_gained"`
	Particles          str               `json:"particles"`
	Sound              str               `json:"sound"`
	Vibration          list[num]         `json:"vibration"`
	AnimationDuration  num               `json:"animation_duration"`
	ForceApplied       num               `json:"force_applied"`
}

func (w wireCrush) result() CrushResult {
	r := CrushResult{
		Success:            bool(w.Success),
		SatisfactionGained: float64(w.SatisfactionGained),
		Particles:          string(w.Particles),
		Sound:              string(w.Sound),
		Vibration:          durations(w.Vibration),
		AnimationDuration:  math.Max(0, float64(w.AnimationDuration)),
		ForceApplied:       float64(w.ForceApplied),
	}
	if w.Object.OK {
		r.Object = w.Object.V.object()
		r.HasObject = true
	}
	return r
}

// wireStats accepts both snake_case and camelCase field names, snake_case wins
type wireStats struct {
	TotalCrushed           *num      `json:"total_crushed"`
	TotalCrushedCamel      *num      `json:"totalCrushed"`
	TotalSatisfaction      *num      `json:"total_satisfaction"`
	TotalSatisfactionCamel *num      `json:"totalSatisfaction"`
	SessionDuration        *num      `json:"session_duration"`
	SessionDurationCamel   *num      `json:"sessionDuration"`
	ObjectsCrushed         list[str] `json:"objects_crushed"`
	ObjectsCrushedCamel    list[str] `json:"objectsCrushed"`
}

func (w wireStats) stats() Stats {
	s := Stats{
		TotalCrushed:      wholeNumber(pick(w.TotalCrushed, w.TotalCrushedCamel)),
		TotalSatisfaction: math.Max(0, pick(w.TotalSatisfaction, w.TotalSatisfactionCamel)),
		SessionDuration:   math.Max(0, pick(w.SessionDuration, w.SessionDurationCamel)),
	}
	ids := w.ObjectsCrushed
	if ids == nil {
		ids = w.ObjectsCrushedCamel
	}
	for _, id := range ids {
		s.ObjectsCrushed = append(s.ObjectsCrushed, string(id))
	}
	return s
}

type wireHealth struct {
	Message str `json:"message"`
	Status  str `json:"status"`
}

func pick(primary, fallback *num) float64 {
	if primary != nil {
		return float64(*primary)
	}
	if fallback != nil {
		return float64(*fallback)
	}
	return 0
}

// durations converts a lenient number list into non-negative whole milliseconds
func durations(ns list[num]) []int {
	if len(ns) == 0 {
		return nil
	}
	out := make([]int, len(ns))
	for i, n := range ns {
		out[i] = wholeNumber(math.Round(float64(n)))
	}
	return out
}

// maxWholeNumber bounds integer fields so oversized wire values cannot wrap
const maxWholeNumber = math.MaxInt32

// wholeNumber truncates f into [0, maxWholeNumber]
func wholeNumber(f float64) int {
	switch {
	case !(f > 0):
		return 0
	case f >= maxWholeNumber:
		return maxWholeNumber
	}
	return int(f)
}
