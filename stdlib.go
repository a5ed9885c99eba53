package msl

import (
	"math/rand"
	"time"
)

// StdlibID enumerates the small built-in standard library consulted as
// the last step of symbol resolution (spec §4.3 point 7), grounded
// verbatim on original_source/MslStandardLibrary.cpp.
type StdlibID int

const (
	StdlibNone StdlibID = iota
	StdlibRand
	StdlibTime
	StdlibSampleRate
	StdlibTempo
	StdlibEndSustain
	StdlibEndRepeat
)

var stdlibNames = map[string]StdlibID{
	"Rand":       StdlibRand,
	"Time":       StdlibTime,
	"SampleRate": StdlibSampleRate,
	"Tempo":      StdlibTempo,
	"EndSustain": StdlibEndSustain,
	"EndRepeat":  StdlibEndRepeat,
}

func lookupStdlib(name string) (StdlibID, bool) {
	id, ok := stdlibNames[name]
	return id, ok
}

var randSeeded bool

func seedRandOnce() {
	if !randSeeded {
		rand.Seed(time.Now().UnixNano())
		randSeeded = true
	}
}

// callStdlib evaluates one of the built-in functions against already
// evaluated arguments, the session's Context (for SampleRate) and sustain
// /repeat state (for EndSustain/EndRepeat).
func callStdlib(id StdlibID, args []*Value, s *Session, ctx Context) (*Value, error) {
	switch id {
	case StdlibTime:
		return IntValue(time.Now().UnixMilli()), nil

	case StdlibRand:
		seedRandOnce()
		low, high := int64(0), int64(127)
		switch len(args) {
		case 0:
			// defaults
		case 1:
			high = args[0].Int()
		default:
			low = args[0].Int()
			high = args[1].Int()
		}
		if low >= high {
			return IntValue(low), nil
		}
		return IntValue(low + rand.Int63n(high-low+1)), nil

	case StdlibSampleRate:
		if ctx != nil {
			return IntValue(int64(ctx.SampleRate())), nil
		}
		return IntValue(0), nil

	case StdlibTempo:
		// Tempo(start, end) = 60000 / (end - start) when end > start, else
		// 0.0 (original_source/MslStandardLibrary.cpp::Tempo). MSL math is
		// integer-based upstream of this call; the result is a float.
		if len(args) < 2 {
			return FloatValue(0), &RuntimeError{Detail: "Tempo: missing time arguments"}
		}
		start, end := args[0].Int(), args[1].Int()
		if end > start {
			return FloatValue(60000.0 / float64(end-start)), nil
		}
		return FloatValue(0), nil

	case StdlibEndSustain:
		s.sustain.init()
		return NullValue(), nil

	case StdlibEndRepeat:
		s.repeat.init()
		return NullValue(), nil
	}
	return NullValue(), nil
}
