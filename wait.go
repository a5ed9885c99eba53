package msl

// WaitState is the runtime counterpart of a parsed WaitSpec (spec §3
// "Wait state"). The Context flips Finished to true when the awaited
// event, duration, or location boundary elapses (spec §6 Context.wait).
type WaitState struct {
	Type     WaitType
	Unit     string
	Value    int64
	Active   bool
	Finished bool
	Session  *Session
}

// suspendState backs both #sustain and #repeat (spec §3 Session "sustain
// state and repeat state", §9 "Suspended sessions").
type suspendState struct {
	Active   bool
	Start    int64 // unix millis
	Interval int64 // ms
	Count    int
}

func (s *suspendState) init() {
	s.Active = false
	s.Count = 0
}

func (s *suspendState) start(nowMillis int64, intervalMillis int64) {
	s.Active = true
	s.Start = nowMillis
	s.Interval = intervalMillis
	s.Count = 0
}

func (s *suspendState) elapsed(nowMillis int64) bool {
	return s.Active && s.Interval > 0 && nowMillis-s.Start >= s.Interval
}
