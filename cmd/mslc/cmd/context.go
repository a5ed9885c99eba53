package cmd

import (
	"fmt"
	"os"

	msl "github.com/larkloop/msl"
)

// headlessContext is the Context implementation standing in for the
// looper engine, MIDI layer, and UI collaborators the spec places out of
// scope (spec §1 "Out of scope"). It exists so mslc can drive a script
// end to end from a terminal: Echo writes to stdout, externals are never
// resolved (a script referencing one simply gets an unresolved-symbol
// warning per spec §4.3), and Wait resolves immediately rather than
// blocking on a real audio clock — there is no transport to synchronize
// with outside the host application.
type headlessContext struct {
	id msl.ContextID
}

func newHeadlessContext(id msl.ContextID) *headlessContext {
	return &headlessContext{id: id}
}

func (h *headlessContext) ContextID() msl.ContextID { return h.id }

func (h *headlessContext) Resolve(name string) (*msl.External, bool) {
	return nil, false
}

func (h *headlessContext) Query(ext *msl.External, scope int) (*msl.Value, error) {
	return msl.NullValue(), fmt.Errorf("headless context has no externals to query: %s", ext.Name)
}

func (h *headlessContext) Action(ext *msl.External, args []*msl.Value, scope int) (*msl.Value, *msl.ActionEvent, error) {
	return msl.NullValue(), nil, fmt.Errorf("headless context has no externals to act on: %s", ext.Name)
}

// Wait resolves every wait immediately: mslc has no real transport clock
// to synchronize subcycle/beat/marker boundaries against.
func (h *headlessContext) Wait(w *msl.WaitState) bool {
	w.Finished = true
	return true
}

func (h *headlessContext) Echo(s string) {
	fmt.Fprintln(os.Stdout, s)
}

func (h *headlessContext) IsScopeKeyword(name string) bool { return false }

func (h *headlessContext) IsUsageArgument(usage, name string) bool { return false }

func (h *headlessContext) SampleRate() int32 { return 44100 }

func (h *headlessContext) LogRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "."
	}
	return dir
}

func (h *headlessContext) Export(l *msl.Linkage) {
	if verbose {
		fmt.Fprintf(os.Stderr, "exported linkage: %s\n", l.Name)
	}
}
