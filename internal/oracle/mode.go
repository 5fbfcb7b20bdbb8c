package oracle

import "fmt"

// Mode selects which arbitration requests a run handles
type Mode string

const (
	// ModePastAll decides every historical request, decided or not
	ModePastAll Mode = "past-all"
	// ModePastUnarbitrated decides historical requests this oracle has not ruled on
	ModePastUnarbitrated Mode = "past-unarbitrated"
	// ModeAll decides every historical request and then listens
	ModeAll Mode = "all"
	// ModeUnarbitratedThenLive sweeps undecided history and then listens
	ModeUnarbitratedThenLive Mode = "unarbitrated-then-live"
	// ModeLiveOnly only listens for new requests
	ModeLiveOnly Mode = "live-only"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePastAll, ModePastUnarbitrated, ModeAll, ModeUnarbitratedThenLive, ModeLiveOnly:
		return m, nil
	}
	return "", fmt.Errorf("unknown arbitration mode %q", s)
}

// ProcessesPast reports whether the mode drains historical requests
func (m Mode) ProcessesPast() bool {
	return m != ModeLiveOnly
}

// Listens reports whether the mode opens a live subscription
func (m Mode) Listens() bool {
	return m == ModeAll || m == ModeUnarbitratedThenLive || m == ModeLiveOnly
}

// Suppresses reports whether already-decided obligations are dropped
func (m Mode) Suppresses() bool {
	return m == ModePastUnarbitrated || m == ModeUnarbitratedThenLive
}
