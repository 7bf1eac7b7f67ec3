// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import "fmt"

// PlayerState is the lifecycle state of one logical player.
type PlayerState string

const (
	StateIdle    PlayerState = "idle"
	StateLoading PlayerState = "loading"
	StateReady   PlayerState = "ready"
	StatePlaying PlayerState = "playing"
	StatePaused  PlayerState = "paused"
)

type playerEvent string

const (
	eventLoad          playerEvent = "load"
	eventMetadataReady playerEvent = "metadata_ready"
	eventPlay          playerEvent = "play"
	eventPause         playerEvent = "pause"
	eventFail          playerEvent = "fail"
)

// machine is a small, strict per-player state machine: unknown transitions
// are errors. eventFail is accepted from every state and always lands in
// Idle. The coordinator serializes all access, so no locking here.
type machine struct {
	state PlayerState
	index map[string]PlayerState
}

var playerTransitions = []struct {
	from  PlayerState
	event playerEvent
	to    PlayerState
}{
	{StateIdle, eventLoad, StateLoading},
	{StateLoading, eventMetadataReady, StateReady},
	{StateReady, eventPlay, StatePlaying},
	{StateReady, eventPause, StatePaused},
	{StatePlaying, eventPause, StatePaused},
	{StatePaused, eventPlay, StatePlaying},
	// Switching source on a live player restarts the load cycle.
	{StateReady, eventLoad, StateLoading},
	{StatePlaying, eventLoad, StateLoading},
	{StatePaused, eventLoad, StateLoading},
}

func newMachine() *machine {
	idx := make(map[string]PlayerState, len(playerTransitions))
	for _, t := range playerTransitions {
		idx[transitionKey(t.from, t.event)] = t.to
	}
	return &machine{state: StateIdle, index: idx}
}

func (m *machine) State() PlayerState { return m.state }

func (m *machine) Fire(event playerEvent) (PlayerState, error) {
	if event == eventFail {
		m.state = StateIdle
		return m.state, nil
	}
	to, ok := m.index[transitionKey(m.state, event)]
	if !ok {
		return m.state, fmt.Errorf("invalid transition: state=%s event=%s", m.state, event)
	}
	m.state = to
	return to, nil
}

func transitionKey(from PlayerState, event playerEvent) string {
	return string(from) + "|" + string(event)
}
