package action

// Action represents input actions that can be performed against the rig.
type Action int

const (
	// Channel programming (synthesized into control words by the rig)
	ChannelSelectNext Action = iota
	ChannelSelectPrev
	ChannelToggle
	DutyIncrease
	DutyDecrease
	GeneratorReset

	// Rig features
	RigPauseToggle
	RigStepTick
	RigSnapshot
	RigDebugToggle
	RigQuit

	// Frontend features
	DebugLogLevelIncrease
	DebugLogLevelDecrease
)

// Info carries display metadata for an action.
type Info struct {
	Description string
}

var infoTable = map[Action]Info{
	ChannelSelectNext:     {"Select next channel"},
	ChannelSelectPrev:     {"Select previous channel"},
	ChannelToggle:         {"Toggle selected channel"},
	DutyIncrease:          {"Increase duty code"},
	DutyDecrease:          {"Decrease duty code"},
	GeneratorReset:        {"Reset generator"},
	RigPauseToggle:        {"Pause/resume"},
	RigStepTick:           {"Step one tick"},
	RigSnapshot:           {"Save waveform snapshot"},
	RigDebugToggle:        {"Toggle status pane"},
	RigQuit:               {"Quit"},
	DebugLogLevelIncrease: {"More log detail"},
	DebugLogLevelDecrease: {"Less log detail"},
}

// GetInfo returns display metadata for an action.
func GetInfo(a Action) Info {
	if info, ok := infoTable[a]; ok {
		return info
	}
	return Info{Description: "Unknown"}
}
