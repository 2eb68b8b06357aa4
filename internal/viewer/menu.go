package viewer

// Toggle names as shown on the host's menu panel.
const (
	ToggleFollowBody         = "Follow Body"
	ToggleShowCoordinate     = "Show Coordinate"
	ToggleShowRawPosition    = "Show Raw Position"
	ToggleShowPosition       = "Show Position"
	ToggleShowPose           = "Show Pose"
	ToggleShowLandmark       = "Show Landmark"
	ToggleShowLoopConnection = "Show Loop Connection"
	ToggleShowFullBAPosition = "Show Full BA Position"
)

// Toggles is the persistent switch state of the menu panel.
type Toggles struct {
	FollowBody         bool
	ShowCoordinate     bool
	ShowRawPosition    bool
	ShowPosition       bool
	ShowPose           bool
	ShowLandmark       bool
	ShowLoopConnection bool
	ShowFullBAPosition bool
}

// DefaultToggles returns the panel state at startup.
func DefaultToggles() Toggles {
	return Toggles{
		FollowBody:         true,
		ShowCoordinate:     true,
		ShowRawPosition:    false,
		ShowPosition:       true,
		ShowPose:           true,
		ShowLandmark:       true,
		ShowLoopConnection: true,
		ShowFullBAPosition: false,
	}
}

// Map returns the toggles keyed by panel name.
func (t Toggles) Map() map[string]bool {
	return map[string]bool{
		ToggleFollowBody:         t.FollowBody,
		ToggleShowCoordinate:     t.ShowCoordinate,
		ToggleShowRawPosition:    t.ShowRawPosition,
		ToggleShowPosition:       t.ShowPosition,
		ToggleShowPose:           t.ShowPose,
		ToggleShowLandmark:       t.ShowLandmark,
		ToggleShowLoopConnection: t.ShowLoopConnection,
		ToggleShowFullBAPosition: t.ShowFullBAPosition,
	}
}

// Set changes one toggle by panel name. It reports false for unknown names.
func (t *Toggles) Set(name string, on bool) bool {
	switch name {
	case ToggleFollowBody:
		t.FollowBody = on
	case ToggleShowCoordinate:
		t.ShowCoordinate = on
	case ToggleShowRawPosition:
		t.ShowRawPosition = on
	case ToggleShowPosition:
		t.ShowPosition = on
	case ToggleShowPose:
		t.ShowPose = on
	case ToggleShowLandmark:
		t.ShowLandmark = on
	case ToggleShowLoopConnection:
		t.ShowLoopConnection = on
	case ToggleShowFullBAPosition:
		t.ShowFullBAPosition = on
	default:
		return false
	}
	return true
}

// TogglesFromMap builds Toggles from a {name: enabled} mapping. Names that
// are absent keep their default.
func TogglesFromMap(m map[string]bool) Toggles {
	t := DefaultToggles()
	for name, on := range m {
		t.Set(name, on)
	}
	return t
}

// Command is a one-shot menu button.
type Command int

const (
	CommandSaveWindow Command = iota
	CommandSaveObject
	CommandReset
	CommandExit
)

func (c Command) String() string {
	switch c {
	case CommandSaveWindow:
		return "Save Window"
	case CommandSaveObject:
		return "Save Object"
	case CommandReset:
		return "Reset"
	case CommandExit:
		return "Exit"
	default:
		return "Unknown"
	}
}

// Menu is what the host reports at the top of a frame: the toggles plus
// which buttons were pressed since the previous frame.
type Menu struct {
	Toggles
	SaveWindow bool
	SaveObject bool
	Reset      bool
	Exit       bool
}

// Press marks c as pressed.
func (m *Menu) Press(c Command) {
	switch c {
	case CommandSaveWindow:
		m.SaveWindow = true
	case CommandSaveObject:
		m.SaveObject = true
	case CommandReset:
		m.Reset = true
	case CommandExit:
		m.Exit = true
	}
}
