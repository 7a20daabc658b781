package models

// ControlKind enumerates the closed set of control targets a
// GestureMapping can drive.
type ControlKind string

const (
	ControlVolume     ControlKind = "volume"
	ControlMute       ControlKind = "mute"
	ControlSolo       ControlKind = "solo"
	ControlPan        ControlKind = "pan"
	ControlEQ         ControlKind = "eq"
	ControlFilter     ControlKind = "filter"
	ControlCrossfader ControlKind = "crossfader"
	ControlCue        ControlKind = "cue"
	ControlEffect     ControlKind = "effect"
)

// MappingMode selects how a mapping's raw gesture value becomes a
// dispatched command.
type MappingMode string

const (
	ModeContinuous MappingMode = "continuous"
	ModeToggle     MappingMode = "toggle"
	ModeTrigger    MappingMode = "trigger"
)

// ControlTarget names what a mapping controls. Exactly one of Stem,
// Master, or Crossfader is meaningful, selected by ControlKind: stem
// targets set Deck+Stem, "master" targets set Master, "crossfader"
// targets need neither.
type ControlTarget struct {
	Deck       DeckID
	Stem       StemID
	Master     bool
	Crossfader bool
}

// MappingParameters holds the shaping knobs applied between a raw
// gesture value and a dispatched command.
type MappingParameters struct {
	Sensitivity float64 // [0.1,10]
	Deadzone    float64 // [0,0.3]
	Smoothing   float64 // [0,1]
}

// GestureMapping is one rule in a MappingProfile: match a gesture class
// and hand requirement, shape its value, and dispatch to a control
// target.
type GestureMapping struct {
	ID              string
	Gesture         GestureClass
	HandRequirement HandRequirement
	Kind            ControlKind
	Target          ControlTarget
	Mode            MappingMode
	Parameters      MappingParameters
	Priority        int
	Enabled         bool
}

// MappingProfile is a named, ordered set of gesture-to-control rules.
// Exactly one profile is active in the mapper at a time.
type MappingProfile struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Mappings []GestureMappingYAML `yaml:"mappings"`
}

// GestureMappingYAML is the on-disk (YAML) representation of a
// GestureMapping, grouped under a MappingProfile — per spec.md §9,
// "mapping tables are data, not code".
type GestureMappingYAML struct {
	ID              string  `yaml:"id"`
	Gesture         string  `yaml:"gesture"`
	HandRequirement string  `yaml:"hand_requirement"`
	Kind            string  `yaml:"kind"`
	Deck            string  `yaml:"deck,omitempty"`
	Stem            string  `yaml:"stem,omitempty"`
	Master          bool    `yaml:"master,omitempty"`
	Crossfader      bool    `yaml:"crossfader,omitempty"`
	Mode            string  `yaml:"mode"`
	Sensitivity     float64 `yaml:"sensitivity"`
	Deadzone        float64 `yaml:"deadzone"`
	Smoothing       float64 `yaml:"smoothing"`
	Priority        int     `yaml:"priority"`
	Enabled         bool    `yaml:"enabled"`
}
