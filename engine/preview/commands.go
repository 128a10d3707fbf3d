package preview

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/Carmen-Shannon/oxy-fog/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// CommandType names a viewer command.
type CommandType string

const (
	// CommandOrbit rotates the camera by DX, DY orbit steps.
	CommandOrbit CommandType = "orbit"
	// CommandPan slides the camera target by DX, DY pan steps.
	CommandPan CommandType = "pan"
	// CommandZoom moves the camera toward the target by Delta.
	CommandZoom CommandType = "zoom"
	// CommandDensity sets the density multiplier to Value.
	CommandDensity CommandType = "density"
	// CommandNoise sets the noise influence to Value, clamped to [0, 1].
	CommandNoise CommandType = "noise"
	// CommandRadius sets the fog sphere radius to Value.
	CommandRadius CommandType = "radius"
	// CommandAbsorb sets the light absorption of every channel to Value.
	CommandAbsorb CommandType = "absorb"
	// CommandTransmittance sets the initial transmittance to Value.
	CommandTransmittance CommandType = "transmittance"
)

// valueRanges bounds the Value of the tuning commands. Zero is never in range
// because zero settings fall back to the defaults.
var valueRanges = map[CommandType][2]float32{
	CommandDensity:       {0.001, 50},
	CommandRadius:        {1, 50},
	CommandAbsorb:        {0.001, 1},
	CommandTransmittance: {0.001, 1},
}

// Command is one JSON message from the viewer.
type Command struct {
	Type  CommandType `json:"type"`
	DX    float32     `json:"dx,omitempty"`
	DY    float32     `json:"dy,omitempty"`
	Delta float32     `json:"delta,omitempty"`
	Value float32     `json:"value,omitempty"`
}

// Apply mutates s according to cmd.
//
// Parameters:
//   - s: the scene to update
//   - cmd: the viewer command
//
// Returns:
//   - error: an unknown command type or a value outside the command's range
func Apply(s scene.Scene, cmd Command) error {
	if r, ok := valueRanges[cmd.Type]; ok && !(cmd.Value >= r[0] && cmd.Value <= r[1]) {
		return fmt.Errorf("%s value %v outside [%v, %v]", cmd.Type, cmd.Value, r[0], r[1])
	}

	cc := s.Camera().Controller()
	switch cmd.Type {
	case CommandOrbit:
		cc.Orbit(cmd.DX, cmd.DY)
	case CommandPan:
		cc.Pan(cmd.DX, cmd.DY)
	case CommandZoom:
		cc.Zoom(cmd.Delta)
	case CommandDensity:
		s.UpdateSettings(func(st *scene.Settings) { st.DensityScale = cmd.Value })
	case CommandNoise:
		s.UpdateSettings(func(st *scene.Settings) { st.NoiseInfluence = common.Saturate(cmd.Value) })
	case CommandRadius:
		v := s.Volume()
		v.Radius = cmd.Value
		s.SetVolume(v)
	case CommandAbsorb:
		s.UpdateSettings(func(st *scene.Settings) { st.LightAbsorb = mgl32.Vec3{cmd.Value, cmd.Value, cmd.Value} })
	case CommandTransmittance:
		s.UpdateSettings(func(st *scene.Settings) { st.InitialTransmittance = cmd.Value })
	default:
		return fmt.Errorf("unknown preview command %q", cmd.Type)
	}
	return nil
}
