package domain

// Pose is a 6-D target: x, y, z position followed by rx, ry, rz orientation.
type Pose [6]float64

func (p Pose) X() float64 { return p[0] }
func (p Pose) Y() float64 { return p[1] }
func (p Pose) Z() float64 { return p[2] }

// Tolerance is the per-axis tolerance accepted for a MoveToPose.
type Tolerance [6]float64

// CompletionMode and CompletionType are forwarded to MoveToPose unchanged.
type CompletionMode int

type CompletionType int

// BlindMode selects how a blind move interprets its pose.
type BlindMode int

const (
	BlindAbsolute BlindMode = 0
	BlindRelative BlindMode = 1
)
