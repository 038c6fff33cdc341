package domain

// InstructionKind names one step of a reconciliation plan.
type InstructionKind string

const (
	InstrRemoveOverlay    InstructionKind = "remove_overlay"
	InstrDrawOverlay      InstructionKind = "draw_overlay"
	InstrFitBounds        InstructionKind = "fit_bounds"
	InstrCenterAt         InstructionKind = "center_at"
	InstrNoViewportChange InstructionKind = "no_viewport_change"
	InstrResetChannel     InstructionKind = "reset_channel"
)

// Viewport reports whether the kind is a camera instruction.
func (k InstructionKind) Viewport() bool {
	return k == InstrFitBounds || k == InstrCenterAt || k == InstrNoViewportChange
}

// Instruction is a provider-agnostic overlay or camera operation.
type Instruction struct {
	Kind     InstructionKind `json:"kind"`
	EntityID string          `json:"entity_id,omitempty"`
	Points   []Coordinate    `json:"points,omitempty"`
	Color    Color           `json:"color,omitempty"`
	Width    int             `json:"width,omitempty"`
	Start    *Coordinate     `json:"start,omitempty"`
	End      *Coordinate     `json:"end,omitempty"`
	Bounds   *Bounds         `json:"bounds,omitempty"`
	Center   *Coordinate     `json:"center,omitempty"`
}

// Plan is the outcome of one reconciliation of one channel.
type Plan struct {
	SurfaceID    string        `json:"surface_id,omitempty"`
	Channel      Channel       `json:"channel"`
	Provider     Provider      `json:"provider,omitempty"`
	Generation   uint64        `json:"generation"`
	Instructions []Instruction `json:"instructions"`
	// Failed lists entities whose drawing was rolled back after a provider error.
	Failed []string `json:"failed,omitempty"`
	// Stale is set when a newer request superseded this one before its data resolved.
	Stale bool `json:"stale,omitempty"`
}

// Removed returns the ids of every RemoveOverlay instruction, in order.
func (p Plan) Removed() []string { return p.ids(InstrRemoveOverlay) }

// Drawn returns the ids of every DrawOverlay instruction, in order.
func (p Plan) Drawn() []string { return p.ids(InstrDrawOverlay) }

// Viewport returns the camera instruction, if any.
func (p Plan) Viewport() (Instruction, bool) {
	for _, in := range p.Instructions {
		if in.Kind.Viewport() {
			return in, true
		}
	}
	return Instruction{}, false
}

func (p Plan) ids(kind InstructionKind) []string {
	var out []string
	for _, in := range p.Instructions {
		if in.Kind == kind {
			out = append(out, in.EntityID)
		}
	}
	return out
}
