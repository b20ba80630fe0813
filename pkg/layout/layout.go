// Package layout places the root subject, its legs, and each leg's ranked
// profiles on a 2-D canvas for visualization. It is a pure function of its
// inputs: same legs in, same coordinates out.
package layout

import (
	"math"

	"github.com/sp1nlock/legwork/pkg/cluster"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeKind distinguishes what a placed node represents.
type NodeKind string

const (
	NodeRoot    NodeKind = "root"
	NodeLeg     NodeKind = "leg"
	NodeProfile NodeKind = "profile"
)

// Node is one positioned element of the radial graph.
type Node struct {
	Kind     NodeKind `json:"kind"`
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	LegID    string   `json:"leg_id,omitempty"`
	Rank     int      `json:"rank"`
	Position Point    `json:"position"`
}

// Config holds the geometry constants.
type Config struct {
	CanvasWidth  float64
	CanvasHeight float64
	BaseRadius   float64
	RingGap      float64
}

// Project maps the clustered, ranked result set to coordinates. The root
// sits at canvas center; leg i sits at BaseRadius from center at angle
// -90° + i*(360°/n); a leg's profile of rank r sits on the same angle at
// BaseRadius + (r+1)*RingGap, rank 0 closest to the center.
func Project(cfg Config, rootLabel string, legs []cluster.Leg) []Node {
	center := Point{X: cfg.CanvasWidth / 2, Y: cfg.CanvasHeight / 2}
	nodes := []Node{{
		Kind:     NodeRoot,
		ID:       "root",
		Label:    rootLabel,
		Position: center,
	}}
	if len(legs) == 0 {
		return nodes
	}

	step := 2 * math.Pi / float64(len(legs))
	for i, leg := range legs {
		angle := -math.Pi/2 + float64(i)*step
		nodes = append(nodes, Node{
			Kind:     NodeLeg,
			ID:       leg.ID,
			Label:    leg.Label,
			Position: polar(center, cfg.BaseRadius, angle),
		})
		for r, p := range leg.Profiles {
			nodes = append(nodes, Node{
				Kind:     NodeProfile,
				ID:       leg.ID + "/" + p.Platform,
				Label:    p.DisplayName,
				LegID:    leg.ID,
				Rank:     r,
				Position: polar(center, cfg.BaseRadius+float64(r+1)*cfg.RingGap, angle),
			})
		}
	}
	return nodes
}

func polar(center Point, radius, angle float64) Point {
	return Point{
		X: center.X + radius*math.Cos(angle),
		Y: center.Y + radius*math.Sin(angle),
	}
}
