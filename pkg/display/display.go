// Package display renders robot state for the operator. Views are
// formatted as two lines of at most 16 characters, matching the 16x2
// character LCD on the hull; renderers that have more room (console,
// dashboard) show the same frames so the operator sees one story.
package display

import (
	"fmt"

	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// Cols is the line width of the hull LCD.
const Cols = 16

// View identifies what the display is showing.
type View string

// View kinds. Scanning, Position and Payload rotate while idle; the rest
// are event-driven.
const (
	ViewScanning   View = "scanning"
	ViewPosition   View = "position"
	ViewPayload    View = "payload"
	ViewDetected   View = "detected"
	ViewCollecting View = "collecting"
	ViewBinFull    View = "bin_full"
	ViewObstacle   View = "obstacle"
	ViewError      View = "error"
	ViewWarning    View = "warning"
	ViewReady      View = "ready"
	ViewShutdown   View = "shutdown"
)

// Data carries everything a view might render. Unused fields are ignored.
type Data struct {
	CollectionCount int64
	Confidence      float64
	Position        *world.Position
	PayloadKG       float64
	ClearanceCM     float64
	Message         string
}

// Renderer shows one view. Implementations must not fail on malformed or
// oversized text; Frame truncates before they see it.
type Renderer interface {
	Show(v View, d Data)
}

// Frame is a rendered two-line view.
type Frame struct {
	Line1, Line2 string
}

// Truncate clips s to the LCD line width, counting characters rather
// than bytes so a multi-byte character is never cut in half.
func Truncate(s string) string {
	if len(s) <= Cols {
		return s
	}
	r := []rune(s)
	if len(r) <= Cols {
		return s
	}
	return string(r[:Cols])
}

// Render formats a view into an LCD frame. Unknown views fall back to the
// raw message so a renderer never has nothing to show.
func Render(v View, d Data) Frame {
	var f Frame
	switch v {
	case ViewScanning:
		f = Frame{"Scanning...", fmt.Sprintf("Collected: %d", d.CollectionCount)}
	case ViewPosition:
		if d.Position == nil {
			f = Frame{"GPS:", "No Fix"}
		} else {
			f = Frame{
				fmt.Sprintf("Lat: %.4f", d.Position.Lat),
				fmt.Sprintf("Lon: %.4f", d.Position.Lon),
			}
		}
	case ViewPayload:
		f = Frame{"Total Collected", fmt.Sprintf("%.2f kg", d.PayloadKG)}
	case ViewDetected:
		f = Frame{"ALGAE DETECTED!", fmt.Sprintf("Cnt:%d C:%d%%", d.CollectionCount, int(d.Confidence*100))}
	case ViewCollecting:
		f = Frame{"Collecting", "Algae..."}
	case ViewBinFull:
		f = Frame{"*** WARNING ***", "BIN FULL!"}
	case ViewObstacle:
		f = Frame{"OBSTACLE!", fmt.Sprintf("Distance: %.0fcm", d.ClearanceCM)}
	case ViewError:
		f = Frame{"ERROR!", d.Message}
	case ViewWarning:
		f = Frame{"WARNING", d.Message}
	case ViewReady:
		f = Frame{"System Ready", "Scanning soon"}
	case ViewShutdown:
		f = Frame{"Shutting Down", "Goodbye!"}
	default:
		f = Frame{string(v), d.Message}
	}
	f.Line1 = Truncate(f.Line1)
	f.Line2 = Truncate(f.Line2)
	return f
}
