package display

import "github.com/EngrAlegre/ALGAE-ML/internal/log"

// Console renders views to the structured log. It is the default
// renderer when no LCD daemon or dashboard is wired up.
type Console struct{}

// Show implements Renderer.
func (Console) Show(v View, d Data) {
	f := Render(v, d)
	switch v {
	case ViewError:
		log.Error("display", "view", string(v), "line1", f.Line1, "line2", f.Line2)
	case ViewWarning, ViewBinFull, ViewObstacle:
		log.Warn("display", "view", string(v), "line1", f.Line1, "line2", f.Line2)
	default:
		log.Info("display", "view", string(v), "line1", f.Line1, "line2", f.Line2)
	}
}

// Multi fans one Show call out to several renderers.
type Multi []Renderer

// Show implements Renderer.
func (m Multi) Show(v View, d Data) {
	for _, r := range m {
		if r != nil {
			r.Show(v, d)
		}
	}
}
