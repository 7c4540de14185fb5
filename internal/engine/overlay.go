package engine

// OverlayID marks the highlight indicator element the live bridge injects
// into the page. The engine must never treat its own indicator as a hover
// target.
const OverlayID = "pageflow-highlight-overlay"

// Overlay tracks the single non-interactive highlight indicator that follows
// the hovered element. Purely presentational: it never contributes to the
// action log.
type Overlay struct {
	Visible bool
	// Rect is the highlighted box in document coordinates (viewport rect
	// shifted by the scroll offsets).
	Rect   Rect
	target Element
}

// Update moves the overlay to el's bounding box. A nil or excluded target
// hides the overlay. Returns true when the overlay state changed.
func (o *Overlay) Update(el Element, metrics PageMetrics) bool {
	if el == nil || el.ID() == OverlayID {
		return o.Hide()
	}
	if el == o.target && o.Visible {
		return false
	}
	r := el.Rect()
	o.Rect = Rect{
		X:      r.X + metrics.ScrollX,
		Y:      r.Y + metrics.ScrollY,
		Width:  r.Width,
		Height: r.Height,
	}
	o.Visible = true
	o.target = el
	return true
}

// Hide clears the overlay. Returns true when it was visible.
func (o *Overlay) Hide() bool {
	changed := o.Visible
	o.Visible = false
	o.target = nil
	o.Rect = Rect{}
	return changed
}
