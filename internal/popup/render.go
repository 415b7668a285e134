package popup

import "encoding/json"

// Layout is the fixed set of layout variants a popup renders as. The
// rendering layer switches on this instead of interpreting a free-form bag of
// style overrides.
type Layout string

const (
	// LayoutModal is a centered dialog, optionally behind a blocking overlay.
	LayoutModal Layout = "modal"
	// LayoutPanel is a fixed-position corner panel with an optional dimmed
	// backdrop.
	LayoutPanel Layout = "panel"
)

// RenderPlan tells the rendering layer how to place one visible popup.
type RenderPlan struct {
	PopupID         string          `json:"popup_id"`
	Layout          Layout          `json:"layout"`
	Position        Position        `json:"position"`
	Animation       Animation       `json:"animation"`
	ZIndex          int             `json:"z_index"`
	BackdropZIndex  int             `json:"backdrop_z_index"`
	ShowBackdrop    bool            `json:"show_backdrop"`
	ShowCloseButton bool            `json:"show_close_button"`
	Content         json.RawMessage `json:"content,omitempty"`
}

// BuildRenderPlan maps resolved settings onto a typed layout variant.
// The backdrop stacks one level below the content.
func BuildRenderPlan(popupID string, s Settings, content json.RawMessage) RenderPlan {
	layout := LayoutPanel
	if s.Position == PositionCenter {
		layout = LayoutModal
	}
	return RenderPlan{
		PopupID:         popupID,
		Layout:          layout,
		Position:        s.Position,
		Animation:       s.Animation,
		ZIndex:          s.ZIndex,
		BackdropZIndex:  s.ZIndex - 1,
		ShowBackdrop:    s.ShowOverlay,
		ShowCloseButton: s.ShowCloseButton,
		Content:         content,
	}
}
