package display

import (
	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/qnotify/internal/config"
)

// edges lists which screen edges a position anchors to.
type edges struct {
	top, bottom, left, right bool
}

func anchorEdges(pos config.Position) edges {
	switch pos {
	case config.PositionTopLeft:
		return edges{top: true, left: true}
	case config.PositionTopCenter:
		return edges{top: true}
	case config.PositionBottomRight:
		return edges{bottom: true, right: true}
	case config.PositionBottomLeft:
		return edges{bottom: true, left: true}
	case config.PositionBottomCenter:
		return edges{bottom: true}
	default:
		return edges{top: true, right: true}
	}
}

// anchorWindow sets the layer-shell anchors and margins of window.
func anchorWindow(window *gtk.Window, d config.DisplayConfig) {
	e := anchorEdges(config.Position(d.Position))

	layershell.SetAnchor(window, layershell.LayerShellEdgeTop, e.top)
	layershell.SetAnchor(window, layershell.LayerShellEdgeBottom, e.bottom)
	layershell.SetAnchor(window, layershell.LayerShellEdgeLeft, e.left)
	layershell.SetAnchor(window, layershell.LayerShellEdgeRight, e.right)

	if e.top {
		layershell.SetMargin(window, layershell.LayerShellEdgeTop, d.OffsetY)
	}
	if e.bottom {
		layershell.SetMargin(window, layershell.LayerShellEdgeBottom, d.OffsetY)
	}
	if e.left {
		layershell.SetMargin(window, layershell.LayerShellEdgeLeft, d.OffsetX)
	}
	if e.right {
		layershell.SetMargin(window, layershell.LayerShellEdgeRight, d.OffsetX)
	}
}
