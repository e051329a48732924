// Package display shows notification records as GTK4/libadwaita popups
// anchored with Wayland layer-shell. It implements dispatch.Renderer; all
// widget work is marshalled onto the GTK main loop.
package display
