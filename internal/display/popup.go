package display

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/qnotify/internal/config"
	"github.com/jmylchreest/qnotify/internal/display/imagesource"
	"github.com/jmylchreest/qnotify/internal/layout"
	"github.com/jmylchreest/qnotify/internal/model"
)

const (
	defaultIconSize  = 48
	defaultImageSize = 128
	fallbackIconName = "dialog-information"
)

// Popup is the window showing one notification. All methods must be called
// on the GTK main loop.
type Popup struct {
	window  *gtk.Window
	rec     model.Record
	content content
	config  *config.DaemonConfig
	layout  *layout.LayoutConfig
	logger  *slog.Logger

	box       *gtk.Box
	actionBox *gtk.Box
	closeBtn  *gtk.Button

	onAction  func(actionKey string)
	onDismiss func()

	closed bool
}

func newPopup(app *gtk.Application, rec model.Record, c content, cfg *config.DaemonConfig, tmpl *layout.LayoutConfig, logger *slog.Logger) *Popup {
	p := &Popup{
		rec:     rec,
		content: c,
		config:  cfg,
		layout:  tmpl,
		logger:  logger,
	}

	p.window = gtk.NewWindow()
	p.window.SetApplication(app)
	p.window.SetDecorated(false)
	p.window.SetResizable(false)

	minWidth := tmpl.MinWidth
	if minWidth == 0 {
		minWidth = cfg.Display.Width
	}
	maxWidth := tmpl.MaxWidth
	if maxWidth == 0 {
		maxWidth = cfg.Display.Width
	}
	p.window.SetDefaultSize(maxWidth, -1)
	p.window.SetSizeRequest(minWidth, tmpl.MinHeight)

	layershell.InitForWindow(p.window)
	layershell.SetLayer(p.window, layershell.LayerShellLayerOverlay)
	layershell.SetExclusiveZone(p.window, 0)
	layershell.SetKeyboardMode(p.window, layershell.LayerShellKeyboardModeNone)
	layershell.SetNamespace(p.window, "qnotify-notification")

	p.buildUI()
	p.applyClasses()
	p.connectSignals()

	return p
}

// buildUI constructs the widget tree from the layout template.
func (p *Popup) buildUI() {
	p.box = gtk.NewBox(gtk.OrientationVertical, 6)
	p.box.AddCSSClass("notification-popup")
	p.box.SetMarginTop(8)
	p.box.SetMarginBottom(8)
	p.box.SetMarginStart(12)
	p.box.SetMarginEnd(12)

	for _, elem := range p.layout.Elements {
		if widget := p.buildElement(elem); widget != nil {
			p.box.Append(widget)
		}
	}

	maxHeight := p.layout.MaxHeight
	if maxHeight == 0 {
		maxHeight = p.config.Display.MaxHeight
	}
	scroller := gtk.NewScrolledWindow()
	scroller.SetPolicy(gtk.PolicyNever, gtk.PolicyAutomatic)
	scroller.SetPropagateNaturalHeight(true)
	scroller.SetMaxContentHeight(maxHeight)
	scroller.SetChild(p.box)

	p.window.SetChild(scroller)
}

func (p *Popup) buildElement(elem layout.LayoutElement) gtk.Widgetter {
	switch elem.Type {
	case layout.ElementTypeHeader:
		return p.buildContainer(elem, gtk.OrientationHorizontal, 8, "notification-header")
	case layout.ElementTypeBox:
		orientation := gtk.OrientationVertical
		if elem.Attributes["orientation"] == "horizontal" {
			orientation = gtk.OrientationHorizontal
		}
		return p.buildContainer(elem, orientation, 4, "")
	case layout.ElementTypeIcon:
		return p.buildIcon(elem)
	case layout.ElementTypeAppIcon:
		return p.buildAppIcon(elem)
	case layout.ElementTypeSummary:
		return p.buildSummary()
	case layout.ElementTypeAppName:
		return p.buildAppName()
	case layout.ElementTypeBody:
		return p.buildBody()
	case layout.ElementTypeImage:
		return p.buildImage(elem)
	case layout.ElementTypeActions:
		return p.buildActions()
	case layout.ElementTypeTimestamp:
		return p.buildTimestamp()
	case layout.ElementTypeClose:
		return p.buildClose()
	default:
		return nil
	}
}

func (p *Popup) buildContainer(elem layout.LayoutElement, orientation gtk.Orientation, spacing int, class string) gtk.Widgetter {
	box := gtk.NewBox(orientation, spacing)
	if class != "" {
		box.AddCSSClass(class)
	}
	if orientation == gtk.OrientationVertical {
		box.SetHExpand(true)
	}

	for _, child := range elem.Children {
		if widget := p.buildElement(child); widget != nil {
			box.Append(widget)
		}
	}
	return box
}

// attrSize reads a pixel size attribute, falling back to def.
func attrSize(elem layout.LayoutElement, def int) int {
	if v, err := strconv.Atoi(strings.TrimSuffix(elem.Attributes["size"], "px")); err == nil && v > 0 {
		return v
	}
	return def
}

// newImage creates an image widget for src, or returns nil when src is
// empty or its data cannot be decoded.
func (p *Popup) newImage(src imagesource.Source) *gtk.Image {
	switch src.Kind {
	case imagesource.KindFile:
		return gtk.NewImageFromFile(src.Path)
	case imagesource.KindIconName:
		return gtk.NewImageFromIconName(src.Name)
	case imagesource.KindPNG:
		texture, err := gdk.NewTextureFromBytes(glib.NewBytes(src.Data))
		if err != nil {
			p.logger.Debug("failed to decode image", "id", p.rec.ID, "error", err)
			return nil
		}
		return gtk.NewImageFromPaintable(texture)
	default:
		return nil
	}
}

func (p *Popup) buildIcon(elem layout.LayoutElement) gtk.Widgetter {
	img := p.newImage(p.content.icon)
	if img == nil {
		img = gtk.NewImageFromIconName(fallbackIconName)
	}
	img.AddCSSClass("notification-icon")
	img.SetPixelSize(attrSize(elem, defaultIconSize))
	img.SetVAlign(gtk.AlignStart)
	return img
}

func (p *Popup) buildAppIcon(elem layout.LayoutElement) gtk.Widgetter {
	img := p.newImage(p.content.appIcon)
	if img == nil {
		return nil
	}
	img.AddCSSClass("notification-appicon")
	img.SetPixelSize(attrSize(elem, 16))
	return img
}

func (p *Popup) buildSummary() gtk.Widgetter {
	lbl := gtk.NewLabel(p.rec.Summary)
	lbl.AddCSSClass("notification-summary")
	lbl.SetXAlign(0)
	lbl.SetEllipsize(3) // PANGO_ELLIPSIZE_END
	lbl.SetMaxWidthChars(40)
	lbl.SetHExpand(true)
	return lbl
}

func (p *Popup) buildAppName() gtk.Widgetter {
	if p.rec.AppName == "" {
		return nil
	}
	lbl := gtk.NewLabel(p.rec.AppName)
	lbl.AddCSSClass("notification-appname")
	lbl.SetXAlign(0)
	lbl.SetHExpand(true)
	return lbl
}

func (p *Popup) buildTimestamp() gtk.Widgetter {
	lbl := gtk.NewLabel(humanize.Time(p.rec.ReceivedAt))
	lbl.AddCSSClass("notification-timestamp")
	lbl.SetXAlign(1)
	return lbl
}

func (p *Popup) buildClose() gtk.Widgetter {
	p.closeBtn = gtk.NewButtonFromIconName("window-close-symbolic")
	p.closeBtn.AddCSSClass("notification-close")
	p.closeBtn.SetVisible(false) // shown on hover
	return p.closeBtn
}

func (p *Popup) buildBody() gtk.Widgetter {
	if p.rec.Body == "" {
		return nil
	}

	lbl := gtk.NewLabel("")
	lbl.AddCSSClass("notification-body")
	lbl.SetXAlign(0)
	lbl.SetWrap(true)
	lbl.SetWrapMode(2) // PANGO_WRAP_WORD_CHAR
	lbl.SetMaxWidthChars(50)

	if strings.Contains(p.rec.Body, "<") {
		lbl.SetMarkup(p.rec.Body)
	} else {
		lbl.SetText(p.rec.Body)
	}
	return lbl
}

func (p *Popup) buildImage(elem layout.LayoutElement) gtk.Widgetter {
	img := p.newImage(p.content.image)
	if img == nil {
		return nil
	}
	img.AddCSSClass("notification-image")
	img.SetPixelSize(attrSize(elem, defaultImageSize))
	return img
}

func (p *Popup) buildActions() gtk.Widgetter {
	actions := p.rec.ParsedActions()
	if len(actions) == 0 {
		return nil
	}

	p.actionBox = gtk.NewBox(gtk.OrientationHorizontal, 6)
	p.actionBox.AddCSSClass("notification-actions")
	p.actionBox.SetVisible(false) // shown on hover

	for _, action := range actions {
		key := action.Key
		btn := gtk.NewButtonWithLabel(action.Label)
		btn.AddCSSClass("notification-action")
		btn.ConnectClicked(func() { p.invoke(key) })
		p.actionBox.Append(btn)
	}
	return p.actionBox
}

// invoke reports an action and dismisses the popup unless it is resident.
func (p *Popup) invoke(key string) {
	if p.onAction != nil {
		p.onAction(key)
	}
	if !p.rec.Resident() {
		p.dismiss()
	}
}

func (p *Popup) dismiss() {
	if p.onDismiss != nil {
		p.onDismiss()
	}
}

// applyClasses adds CSS classes describing the record for styling.
func (p *Popup) applyClasses() {
	p.box.AddCSSClass(colorSchemeClass())
	p.box.AddCSSClass(urgencyToClass(p.rec.Urgency()))

	if p.rec.AppName != "" {
		p.box.AddCSSClass("app-" + sanitizeClassName(p.rec.AppName))
	}
	if cat := p.rec.Category(); cat != "" {
		p.box.AddCSSClass("category-" + sanitizeClassName(cat))
	}
	if p.rec.Body != "" {
		p.box.AddCSSClass("has-body")
	}
	if p.rec.IconRef != "" {
		p.box.AddCSSClass("has-icon")
	}
	if p.rec.HasImage() {
		p.box.AddCSSClass("has-image")
	}
	if len(p.rec.ParsedActions()) > 0 {
		p.box.AddCSSClass("has-actions")
	}
	if p.rec.Resident() {
		p.box.AddCSSClass("is-resident")
	}
}

func (p *Popup) connectSignals() {
	if p.closeBtn != nil {
		p.closeBtn.ConnectClicked(p.dismiss)
	}

	motionCtrl := gtk.NewEventControllerMotion()
	motionCtrl.ConnectEnter(func(x, y float64) { p.setHover(true) })
	motionCtrl.ConnectLeave(func() { p.setHover(false) })
	p.window.AddController(motionCtrl)

	clickCtrl := gtk.NewGestureClick()
	clickCtrl.SetButton(0) // all buttons
	clickCtrl.ConnectReleased(func(nPress int, x, y float64) {
		p.handleClick(clickCtrl.CurrentButton())
	})
	p.window.AddController(clickCtrl)
}

func (p *Popup) setHover(hovering bool) {
	if p.closeBtn != nil {
		p.closeBtn.SetVisible(hovering)
	}
	if p.actionBox != nil {
		p.actionBox.SetVisible(hovering)
	}
}

// handleClick runs the configured mouse action for button.
func (p *Popup) handleClick(button uint) {
	var action string
	switch button {
	case 1:
		action = p.config.Mouse.Left
	case 2:
		action = p.config.Mouse.Middle
	case 3:
		action = p.config.Mouse.Right
	default:
		return
	}

	switch config.MouseAction(action) {
	case config.MouseActionDismiss:
		p.dismiss()
	case config.MouseActionDoAction:
		if key, ok := defaultActionKey(p.rec.ParsedActions()); ok {
			p.invoke(key)
		}
	case config.MouseActionNone:
	}
}

// Show anchors and presents the popup.
func (p *Popup) Show() {
	anchorWindow(p.window, p.config.Display)
	p.window.Present()
}

// Close destroys the popup window.
func (p *Popup) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.window.Close()
}

// defaultActionKey picks the "default" action if present, otherwise the first.
func defaultActionKey(actions []model.Action) (string, bool) {
	if len(actions) == 0 {
		return "", false
	}
	for _, a := range actions {
		if a.Key == "default" {
			return a.Key, true
		}
	}
	return actions[0].Key, true
}

// sanitizeClassName converts a string to a valid CSS class name.
func sanitizeClassName(name string) string {
	var result strings.Builder
	prevHyphen := false

	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			result.WriteRune(r)
			prevHyphen = false
		case r == '-' || r == '_' || r == ' ' || r == '.' || r == '/':
			if !prevHyphen && result.Len() > 0 {
				result.WriteRune('-')
				prevHyphen = true
			}
		}
	}

	return strings.TrimSuffix(result.String(), "-")
}

func urgencyToClass(urgency int) string {
	switch urgency {
	case model.UrgencyLow:
		return "urgency-low"
	case model.UrgencyCritical:
		return "urgency-critical"
	default:
		return "urgency-normal"
	}
}

// colorSchemeClass follows the libadwaita system preference.
func colorSchemeClass() string {
	if adw.StyleManagerGetDefault().Dark() {
		return "dark"
	}
	return "light"
}
