package server

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsweb"

	"github.com/banshee-data/slamviewer/internal/httputil"
	"github.com/banshee-data/slamviewer/internal/version"
	"github.com/banshee-data/slamviewer/internal/viewer"
)

// MenuController is the part of a host that takes menu input from outside
// the render goroutine.
type MenuController interface {
	Press(c viewer.Command)
	SetToggle(name string, on bool) bool
	Toggles() viewer.Toggles
}

// commands maps the debug command names to menu buttons.
var commands = map[string]viewer.Command{
	"reset":       viewer.CommandReset,
	"save-window": viewer.CommandSaveWindow,
	"save-object": viewer.CommandSaveObject,
	"exit":        viewer.CommandExit,
}

// CategoryStatus summarises one category buffer.
type CategoryStatus struct {
	Ready bool `json:"ready"`
	Size  int  `json:"size"`
	Base  int  `json:"base,omitempty"`
}

// Status is the JSON body of the viewer status page.
type Status struct {
	Version string `json:"version"`
	GitSHA  string `json:"git_sha"`

	Loop       string `json:"loop"`
	Frames     uint64 `json:"frames"`
	Resets     uint64 `json:"resets"`
	StaleLinks int    `json:"stale_links"`
	Window     int    `json:"window"`

	Categories map[viewer.Category]CategoryStatus `json:"categories"`
	Follow     [16]float64                        `json:"follow"`
	Toggles    map[string]bool                    `json:"toggles,omitempty"`
	Extra      map[string]any                     `json:"extra,omitempty"`
}

// Debug serves viewer status, menu commands and prometheus metrics under
// /debug/.
type Debug struct {
	state    *viewer.State
	loop     *viewer.Loop
	menu     MenuController
	gatherer prometheus.Gatherer

	mu    sync.Mutex
	extra map[string]func() any
}

// NewDebug creates the debug surface. menu and gatherer may be nil.
func NewDebug(state *viewer.State, loop *viewer.Loop, menu MenuController, gatherer prometheus.Gatherer) *Debug {
	return &Debug{
		state:    state,
		loop:     loop,
		menu:     menu,
		gatherer: gatherer,
		extra:    make(map[string]func() any),
	}
}

// AddStatus adds a named section to the status page, e.g. ingest counters.
func (d *Debug) AddStatus(name string, fn func() any) {
	d.mu.Lock()
	d.extra[name] = fn
	d.mu.Unlock()
}

// Status builds the current status.
func (d *Debug) Status() Status {
	traj := d.state.Trajectory()
	raw := d.state.RawTrajectory()
	opt := d.state.OptimizedTrajectory()
	lms := d.state.Landmarks()
	links := d.state.LoopLinks()
	orient := d.state.Orientation()

	st := Status{
		Version: version.Version,
		GitSHA:  version.GitSHA,
		Window:  d.state.Window(),
		Categories: map[viewer.Category]CategoryStatus{
			viewer.CategoryTrajectory:          {Ready: traj.Ready, Size: len(traj.Points), Base: traj.Base},
			viewer.CategoryRawTrajectory:       {Ready: raw.Ready, Size: len(raw.Points)},
			viewer.CategoryOptimizedTrajectory: {Ready: opt.Ready, Size: len(opt.Points)},
			viewer.CategoryLandmarks:           {Ready: lms.Ready, Size: len(lms.Landmarks)},
			viewer.CategoryLoopLinks:           {Ready: links.Ready, Size: len(links.Links)},
			viewer.CategoryOrientation:         {Ready: orient.Ready},
		},
		Follow: d.state.LastFollowTransform().ColumnMajor(),
	}
	if d.loop != nil {
		ls := d.loop.Stats()
		st.Loop = ls.State.String()
		st.Frames = ls.Frames
		st.Resets = ls.Resets
		st.StaleLinks = ls.StaleLinks
	}
	if d.menu != nil {
		st.Toggles = d.menu.Toggles().Map()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.extra) > 0 {
		st.Extra = make(map[string]any, len(d.extra))
		for name, fn := range d.extra {
			st.Extra[name] = fn()
		}
	}
	return st
}

// AttachAdminRoutes mounts the debug pages on mux.
func (d *Debug) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("viewer", "Viewer status (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, d.Status())
	})

	if d.menu != nil {
		debug.HandleSilentFunc("viewer-command", d.handleCommand)
		debug.HandleSilentFunc("viewer-toggle", d.handleToggle)
	}

	if d.gatherer != nil {
		debug.Handle("prometheus", "Prometheus metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))
	}
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// handleCommand presses a menu button: POST command=reset|save-window|...
func (d *Debug) handleCommand(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	name := strings.TrimSpace(r.FormValue("command"))
	c, ok := commands[name]
	if !ok {
		httputil.BadRequest(w, "unknown command "+strconv.Quote(name)+", want one of "+commandNames())
		return
	}
	d.menu.Press(c)
	logf("debug command %q", name)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"pressed": c.String()})
}

// handleToggle switches a menu toggle: POST name=<panel name>&on=true|false
func (d *Debug) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	name := r.FormValue("name")
	on, err := strconv.ParseBool(r.FormValue("on"))
	if err != nil {
		httputil.BadRequest(w, "on must be a boolean")
		return
	}
	if !d.menu.SetToggle(name, on) {
		httputil.BadRequest(w, "unknown toggle "+strconv.Quote(name))
		return
	}
	httputil.WriteJSONOK(w, d.menu.Toggles().Map())
}
