package web

import (
	"crypto/subtle"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"
	"time"

	"plancal/internal/config"
	"plancal/internal/eventcache"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/planner"
	"plancal/internal/timeline"
)

// Server exposes the planner over HTTP: range queries, day layout, refresh,
// and a server-rendered timeline page used for preview capture.
type Server struct {
	cfg   *config.Config
	svc   *planner.Service
	debug bool
	mux   *http.ServeMux
}

// NewServer constructs a Server around an injected planner service.
func NewServer(cfg *config.Config, svc *planner.Service, debug bool) *Server {
	s := &Server{
		cfg:   cfg,
		svc:   svc,
		debug: debug,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server, with basic auth applied
// when configured. The caller owns the http.Server and its shutdown.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="plancal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/timeline", s.handleTimeline)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/timeline", s.handleTimelinePage)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is a JSON-friendly view of one event.
type eventDTO struct {
	ID          string    `json:"id"`
	Account     string    `json:"account"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start,omitzero"`
	End         time.Time `json:"end,omitzero"`
	Recurring   bool      `json:"recurring"`
}

// dayDTO is one day bucket. Days come out sorted; JSON objects keyed by
// date would lose that.
type dayDTO struct {
	Date   string     `json:"date"`
	Events []eventDTO `json:"events"`
}

// eventsResponse is the JSON shape of /api/events.
type eventsResponse struct {
	Kind            string    `json:"kind"`
	RangeStart      time.Time `json:"range_start"`
	RangeEnd        time.Time `json:"range_end"`
	DisplayTimeZone string    `json:"display_timezone"`
	WeekStart       string    `json:"week_start"`
	Days            []dayDTO  `json:"days"`
}

// handleEvents returns the day-bucketed events of a display range.
//
// GET /api/events?kind=week&anchor=2024-03-04
//   - kind:   day | week | month | year (default week)
//   - anchor: YYYY-MM-DD in the display timezone (default today)
//
// Filter overrides (all optional, defaulting from config):
//   - hide_recurring=true|false
//   - all_day=true|false
//   - timed=true|false
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind := timeline.RangeKind(q.Get("kind"))
	if kind == "" {
		kind = timeline.RangeWeek
	}
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown range kind")
		return
	}

	anchor, ok := s.parseAnchor(q.Get("anchor"))
	if !ok {
		writeError(w, http.StatusBadRequest, "anchor must be YYYY-MM-DD")
		return
	}

	filter := s.filterFromQuery(q)

	grouped, err := s.svc.Events(r.Context(), kind, anchor, filter)
	if err != nil {
		appLog.Error("api events failed", err, "kind", kind)
		writeError(w, http.StatusBadGateway, "failed to load events")
		return
	}

	resp := eventsResponse{
		Kind:            string(kind),
		RangeStart:      grouped.Interval.Start,
		RangeEnd:        grouped.Interval.End,
		DisplayTimeZone: s.svc.Location().String(),
		WeekStart:       s.cfg.WeekStart,
		Days:            daysToDTO(grouped),
	}
	writeJSON(w, http.StatusOK, resp)
}

func daysToDTO(grouped planner.Grouped) []dayDTO {
	days := make([]time.Time, 0, len(grouped.Days))
	for d := range grouped.Days {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]dayDTO, 0, len(days))
	for _, d := range days {
		bucket := grouped.Days[d]
		events := make([]eventDTO, 0, len(bucket))
		for _, e := range bucket {
			events = append(events, toEventDTO(e, bucket))
		}
		out = append(out, dayDTO{Date: d.Format("2006-01-02"), Events: events})
	}
	return out
}

func toEventDTO(e model.Event, corpus []model.Event) eventDTO {
	return eventDTO{
		ID:          e.ID,
		Account:     string(e.Account),
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		AllDay:      e.AllDay,
		Start:       e.Start,
		End:         e.End,
		Recurring:   timeline.IsRecurring(e, corpus),
	}
}

// laidOutDTO is one positioned event of /api/timeline.
type laidOutDTO struct {
	Event       eventDTO `json:"event"`
	StartSlot   int      `json:"start_slot"`
	EndSlot     int      `json:"end_slot"`
	ColumnIndex int      `json:"column_index"`
	ColumnCount int      `json:"column_count"`
}

// timelineResponse is the JSON shape of /api/timeline. Slot-to-pixel
// mapping is the client's job; units_per_slot only states the reference
// scale.
type timelineResponse struct {
	Date         string       `json:"date"`
	SlotsPerDay  int          `json:"slots_per_day"`
	UnitsPerSlot int          `json:"units_per_slot"`
	Events       []laidOutDTO `json:"events"`
}

// handleTimeline returns slot geometry for one day.
//
// GET /api/timeline?date=2024-03-04
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, ok := s.parseAnchor(q.Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	laid, err := s.svc.Timeline(r.Context(), date, s.filterFromQuery(q))
	if err != nil {
		appLog.Error("api timeline failed", err)
		writeError(w, http.StatusBadGateway, "failed to lay out timeline")
		return
	}

	events := make([]laidOutDTO, 0, len(laid))
	for _, l := range laid {
		events = append(events, laidOutDTO{
			Event:       toEventDTO(l.Event, nil),
			StartSlot:   l.StartSlot,
			EndSlot:     l.EndSlot,
			ColumnIndex: l.ColumnIndex,
			ColumnCount: l.ColumnCount,
		})
	}

	writeJSON(w, http.StatusOK, timelineResponse{
		Date:         timeline.StartOfDay(date, s.svc.Location()).Format("2006-01-02"),
		SlotsPerDay:  timeline.SlotsPerDay,
		UnitsPerSlot: timeline.UnitsPerSlot,
		Events:       events,
	})
}

// handleRefresh drops all cached state and reloads.
//
// POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	if err := s.svc.Refresh(r.Context()); err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// timelinePage is the server-rendered day view captured into preview.png.
// The data-ready attribute is the capture signal.
var timelinePage = template.Must(template.New("timeline").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>plancal {{.Date}}</title>
<style>
  body { font-family: sans-serif; margin: 0; }
  .day { position: relative; width: 960px; height: {{.Height}}px; border-left: 48px solid #f4f4f4; }
  .event { position: absolute; box-sizing: border-box; border-radius: 4px;
           color: #fff; font-size: 13px; padding: 2px 6px; overflow: hidden; }
  .allday { padding: 4px 8px; margin: 2px; display: inline-block; border-radius: 4px; color: #fff; }
</style></head>
<body data-ready="true">
<h1>{{.Date}}</h1>
<div class="allday-band">{{range .AllDay}}<span class="allday" style="background:{{.Color}}">{{.Title}}</span>{{end}}</div>
<div class="day">
{{range .Events}}  <div class="event" style="top:{{.Top}}px;height:{{.Height}}px;left:{{.Left}}%;width:{{.Width}}%;background:{{.Color}}">{{.Title}}</div>
{{end}}</div>
</body>
</html>
`))

type pageEvent struct {
	Title  string
	Color  string
	Top    int
	Height int
	Left   float64
	Width  float64
}

type pageData struct {
	Date   string
	Height int
	AllDay []pageEvent
	Events []pageEvent
}

// handleTimelinePage renders the day timeline as HTML. This is the page the
// capture pipeline screenshots; the pixel math here is the reference
// 50-units-per-slot mapping.
//
// GET /timeline?date=2024-03-04
func (s *Server) handleTimelinePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, ok := s.parseAnchor(q.Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	filter := s.filterFromQuery(q)
	day := timeline.StartOfDay(date, s.svc.Location())

	grouped, err := s.svc.Events(r.Context(), timeline.RangeDay, date, filter)
	if err != nil {
		appLog.Error("timeline page failed", err)
		writeError(w, http.StatusBadGateway, "failed to load events")
		return
	}
	laid := timeline.Layout(day, grouped.Days[day])

	data := pageData{
		Date:   day.Format("2006-01-02"),
		Height: timeline.SlotsPerDay * timeline.UnitsPerSlot,
	}
	if s.cfg.ShowAllDay {
		for _, e := range grouped.Days[day] {
			if e.AllDay {
				data.AllDay = append(data.AllDay, pageEvent{
					Title: e.Title,
					Color: s.cfg.ColorFor(e.Account),
				})
			}
		}
	}
	for _, l := range laid {
		width := 100.0 / float64(l.ColumnCount)
		data.Events = append(data.Events, pageEvent{
			Title:  l.Event.Title,
			Color:  s.cfg.ColorFor(l.Event.Account),
			Top:    l.StartSlot * timeline.UnitsPerSlot,
			Height: (l.EndSlot - l.StartSlot) * timeline.UnitsPerSlot,
			Left:   float64(l.ColumnIndex) * width,
			Width:  width,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := timelinePage.Execute(w, data); err != nil {
		appLog.Error("timeline page render failed", err)
	}
}

// handlePreview serves the last captured PNG preview from disk. Path rules
// match the capture pipeline in cmd/plancal:
//   - default: /var/lib/plancal/preview.png
//   - debug:   ./cache/preview.png
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	previewPath := "/var/lib/plancal/preview.png"
	if s.debug {
		previewPath = "./cache/preview.png"
	}
	http.ServeFile(w, r, previewPath)
}

// parseAnchor parses a YYYY-MM-DD query value in the display timezone.
// Empty means today.
func (s *Server) parseAnchor(v string) (time.Time, bool) {
	if v == "" {
		return time.Now().In(s.svc.Location()), true
	}
	t, err := time.ParseInLocation("2006-01-02", v, s.svc.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// filterFromQuery builds filter options from config defaults plus query
// overrides.
func (s *Server) filterFromQuery(q map[string][]string) eventcache.FilterOptions {
	filter := eventcache.FilterOptions{
		HideRecurring: s.cfg.HideRecurring,
		IncludeAllDay: s.cfg.ShowAllDay,
		IncludeTimed:  true,
		HourStart:     s.cfg.DayStartHour,
		HourEnd:       s.cfg.DayEndHour,
	}

	if v := queryBool(q, "hide_recurring"); v != nil {
		filter.HideRecurring = *v
	}
	if v := queryBool(q, "all_day"); v != nil {
		filter.IncludeAllDay = *v
	}
	if v := queryBool(q, "timed"); v != nil {
		filter.IncludeTimed = *v
	}
	return filter
}

func queryBool(q map[string][]string, key string) *bool {
	vs, ok := q[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	switch vs[0] {
	case "1", "true", "yes":
		v := true
		return &v
	case "0", "false", "no":
		v := false
		return &v
	default:
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
