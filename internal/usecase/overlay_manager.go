package usecase

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	"SessionOverlay/internal/overlay"
	"SessionOverlay/internal/services/fiborange"
	"SessionOverlay/internal/services/signals"
	"SessionOverlay/internal/services/zones"
	applogger "SessionOverlay/pkg/logger"
)

// OverlaySurface is the chart the manager installs primitives on.
type OverlaySurface interface {
	Attach(p overlay.Primitive) error
	Detach(p overlay.Primitive) error
	VisibleRange() (models.TimeRange, bool)
}

// State of the overlay lifecycle.
type State int

const (
	StateIdle State = iota
	StateClearing
	StateResolving
	StateInstalling
	StateActive
)

func (s State) String() string {
	switch s {
	case StateClearing:
		return "clearing"
	case StateResolving:
		return "resolving"
	case StateInstalling:
		return "installing"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

// Generation summarises the overlays derived from one batch.
type Generation struct {
	ID        int       `json:"id"`
	Markers   int       `json:"markers"`
	Skipped   int       `json:"skipped"`
	Zones     int       `json:"zones"`
	Reference string    `json:"reference,omitempty"`
	Up        int       `json:"up"`
	Down      int       `json:"down"`
	Overlays  []string  `json:"overlays"`
	AppliedAt time.Time `json:"applied_at"`
}

// OverlayManager owns the active generation. It is not safe for concurrent
// use; callers serialise batches on one goroutine.
type OverlayManager struct {
	surface  OverlaySurface
	resolver *zones.Resolver
	calc     *fiborange.Calculator
	acc      *signals.Accumulator
	log      *applogger.Logger
	metrics  domrepo.Metrics

	state   State
	active  []overlay.Primitive
	current Generation
	seq     int
	now     func() time.Time
}

func NewOverlayManager(surface OverlaySurface, resolver *zones.Resolver, calc *fiborange.Calculator, log *applogger.Logger, metrics domrepo.Metrics) *OverlayManager {
	return &OverlayManager{
		surface:  surface,
		resolver: resolver,
		calc:     calc,
		acc:      signals.NewAccumulator(),
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (m *OverlayManager) State() State { return m.state }

// Current returns the summary of the live generation.
func (m *OverlayManager) Current() Generation { return m.current }

// Active returns the installed primitives in install order.
func (m *OverlayManager) Active() []overlay.Primitive {
	return slices.Clone(m.active)
}

// ApplyRaw decodes a wire batch element by element and applies what parsed.
func (m *OverlayManager) ApplyRaw(raw json.RawMessage) (Generation, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		m.metrics.RecordError("batch_decode")
		return m.current, fmt.Errorf("decode marker batch: %w", err)
	}
	markers, skipped := models.DecodeMarkers(elems, m.resolver.Location())
	for _, err := range skipped {
		m.log.Warn("Skipping malformed marker", applogger.Error(err))
		m.metrics.RecordSkipped("malformed")
	}
	gen := m.Apply(markers)
	gen.Skipped = len(skipped)
	m.current.Skipped = gen.Skipped
	return gen, nil
}

// Apply replaces the live generation with the one derived from markers.
// Everything from the previous generation is detached before anything new
// is attached.
func (m *OverlayManager) Apply(markers []models.Marker) Generation {
	start := m.now()

	m.state = StateClearing
	detached := m.clear()

	m.state = StateResolving
	prims, gen := m.resolve(markers)

	m.state = StateInstalling
	for _, p := range prims {
		if err := m.surface.Attach(p); err != nil {
			m.log.Warn("Failed to attach overlay", applogger.String("overlay", p.Name()), applogger.Error(err))
			m.metrics.RecordError("overlay_attach")
			continue
		}
		m.active = append(m.active, p)
		gen.Overlays = append(gen.Overlays, p.Name())
	}

	m.state = StateActive
	m.seq++
	gen.ID = m.seq
	gen.AppliedAt = start
	m.current = gen

	m.metrics.RecordBatch("overlay_manager", len(markers))
	m.metrics.RecordOverlays(len(m.active), detached)
	m.metrics.RecordLatency("overlay_apply_seconds", m.now().Sub(start).Seconds())
	m.log.Debug("Overlay generation installed",
		applogger.Int("generation", gen.ID),
		applogger.Int("zones", gen.Zones),
		applogger.Int("overlays", len(m.active)),
		applogger.Int("detached", detached),
	)
	return gen
}

// Clear detaches the live generation, used when the view is torn down.
func (m *OverlayManager) Clear() {
	m.state = StateClearing
	detached := m.clear()
	m.current = Generation{}
	m.state = StateIdle
	m.metrics.RecordOverlays(0, detached)
}

// clear is best effort: a failed detach is logged and the rest still go.
func (m *OverlayManager) clear() int {
	n := 0
	for _, p := range m.active {
		if err := m.surface.Detach(p); err != nil {
			m.log.Warn("Failed to detach overlay", applogger.String("overlay", p.Name()), applogger.Error(err))
			m.metrics.RecordError("overlay_detach")
			continue
		}
		n++
	}
	m.active = m.active[:0]
	return n
}

// resolve builds the primitives of a batch in install order: zones, the
// channel, then the point series.
func (m *OverlayManager) resolve(markers []models.Marker) ([]overlay.Primitive, Generation) {
	gen := Generation{Markers: len(markers), Overlays: []string{}}

	var visible *models.TimeRange
	if vr, ok := m.surface.VisibleRange(); ok {
		visible = &vr
	}

	var prims []overlay.Primitive
	for _, z := range m.resolver.Resolve(markers, visible) {
		prims = append(prims, overlay.NewZoneOverlay(z))
		gen.Zones++
	}

	// last reference in (date, time) order wins
	walk := slices.Clone(markers)
	slices.SortStableFunc(walk, models.CompareWallClock)
	var ref *models.Marker
	for i := range walk {
		if walk[i].Kind == models.KindReference {
			ref = &walk[i]
		}
	}
	if ref != nil {
		ch := m.calc.Channel(*ref)
		prims = append(prims, overlay.NewChannelOverlay(ch))
		gen.Reference = ch.Reference.String()
	}

	m.acc.Reset()
	for _, mk := range markers {
		m.acc.Add(mk)
	}
	for _, dir := range []models.Direction{models.DirectionUp, models.DirectionDown} {
		pts := m.acc.Series(dir)
		if len(pts) == 0 {
			continue
		}
		prims = append(prims, overlay.NewPointSeriesOverlay(dir, pts))
	}
	gen.Up = m.acc.Len(models.DirectionUp)
	gen.Down = m.acc.Len(models.DirectionDown)
	return prims, gen
}
