package mangashark

import (
	"context"
	"errors"
	"sync"

	"github.com/franciscasao/manga-shark-sub000/mangashark_errors"
	"github.com/franciscasao/manga-shark-sub000/utils"
)

// windowSection wraps one content unit with its runtime state. Owned
// exclusively by the WindowManager; the heights survive unload, the
// items slice is the heavy payload and does not.
type windowSection struct {
	unit    ContentUnit
	items   []SubItem
	heights map[int]float64
	state   LoadState
}

// SectionSnapshot is the read-only view handed to the presentation
// layer. No mutable reference to a section ever leaves the manager.
type SectionSnapshot struct {
	Unit      ContentUnit
	State     LoadState
	ItemCount int
}

// TransitionFunc observes per-section load-state changes; the excluded
// presentation layer uses it to animate inserts and refresh cells.
type TransitionFunc func(unitID string, from, to LoadState)

// WindowManager presents an effectively infinite, memory-bounded
// sequence of content units. Sections within the load radius of the
// active index stay materialized, everything else keeps only metadata
// and cached layout heights, so reloading a section causes no layout
// shift.
type WindowManager struct {
	lock     sync.Mutex
	sections []*windowSection
	active   int

	source   ContentSource
	payloads PayloadCache
	log      utils.Logger
	opts     Options

	deb utils.Debouncer

	endForward  bool
	endBackward bool

	onTransition TransitionFunc
}

func NewWindowManager(source ContentSource, payloads PayloadCache, log utils.Logger, opts Options) *WindowManager {
	opts.SetDefaults()
	return &WindowManager{
		source:   source,
		payloads: payloads,
		log:      log,
		opts:     opts,
	}
}

func (m *WindowManager) SetTransitionHook(f TransitionFunc) {
	m.lock.Lock()
	m.onTransition = f
	m.lock.Unlock()
}

// SetInitialUnit seeds the window with exactly one loaded section and
// makes it active.
func (m *WindowManager) SetInitialUnit(unit ContentUnit, items []SubItem) {
	m.lock.Lock()
	sec := newSection(unit, items)
	m.sections = []*windowSection{sec}
	m.active = 0
	m.endForward = false
	m.endBackward = false
	m.lock.Unlock()
	m.fireTransition(unit.ID, NotLoaded, sec.state)
	m.refreshLoadedGauge()
}

func newSection(unit ContentUnit, items []SubItem) *windowSection {
	state := Loaded
	if items == nil {
		state = NotLoaded
	}
	return &windowSection{
		unit:    unit,
		items:   items,
		heights: make(map[int]float64),
		state:   state,
	}
}

// AppendUnit adds a section at the end of the window and returns its
// index for the caller to animate the insertion. Passing nil items
// defers materialization to the next window recomputation.
func (m *WindowManager) AppendUnit(unit ContentUnit, items []SubItem) int {
	m.lock.Lock()
	sec := newSection(unit, items)
	m.sections = append(m.sections, sec)
	idx := len(m.sections) - 1
	m.endForward = false
	m.lock.Unlock()
	m.fireTransition(unit.ID, NotLoaded, sec.state)
	m.refreshLoadedGauge()
	return idx
}

// PrependUnit inserts a section at index 0 and shifts the active index
// so it keeps referencing the same logical section. The caller must
// compensate the viewport scroll offset by the new section's height
// (SectionHeight once measured) so the insertion is visually
// transparent.
func (m *WindowManager) PrependUnit(unit ContentUnit, items []SubItem) {
	m.lock.Lock()
	sec := newSection(unit, items)
	m.sections = append([]*windowSection{sec}, m.sections...)
	m.active++
	m.endBackward = false
	m.lock.Unlock()
	m.fireTransition(unit.ID, NotLoaded, sec.state)
	m.refreshLoadedGauge()
}

func (m *WindowManager) ContainsUnit(unitID string) bool {
	_, ok := m.IndexOf(unitID)
	return ok
}

func (m *WindowManager) IndexOf(unitID string) (int, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for i, sec := range m.sections {
		if sec.unit.ID == unitID {
			return i, true
		}
	}
	return 0, false
}

func (m *WindowManager) ActiveIndex() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.active
}

func (m *WindowManager) Sections() []SectionSnapshot {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := make([]SectionSnapshot, len(m.sections))
	for i, sec := range m.sections {
		out[i] = SectionSnapshot{
			Unit:      sec.unit,
			State:     sec.state,
			ItemCount: len(sec.items),
		}
	}
	return out
}

// UpdateWindow moves the active index and schedules a debounced window
// recomputation. Called continuously during scroll.
func (m *WindowManager) UpdateWindow(activeIndex int) {
	m.setActive(activeIndex)
	m.deb.Schedule(m.opts.WindowDebounce, func() {
		m.recompute(context.Background())
	})
}

// UpdateWindowImmediate recomputes synchronously. Used at scroll-settle
// boundaries where a stale debounced result would be visibly wrong.
func (m *WindowManager) UpdateWindowImmediate(ctx context.Context, activeIndex int) {
	m.setActive(activeIndex)
	m.deb.Cancel()
	m.recompute(ctx)
}

func (m *WindowManager) setActive(activeIndex int) {
	m.lock.Lock()
	if activeIndex < 0 {
		activeIndex = 0
	}
	if n := len(m.sections); n > 0 && activeIndex >= n {
		activeIndex = n - 1
	}
	m.active = activeIndex
	m.lock.Unlock()
}

type sectionLoad struct {
	index int
	unit  ContentUnit
	prev  LoadState
}

// recompute applies the keep-loaded range [active-radius, active+radius]
// clamped to bounds: sections inside it are materialized, loaded
// sections outside it release their payload. Heights are untouched.
// Running it twice with the same active index is a no-op; the
// per-section state guards against double fetches and double evicts.
func (m *WindowManager) recompute(ctx context.Context) {
	m.lock.Lock()
	lo := m.active - m.opts.WindowRadius
	hi := m.active + m.opts.WindowRadius
	if lo < 0 {
		lo = 0
	}
	if hi > len(m.sections)-1 {
		hi = len(m.sections) - 1
	}

	var loads []sectionLoad
	for i, sec := range m.sections {
		inRange := i >= lo && i <= hi
		switch {
		case inRange && (sec.state == Unloaded || sec.state == NotLoaded):
			loads = append(loads, sectionLoad{index: i, unit: sec.unit, prev: sec.state})
			sec.state = Loading
		case !inRange && sec.state == Loaded:
			m.unloadLocked(sec)
		}
	}
	m.lock.Unlock()

	for _, load := range loads {
		m.materialize(ctx, load)
	}
	m.refreshLoadedGauge()
}

// unloadLocked releases the heavy payload: pages are evicted from the
// payload cache by key, never from durable storage. The section object
// and its height cache stay.
func (m *WindowManager) unloadLocked(sec *windowSection) {
	m.evictItems(sec.items)
	sec.items = nil
	sec.state = Unloaded
	WindowTransitions.WithLabelValues(Loaded.String(), Unloaded.String()).Inc()
	if m.onTransition != nil {
		go m.onTransition(sec.unit.ID, Loaded, Unloaded)
	}
}

// materialize re-fetches the pages of one section. A failure is
// transient: the previous state is restored and the next recomputation
// retries. It is not a sequence boundary. The keep range is re-derived
// after the fetch: a section that fell out of range while its fetch was
// in flight discards the items instead of completing to Loaded, so the
// window never holds more than 2r+1 materialized sections.
func (m *WindowManager) materialize(ctx context.Context, load sectionLoad) {
	fctx, cancel := context.WithTimeout(ctx, m.opts.FetchTimeout)
	items, err := m.source.FetchItems(fctx, load.unit.ID)
	cancel()

	m.lock.Lock()
	idx, sec := m.sectionByID(load.unit.ID)
	if sec == nil || sec.state != Loading {
		m.lock.Unlock()
		return
	}
	if err != nil {
		sec.state = load.prev
		m.lock.Unlock()
		WindowReloadFailures.Inc()
		m.log.WarnCtx(ctx, "section reload failed", "unit", load.unit.ID, "err", err)
		return
	}
	if idx < m.active-m.opts.WindowRadius || idx > m.active+m.opts.WindowRadius {
		sec.state = load.prev
		m.lock.Unlock()
		m.evictItems(items)
		return
	}
	sec.items = items
	sec.state = Loaded
	m.lock.Unlock()
	WindowTransitions.WithLabelValues(load.prev.String(), Loaded.String()).Inc()
	m.fireTransition(load.unit.ID, Loading, Loaded)
}

func (m *WindowManager) sectionByID(unitID string) (int, *windowSection) {
	for i, sec := range m.sections {
		if sec.unit.ID == unitID {
			return i, sec
		}
	}
	return 0, nil
}

func (m *WindowManager) evictItems(items []SubItem) {
	if m.payloads == nil || len(items) == 0 {
		return
	}
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	m.payloads.Evict(keys)
}

// CachePageHeight records the measured layout height of one page.
// First write wins; heights survive unload so reloading a section
// causes no layout shift.
func (m *WindowManager) CachePageHeight(height float64, itemIndex, sectionIndex int) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if sectionIndex < 0 || sectionIndex >= len(m.sections) {
		return mangashark_errors.ErrSectionUnknown
	}
	heights := m.sections[sectionIndex].heights
	if _, ok := heights[itemIndex]; !ok {
		heights[itemIndex] = height
	}
	return nil
}

func (m *WindowManager) CachedPageHeight(itemIndex, sectionIndex int) (float64, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if sectionIndex < 0 || sectionIndex >= len(m.sections) {
		return 0, false
	}
	h, ok := m.sections[sectionIndex].heights[itemIndex]
	return h, ok
}

// SectionHeight sums the cached page heights of one section. The
// caller uses it to compensate the scroll offset after PrependUnit.
func (m *WindowManager) SectionHeight(sectionIndex int) float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	if sectionIndex < 0 || sectionIndex >= len(m.sections) {
		return 0
	}
	total := 0.0
	for _, h := range m.sections[sectionIndex].heights {
		total += h
	}
	return total
}

// InvalidateHeights purges every cached height. Heights depend on the
// available width, so a rotation invalidates all of them at once.
func (m *WindowManager) InvalidateHeights() {
	m.lock.Lock()
	for _, sec := range m.sections {
		sec.heights = make(map[int]float64)
	}
	m.lock.Unlock()
}

// MarkBoundary records a terminal sequence boundary. Transient fetch
// failures never call this; they simply leave the window ungrown.
func (m *WindowManager) MarkBoundary(dir Direction) {
	m.lock.Lock()
	if dir == Forward {
		m.endForward = true
	} else {
		m.endBackward = true
	}
	m.lock.Unlock()
}

func (m *WindowManager) ReachedEnd(dir Direction) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if dir == Forward {
		return m.endForward
	}
	return m.endBackward
}

func (m *WindowManager) LoadedCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	count := 0
	for _, sec := range m.sections {
		if sec.state == Loaded {
			count++
		}
	}
	return count
}

// Invalidate cancels the pending recomputation. Called on teardown.
func (m *WindowManager) Invalidate() {
	m.deb.Cancel()
}

func (m *WindowManager) fireTransition(unitID string, from, to LoadState) {
	m.lock.Lock()
	hook := m.onTransition
	m.lock.Unlock()
	if hook != nil && from != to {
		hook(unitID, from, to)
	}
}

func (m *WindowManager) refreshLoadedGauge() {
	WindowLoadedSections.Set(float64(m.LoadedCount()))
}

// Grow fetches the unit adjacent to the window's edge and inserts it.
// The manager itself stays fetch-free; this helper is the one layer
// that talks to the source when the user nears an edge. A genuine
// sequence end marks the boundary; a transient failure leaves the
// window untouched and may be retried.
func Grow(ctx context.Context, m *WindowManager, src ContentSource, dir Direction) (int, error) {
	snaps := m.Sections()
	if len(snaps) == 0 {
		return 0, mangashark_errors.ErrUnitUnknown
	}
	var ref string
	if dir == Forward {
		ref = snaps[len(snaps)-1].Unit.ID
	} else {
		ref = snaps[0].Unit.ID
	}
	if m.ReachedEnd(dir) {
		return 0, mangashark_errors.ErrSequenceBoundary
	}
	unit, items, err := src.FetchAdjacent(ctx, ref, dir)
	if errors.Is(err, mangashark_errors.ErrSequenceBoundary) {
		m.MarkBoundary(dir)
		return 0, err
	}
	if err != nil {
		return 0, err
	}
	if idx, ok := m.IndexOf(unit.ID); ok {
		return idx, nil
	}
	if dir == Forward {
		return m.AppendUnit(unit, items), nil
	}
	m.PrependUnit(unit, items)
	return 0, nil
}
