// Package mappicker implements the interactive coordinate picker: the
// operator moves a point by dragging, clicking, searching or asking for the
// device position, and the picker keeps a short address name and a long
// address description in sync with that point.
//
// Address lookups run in the background. Every lookup carries a sequence
// number per source (reverse lookups, searches) and a response is applied
// only if it is still the latest issued for its source, so a slow response
// can never overwrite the result of a newer interaction.
package mappicker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"task-wizard/internal/geocode"
	"task-wizard/internal/mapview"
	"task-wizard/internal/taskform"
)

var (
	// ErrClosed is returned by every operation on a confirmed or cancelled picker.
	ErrClosed = errors.New("map picker is closed")
	// ErrLocationUnavailable means the device refused or cannot report its position.
	ErrLocationUnavailable = errors.New("device location unavailable")
)

// Locator provides the device's current position.
type Locator interface {
	CurrentPosition(ctx context.Context) (taskform.Coordinate, error)
}

// Selection is what a confirmed picker hands back to its location form.
type Selection struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Name    string  `json:"name"`
	Details string  `json:"details"`
}

// State is a read-only snapshot for rendering.
type State struct {
	Open      bool                `json:"open"`
	Point     taskform.Coordinate `json:"point"`
	Name      string              `json:"addressName"`
	Details   string              `json:"addressDetails"`
	Searching bool                `json:"searching"`
	Pending   int                 `json:"pending"`
	View      mapview.View        `json:"view"`
}

// Option configures a Picker.
type Option func(*Picker)

// WithLogger sets the logger used for degraded lookups.
func WithLogger(l *slog.Logger) Option {
	return func(p *Picker) { p.logger = l }
}

// WithAddress seeds the displayed address, e.g. from the committed location.
func WithAddress(name, details string) Option {
	return func(p *Picker) {
		p.name = name
		p.details = details
	}
}

// WithContext sets the context background lookups run under.
func WithContext(ctx context.Context) Option {
	return func(p *Picker) { p.ctx = ctx }
}

// Picker is one open coordinate picking interaction.
type Picker struct {
	mu       sync.Mutex
	resolver geocode.Resolver
	logger   *slog.Logger
	ctx      context.Context
	surface  *mapview.Surface

	open      bool
	point     taskform.Coordinate
	zoom      int
	name      string
	details   string
	searching int
	pending   int

	reverseSeq uint64
	searchSeq  uint64

	// settled is signalled on p.mu whenever pending drops to zero.
	settled *sync.Cond
}

// Open starts an interaction. With an initial coordinate the picker shows
// it and immediately resolves its address; without one it starts at the
// default center.
func Open(initial *taskform.Coordinate, resolver geocode.Resolver, opts ...Option) *Picker {
	p := &Picker{
		resolver: resolver,
		logger:   slog.Default(),
		ctx:      context.Background(),
		surface:  mapview.NewSurface(),
		open:     true,
		point:    taskform.Coordinate{Lat: mapview.DefaultLat, Lng: mapview.DefaultLng},
		zoom:     mapview.PickerZoom,
	}
	p.settled = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	if initial != nil {
		p.point = *initial
		p.mu.Lock()
		p.reverseLocked(p.point)
		p.mu.Unlock()
	}
	return p
}

// Drag moves the point to where the marker was dropped.
func (p *Picker) Drag(lat, lng float64) error {
	return p.moveTo(taskform.Coordinate{Lat: lat, Lng: lng}, 0)
}

// Click moves the point to a clicked position on the surface.
func (p *Picker) Click(lat, lng float64) error {
	return p.moveTo(taskform.Coordinate{Lat: lat, Lng: lng}, 0)
}

func (p *Picker) moveTo(c taskform.Coordinate, zoom int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return ErrClosed
	}
	p.point = c
	if zoom > 0 {
		p.zoom = zoom
	}
	p.reverseLocked(c)
	return nil
}

// reverseLocked issues a background reverse lookup for c. p.mu must be held.
func (p *Picker) reverseLocked(c taskform.Coordinate) {
	p.reverseSeq++
	seq := p.reverseSeq
	p.pending++

	go func() {
		addr, err := p.resolver.Reverse(p.ctx, c.Lat, c.Lng)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.pending--
		if p.pending == 0 {
			p.settled.Broadcast()
		}

		if !p.open || seq != p.reverseSeq {
			return
		}
		if err != nil {
			p.logger.Warn("reverse geocode failed",
				slog.Float64("lat", c.Lat),
				slog.Float64("lng", c.Lng),
				slog.String("error", err.Error()))
			p.name = geocode.FormatCoordinate(c.Lat, c.Lng)
			p.details = ""
			return
		}
		p.name = addr.Name
		p.details = addr.Details
	}()
}

// Search moves the point to the best match for query. A blank query, a
// query without results and a failed lookup all leave the point unchanged.
// Searches are not serialised; if a newer search was issued while this one
// was in flight, this result is dropped.
func (p *Picker) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return p.checkOpen()
	}

	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return ErrClosed
	}
	p.searchSeq++
	seq := p.searchSeq
	p.searching++
	p.mu.Unlock()

	coord, found, err := p.resolver.Forward(ctx, query)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.searching--

	if !p.open {
		return ErrClosed
	}
	if err != nil {
		p.logger.Warn("search failed", slog.String("query", query), slog.String("error", err.Error()))
		return nil
	}
	if !found || seq != p.searchSeq {
		return nil
	}
	p.point = coord
	p.zoom = mapview.FocusZoom
	p.reverseLocked(coord)
	return nil
}

// LocateMe moves the point to the device position. A refused or missing
// device location is silently ignored.
func (p *Picker) LocateMe(ctx context.Context, locator Locator) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if locator == nil {
		return nil
	}
	pos, err := locator.CurrentPosition(ctx)
	if err != nil {
		p.logger.Debug("device location unavailable", slog.String("error", err.Error()))
		return nil
	}
	return p.moveTo(pos, mapview.FocusZoom)
}

// Confirm closes the picker and returns the current point and address.
func (p *Picker) Confirm() (Selection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return Selection{}, ErrClosed
	}
	p.closeLocked()
	return Selection{
		Lat:     p.point.Lat,
		Lng:     p.point.Lng,
		Name:    p.name,
		Details: p.details,
	}, nil
}

// Cancel closes the picker without a selection.
func (p *Picker) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return ErrClosed
	}
	p.closeLocked()
	return nil
}

// Close releases the picker. It is safe to call more than once and after
// Confirm or Cancel. In-flight lookups are left to finish and are ignored.
func (p *Picker) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Picker) closeLocked() {
	p.open = false
	p.surface.Release()
}

// Resized forwards a container resize from the hosting UI.
func (p *Picker) Resized() uint64 {
	return p.surface.Resized()
}

// Wait blocks until no background lookup is in flight. Lookups issued
// while waiting extend the wait. It is safe to call from any goroutine,
// concurrently with every other operation.
func (p *Picker) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.settled.Wait()
	}
}

// Snapshot returns the current state.
func (p *Picker) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := mapview.PickerView(p.point, p.zoom)
	view.MeasureEpoch = p.surface.Epoch()
	return State{
		Open:      p.open,
		Point:     p.point,
		Name:      p.name,
		Details:   p.details,
		Searching: p.searching > 0,
		Pending:   p.pending,
		View:      view,
	}
}

func (p *Picker) checkOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrClosed
	}
	return nil
}
