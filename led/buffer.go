package led

import (
	"errors"
	"fmt"
	"sync"
)

// channels per LED on the wire, RGBW
const Channels = 4

var (
	ErrCapacityExceeded = errors.New("strip capacity exceeded")
	ErrNotFound         = errors.New("no cell at that position or unit")
)

// Cell tracks colour and state for one strip position. Position and unit
// name are fixed at creation; colour and state are mutated by the router
// and read by the renderer, guarded so both always change as one unit.
type Cell struct {
	position int
	unit     string

	// Guards colour and state
	mu    sync.Mutex
	color Color
	state ServiceState
}

func newCell(position int, unit string) *Cell {
	return &Cell{
		position: position,
		unit:     unit,
		state:    StateUnknown,
	}
}

func (c *Cell) Position() int {
	return c.position
}

func (c *Cell) Unit() string {
	return c.unit
}

// Guarded by c.mu
func (c *Cell) Color() Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color
}

// Guarded by c.mu
func (c *Cell) State() ServiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetColor changes only the displayed colour.
func (c *Cell) SetColor(color Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.color = color
}

// SetState updates the tracked state and, when a colour is supplied,
// the colour in the same critical section. A concurrent snapshot never
// sees the new state with the old colour or the other way round.
func (c *Cell) SetState(state ServiceState, color *Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	if color != nil {
		c.color = *color
	}
}

// snapshot returns colour and state as one consistent pair.
func (c *Cell) snapshot() (Color, ServiceState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color, c.state
}

// Buffer is the authoritative "what the strip should show" state: an
// ordered set of cells, capacity fixed to the physical strip length.
// Cells are appended once at startup and never removed.
type Buffer struct {
	capacity int

	// Guards the cells slice itself; per-cell data has its own lock.
	mu    sync.RWMutex
	cells []*Cell
}

// NewBuffer creates an empty buffer for a strip of the given length.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		capacity: capacity,
		cells:    make([]*Cell, 0, capacity),
	}
}

func (b *Buffer) Capacity() int {
	return b.capacity
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.cells)
}

// AddCell appends a cell for unit at the next free position and returns
// it. Fails with ErrCapacityExceeded when the strip is full; the buffer
// is left unchanged in that case.
func (b *Buffer) AddCell(unit string) (*Cell, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.cells) >= b.capacity {
		return nil, fmt.Errorf("cannot add %q, strip only has %d LEDs: %w",
			unit, b.capacity, ErrCapacityExceeded)
	}
	cell := newCell(len(b.cells), unit)
	b.cells = append(b.cells, cell)
	return cell, nil
}

// Get returns the cell at position.
func (b *Buffer) Get(position int) (*Cell, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if position < 0 || position >= len(b.cells) {
		return nil, fmt.Errorf("position %d: %w", position, ErrNotFound)
	}
	return b.cells[position], nil
}

// GetByUnit returns the cell tracking unit. Linear scan, the strip is
// short.
func (b *Buffer) GetByUnit(unit string) (*Cell, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.cells {
		if c.unit == unit {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unit %q: %w", unit, ErrNotFound)
}

// Cells returns the current cells in position order.
func (b *Buffer) Cells() []*Cell {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ret := make([]*Cell, len(b.cells))
	copy(ret, b.cells)
	return ret
}

// SnapshotBytes serialises the buffer into one transmission frame of
// stripLength*4 bytes, R,G,B,W per position, zero filled where no cell
// exists. Each cell is read consistently, but the frame as a whole is a
// best-effort view across cells.
func (b *Buffer) SnapshotBytes(stripLength int) []byte {
	b.mu.RLock()
	cells := b.cells
	b.mu.RUnlock()

	frame := make([]byte, stripLength*Channels)
	for _, c := range cells {
		if c.position >= stripLength {
			continue
		}
		color, _ := c.snapshot()
		raw := color.Bytes()
		copy(frame[c.position*Channels:], raw[:])
	}
	return frame
}

// SetAll sets every cell to the given colour, used for the loading
// pattern before the first real event arrives.
func (b *Buffer) SetAll(color Color) {
	for _, c := range b.Cells() {
		c.SetColor(color)
	}
}

// ResetAll turns every cell off and forgets its state. Idempotent; used
// at startup and during the shutdown flush.
func (b *Buffer) ResetAll() {
	off := Color{}
	for _, c := range b.Cells() {
		c.SetState(StateUnknown, &off)
	}
}
