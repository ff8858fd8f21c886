// Package cell implements the data-cell model and registry: the
// ordered, append-only chain of host-resident memory cells a Lasso
// host exposes to a remote client (spec.md 4.3).
package cell

import (
	"log/slog"

	lasso "github.com/sleven79/lasso-host"
	"github.com/sleven79/lasso-host/pkg/celltype"
)

// OnChange is invoked when a client attempts to write a cell's value.
// It receives the raw decoded bytes (host byte order, already
// length-checked against the cell's footprint) and returns whether the
// write should be committed to memory. A nil hook always accepts.
type OnChange func(c *DataCell, newValue []byte) bool

// DataCell is one registered cell.
type DataCell struct {
	Type celltype.Type
	// Count is the array length (1 for scalars).
	Count uint32
	// Name and Unit are ASCII identifiers exposed via GetDataCellParams.
	Name string
	Unit string
	// OnChange is the optional accept-or-reject hook for client writes.
	OnChange OnChange
	// UpdateRateReload/UpdateRateRunning implement the dynamic-mask
	// sampler (spec.md 4.5): Running is decremented each strobe tick;
	// when it reaches zero the cell is sampled and Running reloads
	// from Reload. A Reload of 0 or 1 samples every tick.
	UpdateRateReload  uint16
	UpdateRateRunning uint16

	// mem is the cell's backing storage: Count*ByteWidth bytes (or
	// Count bytes of capacity for a char/string cell), host byte
	// order. A nil mem means the cell's data comes from an external
	// strobe source; OnChange remains the only observable write effect.
	mem []byte

	// next chains cells in registration order, mirroring spec.md's
	// DataCell.next attribute; Registry also keeps a slice for O(1)
	// indexed seeks, but the chain is preserved since it is named as
	// part of the data model.
	next *DataCell
}

// Next returns the next cell in registration order, or nil at the end
// of the chain.
func (c *DataCell) Next() *DataCell { return c.next }

// ByteWidth is a convenience accessor over the packed Type field.
func (c *DataCell) ByteWidth() uint8 { return c.Type.ByteWidth() }

// Footprint returns Count*ByteWidth, the number of bytes this cell
// contributes to the strobe when enabled.
func (c *DataCell) Footprint() uint32 {
	return c.Count * uint32(c.Type.ByteWidth())
}

// Mem returns the cell's backing storage. External-source cells
// return nil.
func (c *DataCell) Mem() []byte { return c.mem }

// ExternalSource reports whether this cell's data is supplied by an
// external strobe source rather than host memory.
func (c *DataCell) ExternalSource() bool { return c.mem == nil }

// Write applies a decoded value to the cell, running OnChange first.
// It is a no-op (success, no error) if the hook rejects the write -
// spec.md 4.6: "if the hook returns false, the memory is not updated
// (but no error is returned)". For char/string cells value is
// length-limited to Count bytes and zero-padded.
func (c *DataCell) Write(value []byte) error {
	if !c.Type.Writeable() {
		return lasso.ErrPermissionDenied
	}
	if c.ExternalSource() {
		if c.OnChange != nil {
			c.OnChange(c, value)
		}
		return nil
	}
	if c.Type.Kind() == celltype.KindChar {
		padded := make([]byte, c.Count)
		copy(padded, value)
		value = padded
	} else if uint32(len(value)) != c.Footprint() {
		return lasso.ErrIllegalArgument
	}
	if c.OnChange != nil && !c.OnChange(c, value) {
		return nil
	}
	copy(c.mem, value)
	return nil
}

// Registry is the ordered, append-only set of all registered cells
// (spec.md: "the data space").
type Registry struct {
	logger *slog.Logger
	cells  []*DataCell
	head   *DataCell
	tail   *DataCell
}

// New creates an empty registry. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger.With("component", "cell-registry")}
}

// MaxCells is the protocol limit on cell_count (spec.md 4.3: "≤255").
const MaxCells = 255

// Register appends a new cell to the data space in registration
// order. mem must be non-nil and exactly count*byteWidth bytes unless
// allowExternalSource is true (mem may then be nil, and the cell's
// data is understood to arrive from an external strobe source).
func (r *Registry) Register(
	kind celltype.Kind,
	byteWidth uint8,
	count uint32,
	mem []byte,
	name string,
	unit string,
	writeable bool,
	permanent bool,
	enabledInitially bool,
	onChange OnChange,
	updateRateReload uint16,
	allowExternalSource bool,
) (*DataCell, error) {
	if len(r.cells) >= MaxCells {
		return nil, lasso.ErrNoSpace
	}
	if mem == nil && !allowExternalSource {
		return nil, lasso.ErrIllegalArgument
	}
	if mem != nil && uint32(len(mem)) != count*uint32(byteWidth) {
		return nil, lasso.ErrIllegalArgument
	}

	ty := celltype.New(kind, byteWidth, enabledInitially, writeable, permanent)
	runningReload := updateRateReload
	if runningReload == 0 {
		// a Reload of 0 means "every tick" (spec.md 4.5), same as 1 -
		// start the running counter there too so the first decrement in
		// Sampler.Sample doesn't underflow a uint16 before the reload==0
		// fixup ever gets a chance to run.
		runningReload = 1
	}
	c := &DataCell{
		Type:              ty,
		Count:             count,
		Name:              name,
		Unit:              unit,
		OnChange:          onChange,
		UpdateRateReload:  updateRateReload,
		UpdateRateRunning: runningReload,
		mem:               mem,
	}
	if r.tail != nil {
		r.tail.next = c
	} else {
		r.head = c
	}
	r.tail = c
	r.cells = append(r.cells, c)
	r.logger.Debug("registered data cell",
		"index", len(r.cells)-1,
		"name", name,
		"kind", kind.String(),
		"byteWidth", byteWidth,
		"count", count,
		"enabled", c.Type.Enabled(),
	)
	return c, nil
}

// Count returns the number of registered cells.
func (r *Registry) Count() int { return len(r.cells) }

// At returns the cell at a 0-based registration index.
func (r *Registry) At(index int) (*DataCell, error) {
	if index < 0 || index >= len(r.cells) {
		return nil, lasso.ErrBadAddress
	}
	return r.cells[index], nil
}

// Head returns the first cell in the ordered chain, or nil if empty.
func (r *Registry) Head() *DataCell { return r.head }

// Seek returns the cell at index and the byte offset into the strobe
// payload it would occupy, computed as the sum of Footprint() over
// all enabled cells preceding it (spec.md 4.3 seek_cell).
func (r *Registry) Seek(index int) (*DataCell, uint32, error) {
	target, err := r.At(index)
	if err != nil {
		return nil, 0, err
	}
	var offset uint32
	for i := 0; i < index; i++ {
		if r.cells[i].Type.Enabled() {
			offset += r.cells[i].Footprint()
		}
	}
	return target, offset, nil
}

// EnabledBytesTotal returns the current strobe footprint: the sum of
// Footprint() over all enabled cells (spec.md 4.3 and the "strobe size
// law" in spec.md 8).
func (r *Registry) EnabledBytesTotal() uint32 {
	var total uint32
	for _, c := range r.cells {
		if c.Type.Enabled() {
			total += c.Footprint()
		}
	}
	return total
}

// WorstCaseBytesTotal returns the sum of Footprint() over every
// registered cell regardless of enabled state - the value the memory
// planner uses to size the strobe buffer.
func (r *Registry) WorstCaseBytesTotal() uint32 {
	var total uint32
	for _, c := range r.cells {
		total += c.Footprint()
	}
	return total
}

// SetEnabled toggles a cell's strobe membership. Permanent cells
// always remain enabled (celltype.Type.WithEnabled already enforces
// this).
func (r *Registry) SetEnabled(index int, enabled bool) error {
	c, err := r.At(index)
	if err != nil {
		return err
	}
	if c.Type.Permanent() && !enabled {
		return lasso.ErrPermissionDenied
	}
	c.Type = c.Type.WithEnabled(enabled)
	return nil
}

// Each walks the chain in registration order, calling fn for every
// cell. It stops early if fn returns false.
func (r *Registry) Each(fn func(index int, c *DataCell) bool) {
	for i, c := range r.cells {
		if !fn(i, c) {
			return
		}
	}
}
