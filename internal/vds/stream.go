package vds

import (
	"errors"
	"fmt"
	"math"
)

// Element is the set of numeric element types the virtual read stream
// can fill a destination buffer with. The enclosing hdf5 package
// instantiates Stream at float64, matching Dataset.Read's public type.
type Element interface {
	~float64 | ~float32 | ~int32 | ~int64
}

// DelegateSelection is the opaque iterator of (coords, element_count)
// steps a covered run is translated into before being handed to the
// external read callback. It walks a source hyperslab's compact
// enumeration starting at a given linear index, one run-length step at
// a time, in the scanner style used elsewhere in this codebase
// (Next/Err).
type DelegateSelection struct {
	sel        *Hyperslab
	idx        uint64
	left       uint64
	count      uint64
	coords     []uint64
	compactBuf []uint64
	err        error
}

func newDelegateSelection(sel *Hyperslab, start, run uint64, coordScratch, compactScratch []uint64) *DelegateSelection {
	return &DelegateSelection{
		sel:        sel,
		idx:        start,
		left:       run,
		coords:     coordScratch,
		compactBuf: compactScratch,
	}
}

// Next advances to the next step. It returns false once the run is
// exhausted or an error occurred; check Err() to distinguish the two.
func (d *DelegateSelection) Next() bool {
	if d.err != nil || d.left == 0 {
		return false
	}

	maxCount, err := d.sel.ToCoordinatesInto(d.idx, d.coords, d.compactBuf)
	if err != nil {
		d.err = err
		return false
	}

	step := maxCount
	if step == 0 || step > d.left {
		step = d.left
	}

	d.count = step
	d.idx += step
	d.left -= step
	return true
}

// Coords returns the source coordinates for the current step. Valid
// only after Next() returns true.
func (d *DelegateSelection) Coords() []uint64 {
	return d.coords
}

// Count returns the number of consecutive elements covered by the
// current step, starting at Coords() along the fastest-changing axis.
func (d *DelegateSelection) Count() uint64 {
	return d.count
}

// Err returns any error encountered while iterating.
func (d *DelegateSelection) Err() error {
	return d.err
}

// ReadVirtualFunc is the recursive read callback threaded explicitly
// through Stream construction (see design note on inversion of
// control): it fills dest with run elements read from source according
// to sel. source may itself be backed by a virtual dataset, in which
// case the enclosing package's implementation recurses by constructing
// another Stream — this package never calls back into itself or holds
// a global callback reference.
type ReadVirtualFunc[T Element] func(source SourceDataset, dest []T, sel *DelegateSelection, access *DatasetAccess) error

// Stream is the stateful virtual read engine. It is constructed once
// per logical read, is single-use beyond explicit SeekFromStart, and
// owns the resolver's cache of opened source files.
type Stream[T Element] struct {
	virtualDims []uint64
	entries     []Entry
	resolver    *Resolver
	readFn      ReadVirtualFunc[T]
	fillValue   *T
	access      *DatasetAccess
	position    uint64
	closed      bool

	// Preallocated scratch coordinate buffers, reused across every
	// iteration of Read's inner loop rather than allocated per step.
	vScratch []uint64
	sScratch []uint64
	cScratch []uint64
}

// NewStream constructs a virtual read stream over virtualDims and the
// descriptor's entries. host is the already-open file containing the
// virtual dataset (reused, never closed, for entries whose
// SourceFileName is "."); hostFolder is that file's directory, the base
// for resolving relative source file names; open opens a source file by
// filesystem path on demand. fillValue is nil to use T's zero value.
func NewStream[T Element](
	virtualDims []uint64,
	entries []Entry,
	host SourceFile,
	hostFolder string,
	open OpenFunc,
	readFn ReadVirtualFunc[T],
	fillValue *T,
	access *DatasetAccess,
) (*Stream[T], error) {
	if readFn == nil {
		return nil, errors.New("vds: ReadVirtual callback is required")
	}
	for _, d := range virtualDims {
		if d == Unlimited {
			return nil, ErrUnlimitedDimension
		}
	}

	return &Stream[T]{
		virtualDims: virtualDims,
		entries:     entries,
		resolver:    NewResolver(host, hostFolder, open),
		readFn:      readFn,
		fillValue:   fillValue,
		access:      access,
		vScratch:    make([]uint64, len(virtualDims)),
	}, nil
}

// Position returns the stream's current linear offset into the virtual
// enumeration.
func (s *Stream[T]) Position() uint64 {
	return s.position
}

// Read fills dest completely, advancing position by len(dest), or
// returns an error leaving position at the last successfully completed
// run boundary. There is no partial-fill contract: on error the failing
// run's part of dest may hold whatever the callback had copied before
// it failed, and the portion after that run is left untouched.
func (s *Stream[T]) Read(dest []T) error {
	if s.closed {
		return ErrStreamClosed
	}
	if len(dest) == 0 {
		return nil
	}

	n := uint64(len(dest))
	if s.position > math.MaxUint64-n {
		return fmt.Errorf("vds: position %d + length %d overflows uint64", s.position, n)
	}

	for len(dest) > 0 {
		LinearToCoordsInto(s.virtualDims, s.position, s.vScratch)

		chosenIdx := -1
		var chosen LinearResult
		haveGap := false
		var minGap uint64

		for i := range s.entries {
			res, err := s.entries[i].VirtualSelection.ToLinearIndex(s.vScratch)
			if err != nil {
				return err
			}
			if res.Success {
				chosenIdx = i
				chosen = res
				break
			}
			if res.MaxCount > 0 && (!haveGap || res.MaxCount < minGap) {
				minGap = res.MaxCount
				haveGap = true
			}
		}

		var run uint64
		switch {
		case chosenIdx >= 0:
			run = chosen.MaxCount
		case !haveGap:
			// No entry has any further block ahead: the rest of the
			// buffer is uncovered.
			run = uint64(len(dest))
		default:
			run = minGap
		}
		if run > uint64(len(dest)) {
			run = uint64(len(dest))
		}
		if run == 0 {
			// Defensive only: the selection algebra never legitimately
			// produces a zero-length run here (a covered match always
			// has MaxCount >= 1, and zero gaps are filtered above).
			run = 1
		}

		if chosenIdx >= 0 {
			handled, err := s.readCoveredRun(chosenIdx, chosen, dest[:run])
			if err != nil {
				return err
			}
			if !handled {
				s.fill(dest[:run])
			}
		} else {
			s.fill(dest[:run])
		}

		s.position += run
		dest = dest[run:]
	}

	return nil
}

// readCoveredRun resolves the chosen entry's source and delegates the
// run to the external read callback. The bool result is false only for
// a resolution miss (the caller then fills with the fill value
// instead); once a source is resolved, any error is returned and
// propagated unchanged by Read — it must never be masked as a miss.
func (s *Stream[T]) readCoveredRun(entryIdx int, chosen LinearResult, dest []T) (bool, error) {
	entry := &s.entries[entryIdx]

	info, ok := s.resolver.Resolve(entryIdx, entry, s.access)
	if !ok {
		return false, nil
	}

	sourceDims, err := info.Dataset.Dims()
	if err != nil {
		return false, fmt.Errorf("vds: reading source dataset dimensions: %w", err)
	}

	if len(s.sScratch) != len(sourceDims) {
		s.sScratch = make([]uint64, len(sourceDims))
	}
	if len(s.cScratch) < len(sourceDims) {
		s.cScratch = make([]uint64, len(sourceDims))
	}

	sel := newDelegateSelection(entry.SourceSelection, chosen.LinearIndex, uint64(len(dest)), s.sScratch, s.cScratch)

	if callErr := s.readFn(info.Dataset, dest, sel, info.Access); callErr != nil {
		return false, callErr
	}

	return true, nil
}

func (s *Stream[T]) fill(dest []T) {
	var v T
	if s.fillValue != nil {
		v = *s.fillValue
	}
	for i := range dest {
		dest[i] = v
	}
}

// SeekFromStart repositions the stream to an absolute linear offset.
func (s *Stream[T]) SeekFromStart(offset uint64) error {
	if s.closed {
		return ErrStreamClosed
	}
	s.position = offset
	return nil
}

// SeekOrigin distinguishes supported and unsupported Seek origins.
type SeekOrigin int

// Only SeekStart is supported; the other values exist so the usage
// error in spec §4.E/§7 ("other seek origins are unsupported") is
// observable rather than silently reinterpreted as seek-from-start.
const (
	SeekStart SeekOrigin = iota
	SeekCurrent
	SeekEnd
)

// Seek repositions the stream. Only SeekStart is supported; any other
// origin returns ErrUnsupportedSeek without modifying position.
func (s *Stream[T]) Seek(offset uint64, origin SeekOrigin) error {
	if origin != SeekStart {
		return ErrUnsupportedSeek
	}
	return s.SeekFromStart(offset)
}

// Close disposes every externally opened source file, never the host
// file, swallowing per-file close errors. Idempotent.
func (s *Stream[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resolver.Close()
}
