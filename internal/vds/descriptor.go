package vds

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Unlimited is the HDF5 "unlimited dimension" sentinel (H5S_UNLIMITED).
// A virtual dimension equal to this value is rejected at construction.
const Unlimited uint64 = math.MaxUint64

// mappingBlobVersion is this package's own wire-format version for the
// encoded mapping list. It does not correspond to any libhdf5 on-disk
// format: decoding the real VDS mapping list is an external
// collaborator's concern (see package docs); this is a documented,
// self-consistent, round-trip-tested substitute.
const mappingBlobVersion uint8 = 1

// Entry is one row of the VDS mapping table: a source dataset
// contributing part of the virtual address space.
type Entry struct {
	// SourceFileName is "." for a reference back into the virtual
	// file itself, or a (possibly relative) filesystem name otherwise.
	SourceFileName string
	// SourceDataset is the dataset's absolute path inside that file.
	SourceDataset string
	// VirtualSelection is this entry's hyperslab over the virtual
	// dataset's dimensions.
	VirtualSelection *Hyperslab
	// SourceSelection is this entry's hyperslab over the source
	// dataset's (unknown at descriptor-parse time) dimensions.
	SourceSelection *Hyperslab
}

// Descriptor is the in-memory, ordered mapping table for one virtual
// dataset. Entry order is significant (see the tie-break rule) and is
// never reordered by the engine.
type Descriptor struct {
	VirtualDims []uint64
	Entries     []Entry
}

// NewDescriptor validates virtualDims (rejecting any unlimited
// dimension) and constructs a Descriptor preserving entries in order.
func NewDescriptor(virtualDims []uint64, entries []Entry) (*Descriptor, error) {
	for _, d := range virtualDims {
		if d == Unlimited {
			return nil, ErrUnlimitedDimension
		}
	}
	return &Descriptor{VirtualDims: virtualDims, Entries: entries}, nil
}

// EncodeMappingBlob serializes a Descriptor into this package's mapping
// blob format. Layout:
//
//	version(1) rank(2) dims(rank*8) entryCount(4)
//	per entry:
//	  sourceFileNameLen(2) sourceFileName
//	  sourceDatasetLen(2)  sourceDataset
//	  virtual selection:  start/stride/count/block, each rank*8 bytes
//	  source selection:   srcRank(2) start/stride/count/block, each srcRank*8 bytes
//
// All multi-byte integers are little-endian.
func EncodeMappingBlob(desc *Descriptor) ([]byte, error) {
	rank := len(desc.VirtualDims)
	if rank > math.MaxUint16 {
		return nil, fmt.Errorf("vds: rank %d too large to encode", rank)
	}
	if len(desc.Entries) > math.MaxUint32 {
		return nil, fmt.Errorf("vds: entry count %d too large to encode", len(desc.Entries))
	}

	buf := []byte{mappingBlobVersion}
	buf = appendUint16(buf, uint16(rank))
	for _, d := range desc.VirtualDims {
		buf = appendUint64(buf, d)
	}
	buf = appendUint32(buf, uint32(len(desc.Entries)))

	for _, e := range desc.Entries {
		buf = appendString(buf, e.SourceFileName)
		buf = appendString(buf, e.SourceDataset)

		if len(e.VirtualSelection.Start) != rank {
			return nil, fmt.Errorf("vds: entry virtual selection rank %d != descriptor rank %d",
				len(e.VirtualSelection.Start), rank)
		}
		buf = appendHyperslab(buf, e.VirtualSelection)

		srcRank := len(e.SourceSelection.Start)
		if srcRank > math.MaxUint16 {
			return nil, fmt.Errorf("vds: source rank %d too large to encode", srcRank)
		}
		buf = appendUint16(buf, uint16(srcRank))
		buf = appendHyperslab(buf, e.SourceSelection)
	}

	return buf, nil
}

// ParseMappingBlob decodes bytes produced by EncodeMappingBlob back into
// an ordered Descriptor. The blob is located by an HDF5 global-heap
// reference (address + index) elsewhere; this function only decodes the
// bytes once retrieved.
func ParseMappingBlob(data []byte) (*Descriptor, error) {
	r := &blobReader{data: data}

	version, err := r.readUint8()
	if err != nil || version != mappingBlobVersion {
		return nil, ErrMalformedDescriptor
	}

	rank, err := r.readUint16()
	if err != nil {
		return nil, ErrMalformedDescriptor
	}

	dims := make([]uint64, rank)
	for i := range dims {
		v, err := r.readUint64()
		if err != nil {
			return nil, ErrMalformedDescriptor
		}
		dims[i] = v
	}

	entryCount, err := r.readUint32()
	if err != nil {
		return nil, ErrMalformedDescriptor
	}

	// Every entry needs at least 6 bytes (two string-length prefixes plus
	// the source selection's rank field), so an entryCount claiming more
	// entries than the remaining bytes could possibly hold is malformed,
	// not merely large; reject it before allocating rather than trusting
	// a corrupt or adversarial blob's count field.
	const minBytesPerEntry = 6
	if entryCount > uint32(len(r.data)-r.pos)/minBytesPerEntry {
		return nil, ErrMalformedDescriptor
	}

	entries := make([]Entry, entryCount)
	for i := range entries {
		sourceFileName, err := r.readString()
		if err != nil {
			return nil, ErrMalformedDescriptor
		}
		sourceDataset, err := r.readString()
		if err != nil {
			return nil, ErrMalformedDescriptor
		}

		virtualSel, err := r.readHyperslab(int(rank))
		if err != nil {
			return nil, ErrMalformedDescriptor
		}

		srcRank, err := r.readUint16()
		if err != nil {
			return nil, ErrMalformedDescriptor
		}
		sourceSel, err := r.readHyperslab(int(srcRank))
		if err != nil {
			return nil, ErrMalformedDescriptor
		}

		entries[i] = Entry{
			SourceFileName:   sourceFileName,
			SourceDataset:    sourceDataset,
			VirtualSelection: virtualSel,
			SourceSelection:  sourceSel,
		}
	}

	return NewDescriptor(dims, entries)
}

// blobReader is a minimal, bounds-checked cursor over mapping blob
// bytes, in the same spirit as the teacher's other fixed-layout parsers
// (e.g. core.ParseDataLayoutMessage) but scoped to this package's own
// format.
type blobReader struct {
	data []byte
	pos  int
}

func (r *blobReader) readUint8() (uint8, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("vds: blob truncated at offset %d", r.pos)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *blobReader) readUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("vds: blob truncated at offset %d", r.pos)
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *blobReader) readUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("vds: blob truncated at offset %d", r.pos)
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *blobReader) readUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("vds: blob truncated at offset %d", r.pos)
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *blobReader) readString() (string, error) {
	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.data) {
		return "", fmt.Errorf("vds: blob truncated at offset %d", r.pos)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *blobReader) readUint64Vector(n int) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := r.readUint64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *blobReader) readHyperslab(rank int) (*Hyperslab, error) {
	start, err := r.readUint64Vector(rank)
	if err != nil {
		return nil, err
	}
	stride, err := r.readUint64Vector(rank)
	if err != nil {
		return nil, err
	}
	count, err := r.readUint64Vector(rank)
	if err != nil {
		return nil, err
	}
	block, err := r.readUint64Vector(rank)
	if err != nil {
		return nil, err
	}
	return &Hyperslab{Start: start, Stride: stride, Count: count, Block: block}, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendHyperslab(buf []byte, h *Hyperslab) []byte {
	for _, v := range h.Start {
		buf = appendUint64(buf, v)
	}
	for _, v := range h.Stride {
		buf = appendUint64(buf, v)
	}
	for _, v := range h.Count {
		buf = appendUint64(buf, v)
	}
	for _, v := range h.Block {
		buf = appendUint64(buf, v)
	}
	return buf
}
