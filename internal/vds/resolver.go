package vds

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
)

// SourceFile is the subset of file behavior the resolver needs from an
// opened HDF5 file: existence checks and dataset lookup by path, plus
// disposal. The enclosing hdf5 package adapts its own *File to this.
type SourceFile interface {
	LinkExists(path string) bool
	Dataset(path string) (SourceDataset, error)
	Close() error
}

// SourceDataset is the subset of dataset behavior the resolver and
// stream need: its dimensions, so the engine can walk source
// coordinates. Actual element reads happen through the caller-supplied
// ReadVirtualFunc (see stream.go design note on the recursive callback),
// not through this interface, to avoid the vds package depending on the
// enclosing package's Dataset type.
type SourceDataset interface {
	Dims() ([]uint64, error)
}

// OpenFunc opens a source file read-only by filesystem path.
type OpenFunc func(path string) (SourceFile, error)

// ChunkCache is a private, per-resolved-source-dataset cache attached
// by the resolver when the caller's DatasetAccess doesn't already carry
// one, so chunk reuse is scoped to one stream instance. The engine
// treats it as opaque; only the source Dataset.read implementation
// interprets its contents.
type ChunkCache struct {
	entries map[string][]byte
}

// NewChunkCache returns an empty chunk cache.
func NewChunkCache() *ChunkCache {
	return &ChunkCache{entries: make(map[string][]byte)}
}

// Get returns the cached bytes for key, if present.
func (c *ChunkCache) Get(key string) ([]byte, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Put stores bytes under key.
func (c *ChunkCache) Put(key string, data []byte) {
	c.entries[key] = data
}

// EncodeFloat64Chunk serializes a run of float64 values for storage in
// a ChunkCache entry, little-endian. This is this package's own wire
// format for cached bytes, unrelated to any on-disk HDF5 encoding.
func EncodeFloat64Chunk(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64Chunk decodes bytes previously produced by
// EncodeFloat64Chunk into out. It reports false (rather than erroring)
// if the byte length doesn't match len(out), signaling a cache entry
// the caller should treat as a miss instead of trusting.
func DecodeFloat64Chunk(data []byte, out []float64) bool {
	if len(data) != 8*len(out) {
		return false
	}
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return true
}

// DatasetAccess carries per-read settings the resolver and the
// downstream read callback consult: an optional chunk cache and an
// optional external-file-prefix override.
type DatasetAccess struct {
	ChunkCache         *ChunkCache
	ExternalFilePrefix string
}

// DatasetInfo is a resolved source: the opened file, the looked-up
// dataset, the access struct attached to it, and whether this stream
// owns the file handle (opened it itself, as opposed to reusing the
// host file).
type DatasetInfo struct {
	File    SourceFile
	Dataset SourceDataset
	Access  *DatasetAccess
	Owned   bool
}

// Resolver locates and memoizes the source file/dataset behind each
// descriptor entry, honoring the path resolution order in spec §6:
// absolute path, then external_file_prefix, then the virtual file's own
// folder. Memoization is keyed by entry index (a stable identity),
// never by value equality on the entry's selections.
type Resolver struct {
	host   SourceFile
	folder string
	open   OpenFunc
	cache  map[int]*DatasetInfo
}

// NewResolver builds a Resolver for one virtual read stream. host is
// the already-open file containing the virtual dataset itself (used
// verbatim, never closed by the resolver); folder is that file's
// directory, the fallback resolution base.
func NewResolver(host SourceFile, folder string, open OpenFunc) *Resolver {
	return &Resolver{
		host:   host,
		folder: folder,
		open:   open,
		cache:  make(map[int]*DatasetInfo),
	}
}

// Resolve returns the DatasetInfo for entryIdx, resolving and memoizing
// it on first use. The bool result is false for any resolution miss
// (missing file, missing dataset): the caller must treat the region as
// uncovered and fall back to fill, never treating this as a hard error.
func (r *Resolver) Resolve(entryIdx int, entry *Entry, access *DatasetAccess) (*DatasetInfo, bool) {
	if info, ok := r.cache[entryIdx]; ok {
		return info, true
	}

	if entry.SourceFileName == "." {
		return r.resolveAgainst(entryIdx, r.host, false, entry, access)
	}

	path, ok := r.resolvePath(entry.SourceFileName, access)
	if !ok {
		return nil, false
	}

	file, err := r.open(path)
	if err != nil {
		return nil, false
	}

	return r.resolveAgainst(entryIdx, file, true, entry, access)
}

// resolveAgainst looks up entry.SourceDataset within an already-opened
// (or reused host) file. On a dataset miss it closes an owned file
// before returning, so a partial open never leaks a handle.
func (r *Resolver) resolveAgainst(entryIdx int, file SourceFile, owned bool, entry *Entry, access *DatasetAccess) (*DatasetInfo, bool) {
	if !file.LinkExists(entry.SourceDataset) {
		if owned {
			_ = file.Close()
		}
		return nil, false
	}

	ds, err := file.Dataset(entry.SourceDataset)
	if err != nil {
		if owned {
			_ = file.Close()
		}
		return nil, false
	}

	dsAccess := access
	if dsAccess == nil {
		dsAccess = &DatasetAccess{}
	}
	if dsAccess.ChunkCache == nil {
		clone := *dsAccess
		clone.ChunkCache = NewChunkCache()
		dsAccess = &clone
	}

	info := &DatasetInfo{File: file, Dataset: ds, Access: dsAccess, Owned: owned}
	r.cache[entryIdx] = info
	return info, true
}

// resolvePath implements the path resolution order: absolute path as
// given; external_file_prefix + name; the virtual file's folder + name.
// The first candidate that exists on disk wins.
func (r *Resolver) resolvePath(name string, access *DatasetAccess) (string, bool) {
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return name, true
		}
		return "", false
	}

	if access != nil && access.ExternalFilePrefix != "" {
		candidate := filepath.Join(access.ExternalFilePrefix, name)
		if fileExists(candidate) {
			return candidate, true
		}
	}

	candidate := filepath.Join(r.folder, name)
	if fileExists(candidate) {
		return candidate, true
	}

	return "", false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Close disposes every owned (non-host) resolved file, swallowing
// per-file close errors so that one bad source never prevents the rest
// from being released. Idempotent: a second Close on an empty cache is
// a no-op.
func (r *Resolver) Close() error {
	for idx, info := range r.cache {
		if info.Owned {
			_ = info.File.Close()
		}
		delete(r.cache, idx)
	}
	return nil
}
