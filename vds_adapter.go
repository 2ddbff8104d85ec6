package hdf5

import (
	"fmt"

	"github.com/scigolib/h5vds/internal/vds"
)

// fileAdapter satisfies vds.SourceFile on top of the package's own File,
// keeping internal/vds ignorant of object-header parsing, symbol
// tables, and every other concern outside its scope.
type fileAdapter struct {
	file *File
}

func (a *fileAdapter) LinkExists(path string) bool {
	return a.file.LinkExists(path)
}

func (a *fileAdapter) Dataset(path string) (vds.SourceDataset, error) {
	ds, err := a.file.Dataset(path)
	if err != nil {
		return nil, err
	}
	return &datasetAdapter{ds: ds}, nil
}

func (a *fileAdapter) Close() error {
	return a.file.Close()
}

// openSourceFile is the vds.OpenFunc implementation: it opens a fresh
// *File by filesystem path and wraps it. Every file the resolver opens
// this way is owned by the stream and closed on Stream.Close.
func openSourceFile(path string) (vds.SourceFile, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &fileAdapter{file: f}, nil
}

// datasetAdapter satisfies vds.SourceDataset on top of the package's
// own Dataset.
type datasetAdapter struct {
	ds *Dataset
}

func (a *datasetAdapter) Dims() ([]uint64, error) {
	return a.ds.Dims()
}

// virtualChunkCacheKey identifies a run within one source dataset for
// ChunkCache purposes: the dataset's path plus its starting coordinates,
// which is exactly what varies between otherwise-identical runs against
// the same source.
func virtualChunkCacheKey(datasetName string, coords []uint64) string {
	return fmt.Sprintf("%s:%v", datasetName, coords)
}

// virtualReadCallback is the vds.ReadVirtualFunc[float64] implementation:
// it walks the DelegateSelection's (coords, count) steps and reads each
// run from the resolved source dataset via Dataset.ReadSlice, consulting
// access's ChunkCache first so a run already read once against this
// source (within this stream's lifetime) is served from memory instead
// of re-reading and re-decoding the underlying chunk. If source is
// itself virtual, ReadSlice dispatches back into the virtual read path,
// so VDS-over-VDS chains recurse naturally through the Go call stack
// rather than a global callback.
func virtualReadCallback(source vds.SourceDataset, dest []float64, sel *vds.DelegateSelection, access *vds.DatasetAccess) error {
	da, ok := source.(*datasetAdapter)
	if !ok {
		return fmt.Errorf("vds: unexpected source dataset type %T", source)
	}

	out := dest
	for sel.Next() {
		coords := sel.Coords()
		count := sel.Count()

		var cacheKey string
		if access != nil && access.ChunkCache != nil {
			cacheKey = virtualChunkCacheKey(da.ds.Name(), coords)
			if cached, ok := access.ChunkCache.Get(cacheKey); ok && vds.DecodeFloat64Chunk(cached, out[:count]) {
				out = out[count:]
				continue
			}
		}

		start := make([]uint64, len(coords))
		copy(start, coords)
		runCount := make([]uint64, len(coords))
		for i := range runCount {
			runCount[i] = 1
		}
		runCount[len(runCount)-1] = count

		values, err := da.ds.ReadSlice(start, runCount)
		if err != nil {
			return fmt.Errorf("vds: reading source dataset %q: %w", da.ds.Name(), err)
		}

		fvals, ok := values.([]float64)
		if !ok {
			return fmt.Errorf("vds: source dataset %q read returned %T, want []float64", da.ds.Name(), values)
		}
		if uint64(len(fvals)) != count {
			return fmt.Errorf("vds: source dataset %q read returned %d elements, want %d",
				da.ds.Name(), len(fvals), count)
		}

		if cacheKey != "" {
			access.ChunkCache.Put(cacheKey, vds.EncodeFloat64Chunk(fvals))
		}

		copy(out[:count], fvals)
		out = out[count:]
	}

	return sel.Err()
}
