package hdf5

import (
	"fmt"

	"github.com/scigolib/h5vds/internal/core"
	"github.com/scigolib/h5vds/internal/utils"
	"github.com/scigolib/h5vds/internal/vds"
)

// VirtualReadOption configures a virtual dataset read, following the
// functional options pattern used elsewhere in this package (see
// FileWriterOption in rebalancing_options.go).
type VirtualReadOption func(*virtualReadConfig)

type virtualReadConfig struct {
	fillValue          *float64
	externalFilePrefix string
}

// WithVirtualFillValue sets the value written into regions of the
// virtual dataset that no source entry covers. Without this option,
// uncovered regions read as 0.
func WithVirtualFillValue(v float64) VirtualReadOption {
	return func(c *virtualReadConfig) {
		c.fillValue = &v
	}
}

// WithExternalFilePrefix overrides the directory tried before the
// virtual file's own folder when resolving a source file's relative
// name. Resolution order: an absolute name as given, then this prefix
// joined with the name, then the virtual file's folder joined with it.
func WithExternalFilePrefix(prefix string) VirtualReadOption {
	return func(c *virtualReadConfig) {
		c.externalFilePrefix = prefix
	}
}

// VirtualStream exposes the virtual read engine's Read/Seek/Close
// contract directly, mirroring the scanner-style API ChunkIterator
// already provides for chunked datasets.
type VirtualStream struct {
	inner *vds.Stream[float64]
}

// Read fills dest completely from the virtual dataset, advancing the
// stream's position by len(dest).
func (vs *VirtualStream) Read(dest []float64) error {
	return vs.inner.Read(dest)
}

// SeekFromStart repositions the stream to an absolute linear offset
// into the virtual dataset's row-major enumeration.
func (vs *VirtualStream) SeekFromStart(offset uint64) error {
	return vs.inner.SeekFromStart(offset)
}

// Position returns the stream's current linear offset.
func (vs *VirtualStream) Position() uint64 {
	return vs.inner.Position()
}

// Close disposes every externally opened source file. It never closes
// the host file and is safe to call more than once.
func (vs *VirtualStream) Close() error {
	return vs.inner.Close()
}

// layoutAndDataspace reads the dataset's own object header and parses
// its layout and dataspace messages, the minimal metadata every
// virtual-read entry point needs before constructing the engine.
func (d *Dataset) layoutAndDataspace() (*core.DataLayoutMessage, *core.DataspaceMessage, error) {
	header, err := core.ReadObjectHeader(d.file.osFile, d.address, d.file.sb)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read object header: %w", err)
	}

	var layoutMsg, dataspaceMsg *core.HeaderMessage
	for _, msg := range header.Messages {
		switch msg.Type {
		case core.MsgDataLayout:
			layoutMsg = msg
		case core.MsgDataspace:
			dataspaceMsg = msg
		}
	}
	if layoutMsg == nil {
		return nil, nil, fmt.Errorf("data layout message not found")
	}
	if dataspaceMsg == nil {
		return nil, nil, fmt.Errorf("dataspace message not found")
	}

	layout, err := core.ParseDataLayoutMessage(layoutMsg.Data, d.file.sb)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	dataspace, err := core.ParseDataspaceMessage(dataspaceMsg.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse dataspace: %w", err)
	}

	return layout, dataspace, nil
}

// Dims returns the dataset's dimensions.
func (d *Dataset) Dims() ([]uint64, error) {
	_, dataspace, err := d.layoutAndDataspaceOrNil()
	if err != nil {
		return nil, err
	}
	return dataspace.Dimensions, nil
}

// layoutAndDataspaceOrNil is a thin wrapper so Dims() doesn't need to
// discard the layout return value explicitly at every call site.
func (d *Dataset) layoutAndDataspaceOrNil() (*core.DataLayoutMessage, *core.DataspaceMessage, error) {
	return d.layoutAndDataspace()
}

// IsVirtual reports whether this dataset uses the HDF5 Virtual Dataset
// layout (HDF5 1.10+).
func (d *Dataset) IsVirtual() bool {
	layout, _, err := d.layoutAndDataspace()
	if err != nil {
		return false
	}
	return layout.IsVirtual()
}

// VirtualMapping returns the parsed source mapping table for a virtual
// dataset, for callers that want to inspect the mapping itself (e.g.
// vdscat inspect) rather than read resolved values.
func (d *Dataset) VirtualMapping() (*vds.Descriptor, error) {
	layout, _, err := d.layoutAndDataspace()
	if err != nil {
		return nil, err
	}
	if !layout.IsVirtual() {
		return nil, fmt.Errorf("dataset %q is not a virtual dataset", d.name)
	}
	return d.mappingDescriptor(layout)
}

// mappingDescriptor reads and parses the global-heap-resident mapping
// list for a virtual dataset's layout message.
func (d *Dataset) mappingDescriptor(layout *core.DataLayoutMessage) (*vds.Descriptor, error) {
	collection, err := core.ReadGlobalHeapCollection(d.file.osFile, layout.VirtualHeapAddress, int(d.file.sb.OffsetSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read virtual mapping heap: %w", err)
	}

	obj, err := collection.GetObject(layout.VirtualHeapIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to locate virtual mapping object: %w", err)
	}

	descriptor, err := vds.ParseMappingBlob(obj.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse virtual mapping list: %w", err)
	}
	return descriptor, nil
}

// newVirtualStream builds the VDS engine for this dataset: reads its
// own layout/mapping descriptor, then delegates to
// newVirtualStreamForDescriptor.
func (d *Dataset) newVirtualStream(opts ...VirtualReadOption) (*VirtualStream, *vds.Descriptor, error) {
	layout, _, err := d.layoutAndDataspace()
	if err != nil {
		return nil, nil, err
	}
	if !layout.IsVirtual() {
		return nil, nil, fmt.Errorf("dataset %q is not a virtual dataset", d.name)
	}

	descriptor, err := d.mappingDescriptor(layout)
	if err != nil {
		return nil, nil, err
	}

	stream, err := d.newVirtualStreamForDescriptor(descriptor, opts...)
	if err != nil {
		return nil, nil, err
	}
	return stream, descriptor, nil
}

// newVirtualStreamForDescriptor builds the VDS engine from an already
// parsed descriptor, without touching the dataset's own object header
// or layout message. Split out from newVirtualStream so tests can drive
// the engine against a hand-built descriptor (e.g. pointing at a real
// on-disk source dataset) without needing on-disk Virtual-layout bytes.
func (d *Dataset) newVirtualStreamForDescriptor(descriptor *vds.Descriptor, opts ...VirtualReadOption) (*VirtualStream, error) {
	cfg := &virtualReadConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var access *vds.DatasetAccess
	if cfg.externalFilePrefix != "" {
		access = &vds.DatasetAccess{ExternalFilePrefix: cfg.externalFilePrefix}
	}

	host := &fileAdapter{file: d.file}
	folder := d.file.FolderPath()

	stream, err := vds.NewStream[float64](
		descriptor.VirtualDims,
		descriptor.Entries,
		host,
		folder,
		openSourceFile,
		virtualReadCallback,
		cfg.fillValue,
		access,
	)
	if err != nil {
		return nil, utils.WrapError("virtual stream construction failed", err)
	}

	return &VirtualStream{inner: stream}, nil
}

// VirtualStream returns the virtual dataset's read engine directly,
// for callers that want to stream a large virtual dataset rather than
// materialize it fully with ReadVirtual.
func (d *Dataset) VirtualStream(opts ...VirtualReadOption) (*VirtualStream, error) {
	vs, _, err := d.newVirtualStream(opts...)
	return vs, err
}

// ReadVirtual reads an entire virtual dataset and returns it as a flat,
// row-major []float64, the VDS analogue of Dataset.Read.
func (d *Dataset) ReadVirtual(opts ...VirtualReadOption) ([]float64, error) {
	vs, descriptor, err := d.newVirtualStream(opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = vs.Close() }()

	total := uint64(1)
	for _, dim := range descriptor.VirtualDims {
		total, err = utils.SafeMultiply(total, dim)
		if err != nil {
			return nil, utils.WrapError("virtual dataset size overflow", err)
		}
	}

	buf := make([]float64, total)
	if err := vs.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readHyperslabVirtual serves a hyperslab selection against a virtual
// dataset by seeking the engine to each selected run's linear offset
// and reading that run directly, rather than materializing the whole
// virtual dataset first.
func (d *Dataset) readHyperslabVirtual(
	selection *HyperslabSelection,
	dataspace *core.DataspaceMessage,
	_ *core.DataLayoutMessage,
) (interface{}, error) {
	vs, descriptor, err := d.newVirtualStream()
	if err != nil {
		return nil, err
	}
	defer func() { _ = vs.Close() }()

	return readHyperslabVirtualWithStream(vs, descriptor, selection, dataspace)
}

// readHyperslabVirtualWithStream contains the disk-independent selection-
// walking logic shared by readHyperslabVirtual: given an already-built
// VirtualStream and descriptor, it seeks to each selected run's linear
// offset within the virtual dataset's row-major enumeration and reads
// that run directly. Split out so tests can exercise it against a
// hand-built descriptor without requiring on-disk Virtual-layout bytes.
func readHyperslabVirtualWithStream(
	vs *VirtualStream,
	descriptor *vds.Descriptor,
	selection *HyperslabSelection,
	dataspace *core.DataspaceMessage,
) (interface{}, error) {
	sel, err := vds.NewHyperslab(selection.Start, selection.Stride, selection.Count, selection.Block)
	if err != nil {
		return nil, fmt.Errorf("invalid hyperslab selection: %w", err)
	}

	total := calculateHyperslabOutputSize(selection)
	out := make([]float64, total)

	virtualDims := descriptor.VirtualDims
	if len(virtualDims) == 0 {
		virtualDims = dataspace.Dimensions
	}

	var written, idx uint64
	for written < total {
		coords, maxCount, err := sel.ToCoordinates(idx)
		if err != nil {
			return nil, err
		}

		run := maxCount
		if run == 0 || run > total-written {
			run = total - written
		}

		linearPos, err := vds.CoordsToLinear(virtualDims, coords)
		if err != nil {
			return nil, err
		}

		if err := vs.SeekFromStart(linearPos); err != nil {
			return nil, err
		}
		if err := vs.Read(out[written : written+run]); err != nil {
			return nil, err
		}

		idx += run
		written += run
	}

	return out, nil
}
