package vds

import "errors"

// Sentinel errors for the configuration and usage error kinds. Checked
// with errors.Is at package boundaries.
var (
	// ErrUnlimitedDimension is returned at construction when a virtual
	// dimension is the HDF5 "unlimited" sentinel. VDS over an unlimited
	// dimension is an explicit non-goal; this is never relaxed later.
	ErrUnlimitedDimension = errors.New("vds: unlimited virtual dimension is not supported")

	// ErrMalformedDescriptor is returned when a mapping blob cannot be
	// decoded into a well-formed ordered entry list.
	ErrMalformedDescriptor = errors.New("vds: malformed mapping descriptor")

	// ErrUnsupportedSeek is returned by Seek for any origin other than
	// the start of the virtual enumeration.
	ErrUnsupportedSeek = errors.New("vds: only seek-from-start is supported")

	// ErrStreamClosed is returned by Read/Seek after Close.
	ErrStreamClosed = errors.New("vds: stream is closed")
)
