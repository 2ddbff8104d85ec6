package vds

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMappingBlobRoundTrip(t *testing.T) {
	virtualSel, err := NewHyperslab([]uint64{0, 0}, nil, []uint64{2, 3}, nil)
	require.NoError(t, err)
	sourceSel, err := NewHyperslab([]uint64{0}, nil, []uint64{6}, nil)
	require.NoError(t, err)

	desc, err := NewDescriptor([]uint64{2, 3}, []Entry{
		{
			SourceFileName:   "source_a.h5",
			SourceDataset:    "/data",
			VirtualSelection: virtualSel,
			SourceSelection:  sourceSel,
		},
		{
			SourceFileName:   ".",
			SourceDataset:    "/other",
			VirtualSelection: virtualSel,
			SourceSelection:  sourceSel,
		},
	})
	require.NoError(t, err)

	blob, err := EncodeMappingBlob(desc)
	require.NoError(t, err)

	decoded, err := ParseMappingBlob(blob)
	require.NoError(t, err)

	require.Equal(t, desc.VirtualDims, decoded.VirtualDims)
	require.Len(t, decoded.Entries, 2)
	require.Equal(t, "source_a.h5", decoded.Entries[0].SourceFileName)
	require.Equal(t, "/data", decoded.Entries[0].SourceDataset)
	require.Equal(t, virtualSel.Start, decoded.Entries[0].VirtualSelection.Start)
	require.Equal(t, virtualSel.Count, decoded.Entries[0].VirtualSelection.Count)
	require.Equal(t, ".", decoded.Entries[1].SourceFileName)
}

func TestNewDescriptorRejectsUnlimitedDimension(t *testing.T) {
	_, err := NewDescriptor([]uint64{Unlimited, 3}, nil)
	require.ErrorIs(t, err, ErrUnlimitedDimension)
}

func TestParseMappingBlobRejectsTruncatedData(t *testing.T) {
	_, err := ParseMappingBlob([]byte{1, 0, 0})
	require.Error(t, err)
}

func TestParseMappingBlobRejectsBadVersion(t *testing.T) {
	_, err := ParseMappingBlob([]byte{99})
	require.ErrorIs(t, err, ErrMalformedDescriptor)
}
