package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	hdf5 "github.com/scigolib/h5vds"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.h5> <dataset-path>",
	Short: "Print a virtual dataset's source mapping table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename, path := args[0], args[1]

		f, err := hdf5.Open(filename)
		if err != nil {
			return fmt.Errorf("opening %s: %w", filename, err)
		}
		defer f.Close()

		ds, err := f.Dataset(path)
		if err != nil {
			return fmt.Errorf("opening dataset %s: %w", path, err)
		}

		descriptor, err := ds.VirtualMapping()
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"file":    filename,
			"dataset": path,
			"dims":    descriptor.VirtualDims,
			"entries": len(descriptor.Entries),
		}).Info("virtual dataset mapping")

		for i, e := range descriptor.Entries {
			fmt.Printf("entry %d: source=%q dataset=%q virtual_start=%v source_start=%v\n",
				i, e.SourceFileName, e.SourceDataset, e.VirtualSelection.Start, e.SourceSelection.Start)
		}
		return nil
	},
}
