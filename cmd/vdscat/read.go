package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	hdf5 "github.com/scigolib/h5vds"
)

var (
	readFillValue   float64
	readExternalDir string
	readLimit       int
)

func init() {
	readCmd.Flags().Float64Var(&readFillValue, "fill", 0, "Value to print for regions no source entry covers")
	readCmd.Flags().StringVar(&readExternalDir, "external-dir", "", "Directory tried before the virtual file's own folder when resolving source files")
	readCmd.Flags().IntVar(&readLimit, "limit", 20, "Maximum number of resolved values to print (0 = no limit)")
}

var readCmd = &cobra.Command{
	Use:   "read <file.h5> <dataset-path>",
	Short: "Read and print a virtual dataset's resolved values",
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

		opts := []hdf5.VirtualReadOption{hdf5.WithVirtualFillValue(readFillValue)}
		if readExternalDir != "" {
			opts = append(opts, hdf5.WithExternalFilePrefix(readExternalDir))
		}

		values, err := ds.ReadVirtual(opts...)
		if err != nil {
			return fmt.Errorf("reading virtual dataset %s: %w", path, err)
		}

		log.WithFields(log.Fields{
			"file":     filename,
			"dataset":  path,
			"elements": len(values),
		}).Info("read virtual dataset")

		n := len(values)
		if readLimit > 0 && readLimit < n {
			n = readLimit
		}
		for i := 0; i < n; i++ {
			fmt.Printf("[%d] %v\n", i, values[i])
		}
		if n < len(values) {
			fmt.Printf("... %d more elements\n", len(values)-n)
		}
		return nil
	},
}
