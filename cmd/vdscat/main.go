// Command vdscat inspects and reads HDF5 Virtual Datasets, the way
// dump_hdf5 inspects raw file bytes.
package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("vdscat: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vdscat",
	Short: "Inspect and read HDF5 Virtual Datasets",
	Long:  `vdscat inspects a virtual dataset's source mapping table and reads its resolved values.`,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(readCmd)
}
