package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nwtnni/hoplite-go/cmn"
)

// nodeFlags is the common set of flags put/get need to stand up a
// short-lived node: its own address and fixed ports, and the directory it
// registers against. Every field mirrors a cmn.Config.Net knob exactly,
// since hopctl is itself just another fabric participant for the duration
// of one command.
type nodeFlags struct {
	address     string
	controlPort int
	bulkPort    int
	notifyPort  int
	directory   string
}

func addNodeFlags(cmd *cobra.Command) *nodeFlags {
	f := &nodeFlags{}
	def := cmn.Default()
	cmd.Flags().StringVar(&f.address, "address", string(def.Net.Address), "this node's own address")
	cmd.Flags().IntVar(&f.controlPort, "control-port", def.Net.ControlPort, "control-plane port")
	cmd.Flags().IntVar(&f.bulkPort, "bulk-port", def.Net.BulkPort, "bulk-transport port")
	cmd.Flags().IntVar(&f.notifyPort, "notify-port", def.Net.NotifyPort, "notification-listen port")
	cmd.Flags().StringVar(&f.directory, "directory", "", "base URL of the directory server (required)")
	return f
}

func (f *nodeFlags) config() *cmn.Config {
	cfg := cmn.Default()
	cfg.Net.Address = cmn.Address(f.address)
	cfg.Net.ControlPort = f.controlPort
	cfg.Net.BulkPort = f.bulkPort
	cfg.Net.NotifyPort = f.notifyPort
	cfg.Net.DirectoryURL = f.directory
	cfg.Control.BusyRetryInterval = cmn.DurationJSON(50 * time.Millisecond)
	return cfg
}
