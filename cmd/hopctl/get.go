package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nwtnni/hoplite-go/cluster/memblobstore"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/hopnode"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get object_id_hex output_file",
		Short: "resolve an object through the directory and pull it to a local file",
		Args:  cobra.ExactArgs(2),
	}
	flags := addNodeFlags(cmd)
	var timeout time.Duration
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the object to become available")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if flags.directory == "" {
			return fmt.Errorf("--directory is required")
		}
		id, err := cmn.ParseObjectIDHex(args[0])
		if err != nil {
			return err
		}

		node := hopnode.New(flags.config(), memblobstore.New(), flags.directory)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := node.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			node.Stop(stopCtx)
		}()

		handle, err := node.Get(ctx, id, flags.controlPort)
		if err != nil {
			return err
		}
		r, err := handle.Reader()
		if err != nil {
			return err
		}
		defer r.Close()

		out, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, r)
		return err
	}
	return cmd
}
