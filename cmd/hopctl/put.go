package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nwtnni/hoplite-go/cluster/memblobstore"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/hopnode"
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put file",
		Short: "publish a file's bytes under a fresh object id and serve pulls until interrupted",
		Args:  cobra.ExactArgs(1),
	}
	flags := addNodeFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if flags.directory == "" {
			return fmt.Errorf("--directory is required")
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			return err
		}

		node := hopnode.New(flags.config(), memblobstore.New(), flags.directory)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := node.Start(ctx); err != nil {
			return err
		}

		id := cmn.NewObjectID()
		if err := node.Put(ctx, id, stat.Size(), f); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.Hex())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		fmt.Fprintln(cmd.ErrOrStderr(), "serving pulls; press ctrl-c to stop")
		<-sigCh

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		return node.Stop(stopCtx)
	}
	return cmd
}
