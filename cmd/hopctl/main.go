// Command hopctl is the operator-facing CLI: plan a reduce topology without
// touching the network, or act as a short-lived node putting/getting one
// object against a running directory.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "hopctl",
		Short: "operate a hoplite-go fabric",
	}
	root.AddCommand(newTopologyCmd())
	root.AddCommand(newPutCmd())
	root.AddCommand(newGetCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
