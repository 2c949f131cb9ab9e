package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nwtnni/hoplite-go/reduce"
)

func newTopologyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topology object_count max_chain_length",
		Short: "plan a tree-of-chains reduce topology and print its shape",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("object_count: %w", err)
			}
			k, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("max_chain_length: %w", err)
			}
			topo, err := reduce.Plan(n, k)
			if err != nil {
				return err
			}
			printTopology(cmd, topo)
			return nil
		},
	}
}

func printTopology(cmd *cobra.Command, topo *reduce.Topology) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "object_count=%d max_chain_length=%d tree_nodes=%d chains=%d\n",
		topo.ObjectCount, topo.MaxChainLength, len(topo.Tree), len(topo.Chains))
	for i, chain := range topo.Chains {
		fmt.Fprintf(out, "  chain[%d]: length=%d", i, len(chain))
		if len(chain) > 0 {
			fmt.Fprintf(out, " orders=[%d..%d]", chain[0].Order, chain[len(chain)-1].Order)
		}
		fmt.Fprintln(out)
	}
	if len(topo.Tree) > 0 {
		fmt.Fprintln(out, "  root order:", topo.Tree[0].Order, "subtree_size:", topo.Tree[0].SubtreeSize)
	}
}
