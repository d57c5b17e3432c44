// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lf-edge/s16d/internal/adminapi"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <path>",
		Short: "Show one unit's graph and machine state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			st, err := newClient().Status(cmd.Context(), path)
			if err != nil {
				return classify(path, err)
			}
			printStatusTable(cmd, []adminapi.StatusView{st})
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every vertex and unit in the running graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := newClient().List(cmd.Context())
			if err != nil {
				return classify("", err)
			}
			printStatusTable(cmd, views)
			return nil
		},
	}
}

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the dependency graph in Graphviz DOT form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dot, err := newClient().GraphDOT(cmd.Context())
			if err != nil {
				return classify("", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dot)
			return nil
		},
	}
}

func printStatusTable(cmd *cobra.Command, views []adminapi.StatusView) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tVARIANT\tSTATE\tUNIT STATE\tTARGET\tENABLED")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%v\n",
			v.Vertex.Path, v.Vertex.Variant, v.Vertex.State, v.Unit.State, v.Unit.Target, v.Vertex.IsEnabled)
	}
	tw.Flush()
}
