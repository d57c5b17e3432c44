// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <path>",
		Short: "Queue an A_ENABLE admin request for a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			resp, err := newClient().Enable(cmd.Context(), path)
			if err != nil {
				return classify(path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued A_ENABLE for %s\n", resp.Path)
			return nil
		},
	}
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <path>",
		Short: "Queue an A_DISABLE admin request for a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			resp, err := newClient().Disable(cmd.Context(), path)
			if err != nil {
				return classify(path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued A_DISABLE for %s\n", resp.Path)
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <path>",
		Short: "Queue an A_REFRESH admin request for a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			resp, err := newClient().Refresh(cmd.Context(), path)
			if err != nil {
				return classify(path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued A_REFRESH for %s\n", resp.Path)
			return nil
		},
	}
}
