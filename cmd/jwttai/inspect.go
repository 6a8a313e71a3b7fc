package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cicsdev/go-jwt-tai/trust"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Load the configured key source and describe its trust anchor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := newHost(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer h.Close()

			anchor, err := h.loadAnchor(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Source:    ", anchor.Source())
			fmt.Fprintln(w, "Kind:      ", anchor.Kind())

			if anchor.Kind() == trust.KindDelegated {
				fmt.Fprintln(w, "Consumer:  ", anchor.ConsumerName())
				return nil
			}

			thumbprint, err := anchor.Thumbprint()
			if err != nil {
				return fmt.Errorf("computing thumbprint: %w", err)
			}
			fmt.Fprintln(w, "Key type:  ", anchor.KeyType())
			fmt.Fprintln(w, "Thumbprint:", thumbprint)
			return nil
		},
	}
}
