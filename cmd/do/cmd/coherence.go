package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/service"
)

func CoherenceCmd() *cobra.Command {
	var total, manifested int

	cmd := &cobra.Command{
		Use:   "coherence",
		Short: "Print the coherence level for a feed window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if total < 0 || manifested < 0 || manifested > total {
				return fmt.Errorf("need 0 <= manifested <= total")
			}

			window := make([]model.Intention, total)
			for i := range manifested {
				window[i].IsManifested = true
			}

			level := service.Coherence(window)
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f (%s)\n", level, service.Band(level))
			return nil
		},
	}
	cmd.Flags().IntVar(&total, "total", 0, "intentions in the window")
	cmd.Flags().IntVar(&manifested, "manifested", 0, "manifested intentions in the window")
	return cmd
}
