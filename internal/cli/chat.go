package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pagerag/internal/domain"
	"pagerag/internal/tui"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		sourceRef string
		rebuild   bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long:  `Opens an interactive session over the index of one source.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			src, err := a.resolveSource(ctx, sourceRef)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			ix, err := svc.LoadOrIngest(ctx, src, rebuild)
			if err != nil {
				return err
			}
			defer ix.Close()

			ask := func(ctx context.Context, q string) (domain.Answer, []domain.SearchResult, error) {
				return svc.Ask(ctx, ix, q, a.cfg.Retrieval.TopK)
			}
			_, err = tea.NewProgram(tui.New(ctx, ask, ix.Name()), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&sourceRef, "source", "s", "", "configured source name or website base URL")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild the index before chatting")
	return cmd
}
