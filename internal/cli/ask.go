package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		sourceRef  string
		topK       int
		rebuild    bool
		showChunks bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from a source",
		Long: `Answers a question from the index of one source, building the index first
when none is stored. The answer is printed with the sources it cites.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.Join(args, " ")

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

			if topK <= 0 {
				topK = a.cfg.Retrieval.TopK
			}
			ans, results, err := svc.Ask(ctx, ix, question, topK)
			if err != nil {
				return err
			}

			cmd.Println("Answer:")
			cmd.Println(ans.Text)
			if len(ans.Sources) > 0 {
				cmd.Println()
				cmd.Println("Sources:")
				for _, s := range ans.Sources {
					cmd.Printf("  %s\n", s)
				}
			}
			if showChunks {
				cmd.Println()
				for i, r := range results {
					cmd.Printf("  [%d] %s (%.3f)\n      %s\n", i+1, r.Chunk.ChunkID, r.Score, r.Chunk.Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourceRef, "source", "s", "", "configured source name or website base URL")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to answer from (default from config)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild the index before answering")
	cmd.Flags().BoolVar(&showChunks, "show-chunks", false, "print the retrieved chunks")
	return cmd
}
