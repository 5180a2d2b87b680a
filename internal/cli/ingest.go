package cli

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagerag/internal/source"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		urls    []string
		rebuild bool
	)
	cmd := &cobra.Command{
		Use:   "ingest [source...]",
		Short: "Fetch and index sources",
		Long: `Fetches every page of the named sources (all configured sources when none
are named, plus any --url sites), chunks and embeds their text and stores the
index. Existing indexes are reused unless --rebuild is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			refs := append([]string(nil), args...)
			if len(refs) == 0 && len(urls) == 0 {
				for _, sc := range a.cfg.Sources {
					refs = append(refs, sc.Name)
				}
			}
			refs = append(refs, urls...)
			if len(refs) == 0 {
				return errors.New("nothing to ingest: configure sources or pass --url")
			}

			var (
				srcs     []*source.Source
				setupErr []error
				byIndex  = make(map[string]string)
			)
			for _, ref := range refs {
				src, err := a.resolveSource(ctx, ref)
				if err != nil {
					a.log.Error("source setup failed", zap.String("source", ref), zap.Error(err))
					setupErr = append(setupErr, err)
					continue
				}
				// refs sharing an index would overwrite each other's chunks
				if first, dup := byIndex[src.IndexName()]; dup {
					a.log.Warn("skipping source with an index already queued",
						zap.String("source", ref), zap.String("index", src.IndexName()), zap.String("first", first))
					continue
				}
				byIndex[src.IndexName()] = ref
				srcs = append(srcs, src)
			}

			svc, err := a.service()
			if err != nil {
				return err
			}
			indexes, err := svc.IngestAll(ctx, srcs, rebuild)

			names := make([]string, 0, len(indexes))
			for name := range indexes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				ix := indexes[name]
				cmd.Printf("%s: %d chunks in index %q\n", name, ix.Len(), ix.Name())
				_ = ix.Close()
			}
			return errors.Join(append(setupErr, err)...)
		},
	}
	cmd.Flags().StringSliceVar(&urls, "url", nil, "website base URL to ingest through its sitemap (repeatable)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild indexes even when a stored one exists")
	return cmd
}
