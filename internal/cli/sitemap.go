package cli

import (
	"github.com/spf13/cobra"

	"pagerag/internal/source"
)

func newSitemapCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sitemap [base-url]",
		Short: "List the pages a website's sitemap offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("limit") {
				a.cfg.Fetch.SitemapLimit = limit
			}
			urls, err := a.discoverer().Discover(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s (index %q)\n", source.SitemapURL(args[0]), source.NameFromURL(args[0]))
			for _, u := range urls {
				cmd.Printf("  %s\n", u)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", source.DefaultSitemapLimit, "maximum pages to list (negative for all)")
	return cmd
}
