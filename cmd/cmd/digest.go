package cmd

import (
	"context"
	"fmt"
	"time"

	"dailybrief/internal/config"
	"dailybrief/internal/core"
	"dailybrief/internal/ingest"
	"dailybrief/internal/llm"
	"dailybrief/internal/logger"
	"dailybrief/internal/pipeline"
	"dailybrief/internal/render"
	"dailybrief/internal/tui"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [intake-file]",
	Short: "Load collected articles from a JSON intake file",
	Long: `Read a JSON intake file produced by an upstream collector and store
its articles. Each item names an existing source by display name;
repeated articles are skipped by content fingerprint.

Example:
  dailybrief ingest --user reader@example.com intake/2026-08-31.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("user")

		s, err := openStore()
		if err != nil {
			fatal("failed to open store", err)
		}
		defer func() { _ = s.Close() }()

		ctx := context.Background()
		user, err := resolveUser(ctx, s, email)
		if err != nil {
			fatal("failed to resolve user", err)
		}

		result, err := ingest.NewIngester(s).IngestFile(ctx, user.ID, args[0])
		if err != nil {
			fatal("failed to ingest articles", err)
		}

		fmt.Printf("Ingested %d articles (%d already seen)\n", result.Added, result.Skipped)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate today's digest for a user",
	Long: `Run the curation pipeline over the user's undigested articles:
deduplicate, group by topic, rank, and store the digest. Paid-tier
users get semantic deduplication, topic labels, and summaries from the
enrichment model when an API key is configured; without one the
pipeline runs in its statistical mode.

Example:
  dailybrief generate --user reader@example.com`,
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("user")
		dateStr, _ := cmd.Flags().GetString("date")

		date := time.Now().UTC()
		if dateStr != "" {
			parsed, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				fatal("invalid --date", err)
			}
			date = parsed
		}

		s, err := openStore()
		if err != nil {
			fatal("failed to open store", err)
		}
		defer func() { _ = s.Close() }()

		ctx := context.Background()
		user, err := resolveUser(ctx, s, email)
		if err != nil {
			fatal("failed to resolve user", err)
		}

		var oracle pipeline.Oracle
		if user.Tier == core.TierPaid {
			client, err := llm.NewClient("")
			if err != nil {
				log := logger.Get()
				log.Warn().Err(err).Msg("Enrichment unavailable, using statistical pipeline")
			} else {
				oracle = client
			}
		}

		tunables := config.Get().Pipeline
		p := pipeline.NewWithConfig(s, oracle, pipeline.Config{
			DedupBatchSize:        tunables.DedupBatchSize,
			GroupBatchSize:        tunables.GroupBatchSize,
			TopKeywords:           tunables.TopKeywords,
			MinSharedKeywords:     tunables.MinSharedKeywords,
			PersonalizationDampen: tunables.PersonalizationDampen,
		})

		digest, err := p.Generate(ctx, *user, date)
		if err != nil {
			fatal("failed to generate digest", err)
		}
		if digest == nil {
			fmt.Println("No new articles, no digest generated.")
			return
		}

		items := 0
		for _, g := range digest.Groups {
			items += len(g.Items)
		}
		fmt.Printf("Generated digest %s for %s: %d groups, %d articles\n",
			digest.Date, user.Email, len(digest.Groups), items)
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a user's latest digest as markdown",
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("user")
		outputDir, _ := cmd.Flags().GetString("output")

		s, err := openStore()
		if err != nil {
			fatal("failed to open store", err)
		}
		defer func() { _ = s.Close() }()

		ctx := context.Background()
		user, err := resolveUser(ctx, s, email)
		if err != nil {
			fatal("failed to resolve user", err)
		}

		digest, err := s.GetLatestDigest(ctx, user.ID)
		if err != nil {
			fatal("failed to load digest", err)
		}
		if digest == nil {
			fmt.Println("No digest yet. Run `dailybrief generate` first.")
			return
		}

		if outputDir != "" {
			path, err := render.WriteMarkdown(digest, outputDir)
			if err != nil {
				fatal("failed to write digest", err)
			}
			fmt.Println("Wrote", path)
			return
		}

		fmt.Print(render.RenderMarkdown(digest))
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse a user's latest digest interactively",
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("user")

		s, err := openStore()
		if err != nil {
			fatal("failed to open store", err)
		}
		defer func() { _ = s.Close() }()

		ctx := context.Background()
		user, err := resolveUser(ctx, s, email)
		if err != nil {
			fatal("failed to resolve user", err)
		}

		digest, err := s.GetLatestDigest(ctx, user.ID)
		if err != nil {
			fatal("failed to load digest", err)
		}
		if digest == nil {
			fmt.Println("No digest yet. Run `dailybrief generate` first.")
			return
		}

		if err := tui.Browse(digest); err != nil {
			fatal("failed to browse digest", err)
		}
	},
}

func init() {
	ingestCmd.Flags().String("user", "", "email of the user")
	generateCmd.Flags().String("user", "", "email of the user")
	generateCmd.Flags().String("date", "", "digest date (YYYY-MM-DD, default today)")
	showCmd.Flags().String("user", "", "email of the user")
	showCmd.Flags().String("output", "", "write the digest to this directory instead of stdout")
	browseCmd.Flags().String("user", "", "email of the user")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(browseCmd)
}
