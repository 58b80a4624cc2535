package cmd

import (
	"context"
	"fmt"

	"dailybrief/internal/core"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage digest users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new user",
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		tier, _ := cmd.Flags().GetString("tier")

		if t := core.Tier(tier); t != core.TierFree && t != core.TierPaid {
			fatal("invalid tier", fmt.Errorf("tier must be %q or %q, got %q", core.TierFree, core.TierPaid, tier))
		}

		s, err := openStore()
		if err != nil {
			fatal("failed to open store", err)
		}
		defer func() { _ = s.Close() }()

		user := core.User{Email: email, Tier: core.Tier(tier)}
		if err := s.CreateUser(context.Background(), &user); err != nil {
			fatal("failed to create user", err)
		}

		fmt.Printf("Created user %s (%s, %s tier)\n", user.Email, user.ID, user.Tier)
	},
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage content sources",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a content source for a user",
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("user")
		name, _ := cmd.Flags().GetString("name")
		kind, _ := cmd.Flags().GetString("kind")

		if name == "" {
			fatal("invalid source", fmt.Errorf("--name is required"))
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

		source := core.Source{UserID: user.ID, Kind: kind, Name: name, Active: true}
		if err := s.AddSource(ctx, &source); err != nil {
			fatal("failed to add source", err)
		}

		fmt.Printf("Added %s source %q (%s) for %s\n", source.Kind, source.Name, source.ID, user.Email)
	},
}

var interactCmd = &cobra.Command{
	Use:   "interact",
	Short: "Record a reading interaction with an article",
	Long: `Record that the user read, tapped through, saved, or dismissed an
article. Interactions feed personalized group ranking.`,
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("user")
		articleID, _ := cmd.Flags().GetString("article")
		kind, _ := cmd.Flags().GetString("kind")

		if articleID == "" {
			fatal("invalid interaction", fmt.Errorf("--article is required"))
		}
		switch core.InteractionKind(kind) {
		case core.InteractionRead, core.InteractionTappedThrough, core.InteractionSaved, core.InteractionDismissed:
		default:
			fatal("invalid interaction", fmt.Errorf("unknown kind %q", kind))
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

		interaction := core.Interaction{UserID: user.ID, ArticleID: articleID, Kind: core.InteractionKind(kind)}
		if err := s.AddInteraction(ctx, &interaction); err != nil {
			fatal("failed to record interaction", err)
		}

		fmt.Printf("Recorded %s for article %s\n", kind, articleID)
	},
}

func init() {
	userAddCmd.Flags().String("email", "", "email address of the new user")
	userAddCmd.Flags().String("tier", string(core.TierFree), "subscription tier (free or paid)")
	_ = userAddCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userAddCmd)

	sourceAddCmd.Flags().String("user", "", "email of the owning user")
	sourceAddCmd.Flags().String("name", "", "display name of the source")
	sourceAddCmd.Flags().String("kind", "rss", "source kind (rss, email, reddit)")
	sourceCmd.AddCommand(sourceAddCmd)

	interactCmd.Flags().String("user", "", "email of the user")
	interactCmd.Flags().String("article", "", "article ID")
	interactCmd.Flags().String("kind", string(core.InteractionRead), "interaction kind (read, tapped_through, saved, dismissed)")

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(interactCmd)
}
