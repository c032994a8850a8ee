package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connection and credentials",
	Long:  `Verify that the configured credentials are accepted by the RetroAchievements API.`,
	RunE:  runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	fmt.Printf("Testing connection as %s...\n", cfg.Auth.Username)

	profile, err := client.GetUserProfile(ctx)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	fmt.Println("✓ Connection successful!")
	fmt.Printf("- User: %s\n", profile.Name())
	if profile.Motto != "" {
		fmt.Printf("- Motto: %s\n", profile.Motto)
	}
	if profile.MemberSince != "" {
		fmt.Printf("- Member since: %s\n", profile.MemberSince)
	}

	consoles, err := client.GetConsoleIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get console list: %w", err)
	}
	fmt.Printf("- Known consoles: %d\n", len(consoles))

	return nil
}
