package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hrygo/stockwear/server"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print feedback statistics and a suggested similarity threshold",
	Long: `Print the tenant's feedback statistics and, once enough confirmed and rejected
matches exist, the similarity threshold suggested by them.

Examples:
  stockwear analyze --tenant 1`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Int32("tenant", 0, "tenant id (required)")
	_ = analyzeCmd.MarkFlagRequired("tenant")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetInt32("tenant")
	if tenantID <= 0 {
		return fmt.Errorf("tenant must be a positive integer")
	}

	instanceProfile, err := loadProfile()
	if err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	ctx := context.Background()
	storeInstance, err := openStore(ctx, instanceProfile)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer storeInstance.Close()

	services, err := server.NewServices(instanceProfile, storeInstance)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		TenantID         int32   `json:"tenantId"`
		CurrentThreshold float64 `json:"currentThreshold"`
		Statistics       any     `json:"statistics"`
		Analysis         any     `json:"analysis"`
	}{
		TenantID:         tenantID,
		CurrentThreshold: services.Recognizer.Threshold(),
		Statistics:       services.Feedback.GetStatistics(ctx, tenantID),
		Analysis:         services.Feedback.GetSimilarityAnalysis(ctx, tenantID),
	})
}
