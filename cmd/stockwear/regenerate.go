package main

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hrygo/stockwear/server"
	"github.com/hrygo/stockwear/store"
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Re-embed the reference images of a tenant's products",
	Long: `Re-embed every reference image of the tenant's products, or of a single product.

Examples:
  stockwear regenerate --tenant 1
  stockwear regenerate --tenant 1 --product 42`,
	RunE: runRegenerate,
}

func init() {
	regenerateCmd.Flags().Int32("tenant", 0, "tenant id (required)")
	regenerateCmd.Flags().Int32("product", 0, "only regenerate this product")
	_ = regenerateCmd.MarkFlagRequired("tenant")
}

func runRegenerate(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetInt32("tenant")
	productID, _ := cmd.Flags().GetInt32("product")
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
	if !services.References.EmbeddingEnabled() {
		return fmt.Errorf("no embedding producer configured; set STOCKWEAR_EMBEDDING_SERVICE_URL")
	}

	productIDs := []int32{productID}
	if productID == 0 {
		status := store.ProductActive
		products, err := storeInstance.ListProducts(ctx, &store.FindProduct{TenantID: &tenantID, Status: &status})
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		productIDs = productIDs[:0]
		for _, product := range products {
			productIDs = append(productIDs, product.ID)
		}
	}

	bar := progressbar.NewOptions(len(productIDs),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Regenerating[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	processed, failures := 0, 0
	var messages []string
	for _, id := range productIDs {
		report, err := services.References.RegenerateProductEmbeddings(ctx, tenantID, id)
		_ = bar.Add(1)
		if err != nil {
			failures++
			messages = append(messages, fmt.Sprintf("product %d: %v", id, err))
			continue
		}
		processed += report.Processed
		for _, failure := range report.Failures {
			failures++
			messages = append(messages, fmt.Sprintf("product %d reference %d: %s", id, failure.ReferenceImageID, failure.Reason))
		}
	}

	fmt.Printf("Regenerated %d reference embeddings across %d products, %d failures\n", processed, len(productIDs), failures)
	for _, message := range messages {
		fmt.Println("  " + message)
	}
	return nil
}
