package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/leadline/internal/config"
	"github.com/cloo-solutions/leadline/internal/database"
	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/repository"
	"github.com/cloo-solutions/leadline/internal/service"
)

func TenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
		Long:  "Create and list tenant accounts",
	}

	cmd.AddCommand(TenantCreateCmd())
	cmd.AddCommand(TenantListCmd())

	return cmd
}

func TenantCreateCmd() *cobra.Command {
	var (
		archetype    string
		tone         string
		instructions string
		welcome      string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new tenant",
		Long:  "Create a tenant account and print its generated API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runTenantCreate(args[0], archetype, tone, instructions, welcome, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().StringVar(&archetype, "archetype", "hybrid", "Bot archetype (support, sales, information, hybrid)")
	cmd.Flags().StringVar(&tone, "tone", "friendly", "Bot tone (formal, friendly, casual)")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Custom prompt instructions")
	cmd.Flags().StringVar(&welcome, "welcome", "", "Welcome message for new conversations")

	return cmd
}

func runTenantCreate(name, archetype, tone, instructions, welcome, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	authSvc := service.NewAuthService(tenantRepo, &service.DefaultUUIDGenerator{})

	tenant, err := authSvc.CreateTenant(ctx, service.CreateTenantInput{
		Name:               name,
		BotArchetype:       domain.BotArchetype(archetype),
		BotTone:            domain.BotTone(tone),
		CustomInstructions: instructions,
		WelcomeMessage:     welcome,
	})
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         tenant.ID,
			"name":       tenant.Name,
			"api_key":    tenant.APIKey,
			"archetype":  string(tenant.Archetype()),
			"tone":       string(tenant.Tone()),
			"created_at": tenant.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Tenant created: %s (%s)\n", tenant.Name, tenant.ID)
		fmt.Printf("API key: %s\n", tenant.APIKey)
	}

	return nil
}

func TenantListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tenants",
		Long:  "List all tenant accounts in the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runTenantList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runTenantList(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	tenants, err := tenantRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(tenants))
		for i, t := range tenants {
			data[i] = map[string]interface{}{
				"id":         t.ID,
				"name":       t.Name,
				"archetype":  string(t.Archetype()),
				"tone":       string(t.Tone()),
				"created_at": t.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(tenants) == 0 {
			fmt.Println("No tenants found")
			return nil
		}
		fmt.Println("Tenants:")
		for _, t := range tenants {
			fmt.Printf("  %s: %s (%s/%s, created: %s)\n", t.ID, t.Name, t.Archetype(), t.Tone(), t.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.Connect(ctx, cfg.DatabaseURL)
}
