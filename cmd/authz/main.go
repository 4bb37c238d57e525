package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/nidoproject/authz/internal/engine"
	"github.com/nidoproject/authz/internal/infrastructure/config"
	"github.com/nidoproject/authz/internal/infrastructure/database"
	"github.com/nidoproject/authz/internal/infrastructure/metrics"
	"github.com/nidoproject/authz/internal/policy"
	"github.com/nidoproject/authz/internal/repositories/postgres"
	"github.com/nidoproject/authz/pkg/cache/ristrettocache"
)

var (
	envFlag    string
	policyFlag string
	traceFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "authz",
	Short: "Authorization decision tool",
	Long: `Authorization decision tool.
Compiles a policy document and answers allow/deny queries against the
PostgreSQL fact store.`,
}

var checkCmd = &cobra.Command{
	Use:   "check <actor-type:id> <action> <resource-type:id>",
	Short: "Answer a single authorization query",
	Args:  cobra.ExactArgs(3),
	Run:   runCheck,
}

var validateCmd = &cobra.Command{
	Use:   "validate [policy-file]",
	Short: "Compile a policy document and report configuration errors",
	Args:  cobra.MaximumNArgs(1),
	Run:   runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().StringVarP(&policyFlag, "policy", "p", "", "Policy document path (defaults to POLICY_PATH)")
	checkCmd.Flags().BoolVar(&traceFlag, "trace", false, "Print the derivation path of an allow")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func loadConfig() *config.Config {
	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if policyFlag != "" {
		cfg.Policy.Path = policyFlag
	}
	return cfg
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	pol, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		log.Fatalf("Failed to load policy: %v", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to fact store: %v", err)
	}
	defer pg.Close()

	actor, err := parseEntity(args[0])
	if err != nil {
		log.Fatalf("Invalid actor: %v", err)
	}
	resource, err := parseEntity(args[2])
	if err != nil {
		log.Fatalf("Invalid resource: %v", err)
	}
	action := args[1]

	resolver := engine.NewResolver(pol.Rules, postgres.NewFactStore(pg.DB))
	collector := metrics.NewCollector()

	decider := engine.NewDecider(pol.Registry, resolver)
	if cfg.Cache.Enabled {
		c, err := ristrettocache.New(&ristrettocache.Config{
			NumCounters:    cfg.Cache.NumCounters,
			MaxMemoryBytes: cfg.Cache.MaxMemoryBytes,
			BufferItems:    cfg.Cache.BufferItems,
			EnableMetrics:  cfg.Cache.Metrics,
		})
		if err != nil {
			log.Fatalf("Failed to create decision cache: %v", err)
		}
		defer c.Close()
		collector.SetCache(c)
		decider = engine.NewDeciderWithCache(pol.Registry, resolver, c, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	}

	ctx := context.Background()
	start := time.Now()

	if traceFlag {
		decision, err := decider.AllowWithTrace(ctx, actor, action, resource)
		if err != nil {
			collector.RecordError()
			log.Fatalf("Decision failed: %v", err)
		}
		collector.RecordDecision(decision.Allowed, time.Since(start))
		printOutcome(decision.Allowed)
		for _, step := range decision.Trace {
			fmt.Printf("  %s\n", step)
		}
		fmt.Printf("evaluated in %s\n", collector.DecisionStats().AverageDuration)
		return
	}

	allowed, err := decider.Allow(ctx, actor, action, resource)
	if err != nil {
		collector.RecordError()
		log.Fatalf("Decision failed: %v", err)
	}
	collector.RecordDecision(allowed, time.Since(start))
	printOutcome(allowed)
}

func runValidate(cmd *cobra.Command, args []string) {
	path := policyFlag
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		cfg := loadConfig()
		path = cfg.Policy.Path
	}

	pol, err := policy.Load(path)
	if err != nil {
		log.Fatalf("Policy is invalid: %v", err)
	}

	fmt.Printf("Policy is valid: %d resource types, %d clauses\n",
		len(pol.Registry.TypeNames()), pol.Rules.Len())
}

func parseEntity(arg string) (*postgres.Record, error) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == ':' {
			if i == 0 || i == len(arg)-1 {
				break
			}
			return postgres.NewRecord(arg[:i], arg[i+1:]), nil
		}
	}
	return nil, fmt.Errorf("expected type:id, got %q", arg)
}

func printOutcome(allowed bool) {
	if allowed {
		fmt.Println("ALLOW")
	} else {
		fmt.Println("DENY")
	}
}
