package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/aptemsync/internal/config"
	"github.com/dbsmedya/aptemsync/internal/httpclient"
	"github.com/dbsmedya/aptemsync/internal/metadata"
)

var discoverJSON bool

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover entities and schemas from the tenant's metadata",
	Long: `Discover fetches the tenant's $metadata document and prints the
entities available for extraction, their primary keys, replication keys
and embedded child collections.

Entities without an UpdatedDate replication key fall back to offset
pagination and are re-extracted in full on every run.

Example:
  aptemsync discover --config aptemsync.yaml
  aptemsync discover --config aptemsync.yaml --json`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false,
		"Emit discovered entities and JSON schemas as JSON")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI overrides
	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.StartDate, overrides.MaxRetries)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := httpclient.New(httpclient.Config{
		BaseURL:         cfg.BaseURL(),
		APIToken:        cfg.APIToken,
		Timeout:         time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MetadataTimeout: time.Duration(cfg.HTTP.MetadataTimeoutSeconds) * time.Second,
		MaxRetries:      cfg.HTTP.MaxRetries,
		RateLimit:       cfg.HTTP.RateLimit,
		RateBurst:       cfg.HTTP.RateBurst,
	})

	ctx := context.Background()

	doc, err := client.FetchMetadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch metadata: %w", err)
	}

	entities, err := metadata.Discover(doc)
	if err != nil {
		return fmt.Errorf("schema discovery failed: %w", err)
	}

	if discoverJSON {
		return printEntitiesJSON(cmd, entities)
	}

	printEntityTable(cmd, cfg, entities)
	return nil
}

// discoveredEntityJSON is the JSON shape of one discovered entity.
type discoveredEntityJSON struct {
	Name           string           `json:"name"`
	PrimaryKeys    []string         `json:"primaryKeys"`
	ReplicationKey string           `json:"replicationKey,omitempty"`
	Schema         *metadata.Schema `json:"schema"`
}

func printEntitiesJSON(cmd *cobra.Command, entities []metadata.DiscoveredEntity) error {
	out := make([]discoveredEntityJSON, 0, len(entities))
	for _, e := range entities {
		out = append(out, discoveredEntityJSON{
			Name:           e.Name,
			PrimaryKeys:    e.PrimaryKeys,
			ReplicationKey: e.ReplicationKey,
			Schema:         e.Schema,
		})
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode entities: %w", err)
	}
	cmd.Println(string(encoded))
	return nil
}

func printEntityTable(cmd *cobra.Command, cfg *config.Config, entities []metadata.DiscoveredEntity) {
	headers := []string{"ENTITY", "PRIMARY KEYS", "REPLICATION", "PROPERTIES", "EMBEDDED"}

	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		replication := "-"
		if e.ReplicationKey != "" {
			replication = e.ReplicationKey
		}

		embedded := metadata.EmbeddedEntities(e)
		children := make([]string, 0, len(embedded))
		for _, child := range embedded {
			children = append(children, child.CollectionName)
		}
		childCol := "-"
		if len(children) > 0 {
			childCol = strings.Join(children, ",")
		}

		rows = append(rows, []string{
			e.Name,
			strings.Join(e.PrimaryKeys, ","),
			replication,
			fmt.Sprintf("%d", len(e.Schema.PropertyNames())),
			childCol,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var header strings.Builder
	for i, h := range headers {
		header.WriteString(runewidth.FillRight(h, widths[i]+2))
	}
	cmd.Println(color.Bold.Sprint(header.String()))

	for j, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			line.WriteString(runewidth.FillRight(cell, widths[i]+2))
		}
		if cfg.IsExcluded(entities[j].Name) {
			cmd.Println(color.Gray.Sprint(line.String() + "(excluded)"))
		} else {
			cmd.Println(line.String())
		}
	}

	cmd.Printf("\nTotal: %d entities\n", len(entities))
}
