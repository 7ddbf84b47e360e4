package config

import (
	"fmt"
	"time"
)

// DomainConfig holds the tunables of the board engine
type DomainConfig struct {
	// Board defaults
	DefaultBoardName string `yaml:"defaultBoardName"`
	SeedNodeLabel    string `yaml:"seedNodeLabel"`

	// History
	HistoryLimit int `yaml:"historyLimit"`

	// Canvas synchronisation
	SyncDebounce time.Duration `yaml:"syncDebounce"`
	DragCooldown time.Duration `yaml:"dragCooldown"`

	// Persistence
	AutosaveDebounce time.Duration `yaml:"autosaveDebounce"`
	WriterLeaseTTL   time.Duration `yaml:"writerLeaseTTL"`

	// Placement
	PlacementMarginX float64 `yaml:"placementMarginX"`
	PlacementMarginY float64 `yaml:"placementMarginY"`
	PlacementStep    float64 `yaml:"placementStep"`
	PlacementMaxStep float64 `yaml:"placementMaxStep"`

	// Layout
	RankSeparation float64 `yaml:"rankSeparation"`
	NodeSeparation float64 `yaml:"nodeSeparation"`

	// Suggestions
	MaxSuggestionDepth int     `yaml:"maxSuggestionDepth"`
	ColumnSpacing      float64 `yaml:"columnSpacing"`
	RowSpacing         float64 `yaml:"rowSpacing"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		DefaultBoardName: "Untitled Board",
		SeedNodeLabel:    "Main Idea",

		HistoryLimit: 100,

		SyncDebounce: 300 * time.Millisecond,
		DragCooldown: 500 * time.Millisecond,

		AutosaveDebounce: 2 * time.Second,
		WriterLeaseTTL:   30 * time.Second,

		PlacementMarginX: 50,
		PlacementMarginY: 30,
		PlacementStep:    50,
		PlacementMaxStep: 500,

		RankSeparation: 100,
		NodeSeparation: 50,

		MaxSuggestionDepth: 3,
		ColumnSpacing:      350,
		RowSpacing:         120,
	}
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Faster feedback while iterating locally
	config.AutosaveDebounce = 500 * time.Millisecond
	config.HistoryLimit = 0

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.HistoryLimit < 0 {
		return fmt.Errorf("historyLimit must be >= 0, got %d", c.HistoryLimit)
	}
	if c.SyncDebounce < 0 || c.DragCooldown < 0 || c.AutosaveDebounce < 0 {
		return fmt.Errorf("sync and autosave timings must not be negative")
	}
	if c.PlacementStep <= 0 || c.PlacementMaxStep < c.PlacementStep {
		return fmt.Errorf("placement step %v must be positive and not exceed max step %v", c.PlacementStep, c.PlacementMaxStep)
	}
	if c.PlacementMarginX < 0 || c.PlacementMarginY < 0 {
		return fmt.Errorf("placement margins must not be negative")
	}
	if c.RankSeparation <= 0 || c.NodeSeparation <= 0 {
		return fmt.Errorf("layout separations must be positive")
	}
	if c.MaxSuggestionDepth < 1 {
		return fmt.Errorf("maxSuggestionDepth must be >= 1, got %d", c.MaxSuggestionDepth)
	}
	return nil
}
