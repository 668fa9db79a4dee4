package bot

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Number of due items listed by /due
	DueListLimit int
	// Long polling timeout in seconds
	UpdateTimeout int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		DueListLimit:  10,
		UpdateTimeout: 60,
	}
}
