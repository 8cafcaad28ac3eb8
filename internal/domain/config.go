package domain

// Config represents the main application configuration
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// KnowledgeConfig selects the knowledge base. An empty Path uses the embedded default.
type KnowledgeConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig configures the risk score cache
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxEntries int  `mapstructure:"max_entries"`
}

// PipelineConfig configures assessment orchestration
type PipelineConfig struct {
	MaxConcurrency int  `mapstructure:"max_concurrency"`
	AgeAware       bool `mapstructure:"age_aware"`
}
