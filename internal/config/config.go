package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Data     DataConfig     `yaml:"data"`
	Policies PolicyConfig   `yaml:"policies"`
	RAG      RAGConfig      `yaml:"rag"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	LLM      LLMConfig      `yaml:"llm"`
	Rules    RulesConfig    `yaml:"rules"`
}

type DatabaseConfig struct {
	URL   string `yaml:"url"`
	Key   string `yaml:"key"`
	Debug bool   `yaml:"debug"`
}

type DataConfig struct {
	// Dir holds the customer record CSV files.
	Dir string `yaml:"dir"`
	// Backend selects the record store: "csv" or "postgres".
	Backend string `yaml:"backend"`
	// LedgerFile is where finalized decisions are appended.
	LedgerFile string `yaml:"ledger_file"`
}

type PolicyConfig struct {
	// Dir holds the policy document library (pdf, docx, txt, ...).
	Dir string `yaml:"dir"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
}

type RulesConfig struct {
	// LocalNationality is the jurisdiction whose nationals need no
	// residency record.
	LocalNationality string `yaml:"local_nationality"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 500
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 50
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "./data"
	}
	if c.Data.Backend == "" {
		c.Data.Backend = "csv"
	}
	if c.Data.LedgerFile == "" {
		c.Data.LedgerFile = "./data/loan_decisions.json"
	}
	if c.Policies.Dir == "" {
		c.Policies.Dir = "./policies"
	}
	if c.Rules.LocalNationality == "" {
		c.Rules.LocalNationality = "Singaporean"
	}
}
