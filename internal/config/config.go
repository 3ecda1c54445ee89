package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Database  Database   `yaml:"database"`
	Scraper   Scraper    `yaml:"scraper"`
	Documents Documents  `yaml:"documents"`
	Level2    Level2     `yaml:"level2"`
	Filters   Filters    `yaml:"filters"`
	Platforms []Platform `yaml:"platforms"`
	Storage   Storage    `yaml:"storage"`
	Logging   Logging    `yaml:"logging"`
}

type Database struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSNEnv string `yaml:"dsn_env"`
}

type Scraper struct {
	DownloadTimeoutSeconds int    `yaml:"download_timeout_seconds"`
	Workers                int    `yaml:"workers"`
	UserAgent              string `yaml:"user_agent"`
}

type Documents struct {
	DownloadPath           string   `yaml:"download_path"`
	MaxFileSizeMB          int      `yaml:"max_file_size_mb"`
	AllowedExtensions      []string `yaml:"allowed_extensions"`
	MaxPDFPages            int      `yaml:"max_pdf_pages"`
	MinTextLength          int      `yaml:"min_text_length"`
	MaxConcurrentDownloads int      `yaml:"max_concurrent_downloads"`
	CompilableKeywords     []string `yaml:"compilable_keywords"`
	InformativeKeywords    []string `yaml:"informative_keywords"`
}

// Level2 configures AI extraction of structured clauses.
type Level2 struct {
	Enabled             bool    `yaml:"enabled"`
	Provider            string  `yaml:"provider"`
	Model               string  `yaml:"model"`
	Temperature         float32 `yaml:"temperature"`
	MaxOutputTokens     int     `yaml:"max_output_tokens"`
	MaxAttempts         int     `yaml:"max_attempts"`
	APIKeyEnv           string  `yaml:"api_key_env"`
	VertexProject       string  `yaml:"vertex_project"`
	VertexLocation      string  `yaml:"vertex_location"`
	OllamaURL           string  `yaml:"ollama_url"`
	OpenAIModel         string  `yaml:"openai_model"`
	RequestsPerMinute   int     `yaml:"requests_per_minute"`
	SuccessDelaySeconds float64 `yaml:"success_delay_seconds"`
}

type Filters struct {
	ExcludeTypes    []string `yaml:"exclude_types"`
	OnlyOpenTenders bool     `yaml:"only_open_tenders"`
}

// Platform describes one configured tender source.
type Platform struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"` // feed, html or file
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`

	// html
	Selectors Selectors `yaml:"selectors"`

	// file
	File string `yaml:"file"`
}

// IsEnabled reports whether the platform runs with --all. Platforms are
// enabled unless explicitly disabled.
func (p Platform) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Selectors are CSS selectors applied to an HTML listing page. Field
// selectors are relative to Item.
type Selectors struct {
	Item                 string `yaml:"item"`
	Title                string `yaml:"title"`
	Link                 string `yaml:"link"`
	CIG                  string `yaml:"cig"`
	Amount               string `yaml:"amount"`
	Deadline             string `yaml:"deadline"`
	PublicationDate      string `yaml:"publication_date"`
	ProcedureType        string `yaml:"procedure_type"`
	ContractingAuthority string `yaml:"contracting_authority"`
	Attachments          string `yaml:"attachments"`
}

type Storage struct {
	Minio Minio `yaml:"minio"`
}

type Minio struct {
	Enabled      bool   `yaml:"enabled"`
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	UseSSL       bool   `yaml:"use_ssl"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for tenderwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "tenderwatch")
}

// DataDir returns the XDG data directory for tenderwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "tenderwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/tenderwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'tenderwatch init' to create a default config",
		xdgConfig,
	)
}

// LoadEnv reads a .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Database: Database{Driver: "sqlite", DSNEnv: "DATABASE_URL"},
		Scraper: Scraper{
			DownloadTimeoutSeconds: 60,
			Workers:                1,
			UserAgent:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Documents: Documents{
			MaxFileSizeMB:          50,
			AllowedExtensions:      []string{"pdf", "doc", "docx", "xls", "xlsx", "zip", "rar"},
			MaxPDFPages:            20,
			MinTextLength:          50,
			MaxConcurrentDownloads: 3,
			CompilableKeywords:     []string{"modulo", "modello", "allegato", "dichiarazione", "domanda", "offerta", "dgue", "schema", "istanza", "fac-simile", "facsimile"},
			InformativeKeywords:    []string{"bando", "disciplinare", "capitolato", "avviso", "relazione", "determina", "chiarimenti", "progetto", "elaborato"},
		},
		Level2: Level2{
			Provider:            "gemini",
			Model:               "gemini-2.0-flash",
			Temperature:         0.1,
			MaxOutputTokens:     3000,
			MaxAttempts:         3,
			APIKeyEnv:           "GOOGLE_API_KEY",
			VertexLocation:      "europe-west1",
			OllamaURL:           "http://localhost:11434",
			OpenAIModel:         "gpt-4o-mini",
			RequestsPerMinute:   15,
			SuccessDelaySeconds: 4,
		},
		Storage: Storage{Minio: Minio{
			Bucket:       "tender-documents",
			AccessKeyEnv: "MINIO_ACCESS_KEY",
			SecretKeyEnv: "MINIO_SECRET_KEY",
		}},
		Logging: Logging{Level: "INFO", Format: "text"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	seen := make(map[string]bool)
	for _, p := range c.Platforms {
		if p.Name == "" {
			return fmt.Errorf("platform without name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate platform %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case "feed", "html", "file":
		default:
			return fmt.Errorf("platform %s: unknown kind %q", p.Name, p.Kind)
		}
	}
	if c.Scraper.Workers < 1 {
		c.Scraper.Workers = 1
	}
	return nil
}

// Platform returns the named platform.
func (c *Config) Platform(name string) (Platform, bool) {
	for _, p := range c.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return Platform{}, false
}

// GetDataDir returns the effective data directory: the directory holding
// the database when a path is configured, otherwise the XDG default.
func (c *Config) GetDataDir() string {
	if c.Database.Path != "" {
		return filepath.Dir(c.Database.Path)
	}
	return DataDir()
}

// DatabasePath returns the sqlite file location.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(DataDir(), "tenders.db")
}

// DatabaseDSN returns the Postgres connection string from the environment.
func (c *Config) DatabaseDSN() string {
	return os.Getenv(c.Database.DSNEnv)
}

// DownloadPath returns the root folder for retrieved documents.
func (c *Config) DownloadPath() string {
	if c.Documents.DownloadPath != "" {
		return c.Documents.DownloadPath
	}
	return filepath.Join(c.GetDataDir(), "documents")
}

func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Scraper.DownloadTimeoutSeconds) * time.Second
}

func (c *Config) MaxFileSize() int64 {
	return int64(c.Documents.MaxFileSizeMB) * 1024 * 1024
}

func (c *Config) SuccessDelay() time.Duration {
	return time.Duration(c.Level2.SuccessDelaySeconds * float64(time.Second))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
