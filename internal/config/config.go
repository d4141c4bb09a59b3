package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"herald/pkg/config"
	"herald/pkg/llm"
)

// DefaultFallbackHashtags fill a post up to MinHashtags when the draft is short.
var DefaultFallbackHashtags = []string{
	"#ContentMarketing",
	"#Leadership",
	"#Innovation",
	"#Technology",
	"#Business",
	"#Insights",
}

// Config stores environment configuration for Herald.
type Config struct {
	Port           string
	DatabaseURL    string
	OrganizationID string
	Channel        string
	SiteBaseURL    string
	ServiceToken   string

	// PreviousServiceToken stays valid during a token rotation.
	PreviousServiceToken string

	LinkedInAPIURL  string
	LinkedInVersion string

	LLM llm.Config

	BrandHashtag     string
	FallbackHashtags []string
	MaxEmoji         int
	MinHashtags      int

	FieldEncryptionKey string

	KafkaBrokers []string
	KafkaTopic   string

	ContentCacheTTL time.Duration
	ClaimLease      time.Duration
	RunMigrations   bool
}

// LoadConfig loads the Herald configuration from environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:           config.GetEnv("PORT", "18030"),
		DatabaseURL:    config.GetEnv("DATABASE_URL", ""),
		OrganizationID: config.GetEnv("ORGANIZATION_ID", ""),
		Channel:        config.GetEnv("CHANNEL", "linkedin"),
		SiteBaseURL:    strings.TrimRight(config.GetEnv("SITE_BASE_URL", ""), "/"),
		ServiceToken:   config.GetEnv("SERVICE_TOKEN", ""),

		PreviousServiceToken: config.GetEnv("SERVICE_TOKEN_PREVIOUS", ""),

		LinkedInAPIURL:  config.GetEnv("LINKEDIN_API_URL", "https://api.linkedin.com"),
		LinkedInVersion: config.GetEnv("LINKEDIN_VERSION", "202401"),

		LLM: llm.LoadConfig(),

		BrandHashtag:     config.GetEnv("BRAND_HASHTAG", ""),
		FallbackHashtags: config.GetEnvList("FALLBACK_HASHTAGS", DefaultFallbackHashtags),
		MaxEmoji:         config.GetEnvInt("MAX_EMOJI", 3),
		MinHashtags:      config.GetEnvInt("MIN_HASHTAGS", 5),

		FieldEncryptionKey: config.GetEnv("FIELD_ENCRYPTION_KEY", ""),

		KafkaBrokers: config.GetEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:   config.GetEnv("KAFKA_TOPIC", "social_publication_events"),

		ContentCacheTTL: config.GetEnvDuration("CONTENT_CACHE_TTL", 0),
		ClaimLease:      config.GetEnvDuration("CLAIM_LEASE", 10*time.Minute),
		RunMigrations:   config.GetEnvBool("RUN_MIGRATIONS", true),
	}
	if cfg.BrandHashtag != "" && !strings.HasPrefix(cfg.BrandHashtag, "#") {
		cfg.BrandHashtag = "#" + cfg.BrandHashtag
	}
	return cfg, cfg.Validate()
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	var errs []error
	required := []struct{ key, value string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"ORGANIZATION_ID", c.OrganizationID},
		{"SITE_BASE_URL", c.SiteBaseURL},
		{"BRAND_HASHTAG", c.BrandHashtag},
		{"FIELD_ENCRYPTION_KEY", c.FieldEncryptionKey},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SiteBaseURL != "" {
		if u, err := url.Parse(c.SiteBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("SITE_BASE_URL must be an absolute URL, got %q", c.SiteBaseURL))
		}
	}
	if c.Channel != "linkedin" {
		errs = append(errs, fmt.Errorf("unsupported CHANNEL %q", c.Channel))
	}
	if c.MaxEmoji < 0 {
		errs = append(errs, errors.New("MAX_EMOJI must not be negative"))
	}
	if c.MinHashtags < 0 {
		errs = append(errs, errors.New("MIN_HASHTAGS must not be negative"))
	}
	if c.PreviousServiceToken != "" && c.ServiceToken == "" {
		errs = append(errs, errors.New("SERVICE_TOKEN_PREVIOUS requires SERVICE_TOKEN"))
	}
	if c.ClaimLease <= 0 {
		errs = append(errs, errors.New("CLAIM_LEASE must be positive"))
	}
	return errors.Join(errs...)
}

// RequiredSettings feeds the configuration health check.
func (c Config) RequiredSettings() map[string]string {
	settings := map[string]string{
		"DATABASE_URL":    c.DatabaseURL,
		"ORGANIZATION_ID": c.OrganizationID,
		"SITE_BASE_URL":   c.SiteBaseURL,
		"BRAND_HASHTAG":   c.BrandHashtag,
	}
	if c.LLM.Provider != llm.ProviderOllama {
		settings["LLM_MODEL"] = c.LLM.Model
	}
	return settings
}
