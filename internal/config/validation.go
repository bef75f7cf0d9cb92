package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	friendlyerrors "github.com/jxwalker/modbrowse/internal/errors"
)

// ValidationError represents a detailed config validation error
type ValidationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Config validation error in '%s': %s", e.Field, e.Message)
}

// ValidateDetailed performs comprehensive validation with friendly error messages
func (c *Config) ValidateDetailed() []ValidationError {
	var errs []ValidationError

	if c.Version != 1 {
		errs = append(errs, ValidationError{
			Field:      "version",
			Value:      c.Version,
			Message:    fmt.Sprintf("Unsupported version: %d", c.Version),
			Suggestion: "Use version: 1",
		})
	}

	if c.General.DataRoot == "" {
		errs = append(errs, ValidationError{
			Field:      "general.data_root",
			Message:    "Required field missing",
			Suggestion: "Set to a directory for modbrowse data:\n  data_root: ~/.local/share/modbrowse",
		})
	}

	// Network checks
	if c.Network.TimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:      "network.timeout_seconds",
			Value:      c.Network.TimeoutSeconds,
			Message:    "Must be at least 1 second",
			Suggestion: "Recommended: 10-60 seconds",
		})
	}
	if c.Network.MaxRetries < 0 || c.Network.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:      "network.max_retries",
			Value:      c.Network.MaxRetries,
			Message:    "Must be between 0 and 10",
			Suggestion: "Recommended: 1-3 retries; page fetch failures are retried by the user",
		})
	}

	if c.Sources.CurseForge.Enabled {
		if err := checkBaseURL(c.Sources.CurseForge.BaseURL); err != "" {
			errs = append(errs, ValidationError{
				Field:      "sources.curseforge.base_url",
				Value:      c.Sources.CurseForge.BaseURL,
				Message:    err,
				Suggestion: "Use https://api.curseforge.com or your proxy's base URL",
			})
		}
		if c.Sources.CurseForge.Token() == "" {
			tokenEnv := c.Sources.CurseForge.TokenEnv
			if tokenEnv == "" {
				tokenEnv = "CURSEFORGE_API_KEY"
			}
			errs = append(errs, ValidationError{
				Field:      "sources.curseforge",
				Message:    fmt.Sprintf("CurseForge enabled but %s not set", tokenEnv),
				Suggestion: fmt.Sprintf("Set the key:\n  export %s=...\n  Get one at: https://console.curseforge.com", tokenEnv),
			})
		}
	}

	if c.Sources.Modrinth.Enabled {
		if err := checkBaseURL(c.Sources.Modrinth.BaseURL); err != "" {
			errs = append(errs, ValidationError{
				Field:      "sources.modrinth.base_url",
				Value:      c.Sources.Modrinth.BaseURL,
				Message:    err,
				Suggestion: "Use https://api.modrinth.com",
			})
		}
		if c.Sources.Modrinth.ChunkSize > c.Sources.Modrinth.BulkLimit {
			errs = append(errs, ValidationError{
				Field:      "sources.modrinth.chunk_size",
				Value:      c.Sources.Modrinth.ChunkSize,
				Message:    "Larger than bulk_limit, every listing fits in one chunk",
				Suggestion: "Set chunk_size: 0 to disable local chunking",
			})
		}
	}

	if c.Browse.PrefetchThreshold > c.Sources.CurseForge.PageSize {
		errs = append(errs, ValidationError{
			Field:      "browse.prefetch_threshold",
			Value:      c.Browse.PrefetchThreshold,
			Message:    "Greater than the page size; pages will be requested back to back",
			Suggestion: fmt.Sprintf("Use a value below %d", c.Sources.CurseForge.PageSize),
		})
	}

	if p := strings.TrimSpace(c.Browse.DefaultPlatform); p != "" && !slices.Contains([]string{"curseforge", "modrinth"}, p) {
		errs = append(errs, ValidationError{
			Field:      "browse.default_platform",
			Value:      p,
			Message:    "Unknown platform",
			Suggestion: "Use one of: curseforge, modrinth",
		})
	}
	if rt := strings.TrimSpace(c.Browse.DefaultResultType); rt != "" && !slices.Contains([]string{"mod", "modpack"}, rt) {
		errs = append(errs, ValidationError{
			Field:      "browse.default_result_type",
			Value:      rt,
			Message:    "Unknown result type",
			Suggestion: "Use one of: mod, modpack",
		})
	}

	if c.Metrics.PrometheusTextfile.Enabled && c.Metrics.PrometheusTextfile.Path == "" {
		errs = append(errs, ValidationError{
			Field:      "metrics.prometheus_textfile.path",
			Message:    "Required when the textfile exporter is enabled",
			Suggestion: "  path: /var/lib/node_exporter/textfile/modbrowse.prom",
		})
	}

	return errs
}

func checkBaseURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Required field missing"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "Not an absolute URL"
	}
	return ""
}

// ValidateWithFriendlyErrors returns a user-friendly validation error
func (c *Config) ValidateWithFriendlyErrors() error {
	if err := c.Validate(); err != nil {
		return err
	}

	errs := c.ValidateDetailed()
	if len(errs) == 0 {
		return nil
	}

	var msg strings.Builder
	msg.WriteString("Configuration validation failed:\n\n")

	for i, err := range errs {
		msg.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
		if err.Value != nil {
			msg.WriteString(fmt.Sprintf("   Current value: %v\n", err.Value))
		}
		if err.Suggestion != "" {
			for _, line := range strings.Split(err.Suggestion, "\n") {
				msg.WriteString(fmt.Sprintf("   → %s\n", line))
			}
		}
		msg.WriteString("\n")
	}

	return friendlyerrors.NewFriendlyError(
		"Config validation failed",
		msg.String(),
	).WithDocs("https://github.com/jxwalker/modbrowse#configuration")
}
