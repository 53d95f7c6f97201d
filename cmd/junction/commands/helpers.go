package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/junction-dev/junction-go/pkg/junction"
	"github.com/junction-dev/junction-go/pkg/logging"
)

// Output formats.
const (
	OutputFormatTable = "table"
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"
)

// Configuration keys shared by flags, environment and config file.
const (
	keyAPIKey    = "api_key"
	keyBaseURL   = "base_url"
	keyOutput    = "output"
	keyVerbose   = "verbose"
	keyTimeout   = "timeout"
	keyRedisURL  = "redis_url"
	keyRateLimit = "rate_limit"
)

const defaultTimeout = 2 * time.Minute

var errUnknownFormat = errors.New("unknown output format")

// newClient builds a Junction client from the resolved configuration. The
// returned func releases the client and its Redis connection.
func newClient(cmd *cobra.Command) (*junction.Client, func(), error) {
	cfg := junction.DefaultConfig()
	cfg.APIKey = viper.GetString(keyAPIKey)
	if u := viper.GetString(keyBaseURL); u != "" {
		cfg.BaseURL = u
	}
	cfg.RateLimit = viper.GetFloat64(keyRateLimit)
	cfg.Logger = cliLogger(cmd)

	var rdb *redis.Client
	if addr := viper.GetString(keyRedisURL); addr != "" {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid %s: %w", keyRedisURL, err)
		}
		rdb = redis.NewClient(opts)
		cfg.Redis = rdb
	}

	client, err := junction.New(cfg)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, err
	}
	return client, func() {
		_ = client.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
	}, nil
}

func cliLogger(cmd *cobra.Command) zerolog.Logger {
	if !viper.GetBool(keyVerbose) {
		return zerolog.Nop()
	}
	logger := logging.Setup(logging.Config{
		Level:  logging.LevelDebug,
		Pretty: true,
		Output: cmd.ErrOrStderr(),
	})
	return logging.Component(logger, logging.ComponentCLI)
}

// commandContext bounds a whole command, retries and polling included.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout := viper.GetDuration(keyTimeout)
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

// render writes v in the configured output format. table renders the
// table form and may be nil for commands without one.
func render(w io.Writer, v any, table func(*tablewriter.Table)) error {
	switch format := viper.GetString(keyOutput); format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case OutputFormatYAML:
		return writeYAML(w, v)
	case OutputFormatTable, "":
		if table == nil {
			return writeYAML(w, v)
		}
		t := tablewriter.NewWriter(w)
		table(t)
		if err := t.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w %q (table, json, yaml)", errUnknownFormat, format)
	}
}

// writeYAML renders v with the API's JSON field names.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return err
	}
	return encoder.Close()
}

// readStructured decodes a YAML or JSON file into dst through its JSON
// field names.
func readStructured(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	converted, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(converted))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// parseTime accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(junction.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

func parseDates(values []string) ([]junction.Date, error) {
	dates := make([]junction.Date, 0, len(values))
	for _, v := range values {
		d, err := junction.ParseDate(v)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04 MST")
}
