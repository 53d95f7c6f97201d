package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/junction-dev/junction-go/pkg/junction"
)

const (
	configDirPerm  = 0o700
	configFilePerm = 0o600
)

var errNoAPIKey = errors.New("no API key entered")

// NewAuthCommand creates the auth command group.
func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the API key",
		Long:  "Store and inspect the API key used by the CLI",
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthStatusCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var skipVerify bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API key",
		Long: `Prompt for an API key, check it against the API and save it to the
config file. The key is read without echo when stdin is a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := promptAPIKey(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			viper.Set(keyAPIKey, key)

			if !skipVerify {
				if err := verifyAPIKey(cmd); err != nil {
					return fmt.Errorf("API key rejected: %w", err)
				}
			}

			path, err := configFile()
			if err != nil {
				return err
			}
			if err := saveSetting(path, keyAPIKey, key); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API key saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "save the key without calling the API")

	return cmd
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := viper.GetString(keyAPIKey)
			if key == "" {
				key = os.Getenv(junction.APIKeyEnv)
			}
			if key == "" {
				return fmt.Errorf("not logged in: run 'junction auth login' or set %s", junction.APIKeyEnv)
			}

			status := struct {
				APIKey     string `json:"apiKey"`
				BaseURL    string `json:"baseUrl"`
				ConfigFile string `json:"configFile,omitempty"`
			}{
				APIKey:     mask(key),
				BaseURL:    orDefault(viper.GetString(keyBaseURL), junction.DefaultBaseURL),
				ConfigFile: viper.ConfigFileUsed(),
			}
			return render(cmd.OutOrStdout(), status, nil)
		},
	}
}

func promptAPIKey(in io.Reader, prompt io.Writer) (string, error) {
	_, _ = fmt.Fprint(prompt, "API key: ")

	var key string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
		key = string(raw)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", errNoAPIKey
	}
	return key, nil
}

// verifyAPIKey makes one cheap authenticated call.
func verifyAPIKey(cmd *cobra.Command) error {
	client, done, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	it, err := client.SearchPlaces(junction.PlaceQuery{PageSize: 1})
	if err != nil {
		return err
	}
	defer it.Stop()
	it.Next(ctx)
	return it.Err()
}

// saveSetting sets key in the YAML config file at path, keeping other
// settings.
func saveSetting(path, key string, value any) error {
	settings := map[string]any{}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &settings); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if settings == nil {
			settings = map[string]any{}
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	settings[key] = value

	out, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, out, configFilePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func mask(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-4:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
