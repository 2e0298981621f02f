package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

// envKeyReplacer maps nested keys like admin.rate_limit to PORTFOLIO_ADMIN_RATE_LIMIT.
var envKeyReplacer = strings.NewReplacer(".", "_")

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "portfolio"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage portfolio configuration.

Running bare 'portfolio config' is the same as 'portfolio config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# portfolio configuration
# See: portfolio config show (for effective values and sources)

# State directory for the run history and server PID file
# state_dir: {{ .StateDir }}

# SQLite database holding admin run history
# db_path: {{ .DBPath }}

# HTTP port for 'portfolio serve'
port: {{ .Port }}

data:
  # Project record store
  projects_csv: "{{ .ProjectsCSV }}"
  # Static assets: social-previews/, readmes/, data/
  public_dir: "{{ .PublicDir }}"

# Helper scripts that mutate the record store
bridge:
  interpreter: "{{ .Interpreter }}"
  scripts_dir: "{{ .ScriptsDir }}"
  workdir: "{{ .WorkDir }}"
  timeout: "{{ .Timeout }}"

admin:
  enabled: {{ .AdminEnabled }}
  # Accept admin requests from non-loopback clients
  allow_remote: {{ .AllowRemote }}
  # Requests per second and burst for admin endpoints (0 disables)
  rate_limit: {{ .RateLimit }}
  burst: {{ .Burst }}

# Reload the catalog when the record store changes on disk
watch:
  enabled: {{ .WatchEnabled }}
  debounce: "{{ .Debounce }}"

log:
  level: "{{ .LogLevel }}"
  # console or json
  format: "{{ .LogFormat }}"

# Resume blurbs (portfolio project blurb)
anthropic:
  model: "{{ .AnthropicModel }}"
  # api_key: (or set ANTHROPIC_API_KEY)
`

type configTemplateData struct {
	StateDir       string
	DBPath         string
	Port           int
	ProjectsCSV    string
	PublicDir      string
	Interpreter    string
	ScriptsDir     string
	WorkDir        string
	Timeout        string
	AdminEnabled   bool
	AllowRemote    bool
	RateLimit      float64
	Burst          int
	WatchEnabled   bool
	Debounce       string
	LogLevel       string
	LogFormat      string
	AnthropicModel string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	data := configTemplateData{
		StateDir:       viper.GetString("state_dir"),
		DBPath:         viper.GetString("db_path"),
		Port:           viper.GetInt("port"),
		ProjectsCSV:    viper.GetString("data.projects_csv"),
		PublicDir:      viper.GetString("data.public_dir"),
		Interpreter:    viper.GetString("bridge.interpreter"),
		ScriptsDir:     viper.GetString("bridge.scripts_dir"),
		WorkDir:        viper.GetString("bridge.workdir"),
		Timeout:        viper.GetString("bridge.timeout"),
		AdminEnabled:   viper.GetBool("admin.enabled"),
		AllowRemote:    viper.GetBool("admin.allow_remote"),
		RateLimit:      viper.GetFloat64("admin.rate_limit"),
		Burst:          viper.GetInt("admin.burst"),
		WatchEnabled:   viper.GetBool("watch.enabled"),
		Debounce:       viper.GetString("watch.debounce"),
		LogLevel:       viper.GetString("log.level"),
		LogFormat:      viper.GetString("log.format"),
		AnthropicModel: viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeys lists the keys shown by 'config show', in display order.
var configKeys = []string{
	"state_dir",
	"db_path",
	"port",
	"data.projects_csv",
	"data.public_dir",
	"bridge.interpreter",
	"bridge.scripts_dir",
	"bridge.workdir",
	"bridge.timeout",
	"admin.enabled",
	"admin.allow_remote",
	"admin.rate_limit",
	"admin.burst",
	"watch.enabled",
	"watch.debounce",
	"preview.fallback",
	"log.level",
	"log.format",
	"history.keep",
	"anthropic.model",
}

// envVarFor returns the environment variable that overrides key.
func envVarFor(key string) string {
	return "PORTFOLIO_" + strings.ToUpper(envKeyReplacer.Replace(key))
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	for _, key := range configKeys {
		val := viper.Get(key)
		source := detectSource(key, envVarFor(key), fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'portfolio config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
