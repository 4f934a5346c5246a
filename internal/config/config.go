// Package config loads yt-resolver settings from defaults, a YAML file,
// YTR_* environment variables and command-line overrides, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"yt-resolver/internal/model"
)

const (
	EnvPrefix       = "YTR"
	DefaultFileName = "yt-resolver.yaml"
)

type Client struct {
	Name      string   `mapstructure:"name" yaml:"name" json:"name"`
	ExtraArgs []string `mapstructure:"extra_args" yaml:"extra_args" json:"extra_args,omitempty"`
}

type Storage struct {
	AllowOverwrite bool `mapstructure:"allow_overwrite" json:"allow_overwrite"`
}

type Cookies struct {
	File        string `mapstructure:"file" json:"file,omitempty"`
	FromBrowser string `mapstructure:"from_browser" json:"from_browser,omitempty"`
}

type Profiles struct {
	MaxProfiles     int  `mapstructure:"max_profiles" json:"max_profiles"`
	MaxHeight       int  `mapstructure:"max_height" json:"max_height"`
	RefuseDowngrade bool `mapstructure:"refuse_downgrade" json:"refuse_downgrade"`
	StaticTable     bool `mapstructure:"static_table" json:"static_table"`
	// AudioLanguages ranks dubbed audio after the original track.
	AudioLanguages []string `mapstructure:"audio_languages" json:"audio_languages,omitempty"`
	MultiAudio     bool     `mapstructure:"multi_audio" json:"multi_audio"`
}

type Invocation struct {
	Binary            string        `mapstructure:"binary" json:"binary"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout" json:"probe_timeout"`
	AttemptsPerSecond float64       `mapstructure:"attempts_per_second" json:"attempts_per_second"`
	Proxy             string        `mapstructure:"proxy" json:"proxy,omitempty"`
	LimitRate         string        `mapstructure:"limit_rate" json:"limit_rate,omitempty"`
	LimitRateMBps     float64       `mapstructure:"limit_rate_mbps" json:"limit_rate_mbps,omitempty"`
	CustomArgs        []string      `mapstructure:"custom_args" json:"custom_args,omitempty"`
}

type Classifier struct {
	Fatal       []string `mapstructure:"fatal" json:"fatal,omitempty"`
	Recoverable []string `mapstructure:"recoverable" json:"recoverable,omitempty"`
}

type Subtitles struct {
	Languages []string `mapstructure:"languages" json:"languages,omitempty"`
}

type S3 struct {
	Region          string `mapstructure:"region" json:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	Profile         string `mapstructure:"profile" json:"profile,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" json:"force_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"-"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"-"`
}

type Logging struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

type Config struct {
	TmpDir     string     `mapstructure:"tmp_dir" json:"tmp_dir"`
	OutputDir  string     `mapstructure:"output_dir" json:"output_dir,omitempty"`
	Storage    Storage    `mapstructure:"storage" json:"storage"`
	Cookies    Cookies    `mapstructure:"cookies" json:"cookies"`
	Clients    []Client   `mapstructure:"clients" json:"clients"`
	Profiles   Profiles   `mapstructure:"profiles" json:"profiles"`
	Invocation Invocation `mapstructure:"invocation" json:"invocation"`
	Classifier Classifier `mapstructure:"classifier" json:"classifier"`
	Subtitles  Subtitles  `mapstructure:"subtitles" json:"subtitles"`
	S3         S3         `mapstructure:"s3" json:"s3"`
	Logging    Logging    `mapstructure:"logging" json:"logging"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-" json:"config_file,omitempty"`
}

// DefaultClients is the canonical client trial order.
func DefaultClients() []Client {
	return []Client{
		{Name: "default"},
		{Name: "android", ExtraArgs: []string{"--extractor-args", "youtube:player_client=android"}},
		{Name: "ios", ExtraArgs: []string{"--extractor-args", "youtube:player_client=ios"}},
		{Name: "web", ExtraArgs: []string{"--extractor-args", "youtube:player_client=web"}},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tmp_dir", filepath.Join(os.TempDir(), "yt-resolver"))
	v.SetDefault("output_dir", "")
	v.SetDefault("storage.allow_overwrite", false)

	v.SetDefault("cookies.file", "")
	v.SetDefault("cookies.from_browser", "")

	clients := make([]map[string]any, 0, 3)
	for _, c := range DefaultClients() {
		clients = append(clients, map[string]any{"name": c.Name, "extra_args": c.ExtraArgs})
	}
	v.SetDefault("clients", clients)

	v.SetDefault("profiles.max_profiles", 2)
	v.SetDefault("profiles.max_height", 0)
	v.SetDefault("profiles.refuse_downgrade", false)
	v.SetDefault("profiles.static_table", false)
	v.SetDefault("profiles.audio_languages", []string{})
	v.SetDefault("profiles.multi_audio", false)

	v.SetDefault("invocation.binary", "yt-dlp")
	v.SetDefault("invocation.timeout", "1h")
	v.SetDefault("invocation.probe_timeout", "60s")
	v.SetDefault("invocation.attempts_per_second", 0)
	v.SetDefault("invocation.proxy", "")
	v.SetDefault("invocation.limit_rate", "")
	v.SetDefault("invocation.limit_rate_mbps", 0)
	v.SetDefault("invocation.custom_args", []string{})

	v.SetDefault("classifier.fatal", []string{})
	v.SetDefault("classifier.recoverable", []string{})
	v.SetDefault("subtitles.languages", []string{})

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.force_path_style", false)
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadOptions selects the config file and flag overrides. Overrides use
// dotted keys ("profiles.max_profiles").
type LoadOptions struct {
	ConfigFile string
	Overrides  map[string]any
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if file := strings.TrimSpace(opts.ConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, ".yaml"))
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "yt-resolver"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.TmpDir = strings.TrimSpace(c.TmpDir)
	c.OutputDir = strings.TrimSpace(c.OutputDir)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	for i := range c.Clients {
		c.Clients[i].Name = strings.TrimSpace(c.Clients[i].Name)
	}
	c.Subtitles.Languages = cleanList(c.Subtitles.Languages)
	c.Profiles.AudioLanguages = cleanList(c.Profiles.AudioLanguages)
	c.Classifier.Fatal = cleanList(c.Classifier.Fatal)
	c.Classifier.Recoverable = cleanList(c.Classifier.Recoverable)
}

func (c Config) Validate() error {
	var errs []error
	if c.TmpDir == "" {
		errs = append(errs, fmt.Errorf("tmp_dir is required"))
	}
	if len(c.Clients) == 0 {
		errs = append(errs, fmt.Errorf("clients must list at least one client"))
	}
	seen := map[string]bool{}
	for i, cl := range c.Clients {
		name := strings.ToLower(cl.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("clients[%d]: name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("clients[%d]: duplicate client name %q", i, cl.Name))
		}
		seen[name] = true
	}
	if c.Profiles.MaxProfiles < 0 {
		errs = append(errs, fmt.Errorf("profiles.max_profiles must be >= 0"))
	}
	if c.Profiles.MaxHeight < 0 {
		errs = append(errs, fmt.Errorf("profiles.max_height must be >= 0"))
	}
	for i, lang := range c.Profiles.AudioLanguages {
		if strings.ContainsAny(lang, " ,") {
			errs = append(errs, fmt.Errorf("profiles.audio_languages[%d]: %q is not a language tag", i, lang))
		}
	}
	if c.Invocation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invocation.timeout must be positive"))
	}
	if c.Invocation.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invocation.probe_timeout must be positive"))
	}
	if c.Invocation.LimitRateMBps < 0 {
		errs = append(errs, fmt.Errorf("invocation.limit_rate_mbps must be >= 0"))
	}
	if c.Invocation.AttemptsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("invocation.attempts_per_second must be >= 0"))
	}
	if c.Cookies.File != "" && c.Cookies.FromBrowser != "" {
		errs = append(errs, fmt.Errorf("cookies.file and cookies.from_browser are mutually exclusive"))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ClientIdentities converts the configured clients into fresh model values.
func (c Config) ClientIdentities() []model.ClientIdentity {
	out := make([]model.ClientIdentity, 0, len(c.Clients))
	for _, cl := range c.Clients {
		out = append(out, model.ClientIdentity{
			Name:           cl.Name,
			ExtraArguments: append([]string(nil), cl.ExtraArgs...),
		})
	}
	return out
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
