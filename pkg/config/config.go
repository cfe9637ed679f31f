// Package config provides runtime settings for extractors, transforms and
// loaders.
//
// Settings come from three places, highest precedence first: command-line
// flags bound to the viper instance, environment variables prefixed ETL_,
// and built-in defaults. Nested keys map to environment names by replacing
// dots with underscores, so "e.columns" is read from ETL_E_COLUMNS and
// "t.pretty" from ETL_T_PRETTY.
//
// A pipeline can also be described in YAML and read with LoadPipeline. The
// file may reference environment variables with ${VAR_NAME}.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the settings read.
const EnvPrefix = "ETL"

// HeaderEnvPrefix marks environment variables holding HTTP request headers
// for URL extractors: ETL_E_HEADER_<NAME>=<value>.
const HeaderEnvPrefix = EnvPrefix + "_E_HEADER_"

// Setting keys.
const (
	KeyColumns     = "e.columns"
	KeySheetNames  = "e.sheet_names"
	KeyChunkSize   = "e.chunk_size"
	KeyDelimiter   = "e.delimiter"
	KeyHTTPTimeout = "e.http_timeout"
	KeyOAuthClient = "e.oauth2.client_id"
	KeyOAuthSecret = "e.oauth2.client_secret"
	KeyOAuthToken  = "e.oauth2.token_url"
	KeyOAuthScopes = "e.oauth2.scopes"
	KeyPretty      = "t.pretty"
	KeyEOL         = "t.eol"
	KeyLevel       = "t.level"
	KeyBatchSize   = "l.batch_size"
	KeyCredentials = "l.credentials_file"
	KeyBufferSize  = "buffer_size"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
)

const (
	DefaultChunk    = 64 * 1024
	DefaultBatch    = 500
	DefaultTimeout  = 30 * time.Second
	DefaultLogLevel = "info"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Extract    ExtractSettings   `mapstructure:"e" yaml:"extract"`
	Transform  TransformSettings `mapstructure:"t" yaml:"transform"`
	Load       LoadSettings      `mapstructure:"l" yaml:"load"`
	BufferSize int               `mapstructure:"buffer_size" yaml:"buffer_size"`
	Log        LogSettings       `mapstructure:"log" yaml:"log"`
}

// ExtractSettings configure extractors.
type ExtractSettings struct {
	// Columns overrides the header of tabular sources. It is only honoured
	// when ColumnsSet is true; an explicitly empty list makes tabular
	// sources emit raw field arrays instead of keyed records.
	Columns    []string `mapstructure:"columns" yaml:"columns"`
	ColumnsSet bool     `mapstructure:"-" yaml:"-"`
	// SheetNames selects spreadsheet sheets by name or 1-based ordinal.
	// "*" selects every sheet. Empty means the first sheet.
	SheetNames []string          `mapstructure:"sheet_names" yaml:"sheet_names"`
	ChunkSize  int               `mapstructure:"chunk_size" yaml:"chunk_size"`
	Delimiter  byte              `mapstructure:"-" yaml:"-"`
	Headers    map[string]string `mapstructure:"-" yaml:"headers"`
	Timeout    time.Duration     `mapstructure:"http_timeout" yaml:"http_timeout"`
	OAuth2     OAuth2Settings    `mapstructure:"oauth2" yaml:"oauth2"`
}

// OAuth2Settings enable the client-credentials flow for URL extractors.
type OAuth2Settings struct {
	ClientID     string   `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string   `mapstructure:"client_secret" yaml:"client_secret"`
	TokenURL     string   `mapstructure:"token_url" yaml:"token_url"`
	Scopes       []string `mapstructure:"scopes" yaml:"scopes"`
}

// Enabled reports whether enough is configured to request tokens.
func (o OAuth2Settings) Enabled() bool {
	return o.ClientID != "" && o.TokenURL != ""
}

// TransformSettings configure built-in transforms.
type TransformSettings struct {
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
	EOL    string `mapstructure:"eol" yaml:"eol"`
	// Level is the compression level name: fastest, default, better or best.
	Level string `mapstructure:"level" yaml:"level"`
}

// LoadSettings configure loaders.
type LoadSettings struct {
	BatchSize       int    `mapstructure:"batch_size" yaml:"batch_size"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// LogSettings configure the global logger.
type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// NewViper returns a viper instance reading ETL_ environment variables, with
// defaults for every key that has one. Columns has no default so that an
// unset variable can be told apart from an empty one.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	v.SetDefault(KeyChunkSize, DefaultChunk)
	v.SetDefault(KeyDelimiter, ",")
	v.SetDefault(KeyHTTPTimeout, DefaultTimeout)
	v.SetDefault(KeyEOL, DefaultEOL())
	v.SetDefault(KeyLevel, "default")
	v.SetDefault(KeyBatchSize, DefaultBatch)
	v.SetDefault(KeyBufferSize, 16)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, "console")
	return v
}

// DefaultEOL is the line ending of the host operating system.
func DefaultEOL() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// FromViper resolves Settings from v. Header variables are read from the
// process environment directly since viper cannot enumerate them.
func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if v.IsSet(KeyColumns) {
		s.Extract.ColumnsSet = true
		s.Extract.Columns = List(v.Get(KeyColumns))
	}
	s.Extract.SheetNames = List(v.Get(KeySheetNames))
	s.Extract.ChunkSize = v.GetInt(KeyChunkSize)
	s.Extract.Timeout = v.GetDuration(KeyHTTPTimeout)
	s.Extract.Headers = HeadersFromEnv(os.Environ())
	s.Extract.OAuth2 = OAuth2Settings{
		ClientID:     v.GetString(KeyOAuthClient),
		ClientSecret: v.GetString(KeyOAuthSecret),
		TokenURL:     v.GetString(KeyOAuthToken),
		Scopes:       List(v.Get(KeyOAuthScopes)),
	}

	delim := v.GetString(KeyDelimiter)
	if delim == `\t` {
		delim = "\t"
	}
	if len(delim) != 1 {
		return nil, fmt.Errorf("delimiter must be a single byte, got %q", delim)
	}
	s.Extract.Delimiter = delim[0]

	s.Transform.Pretty = v.GetBool(KeyPretty)
	s.Transform.EOL = unescapeEOL(v.GetString(KeyEOL))
	s.Transform.Level = v.GetString(KeyLevel)

	s.Load.BatchSize = v.GetInt(KeyBatchSize)
	s.Load.CredentialsFile = v.GetString(KeyCredentials)

	s.BufferSize = v.GetInt(KeyBufferSize)
	s.Log.Level = v.GetString(KeyLogLevel)
	s.Log.Format = v.GetString(KeyLogFormat)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromEnv resolves Settings from the environment alone.
func FromEnv() (*Settings, error) {
	return FromViper(NewViper())
}

// Validate checks the settings for values no component can work with.
func (s *Settings) Validate() error {
	if s.Extract.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.Extract.ChunkSize)
	}
	if s.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", s.BufferSize)
	}
	if s.Load.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", s.Load.BatchSize)
	}
	if s.Extract.OAuth2.ClientID != "" && s.Extract.OAuth2.TokenURL == "" {
		return fmt.Errorf("oauth2 client id given without a token url")
	}
	switch s.Transform.Level {
	case "fastest", "default", "better", "best":
	default:
		return fmt.Errorf("unknown compression level %q", s.Transform.Level)
	}
	return nil
}

// HeadersFromEnv collects ETL_E_HEADER_<NAME>=<value> entries from an
// environment listing. Names keep their spelling; values are trimmed.
func HeadersFromEnv(environ []string) map[string]string {
	headers := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, HeaderEnvPrefix) || len(key) == len(HeaderEnvPrefix) {
			continue
		}
		headers[strings.TrimPrefix(key, HeaderEnvPrefix)] = strings.TrimSpace(value)
	}
	return headers
}

// List normalises a comma-separated string or a list value into trimmed,
// non-empty strings. It never returns nil for a present value.
func List(value interface{}) []string {
	out := []string{}
	add := func(s string) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	switch x := value.(type) {
	case nil:
		return nil
	case string:
		add(x)
	case []string:
		for _, s := range x {
			add(s)
		}
	case []interface{}:
		for _, s := range x {
			add(fmt.Sprint(s))
		}
	default:
		add(fmt.Sprint(x))
	}
	return out
}

// unescapeEOL lets line endings be written as \n or \r\n in env files.
func unescapeEOL(s string) string {
	return strings.NewReplacer(`\r`, "\r", `\n`, "\n").Replace(s)
}

// Default returns the settings used when nothing is configured.
func Default() *Settings {
	return &Settings{
		Extract: ExtractSettings{
			ChunkSize: DefaultChunk,
			Delimiter: ',',
			Headers:   map[string]string{},
			Timeout:   DefaultTimeout,
		},
		Transform:  TransformSettings{EOL: DefaultEOL(), Level: "default"},
		Load:       LoadSettings{BatchSize: DefaultBatch},
		BufferSize: 16,
		Log:        LogSettings{Level: DefaultLogLevel, Format: "console"},
	}
}
