package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/infosec-us-team/ibb/internal/api"
	"github.com/infosec-us-team/ibb/internal/exit"
	"github.com/infosec-us-team/ibb/internal/output"
	"github.com/infosec-us-team/ibb/internal/query"
	"github.com/infosec-us-team/ibb/internal/value"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests.
	DefaultTimeout = 30 * time.Second

	EnvBaseURL = "IBB_BASE_URL"
	EnvTimeout = "IBB_TIMEOUT"
)

// Version is stamped at build time with -ldflags "-X ...config.Version=...".
var Version = "dev"

var (
	ErrNoArguments      = errors.New("no arguments provided")
	ErrEmptyTag         = errors.New("tag name cannot be empty")
	ErrInvalidTimeout   = errors.New("timeout must be positive")
	ErrInvalidRateLimit = errors.New("rate limit cannot be negative")
	ErrInvalidMaxDepth  = errors.New("max depth out of range")
	ErrInvalidMaxBody   = errors.New("max body must be positive")
	ErrInvalidBaseURL   = errors.New("base URL must be an absolute http(s) URL")
	ErrUnknownColorMode = errors.New("unknown color mode")
)

// ColorMode decides when JSON output is colored.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("%w: %q (want auto, always or never)", ErrUnknownColorMode, s)
	}
}

// Config represents the complete configuration for the ibb tool.
type Config struct {
	// Query holds the positional arguments: a program slug followed by
	// field names, or only field names when InputFile is set.
	Query     []string
	InputFile string // "-" reads stdin

	// Output
	Format    output.Format
	TagFormat output.TagFormat
	Tag       string
	Color     ColorMode
	Debug     bool

	// HTTP client configuration
	BaseURL        string
	Insecure       bool
	CACertFile     string
	RequestTimeout time.Duration
	RateLimit      float64 // Requests per second (0 = unlimited)

	// Limits
	MaxDepth     int
	MaxBodyBytes int64
}

// Program returns the program slug named on the command line, if any.
func (c *Config) Program() string {
	if c.InputFile != "" || len(c.Query) == 0 {
		return ""
	}
	return c.Query[0]
}

// Fields returns the field path to resolve.
func (c *Config) Fields() []string {
	if c.InputFile != "" {
		return c.Query
	}
	if len(c.Query) < 2 {
		return nil
	}
	return c.Query[1:]
}

// TLSConfig returns a TLS configuration based on the config settings.
func (c *Config) TLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.Insecure,
	}

	if c.CACertFile != "" {
		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}

		caCert, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", c.CACertFile, err)
		}

		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", c.CACertFile)
		}

		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// HTTPClient creates an HTTP client configured with the settings from this Config.
func (c *Config) HTTPClient() (*http.Client, error) {
	tlsConfig, err := c.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: c.RequestTimeout,
		Transport: &http.Transport{
			Proxy:                  http.ProxyFromEnvironment,
			DialContext:            dialer.DialContext,
			TLSClientConfig:        tlsConfig,
			TLSHandshakeTimeout:    10 * time.Second,
			ResponseHeaderTimeout:  c.RequestTimeout,
			IdleConnTimeout:        30 * time.Second,
			MaxIdleConns:           4,
			ForceAttemptHTTP2:      true,
			MaxResponseHeaderBytes: 1 << 20, // 1 MiB
		},
	}, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.InputFile != "" && c.InputFile != "-" {
		if _, err := os.Stat(c.InputFile); err != nil {
			return fmt.Errorf("input file %s not found: %w", c.InputFile, err)
		}
	}

	if c.CACertFile != "" {
		if _, err := os.Stat(c.CACertFile); err != nil {
			return fmt.Errorf("CA certificate file %s not found: %w", c.CACertFile, err)
		}
	}

	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w, got: %s", ErrInvalidBaseURL, c.BaseURL)
	}

	if strings.TrimSpace(c.Tag) == "" {
		return ErrEmptyTag
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w, got: %s", ErrInvalidTimeout, c.RequestTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w, got: %g", ErrInvalidRateLimit, c.RateLimit)
	}
	if c.MaxDepth < 0 || c.MaxDepth > value.HardMaxDepth {
		return fmt.Errorf("%w (want 0 to %d), got: %d", ErrInvalidMaxDepth, value.HardMaxDepth, c.MaxDepth)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w, got: %d", ErrInvalidMaxBody, c.MaxBodyBytes)
	}

	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// getenv supplies defaults for IBB_BASE_URL and IBB_TIMEOUT; flags win.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string, getenv func(string) string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Usagef("Error: %v\n\n%s", ErrNoArguments, Usage())
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	defaultBaseURL := api.DefaultBaseURL
	if env := strings.TrimSpace(getenv(EnvBaseURL)); env != "" {
		defaultBaseURL = env
	}

	defaultTimeout := DefaultTimeout
	if env := strings.TrimSpace(getenv(EnvTimeout)); env != "" {
		d, err := time.ParseDuration(env)
		if err != nil {
			return nil, exit.Usagef("Error: invalid %s: %v\n\n%s", EnvTimeout, err, Usage())
		}
		defaultTimeout = d
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	// Suppress the default usage output since we handle it ourselves
	fs.Usage = func() {}
	// Suppress error output since we handle it ourselves
	fs.SetOutput(io.Discard)

	var (
		baseURL    = fs.String("base-url", defaultBaseURL, "Base URL of the program mirror")
		inputFile  = fs.String("input", "", "Read the document from a file (- for stdin) instead of fetching it")
		format     = fs.String("format", "auto", "Output format: auto, compact, pretty or yaml")
		tagsFormat = fs.String("tags-format", "list", "Program list format: list, lines or json")
		tag        = fs.String("tag", query.DefaultTag, "Field collected when listing programs")
		color      = fs.String("color", "auto", "Colorize JSON output: auto, always or never")
		debug      = fs.Bool("debug", false, "Enable debug logging on stderr")
		insecure   = fs.Bool("insecure", false, "Skip TLS certificate verification")
		caCertFile = fs.String("cacert", "", "Path to CA certificate file for TLS verification")
		timeout    = fs.Duration("timeout", defaultTimeout, "HTTP request timeout")
		rateLimit  = fs.Float64("rate-limit", 0, "Rate limit in requests per second (0 for unlimited)")
		maxDepth   = fs.Int("max-depth", value.DefaultMaxDepth, "Maximum document nesting depth (0 selects the 100000 ceiling)")
		maxBody    = fs.Int64("max-body", api.DefaultMaxBodyBytes, "Maximum response body size in bytes")
		version    = fs.Bool("version", false, "Show version information")
	)
	fs.BoolVar(version, "v", false, "Show version information")

	positional, err := parseInterspersed(fs, args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Usagef("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	if *version {
		return nil, exit.Success("ibb " + Version)
	}

	outputFormat, err := output.ParseFormat(*format)
	if err != nil {
		return nil, exit.Usagef("Error: %v\n\n%s", err, Usage())
	}
	tagFormat, err := output.ParseTagFormat(*tagsFormat)
	if err != nil {
		return nil, exit.Usagef("Error: %v\n\n%s", err, Usage())
	}
	colorMode, err := ParseColorMode(*color)
	if err != nil {
		return nil, exit.Usagef("Error: %v\n\n%s", err, Usage())
	}

	config := &Config{
		Query:          positional,
		InputFile:      *inputFile,
		Format:         outputFormat,
		TagFormat:      tagFormat,
		Tag:            *tag,
		Color:          colorMode,
		Debug:          *debug,
		BaseURL:        strings.TrimSpace(*baseURL),
		Insecure:       *insecure,
		CACertFile:     *caCertFile,
		RequestTimeout: *timeout,
		RateLimit:      *rateLimit,
		MaxDepth:       *maxDepth,
		MaxBodyBytes:   *maxBody,
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Usagef("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// parseInterspersed lets flags appear before, between or after positional
// arguments. Everything after a "--" terminator is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	positional := []string{}
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}

		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}

		consumed := len(args) - len(rest)
		if terminated(fs, args[:consumed]) {
			return append(positional, rest...), nil
		}

		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// terminated reports whether parsing args stopped at a "--" terminator. A
// "--" taken as the value of a flag such as --tag does not count.
func terminated(fs *flag.FlagSet, args []string) bool {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return true
		}

		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			continue
		}
		i++
	}
	return false
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `ibb - like jq for Immunefi's bug bounty programs

Search, filter and map structured data about bug bounty programs.

Usage: ibb [options] [program] [field] [nested_field] ...

Options:
  --base-url URL          Base URL of the program mirror (env IBB_BASE_URL)
  --input FILE            Query a local document instead of fetching one (- for stdin)
  --format FORMAT         Output format: auto, compact, pretty or yaml (default: auto)
  --tags-format FORMAT    Program list format: list, lines or json (default: list)
  --tag NAME              Field collected when listing programs (default: slug)
  --color WHEN            Colorize JSON output: auto, always or never (default: auto)
  --timeout DURATION      HTTP request timeout (default: 30s, env IBB_TIMEOUT)
  --rate-limit N          Rate limit in requests per second (0 for unlimited)
  --insecure              Skip TLS certificate verification
  --cacert FILE           Path to CA certificate file for TLS verification
  --max-depth N           Maximum document nesting depth (default: 10000, 0 for the 100000 ceiling)
  --max-body BYTES        Maximum response body size (default: 67108864)
  --debug                 Enable debug logging on stderr
  -h, --help              Show this help message
  -v, --version           Show version information

Examples:
  ibb                                    # List the slug of every bug bounty program
  ibb moonbeamnetwork                    # All details about Moonbeam Network's program
  ibb moonbeamnetwork assets             # Only assets in scope and their metadata
  ibb moonbeamnetwork assets url         # Only asset URLs
  ibb 0x programDocumentations           # Protocol documentation listed by 0x
  ibb moonbeamnetwork bounty impacts title
                                         # Filter as deep as needed with nested fields
  ibb --format yaml 0x assets            # Render the result as YAML
  ibb --input program.json assets url    # Query a saved document

Any field returned for a program is found recursively:
  ibb [any_program] [any_field] [nested_field_1] [nested_field_2] ...`
}
