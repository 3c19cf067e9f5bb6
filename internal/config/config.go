// Package config loads metacore settings: built-in defaults, then an
// optional YAML file, then METACORE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"metacore/internal/blob"
	"metacore/internal/persistence"
	"metacore/pkg/facet"
	"metacore/pkg/metamodel"
	"metacore/pkg/metamodel/factory"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "metacore.yaml"

// ErrInvalid wraps every validation problem.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete metacore configuration.
type Config struct {
	Introspection Introspection      `yaml:"introspection"`
	Deployment    string             `yaml:"deployment"`
	Naming        factory.Naming     `yaml:"naming"`
	Publishing    bool               `yaml:"publishing"`
	Blob          blob.Config        `yaml:"blob"`
	History       persistence.Config `yaml:"history"`
	HTTP          HTTP               `yaml:"http"`
	Log           Log                `yaml:"log"`
	DevMode       DevMode            `yaml:"devmode"`
}

// Introspection selects the types that make up the metamodel.
type Introspection struct {
	// Mode is full, lazy or lazy_unless_production.
	Mode string `yaml:"mode"`
	// Dir and Patterns locate the Go packages read by source introspection.
	Dir      string   `yaml:"dir"`
	Patterns []string `yaml:"patterns"`
	// Include and Exclude are doublestar globs over type keys such as
	// example.com/shop.Customer. Exclude wins.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// HTTP configures the inspection server.
type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Log configures logrus.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DevMode configures the source watcher that invalidates cached
// specifications.
type DevMode struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Introspection: Introspection{
			Mode:     string(metamodel.ModeLazyUnlessProduction),
			Dir:      ".",
			Patterns: []string{"./..."},
		},
		Deployment: string(facet.Prototyping),
		Naming:     factory.DefaultNaming(),
		Blob:       blob.Config{Driver: "fs", Root: "./metacore-data/blobs"},
		History:    persistence.Config{Driver: "sqlite", Path: "./metacore-data/history.db"},
		HTTP:       HTTP{Addr: ":8480", ShutdownTimeout: 10 * time.Second},
		Log:        Log{Level: "info", Format: "text"},
		DevMode:    DevMode{Debounce: 300 * time.Millisecond},
	}
}

// Load layers defaults, the YAML file at path and the process environment,
// then validates. An empty path reads DefaultFile when it exists.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.Decode(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays YAML from r onto c. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Encode writes c as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// ApplyEnv overlays METACORE_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup("METACORE_" + name); ok {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup("METACORE_" + name); ok {
			*dst = splitList(v)
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup("METACORE_" + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("METACORE_%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup("METACORE_" + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("METACORE_%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("MODE", &c.Introspection.Mode)
	str("DIR", &c.Introspection.Dir)
	list("PATTERNS", &c.Introspection.Patterns)
	list("INCLUDE", &c.Introspection.Include)
	list("EXCLUDE", &c.Introspection.Exclude)
	str("DEPLOYMENT", &c.Deployment)
	boolean("PUBLISHING", &c.Publishing)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_ROOT", &c.Blob.Root)
	str("BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("BLOB_S3_PREFIX", &c.Blob.S3.Prefix)
	boolean("BLOB_S3_PATH_STYLE", &c.Blob.S3.PathStyle)
	str("HISTORY_DRIVER", &c.History.Driver)
	str("HISTORY_PATH", &c.History.Path)
	str("HISTORY_DSN", &c.History.DSN)
	str("HTTP_ADDR", &c.HTTP.Addr)
	duration("HTTP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	boolean("DEVMODE", &c.DevMode.Enabled)
	duration("DEVMODE_DEBOUNCE", &c.DevMode.Debounce)
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	if _, err := metamodel.ParseMode(c.Introspection.Mode); err != nil {
		problems = append(problems, err.Error())
	}
	switch facet.DeploymentType(c.Deployment) {
	case facet.Prototyping, facet.Production:
	default:
		problems = append(problems, fmt.Sprintf("deployment must be prototyping or production, got %q", c.Deployment))
	}
	for _, pattern := range slices.Concat(c.Introspection.Include, c.Introspection.Exclude) {
		if !doublestar.ValidatePattern(pattern) {
			problems = append(problems, fmt.Sprintf("bad type pattern %q", pattern))
		}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		problems = append(problems, "blob.s3.bucket is required for the s3 driver")
	}
	if c.History.Driver == "postgres" && c.History.DSN == "" {
		problems = append(problems, "history.dsn is required for the postgres driver")
	}
	if c.DevMode.Debounce < 0 {
		problems = append(problems, "devmode.debounce must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Mode returns the parsed introspection mode. Call after Validate.
func (c *Config) Mode() metamodel.Mode {
	mode, _ := metamodel.ParseMode(c.Introspection.Mode)
	return mode
}

// Selects reports whether the type key passes the include and exclude
// patterns.
func (i Introspection) Selects(key string) bool {
	for _, pattern := range i.Exclude {
		if ok, _ := doublestar.Match(pattern, key); ok {
			return false
		}
	}
	if len(i.Include) == 0 {
		return true
	}
	for _, pattern := range i.Include {
		if ok, _ := doublestar.Match(pattern, key); ok {
			return true
		}
	}
	return false
}
