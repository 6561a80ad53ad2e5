package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// Config is the validated runtime configuration.
type Config struct {
	CountryCode  string
	RegionID     string
	Database     string
	Session      string
	CacheTTL     time.Duration
	InventoryTTL time.Duration
	LogLevel     slog.Level
}

// file mirrors #Config field for field; durations stay strings until parsed.
type file struct {
	CountryCode  string `json:"country_code"`
	RegionID     string `json:"region_id"`
	Database     string `json:"database"`
	Session      string `json:"session"`
	CacheTTL     string `json:"cache_ttl"`
	InventoryTTL string `json:"inventory_ttl"`
	LogLevel     string `json:"log_level"`
}

// Error is a configuration error with the CUE position when one is known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the configuration of an empty file.
func Default() Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		// The embedded schema is fixed, so only a broken build gets here.
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and validates the file at path. An empty path yields Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data against the schema. filename is used in error positions.
func Parse(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var raw file
	if err := unified.Decode(&raw); err != nil {
		return Config{}, formatCUEError(err)
	}
	return raw.resolve()
}

func (f file) resolve() (Config, error) {
	cacheTTL, err := time.ParseDuration(f.CacheTTL)
	if err != nil {
		return Config{}, &Error{Field: "cache_ttl", Message: err.Error()}
	}
	inventoryTTL, err := time.ParseDuration(f.InventoryTTL)
	if err != nil {
		return Config{}, &Error{Field: "inventory_ttl", Message: err.Error()}
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.LogLevel)); err != nil {
		return Config{}, &Error{Field: "log_level", Message: err.Error()}
	}
	return Config{
		CountryCode:  f.CountryCode,
		RegionID:     f.RegionID,
		Database:     f.Database,
		Session:      f.Session,
		CacheTTL:     cacheTTL,
		InventoryTTL: inventoryTTL,
		LogLevel:     level,
	}, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "config"
	if path := first.Path(); len(path) > 0 {
		field = path[len(path)-1]
	}
	msg := first.Error()
	out := &Error{Field: field, Message: msg}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
