package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/agenda/internal/credential"
)

// Sealer seals and opens secret values.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

type key struct {
	get    func(c *Config) string
	set    func(c *Config, v string) error
	secret bool
}

var keys = map[string]key{
	"data.backend": {
		get: func(c *Config) string { return c.Data.Backend },
		set: func(c *Config, v string) error { c.Data.Backend = v; return nil },
	},
	"data.sqlite_path": {
		get: func(c *Config) string { return c.Data.SQLitePath },
		set: func(c *Config, v string) error { c.Data.SQLitePath = v; return nil },
	},
	"data.mongo_uri": {
		get:    func(c *Config) string { return c.Data.MongoURI },
		set:    func(c *Config, v string) error { c.Data.MongoURI = v; return nil },
		secret: true,
	},
	"data.mongo_database": {
		get: func(c *Config) string { return c.Data.MongoDatabase },
		set: func(c *Config, v string) error { c.Data.MongoDatabase = v; return nil },
	},
	"memory.path": {
		get: func(c *Config) string { return c.Memory.Path },
		set: func(c *Config, v string) error { c.Memory.Path = v; return nil },
	},
	"memory.max_entries": {
		get: func(c *Config) string { return strconv.Itoa(c.Memory.MaxEntries) },
		set: func(c *Config, v string) error { return setInt(&c.Memory.MaxEntries, v) },
	},
	"memory.session_max_age": {
		get: func(c *Config) string { return c.Memory.SessionMaxAge.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Memory.SessionMaxAge, v) },
	},
	"memory.cleanup_interval": {
		get: func(c *Config) string { return c.Memory.CleanupInterval.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Memory.CleanupInterval, v) },
	},
	"memory.default_session": {
		get: func(c *Config) string { return c.Memory.DefaultSession },
		set: func(c *Config, v string) error { c.Memory.DefaultSession = v; return nil },
	},
	"confirm.pending_ttl": {
		get: func(c *Config) string { return c.Confirm.PendingTTL.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Confirm.PendingTTL, v) },
	},
	"confirm.sweep_interval": {
		get: func(c *Config) string { return c.Confirm.SweepInterval.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Confirm.SweepInterval, v) },
	},
	"guard.allowed_operations": {
		get: func(c *Config) string { return strings.Join(c.Guard.AllowedOperations, ",") },
		set: func(c *Config, v string) error {
			var patterns []string
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					patterns = append(patterns, p)
				}
			}
			c.Guard.AllowedOperations = patterns
			return nil
		},
	},
	"guard.read_only": {
		get: func(c *Config) string { return strconv.FormatBool(c.Guard.ReadOnly) },
		set: func(c *Config, v string) error { return setBool(&c.Guard.ReadOnly, v) },
	},
	"guard.max_pending": {
		get: func(c *Config) string { return strconv.Itoa(c.Guard.MaxPending) },
		set: func(c *Config, v string) error { return setInt(&c.Guard.MaxPending, v) },
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error { return setBool(&c.Log.JSON, v) },
	},
	"log.verbose": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Verbose) },
		set: func(c *Config, v string) error { return setBool(&c.Log.Verbose, v) },
	},
}

// Keys lists every settable key.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsSecret reports whether the key holds a sealed value.
func IsSecret(name string) bool {
	return keys[name].secret
}

// Set changes one key in the file at path. Secret values are sealed before
// they are written. The result must still validate.
func Set(path, name, value string, sealer Sealer) error {
	k, ok := keys[name]
	if !ok {
		return fmt.Errorf("unknown config key %q (known: %s)", name, strings.Join(Keys(), ", "))
	}
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	if err := k.set(cfg, value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if res := Validate(cfg); !res.Valid {
		return fmt.Errorf("invalid configuration: %s", strings.Join(res.Errors, "; "))
	}
	if k.secret && value != "" {
		if sealer == nil {
			return fmt.Errorf("%s is a secret and needs a sealer", name)
		}
		sealed, err := sealer.Seal(value)
		if err != nil {
			return fmt.Errorf("failed to seal %s: %w", name, err)
		}
		if err := k.set(cfg, sealed); err != nil {
			return err
		}
	}
	return Save(path, cfg)
}

// Get returns the value of one key. Secrets are masked.
func Get(cfg *Config, name string, sealer Sealer) (string, error) {
	k, ok := keys[name]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", name)
	}
	v := k.get(cfg)
	if !k.secret || v == "" {
		return v, nil
	}
	if sealer != nil {
		if opened, err := sealer.Open(v); err == nil {
			v = opened
		}
	}
	return credential.Mask(v), nil
}

// Unseal opens every sealed secret in cfg in place.
func Unseal(cfg *Config, sealer Sealer) error {
	for name, k := range keys {
		if !k.secret {
			continue
		}
		v := k.get(cfg)
		if !credential.IsSealed(v) {
			continue
		}
		if sealer == nil {
			return fmt.Errorf("%s is sealed but no sealer is available", name)
		}
		opened, err := sealer.Open(v)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		if err := k.set(cfg, opened); err != nil {
			return err
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("expected an integer, got %q", v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", v)
	}
	*dst = b
	return nil
}

func setDuration(dst *Duration, v string) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("expected a duration such as 5m, got %q", v)
	}
	*dst = Duration(d)
	return nil
}
