// Package config assembles pipelines and broker routes from YAML.
//
// A configuration names pipelines as ordered stage lists, each stage a
// registered plug name with an optional options map, plus the outgoing and
// incoming routes that reference them. Values load from a file with
// GOPLUG_-prefixed environment overrides ("__" separates nesting, so
// GOPLUG_BROKER__URL overrides broker.url).
//
// For the component configs that never appear in the pipeline file, such as
// transport Config structs built in code, LoadEnv overlays GOPLUG_-prefixed
// variables directly onto the struct fields.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/broker"
)

// EnvPrefix marks environment variables that override file values.
const EnvPrefix = "GOPLUG_"

// Config is the root configuration document.
type Config struct {
	Broker    BrokerConfig              `koanf:"broker"`
	Pipelines map[string]PipelineConfig `koanf:"pipelines"`
	Outgoing  []OutgoingConfig          `koanf:"outgoing"`
	Incoming  []IncomingConfig          `koanf:"incoming"`
}

// BrokerConfig carries transport selection for the caller to act on; the
// package does not dial anything itself.
type BrokerConfig struct {
	// Transport names the transport to run on: "memory", "nats", "kafka",
	// "amqp", or "redis".
	Transport string `koanf:"transport"`
	// URL is the server address for transports that take one.
	URL string `koanf:"url"`
	// Codec selects the wire format: "envelope" (default) or "cloudevents".
	Codec string `koanf:"codec"`
	// BufferSize is passed through to the transport.
	BufferSize int `koanf:"buffer_size"`
}

// PipelineConfig is an ordered list of stages.
type PipelineConfig struct {
	Stages []StageConfig `koanf:"stages"`
}

// StageConfig references a registered plug by name.
type StageConfig struct {
	Use     string         `koanf:"use"`
	Options map[string]any `koanf:"options"`
}

// OutgoingConfig declares a publication.
type OutgoingConfig struct {
	Name        string   `koanf:"name"`
	Destination string   `koanf:"destination"`
	PipeThrough []string `koanf:"pipe_through"`
}

// IncomingConfig declares a subscription. Handler names a handler supplied
// to Apply.
type IncomingConfig struct {
	Name        string   `koanf:"name"`
	Source      string   `koanf:"source"`
	Handler     string   `koanf:"handler"`
	PipeThrough []string `koanf:"pipe_through"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// BuildPipelines builds every configured pipeline, resolving stage names
// against reg. A nil reg means the package default registry.
func (c *Config) BuildPipelines(reg *goplug.Registry) (map[string]*goplug.Pipeline, error) {
	if reg == nil {
		reg = goplug.DefaultRegistry()
	}
	pipelines := make(map[string]*goplug.Pipeline, len(c.Pipelines))
	for name, pc := range c.Pipelines {
		b := goplug.NewBuilder(name, goplug.WithRegistry(reg))
		for _, stage := range pc.Stages {
			if stage.Options != nil {
				b.Use(stage.Use, stage.Options)
			} else {
				b.Use(stage.Use)
			}
		}
		p, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("config: pipeline %q: %w", name, err)
		}
		pipelines[name] = p
	}
	return pipelines, nil
}

// Apply builds the configured pipelines and registers them with every
// outgoing and incoming route on b. Incoming handlers are looked up by name
// in handlers.
func (c *Config) Apply(b *broker.Broker, reg *goplug.Registry, handlers map[string]goplug.Handler) error {
	pipelines, err := c.BuildPipelines(reg)
	if err != nil {
		return err
	}
	for name, p := range pipelines {
		if err := b.Pipeline(name, p); err != nil {
			return err
		}
	}
	for _, out := range c.Outgoing {
		if err := b.Outgoing(out.Name, out.Destination, out.PipeThrough...); err != nil {
			return err
		}
	}
	for _, in := range c.Incoming {
		h, ok := handlers[in.Handler]
		if !ok {
			return fmt.Errorf("config: incoming %q: unknown handler %q", in.Name, in.Handler)
		}
		if err := b.Incoming(in.Name, in.Source, h, in.PipeThrough...); err != nil {
			return err
		}
	}
	return nil
}
