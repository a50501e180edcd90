package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/goccy/go-yaml"
)

const (
	DefaultInitialPhase = PhaseRed
	DefaultMinHold      = 4000 * time.Millisecond
	DefaultMaxHold      = 6000 * time.Millisecond
	DefaultYield        = 1 * time.Millisecond
	DefaultHookTimeout  = 5 * time.Second
)

type Config struct {
	Cycler *CyclerConfig `yaml:"cycler"`
	Hooks  *HooksConfig  `yaml:"hooks"`
}

// CyclerConfig controls how long each phase is held.
// A hold is drawn uniformly from [MinHold, MaxHold].
type CyclerConfig struct {
	InitialPhase Phase         `yaml:"initial_phase"`
	MinHold      time.Duration `yaml:"min_hold"`
	MaxHold      time.Duration `yaml:"max_hold"`
	Yield        time.Duration `yaml:"yield"`
}

type HooksConfig struct {
	OnGreen *HookConfig `yaml:"on_green"`
	OnRed   *HookConfig `yaml:"on_red"`
}

// HookConfig describes an action taken when the consumer observes a phase.
// Exactly one of Run and HTTP is set.
type HookConfig struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`

	Run  string          `yaml:"run"`
	HTTP *HTTPHookConfig `yaml:"http"`
}

func NewDefaultCyclerConfig() *CyclerConfig {
	return &CyclerConfig{
		InitialPhase: DefaultInitialPhase,
		MinHold:      DefaultMinHold,
		MaxHold:      DefaultMaxHold,
		Yield:        DefaultYield,
	}
}

func (c *CyclerConfig) Validate() error {
	var errs error
	if !c.InitialPhase.Valid() {
		errs = errors.Join(errs, fmt.Errorf("invalid initial_phase %q", c.InitialPhase))
	}
	if c.MinHold <= 0 {
		errs = errors.Join(errs, fmt.Errorf("min_hold must be positive: %s", c.MinHold))
	}
	if c.MaxHold < c.MinHold {
		errs = errors.Join(errs, fmt.Errorf("max_hold %s must not be less than min_hold %s", c.MaxHold, c.MinHold))
	}
	if c.Yield < 0 {
		errs = errors.Join(errs, fmt.Errorf("yield must not be negative: %s", c.Yield))
	}
	return errs
}

// LoadConfig reads a YAML config from src. An empty src returns the defaults.
func LoadConfig(ctx context.Context, src string) (*Config, error) {
	config := &Config{
		Cycler: NewDefaultCyclerConfig(),
		Hooks:  &HooksConfig{},
	}
	if src != "" {
		b, err := loadURL(ctx, src)
		if err != nil {
			return nil, err
		}
		if err = yaml.Unmarshal(b, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", src, err)
		}
	}
	if config.Cycler == nil {
		config.Cycler = NewDefaultCyclerConfig()
	}
	if config.Hooks == nil {
		config.Hooks = &HooksConfig{}
	}
	if config.Cycler.InitialPhase == "" {
		config.Cycler.InitialPhase = DefaultInitialPhase
	}
	if config.Cycler.MinHold == 0 && config.Cycler.MaxHold == 0 {
		config.Cycler.MinHold = DefaultMinHold
		config.Cycler.MaxHold = DefaultMaxHold
	}
	for name, h := range map[string]*HookConfig{"on_green": config.Hooks.OnGreen, "on_red": config.Hooks.OnRed} {
		if h == nil {
			continue
		}
		if h.Name == "" {
			h.Name = name
		}
		if h.Timeout == 0 {
			h.Timeout = DefaultHookTimeout
		}
	}
	if err := config.Cycler.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cycler config: %w", err)
	}
	return config, nil
}

func loadURL(ctx context.Context, s string) ([]byte, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", s, err)
	}
	switch u.Scheme {
	case "http", "https":
		return loadHTTP(ctx, u)
	case "file", "": // empty scheme is treated as file
		return os.ReadFile(u.Path)
	case "s3":
		return loadS3(ctx, u)
	default:
		return nil, fmt.Errorf("invalid url %s: scheme must be http, https, file, or s3", s)
	}
}

func loadHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http get failed: %s %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func loadS3(ctx context.Context, u *url.URL) ([]byte, error) {
	awscfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	svc := s3.NewFromConfig(awscfg)
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	out, err := svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object failed: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
