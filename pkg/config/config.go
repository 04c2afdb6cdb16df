// Package config holds the run configuration: a YAML file over built-in
// defaults, with credentials taken from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/andrej220/netsurvey/pkg/config/configstore"
	"github.com/andrej220/netsurvey/pkg/config/filestore"
	"github.com/andrej220/netsurvey/pkg/executor"
	"github.com/go-playground/validator/v10"
	"github.com/subosito/gotenv"
)

const (
	DefaultHostsFile     = "ip.txt"
	DefaultReferenceFile = "com_table.xlsx"
	DefaultOutputDir     = "logs"
	DefaultReportDir     = "."
	DefaultUsername      = "login"
	DefaultPassword      = "password"

	EnvUsername = "DEVICE_USERNAME"
	EnvPassword = "DEVICE_PASSWORD"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// envFile is read for credentials before the process environment.
var envFile = ".env"

var validate = validator.New()

func init() {
	// Register custom validations
	_ = validate.RegisterValidation("broker", validateBroker)
}

// validateBroker accepts host:port addresses.
func validateBroker(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	return err == nil && host != "" && port != ""
}

type Credentials struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

type Session struct {
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
	LoopDelay       time.Duration `yaml:"loop_delay" json:"loop_delay" validate:"gt=0"`
	DelayFactor     float64       `yaml:"delay_factor" json:"delay_factor" validate:"gt=0"`
	FastCLI         bool          `yaml:"fast_cli" json:"fast_cli"`
	MaxSendFailures uint32        `yaml:"max_send_failures" json:"max_send_failures" validate:"min=1"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" json:"brokers" validate:"omitempty,dive,broker"`
	Topic   string   `yaml:"topic" json:"topic" validate:"required_with=Brokers"`
	GroupID string   `yaml:"group_id" json:"group_id" validate:"required_with=Brokers"`
}

type Mongo struct {
	URI        string `yaml:"uri" json:"uri" validate:"omitempty,uri"`
	Database   string `yaml:"database" json:"database" validate:"required_with=URI"`
	Collection string `yaml:"collection" json:"collection" validate:"required_with=URI"`
}

type Log struct {
	Debug  bool   `yaml:"debug" json:"debug"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=json console"`
}

type Config struct {
	HostsFile     string      `yaml:"hosts_file" json:"hosts_file" validate:"required"`
	ReferenceFile string      `yaml:"reference_file" json:"reference_file" validate:"required"`
	OutputDir     string      `yaml:"output_dir" json:"output_dir" validate:"required"`
	ReportDir     string      `yaml:"report_dir" json:"report_dir" validate:"required"`
	Credentials   Credentials `yaml:"credentials" json:"credentials"`
	Session       Session     `yaml:"session" json:"session"`
	Kafka         Kafka       `yaml:"kafka" json:"kafka"`
	Mongo         Mongo       `yaml:"mongo" json:"mongo"`
	Log           Log         `yaml:"log" json:"log"`
}

func Default() Config {
	p := executor.DefaultProfile()
	return Config{
		HostsFile:     DefaultHostsFile,
		ReferenceFile: DefaultReferenceFile,
		OutputDir:     DefaultOutputDir,
		ReportDir:     DefaultReportDir,
		Credentials:   Credentials{Username: DefaultUsername, Password: DefaultPassword},
		Session: Session{
			Port:            p.Port,
			ConnectTimeout:  p.ConnectTimeout,
			ReadTimeout:     p.ReadTimeout,
			LoopDelay:       p.LoopDelay,
			DelayFactor:     p.DelayFactor,
			FastCLI:         p.FastCLI,
			MaxSendFailures: p.MaxSendFailures,
		},
		Kafka: Kafka{Topic: "netsurvey-results", GroupID: "netsurvey-tail"},
		Mongo: Mongo{Database: "netsurvey", Collection: "runs"},
		Log:   Log{Format: "json"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), the .env file in the working directory and the process
// environment, in that order, then validates it.
func Load(path string) (Config, error) {
	var store configstore.ConfigStore
	if path != "" {
		store = filestore.New(path)
	}
	return LoadFrom(store)
}

func LoadFrom(store configstore.ConfigStore) (Config, error) {
	cfg := Default()
	if store != nil {
		if err := store.Load(&cfg); err != nil {
			return Config{}, err
		}
	}
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides credentials from the environment. Empty values fall back
// to the defaults.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvUsername); ok {
		c.Credentials.Username = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Credentials.Password = v
	}
	if c.Credentials.Username == "" {
		c.Credentials.Username = DefaultUsername
	}
	if c.Credentials.Password == "" {
		c.Credentials.Password = DefaultPassword
	}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Save writes c as YAML to path.
func Save(path string, c Config) error {
	return filestore.New(path).Save(c)
}

func (c Config) Profile() executor.Profile {
	return executor.Profile{
		Port:            c.Session.Port,
		ConnectTimeout:  c.Session.ConnectTimeout,
		ReadTimeout:     c.Session.ReadTimeout,
		LoopDelay:       c.Session.LoopDelay,
		DelayFactor:     c.Session.DelayFactor,
		FastCLI:         c.Session.FastCLI,
		MaxSendFailures: c.Session.MaxSendFailures,
	}
}

func (c Config) DeviceCredentials() executor.Credentials {
	return executor.Credentials{Username: c.Credentials.Username, Password: c.Credentials.Password}
}

// KafkaEnabled reports whether results are published.
func (c Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

// MongoEnabled reports whether runs are stored.
func (c Config) MongoEnabled() bool { return c.Mongo.URI != "" }
