package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds connection and alarm-evaluation parameters shared by the binaries.
type Config struct {
	// MongoURI is the CosmosDB (Mongo API) connection string.
	// CosmosDB options such as retryWrites=false belong in the URI itself.
	MongoURI string `yaml:"mongo_uri"`
	// Database is the database holding the gateway documents.
	Database string `yaml:"database"`
	// Collection is the collection the OPC-UA gateway writes into.
	Collection string `yaml:"collection"`
	// AlarmField is the document field carrying the alarm flag,
	// e.g. "Test2OPCUA:CommonAlarm".
	AlarmField string `yaml:"alarm_field"`
	// ActiveSentinel is the raw value meaning "alarm active".
	ActiveSentinel int64 `yaml:"active_sentinel"`
	// TimestampField is the document field carrying the sample time as a
	// unit-less number. Optional; an absent or unparseable value is treated
	// as not stale so a real alarm is never suppressed by a bad clock.
	TimestampField string `yaml:"timestamp_field"`

	// PhoneNumberToCall is the destination number in E.164 format.
	PhoneNumberToCall string `yaml:"phone_number_to_call"`
	// PhoneNumberFrom is the ACS-owned caller id number in E.164 format.
	PhoneNumberFrom string `yaml:"phone_number_from"`
	// ACSConnectionString is the Azure Communication Services connection
	// string ("endpoint=https://...;accesskey=...").
	ACSConnectionString string `yaml:"acs_connection_string"`
	// CallbackURL is the Call Automation event callback endpoint.
	CallbackURL string `yaml:"callback_url"`
	// AudioURL optionally points to a WAV announcement played after connect.
	AudioURL string `yaml:"audio_url"`

	// StateFile is the path to the JSON file persisting per-entity alarm state.
	StateFile string `yaml:"state_file"`
	// PollInterval is the delay between polling cycles.
	PollInterval time.Duration `yaml:"poll_interval"`
	// StaleThreshold is the maximum event age for an active observation to
	// still trigger a call.
	StaleThreshold time.Duration `yaml:"stale_threshold"`
	// NotifyCooldown is the minimum spacing between call attempts per entity.
	NotifyCooldown time.Duration `yaml:"notify_cooldown"`
	// FetchTimeout bounds a single document-source operation.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// CallTimeout bounds a single notifier call attempt, retries included.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// MetricsAddress optionally enables the Prometheus listener, e.g. ":9142".
	MetricsAddress string `yaml:"metrics_addr"`
	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "alarm-dialer-settings.yaml"

	// DefaultStateFilename is the default filename for persisted alarm state.
	DefaultStateFilename = "alarm-dialer-state.json"

	// DefaultAlarmField matches the gateway's common alarm tag.
	DefaultAlarmField = "Test2OPCUA:CommonAlarm"

	// DefaultActiveSentinel is the raw value the gateway writes for an active alarm.
	DefaultActiveSentinel = 1

	// DefaultTimestampField is the document field carrying the sample time.
	DefaultTimestampField = "timestamp"

	// DefaultPollInterval is the delay between polling cycles.
	DefaultPollInterval = 30 * time.Second

	// DefaultStaleThreshold is the maximum alarm age that still warrants a call.
	DefaultStaleThreshold = 10 * time.Minute

	// DefaultNotifyCooldown is the minimum spacing between calls per entity.
	DefaultNotifyCooldown = 5 * time.Minute

	// DefaultFetchTimeout bounds a single document-source operation.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultCallTimeout bounds a single notifier call attempt.
	DefaultCallTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errMongoURIRequired is returned when the document-source URI is missing.
	errMongoURIRequired = errors.New("mongo_uri must be provided")
	// errDatabaseRequired is returned when the database name is missing.
	errDatabaseRequired = errors.New("database must be provided")
	// errCollectionRequired is returned when the collection name is missing.
	errCollectionRequired = errors.New("collection must be provided")
	// errACSConnectionRequired is returned when the notifier credentials are missing.
	errACSConnectionRequired = errors.New("acs_connection_string must be provided")
	// errPhoneToRequired is returned when the destination number is missing.
	errPhoneToRequired = errors.New("phone_number_to_call must be provided")
	// errPhoneFromRequired is returned when the caller id number is missing.
	errPhoneFromRequired = errors.New("phone_number_from must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
// Validation failures here are the only fatal startup errors.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file carries credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.MongoURI == "" {
		return errMongoURIRequired
	}

	if err := validateMongoURI(cfg.MongoURI); err != nil {
		return err
	}

	if cfg.Database == "" {
		return errDatabaseRequired
	}

	if cfg.Collection == "" {
		return errCollectionRequired
	}

	if cfg.AlarmField == "" {
		cfg.AlarmField = DefaultAlarmField
	}

	if cfg.ActiveSentinel == 0 {
		cfg.ActiveSentinel = DefaultActiveSentinel
	}

	if cfg.TimestampField == "" {
		cfg.TimestampField = DefaultTimestampField
	}

	if cfg.ACSConnectionString == "" {
		return errACSConnectionRequired
	}

	if cfg.PhoneNumberToCall == "" {
		return errPhoneToRequired
	}

	if cfg.PhoneNumberFrom == "" {
		return errPhoneFromRequired
	}

	if cfg.CallbackURL != "" {
		if _, err := url.ParseRequestURI(cfg.CallbackURL); err != nil {
			return fmt.Errorf("invalid callback URL: %w", err)
		}
	}

	if cfg.AudioURL != "" {
		if _, err := url.ParseRequestURI(cfg.AudioURL); err != nil {
			return fmt.Errorf("invalid audio URL: %w", err)
		}
	}

	if cfg.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	applyDurationDefaults(cfg)

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	return nil
}

// validateMongoURI rejects obviously malformed connection strings early
// instead of failing deep inside the driver.
func validateMongoURI(uri string) error {
	if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		return fmt.Errorf("invalid mongo URI %q: scheme must be mongodb:// or mongodb+srv://", uri)
	}

	return nil
}

// applyDurationDefaults substitutes reference values for unset durations.
func applyDurationDefaults(cfg *Config) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}

	if cfg.NotifyCooldown <= 0 {
		cfg.NotifyCooldown = DefaultNotifyCooldown
	}

	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
}
