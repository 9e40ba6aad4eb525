// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StorageBackend identifies the validity cache implementation.
type StorageBackend string

const (
	// BackendAuto lets the cache location's extension pick the backend.
	BackendAuto   StorageBackend = ""
	BackendMemory StorageBackend = "memory"
	BackendSQLite StorageBackend = "sqlite"
	BackendRedis  StorageBackend = "redis"
)

// Extension returns the file extension expected for a backend's location.
// The redis backend has no file and returns "".
func (b StorageBackend) Extension() string {
	switch b {
	case BackendMemory:
		return ".json"
	case BackendSQLite:
		return ".db"
	default:
		return ""
	}
}

// HTTPConfig holds shared HTTP settings used by the identifier authority.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citeconv/0.1 (mailto:someone@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RequestsPerSecond caps the request rate against each authority (default 5).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// RedisConfig holds connection settings for the shared validity backend.
type RedisConfig struct {
	// Addr is the host:port of the redis server (default "localhost:6379").
	Addr string `json:"addr" yaml:"addr" mapstructure:"redis_addr"`

	// Password authenticates against the server; usually loaded from .secrets/.
	Password string `json:"-" yaml:"-" mapstructure:"-"`

	// DB is the logical database index (default 2).
	DB int `json:"db" yaml:"db" mapstructure:"redis_db"`
}

// StorageConfig selects and locates the identifier validity cache.
type StorageConfig struct {
	// Backend is "memory", "sqlite", "redis" or empty to infer from Path.
	Backend StorageBackend `json:"storage_manager" yaml:"storage_manager" mapstructure:"storage_manager"`

	// Path is the cache file location; ".db" for sqlite, ".json" for memory.
	Path string `json:"storage_path" yaml:"storage_path" mapstructure:"storage_path"`

	// UseRedis selects the shared backend regardless of Backend and Path.
	UseRedis bool `json:"redis_storage_manager" yaml:"redis_storage_manager" mapstructure:"redis_storage_manager"`

	// Testing isolates the cache from production state. The redis backend
	// works in a throwaway namespace, the sqlite backend in memory.
	Testing bool `json:"testing" yaml:"testing" mapstructure:"testing"`

	// WorkDir anchors default locations (default: the current directory).
	WorkDir string `json:"-" yaml:"-" mapstructure:"-"`

	Redis RedisConfig `json:"redis" yaml:"redis" mapstructure:",squash"`
}

// PreprocessConfig holds every setting of a preprocess run. The YAML keys
// match the converter's historical config file.
type PreprocessConfig struct {
	// InputDir contains the archives to process.
	InputDir string `json:"openaire_json_dir" yaml:"openaire_json_dir" mapstructure:"openaire_json_dir"`

	// OutputDir receives metadata rows; edges go to OutputDir + "_citations".
	OutputDir string `json:"output" yaml:"output" mapstructure:"output"`

	// PublishersPath is an optional CSV (id,name,prefix) of DOI prefixes.
	PublishersPath string `json:"publishers_filepath,omitempty" yaml:"publishers_filepath,omitempty" mapstructure:"publishers_filepath"`

	// OrcidIndexPath is an optional DOI→ORCID CSV file or directory.
	OrcidIndexPath string `json:"orcid_doi_filepath,omitempty" yaml:"orcid_doi_filepath,omitempty" mapstructure:"orcid_doi_filepath"`

	// WantedPath is an optional CSV of the only DOIs to process.
	WantedPath string `json:"wanted_doi_filepath,omitempty" yaml:"wanted_doi_filepath,omitempty" mapstructure:"wanted_doi_filepath"`

	// ProgressPath is the progress file; deleted after a complete run.
	ProgressPath string `json:"cache_filepath,omitempty" yaml:"cache_filepath,omitempty" mapstructure:"cache_filepath"`

	// Verbose turns on debug logging.
	Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"log_format" yaml:"log_format" mapstructure:"log_format"`

	// MaxWorkers bounds the worker pool (default 1, sequential).
	MaxWorkers int `json:"max_workers" yaml:"max_workers" mapstructure:"max_workers"`

	// MemberExt selects which archive members are processed (default ".gz").
	MemberExt string `json:"member_ext" yaml:"member_ext" mapstructure:"member_ext"`

	// UseAPIService allows remote identifier validation.
	UseAPIService bool `json:"use_api_service" yaml:"use_api_service" mapstructure:"use_api_service"`

	Storage StorageConfig `json:"storage" yaml:"storage" mapstructure:",squash"`

	HTTP HTTPConfig `json:"http" yaml:"http" mapstructure:",squash"`
}

// CitationsDir returns the directory that receives citation edge files.
func (c PreprocessConfig) CitationsDir() string {
	return c.OutputDir + "_citations"
}
