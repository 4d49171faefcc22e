package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meshlog/oplogsync/internal/flagx"
)

// duration wraps time.Duration so it can be unmarshalled from YAML
// strings like "30s". The teacher's equivalent config DTOs lean on an
// internal/timex.Duration helper for the same purpose; that package
// isn't part of this module, so the wrapper is reimplemented locally.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

// yamlConfig is an intermediate DTO used only for reading the YAML
// config file. After unmarshalling its fields are copied into the
// runtime Config, which uses time.Duration directly.
type yamlConfig struct {
	ListenAddrs      []string `yaml:"listen_addrs"`
	BootstrapPeers   []string `yaml:"bootstrap_peers"`
	LogID            string   `yaml:"log_id"`
	HandshakeTimeout duration `yaml:"handshake_timeout"`

	StorageBackend string `yaml:"storage_backend"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	S3Region       string `yaml:"s3_region"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3BaseEndpoint string `yaml:"s3_base_endpoint"`
	S3Bucket       string `yaml:"s3_bucket"`

	AdminHTTPAddr             string `yaml:"admin_http_addr"`
	AccessControllerSecretKey string `yaml:"access_controller_secret_key"`
	IdentityKeyPath           string `yaml:"identity_key_path"`
}

// parseYAML loads configuration values from a YAML file into config.
//
// The lookup order for the file path is the -c or -config command-line
// flags; if neither is set, no file is loaded and defaults stand.
func parseYAML(config *Config) {
	path := configFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	y := &yamlConfig{}
	if err := yaml.Unmarshal(file, y); err != nil {
		panic(err)
	}

	if len(y.ListenAddrs) > 0 {
		config.ListenAddrs = y.ListenAddrs
	}
	if len(y.BootstrapPeers) > 0 {
		config.BootstrapPeers = y.BootstrapPeers
	}
	if y.LogID != "" {
		config.LogID = y.LogID
	}
	if y.HandshakeTimeout != 0 {
		config.HandshakeTimeout = time.Duration(y.HandshakeTimeout)
	}
	if y.StorageBackend != "" {
		config.StorageBackend = y.StorageBackend
	}
	if y.PostgresDSN != "" {
		config.PostgresDSN = y.PostgresDSN
	}
	if y.S3Region != "" {
		config.S3Region = y.S3Region
	}
	if y.S3AccessKey != "" {
		config.S3AccessKey = y.S3AccessKey
	}
	if y.S3SecretKey != "" {
		config.S3SecretKey = y.S3SecretKey
	}
	if y.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = y.S3BaseEndpoint
	}
	if y.S3Bucket != "" {
		config.S3Bucket = y.S3Bucket
	}
	if y.AdminHTTPAddr != "" {
		config.AdminHTTPAddr = y.AdminHTTPAddr
	}
	if y.AccessControllerSecretKey != "" {
		config.AccessControllerSecretKey = y.AccessControllerSecretKey
	}
	if y.IdentityKeyPath != "" {
		config.IdentityKeyPath = y.IdentityKeyPath
	}
}

func configFileFlag() string {
	args := flagx.FilterArgs(os.Args[1:], []string{"-c", "-config"})

	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(args)
	return path
}
