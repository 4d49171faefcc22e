package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/meshlog/oplogsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-l string   comma-separated listen multiaddrs
//	-b string   comma-separated bootstrap peer multiaddrs
//	-i string   log id to host
//	-t int      peer handshake timeout, seconds
//	-backend    storage backend: memory|postgres|s3
//	-d string   postgres DSN
//	-a string   admin HTTP bind address
//	-k string   access controller secret key
//
// args are filtered with flagx.FilterArgs first so this flag set never
// sees flags meant for other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-l", "-b", "-i", "-t", "-backend", "-d", "-a", "-k"})

	fs := flag.NewFlagSet("oplogpeerd", flag.ContinueOnError)

	listenAddrs := fs.String("l", strings.Join(config.ListenAddrs, ","), "comma-separated listen multiaddrs")
	bootstrapPeers := fs.String("b", strings.Join(config.BootstrapPeers, ","), "comma-separated bootstrap peer multiaddrs")
	fs.StringVar(&config.LogID, "i", config.LogID, "log id to host")

	handshakeTimeout := fs.Int("t", int(config.HandshakeTimeout.Seconds()), "peer handshake timeout (seconds)")

	fs.StringVar(&config.StorageBackend, "backend", config.StorageBackend, "storage backend: memory|postgres|s3")
	fs.StringVar(&config.PostgresDSN, "d", config.PostgresDSN, "postgres DSN")
	fs.StringVar(&config.AdminHTTPAddr, "a", config.AdminHTTPAddr, "admin HTTP bind address")
	fs.StringVar(&config.AccessControllerSecretKey, "k", config.AccessControllerSecretKey, "access controller secret key")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ListenAddrs = splitNonEmpty(*listenAddrs)
	config.BootstrapPeers = splitNonEmpty(*bootstrapPeers)
	config.HandshakeTimeout = time.Duration(*handshakeTimeout) * time.Second
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
