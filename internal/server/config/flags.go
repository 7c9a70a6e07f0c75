package config

import (
	"flag"
	"os"
	"time"

	"github.com/voidnote/voidnote/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-backend    store backend: postgres, redis or memory
//	-d string   PostgreSQL DSN
//	-redis      redis address
//	-s string   owner-token HMAC secret key
//	-retention  retention window, hours
//	-sweep      sweep interval, minutes
//	-u string   S3 user
//	-p string   S3 password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Arguments are prefiltered with flagx.FilterArgs so flags owned by
// other components do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-backend", "-d", "-redis", "-s", "-retention", "-sweep",
		"-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.StoreBackend, "backend", config.StoreBackend, "store backend (postgres|redis|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	retentionHours := fs.Int("retention", int(config.RetentionWindow.Hours()), "retention window (in hours)")
	sweepMinutes := fs.Int("sweep", int(config.SweepInterval.Minutes()), "sweep interval (in minutes)")

	fs.StringVar(&config.S3User, "u", config.S3User, "S3 user")
	fs.StringVar(&config.S3Password, "p", config.S3Password, "S3 password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	_ = fs.Parse(args)

	config.RetentionWindow = time.Duration(*retentionHours) * time.Hour
	config.SweepInterval = time.Duration(*sweepMinutes) * time.Minute
}
