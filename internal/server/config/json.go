package config

import (
	"encoding/json"
	"os"

	"github.com/voidnote/voidnote/internal/flagx"
	"github.com/voidnote/voidnote/internal/timex"
)

// JsonConfig is the DTO for the optional JSON config file. Interval
// fields use timex.Duration so both "24h" strings and integer
// nanoseconds parse.
type JsonConfig struct {
	EndpointAddrHTTP           *string         `json:"endpoint_addr_http"`
	StoreBackend               *string         `json:"store_backend"`
	DatabaseDSN                *string         `json:"database_dsn"`
	RedisAddr                  *string         `json:"redis_addr"`
	RedisPassword              *string         `json:"redis_password"`
	SecretKey                  *string         `json:"secret_key"`
	OwnerTokenValidityDuration *timex.Duration `json:"owner_token_validity_duration"`
	DefaultTTL                 *timex.Duration `json:"default_ttl"`
	MaxTTL                     *timex.Duration `json:"max_ttl"`
	DefaultMaxViews            *int            `json:"default_max_views"`
	MaxMaxViews                *int            `json:"max_max_views"`
	RetentionWindow            *timex.Duration `json:"retention_window"`
	SweepInterval              *timex.Duration `json:"sweep_interval"`
	S3User                     *string         `json:"s3_user"`
	S3Password                 *string         `json:"s3_password"`
	S3Bucket                   *string         `json:"s3_bucket"`
	S3Region                   *string         `json:"s3_region"`
	S3BaseEndpoint             *string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the JSON file named by -c/-config, if
// any. Absent fields keep their current values. An unreadable or
// invalid file panics: a requested config file that cannot be used is
// a startup error, not something to silently skip.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != nil {
		config.EndpointAddrHTTP = *c.EndpointAddrHTTP
	}
	if c.StoreBackend != nil {
		config.StoreBackend = *c.StoreBackend
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.RedisAddr != nil {
		config.RedisAddr = *c.RedisAddr
	}
	if c.RedisPassword != nil {
		config.RedisPassword = *c.RedisPassword
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.OwnerTokenValidityDuration != nil {
		config.OwnerTokenValidityDuration = c.OwnerTokenValidityDuration.Duration
	}
	if c.DefaultTTL != nil {
		config.DefaultTTL = c.DefaultTTL.Duration
	}
	if c.MaxTTL != nil {
		config.MaxTTL = c.MaxTTL.Duration
	}
	if c.DefaultMaxViews != nil {
		config.DefaultMaxViews = *c.DefaultMaxViews
	}
	if c.MaxMaxViews != nil {
		config.MaxMaxViews = *c.MaxMaxViews
	}
	if c.RetentionWindow != nil {
		config.RetentionWindow = c.RetentionWindow.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.S3User != nil {
		config.S3User = *c.S3User
	}
	if c.S3Password != nil {
		config.S3Password = *c.S3Password
	}
	if c.S3Bucket != nil {
		config.S3Bucket = *c.S3Bucket
	}
	if c.S3Region != nil {
		config.S3Region = *c.S3Region
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}
}
