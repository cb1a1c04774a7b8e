package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/flagx"
	"github.com/dmitrijs2005/usersvc/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Interval fields use timex.Duration, which accepts both "1s" strings and
// integer nanoseconds. Pointer fields distinguish "absent" from "false/0".
type JsonConfig struct {
	HTTPAddr    string `json:"http_addr"`
	GRPCAddr    string `json:"grpc_addr"`
	DatabaseDSN string `json:"database_dsn"`

	StorageBackend string `json:"storage_backend"`

	S3AccessKey     string `json:"s3_access_key"`
	S3SecretKey     string `json:"s3_secret_key"`
	S3Bucket        string `json:"s3_bucket"`
	S3Region        string `json:"s3_region"`
	S3BaseEndpoint  string `json:"s3_base_endpoint"`
	S3PathStyle     *bool  `json:"s3_path_style"`
	S3PublicBaseURL string `json:"s3_public_base_url"`

	RedisAddr         string `json:"redis_addr"`
	RedisPassword     string `json:"redis_password"`
	VerificationTopic string `json:"verification_topic"`

	VerificationTokenTTL timex.Duration `json:"verification_token_ttl"`
	VerificationBaseURL  string         `json:"verification_base_url"`
	PublishTimeout       timex.Duration `json:"publish_timeout"`
	TokenPurgeInterval   timex.Duration `json:"token_purge_interval"`

	HashAlgorithm string `json:"hash_algorithm"`
	BcryptCost    int    `json:"bcrypt_cost"`

	AttachmentReplace *bool `json:"attachment_replace"`
	MaxUploadBytes    int64 `json:"max_upload_bytes"`

	LogBackend          string         `json:"log_backend"`
	HealthProbeInterval timex.Duration `json:"health_probe_interval"`
	ShutdownTimeout     timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags, or else
// the USERSVC_CONFIG variable; without either nothing is loaded. Only keys present in the file override the
// current values. Unreadable files or invalid JSON panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:], "USERSVC_CONFIG")

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.VerificationTopic, c.VerificationTopic)
	setString(&config.VerificationBaseURL, c.VerificationBaseURL)
	setString(&config.HashAlgorithm, c.HashAlgorithm)
	setString(&config.LogBackend, c.LogBackend)

	if c.S3PathStyle != nil {
		config.S3PathStyle = *c.S3PathStyle
	}
	if c.AttachmentReplace != nil {
		config.AttachmentReplace = *c.AttachmentReplace
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.MaxUploadBytes != 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}

	setDuration(&config.VerificationTokenTTL, c.VerificationTokenTTL)
	setDuration(&config.PublishTimeout, c.PublishTimeout)
	setDuration(&config.TokenPurgeInterval, c.TokenPurgeInterval)
	setDuration(&config.HealthProbeInterval, c.HealthProbeInterval)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
