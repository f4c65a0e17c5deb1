// Package config reads the process environment once at startup and hands
// out a typed, immutable view of it. It replaces the teacher's scattered
// os.Environ() lookups with the same getEnv/getEnvInt/getEnvBool shape
// peerdbenv uses, generalized to this system's variables.
package config

import (
	"os"
	"strconv"
)

// getEnv returns the value of the environment variable with the given name
// and a boolean indicating whether the environment variable exists.
func getEnv(name string) (string, bool) {
	val, exists := os.LookupEnv(name)
	return val, exists
}

// getEnvInt returns the value of the environment variable with the given
// name or defaultValue if the environment variable is not set or is not a
// valid integer value.
func getEnvInt(name string, defaultValue int) int {
	val, ok := getEnv(name)
	if !ok {
		return defaultValue
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return i
}

// getEnvBool returns the value of the environment variable with the given
// name or defaultValue if the environment variable is not set or is not a
// valid boolean value.
func getEnvBool(name string, defaultValue bool) bool {
	val, ok := getEnv(name)
	if !ok {
		return defaultValue
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}

	return b
}

// getEnvString returns the value of the environment variable with the given
// name or defaultValue if the environment variable is not set.
func getEnvString(name string, defaultValue string) string {
	val, ok := getEnv(name)
	if !ok {
		return defaultValue
	}

	return val
}

// Config is an immutable snapshot of the process environment, read once at
// startup and passed explicitly to handlers rather than read ad hoc.
type Config struct {
	Bucket              string
	AWSRegion           string
	MetadataAPIURL      string
	AuthorizerAPI       string
	StatusAPIURL        string
	EventQueueURL       string
	EmailAPIURL         string
	EmailAPIKey         string
	LoginURL            string
	ServiceClientID     string
	ServiceClientSecret string
	EnableAuth          bool
	LockWaitSeconds     int
	LockRetries         int
}

// Load reads the process environment and returns a Config. Required
// variables that are absent are left empty; callers that need them are
// expected to fail fast on first use, the same way the teacher's
// connectors fail on first use of a bad configuration rather than at
// startup.
func Load() Config {
	return Config{
		Bucket:              getEnvString("BUCKET", ""),
		AWSRegion:           getEnvString("AWS_REGION", "eu-west-1"),
		MetadataAPIURL:      getEnvString("METADATA_API_URL", ""),
		AuthorizerAPI:       getEnvString("AUTHORIZER_API", ""),
		StatusAPIURL:        getEnvString("STATUS_API_URL", ""),
		EventQueueURL:       getEnvString("EVENT_QUEUE_URL", ""),
		EmailAPIURL:         getEnvString("EMAIL_API_URL", ""),
		EmailAPIKey:         getEnvString("EMAIL_API_KEY", ""),
		LoginURL:            getEnvString("LOGIN_URL", ""),
		ServiceClientID:     getEnvString("SERVICE_CLIENT_ID", ""),
		ServiceClientSecret: getEnvString("SERVICE_CLIENT_SECRET", ""),
		EnableAuth:          getEnvBool("ENABLE_AUTH", true),
		LockWaitSeconds:     getEnvInt("LOCK_WAIT_SECONDS", 5),
		LockRetries:         getEnvInt("LOCK_RETRIES", 5),
	}
}
