package core

import (
	"os"
	"strconv"
	"strings"
)

// GetEnvOrDefault returns the value of key, or def when it is unset or empty.
func GetEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookupEnv reads key through parse. ok is false when the variable is unset
// or blank; a value parse rejects becomes an ErrInvalidValue naming allowed.
func lookupEnv[T any](key, allowed string, parse func(string) (T, error)) (v T, ok bool, err error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return v, false, nil
	}
	v, perr := parse(raw)
	if perr != nil {
		var zero T
		return zero, true, ErrInvalidValue(key, raw, allowed)
	}
	return v, true, nil
}

// LookupIntEnv reads key as an int.
func LookupIntEnv(key string) (int, bool, error) {
	return lookupEnv(key, "an integer", strconv.Atoi)
}

// LookupInt64Env reads key as an int64.
func LookupInt64Env(key string) (int64, bool, error) {
	return lookupEnv(key, "an integer", func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// LookupBoolEnv reads key as a boolean. Besides strconv.ParseBool's forms it
// accepts yes/no and on/off in any case.
func LookupBoolEnv(key string) (bool, bool, error) {
	return lookupEnv(key, "true or false", parseBool)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(s))
}
