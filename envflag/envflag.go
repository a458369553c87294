// Package envflag is a wrapper for stdlib's flag that adds the environment
// variables as additional source of the values for flags.
package envflag

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/flashbots/tips/truthy"
)

// prefix is prepended to every derived environment variable name, letting
// each TIPS binary claim its own TIPS_<COMPONENT>_* namespace (spec.md §6)
// instead of every binary reading the same bare env vars.
var prefix string

// SetPrefix sets the environment variable prefix (e.g. "TIPS_INGRESS") used
// by every subsequent Bool/Int/String call in this process. Call once at
// the top of main before registering any flags.
func SetPrefix(p string) {
	prefix = p
}

// Bool is a convenience wrapper for boolean flag that picks its default value
// from the environment variable.
func Bool(name string, defaultValue bool, usage string) *bool {
	value := defaultValue
	env := flagToEnv(name)
	if raw := os.Getenv(env); raw != "" {
		value = truthy.Is(raw)
	}
	return flag.Bool(name, value, usage+fmt.Sprintf(" (env \"%s\")", env))
}

// Int is a convenience wrapper for integer flag that picks its default value
// from the environment variable.
func Int(name string, defaultValue int, usage string) *int {
	value := defaultValue
	env := flagToEnv(name)
	if raw := os.Getenv(env); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			value = parsed
		}
	}
	return flag.Int(name, value, usage+fmt.Sprintf(" (env \"%s\")", env))
}

// String is a convenience wrapper for string flag that picks its default value
// from the environment variable.
func String(name, defaultValue, usage string) *string {
	value := defaultValue
	env := flagToEnv(name)
	if raw := os.Getenv(env); raw != "" {
		value = raw
	}
	return flag.String(name, value, usage+fmt.Sprintf(" (env \"%s\")", env))
}

func flagToEnv(flag string) string {
	name := strings.ToUpper(
		strings.ReplaceAll(flag, "-", "_"),
	)
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}
