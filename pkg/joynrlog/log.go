// Package joynrlog wires the runtime's logging to logrus and applies
// the JOYNR_LOG_LEVEL environment variable (spec.md §6), defaulting to
// DEBUG. Grounded on pkg/flags/flags.go's setLogLevel, adapted from a
// CLI flag source to an env-var source since §6 specifies the latter.
package joynrlog

import (
	"os"

	log "github.com/sirupsen/logrus"
)

const envLogLevel = "JOYNR_LOG_LEVEL"

// defaultLevel is the level used when JOYNR_LOG_LEVEL is unset or
// unrecognized.
const defaultLevel = log.DebugLevel

// Init configures the package-level logrus logger from
// JOYNR_LOG_LEVEL. Safe to call multiple times; the last call wins.
func Init() {
	levelName, ok := os.LookupEnv(envLogLevel)
	if !ok {
		log.SetLevel(defaultLevel)
		return
	}

	level, err := log.ParseLevel(levelName)
	if err != nil {
		log.SetLevel(defaultLevel)
		log.Warnf("invalid %s=%q, falling back to %s", envLogLevel, levelName, defaultLevel)
		return
	}
	log.SetLevel(level)
}

// For returns a logger pre-tagged with a component name, so every log
// line from a given package is easy to grep for.
func For(component string) *log.Entry {
	return log.WithField("component", component)
}
