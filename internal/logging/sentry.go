package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

var sentryEnabled bool

// InitSentry initializes Sentry for crash reporting and reports whether it is active.
//
// Reporting is opt-in: it follows the crashReporting setting unless
// NFC_TAGID_SENTRY is "1" or "0". A DSN must be supplied in NFC_TAGID_SENTRY_DSN.
func InitSentry(version string, crashReportingEnabled bool) bool {
	enabled := crashReportingEnabled
	switch os.Getenv("NFC_TAGID_SENTRY") {
	case "1":
		enabled = true
	case "0":
		enabled = false
	}
	if !enabled {
		return false
	}

	dsn := os.Getenv("NFC_TAGID_SENTRY_DSN")
	if dsn == "" {
		Warn(CatSystem, "Crash reporting enabled but NFC_TAGID_SENTRY_DSN is not set", nil)
		return false
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "nfc-tagid@" + version,
		Environment:      environment(),
		AttachStacktrace: true,
		TracesSampleRate: 0.0,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize Sentry: %v\n", err)
		return false
	}

	sentryEnabled = true
	return true
}

func environment() string {
	if env := os.Getenv("NFC_TAGID_ENVIRONMENT"); env != "" {
		return env
	}
	return "production"
}

// SentryEnabled returns whether Sentry is currently enabled.
func SentryEnabled() bool {
	return sentryEnabled
}

// FlushSentry flushes buffered events. Call before exit.
func FlushSentry(timeout time.Duration) {
	if sentryEnabled {
		sentry.Flush(timeout)
	}
}

// Data keys that Sentry indexes as tags rather than extras.
var tagKeys = map[string]bool{
	"reader":     true,
	"uid":        true,
	"tag_family": true,
}

// splitData separates searchable tag keys from free-form extras.
func splitData(data map[string]interface{}) (map[string]string, map[string]interface{}) {
	tags := make(map[string]string)
	extras := make(map[string]interface{})
	for k, v := range data {
		if tagKeys[k] {
			if str := fmt.Sprint(v); str != "" {
				tags[k] = str
			}
			continue
		}
		extras[k] = v
	}
	return tags, extras
}

// SetCardContext records the last tag read so later events carry the reader
// and UID involved.
func SetCardContext(reader, uid, family string) {
	if !sentryEnabled {
		return
	}
	tags, _ := splitData(map[string]interface{}{
		"reader":     reader,
		"uid":        uid,
		"tag_family": family,
	})
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
	})
}

// CapturePanic sends a recovered panic and its stack to Sentry.
func CapturePanic(panicValue interface{}, stack []byte, context string) {
	if !sentryEnabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("panic_context", context)
		scope.SetExtra("stack_trace", string(stack))
		scope.SetLevel(sentry.LevelFatal)

		if err, ok := panicValue.(error); ok {
			sentry.CaptureException(err)
			return
		}
		sentry.CaptureMessage(fmt.Sprintf("panic in %s: %v", context, panicValue))
	})

	// the process may be about to die
	sentry.Flush(2 * time.Second)
}

// CaptureError sends a card or reader error to Sentry. reader, uid and
// tag_family in data become tags; anything else is attached as extra.
func CaptureError(err error, context string, data map[string]interface{}) {
	if !sentryEnabled || err == nil {
		return
	}

	tags, extras := splitData(data)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_context", context)
		scope.SetTags(tags)
		scope.SetExtras(extras)
		scope.SetLevel(sentry.LevelError)
		sentry.CaptureException(err)
	})
}
