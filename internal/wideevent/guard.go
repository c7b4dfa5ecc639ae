package wideevent

import (
	applog "docledger/internal/log"
)

// guard runs fn and converts a panic into a false return. Every exported
// Logger method goes through it so that no telemetry fault reaches callers.
func guard(logger *applog.Logger, op string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if logger != nil {
				func() {
					defer func() { _ = recover() }()
					logger.Debug("Wide event operation recovered from panic",
						applog.FieldOperation, op,
						"panic", r)
				}()
			}
		}
	}()
	fn()
	return true
}
