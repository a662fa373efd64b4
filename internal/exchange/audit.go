package exchange

import (
	"fmt"
	"log"
)

// LogAuditSink returns a RequestEventSink that writes one line per request to
// the standard logger, the way the teacher's middleware logs each gin
// request (internal/api/middleware.go). Prefer this for local/dev; a
// production deployment should route RequestEvent into the durable state
// store's AgentAudit trail instead (spec.md §6 "HTTP audit log").
func LogAuditSink() RequestEventSink {
	return func(ev RequestEvent) {
		status := "ok"
		if !ev.OK {
			status = "fail"
			if ev.Retryable {
				status = "retry"
			}
		}
		log.Printf("exchange: %s %s attempt=%d status=%d (%s) duration=%dms%s",
			ev.Method, ev.Path, ev.Attempt, ev.Status, status, ev.DurationMs, errSuffix(ev.Error))
	}
}

func errSuffix(errMsg string) string {
	if errMsg == "" {
		return ""
	}
	return fmt.Sprintf(" err=%q", errMsg)
}
