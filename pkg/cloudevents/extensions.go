package cloudevents

import (
	"strings"
	"time"
)

// Extension attribute names
const (
	ExtCorrelationID = "salescorrelationid"
	ExtTraceParent   = "traceparent"
	ExtTraceState    = "tracestate"
)

// Binary-mode header names used on Kafka messages
const (
	HeaderPrefix      = "ce-"
	HeaderContentType = "content-type"
)

// Headers returns the binary-mode CloudEvents headers of the event
func (e *SalesCloudEvent) Headers() map[string]string {
	headers := map[string]string{
		HeaderPrefix + "specversion": e.SpecVersion,
		HeaderPrefix + "type":        e.Type,
		HeaderPrefix + "source":      e.Source,
		HeaderPrefix + "id":          e.ID,
		HeaderPrefix + "time":        e.Time.Format(time.RFC3339Nano),
		HeaderContentType:            e.DataContentType,
	}
	if e.Subject != "" {
		headers[HeaderPrefix+"subject"] = e.Subject
	}
	for name, value := range e.extensions() {
		if value != "" {
			headers[HeaderPrefix+name] = value
		}
	}
	return headers
}

// ApplyHeader copies a binary-mode extension header onto the event.
// It reports whether the header was recognized.
func (e *SalesCloudEvent) ApplyHeader(key, value string) bool {
	name, ok := strings.CutPrefix(strings.ToLower(key), HeaderPrefix)
	if !ok {
		return false
	}
	switch name {
	case ExtCorrelationID:
		e.CorrelationID = value
	case ExtTraceParent:
		e.TraceParent = value
	case ExtTraceState:
		e.TraceState = value
	default:
		return false
	}
	return true
}

func (e *SalesCloudEvent) extensions() map[string]string {
	return map[string]string{
		ExtCorrelationID: e.CorrelationID,
		ExtTraceParent:   e.TraceParent,
		ExtTraceState:    e.TraceState,
	}
}
