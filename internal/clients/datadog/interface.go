package datadog

import (
	"net/http"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"cardlink/internal/terminal/domain"
	"cardlink/internal/terminal/events"
)

// LogSubmitter is the part of the Datadog logs API the shipper uses
type LogSubmitter interface {
	SubmitLogs(body []datadogV2.HTTPLogItem, opts *datadogV2.SubmitLogOptionalParameters) (any, *http.Response, error)
}

// EventSource is anything lifecycle events can be subscribed on, usually a service.Session
type EventSource interface {
	Subscribe(kind domain.EventKind, callback events.Callback) (events.ListenerID, error)
	Unsubscribe(id events.ListenerID)
}
