package httpclients

import (
	"time"

	"menlo.ai/analytics-gateway/app/utils/logger"
	"resty.dev/v3"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRetries   = 2
	defaultRetryWait = 200 * time.Millisecond
)

// NewClient builds a resty client that logs through the process logger,
// tagged with the client's name.
func NewClient(name string) *resty.Client {
	return resty.New().
		SetTimeout(defaultTimeout).
		SetRetryCount(defaultRetries).
		SetRetryWaitTime(defaultRetryWait).
		SetHeader("User-Agent", "analytics-gateway/"+name).
		SetLogger(logger.GetLogger().WithField("client", name))
}
