package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/koscakluka/ema-realtime/core/tools"
)

type clockQuery struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone such as Europe/Zagreb. Defaults to local time"`
}

type clockReading struct {
	Time     string `json:"time"`
	Weekday  string `json:"weekday"`
	Timezone string `json:"timezone"`
}

// NewClockTool reports the current time. now defaults to time.Now.
func NewClockTool(now func() time.Time) tools.Tool {
	if now == nil {
		now = time.Now
	}

	return tools.NewTool("get_time", "Get the current date and time.",
		func(_ context.Context, query clockQuery) (any, error) {
			current := now()
			if query.Timezone != "" {
				location, err := time.LoadLocation(query.Timezone)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", query.Timezone)
				}
				current = current.In(location)
			}

			return clockReading{
				Time:     current.Format(time.RFC3339),
				Weekday:  current.Weekday().String(),
				Timezone: current.Location().String(),
			}, nil
		})
}
