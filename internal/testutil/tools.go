package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/chatflow/tool"
)

// WeatherArgs are the arguments of the get_weather fixture tool.
type WeatherArgs struct {
	Location string `json:"location" jsonschema:"The location to get weather for"`
}

// WeatherTool returns the get_weather fixture. Every successful call
// increments calls when it is non-nil.
func WeatherTool(calls *atomic.Int32) tool.Tool {
	return tool.MustTypedTool("get_weather", "Get the current weather for a location",
		func(_ context.Context, args WeatherArgs) (string, error) {
			if calls != nil {
				calls.Add(1)
			}
			return fmt.Sprintf("The weather in %s is sunny with 25°C.", args.Location), nil
		})
}

// BlockingTool returns a tool that signals started and then waits until its
// context is cancelled.
func BlockingTool(name string, started chan<- struct{}) tool.Tool {
	return tool.NewFunctionTool(name, "blocks until cancelled", nil,
		func(ctx context.Context, _ map[string]any) (string, error) {
			if started != nil {
				close(started)
			}
			<-ctx.Done()
			return "", ctx.Err()
		})
}
