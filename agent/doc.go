// Package agent binds instructions, tools and a model backend into an Agent
// that executes conversational runs.
//
// An Agent is immutable after construction. History is supplied per call so
// many independent runs (same instructions and tools, different histories)
// may execute concurrently against the same Agent.
//
// Execution Model:
//   - Run blocks until the tool-call loop finished and returns a RunResult
//   - RunStream returns a Stream yielding text fragments in arrival order
//   - Both delegate the state machine to the flow package
//
// Example:
//
//	weather := tool.MustTypedTool("get_weather", "Get the weather for a given location", getWeather)
//	a, err := agent.New("WeatherAgent", backend, func(o *agent.Options) {
//	    o.Instructions = "You are a helpful weather assistant."
//	    o.Tools = []tool.Tool{weather}
//	})
//	res, err := a.Run(ctx, nil, core.UserText("What's the weather like in Tokyo?"))
package agent
