package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed part of a client: the client itself,
// its connection monitor, its telemetry providers.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information about a component.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "http-client", "monitor", "telemetry".
	Type string
	// Details is a one-line configuration summary,
	// e.g. "base=https://api.example.com pool=8 channel=16".
	Details string
}

// Describable is optionally implemented by Components to self-report
// what they are and how they are configured.
type Describable interface {
	Describe() Description
}

// Func adapts start and stop functions into a Component that always
// reports healthy. Either function may be nil.
type Func struct {
	ComponentName string
	StartFn       func(ctx context.Context) error
	StopFn        func(ctx context.Context) error
}

func (f Func) Name() string { return f.ComponentName }

func (f Func) Start(ctx context.Context) error {
	if f.StartFn == nil {
		return nil
	}
	return f.StartFn(ctx)
}

func (f Func) Stop(ctx context.Context) error {
	if f.StopFn == nil {
		return nil
	}
	return f.StopFn(ctx)
}

func (f Func) Health(context.Context) Health {
	return Health{Name: f.ComponentName, Status: StatusHealthy}
}
