package pipeline

// CommandAction is an externally triggered control action on one statistics
// instance. Commands are serialized through the processor loop, so they
// never interleave with an in-progress observation update.
type CommandAction string

const (
	// ActionReset clears all accumulated state of an instance.
	ActionReset CommandAction = "reset"
	// ActionPublish forces immediate publication regardless of schedule.
	ActionPublish CommandAction = "publish"
)

// Command targets one instance by sensor name.
type Command struct {
	Sensor string
	Action CommandAction
}
