package models

// TaskSnapshot is one task row as published to the instance registry.
type TaskSnapshot struct {
	Index     int        `json:"index"`
	Text      string     `json:"text"`
	Status    TaskStatus `json:"status"`
	Connected bool       `json:"connected"`
}

// InstanceActions is the capability set an overlay instance hands to the
// global command palette. All callbacks are optional; a nil callback means
// the instance does not support that action.
type InstanceActions struct {
	Focus            func(taskIndex int) `json:"-"`
	Show             func()              `json:"-"`
	Hide             func()              `json:"-"`
	ResetConnections func()              `json:"-"`
	ResetStatuses    func()              `json:"-"`
}

// InstanceSnapshot is the registry record one overlay instance publishes.
// The publishing instance exclusively owns and overwrites its own record.
type InstanceSnapshot struct {
	InstanceKey    string          `json:"instanceKey"`
	Label          string          `json:"label"`
	Hidden         bool            `json:"hidden"`
	TotalTasks     int             `json:"totalTasks"`
	ConnectedCount int             `json:"connectedCount"`
	Tasks          []TaskSnapshot  `json:"tasks"`
	Actions        InstanceActions `json:"-"`
}
