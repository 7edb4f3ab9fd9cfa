package model

// TaskLock is a persisted mutual-exclusion record for a named recurring job.
// A sweep for the task may only run when now - LastExecution >= the job's
// minimum interval; the check-and-claim is a single conditional update so
// that instances racing on the same tick cannot both pass.
type TaskLock struct {
	Name          string `bson:"_id" json:"name"`
	LastExecution int64  `bson:"last_execution" json:"last_execution"` // epoch millis
}
