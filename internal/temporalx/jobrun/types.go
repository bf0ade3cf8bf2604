package jobrun

const (
	// WorkflowName is the registered Temporal workflow type. The
	// broker starts one execution per job, using the job's int64 ID
	// (decimal string) as the WorkflowID, on the configured task queue.
	WorkflowName = "job_run"
	// ActivityName is the single activity a job_run workflow executes.
	// A Job Handler runs to completion (or a terminal failure/
	// cancellation) inside one activity invocation -- there is no tick
	// loop.
	ActivityName = "job_run_execute"
)
