package controlplane

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/datatypes"
)

func jsonDecode(raw datatypes.JSON, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func marshalJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// parseJobID recovers the int64 job id a task_id wire value encodes --
// broker_task_id is always the job's decimal id (internal/broker.Broker
// uses strconv.FormatInt(job.ID, 10) as the Temporal workflow id).
func parseJobID(taskID string) (int64, error) {
	id, err := strconv.ParseInt(taskID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q: %w", taskID, err)
	}
	return id, nil
}
