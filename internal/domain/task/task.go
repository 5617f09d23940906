package task

import (
	"encoding/json"
	"fmt"
)

// Task is a unit of work carried on a queue stream named after TaskType.
type Task interface {
	TaskType() string
	TaskValue() ([]byte, error)
}

// Types lists every task type a queue must provision a stream for.
var Types = []string{(&FetchTask{}).TaskType()}

func DefaultTaskValue(task interface{}) ([]byte, error) {
	return json.Marshal(task)
}

func UnmarshalTask[T Task](data []byte) (T, error) {
	var t T
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to decode task: %w", err)
	}
	return t, nil
}
