package queue

import (
	"testing"

	"carpics/fetcher/internal/domain"
	"carpics/fetcher/internal/domain/task"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFetchTask(t *testing.T) {
	in := &task.FetchTask{Request: "Car1", Entry: domain.PlanEntry{URL: "https://x/q&angle=00", Filename: "Car1_XXXX_ext_00.png"}}
	data, err := in.TaskValue()
	require.NoError(t, err)

	got, err := DecodeFetchTask(&redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"task_type": "FetchTask", "task_data": string(data)},
	})
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestDecodeFetchTask_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{name: "missing type", values: map[string]interface{}{"task_data": "{}"}},
		{name: "wrong type", values: map[string]interface{}{"task_type": "Other", "task_data": "{}"}},
		{name: "missing data", values: map[string]interface{}{"task_type": "FetchTask"}},
		{name: "bad json", values: map[string]interface{}{"task_type": "FetchTask", "task_data": "{"}},
		{name: "null data", values: map[string]interface{}{"task_type": "FetchTask", "task_data": "null"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFetchTask(&redis.XMessage{ID: "1-0", Values: tt.values})
			assert.Error(t, err)
		})
	}
}

func TestStreamName(t *testing.T) {
	q := &RedisQueue{streamPrefix: "carpics:stream:"}
	assert.Equal(t, "carpics:stream:FetchTask", q.StreamName("FetchTask"))
}
