package task

import "carpics/fetcher/internal/domain"

type FetchTask struct {
	Request string           `json:"request"` // filename prefix of the originating request
	Entry   domain.PlanEntry `json:"entry"`
}

func (t *FetchTask) TaskType() string {
	return "FetchTask"
}

func (t *FetchTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
