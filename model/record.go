package model

import (
	"time"
)

// RecordStatus represents the analysis pipeline state of a record.
type RecordStatus string

const (
	// RecordPending marks a record awaiting analysis processing.
	RecordPending RecordStatus = "pending"
	// RecordProcessed marks a record already consumed by the analysis
	// processor.
	RecordProcessed RecordStatus = "processed"
)

// AnalysisRecord is the durable trace of one terminal task dispatch.
type AnalysisRecord struct {
	ID                string                 `json:"id" yaml:"id"`
	Seq               uint64                 `json:"seq" yaml:"seq"`
	TaskID            string                 `json:"taskId" yaml:"taskId"`
	ActivityID        string                 `json:"activityId,omitempty" yaml:"activityId,omitempty"`
	ProcessInstanceID string                 `json:"processInstanceId,omitempty" yaml:"processInstanceId,omitempty"`
	ThreadID          string                 `json:"threadId,omitempty" yaml:"threadId,omitempty"`
	ServiceType       string                 `json:"serviceType,omitempty" yaml:"serviceType,omitempty"`
	ServiceName       string                 `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	BaseURL           string                 `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Input             Variables              `json:"input,omitempty" yaml:"input,omitempty"`
	Output            map[string]interface{} `json:"output,omitempty" yaml:"output,omitempty"`
	Outcome           DispatchStatus         `json:"outcome" yaml:"outcome"`
	Error             string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts          int                    `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	LatencyMs         int64                  `json:"latencyMs,omitempty" yaml:"latencyMs,omitempty"`
	Tags              []string               `json:"tags,omitempty" yaml:"tags,omitempty"`
	Status            RecordStatus           `json:"status" yaml:"status"`
	CreatedAt         time.Time              `json:"createdAt" yaml:"createdAt"`
	ProcessedAt       *time.Time             `json:"processedAt,omitempty" yaml:"processedAt,omitempty"`
}

// HasTag returns true when the record carries the tag.
func (r *AnalysisRecord) HasTag(tag string) bool {
	for _, candidate := range r.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

// Tag appends a tag unless already present.
func (r *AnalysisRecord) Tag(tag string) {
	if r.HasTag(tag) {
		return
	}
	r.Tags = append(r.Tags, tag)
}

// Clone returns a copy safe to hand across goroutines.
func (r *AnalysisRecord) Clone() *AnalysisRecord {
	if r == nil {
		return nil
	}
	result := *r
	result.Input = r.Input.Clone()
	if len(r.Output) > 0 {
		result.Output = make(map[string]interface{}, len(r.Output))
		for name, value := range r.Output {
			result.Output[name] = value
		}
	}
	if len(r.Tags) > 0 {
		result.Tags = append([]string(nil), r.Tags...)
	}
	if r.ProcessedAt != nil {
		processedAt := *r.ProcessedAt
		result.ProcessedAt = &processedAt
	}
	return &result
}
