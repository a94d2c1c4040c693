// Package domain holds the console's core entity types: metric samples,
// alert scenarios, incident reports, action executions, recovery checks,
// email recipients, and knowledge documents. None of these types carry
// behavior beyond simple derived predicates and cloning -- the components
// that mutate them live in sibling packages.
package domain

import "time"

// MetricSample is one point-in-time read of the watched metrics.
type MetricSample struct {
	Timestamp      time.Time `json:"timestamp"`
	HTTP           float64   `json:"http"`
	HTTPThreshold  float64   `json:"http_threshold"`
	CPU            float64   `json:"cpu"`
	CPUThreshold   float64   `json:"cpu_threshold"`
	Node           string    `json:"node,omitempty"`
}

// HTTPExceeded reports whether the HTTP metric is over its threshold.
func (s MetricSample) HTTPExceeded() bool { return s.HTTP > s.HTTPThreshold }

// CPUExceeded reports whether the CPU metric is over its threshold.
func (s MetricSample) CPUExceeded() bool { return s.CPU > s.CPUThreshold }

// AnyExceeded reports whether either metric is over its threshold.
func (s MetricSample) AnyExceeded() bool { return s.HTTPExceeded() || s.CPUExceeded() }

// HTTPDelta is the signed distance of the HTTP metric from its threshold.
func (s MetricSample) HTTPDelta() float64 { return s.HTTP - s.HTTPThreshold }

// CPUDelta is the signed distance of the CPU metric from its threshold.
func (s MetricSample) CPUDelta() float64 { return s.CPU - s.CPUThreshold }

// Scenario cause codes. These are the only two seeded at startup.
const (
	ScenarioHTTP5xxSurge  = "http_5xx_surge"
	ScenarioCPUSpikeCore  = "cpu_spike_core"
)

// AlertScenario is an immutable reference datum describing one cause code.
type AlertScenario struct {
	Code        string   `json:"code"`
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	Description string   `json:"description"`
	Hypotheses  []string `json:"hypotheses"`
	Evidences   []string `json:"evidences"`
	Actions     []string `json:"actions"`
}

// SeedScenarios returns the two scenarios seeded at startup. Callers get a
// fresh copy on every call so mutation by one caller cannot leak to another.
func SeedScenarios() []AlertScenario {
	return []AlertScenario{
		{
			Code:        ScenarioHTTP5xxSurge,
			Title:       "HTTP 5xx error surge",
			Source:      "http_5xx_rate",
			Description: "The rate of HTTP 5xx responses has exceeded the configured threshold.",
			Hypotheses: []string{
				"A recent deploy introduced a regression in a hot request path.",
				"A downstream dependency is degraded or unavailable.",
				"Connection pool exhaustion under elevated load.",
			},
			Evidences: []string{
				"Elevated 5xx rate sustained across the sampling window.",
				"Error rate correlates with recent deploy or traffic spike.",
			},
			Actions: []string{
				"Roll back the most recent deploy",
				"Scale out the affected service",
				"Restart unhealthy instances",
			},
		},
		{
			Code:        ScenarioCPUSpikeCore,
			Title:       "CPU spike on core service",
			Source:      "cpu_utilization",
			Description: "CPU utilization has exceeded the configured threshold.",
			Hypotheses: []string{
				"A runaway background job is consuming CPU.",
				"Traffic volume has outgrown current capacity.",
				"A regression introduced an expensive hot loop.",
			},
			Evidences: []string{
				"Sustained CPU utilization above threshold across the window.",
				"No corresponding drop in request latency SLOs yet.",
			},
			Actions: []string{
				"Scale out the affected service",
				"Throttle non-critical background jobs",
				"Profile the hot path for regressions",
			},
		},
	}
}

// IncidentReport is created exactly once per detected incident instance.
type IncidentReport struct {
	ID                string       `json:"id"`
	ScenarioCode      string       `json:"scenario_code"`
	Title             string       `json:"title"`
	CreatedAt         time.Time    `json:"created_at"`
	Metrics           MetricSample `json:"metrics"`
	Summary           string       `json:"summary"`
	RootCause         string       `json:"root_cause"`
	Impact            string       `json:"impact"`
	ActionItems       []string     `json:"action_items"`
	FollowUp          []string     `json:"follow_up"`
	ReportBody        string       `json:"report_body"`
	RecipientsSent    []string     `json:"recipients_sent"`
	RecipientsMissing []string     `json:"recipients_missing"`
}

// ExecutionStatus is the lifecycle state of an ActionExecution.
type ExecutionStatus string

const (
	ExecutionPending  ExecutionStatus = "pending"
	ExecutionExecuted ExecutionStatus = "executed"
	ExecutionDeferred ExecutionStatus = "deferred"
)

// ActionExecutionResult is the outcome of dispatching one action.
type ActionExecutionResult struct {
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail"`
	ExecutedAt time.Time `json:"executed_at"`
}

// ActionExecution is the queued/executed/deferred remediation plan for one
// incident report.
type ActionExecution struct {
	ID             string                   `json:"id"`
	ReportID       string                   `json:"report_id"`
	ScenarioCode   string                   `json:"scenario_code"`
	ScenarioTitle  string                   `json:"scenario_title"`
	CreatedAt      time.Time                `json:"created_at"`
	Actions        []string                 `json:"actions"`
	Status         ExecutionStatus          `json:"status"`
	ExecutedAt     *time.Time               `json:"executed_at,omitempty"`
	Results        []ActionExecutionResult  `json:"results"`
}

// RecoveryStatus is the lifecycle state of a RecoveryCheck.
type RecoveryStatus string

const (
	RecoveryPending   RecoveryStatus = "pending"
	RecoveryRecovered RecoveryStatus = "recovered"
)

// RecoveryCheck tracks whether an executed plan's incident has cleared.
type RecoveryCheck struct {
	ExecutionID   string         `json:"execution_id"`
	ScenarioCode  string         `json:"scenario_code"`
	ScenarioTitle string         `json:"scenario_title"`
	StartedAt     time.Time      `json:"started_at"`
	Status        RecoveryStatus `json:"status"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
}

// EmailRecipient is one entry in the notification registry.
type EmailRecipient struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Document metadata enums for the knowledge store.
const (
	DocTypeScenario        = "scenario"
	DocTypeActionExecution = "action_execution"
	DocTypeIncidentReport  = "incident_report"
	DocTypeUploaded        = "uploaded"

	DocStatusReference = "reference"
	DocStatusExecuted  = "executed"
	DocStatusDeferred  = "deferred"
	DocStatusReport    = "report"

	DocRecoveryPending       = "pending"
	DocRecoveryRecovered     = "recovered"
	DocRecoveryNotExecuted   = "not_executed"
	DocRecoveryNotApplicable = "not_applicable"
)

// KnowledgeDocument is one persisted reference item in the RAG store.
type KnowledgeDocument struct {
	DocKey         string                 `json:"doc_key"`
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Clone returns a deep copy safe to hand to a caller outside the lock.
func (s MetricSample) Clone() MetricSample { return s }

// Clone returns a deep copy of the report, safe to hand outside the lock.
func (r IncidentReport) Clone() IncidentReport {
	out := r
	out.Metrics = r.Metrics.Clone()
	out.ActionItems = append([]string(nil), r.ActionItems...)
	out.FollowUp = append([]string(nil), r.FollowUp...)
	out.RecipientsSent = append([]string(nil), r.RecipientsSent...)
	out.RecipientsMissing = append([]string(nil), r.RecipientsMissing...)
	return out
}

// Clone returns a deep copy of the execution, safe to hand outside the lock.
func (e ActionExecution) Clone() ActionExecution {
	out := e
	out.Actions = append([]string(nil), e.Actions...)
	out.Results = append([]ActionExecutionResult(nil), e.Results...)
	if e.ExecutedAt != nil {
		t := *e.ExecutedAt
		out.ExecutedAt = &t
	}
	return out
}

// Clone returns a deep copy of the recovery check, safe to hand outside the lock.
func (c RecoveryCheck) Clone() RecoveryCheck {
	out := c
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

// Clone returns a deep copy of the document, safe to hand outside the lock.
func (d KnowledgeDocument) Clone() KnowledgeDocument {
	out := d
	out.Metadata = make(map[string]interface{}, len(d.Metadata))
	for k, v := range d.Metadata {
		out.Metadata[k] = v
	}
	return out
}
