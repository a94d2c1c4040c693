// Package state holds the console's single shared, mutable aggregate: the
// rolling sample window, active incident set, feed, queued reports and
// action executions, recovery checks, and recipient registry. Exactly one
// mutex guards all of it; every exported method takes the lock for its
// minimal critical section and returns deep copies so callers never hold
// the lock while doing network I/O.
package state

import (
	"strings"
	"sync"
	"time"

	"github.com/incident-console/backend/internal/domain"
)

const (
	feedCapacity       = 1000
	pendingReportCap   = 20
	actionExecutionCap = 30
)

// MetricsSettings configures the Metrics Client and the thresholds the
// Sampling Monitor compares samples against.
type MetricsSettings struct {
	URL           string
	HTTPQuery     string
	CPUQuery      string
	HTTPThreshold float64
	CPUThreshold  float64
}

// Configured reports whether enough settings are present to poll.
func (m MetricsSettings) Configured() bool {
	return m.URL != "" && m.HTTPQuery != "" && m.CPUQuery != ""
}

// ChatSettings configures the Chat Client.
type ChatSettings struct {
	Token     string
	Channel   string
	Workspace string
}

// Configured reports whether enough settings are present to deliver.
func (c ChatSettings) Configured() bool {
	return c.Token != "" && c.Channel != ""
}

// Preferences are user-controlled delivery toggles.
type Preferences struct {
	ChatEnabled bool
}

// Store is the process-wide shared state aggregate. The zero value is not
// usable; construct with New.
type Store struct {
	mu sync.Mutex

	metrics     MetricsSettings
	chat        ChatSettings
	llmAPIKey   string
	preferences Preferences

	scenarios []domain.AlertScenario

	window  int
	samples []domain.MetricSample

	activeIncidents map[string]bool

	feed              []string
	alertHistory      []string
	lastAlertScenario *domain.AlertScenario
	lastReport        *domain.IncidentReport

	pendingReports   []domain.IncidentReport
	actionExecutions []domain.ActionExecution
	recoveryChecks   []domain.RecoveryCheck
	recipients       []domain.EmailRecipient
}

// New constructs a Store seeded with scenarios and a sample window capacity.
func New(scenarios []domain.AlertScenario, window int) *Store {
	if window <= 0 {
		window = 5
	}
	return &Store{
		scenarios:       scenarios,
		window:          window,
		activeIncidents: make(map[string]bool),
		feed:            make([]string, 0, 32),
	}
}

// --- configuration ---------------------------------------------------

func (s *Store) MetricsSettings() MetricsSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *Store) SetMetricsSettings(m MetricsSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

func (s *Store) ChatSettings() ChatSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

func (s *Store) SetChatSettings(c ChatSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = c
}

func (s *Store) LLMAPIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.llmAPIKey
}

func (s *Store) SetLLMAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmAPIKey = key
}

func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferences
}

func (s *Store) SetPreferences(p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences = p
}

func (s *Store) Scenarios() []domain.AlertScenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AlertScenario, len(s.scenarios))
	copy(out, s.scenarios)
	return out
}

// ScenarioByCode returns the seeded scenario for code, if any.
func (s *Store) ScenarioByCode(code string) (domain.AlertScenario, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scenarios {
		if sc.Code == code {
			return sc, true
		}
	}
	return domain.AlertScenario{}, false
}

// --- samples & active incidents --------------------------------------

// PushSample appends a sample to the rolling window, evicting the oldest
// entry once the window is full, and returns the current window snapshot.
func (s *Store) PushSample(sample domain.MetricSample) []domain.MetricSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	if len(s.samples) > s.window {
		s.samples = s.samples[len(s.samples)-s.window:]
	}
	out := make([]domain.MetricSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Samples returns a copy of the current rolling window.
func (s *Store) Samples() []domain.MetricSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MetricSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// WindowFull reports whether the rolling window has reached capacity.
func (s *Store) WindowFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples) >= s.window
}

// ActiveIncidents returns the current set of active scenario codes.
func (s *Store) ActiveIncidents() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.activeIncidents))
	for k, v := range s.activeIncidents {
		out[k] = v
	}
	return out
}

// ActivateIncident marks code as active. Returns false if already active.
func (s *Store) ActivateIncident(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeIncidents[code] {
		return false
	}
	s.activeIncidents[code] = true
	return true
}

// DeactivateIncident clears code from the active set.
func (s *Store) DeactivateIncident(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeIncidents, code)
}

// --- feed --------------------------------------------------------------

// AppendFeed appends a timestamped line to the feed, evicting the oldest
// line once the feed reaches capacity.
func (s *Store) AppendFeed(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := "[" + time.Now().UTC().Format("15:04:05") + "] " + line
	s.feed = append(s.feed, entry)
	if len(s.feed) > feedCapacity {
		s.feed = s.feed[len(s.feed)-feedCapacity:]
	}
}

// Feed returns a copy of the current feed lines.
func (s *Store) Feed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.feed))
	copy(out, s.feed)
	return out
}

// RecordAlert prepends label to the alert history and remembers scenario as
// the most recently triggered one, for handlers (like chat dispatch) that
// act on "the last alert" without the caller naming a scenario again.
func (s *Store) RecordAlert(label string, scenario domain.AlertScenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertHistory = append([]string{label}, s.alertHistory...)
	clone := scenario
	s.lastAlertScenario = &clone
}

// AlertHistory returns a copy of the alert history, most recent first.
func (s *Store) AlertHistory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.alertHistory))
	copy(out, s.alertHistory)
	return out
}

// LastAlertScenario returns the most recently triggered scenario, if any.
func (s *Store) LastAlertScenario() (domain.AlertScenario, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAlertScenario == nil {
		return domain.AlertScenario{}, false
	}
	return *s.lastAlertScenario, true
}

// --- reports & executions ----------------------------------------------

// RecordReport stores report as last_report and, if it has any missing
// recipients, enqueues it into pending_reports (FIFO, capacity 20).
func (s *Store) RecordReport(report domain.IncidentReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := report.Clone()
	s.lastReport = &clone
	if len(report.RecipientsMissing) > 0 {
		s.pendingReports = append(s.pendingReports, report.Clone())
		if len(s.pendingReports) > pendingReportCap {
			s.pendingReports = s.pendingReports[len(s.pendingReports)-pendingReportCap:]
		}
	}
}

// LastReport returns a copy of the last recorded report, if any.
func (s *Store) LastReport() (domain.IncidentReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return domain.IncidentReport{}, false
	}
	return s.lastReport.Clone(), true
}

// PendingReports returns a copy of the pending-report queue.
func (s *Store) PendingReports() []domain.IncidentReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.IncidentReport, len(s.pendingReports))
	for i, r := range s.pendingReports {
		out[i] = r.Clone()
	}
	return out
}

// AcknowledgePendingReport removes the report with the given id from the
// pending queue. It does not rewrite recipients_sent/recipients_missing --
// that is a factual record of what happened at dispatch time.
func (s *Store) AcknowledgePendingReport(id string) (domain.IncidentReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.pendingReports {
		if r.ID == id {
			s.pendingReports = append(s.pendingReports[:i], s.pendingReports[i+1:]...)
			return r.Clone(), true
		}
	}
	return domain.IncidentReport{}, false
}

// QueueExecution appends a new pending ActionExecution (FIFO, capacity 30).
func (s *Store) QueueExecution(exec domain.ActionExecution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionExecutions = append(s.actionExecutions, exec.Clone())
	if len(s.actionExecutions) > actionExecutionCap {
		s.actionExecutions = s.actionExecutions[len(s.actionExecutions)-actionExecutionCap:]
	}
}

// Execution returns a copy of the execution with the given id.
func (s *Store) Execution(id string) (domain.ActionExecution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.actionExecutions {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return domain.ActionExecution{}, false
}

// UpdateExecution replaces the stored execution matching exec.ID.
func (s *Store) UpdateExecution(exec domain.ActionExecution) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.actionExecutions {
		if e.ID == exec.ID {
			s.actionExecutions[i] = exec.Clone()
			return true
		}
	}
	return false
}

// Executions returns a copy of the full execution list.
func (s *Store) Executions() []domain.ActionExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ActionExecution, len(s.actionExecutions))
	for i, e := range s.actionExecutions {
		out[i] = e.Clone()
	}
	return out
}

// --- recovery checks -----------------------------------------------------

// OpenRecoveryCheck appends a new pending RecoveryCheck.
func (s *Store) OpenRecoveryCheck(check domain.RecoveryCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveryChecks = append(s.recoveryChecks, check.Clone())
}

// RecoveryChecks returns a copy of all recovery checks.
func (s *Store) RecoveryChecks() []domain.RecoveryCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RecoveryCheck, len(s.recoveryChecks))
	for i, c := range s.recoveryChecks {
		out[i] = c.Clone()
	}
	return out
}

// PruneResolvedRecoveryChecks drops recovered checks whose resolved_at is
// older than olderThan, returning how many were dropped. Pure housekeeping;
// never touches pending checks.
func (s *Store) PruneResolvedRecoveryChecks(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.recoveryChecks[:0]
	dropped := 0
	for _, c := range s.recoveryChecks {
		if c.Status == domain.RecoveryRecovered && c.ResolvedAt != nil && c.ResolvedAt.Before(olderThan) {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	s.recoveryChecks = kept
	return dropped
}

// ResolvePendingRecoveryChecks marks every pending RecoveryCheck as
// recovered at resolvedAt, returning the ones it changed.
func (s *Store) ResolvePendingRecoveryChecks(resolvedAt time.Time) []domain.RecoveryCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []domain.RecoveryCheck
	for i := range s.recoveryChecks {
		if s.recoveryChecks[i].Status == domain.RecoveryPending {
			s.recoveryChecks[i].Status = domain.RecoveryRecovered
			t := resolvedAt
			s.recoveryChecks[i].ResolvedAt = &t
			changed = append(changed, s.recoveryChecks[i].Clone())
		}
	}
	return changed
}

// --- email recipients ----------------------------------------------------

// AddRecipient inserts a recipient with its email trimmed and lowercased,
// rejecting duplicates.
func (s *Store) AddRecipient(recipient domain.EmailRecipient) (domain.EmailRecipient, bool) {
	recipient.Email = strings.ToLower(strings.TrimSpace(recipient.Email))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if r.Email == recipient.Email {
			return domain.EmailRecipient{}, false
		}
	}
	s.recipients = append(s.recipients, recipient)
	return recipient, true
}

// RemoveRecipient deletes the recipient with the given id.
func (s *Store) RemoveRecipient(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.recipients {
		if r.ID == id {
			s.recipients = append(s.recipients[:i], s.recipients[i+1:]...)
			return true
		}
	}
	return false
}

// Recipients returns a copy of the recipient registry.
func (s *Store) Recipients() []domain.EmailRecipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EmailRecipient, len(s.recipients))
	copy(out, s.recipients)
	return out
}

// Snapshot is the full /state response payload.
type Snapshot struct {
	Metrics          MetricsSettings          `json:"metrics"`
	Chat             ChatSettings             `json:"chat"`
	LLMConfigured    bool                     `json:"llm_configured"`
	Preferences      Preferences              `json:"preferences"`
	Scenarios        []domain.AlertScenario   `json:"scenarios"`
	Samples          []domain.MetricSample    `json:"monitor_samples"`
	ActiveIncidents  []string                 `json:"active_incidents"`
	Feed             []string                 `json:"feed"`
	LastReport       *domain.IncidentReport   `json:"last_report,omitempty"`
	PendingReports   []domain.IncidentReport  `json:"pending_reports"`
	ActionExecutions []domain.ActionExecution `json:"action_executions"`
	RecoveryChecks   []domain.RecoveryCheck   `json:"recovery_checks"`
	EmailRecipients  []domain.EmailRecipient  `json:"email_recipients"`
}

// Snapshot returns a consistent, deep-copied view of the entire state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([]domain.MetricSample, len(s.samples))
	copy(samples, s.samples)

	active := make([]string, 0, len(s.activeIncidents))
	for code := range s.activeIncidents {
		active = append(active, code)
	}

	feed := make([]string, len(s.feed))
	copy(feed, s.feed)

	pending := make([]domain.IncidentReport, len(s.pendingReports))
	for i, r := range s.pendingReports {
		pending[i] = r.Clone()
	}

	execs := make([]domain.ActionExecution, len(s.actionExecutions))
	for i, e := range s.actionExecutions {
		execs[i] = e.Clone()
	}

	checks := make([]domain.RecoveryCheck, len(s.recoveryChecks))
	for i, c := range s.recoveryChecks {
		checks[i] = c.Clone()
	}

	recipients := make([]domain.EmailRecipient, len(s.recipients))
	copy(recipients, s.recipients)

	scenarios := make([]domain.AlertScenario, len(s.scenarios))
	copy(scenarios, s.scenarios)

	var lastReport *domain.IncidentReport
	if s.lastReport != nil {
		clone := s.lastReport.Clone()
		lastReport = &clone
	}

	return Snapshot{
		Metrics:          s.metrics,
		Chat:             s.chat,
		LLMConfigured:    s.llmAPIKey != "",
		Preferences:      s.preferences,
		Scenarios:        scenarios,
		Samples:          samples,
		ActiveIncidents:  active,
		Feed:             feed,
		LastReport:       lastReport,
		PendingReports:   pending,
		ActionExecutions: execs,
		RecoveryChecks:   checks,
		EmailRecipients:  recipients,
	}
}
