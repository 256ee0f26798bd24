package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edelagziel/SkyWatch/internal/engine"
	"github.com/edelagziel/SkyWatch/internal/metrics"
	"github.com/edelagziel/SkyWatch/internal/model"
	"github.com/edelagziel/SkyWatch/internal/policy"
	"github.com/edelagziel/SkyWatch/internal/rules"
	"github.com/edelagziel/SkyWatch/internal/schema"
)

// HTTPAPI provides the HTTP surface of the policy engine service.
type HTTPAPI struct {
	registry   *rules.Registry
	repository policy.Repository
	validator  *schema.SnapshotValidator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewHTTPAPI creates the HTTP API. repository is the default policy source
// used when an evaluate request carries no inline policies; metrics may be
// nil.
func NewHTTPAPI(registry *rules.Registry, repository policy.Repository, validator *schema.SnapshotValidator, m *metrics.Metrics, logger *slog.Logger) *HTTPAPI {
	return &HTTPAPI{
		registry:   registry,
		repository: repository,
		validator:  validator,
		metrics:    m,
		logger:     logger,
	}
}

// Router builds the route set.
func (api *HTTPAPI) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/evaluate", api.handleEvaluate).Methods(http.MethodPost)
	r.HandleFunc("/rules", api.handleRules).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", api.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", api.handleReady).Methods(http.MethodGet)
	return r
}

// evaluateRequest carries a snapshot document and, optionally, an inline
// policy configuration document that takes precedence over the service's
// configured policy source for this call.
type evaluateRequest struct {
	Snapshot json.RawMessage `json:"snapshot"`
	Policies json.RawMessage `json:"policies"`
}

func (api *HTTPAPI) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req evaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.rejectSnapshot(w, "invalid request body: "+err.Error())
		return
	}
	if len(req.Snapshot) == 0 {
		// Bare snapshot documents are accepted as well.
		req.Snapshot = body
	}

	if err := api.validator.Validate(req.Snapshot); err != nil {
		api.rejectSnapshot(w, err.Error())
		return
	}

	snapshot, err := model.ParseSnapshot(req.Snapshot)
	if err != nil {
		api.rejectSnapshot(w, err.Error())
		return
	}

	repository := api.repository
	if len(req.Policies) > 0 {
		configs, err := model.ParseRuleConfigs(req.Policies)
		if err != nil {
			api.rejectSnapshot(w, err.Error())
			return
		}
		repository = policy.NewStaticRepository(configs)
	}

	eng := engine.NewEngine(repository, api.registry, engineMetrics(api.metrics), api.logger)
	result, err := eng.Evaluate(snapshot)
	if err != nil {
		api.logger.Error("Evaluation failed", "snapshot_id", snapshot.SnapshotID, "error", err)
		http.Error(w, "evaluation failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if api.metrics != nil {
		api.metrics.IncSnapshotsProcessed()
	}

	out, err := model.MarshalResult(result, false)
	if err != nil {
		http.Error(w, "failed to encode result", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

// ruleInfo describes one registered rule for GET /rules.
type ruleInfo struct {
	RuleID          string `json:"rule_id"`
	Version         string `json:"version"`
	DefaultSeverity string `json:"default_severity"`
}

func (api *HTTPAPI) handleRules(w http.ResponseWriter, r *http.Request) {
	ids := api.registry.IDs()
	sort.Strings(ids)

	infos := make([]ruleInfo, 0, len(ids))
	for _, id := range ids {
		rule, err := api.registry.Get(id)
		if err != nil {
			continue
		}
		infos = append(infos, ruleInfo{
			RuleID:          rule.ID(),
			Version:         rule.Version(),
			DefaultSeverity: string(rule.DefaultSeverity()),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"rules": infos})
}

func (api *HTTPAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (api *HTTPAPI) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func (api *HTTPAPI) rejectSnapshot(w http.ResponseWriter, message string) {
	if api.metrics != nil {
		api.metrics.IncSnapshotsRejected()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// engineMetrics adapts a possibly nil *metrics.Metrics to the engine's
// interface without wrapping a typed nil in a non-nil interface value.
func engineMetrics(m *metrics.Metrics) engine.Metrics {
	if m == nil {
		return nil
	}
	return m
}
