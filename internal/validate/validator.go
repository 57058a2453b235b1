// Package validate orchestrates one comparison request: decision-cache
// lookup, model selection and load, a bounded generation call, deterministic
// classification of the answer, and a conditional cache write. Every terminal
// path reports exactly one outcome to the health monitor.
package validate

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"validd/internal/cache"
	"validd/internal/health"
	"validd/internal/manager"
	"validd/pkg/types"
)

// DefaultLookupThreshold is the minimum confidence for serving a cached
// decision.
const DefaultLookupThreshold = 0.7

var (
	comparesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validd",
			Subsystem: "validate",
			Name:      "compares_total",
			Help:      "Comparison outcomes",
		},
		[]string{"outcome"},
	)
	compareDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "validd",
			Subsystem: "validate",
			Name:      "compare_duration_seconds",
			Help:      "End-to-end comparison latency including load",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(comparesTotal, compareDuration)
}

// Validator ties the cache, lifecycle manager, and health monitor together.
type Validator struct {
	mgr     *manager.Manager
	store   *cache.Store
	monitor *health.Monitor
	log     zerolog.Logger

	// lookupThreshold gates cache hits; the persist floor lives in the store.
	lookupThreshold float64

	// group collapses concurrent requests for the same normalized key so a
	// burst of identical comparisons costs one inference.
	group singleflight.Group
}

// Config carries the Validator's collaborators.
type Config struct {
	Manager         *manager.Manager
	Store           *cache.Store
	Monitor         *health.Monitor
	Logger          zerolog.Logger
	LookupThreshold float64
}

// New constructs a Validator.
func New(cfg Config) *Validator {
	if cfg.LookupThreshold <= 0 {
		cfg.LookupThreshold = DefaultLookupThreshold
	}
	return &Validator{
		mgr:             cfg.Manager,
		store:           cfg.Store,
		monitor:         cfg.Monitor,
		log:             cfg.Logger.With().Str("component", "validate").Logger(),
		lookupThreshold: cfg.LookupThreshold,
	}
}

type compareResult struct {
	resp types.CompareResponse
	err  error
}

// Compare answers whether the two values represent the same information. The
// returned response is always populated: on error paths Match and Confidence
// are false/0.0 and the error message is carried in both the response and the
// returned error, which the HTTP layer maps to a status code. Exactly one
// health outcome is recorded per call.
func (v *Validator) Compare(ctx context.Context, req types.CompareRequest) (types.CompareResponse, error) {
	start := time.Now()
	key := cache.Key(req.ValueA, req.ValueB, req.FieldType)

	res, _, shared := v.group.Do(key, func() (interface{}, error) {
		resp, err := v.compareOnce(ctx, req)
		return compareResult{resp: resp, err: err}, nil
	})
	out := res.(compareResult)

	elapsed := time.Since(start)
	out.resp.ProcessingTimeMs = elapsed.Milliseconds()
	compareDuration.Observe(elapsed.Seconds())

	if out.err != nil {
		out.resp.Match = false
		out.resp.Confidence = 0.0
		out.resp.Error = out.err.Error()
		comparesTotal.WithLabelValues("error").Inc()
		v.monitor.RecordRequest(false, out.err.Error())
		return out.resp, out.err
	}

	switch {
	case out.resp.FromCache:
		comparesTotal.WithLabelValues("cache_hit").Inc()
	case shared:
		comparesTotal.WithLabelValues("collapsed").Inc()
	default:
		comparesTotal.WithLabelValues("inferred").Inc()
	}
	v.monitor.RecordRequest(true, "")
	return out.resp, nil
}

// compareOnce runs the single-flight body: lookup, select, load, infer,
// classify, persist.
func (v *Validator) compareOnce(ctx context.Context, req types.CompareRequest) (types.CompareResponse, error) {
	if hit, err := v.store.Lookup(req.ValueA, req.ValueB, req.FieldType, v.lookupThreshold); err != nil {
		// A broken cache must not take validation down; treat as a miss.
		v.log.Warn().Err(err).Msg("cache lookup failed, proceeding to inference")
	} else if hit != nil {
		v.log.Debug().Str("field_type", req.FieldType).Str("model", hit.ModelUsed).
			Msg("decision served from cache")
		return types.CompareResponse{
			Match:      hit.Match,
			Confidence: hit.Confidence,
			Reasoning:  hit.Reasoning,
			ModelUsed:  hit.ModelUsed,
			FromCache:  true,
		}, nil
	}

	desc, err := v.mgr.SelectCandidate(req.FieldType)
	if err != nil {
		return types.CompareResponse{}, err
	}
	if err := v.mgr.EnsureLoaded(ctx, desc); err != nil {
		return types.CompareResponse{}, err
	}

	prompt, params := buildPrompt(desc, req)
	inferStart := time.Now()
	completion, err := v.mgr.Generate(ctx, prompt, params.maxTokens, params.temperature, params.stop)
	inferMs := time.Since(inferStart).Milliseconds()
	if err != nil {
		return types.CompareResponse{}, err
	}

	out := classify(completion.Text, desc, req.ValueA, req.ValueB)
	v.log.Info().Str("field_type", req.FieldType).Str("field_name", req.FieldName).
		Str("model", desc.ID).Bool("match", out.match).Float64("confidence", out.confidence).
		Int64("infer_ms", inferMs).Int("tokens", completion.TokensGenerated).
		Msg("comparison classified")

	persisted, err := v.store.Record(types.ValidationDecision{
		ValueA:           req.ValueA,
		ValueB:           req.ValueB,
		FieldType:        req.FieldType,
		ModelUsed:        desc.ID,
		Match:            out.match,
		Confidence:       out.confidence,
		Reasoning:        out.reasoning,
		ProcessingTimeMs: inferMs,
	})
	if err != nil {
		v.log.Warn().Err(err).Msg("failed to persist decision")
	} else if !persisted {
		v.log.Debug().Float64("confidence", out.confidence).
			Msg("decision below persist floor, not cached")
	}

	return types.CompareResponse{
		Match:      out.match,
		Confidence: out.confidence,
		Reasoning:  out.reasoning,
		ModelUsed:  desc.ID,
	}, nil
}

// Ensure loads a descriptor by id on behalf of POST /load, reporting the
// outcome to the health monitor like any other operation.
func (v *Validator) Ensure(ctx context.Context, id string) (manager.ModelStatus, error) {
	var err error
	if id == "" {
		var desc types.ModelDescriptor
		desc, err = v.mgr.SelectCandidate("")
		if err == nil {
			err = v.mgr.EnsureLoaded(ctx, desc)
		}
	} else {
		err = v.mgr.EnsureLoadedByID(ctx, id)
	}
	if err != nil {
		v.monitor.RecordRequest(false, err.Error())
		return manager.ModelStatus{}, err
	}
	v.monitor.RecordRequest(true, "")
	return v.mgr.Status(), nil
}

// Complete issues one raw completion against the active (or best-fitting)
// model, for the llama.cpp compatible endpoint.
func (v *Validator) Complete(ctx context.Context, req types.CompletionRequest) (types.CompletionResponse, error) {
	if !v.mgr.Ready() {
		desc, err := v.mgr.SelectCandidate("")
		if err != nil {
			v.monitor.RecordRequest(false, err.Error())
			return types.CompletionResponse{}, err
		}
		if err := v.mgr.EnsureLoaded(ctx, desc); err != nil {
			v.monitor.RecordRequest(false, err.Error())
			return types.CompletionResponse{}, err
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = req.NPredict
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	start := time.Now()
	completion, err := v.mgr.Generate(ctx, req.Prompt, maxTokens, temperature, req.Stop)
	if err != nil {
		v.monitor.RecordRequest(false, err.Error())
		return types.CompletionResponse{}, err
	}
	v.monitor.RecordRequest(true, "")

	resp := types.CompletionResponse{
		Content:         completion.Text,
		TokensPredicted: completion.TokensGenerated,
		Model:           v.mgr.Status().ModelID,
	}
	resp.Timings.PredictedMs = float64(time.Since(start)) / float64(time.Millisecond)
	return resp, nil
}

// Health combines the monitor snapshot with model state.
func (v *Validator) Health() types.HealthResponse {
	snap := v.monitor.Snapshot()
	st := v.mgr.Status()
	return types.HealthResponse{
		HealthSnapshot: snap,
		ModelLoaded:    st.Loaded,
		ModelID:        st.ModelID,
		LoadTimeMs:     st.LoadTimeMs,
		RequestCount:   st.RequestCount,
	}
}

// Models exposes the per-descriptor availability report.
func (v *Validator) Models() types.ModelsResponse { return v.mgr.Reports() }

// Ready reports whether a model is loaded, for the readiness probe.
func (v *Validator) Ready() bool { return v.mgr.Ready() }

// Unload releases the active model, used during shutdown.
func (v *Validator) Unload() { v.mgr.Unload() }
