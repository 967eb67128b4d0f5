package counter

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const totalsKey = "scribefox:counters:outcomes"

// Outcome labels shared by all recorders.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeNoChange = "unchanged"
	OutcomeChanged  = "changed"
)

// Recorder counts sync, dispatch and reconcile outcomes in Prometheus and,
// when a Redis client is set, in a cluster-wide Redis hash. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	rdb *redis.Client

	ledgerSync *prometheus.CounterVec
	dispatch   *prometheus.CounterVec
	reconcile  *prometheus.CounterVec
	webhooks   *prometheus.CounterVec
}

// New registers the collectors on reg. rdb may be nil.
func New(reg prometheus.Registerer, rdb *redis.Client) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		rdb: rdb,
		ledgerSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribefox_ledger_sync_total",
			Help: "External ledger sync attempts by operation, entity and outcome.",
		}, []string{"op", "entity", "outcome"}),
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribefox_ledger_dispatch_total",
			Help: "Ledger sync tasks handed to the work queue by outcome.",
		}, []string{"outcome"}),
		reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribefox_subscription_reconcile_total",
			Help: "Subscription upserts by source and outcome.",
		}, []string{"source", "outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribefox_billing_webhooks_total",
			Help: "Inbound billing webhooks by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{r.ledgerSync, r.dispatch, r.reconcile, r.webhooks} {
		if err := reg.Register(c); err != nil {
			log.Warnf("[Metrics] register collector: %v", err)
		}
	}
	return r
}

// LedgerSync records one ledger sync attempt.
func (r *Recorder) LedgerSync(op, entity, outcome string) {
	if r == nil {
		return
	}
	r.ledgerSync.WithLabelValues(op, entity, outcome).Inc()
	r.incrTotal("ledger_sync", op, entity, outcome)
}

// Dispatch records a hand-off to the work queue.
func (r *Recorder) Dispatch(outcome string) {
	if r == nil {
		return
	}
	r.dispatch.WithLabelValues(outcome).Inc()
	r.incrTotal("dispatch", outcome)
}

// Reconcile records one subscription upsert.
func (r *Recorder) Reconcile(source, outcome string) {
	if r == nil {
		return
	}
	r.reconcile.WithLabelValues(source, outcome).Inc()
	r.incrTotal("reconcile", source, outcome)
}

// Webhook records the result of an inbound provider event.
func (r *Recorder) Webhook(result string) {
	if r == nil {
		return
	}
	r.webhooks.WithLabelValues(result).Inc()
	r.incrTotal("webhook", result)
}

func (r *Recorder) incrTotal(parts ...string) {
	if r.rdb == nil {
		return
	}
	field := strings.Join(parts, ":")
	if err := r.rdb.HIncrBy(context.Background(), totalsKey, field, 1).Err(); err != nil {
		log.Debugf("[Metrics] redis total %s: %v", field, err)
	}
}

// Totals returns the cluster-wide counters kept in Redis. Empty without Redis.
func (r *Recorder) Totals(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	if r == nil || r.rdb == nil {
		return out, nil
	}
	data, err := r.rdb.HGetAll(ctx, totalsKey).Result()
	if err != nil {
		return nil, err
	}
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
