// README: Bench cases; each mints its own tokens and reports PASS, FAIL or SKIP.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridedesk/internal/infra"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// raceTripID is set by the accept race and checked against the ledger.
	raceTripID string
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg, httpc: &http.Client{Timeout: 10 * time.Second}}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		start := time.Now()
		res := tc.Run(ctx, r)
		res.Latency = time.Since(start)
		results = append(results, res)
		fmt.Printf("%-5s %s (%s)", res.Status, tc.Name, res.Latency.Round(time.Millisecond))
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: pingDB},
		{Name: "Env: Redis connect", Run: pingRedis},
		{Name: "API: health", Run: health},
		{Name: "Race: concurrent accept of one ride", Run: acceptRace},
		{Name: "Ledger: single ACCEPTED offer", Run: ledgerHasOneWinner},
		{Name: "Perf: presence update throughput", Run: presenceLoad},
	}
}

func pingDB(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func pingRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func health(ctx context.Context, r *Runner) Result {
	code, _, err := r.call(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != http.StatusOK {
		return Result{Status: statusFail, Note: fmt.Sprintf("status=%d", code)}
	}
	return Result{Status: statusPass}
}

// acceptRace books one ride, puts Concurrency drivers online next to the
// pickup, dispatches, and lets every driver accept at once.
func acceptRace(ctx context.Context, r *Runner) Result {
	if r.cfg.JWTSecret == "" {
		return Result{Status: statusSkip, Note: "jwt secret not configured"}
	}
	run := uuid.NewString()[:8]
	passenger, err := infra.SignToken(r.cfg.JWTSecret, "bench-p-"+run, "passenger", time.Hour)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}

	// Offset the pickup per run so earlier runs' drivers stay out of range.
	lng := 3.0 + float64(time.Now().UnixNano()%1000)/10000
	ride := map[string]any{
		"pickup":  map[string]any{"address": "bench pickup", "coordinates": map[string]float64{"lng": lng, "lat": 6.45}},
		"dropoff": map[string]any{"address": "bench dropoff", "coordinates": map[string]float64{"lng": lng + 0.05, "lat": 6.45}},
	}
	code, body, err := r.call(ctx, http.MethodPost, "/api/v1/rides", passenger, ride)
	if err != nil || code != http.StatusCreated {
		return Result{Status: statusFail, Note: fmt.Sprintf("create ride: status=%d err=%v", code, err)}
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}

	drivers := make([]string, r.cfg.Concurrency)
	for i := range drivers {
		tok, err := infra.SignToken(r.cfg.JWTSecret, fmt.Sprintf("bench-d-%s-%d", run, i), "driver", time.Hour)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		drivers[i] = tok
		presence := map[string]any{"availability": "ONLINE", "position": map[string]float64{"lng": lng + float64(i)*0.0001, "lat": 6.45}}
		if code, _, err := r.call(ctx, http.MethodPut, "/api/v1/driver/presence", tok, presence); err != nil || code != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("presence: status=%d err=%v", code, err)}
		}
	}

	code, body, err = r.call(ctx, http.MethodPost, "/api/v1/matching/"+created.ID+"/dispatch", passenger, nil)
	if err != nil || code != http.StatusOK {
		return Result{Status: statusFail, Note: fmt.Sprintf("dispatch: status=%d err=%v", code, err)}
	}
	var dispatched struct {
		Notified []string `json:"notified"`
	}
	_ = json.Unmarshal(body, &dispatched)

	var ok, conflict, other int64
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, tok := range drivers {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			<-start
			code, _, err := r.call(ctx, http.MethodPost, "/api/v1/driver/trips/"+created.ID+"/accept", tok, nil)
			switch {
			case err != nil:
				atomic.AddInt64(&other, 1)
			case code == http.StatusOK:
				atomic.AddInt64(&ok, 1)
			case code == http.StatusConflict:
				atomic.AddInt64(&conflict, 1)
			default:
				// Forbidden for drivers the dispatch did not reach.
				atomic.AddInt64(&other, 1)
			}
		}(tok)
	}
	close(start)
	wg.Wait()

	r.raceTripID = created.ID
	note := fmt.Sprintf("notified=%d ok=%d conflict=%d other=%d", len(dispatched.Notified), ok, conflict, other)
	if ok != 1 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func ledgerHasOneWinner(ctx context.Context, r *Runner) Result {
	if r.db == nil || r.raceTripID == "" {
		return Result{Status: statusSkip, Note: "needs db and a completed race"}
	}
	var accepted, open int
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'ACCEPTED'),
			COUNT(*) FILTER (WHERE status = 'SENT')
		FROM trip_offers WHERE trip_id = $1`, r.raceTripID).Scan(&accepted, &open)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("accepted=%d sent=%d", accepted, open)
	if accepted != 1 || open != 0 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func presenceLoad(ctx context.Context, r *Runner) Result {
	if r.cfg.JWTSecret == "" {
		return Result{Status: statusSkip, Note: "jwt secret not configured"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		tok, err := infra.SignToken(r.cfg.JWTSecret, fmt.Sprintf("bench-load-%d", i), "driver", time.Hour)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		wg.Add(1)
		go func(tok string, i int) {
			defer wg.Done()
			body := map[string]any{"availability": "OFFLINE", "position": map[string]float64{"lng": 2.5 + float64(i)*0.001, "lat": 6.3}}
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, err := r.call(ctx, http.MethodPut, "/api/v1/driver/presence", tok, body)
				if err != nil || code != http.StatusOK {
					atomic.AddInt64(&errCount, 1)
					continue
				}
				atomic.AddInt64(&count, 1)
			}
		}(tok, i)
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func (r *Runner) call(ctx context.Context, method, path, token string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}
