package leetcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"leetbot/internal/domain"
	logx "leetbot/pkg/logx"
)

const DefaultGraphQLURL = "https://leetcode.com/graphql"

// Config configures the client. Zero values get defaults.
type Config struct {
	GraphQLURL string
	Timeout    time.Duration

	// RatePerSec and Burst bound outbound requests.
	RatePerSec float64
	Burst      int

	// PoolSize is how many problems of one difficulty are sampled from.
	PoolSize int

	CacheMB  int
	CacheTTL time.Duration

	UserAgent string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.GraphQLURL) == "" {
		c.GraphQLURL = DefaultGraphQLURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 2
	}
	if c.Burst <= 0 {
		c.Burst = 4
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 100
	}
	// freecache rejects entries over 1/1024 of its size; a 100-problem pool
	// is ~12KB.
	if c.CacheMB <= 0 {
		c.CacheMB = 32
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 6 * time.Hour
	}
	if c.UserAgent == "" {
		c.UserAgent = "leetbot/1.0"
	}
	return c
}

// Client talks to the LeetCode GraphQL endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   *freecache.Cache
	group   singleflight.Group
	log     logx.Logger

	// pick returns a uniform index in [0,n).
	pick func(n int) int
}

func New(cfg Config, httpClient *http.Client, log logx.Logger) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		cache:   freecache.NewCache(cfg.CacheMB * 1024 * 1024),
		log:     log.With(logx.Component("leetcode")),
		pick:    rand.IntN,
	}
}

// FetchProblem returns today's official challenge for DifficultyRandom, or a
// uniformly sampled free problem of the given difficulty.
func (c *Client) FetchProblem(ctx context.Context, d domain.Difficulty) (domain.Problem, bool) {
	var (
		p   domain.Problem
		err error
	)
	switch d {
	case domain.DifficultyRandom, "":
		p, err = c.fetchDaily(ctx)
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
		p, err = c.fetchFromPool(ctx, d)
	default:
		err = fmt.Errorf("unknown difficulty %q", d)
	}
	if err != nil {
		c.log.Warn("fetch problem failed", logx.String("difficulty", string(d)), logx.Err(err))
		return domain.Problem{}, false
	}
	return p, true
}

// FetchSolvedCount returns the user's accepted-problem total. ok=false means
// the lookup failed or the user does not exist.
func (c *Client) FetchSolvedCount(ctx context.Context, username string) (int, bool) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, false
	}
	var resp userStatsResponse
	err := c.do(ctx, gqlRequest{Query: queryUserStats, OperationName: "userStats", Variables: map[string]any{"username": username}}, &resp)
	if err == nil && len(resp.Errors) > 0 {
		err = fmt.Errorf("graphql: %s", resp.Errors[0].Message)
	}
	if err == nil && resp.Data.MatchedUser == nil {
		err = errors.New("user not found")
	}
	if err != nil {
		c.log.Warn("fetch solved count failed", logx.String("username", username), logx.Err(err))
		return 0, false
	}
	return solvedTotal(resp.Data.MatchedUser.SubmitStats.AC), true
}

// solvedTotal prefers the "All" bucket; without it the per-difficulty
// buckets are summed.
func solvedTotal(buckets []acBucket) int {
	sum := 0
	for _, b := range buckets {
		if strings.EqualFold(b.Difficulty, "All") {
			return b.Count
		}
		sum += b.Count
	}
	return sum
}

func (c *Client) fetchDaily(ctx context.Context) (domain.Problem, error) {
	var resp dailyResponse
	if err := c.do(ctx, gqlRequest{Query: queryDaily, OperationName: "questionOfToday"}, &resp); err != nil {
		return domain.Problem{}, err
	}
	if len(resp.Errors) > 0 {
		return domain.Problem{}, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
	}
	if resp.Data.Active == nil || resp.Data.Active.Question == nil {
		return domain.Problem{}, errors.New("daily challenge missing from response")
	}
	return toProblem(*resp.Data.Active.Question, domain.DifficultyRandom)
}

func (c *Client) fetchFromPool(ctx context.Context, d domain.Difficulty) (domain.Problem, error) {
	pool, err := c.pool(ctx, d)
	if err != nil {
		return domain.Problem{}, err
	}
	if len(pool) == 0 {
		return domain.Problem{}, fmt.Errorf("no free %s problems", d)
	}
	return toProblem(pool[c.pick(len(pool))], d)
}

// pool returns the free problems of d, cached for CacheTTL. Concurrent
// misses share one upstream request.
func (c *Client) pool(ctx context.Context, d domain.Difficulty) ([]question, error) {
	key := []byte("pool:" + d.GraphQL())
	if b, err := c.cache.Get(key); err == nil {
		var qs []question
		if err := json.Unmarshal(b, &qs); err == nil {
			return qs, nil
		}
		c.cache.Del(key)
	}

	v, err, _ := c.group.Do(string(key), func() (any, error) {
		var resp problemsetResponse
		req := gqlRequest{
			Query:         queryProblemset,
			OperationName: "problemsetQuestionList",
			Variables: map[string]any{
				"categorySlug": "",
				"limit":        c.cfg.PoolSize,
				"skip":         0,
				"filters":      map[string]any{"difficulty": d.GraphQL()},
			},
		}
		if err := c.do(ctx, req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
		}
		if resp.Data.List == nil {
			return nil, errors.New("problem list missing from response")
		}
		free := make([]question, 0, len(resp.Data.List.Questions))
		for _, q := range resp.Data.List.Questions {
			if !q.IsPaidOnly && q.TitleSlug != "" {
				free = append(free, q)
			}
		}
		if b, err := json.Marshal(free); err == nil && len(free) > 0 {
			_ = c.cache.Set(key, b, int(c.cfg.CacheTTL/time.Second))
		}
		return free, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]question), nil
}

func toProblem(q question, d domain.Difficulty) (domain.Problem, error) {
	if q.TitleSlug == "" || q.Title == "" {
		return domain.Problem{}, errors.New("question without title or slug")
	}
	if d == domain.DifficultyRandom {
		if parsed, ok := domain.ParseDifficulty(q.Difficulty); ok {
			d = parsed
		}
	}
	return domain.Problem{ID: q.QuestionID, Title: q.Title, Slug: q.TitleSlug, Difficulty: d}, nil
}

func (c *Client) do(ctx context.Context, req gqlRequest, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("Referer", "https://leetcode.com")
	hreq.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("graphql request", logx.String("op", req.OperationName), logx.Int("status", resp.StatusCode), logx.Duration("took", time.Since(start)))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
