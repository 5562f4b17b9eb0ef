package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://www.viabtc.com"
	defaultUserAgent = "Mozilla/5.0"
)

// ErrAPI is returned when the pool answers with a non-200 status or a
// non-zero envelope code.
var ErrAPI = errors.New("pool api error")

// ViaBTCOptions parameterise the pool client.
type ViaBTCOptions struct {
	BaseURL           string
	Coin              string
	BlockLimit        int
	PayoutLimit       int
	Timeout           time.Duration
	UserAgent         string
	Cookie            string
	RequestsPerMinute int
	Location          *time.Location
}

// ViaBTC reads block and earnings pages from the pool's public JSON endpoints.
type ViaBTC struct {
	opts    ViaBTCOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewViaBTC constructs a pool client.
func NewViaBTC(opts ViaBTCOptions, logger zerolog.Logger) *ViaBTC {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if opts.Coin == "" {
		opts.Coin = "BTC"
	}
	if opts.BlockLimit <= 0 {
		opts.BlockLimit = 50
	}
	if opts.PayoutLimit <= 0 {
		opts.PayoutLimit = 10
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60.0)
	}

	return &ViaBTC{
		opts:    opts,
		logger:  logger.With().Str("component", "pool_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// FetchBlocks returns the first page of pool blocks. Records that cannot be
// parsed are logged and dropped.
func (v *ViaBTC) FetchBlocks(ctx context.Context) ([]BlockEvent, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("limit", strconv.Itoa(v.opts.BlockLimit))

	path := fmt.Sprintf("/res/pool/%s/block", v.opts.Coin)
	payload, err := v.get(ctx, path, params, nil)
	if err != nil {
		return nil, err
	}

	var records []blockRecord
	if err := decodeList(payload, &records); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}

	events := make([]BlockEvent, 0, len(records))
	for i, rec := range records {
		ev, err := rec.event()
		if err != nil {
			v.logger.Warn().Err(err).Int("index", i).Msg("skip malformed block record")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// FetchPayouts returns the first page of PPLNS earnings for month.
func (v *ViaBTC) FetchPayouts(ctx context.Context, month string) ([]PayoutEvent, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("limit", strconv.Itoa(v.opts.PayoutLimit))
	params.Set("month", month)

	headers := map[string]string{
		"Referer": v.baseURL + "/miners/earnings?coin=" + v.opts.Coin,
		"Origin":  v.baseURL,
	}
	if v.opts.Cookie != "" {
		headers["Cookie"] = v.opts.Cookie
	}

	path := fmt.Sprintf("/res/profit/%s/pplns", v.opts.Coin)
	payload, err := v.get(ctx, path, params, headers)
	if err != nil {
		return nil, err
	}

	var records []payoutRecord
	if err := decodeList(payload, &records); err != nil {
		return nil, fmt.Errorf("decode payouts: %w", err)
	}

	events := make([]PayoutEvent, 0, len(records))
	for i, rec := range records {
		ev, err := rec.event(v.opts.Location)
		if err != nil {
			v.logger.Warn().Err(err).Int("index", i).Msg("skip malformed payout record")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (v *ViaBTC) get(ctx context.Context, path string, params url.Values, headers map[string]string) (envelope, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return envelope{}, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := v.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return envelope{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(v.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return envelope{}, fmt.Errorf("%w: %s returned %d: %s", ErrAPI, path, resp.StatusCode, truncate(body, 200))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Code != 0 {
		return envelope{}, fmt.Errorf("%w: %s code %d: %s", ErrAPI, path, env.Code, env.Message)
	}
	return env, nil
}

func decodeList(env envelope, out any) error {
	if len(env.Data.Data) == 0 || string(env.Data.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data.Data, out)
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}

var (
	_ BlockFetcher  = (*ViaBTC)(nil)
	_ PayoutFetcher = (*ViaBTC)(nil)
)
