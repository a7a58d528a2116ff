package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/equityledger/libeto-go/ulps"
)

// FeedConfig holds the connection parameters of a JSON-RPC rate oracle.
type FeedConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// rateQuery is a getrate call, the only JSON-RPC method the oracle is
// asked.
type rateQuery struct {
	ID     int64     `json:"id"`
	Method string    `json:"method"`
	Params [2]string `json:"params"`
}

// rateAnswer is the oracle's reply to a rateQuery.
type rateAnswer struct {
	ID     int64        `json:"id"`
	Result *rateResult  `json:"result"`
	Error  *oracleError `json:"error"`
}

type oracleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rateResult is the oracle's answer to getrate: a decimal rate and the unix
// time it was published.
type rateResult struct {
	Rate    string `json:"rate"`
	Updated int64  `json:"updated"`
}

// Feed is a Provider backed by a JSON-RPC oracle. Rates are pulled by Refresh
// (or periodically by Run) and served from the last successful pull, so the
// publication time seen by callers is the oracle's, not the pull time.
type Feed struct {
	url    string
	user   string
	pass   string
	client *http.Client
	nextID atomic.Int64

	pairs []pair
	cache *FixedProvider
	clock clock.Clock
	log   *logrus.Entry
}

var _ Provider = (*Feed)(nil)

// NewFeed creates a feed for the ETH->EUR pair. A nil clock uses the wall
// clock and a nil log discards output.
func NewFeed(cfg FeedConfig, clk clock.Clock, log *logrus.Entry) *Feed {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Feed{
		url:  cfg.URL,
		user: cfg.User,
		pass: cfg.Password,
		client: &http.Client{Timeout: 30 * time.Second},
		pairs: []pair{{ETH, EUR}},
		cache: NewFixedProvider(),
		clock: clk,
		log:   log.WithField("component", "ratefeed"),
	}
}

// Rate returns the last rate pulled for base->quote.
func (f *Feed) Rate(base, quoteCur Currency) (*big.Int, time.Time, error) {
	return f.cache.Rate(base, quoteCur)
}

// Refresh pulls every tracked pair. A failing pair keeps its previous rate;
// the first error is returned after all pairs were tried.
func (f *Feed) Refresh(ctx context.Context) error {
	var first error
	for _, p := range f.pairs {
		if err := f.refreshPair(ctx, p); err != nil {
			f.log.WithError(err).WithField("pair", string(p.base)+"/"+string(p.quote)).Warn("rate refresh failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (f *Feed) refreshPair(ctx context.Context, p pair) error {
	res, err := f.fetch(ctx, p)
	if err != nil {
		return err
	}
	rate, err := ulps.Parse(res.Rate)
	if err != nil {
		return fmt.Errorf("%w: rate %q: %w", ErrInvalidResponse, res.Rate, err)
	}
	if res.Updated <= 0 {
		return fmt.Errorf("%w: missing publication time", ErrInvalidResponse)
	}
	at := time.Unix(res.Updated, 0).UTC()
	if err := f.cache.SetRate(p.base, p.quote, rate, at); err != nil {
		return err
	}
	f.log.WithFields(logrus.Fields{
		"pair":    string(p.base) + "/" + string(p.quote),
		"rate":    ulps.Format(rate),
		"updated": at,
	}).Debug("rate refreshed")
	return nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (f *Feed) Run(ctx context.Context, interval time.Duration) error {
	_ = f.Refresh(ctx)
	ticker := f.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = f.Refresh(ctx)
		}
	}
}

// fetch asks the oracle for the current rate of p.
func (f *Feed) fetch(ctx context.Context, p pair) (*rateResult, error) {
	q := rateQuery{ID: f.nextID.Add(1), Method: "getrate", Params: [2]string{string(p.base), string(p.quote)}}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.user != "" {
		req.SetBasicAuth(f.user, f.pass)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: %s: %s", ErrConnectionFailed, resp.Status, bytes.TrimSpace(msg))
	}

	var a rateAnswer
	switch err := json.NewDecoder(resp.Body).Decode(&a); {
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	case a.ID != q.ID:
		return nil, fmt.Errorf("%w: answer to request %d, sent %d", ErrInvalidResponse, a.ID, q.ID)
	case a.Error != nil:
		return nil, fmt.Errorf("rates: oracle refused %s/%s: %s (code %d)", p.base, p.quote, a.Error.Message, a.Error.Code)
	case a.Result == nil:
		return nil, fmt.Errorf("%w: empty result", ErrInvalidResponse)
	}
	return a.Result, nil
}
