// Package oembed fetches video metadata from an oEmbed endpoint.
package oembed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/metrics"
	"github.com/and161185/vidtags/internal/model"
)

// Config tunes the client.
type Config struct {
	Endpoint   string        // oEmbed endpoint, e.g. https://www.youtube.com/oembed
	WatchURL   string        // video page template base, the id is appended
	Timeout    time.Duration // per request
	Rate       float64       // requests per second
	Burst      int
	MaxFails   uint32        // consecutive failures that open the breaker
	OpenPeriod time.Duration // how long the breaker stays open
}

// DefaultConfig targets YouTube.
func DefaultConfig() Config {
	return Config{
		Endpoint:   "https://www.youtube.com/oembed",
		WatchURL:   "https://www.youtube.com/watch?v=",
		Timeout:    10 * time.Second,
		Rate:       5,
		Burst:      10,
		MaxFails:   5,
		OpenPeriod: 30 * time.Second,
	}
}

// Client implements metadata.Provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// New builds a client. m may be nil.
func New(cfg Config, log *zap.Logger, m *metrics.Metrics) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		log:        log,
		metrics:    m,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "oembed",
		Timeout: cfg.OpenPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// An unknown video is an answer, not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errs.ErrInvalidVideoID)
		},
	})
	return c
}

type response struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// FetchInfo resolves videoID.
func (c *Client) FetchInfo(ctx context.Context, videoID string) (model.VideoInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.MetadataFetch("rejected")
		return model.VideoInfo{}, fmt.Errorf("rate limit: %w", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, videoID)
	})
	switch {
	case err == nil:
		c.metrics.MetadataFetch("ok")
		return res.(model.VideoInfo), nil
	case errors.Is(err, errs.ErrInvalidVideoID):
		c.metrics.MetadataFetch("invalid")
		return model.VideoInfo{}, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.MetadataFetch("rejected")
		return model.VideoInfo{}, fmt.Errorf("metadata provider unavailable: %w", err)
	default:
		c.metrics.MetadataFetch("error")
		return model.VideoInfo{}, err
	}
}

func (c *Client) fetch(ctx context.Context, videoID string) (model.VideoInfo, error) {
	params := url.Values{}
	params.Set("url", c.cfg.WatchURL+url.QueryEscape(videoID))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return model.VideoInfo{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.VideoInfo{}, fmt.Errorf("oembed request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		c.log.Debug("video rejected by provider", zap.String("video", videoID), zap.Int("status", resp.StatusCode))
		return model.VideoInfo{}, fmt.Errorf("%s: %w", videoID, errs.ErrInvalidVideoID)
	default:
		return model.VideoInfo{}, fmt.Errorf("oembed status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return model.VideoInfo{}, fmt.Errorf("parse response: %w", err)
	}
	return model.VideoInfo{
		Title:        body.Title,
		Description:  body.AuthorName,
		ThumbnailURL: body.ThumbnailURL,
	}, nil
}
