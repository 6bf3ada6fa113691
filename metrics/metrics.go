// Package metrics sends process run timings and counts to DogStatsD.
package metrics

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/buildkite/procctl/logger"
)

const (
	// Number of statsd commands that are buffered before
	// being sent to statsd
	statsdBufferLen = 10

	// The default port for dogstatsd
	defaultDogStatsdPort = 8125
)

// client is the subset of the statsd client the collector uses.
type client interface {
	Timing(name string, value time.Duration, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Close() error
}

type Collector struct {
	config CollectorConfig
	logger logger.Logger
	client client
}

type CollectorConfig struct {
	Datadog     bool
	DatadogHost string
}

func NewCollector(l logger.Logger, c CollectorConfig) *Collector {
	return &Collector{
		config: c,
		logger: l,
	}
}

var portSuffixRegexp = regexp.MustCompile(`:\d+$`)

func (c *Collector) Start() error {
	if !c.config.Datadog {
		return nil
	}

	if !portSuffixRegexp.MatchString(c.config.DatadogHost) {
		c.config.DatadogHost += fmt.Sprintf(":%d", defaultDogStatsdPort)
	}

	c.logger.Info("Starting datadog metrics collection to %s", c.config.DatadogHost)

	client, err := statsd.New(c.config.DatadogHost,
		statsd.WithNamespace("procctl."),
		statsd.WithMaxMessagesPerPayload(statsdBufferLen),
	)
	if err != nil {
		return fmt.Errorf("creating statsd client: %w", err)
	}
	c.client = client
	return nil
}

func (c *Collector) Stop() error {
	if c.client == nil {
		return nil
	}
	c.logger.Info("Stopping metrics collection")
	return c.client.Close()
}

func (c *Collector) Scope(tags Tags) *Scope {
	return &Scope{
		Tags: tags,
		c:    c,
	}
}

// Scope is a set of tags applied to everything sent through it. A nil
// *Scope discards everything.
type Scope struct {
	Tags Tags
	c    *Collector
}

func (s *Scope) enabled() bool {
	return s != nil && s.c != nil && s.c.client != nil
}

// Timing sends timing information in milliseconds.
func (s *Scope) Timing(name string, value time.Duration, tags ...Tags) {
	if !s.enabled() {
		return
	}

	mergedTags := s.mergeTags(tags...).StringSlice()
	s.c.logger.Debug("Metrics timing %s=%v %v", name, value, mergedTags)

	if err := s.c.client.Timing(name, value, mergedTags, 1); err != nil {
		s.c.logger.Error("Metrics timing failed: %v", err)
	}
}

// With returns a scope with more tags added
func (s *Scope) With(tags Tags) *Scope {
	if s == nil {
		return nil
	}
	return &Scope{
		Tags: s.mergeTags(tags),
		c:    s.c,
	}
}

// Count tracks how many times something happened per second.
func (s *Scope) Count(name string, value int64, tags ...Tags) {
	if !s.enabled() {
		return
	}

	mergedTags := s.mergeTags(tags...).StringSlice()
	s.c.logger.Debug("Metrics count %s=%v %v", name, value, mergedTags)

	if err := s.c.client.Count(name, value, mergedTags, 1); err != nil {
		s.c.logger.Error("Metrics count failed: %v", err)
	}
}

func (s *Scope) mergeTags(tagsSlice ...Tags) Tags {
	merged := Tags{}
	for k, v := range s.Tags {
		merged[formatName(k)] = formatName(v)
	}
	for _, tags := range tagsSlice {
		for k, v := range tags {
			merged[formatName(k)] = formatName(v)
		}
	}
	return merged
}

type Tags map[string]string

func (tags Tags) StringSlice() []string {
	var stringSlice []string
	for k, v := range tags {
		if k != "" && v != "" {
			stringSlice = append(stringSlice, formatName(k)+":"+formatName(v))
		}
	}
	sort.Strings(stringSlice)
	return stringSlice
}

// Datadog allows '.', '_' and alphas only.
// If we don't validate this here then the datadog error logs can fill up disk really quickly
var nameRegex = regexp.MustCompile(`[^\._a-zA-Z0-9]+`)

func formatName(name string) string {
	return nameRegex.ReplaceAllString(name, "_")
}
