package rpcfallback

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Endpoint is the health record of one upstream JSON-RPC URL.
// Priority is fixed at construction. IsLive, LastChecked and ErrorCount
// are only changed by probes and by failed operations.
type Endpoint struct {
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	Priority    int       `json:"priority"`
	IsLive      bool      `json:"isLive"`
	LastChecked time.Time `json:"lastChecked"`
	ErrorCount  int       `json:"errorCount"`
}

// NewEndpoints builds the endpoint set from a primary URL and its ordered backups.
// Empty backup URLs are skipped; the primary gets priority 0 and each backup the next rank.
func NewEndpoints(primary string, backups ...string) ([]Endpoint, error) {
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return nil, fmt.Errorf("%w: primary endpoint URL is empty", ErrInvalidConfig)
	}

	endpoints := []Endpoint{{URL: primary, Name: "Primary", Priority: 0, IsLive: true}}
	seen := map[string]bool{primary: true}
	for i, url := range backups {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if seen[url] {
			fallbackLogger.Warn().Str("url", url).Msg("Duplicate backup endpoint ignored")
			continue
		}
		seen[url] = true
		endpoints = append(endpoints, Endpoint{
			URL:      url,
			Name:     fmt.Sprintf("Backup %d", i+1),
			Priority: len(endpoints),
			IsLive:   true,
		})
	}
	return endpoints, nil
}

// rankLess orders endpoints by liveness (live first), then error count, then priority.
func rankLess(a, b Endpoint) bool {
	if a.IsLive != b.IsLive {
		return a.IsLive
	}
	if a.ErrorCount != b.ErrorCount {
		return a.ErrorCount < b.ErrorCount
	}
	return a.Priority < b.Priority
}

// rankedIndexes returns the indexes of endpoints in selection order.
func rankedIndexes(endpoints []Endpoint) []int {
	order := make([]int, len(endpoints))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return rankLess(endpoints[order[i]], endpoints[order[j]])
	})
	return order
}
