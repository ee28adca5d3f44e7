package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/typing-flair/internal/metrics"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/monkeytype"
)

const (
	msgNoKey       = "No key provided"
	msgInvalidKey  = "Your Ape Key is invalid. Please check that you copied it correctly."
	msgInactiveKey = "Your Ape Key is inactive. Please activate it in your MonkeyType account settings."
	msgStatsFailed = "Failed to retrieve your stats"
)

// StatsResult is the outcome of a stats lookup. Stats and Error are
// mutually exclusive: exactly one of them is set.
type StatsResult struct {
	Stats model.StatsBundle `json:"stats"`
	Error string            `json:"error,omitempty"`
}

// PersonalBestsFetcher is the MonkeyType call StatsService needs.
// *monkeytype.Client implements it.
type PersonalBestsFetcher interface {
	PersonalBests(ctx context.Context, apeKey string) (model.StatsBundle, error)
}

// StatsService reads a user's personal bests from MonkeyType and turns them
// into flair choices.
type StatsService struct {
	client PersonalBestsFetcher
	logger *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(client PersonalBestsFetcher, logger *slog.Logger) *StatsService {
	return &StatsService{client: client, logger: logger}
}

// FetchStats looks up the personal bests behind apeKey.
//
// It never returns a Go error. Every failure becomes a message the page can
// show next to the ape key form:
//
//	no key      → "No key provided" (no network call)
//	status 470  → invalid key
//	status 471  → inactive key
//	anything else → "Failed to retrieve your stats: <upstream message>"
func (s *StatsService) FetchStats(ctx context.Context, apeKey string) StatsResult {
	if strings.TrimSpace(apeKey) == "" {
		return StatsResult{Error: msgNoKey}
	}

	bundle, err := s.client.PersonalBests(ctx, apeKey)
	if err == nil {
		metrics.Upstream("personal_bests", "ok")
		return StatsResult{Stats: bundle}
	}

	var apiErr *monkeytype.APIError
	switch {
	case errors.Is(err, monkeytype.ErrInvalidKey):
		metrics.Upstream("personal_bests", "invalid_key")
		return StatsResult{Error: msgInvalidKey}
	case errors.Is(err, monkeytype.ErrInactiveKey):
		metrics.Upstream("personal_bests", "inactive_key")
		return StatsResult{Error: msgInactiveKey}
	case errors.As(err, &apiErr):
		metrics.Upstream("personal_bests", "error")
		return StatsResult{Error: fmt.Sprintf("%s: %s", msgStatsFailed, apiErr.Message)}
	default:
		metrics.Upstream("personal_bests", "error")
		s.logger.Error("fetching personal bests failed", slog.String("error", err.Error()))
		return StatsResult{Error: fmt.Sprintf("%s: %s", msgStatsFailed, err.Error())}
	}
}

// FlairChoice is one selectable flair, built from a personal best.
type FlairChoice struct {
	Duration string `json:"duration"`
	Text     string `json:"text"`
}

// FlairChoices turns a stats bundle into flair strings, one per test
// duration, using the first personal best listed for that duration:
//
//	60s :: 123.45wpm :: 97.5% acc :: Mar 04, 2024
//
// Choices are ordered by duration as a number, so "15" comes before "120".
func FlairChoices(bundle model.StatsBundle) []FlairChoice {
	durations := make([]string, 0, len(bundle))
	for d, pbs := range bundle {
		if len(pbs) > 0 {
			durations = append(durations, d)
		}
	}
	sort.Slice(durations, func(i, j int) bool {
		a, errA := strconv.Atoi(durations[i])
		b, errB := strconv.Atoi(durations[j])
		if errA != nil || errB != nil {
			return durations[i] < durations[j]
		}
		return a < b
	})

	choices := make([]FlairChoice, 0, len(durations))
	for _, d := range durations {
		pb := bundle[d][0]
		choices = append(choices, FlairChoice{
			Duration: d,
			Text: fmt.Sprintf("%ss :: %swpm :: %s%% acc :: %s",
				d,
				formatNumber(pb.WPM),
				formatNumber(pb.Acc),
				time.UnixMilli(pb.Timestamp).UTC().Format("Jan 02, 2006"),
			),
		})
	}
	return choices
}

// formatNumber prints a float the shortest way that round-trips, without
// an exponent: 120 → "120", 97.5 → "97.5".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
