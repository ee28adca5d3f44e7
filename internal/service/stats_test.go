package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/monkeytype"
)

type fakeStatsClient struct {
	calls  int
	bundle model.StatsBundle
	err    error
}

func (f *fakeStatsClient) PersonalBests(_ context.Context, _ string) (model.StatsBundle, error) {
	f.calls++
	return f.bundle, f.err
}

func TestFetchStats(t *testing.T) {
	bundle := model.StatsBundle{"60": {{WPM: 120, Acc: 98}}}

	tests := []struct {
		name         string
		key          string
		client       *fakeStatsClient
		wantStats    bool
		wantContains string
		wantCalls    int
	}{
		{
			name:         "no key skips the network",
			key:          "",
			client:       &fakeStatsClient{},
			wantContains: "No key provided",
		},
		{
			name:      "success",
			key:       "k",
			client:    &fakeStatsClient{bundle: bundle},
			wantStats: true,
			wantCalls: 1,
		},
		{
			name:         "invalid key",
			key:          "k",
			client:       &fakeStatsClient{err: monkeytype.ErrInvalidKey},
			wantContains: "invalid",
			wantCalls:    1,
		},
		{
			name:         "inactive key",
			key:          "k",
			client:       &fakeStatsClient{err: monkeytype.ErrInactiveKey},
			wantContains: "inactive",
			wantCalls:    1,
		},
		{
			name:         "other status embeds upstream message",
			key:          "k",
			client:       &fakeStatsClient{err: &monkeytype.APIError{StatusCode: 429, Message: "Rate limit exceeded"}},
			wantContains: "Failed to retrieve your stats: Rate limit exceeded",
			wantCalls:    1,
		},
		{
			name:         "transport failure",
			key:          "k",
			client:       &fakeStatsClient{err: errors.New("dial tcp: timeout")},
			wantContains: "Failed to retrieve your stats",
			wantCalls:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewStatsService(tt.client, testLogger())

			got := svc.FetchStats(context.Background(), tt.key)

			if tt.wantStats {
				if got.Stats == nil || got.Error != "" {
					t.Errorf("FetchStats() = %+v, want stats and no error", got)
				}
			} else {
				if got.Stats != nil {
					t.Errorf("Stats = %v, want nil alongside an error", got.Stats)
				}
				if !strings.Contains(got.Error, tt.wantContains) {
					t.Errorf("Error = %q, want it to contain %q", got.Error, tt.wantContains)
				}
			}
			if tt.client.calls != tt.wantCalls {
				t.Errorf("client calls = %d, want %d", tt.client.calls, tt.wantCalls)
			}
		})
	}
}

func TestFlairChoices(t *testing.T) {
	ts := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC).UnixMilli()
	bundle := model.StatsBundle{
		"120": {{WPM: 101.5, Acc: 96, Timestamp: ts}},
		"15":  {{WPM: 150.25, Acc: 100, Timestamp: ts}, {WPM: 90, Acc: 90, Timestamp: ts}},
		"60":  {{WPM: 123.45, Acc: 97.5, Timestamp: ts}},
		"30":  {},
	}

	got := FlairChoices(bundle)

	want := []string{
		"15s :: 150.25wpm :: 100% acc :: Mar 04, 2024",
		"60s :: 123.45wpm :: 97.5% acc :: Mar 04, 2024",
		"120s :: 101.5wpm :: 96% acc :: Mar 04, 2024",
	}
	if len(got) != len(want) {
		t.Fatalf("FlairChoices() returned %d choices, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Text != want[i] {
			t.Errorf("choice[%d] = %q, want %q", i, got[i].Text, want[i])
		}
	}
}
