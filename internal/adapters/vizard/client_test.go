package vizard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veedran/reelsmith/internal/pipeline"
	"github.com/veedran/reelsmith/internal/poll"
)

func fastPoll() poll.Config {
	return poll.Config{
		Initial:   5 * time.Millisecond,
		Slow:      5 * time.Millisecond,
		SlowAfter: time.Second,
		Ceiling:   2 * time.Second,
	}
}

func TestProduce_PicksHighestScoringClip(t *testing.T) {
	var queries atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/open-api/v1/project/create":
			require.Equal(t, "key-v", r.Header.Get("VIZARDAI_API_KEY"))
			var req createRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "https://www.youtube.com/watch?v=abc123", req.VideoURL)
			assert.Equal(t, "9:16", req.AspectRatio)
			assert.Equal(t, templateID, req.TemplateID)
			fmt.Fprint(w, `{"code": 2000, "projectId": 987654}`)
		case r.URL.Path == "/open-api/v1/project/query/987654":
			if queries.Add(1) < 2 {
				fmt.Fprint(w, `{"code": 1000}`)
				return
			}
			fmt.Fprint(w, `{"code": 2000, "videos": [
				{"videoUrl": "https://cdn.vizard.example/low.mp4", "viralScore": "6.1", "videoMsDuration": 61000},
				{"videoUrl": "https://cdn.vizard.example/high.mp4", "viralScore": "8.4", "videoMsDuration": 75000}
			]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient("key-v", WithBaseURL(srv.URL), WithPollConfig(fastPoll()))
	url, err := client.Produce(context.Background(), pipeline.Game{Title: "Hades"},
		"https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.vizard.example/high.mp4", url)
}

func TestProduce_SourceDownloadFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/open-api/v1/project/create" {
			fmt.Fprint(w, `{"projectId": 42}`)
			return
		}
		fmt.Fprint(w, `{"code": 4008, "errMsg": "failed to download video"}`)
	}))
	defer srv.Close()

	client := NewClient("key", WithBaseURL(srv.URL), WithPollConfig(fastPoll()))
	_, err := client.Produce(context.Background(), pipeline.Game{Title: "Hades"}, "https://example.com/v.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not download source video")
}

func TestProduce_CreateRejectedWithoutProjectID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": 4001, "errMsg": "invalid api key"}`)
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL), WithPollConfig(fastPoll()))
	_, err := client.Produce(context.Background(), pipeline.Game{Title: "Hades"}, "https://example.com/v.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestProduce_PollingCeilingTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/open-api/v1/project/create" {
			fmt.Fprint(w, `{"projectId": 42}`)
			return
		}
		fmt.Fprint(w, `{"code": 1000}`)
	}))
	defer srv.Close()

	cfg := fastPoll()
	cfg.Ceiling = 50 * time.Millisecond
	client := NewClient("key", WithBaseURL(srv.URL), WithPollConfig(cfg))
	_, err := client.Produce(context.Background(), pipeline.Game{Title: "Hades"}, "https://example.com/v.mp4")
	require.ErrorIs(t, err, poll.ErrTimeout)
}

func TestNormalizeYouTubeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "shorts url",
			in:   "https://www.youtube.com/shorts/dQw4w9WgXcQ?feature=share",
			want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name: "youtu.be url",
			in:   "https://youtu.be/dQw4w9WgXcQ?t=30",
			want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name: "regular watch url untouched",
			in:   "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name: "non-youtube url untouched",
			in:   "https://cdn.example.com/gameplay.mp4",
			want: "https://cdn.example.com/gameplay.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeYouTubeURL(tt.in))
		})
	}
}

func TestBestClip_UnparseableScoresRankLowest(t *testing.T) {
	clips := []clip{
		{VideoURL: "https://cdn/a.mp4", ViralScore: "n/a"},
		{VideoURL: "https://cdn/b.mp4", ViralScore: "3.2"},
	}
	assert.Equal(t, "https://cdn/b.mp4", bestClip(clips).VideoURL)
}
