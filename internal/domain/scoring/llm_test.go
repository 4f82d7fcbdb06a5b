package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jobkit/synccore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// chatStub serves an OpenAI-compatible chat completion with a fixed reply.
func chatStub(t *testing.T, reply string, capture *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if capture != nil && len(req.Messages) > 1 {
			*capture = req.Messages[1].Content
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestLLMScorer(t *testing.T) {
	ctx := context.Background()
	in := Input{
		Profile: &model.Profile{
			DesiredRole:   "backend engineer",
			ExperienceYrs: 5,
			Skills:        []string{"go", "postgres"},
		},
		JobID: 3,
		Title: "Senior Go Developer",
	}

	Convey("Given a model that replies with well-formed JSON", t, func() {
		var prompt string
		srv := chatStub(t, `{"score":0.8,"explanation":"strong overlap"}`, &prompt)
		defer srv.Close()
		s := NewLLMScorer("test-key", "test-model", WithBaseURL(srv.URL+"/v1"))

		Convey("When scoring", func() {
			got, err := s.Score(ctx, in)

			Convey("Then the result round-trips", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, model.MatchResult{Score: 0.8, Explanation: "strong overlap"})
			})

			Convey("Then the prompt carries profile and job text", func() {
				So(prompt, ShouldContainSubstring, "backend engineer")
				So(prompt, ShouldContainSubstring, "go, postgres")
				So(prompt, ShouldContainSubstring, "Senior Go Developer")
			})
		})
	})

	Convey("Given a model that fences its JSON", t, func() {
		srv := chatStub(t, "```json\n{\"score\":0.4,\"explanation\":\"partial\"}\n```", nil)
		defer srv.Close()
		s := NewLLMScorer("test-key", "test-model", WithBaseURL(srv.URL+"/v1"))

		Convey("Then the fence is tolerated", func() {
			got, err := s.Score(ctx, in)
			So(err, ShouldBeNil)
			So(got.Score, ShouldEqual, 0.4)
		})
	})

	Convey("Given a model that replies with prose", t, func() {
		srv := chatStub(t, "I think this is a great match!", nil)
		defer srv.Close()
		s := NewLLMScorer("test-key", "test-model", WithBaseURL(srv.URL+"/v1"))

		Convey("Then scoring fails with ErrScore", func() {
			_, err := s.Score(ctx, in)
			So(errors.Is(err, ErrScore), ShouldBeTrue)
		})
	})

	Convey("Given a model that reports an out-of-range score", t, func() {
		srv := chatStub(t, `{"score":42,"explanation":"confused"}`, nil)
		defer srv.Close()
		s := NewLLMScorer("test-key", "test-model", WithBaseURL(srv.URL+"/v1"))

		Convey("Then scoring fails with ErrScore", func() {
			_, err := s.Score(ctx, in)
			So(errors.Is(err, ErrScore), ShouldBeTrue)
		})
	})
}
