package projection_test

import (
	"testing"
	"time"

	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/internal/domain/projection"
	. "github.com/smartystreets/goconvey/convey"
)

func jobPtr(id int64) *int64 { return &id }

func at(sec int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC)
}

func TestProject(t *testing.T) {
	Convey("Given an activity log for one job", t, func() {
		Convey("When a save is followed by an unsave with a later timestamp", func() {
			events := []model.ActivityEvent{
				{ID: 1, JobID: jobPtr(1), Kind: model.ActionJobSaved, CreatedAt: at(1)},
				{ID: 2, JobID: jobPtr(1), Kind: model.ActionJobUnsaved, CreatedAt: at(2)},
			}

			Convey("Then the job projects as not saved regardless of list order", func() {
				So(projection.Project(events).Jobs[1].Saved, ShouldBeFalse)

				reversed := []model.ActivityEvent{events[1], events[0]}
				So(projection.Project(reversed).Jobs[1].Saved, ShouldBeFalse)
			})
		})

		Convey("When two state-defining events share a timestamp", func() {
			events := []model.ActivityEvent{
				{ID: 1, JobID: jobPtr(1), Kind: model.ActionJobUnsaved, CreatedAt: at(5)},
				{ID: 2, JobID: jobPtr(1), Kind: model.ActionJobSaved, CreatedAt: at(5)},
			}

			Convey("Then the later list position wins", func() {
				So(projection.Project(events).Jobs[1].Saved, ShouldBeTrue)
			})

			Convey("And swapping the list order flips the result", func() {
				swapped := []model.ActivityEvent{events[1], events[0]}
				So(projection.Project(swapped).Jobs[1].Saved, ShouldBeFalse)
			})
		})

		Convey("When the log mixes a save with a logged match score", func() {
			events := []model.ActivityEvent{
				{ID: 1, JobID: jobPtr(1), Kind: model.ActionJobSaved, CreatedAt: at(5),
					Metadata: map[string]any{"title": "X"}},
				{ID: 2, JobID: jobPtr(1), Kind: model.ActionMatchScored, CreatedAt: at(9),
					Metadata: map[string]any{"score": 0.8, "explanation": "match"}},
			}
			snap := projection.Project(events)

			Convey("Then the derived state is saved and the score is extracted", func() {
				So(snap.Jobs[1].Saved, ShouldBeTrue)
				So(snap.Matches[1], ShouldResemble, model.MatchResult{Score: 0.8, Explanation: "match"})
			})

			Convey("And the last action timestamp is the maximum over all kinds", func() {
				So(snap.Jobs[1].LastActionAt, ShouldEqual, at(9))
			})
		})

		Convey("When duplicate match_scored events exist", func() {
			events := []model.ActivityEvent{
				{ID: 1, JobID: jobPtr(1), Kind: model.ActionMatchScored, CreatedAt: at(9),
					Metadata: map[string]any{"score": 0.8, "explanation": "new"}},
				{ID: 2, JobID: jobPtr(1), Kind: model.ActionMatchScored, CreatedAt: at(3),
					Metadata: map[string]any{"score": 0.4, "explanation": "old"}},
			}

			Convey("Then the maximum timestamp wins", func() {
				So(projection.Project(events).Matches[1].Explanation, ShouldEqual, "new")
			})
		})

		Convey("When a match_scored event has no numeric score", func() {
			events := []model.ActivityEvent{
				{ID: 1, JobID: jobPtr(1), Kind: model.ActionMatchScored, CreatedAt: at(1),
					Metadata: map[string]any{"score": "high"}},
			}

			Convey("Then no cache entry is extracted", func() {
				So(projection.Project(events).Matches, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a log spanning several jobs and kinds", t, func() {
		events := []model.ActivityEvent{
			{ID: 1, JobID: jobPtr(1), Kind: model.ActionJobSaved, CreatedAt: at(1)},
			{ID: 2, JobID: jobPtr(2), Kind: model.ActionJobSaved, CreatedAt: at(2)},
			{ID: 3, JobID: jobPtr(2), Kind: model.ActionJobUnsaved, CreatedAt: at(4)},
			{ID: 4, JobID: nil, Kind: model.ActionFeedback, CreatedAt: at(5),
				Metadata: map[string]any{"feedback": "nice"}},
			{ID: 5, JobID: jobPtr(3), Kind: model.ActionResumeGenerated, CreatedAt: at(6)},
			{ID: 6, JobID: jobPtr(3), Kind: model.ActionMatchScored, CreatedAt: at(7),
				Metadata: map[string]any{"score": 72, "explanation": "stack overlap"}},
		}

		Convey("When projecting", func() {
			snap := projection.Project(events)

			Convey("Then every mentioned job gets derived state", func() {
				So(snap.Jobs, ShouldHaveLength, 3)
				So(snap.Jobs[1].Saved, ShouldBeTrue)
				So(snap.Jobs[2].Saved, ShouldBeFalse)
				So(snap.Jobs[3].Saved, ShouldBeFalse)
			})

			Convey("Then non-state-defining kinds only move the last action time", func() {
				So(snap.Jobs[3].LastActionAt, ShouldEqual, at(7))
			})

			Convey("Then integer scores decode as floats", func() {
				So(snap.Matches[3].Score, ShouldEqual, 72.0)
			})

			Convey("Then events without a job id never appear in the output", func() {
				_, ok := snap.Jobs[0]
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When projecting the same input twice", func() {
			first := projection.Project(events)
			second := projection.Project(events)

			Convey("Then the outputs are identical", func() {
				So(second.Jobs, ShouldResemble, first.Jobs)
				So(second.Matches, ShouldResemble, first.Matches)
			})
		})
	})

	Convey("Given an empty log", t, func() {
		snap := projection.Project(nil)

		Convey("Then the snapshot is empty but non-nil", func() {
			So(snap.Jobs, ShouldBeEmpty)
			So(snap.Matches, ShouldBeEmpty)
			So(snap.Jobs, ShouldNotBeNil)
		})
	})
}
