package model_test

import (
	"testing"

	"github.com/singpath/progressd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTaskSetRequirements(t *testing.T) {
	Convey("Given a task set with mixed task shapes", t, func() {
		tasks := model.TaskSet{
			"t1": {TextResponse: "favourite language?"},
			"t2": {ServiceID: model.ServiceCodeCombat, Badge: &model.Badge{ID: "b1"}},
			"t3": {ServiceID: model.ServiceSingPath, Archived: true},
		}

		Convey("When deriving the requirements", func() {
			r := tasks.Requirements()

			Convey("Then only non-archived service tasks contribute", func() {
				So(r.CodeCombat, ShouldBeTrue)
				So(r.SingPath, ShouldBeFalse)
				So(r.CodeSchool, ShouldBeFalse)
				So(r.Any(), ShouldBeTrue)
			})
		})

		Convey("When no task references a service", func() {
			r := model.TaskSet{"t1": {TextResponse: "x"}}.Requirements()

			Convey("Then nothing is required", func() {
				So(r.Any(), ShouldBeFalse)
			})
		})

		Convey("When requirements are compared", func() {
			a := model.Requirements{CodeCombat: true}
			b := model.Requirements{CodeCombat: true}
			c := model.Requirements{SingPath: true}

			Convey("Then value equality is order independent", func() {
				So(a == b, ShouldBeTrue)
				So(a == c, ShouldBeFalse)
			})
		})
	})
}

func TestSolvedProblems(t *testing.T) {
	Convey("Given a participant's solved problem tree", t, func() {
		solved := model.SolvedProblems{
			"pathA": {
				"level1": {
					"prob1": {
						"default": {Solved: true},
						"review":  {Solved: false},
					},
					"prob2": {
						"default": {Solved: true},
					},
				},
			},
		}

		Convey("Then HasSolved matches the exact tuple", func() {
			So(solved.HasSolved("pathA", "level1", "prob1", "default"), ShouldBeTrue)
			So(solved.HasSolved("pathA", "level1", "prob1", ""), ShouldBeTrue)
			So(solved.HasSolved("pathA", "level1", "prob1", "review"), ShouldBeFalse)
			So(solved.HasSolved("pathA", "level1", "missing", "default"), ShouldBeFalse)
			So(solved.HasSolved("", "level1", "prob1", "default"), ShouldBeFalse)
		})

		Convey("Then Count only includes solved entries", func() {
			So(solved.Count(), ShouldEqual, 2)
			So(model.SolvedProblems{}.Count(), ShouldEqual, 0)
		})
	})
}

func TestAchievements(t *testing.T) {
	Convey("Given a partially resolved achievements snapshot", t, func() {
		ach := model.Achievements{
			SingPath:   model.SolvedProblems{},
			CodeCombat: &model.ServiceDetails{ID: "cc1"},
			CodeSchool: &model.ServiceDetails{},
		}

		Convey("Then ProfileID only reports non-empty ids", func() {
			id, ok := ach.ProfileID(model.ServiceCodeCombat)
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "cc1")

			_, ok = ach.ProfileID(model.ServiceCodeSchool)
			So(ok, ShouldBeFalse)

			_, ok = ach.ProfileID(model.ServiceSingPath)
			So(ok, ShouldBeFalse)
		})

		Convey("Then Registered treats singpath as presence of the solved set", func() {
			So(ach.Registered(model.ServiceSingPath), ShouldBeTrue)
			So(ach.Registered(model.ServiceCodeCombat), ShouldBeTrue)
			So(ach.Registered(model.ServiceCodeSchool), ShouldBeFalse)
			So(model.Achievements{}.Registered(model.ServiceSingPath), ShouldBeFalse)
		})
	})
}

func TestParticipantProgress(t *testing.T) {
	Convey("Given recorded progress", t, func() {
		progress := model.ParticipantProgress{
			"t3": {Completed: true},
			"t1": {Completed: true},
			"t2": {Completed: false},
		}

		Convey("Then the completed key is deterministic", func() {
			So(progress.CompletedKey(), ShouldEqual, "t1,t3")
			So(model.ParticipantProgress{}.CompletedKey(), ShouldEqual, "")
		})
	})
}

func TestPatchMerge(t *testing.T) {
	Convey("Given two patches touching the same key", t, func() {
		p := model.Patch{"progress/e1/bob/t1/completed": false}
		p.Merge(model.Patch{
			"progress/e1/bob/t1/completed": true,
			"rankings/e1/bob/total":        3,
		})

		Convey("Then the later value wins per key", func() {
			So(p["progress/e1/bob/t1/completed"], ShouldBeTrue)
			So(p["rankings/e1/bob/total"], ShouldEqual, 3)
			So(len(p), ShouldEqual, 2)
		})
	})
}

func TestPaths(t *testing.T) {
	Convey("Given the feed path layout", t, func() {
		So(model.TasksPath("e1"), ShouldEqual, "tasks/e1")
		So(model.SolutionsPath("e1", "bob"), ShouldEqual, "solutions/e1/bob")
		So(model.CompletedPath("e1", "bob", "t1"), ShouldEqual, "progress/e1/bob/t1/completed")
		So(model.RankingPath("e1", "bob", model.RankingTotal), ShouldEqual, "rankings/e1/bob/total")
		So(model.ProfileDetailsPath("bob", model.ServiceCodeSchool), ShouldEqual, "profiles/bob/services/codeSchool/details")
		So(model.SingPathSolutionsPath("bob"), ShouldEqual, "singpath/profiles/bob/queuedSolutions")
	})
}
