package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/grade"
)

// recompute recomputes the final grades of a course: every student holding a score in it, or only studentID.
func (cli *commandLine) recompute(courseIDOrCode, studentID string, workers int) error {
	ctx := context.Background()

	crs, err := cli.crsRepo.GetCourse(ctx, course.GetFilter{ID: courseIDOrCode})
	if errors.Cause(err) == course.ErrNotFound {
		crs, err = cli.crsRepo.GetCourse(ctx, course.GetFilter{Code: courseIDOrCode})
	}
	if err != nil {
		return err
	}

	studentIDs := []string{studentID}
	if studentID == "" {
		if studentIDs, err = cli.scoredStudents(ctx, crs.ID); err != nil {
			return err
		}
	}

	var failed int32
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, id := range studentIDs {
		id := id
		g.Go(func() error {
			fg, err := cli.agg.Recompute(ctx, id, crs.ID)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				cli.logger.Error(fmt.Sprintf("recomputing %s/%s: %v", id, crs.Code, err), err)
				return nil
			}
			fmt.Printf("  %s %s: %s (%s)\n", crs.Code, id, fg.Total.Decimal.StringFixed(grade.TotalPlaces), fg.Letter.String)
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d recomputations failed", failed, len(studentIDs))
	}
	return nil
}

// scoredStudents returns the IDs of the students holding at least one score in the course.
func (cli *commandLine) scoredStudents(ctx context.Context, courseID string) ([]string, error) {
	scores, err := cli.grdRepo.QueryScores(ctx, grade.ScoreFilter{CourseID: courseID})
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, se := range scores {
		if !seen[se.StudentID] {
			seen[se.StudentID] = true
			ids = append(ids, se.StudentID)
		}
	}
	return ids, nil
}
