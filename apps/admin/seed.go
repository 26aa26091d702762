package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
)

type seedCourse struct {
	code    string
	name    string
	credits int
	major   string
}

var seedCourses = []seedCourse{
	{code: "DBT101", name: "Introduction to Digital Business", credits: 3, major: "DBT"},
	{code: "DBT202", name: "Advanced Databases", credits: 3, major: "DBT"},
	{code: "AIR101", name: "Fundamentals of AI Algorithms", credits: 3, major: "AIR"},
	{code: "BUS101", name: "Core Business Management", credits: 3, major: "BUS"},
	{code: "BUS202", name: "Marketing Strategy", credits: 3, major: "BUS"},
	{code: "ACC101", name: "Basic Accounting I", credits: 4, major: "ACC"},
	{code: "FTE101", name: "Digital Finance Fundamentals", credits: 3, major: "FTE"},
}

// seed creates the default courses, or refreshes their name, credits & major.
func (cli *commandLine) seed() error {
	ctx := context.Background()
	for _, sc := range seedCourses {
		now := core.Now()
		crs, err := cli.crsRepo.GetCourse(ctx, course.GetFilter{Code: sc.code})
		switch {
		case err == nil:
			crs.Name = sc.name
			crs.Credits = sc.credits
			crs.Major = sc.major
			crs.UpdatedAt = now
			if _, err = cli.crsRepo.UpdateCourse(ctx, crs); err != nil {
				return errors.Wrapf(err, "updating course %s", sc.code)
			}
		case errors.Cause(err) == course.ErrNotFound:
			crs = course.Course{
				Code:      sc.code,
				Name:      sc.name,
				Credits:   sc.credits,
				Major:     sc.major,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, err = cli.crsRepo.CreateCourse(ctx, crs); err != nil {
				return errors.Wrapf(err, "creating course %s", sc.code)
			}
			fmt.Printf("  + course %s %q created\n", sc.code, sc.name)
		default:
			return errors.Wrapf(err, "finding course %s", sc.code)
		}
	}
	return nil
}
