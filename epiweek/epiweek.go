package epiweek

/*

	Calendar arithmetic for epidemiological reporting periods.

	Two week conventions live here:
	- WeekOfYear/YearOfWeek: generic week numbering for an arbitrary
	  week-start day, computed from an absolute week number anchored
	  at the Unix epoch (adapted from the merlyn weekcalc algorithm).
	- EpiWeek/EpiYear: the CDC epidemiological week. Sunday-start
	  weeks, week 1 of a year is the week holding at least four
	  January days (equivalently, the week holding Jan 4).

	Everything operates on civil dates in UTC. These are total
	functions: no errors, no panics on valid calendar dates.

*/

import "time"

const (
	secsPerDay  = 86400
	secsPerWeek = 7 * secsPerDay
)

// civil truncates a timestamp to its civil date at UTC midnight.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// floorDiv rounds toward negative infinity so pre-epoch dates
// land in the correct week bucket.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// absWeek shifts the date so week boundaries for the given start
// day align with the epoch's Thursday-aligned week grid, then
// returns the absolute week number and the week-numbering year.
// startDay is 0=Sunday .. 6=Saturday.
func absWeek(startDay int, t time.Time) (int64, int) {
	offset := (abs(startDay-6) + 5) % 7
	d3 := civil(t).AddDate(0, 0, offset)
	awn := floorDiv(d3.Unix(), secsPerDay) / 7
	weekYear := time.Unix(awn*secsPerWeek, 0).UTC().Year()
	return awn, weekYear
}

// WeekOfYear returns the 1-based week number of t under a week
// convention starting on startDay. Day 1 of the week-year grid is
// January 7 of the resolved week year.
func WeekOfYear(startDay int, t time.Time) int {
	awn, weekYear := absWeek(startDay, t)
	jan7 := time.Date(weekYear, time.January, 7, 0, 0, 0, 0, time.UTC)
	return int(awn - floorDiv(jan7.Unix(), secsPerWeek) + 1)
}

// YearOfWeek returns the week-numbering year for t, consistent
// with WeekOfYear: a January date can belong to the prior year's
// last week and a December date to the next year's first.
func YearOfWeek(startDay int, t time.Time) int {
	_, weekYear := absWeek(startDay, t)
	return weekYear
}

// weekStart returns the Sunday on or before t's civil date.
func weekStart(t time.Time) time.Time {
	d := civil(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// firstEpiWeekStart returns the Sunday beginning EPI week 1 of the
// given year: the Sunday of the week holding January 4.
func firstEpiWeekStart(year int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	return jan4.AddDate(0, 0, -int(jan4.Weekday()))
}

// epiWeekYear resolves both the EPI week number and the year that
// owns the week. A Sunday-start week belongs to the year holding
// at least four of its days, which is the year of its Wednesday.
func epiWeekYear(t time.Time) (week, year int) {
	ws := weekStart(t)
	year = ws.AddDate(0, 0, 3).Year()
	first := firstEpiWeekStart(year)
	week = int(floorDiv(ws.Unix()-first.Unix(), secsPerWeek)) + 1
	return week, year
}

// EpiWeek returns the CDC epidemiological week number for t.
// Late-December dates whose week belongs to the next year report
// week 1; early-January dates can report week 52 or 53.
func EpiWeek(t time.Time) int {
	week, _ := epiWeekYear(t)
	return week
}

// EpiYear returns the EPI-numbering year for t, derived from
// EpiWeek: a December date landing in week 1 belongs to the next
// EPI year, a January date landing past week 50 to the previous.
func EpiYear(t time.Time) int {
	year := t.Year()
	week := EpiWeek(t)
	if week == 1 && t.Month() == time.December {
		return year + 1
	}
	if week > 50 && t.Month() == time.January {
		return year - 1
	}
	return year
}

// YearStart computes the start date for a year-as-series overlay.
// Normally January 1 at civil midnight. For weekly resolution with
// EPI weeks enabled the boundary moves so the series begins on a
// whole EPI week: forward past the previous year's trailing week,
// or back into December when week 1 starts there.
func YearStart(year int, resolution string, epiEnabled bool) time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !epiEnabled || resolution != "weekly" {
		return d
	}

	// Jan 1 still inside the previous year's last week
	if EpiWeek(d) > 1 {
		for EpiWeek(d) > 1 {
			d = d.AddDate(0, 0, 1)
		}
		return d
	}

	// week 1 reaches back into December
	res := d
	for EpiWeek(d) == 1 {
		res = d
		d = d.AddDate(0, 0, -1)
	}
	return res
}

// YearEnd is the counterpart of YearStart: December 31, shifted
// for weekly EPI series so the range ends on a whole EPI week.
func YearEnd(year int, resolution string, epiEnabled bool) time.Time {
	d := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if !epiEnabled || resolution != "weekly" {
		return d
	}

	// Dec 31 already inside next year's week 1
	if EpiWeek(d) == 1 {
		for EpiWeek(d) == 1 {
			d = d.AddDate(0, 0, -1)
		}
		return d
	}

	// the last week spills into January
	res := d
	for EpiWeek(d) > 1 {
		res = d
		d = d.AddDate(0, 0, 1)
	}
	return res
}
