package analytics

import (
	"math"
	"sort"

	"classroom/internal/attendance"
	"classroom/internal/exams"
)

// TrendWindow is the number of distinct attendance dates kept in the trend.
const TrendWindow = 7

// TrendPoint tallies one date with at least one attendance record.
type TrendPoint struct {
	Date         string `json:"date"`
	PresentCount int    `json:"presentCount"`
	AbsentCount  int    `json:"absentCount"`
}

// Bucket counts exams whose percentage falls in Range.
type Bucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// ClassAnalytics is the derived summary of one teacher's class.
type ClassAnalytics struct {
	TotalStudents           int          `json:"totalStudents"`
	AverageAttendance       int          `json:"averageAttendance"`
	AverageScore            int          `json:"averageScore"`
	AttendanceTrend         []TrendPoint `json:"attendanceTrend"`
	PerformanceDistribution []Bucket     `json:"performanceDistribution"`
}

// Empty is the result for a class without active students.
func Empty() ClassAnalytics {
	return ClassAnalytics{
		AttendanceTrend:         []TrendPoint{},
		PerformanceDistribution: []Bucket{},
	}
}

// bands are upper bounds, inclusive. Anything above the last bound lands in the final range.
var bands = []struct {
	label string
	upper int
}{
	{"0-50", 50},
	{"51-70", 70},
	{"71-90", 90},
	{"91-100", math.MaxInt},
}

// Compute aggregates the records of one teacher.
func Compute(totalStudents int, records []attendance.Record, results []exams.Record) ClassAnalytics {
	if totalStudents == 0 {
		return Empty()
	}
	return ClassAnalytics{
		TotalStudents:           totalStudents,
		AverageAttendance:       attendanceRate(records),
		AverageScore:            averageScore(results),
		AttendanceTrend:         trend(records),
		PerformanceDistribution: distribution(results),
	}
}

func attendanceRate(records []attendance.Record) int {
	if len(records) == 0 {
		return 0
	}
	present, _ := attendance.Summary(records)
	return int(math.Round(float64(present) / float64(len(records)) * 100))
}

func trend(records []attendance.Record) []TrendPoint {
	byDate := make(map[string]*TrendPoint)
	for _, r := range records {
		p, ok := byDate[r.Date]
		if !ok {
			p = &TrendPoint{Date: r.Date}
			byDate[r.Date] = p
		}
		if r.Present {
			p.PresentCount++
		} else {
			p.AbsentCount++
		}
	}
	points := make([]TrendPoint, 0, len(byDate))
	for _, p := range byDate {
		points = append(points, *p)
	}
	// YYYY-MM-DD orders lexically the same as chronologically.
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	if len(points) > TrendWindow {
		points = points[len(points)-TrendWindow:]
	}
	return points
}

func averageScore(results []exams.Record) int {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, e := range results {
		sum += e.Percentage()
	}
	return int(math.Round(sum / float64(len(results))))
}

func distribution(results []exams.Record) []Bucket {
	out := make([]Bucket, len(bands))
	for i, b := range bands {
		out[i].Range = b.label
	}
	for _, e := range results {
		out[bucketIndex(e)].Count++
	}
	return out
}

func bucketIndex(e exams.Record) int {
	last := len(bands) - 1
	for i := 0; i < last; i++ {
		if e.AtMost(bands[i].upper) {
			return i
		}
	}
	return last
}
