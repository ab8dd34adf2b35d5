package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom/internal/attendance"
	"classroom/internal/exams"
)

func exam(score, max int) exams.Record {
	return exams.Record{Score: score, MaxScore: max}
}

func mark(date string, present bool) attendance.Record {
	return attendance.Record{Date: date, Present: present}
}

func TestComputeZeroStudents(t *testing.T) {
	got := Compute(0, []attendance.Record{mark("2024-03-01", true)}, []exams.Record{exam(10, 10)})
	assert.Equal(t, Empty(), got)
	assert.NotNil(t, got.AttendanceTrend)
	assert.NotNil(t, got.PerformanceDistribution)
}

func TestDistributionBoundaries(t *testing.T) {
	cases := []struct {
		score, max int
		bucket     string
	}{
		{0, 100, "0-50"},
		{50, 100, "0-50"},
		{51, 100, "51-70"},
		{70, 100, "51-70"},
		{71, 100, "71-90"},
		{90, 100, "71-90"},
		{91, 100, "91-100"},
		{100, 100, "91-100"},
		{45, 50, "71-90"},
		// 2/3 is 66.67%, 1/3 is 33.33%
		{2, 3, "51-70"},
		{1, 3, "0-50"},
		// 9/10 is exactly 90%
		{9, 10, "71-90"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d/%d", tc.score, tc.max), func(t *testing.T) {
			got := Compute(1, nil, []exams.Record{exam(tc.score, tc.max)})
			require.Len(t, got.PerformanceDistribution, 4)
			for _, b := range got.PerformanceDistribution {
				want := 0
				if b.Range == tc.bucket {
					want = 1
				}
				assert.Equal(t, want, b.Count, b.Range)
			}
		})
	}
}

func TestDistributionAlwaysHasFourBuckets(t *testing.T) {
	got := Compute(3, nil, nil)
	assert.Equal(t, []Bucket{{"0-50", 0}, {"51-70", 0}, {"71-90", 0}, {"91-100", 0}}, got.PerformanceDistribution)
	assert.Equal(t, 0, got.AverageScore)
	assert.Equal(t, 0, got.AverageAttendance)
	assert.Equal(t, []TrendPoint{}, got.AttendanceTrend)
}

func TestAveragesRound(t *testing.T) {
	got := Compute(3,
		[]attendance.Record{mark("2024-03-01", true), mark("2024-03-01", true), mark("2024-03-01", false)},
		[]exams.Record{exam(2, 3), exam(1, 2)},
	)
	// 2/3 present is 66.67%
	assert.Equal(t, 67, got.AverageAttendance)
	// mean of 66.67% and 50% is 58.33%
	assert.Equal(t, 58, got.AverageScore)

	got = Compute(2, []attendance.Record{mark("2024-03-01", true), mark("2024-03-02", false)}, []exams.Record{exam(1, 8), exam(0, 8)})
	assert.Equal(t, 50, got.AverageAttendance)
	// mean of 12.5% and 0% is 6.25%
	assert.Equal(t, 6, got.AverageScore)
}

func TestTrendSortsByDate(t *testing.T) {
	got := Compute(2, []attendance.Record{
		mark("2024-01-05", true),
		mark("2024-01-03", false),
		mark("2024-01-10", true),
		mark("2024-01-03", true),
	}, nil)
	assert.Equal(t, []TrendPoint{
		{Date: "2024-01-03", PresentCount: 1, AbsentCount: 1},
		{Date: "2024-01-05", PresentCount: 1},
		{Date: "2024-01-10", PresentCount: 1},
	}, got.AttendanceTrend)
}

func TestTrendKeepsLastSevenDates(t *testing.T) {
	var recs []attendance.Record
	for day := 9; day >= 1; day-- {
		recs = append(recs, mark(fmt.Sprintf("2024-02-%02d", day), day%2 == 0))
	}
	got := Compute(1, recs, nil)
	require.Len(t, got.AttendanceTrend, TrendWindow)
	assert.Equal(t, "2024-02-03", got.AttendanceTrend[0].Date)
	assert.Equal(t, "2024-02-09", got.AttendanceTrend[6].Date)
}

type fakeSources struct {
	students    int
	countErr    error
	listErr     error
	attendCalls int
	records     []attendance.Record
	results     []exams.Record
}

func (f *fakeSources) CountActiveStudents(context.Context, int64) (int, error) {
	return f.students, f.countErr
}

func (f *fakeSources) ListAttendance(context.Context, int64, attendance.Filter) ([]attendance.Record, error) {
	f.attendCalls++
	return f.records, f.listErr
}

func (f *fakeSources) ListExams(context.Context, int64) ([]exams.Record, error) {
	return f.results, nil
}

func TestServiceGet(t *testing.T) {
	src := &fakeSources{students: 1, records: []attendance.Record{mark("2024-03-01", true)}, results: []exams.Record{exam(45, 50)}}
	got, err := NewService(src, src, src).Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalStudents)
	assert.Equal(t, 100, got.AverageAttendance)
	assert.Equal(t, 90, got.AverageScore)
	assert.Equal(t, 1, got.PerformanceDistribution[2].Count)
}

func TestServiceGetSkipsScansWithoutStudents(t *testing.T) {
	src := &fakeSources{}
	got, err := NewService(src, src, src).Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Empty(), got)
	assert.Zero(t, src.attendCalls)
}

func TestServiceGetPropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")

	src := &fakeSources{countErr: boom}
	_, err := NewService(src, src, src).Get(context.Background(), 1)
	assert.ErrorIs(t, err, boom)

	src = &fakeSources{students: 2, listErr: boom}
	got, err := NewService(src, src, src).Get(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, got.TotalStudents)
}
