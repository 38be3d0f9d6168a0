package service

import "time"

// 日期在 API 与存储边界统一使用 2006-01-02 表示，不带时分秒与时区偏移
const DateFormat = "2006-01-02"

var weekdayNames = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// ParseWeekday 将英文星期名解析为 time.Weekday，未知名称返回 false
func ParseWeekday(name string) (time.Weekday, bool) {
	day, ok := weekdayNames[name]
	return day, ok
}

// IntervalDates 返回 start, start+increment, start+2*increment ... 中不超过 end 的有序日期序列。
// start 晚于 end 时返回空序列；start == end 时恰好返回 [start]。
// increment 必须为正数，由调用方保证。
func IntervalDates(start, end time.Time, increment int) []time.Time {
	start = normalizeToDate(start)
	end = normalizeToDate(end)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, increment) {
		dates = append(dates, d)
	}
	return dates
}

// WeeklyDates 返回 [start, end] 内星期命中 weekdays 的全部日期，按日粒度比较。
// weekdays 为空时返回空序列。
func WeeklyDates(start, end time.Time, weekdays []time.Weekday) []time.Time {
	start = normalizeToDate(start)
	end = normalizeToDate(end)

	if len(weekdays) == 0 {
		return nil
	}

	selected := make(map[time.Weekday]struct{}, len(weekdays))
	for _, day := range weekdays {
		selected[day] = struct{}{}
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, ok := selected[d.Weekday()]; ok {
			dates = append(dates, d)
		}
	}
	return dates
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysBetween(earlier, later time.Time) int {
	return int(normalizeToDate(later).Sub(normalizeToDate(earlier)).Hours() / 24)
}
