package engine

import "fmt"

// Date is a day on a fixed 365-day calendar without leap years.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1–12
	Day   int `json:"day"`   // 1–31
}

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// DaysInMonth returns the length of a month (1–12).
func DaysInMonth(month int) int {
	if month < 1 || month > 12 {
		return 30
	}
	return daysInMonth[month-1]
}

// Next returns the following day, rolling over months and years.
func (d Date) Next() Date {
	d.Day++
	if d.Day > DaysInMonth(d.Month) {
		d.Day = 1
		d.Month++
		if d.Month > 12 {
			d.Month = 1
			d.Year++
		}
	}
	return d
}

// MonthName returns the English month name.
func (d Date) MonthName() string {
	if d.Month < 1 || d.Month > 12 {
		return "Unknown"
	}
	return monthNames[d.Month-1]
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Long returns a human-readable date such as "3 March 1600".
func (d Date) Long() string {
	return fmt.Sprintf("%d %s %d", d.Day, d.MonthName(), d.Year)
}
