package report

import (
	"fmt"
	"time"

	"libcat/internal/dblib"
)

// overdueDays is how long a book may stay out before the loan is overdue.
const overdueDays = 30

// popularLimit caps the popular-authors ranking.
const popularLimit = 20

func constant(v string) func(time.Time) string {
	return func(time.Time) string { return v }
}

var overdueSorts = map[string]string{
	"days-overdue": "days_overdue DESC",
	"reader":       "r.full_name ASC",
	"title":        "b.title ASC",
}

var _ = register(&Report{
	Name:  OverdueLoans,
	Title: "Overdue loans",
	Params: []Param{
		{Name: "reader", Label: "Reader name contains", Kind: TextParam},
		{Name: "sort", Label: "Sort by", Kind: ChoiceParam, Choices: []string{"days-overdue", "reader", "title"}, Default: constant("days-overdue")},
	},
	Columns: []string{"Reader", "Book", "Issued", "Days overdue"},
	build: func(h dblib.DatabaseHandler, p Params, now time.Time) (string, []any, error) {
		args := dblib.NewArgs(h)
		today := h.DateValue(truncateDay(now))
		query := fmt.Sprintf(`SELECT r.full_name, b.title, s.give_date, %s AS days_overdue
FROM subscriptions s
JOIN readers r ON s.reader_id = r.reader_id
JOIN books b ON s.book_id = b.book_id
WHERE s.return_date IS NULL
  AND %s > %s`,
			h.DaysBetween("s.give_date", args.Add(today)),
			h.DaysBetween("s.give_date", args.Add(today)),
			args.Add(overdueDays))
		if name := p["reader"]; name != "" {
			query += "\n  AND " + h.ContainsExpr("r.full_name", args.Add(dblib.ContainsPattern(name)))
		}
		query += "\nORDER BY " + overdueSorts[p["sort"]] + ", s.sub_id"
		return query, args.Values(), nil
	},
	totals: func(rows [][]any) []Total {
		return []Total{{Label: "Overdue loans", Value: int64(len(rows))}}
	},
})

var _ = register(&Report{
	Name:  PopularAuthors,
	Title: "Popular authors",
	Params: []Param{
		{Name: "from", Label: "From (DD.MM.YYYY)", Kind: DateParam, Default: func(now time.Time) string {
			return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()).Format(DateLayout)
		}},
		{Name: "to", Label: "To (DD.MM.YYYY)", Kind: DateParam, Default: func(now time.Time) string {
			return now.Format(DateLayout)
		}},
	},
	Columns: []string{"Author", "Times borrowed"},
	build: func(h dblib.DatabaseHandler, p Params, now time.Time) (string, []any, error) {
		from, err := ParseDate(p["from"])
		if err != nil {
			return "", nil, err
		}
		to, err := ParseDate(p["to"])
		if err != nil {
			return "", nil, err
		}
		if from.After(to) {
			return "", nil, &dblib.ValidationError{Fields: []string{"from", "to"}, Reason: "start date is after end date"}
		}
		args := dblib.NewArgs(h)
		query := fmt.Sprintf(`SELECT b.author, COUNT(s.sub_id) AS borrow_count
FROM subscriptions s
JOIN books b ON s.book_id = b.book_id
WHERE s.give_date BETWEEN %s AND %s
GROUP BY b.author
ORDER BY borrow_count DESC, b.author
LIMIT %d`, args.Add(h.DateValue(from)), args.Add(h.DateValue(to)), popularLimit)
		return query, args.Values(), nil
	},
	totals: func(rows [][]any) []Total {
		return []Total{{Label: "Total loans", Value: sumColumn(rows, 1)}}
	},
})

var activitySorts = map[string]string{
	"name":      "l.name ASC",
	"total":     "total_books DESC",
	"on-loan":   "on_loan DESC",
	"available": "available DESC",
}

// Copies and active loans are aggregated separately before joining so a
// library's book count is not multiplied by its number of loans.
var _ = register(&Report{
	Name:  LibraryActivity,
	Title: "Library activity",
	Params: []Param{
		{Name: "sort", Label: "Sort by", Kind: ChoiceParam, Choices: []string{"name", "total", "on-loan", "available"}, Default: constant("on-loan")},
	},
	Columns: []string{"Library", "Total books", "On loan", "Available"},
	build: func(h dblib.DatabaseHandler, p Params, now time.Time) (string, []any, error) {
		query := `SELECT l.name,
       COALESCE(bk.copies, 0) + COALESCE(ol.loans, 0) AS total_books,
       COALESCE(ol.loans, 0) AS on_loan,
       COALESCE(bk.copies, 0) AS available
FROM libraries l
LEFT JOIN (
    SELECT library_id, SUM(quantity) AS copies
    FROM books
    GROUP BY library_id
) bk ON bk.library_id = l.library_id
LEFT JOIN (
    SELECT b.library_id, COUNT(s.sub_id) AS loans
    FROM subscriptions s
    JOIN books b ON s.book_id = b.book_id
    WHERE s.return_date IS NULL
    GROUP BY b.library_id
) ol ON ol.library_id = l.library_id
ORDER BY ` + activitySorts[p["sort"]] + ", l.name"
		return query, nil, nil
	},
	totals: func(rows [][]any) []Total {
		return []Total{
			{Label: "Total books", Value: sumColumn(rows, 1)},
			{Label: "On loan", Value: sumColumn(rows, 2)},
			{Label: "Available", Value: sumColumn(rows, 3)},
		}
	},
})

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
