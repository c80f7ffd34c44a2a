package listview

import (
	"github.com/ambunow/ambugo-app/internal/models"
)

const (
	FilterAll = "all"

	EmergencyOnly    = "emergency"
	NonEmergencyOnly = "nonEmergency"

	DateToday     = "today"
	DateYesterday = "yesterday"
	DateAll       = "all"
	DateRange     = "range"

	SortDesc = "desc"
	SortAsc  = "asc"
)

// Filters описывает текущий выбор фильтров админской таблицы.
type Filters struct {
	Status    string // "all" или одно из значений статуса
	Emergency string // "all" | "emergency" | "nonEmergency"

	// DateFilter применяется к дате перевозки (Request.Date), не к createdAt.
	DateFilter string // "today" | "yesterday" | "all" | "range"
	DateFrom   string // включительно; пусто = без нижней границы
	DateTo     string // включительно; пусто = без верхней границы

	SortDir string // "desc" (как отдаёт база) | "asc"
}

func DefaultFilters() Filters {
	return Filters{
		Status:     FilterAll,
		Emergency:  FilterAll,
		DateFilter: DateAll,
		SortDir:    SortDesc,
	}
}

// Result разделяет "заявок нет вообще" и "ничего не подошло под фильтры":
// у них разные сообщения в интерфейсе.
type Result struct {
	Requests []*models.Request
	Empty    bool // хранилище пустое
	NoMatch  bool // заявки есть, но фильтры отсеяли все
}

// View derives the subset and ordering to render. Pure function of its
// inputs: snapshot is the full list in creation-time-descending order,
// today/yesterday are injected so the engine stays deterministic in tests.
// Filters are conjunctive; the sort toggle only reverses the filtered
// list, it never changes membership.
func View(snapshot []*models.Request, f Filters, today, yesterday string) Result {
	if len(snapshot) == 0 {
		return Result{Empty: true}
	}

	result := make([]*models.Request, 0, len(snapshot))
	for _, r := range snapshot {
		if !matchStatus(r, f.Status) {
			continue
		}
		if !matchEmergency(r, f.Emergency) {
			continue
		}
		if !matchDate(r, f, today, yesterday) {
			continue
		}
		result = append(result, r)
	}

	if len(result) == 0 {
		return Result{Requests: result, NoMatch: true}
	}

	if f.SortDir == SortAsc {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}

	return Result{Requests: result}
}

func matchStatus(r *models.Request, want string) bool {
	if want == "" || want == FilterAll {
		return true
	}
	status := r.Status
	if status == "" {
		status = models.RequestStatusPending
	}
	return status == want
}

func matchEmergency(r *models.Request, want string) bool {
	switch want {
	case EmergencyOnly:
		return r.IsEmergency
	case NonEmergencyOnly:
		return !r.IsEmergency
	default:
		return true
	}
}

func matchDate(r *models.Request, f Filters, today, yesterday string) bool {
	date := r.Date
	if len(date) > 10 {
		date = date[:10]
	}

	switch f.DateFilter {
	case DateToday:
		return date == today
	case DateYesterday:
		return date == yesterday
	case DateRange:
		if f.DateFrom == "" && f.DateTo == "" {
			return true
		}
		if date == "" {
			return false
		}
		// YYYY-MM-DD сравнивается лексикографически.
		if f.DateFrom != "" && date < f.DateFrom {
			return false
		}
		if f.DateTo != "" && date > f.DateTo {
			return false
		}
		return true
	default:
		return true
	}
}
