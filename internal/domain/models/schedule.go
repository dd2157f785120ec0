package models

import (
	"fmt"
	"strings"
)

// Weekday представляет день недели расписания тьюторий
type Weekday string

const (
	Lunes     Weekday = "Lunes"
	Martes    Weekday = "Martes"
	Miercoles Weekday = "Miércoles"
	Jueves    Weekday = "Jueves"
	Viernes   Weekday = "Viernes"
)

// Weekdays — дни недели в каноническом порядке. Сериализация расписания
// детерминирована именно благодаря этому порядку.
var Weekdays = []Weekday{Lunes, Martes, Miercoles, Jueves, Viernes}

// ParseWeekday возвращает Weekday по строковому значению
func ParseWeekday(s string) (Weekday, bool) {
	for _, d := range Weekdays {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// Interval представляет один временной интервал вида HH:MM-HH:MM
type Interval struct {
	StartHour, StartMin int
	EndHour, EndMin     int
}

func (i Interval) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", i.StartHour, i.StartMin, i.EndHour, i.EndMin)
}

// ParseInterval разбирает строку вида "HH:MM-HH:MM". Начало интервала
// должно строго предшествовать концу.
func ParseInterval(s string) (Interval, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("invalid interval %q: expected HH:MM-HH:MM", s)
	}

	sh, sm, err := parseClock(parts[0])
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval %q: %w", s, err)
	}

	eh, em, err := parseClock(parts[1])
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval %q: %w", s, err)
	}

	if sh*60+sm >= eh*60+em {
		return Interval{}, fmt.Errorf("invalid interval %q: start must precede end", s)
	}

	return Interval{StartHour: sh, StartMin: sm, EndHour: eh, EndMin: em}, nil
}

// parseClock разбирает "HH:MM" в 24-часовом формате
func parseClock(s string) (hour, min int, err error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("bad time %q", s)
	}
	for _, pos := range []int{0, 1, 3, 4} {
		if s[pos] < '0' || s[pos] > '9' {
			return 0, 0, fmt.Errorf("bad time %q", s)
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	min = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || min > 59 {
		return 0, 0, fmt.Errorf("bad time %q", s)
	}
	return hour, min, nil
}

// WeekSchedule — черновик расписания: интервалы по дням недели.
// Пересечения интервалов внутри дня допускаются, дни без интервалов
// в мапе отсутствуют.
type WeekSchedule map[Weekday][]Interval

// Serialize сериализует расписание в одну плоскую строку вида
// "Lunes: 09:00-11:30, 16:00-17:00; Martes: ...". Дни идут в каноническом
// порядке, пустые дни опускаются.
func (w WeekSchedule) Serialize() string {
	var b strings.Builder
	for _, day := range Weekdays {
		intervals, ok := w[day]
		if !ok || len(intervals) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(string(day))
		b.WriteString(": ")
		for i, iv := range intervals {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(iv.String())
		}
	}
	return b.String()
}

// ParseSchedule восстанавливает расписание из сериализованной строки.
// Неизвестные дни и некорректные интервалы приводят к ошибке.
func ParseSchedule(s string) (WeekSchedule, error) {
	w := make(WeekSchedule)
	s = strings.TrimSpace(s)
	if s == "" {
		return w, nil
	}

	for _, chunk := range strings.Split(s, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		dayPart, rest, found := strings.Cut(chunk, ":")
		if !found {
			return nil, fmt.Errorf("invalid schedule chunk %q", chunk)
		}

		day, ok := ParseWeekday(strings.TrimSpace(dayPart))
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", dayPart)
		}

		for _, ivStr := range strings.Split(rest, ",") {
			iv, err := ParseInterval(ivStr)
			if err != nil {
				return nil, err
			}
			w[day] = append(w[day], iv)
		}
	}

	return w, nil
}
