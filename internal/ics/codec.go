// Package ics translates between the event model and the on-disk calendar
// format. One logical calendar maps to one iCalendar file holding a sequence
// of VEVENT blocks. Properties this tool does not understand are carried
// through opaquely, so files written by other tools survive a
// read-modify-write cycle unchanged.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"dayplan/internal/event"
)

const statusCompleted = "COMPLETED"

// Block is one event plus the foreign properties found in its VEVENT.
type Block struct {
	Event   event.Event
	Foreign []ical.IANAProperty
}

// File is the parsed form of one calendar file.
type File struct {
	Calendar string
	// Props preserves the calendar-level property lines (VERSION, PRODID,
	// X-WR-* and anything else) of a file read from disk.
	Props  []ical.CalendarProperty
	Blocks []Block
}

// Parse reads a calendar file. The calendar name is not stored in the file;
// it is derived from the file name by the caller.
func Parse(calendar string, r io.Reader) (File, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return File{}, err
	}
	f := File{Calendar: calendar, Props: cal.CalendarProperties}
	for _, ve := range cal.Events() {
		b, err := parseEvent(calendar, ve)
		if err != nil {
			return File{}, err
		}
		f.Blocks = append(f.Blocks, b)
	}
	return f, nil
}

// Serialize renders the file back to iCalendar text. Known fields come from
// the event model; foreign properties are re-emitted as read.
func (f File) Serialize() string {
	cal := ical.NewCalendar()
	if len(f.Props) > 0 {
		cal.CalendarProperties = f.Props
	}
	for _, b := range f.Blocks {
		ev := b.Event
		ve := cal.AddEvent(ev.ID)
		stamp := ev.ModifiedAt
		if stamp.IsZero() {
			stamp = time.Now()
		}
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		ve.SetSummary(ev.Title)
		if ev.Notes != "" {
			ve.SetDescription(ev.Notes)
		}
		if !ev.CreatedAt.IsZero() {
			ve.SetCreatedTime(ev.CreatedAt.UTC())
		}
		if !ev.ModifiedAt.IsZero() {
			ve.SetModifiedAt(ev.ModifiedAt.UTC())
		}
		if ev.Done {
			ve.SetStatus(ical.ObjectStatusCompleted)
		}
		ve.Properties = append(ve.Properties, b.Foreign...)
	}
	return cal.Serialize()
}

// Upsert replaces the block with the event's id, or appends a new one. The
// foreign properties of a replaced block are kept.
func (f *File) Upsert(ev event.Event) {
	for i := range f.Blocks {
		if f.Blocks[i].Event.ID == ev.ID {
			f.Blocks[i].Event = ev
			return
		}
	}
	f.Blocks = append(f.Blocks, Block{Event: ev})
}

// Remove drops the block with the given id and reports whether it was there.
func (f *File) Remove(id string) bool {
	for i := range f.Blocks {
		if f.Blocks[i].Event.ID == id {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return true
		}
	}
	return false
}

func parseEvent(calendar string, ve *ical.VEvent) (Block, error) {
	b := Block{Event: event.Event{Calendar: calendar}}
	e := &b.Event

	for _, p := range ve.Properties {
		switch ical.ComponentProperty(p.IANAToken) {
		case ical.ComponentPropertyUniqueId:
			e.ID = p.Value
		case ical.ComponentPropertySummary:
			e.Title = p.Value
		case ical.ComponentPropertyDescription:
			e.Notes = p.Value
		case ical.ComponentPropertyDtStart:
			t, err := parseTimeProp(p)
			if err != nil {
				return Block{}, fmt.Errorf("DTSTART: %w", err)
			}
			e.Start = t
		case ical.ComponentPropertyDtEnd:
			t, err := parseTimeProp(p)
			if err != nil {
				return Block{}, fmt.Errorf("DTEND: %w", err)
			}
			e.End = t
		case ical.ComponentPropertyCreated:
			if t, err := parseTimeProp(p); err == nil {
				e.CreatedAt = t
			}
		case ical.ComponentPropertyLastModified:
			if t, err := parseTimeProp(p); err == nil {
				e.ModifiedAt = t
			}
		case ical.ComponentPropertyDtstamp:
			// regenerated on write
		case ical.ComponentPropertyStatus:
			if strings.EqualFold(p.Value, statusCompleted) {
				e.Done = true
			} else {
				// other statuses are not modeled, carry them through
				b.Foreign = append(b.Foreign, p)
			}
		default:
			b.Foreign = append(b.Foreign, p)
		}
	}

	if e.ID == "" {
		return Block{}, fmt.Errorf("missing UID")
	}
	if e.Start.IsZero() {
		return Block{}, fmt.Errorf("event %q: missing DTSTART", e.ID)
	}
	if e.End.IsZero() {
		// reminder form: no DTEND means zero duration
		e.End = e.Start
	}
	if err := e.Validate(); err != nil {
		return Block{}, fmt.Errorf("event %q: %w", e.ID, err)
	}
	return b, nil
}

// parseTimeProp understands the UTC "Z" form, TZID-parameterized local forms
// and the date-only form.
func parseTimeProp(p ical.IANAProperty) (time.Time, error) {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return time.Time{}, fmt.Errorf("property %s has empty value", p.IANAToken)
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	if tzids := p.ICalParameters["TZID"]; len(tzids) > 0 {
		if loc, err := time.LoadLocation(tzids[0]); err == nil {
			return time.ParseInLocation("20060102T150405", v, loc)
		}
	}

	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}
