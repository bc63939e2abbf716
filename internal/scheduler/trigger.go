package scheduler

import (
	"fmt"
	"time"
)

// Trigger computes activation instants for a job.
type Trigger interface {
	// Next returns the first activation strictly after t. ok is false when
	// the trigger has no further activations.
	Next(t time.Time) (next time.Time, ok bool)
	String() string
}

// Daily fires every day at hour:minute in loc. A nil loc means time.Local.
func Daily(hour, minute int, loc *time.Location) Trigger {
	if loc == nil {
		loc = time.Local
	}
	return daily{hour: hour, minute: minute, loc: loc}
}

type daily struct {
	hour, minute int
	loc          *time.Location
}

func (d daily) Next(t time.Time) (time.Time, bool) {
	lt := t.In(d.loc)
	cand := time.Date(lt.Year(), lt.Month(), lt.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !cand.After(lt) {
		cand = time.Date(lt.Year(), lt.Month(), lt.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return cand, true
}

func (d daily) String() string {
	return fmt.Sprintf("daily at %02d:%02d %s", d.hour, d.minute, d.loc)
}

// Once fires a single time, delay after the schedule is first computed.
func Once(delay time.Duration) Trigger {
	if delay < 0 {
		delay = 0
	}
	return once{delay: delay}
}

type once struct{ delay time.Duration }

func (o once) Next(t time.Time) (time.Time, bool) { return t.Add(o.delay), true }
func (o once) String() string                     { return fmt.Sprintf("once after %s", o.delay) }
func (once) oneShot() bool                        { return true }

// Every fires at a fixed interval. A non-positive interval never fires.
func Every(interval time.Duration) Trigger {
	return every{interval: interval}
}

type every struct{ interval time.Duration }

func (e every) Next(t time.Time) (time.Time, bool) {
	if e.interval <= 0 {
		return time.Time{}, false
	}
	return t.Add(e.interval), true
}

func (e every) String() string { return fmt.Sprintf("every %s", e.interval) }

type oneShotter interface{ oneShot() bool }

func isOneShot(t Trigger) bool {
	o, ok := t.(oneShotter)
	return ok && o.oneShot()
}
