package etl

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// Progress prints a single self-overwriting status line of records consumed.
type Progress struct {
	w        io.Writer
	total    int64
	done     int64
	start    time.Time
	last     time.Time
	interval time.Duration
	now      func() time.Time
}

// NewProgress reports to w. A total of 0 means the total is unknown.
func NewProgress(w io.Writer, total int64) *Progress {
	p := &Progress{w: w, total: total, interval: 100 * time.Millisecond, now: time.Now}
	p.start = p.now()
	return p
}

// Add records n more consumed records and redraws at most every interval.
func (p *Progress) Add(n int) {
	if p == nil {
		return
	}
	p.done += int64(n)
	if now := p.now(); now.Sub(p.last) >= p.interval {
		p.last = now
		p.draw()
	}
}

// Finish draws the final state and ends the line.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.draw()
	fmt.Fprintln(p.w)
}

func (p *Progress) draw() {
	elapsed := p.now().Sub(p.start).Round(time.Second)
	if p.total > 0 {
		pct := p.done * 100 / p.total
		fmt.Fprintf(p.w, "\r%s/%s records (%d%%) %s",
			humanize.Comma(p.done), humanize.Comma(p.total), pct, elapsed)
		return
	}
	fmt.Fprintf(p.w, "\r%s records %s", humanize.Comma(p.done), elapsed)
}
