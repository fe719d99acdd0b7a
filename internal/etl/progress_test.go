package etl

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Throttles(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProgress(&buf, 0)
	p.now = func() time.Time { return now }
	p.start = now

	p.Add(1)
	p.Add(1)
	p.Add(1)
	assert.Equal(t, 1, strings.Count(buf.String(), "\r"))

	now = now.Add(2 * time.Second)
	p.Add(1000)
	assert.Contains(t, buf.String(), "\r1,003 records 2s")

	p.Finish()
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestProgress_WithTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 4000)
	p.Add(1000)
	assert.Contains(t, buf.String(), "1,000/4,000 records (25%)")
}

func TestProgress_Nil(t *testing.T) {
	var p *Progress
	p.Add(1)
	p.Finish()
}
