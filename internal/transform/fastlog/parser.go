package fastlog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"alertgraph/pkg/models"
)

// TimestampLayout is the fast.log timestamp format.
const TimestampLayout = "01/02/2006-15:04:05.000000"

const maxLineBytes = 8 * 1024 * 1024

// oversizedLine stands in for a line longer than maxLineBytes. It cannot
// occur in real input because lines are split on newlines.
const oversizedLine = "\n"

// Example:
// 03/16/2012-12:30:00.090000  [**] [1:2024364:5] ET SCAN Possible Nmap User-Agent Observed [**] [Classification: Web Application Attack] [Priority: 1] {TCP} 192.168.202.79:50477 -> 192.168.229.251:80
var lineRegex = regexp.MustCompile(`^` +
	`(?P<ts>\d{2}/\d{2}/\d{4}-\d{2}:\d{2}:\d{2}\.\d{6})\s+` +
	`\[\*\*\]\s+\[(?P<gid>\d+):(?P<sid>\d+):(?P<rev>\d+)\]\s+` +
	`(?P<signature>.*?)\s+\[\*\*\]\s+` +
	`\[Classification:\s*(?P<classification>[^\]]+)\]\s+` +
	`\[Priority:\s*(?P<priority>\d+)\]\s*` +
	`(?:\{(?P<protocol>[^}]+)\}\s+(?P<src>\S+)\s+->\s+(?P<dst>\S+))?`)

var (
	idxTS             = lineRegex.SubexpIndex("ts")
	idxGID            = lineRegex.SubexpIndex("gid")
	idxSID            = lineRegex.SubexpIndex("sid")
	idxRev            = lineRegex.SubexpIndex("rev")
	idxSignature      = lineRegex.SubexpIndex("signature")
	idxClassification = lineRegex.SubexpIndex("classification")
	idxPriority       = lineRegex.SubexpIndex("priority")
	idxProtocol       = lineRegex.SubexpIndex("protocol")
	idxSrc            = lineRegex.SubexpIndex("src")
	idxDst            = lineRegex.SubexpIndex("dst")
)

// Tagger annotates a freshly parsed event with rule matches.
type Tagger interface {
	Apply(event *models.AlertEvent) []models.IoaTag
}

// Options controls parsing.
type Options struct {
	// TailLines keeps only the last N raw lines when > 0.
	TailLines int
	Tagger    Tagger
}

// Stats summarizes one parse pass.
type Stats struct {
	Lines   int `json:"lines"`
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
}

// Parse reads every line from r and returns the events that matched, in
// input order. Malformed lines are skipped; only read errors are returned.
func Parse(r io.Reader, opts Options) ([]models.AlertEvent, Stats, error) {
	lines, err := readLines(r, opts.TailLines)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Lines: len(lines)}
	events := make([]models.AlertEvent, 0, len(lines))
	for _, raw := range lines {
		if raw == oversizedLine {
			stats.Skipped++
			continue
		}
		event, ok := ParseLine(raw)
		if !ok {
			if strings.TrimSpace(raw) != "" {
				stats.Skipped++
			}
			continue
		}
		if opts.Tagger != nil {
			event.Tags = opts.Tagger.Apply(&event)
		}
		events = append(events, event)
	}
	stats.Parsed = len(events)
	return events, stats, nil
}

func readLines(r io.Reader, tail int) ([]string, error) {
	var ring *lineRing
	var lines []string
	if tail > 0 {
		ring = newLineRing(tail)
	} else {
		lines = make([]string, 0, 4096)
	}
	emit := func(line string) {
		if ring != nil {
			ring.push(line)
			return
		}
		lines = append(lines, line)
	}

	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte
	oversized := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > maxLineBytes+1 {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		atEOF := errors.Is(err, io.EOF)
		if err != nil && !atEOF {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if atEOF && len(buf) == 0 && !oversized {
			break
		}

		if oversized {
			emit(oversizedLine)
		} else {
			emit(string(bytes.TrimSuffix(bytes.TrimSuffix(buf, []byte("\n")), []byte("\r"))))
		}
		buf = buf[:0]
		oversized = false
		if atEOF {
			break
		}
	}

	if ring != nil {
		return ring.lines(), nil
	}
	return lines, nil
}

// ParseLine parses one fast.log line. It reports false for blank or
// malformed lines.
func ParseLine(raw string) (models.AlertEvent, bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return models.AlertEvent{}, false
	}
	m := lineRegex.FindStringSubmatch(line)
	if m == nil {
		return models.AlertEvent{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, m[idxTS], time.UTC)
	if err != nil {
		return models.AlertEvent{}, false
	}
	signature := strings.TrimSpace(m[idxSignature])
	if signature == "" {
		return models.AlertEvent{}, false
	}

	event := models.AlertEvent{
		Timestamp:      ts,
		GID:            optional(m[idxGID]),
		SID:            optional(m[idxSID]),
		Rev:            optional(m[idxRev]),
		Signature:      signature,
		Classification: optional(strings.TrimSpace(m[idxClassification])),
		Protocol:       optional(m[idxProtocol]),
	}
	if p, err := strconv.Atoi(m[idxPriority]); err == nil {
		event.Priority = &p
	}

	src, dst := m[idxSrc], m[idxDst]
	if src == "" || dst == "" {
		return event, true
	}
	srcIP, srcPort, okSrc := splitEndpoint(src)
	dstIP, dstPort, okDst := splitEndpoint(dst)
	if !okSrc || !okDst {
		return event, true
	}
	event.SrcIP = &srcIP
	event.DstIP = &dstIP

	sp, errSrc := strconv.Atoi(srcPort)
	dp, errDst := strconv.Atoi(dstPort)
	if errSrc == nil && errDst == nil {
		event.SrcPort = &sp
		event.DstPort = &dp
	}
	return event, true
}

// splitEndpoint splits "ip:port" on the last colon so IPv6 addresses keep
// their inner colons.
func splitEndpoint(endpoint string) (string, string, bool) {
	idx := strings.LastIndex(endpoint, ":")
	if idx <= 0 {
		return "", "", false
	}
	return endpoint[:idx], endpoint[idx+1:], true
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
