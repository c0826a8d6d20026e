package fastlog

// lineRing keeps the most recent lines in a fixed-capacity buffer.
type lineRing struct {
	buf  []string
	next int
	full bool
}

func newLineRing(capacity int) *lineRing {
	return &lineRing{buf: make([]string, capacity)}
}

func (r *lineRing) push(line string) {
	r.buf[r.next] = line
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// lines returns the retained lines oldest first.
func (r *lineRing) lines() []string {
	if !r.full {
		return append([]string(nil), r.buf[:r.next]...)
	}
	out := make([]string, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
