package sales

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

// BusinessZone is the fixed UTC+9 zone business dates are computed in.
var BusinessZone = time.FixedZone("UTC+9", 9*60*60)

const (
	orderNumberPrefix = "SO-"
	dateKeyLayout     = "20060102"
	orderDateLayout   = "2006-01-02"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	orderDateLayout,
}

// OrderDateContext is a business day in both of its renderings.
type OrderDateContext struct {
	DateKey   string `json:"date_key"`
	OrderDate string `json:"order_date"`
}

// NumberContext scopes sequence allocation to one tenant and business day.
type NumberContext struct {
	OrderDateContext
	TenantID string `json:"tenant_id"`
}

// DateContextFor returns the business day containing t.
func DateContextFor(t time.Time) OrderDateContext {
	local := t.In(BusinessZone)
	return OrderDateContext{
		DateKey:   local.Format(dateKeyLayout),
		OrderDate: local.Format(orderDateLayout),
	}
}

// ResolveOrderDate parses raw leniently: empty or unparseable input resolves
// to the current business day.
func ResolveOrderDate(raw string) OrderDateContext {
	return resolveOrderDateAt(raw, time.Now())
}

func resolveOrderDateAt(raw string, now time.Time) OrderDateContext {
	if t, ok := parseBusinessTime(raw); ok {
		return DateContextFor(t)
	}
	return DateContextFor(now)
}

// ParseOrderDate parses raw strictly.
func ParseOrderDate(raw string) (OrderDateContext, error) {
	t, ok := parseBusinessTime(raw)
	if !ok {
		return OrderDateContext{}, fmt.Errorf("%w: invalid date %q", ErrValidation, raw)
	}
	return DateContextFor(t), nil
}

// parseBusinessTime accepts ISO-8601 timestamps and bare dates. Values without
// an offset are read as business-zone wall time.
func parseBusinessTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, BusinessZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatOrderNumber renders SO-{dateKey}-{seq} with the sequence padded to three digits.
func FormatOrderNumber(dateKey string, seq int) string {
	return fmt.Sprintf("%s%s-%03d", orderNumberPrefix, dateKey, seq)
}

// NormalizeOrderNumber trims and upper-cases an order number so that numbers
// differing only in case collide.
func NormalizeOrderNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// ParseOrderNumber returns the sequence of number when it follows the house
// format for dateKey.
func ParseOrderNumber(number, dateKey string) (int, bool) {
	rest, ok := strings.CutPrefix(NormalizeOrderNumber(number), orderNumberPrefix+dateKey+"-")
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seq, err := strconv.Atoi(rest)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

// SequenceSource reports the highest sequence already stored for a tenant and
// order date. The sequencer reconciles its cache against it.
type SequenceSource interface {
	MaxSequence(tenantID, orderDate string) int
}

// NumberAllocation is an issued sequence and its order number.
type NumberAllocation struct {
	Sequence    int    `json:"sequence"`
	OrderNumber string `json:"order_number"`
}

// Sequencer issues per-tenant per-day order numbers and tracks which numbers
// are in use.
type Sequencer struct {
	source SequenceSource
	locks  *shared.KeyedMutex

	mu       sync.Mutex
	counters map[string]int
	used     map[string]map[string]struct{}
}

// NewSequencer constructs a Sequencer. source may be nil.
func NewSequencer(source SequenceSource) *Sequencer {
	return &Sequencer{
		source:   source,
		locks:    shared.NewKeyedMutex(),
		counters: make(map[string]int),
		used:     make(map[string]map[string]struct{}),
	}
}

// Peek returns the allocation Allocate would make next without consuming it.
func (s *Sequencer) Peek(nc NumberContext) NumberAllocation {
	unlock := s.locks.Lock(shared.SequenceLockKey(nc.TenantID, nc.DateKey))
	defer unlock()
	seq := s.nextFree(nc, s.reconcile(nc))
	return NumberAllocation{Sequence: seq, OrderNumber: FormatOrderNumber(nc.DateKey, seq)}
}

// Allocate reconciles the cached counter with stored orders and issues the
// next sequence. Numbers already marked used are skipped.
func (s *Sequencer) Allocate(nc NumberContext) NumberAllocation {
	unlock := s.locks.Lock(shared.SequenceLockKey(nc.TenantID, nc.DateKey))
	defer unlock()
	seq := s.nextFree(nc, s.reconcile(nc))

	s.mu.Lock()
	s.counters[counterKey(nc)] = seq
	s.mu.Unlock()
	return NumberAllocation{Sequence: seq, OrderNumber: FormatOrderNumber(nc.DateKey, seq)}
}

// MarkUsed claims number for tenantID. It reports false when the number was
// already in use.
func (s *Sequencer) MarkUsed(tenantID, number string) bool {
	number = NormalizeOrderNumber(number)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.used[tenantID]
	if !ok {
		set = make(map[string]struct{})
		s.used[tenantID] = set
	}
	if _, taken := set[number]; taken {
		return false
	}
	set[number] = struct{}{}
	return true
}

// Unmark frees number for reuse.
func (s *Sequencer) Unmark(tenantID, number string) {
	number = NormalizeOrderNumber(number)
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.used[tenantID]; ok {
		delete(set, number)
		if len(set) == 0 {
			delete(s.used, tenantID)
		}
	}
}

// IsUsed reports whether number is in use for tenantID.
func (s *Sequencer) IsUsed(tenantID, number string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.used[tenantID][NormalizeOrderNumber(number)]
	return ok
}

// reconcile raises the cached counter to the stored maximum and returns it.
// Callers hold the sequence lock.
func (s *Sequencer) reconcile(nc NumberContext) int {
	stored := 0
	if s.source != nil {
		stored = s.source.MaxSequence(nc.TenantID, nc.OrderDate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey(nc)
	if stored > s.counters[key] {
		s.counters[key] = stored
	}
	return s.counters[key]
}

func (s *Sequencer) nextFree(nc NumberContext, current int) int {
	seq := current + 1
	for s.IsUsed(nc.TenantID, FormatOrderNumber(nc.DateKey, seq)) {
		seq++
	}
	return seq
}

func counterKey(nc NumberContext) string {
	return nc.TenantID + "|" + nc.DateKey
}
