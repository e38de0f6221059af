package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"analytics-agent/internal/domain"
)

var (
	dynamicPeriodRe = regexp.MustCompile(`\b(?:last|past|previous)\s+(\d+)\s+(days?|weeks?|months?|quarters?|years?)\b`)
	lifetimeRe      = regexp.MustCompile(`\b(?:lifetime|all time|ever|since beginning|total history)\b`)
	limitRe         = regexp.MustCompile(`\b(?:top|first|best|show|give\s+me)\s+(\d+)\b`)
	thresholdRe     = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(hours?|hrs?|minutes?|mins?|seconds?|secs?)\b`)
	comparisonRe    = regexp.MustCompile(`\b(?:compare|compared to|vs|versus)\b`)
)

var unitDays = map[string]float64{
	"day": 1, "week": 7, "month": 30, "quarter": 90, "year": 365,
}

type staticPeriod struct {
	phrase string
	days   float64
}

var staticPeriods = []staticPeriod{
	{"this week", 7},
	{"last week", 7},
	{"past week", 7},
	{"this month", 30},
	{"last month", 30},
	{"past month", 30},
	{"this quarter", 90},
	{"last quarter", 90},
}

var (
	abandonCues = []string{"abandon", "unpaid", "waiting"}
	speedCues   = []string{"fast", "slow", "quick", "speed", "payer"}
)

var (
	emotionMatchers = buildEmotionMatchers()
	countryMatchers = buildCountryMatchers()
)

// Extractor pulls structured parameters out of question text. It holds no
// mutable state; the same question and context always yield the same
// parameters for a fixed clock.
type Extractor struct {
	now func() time.Time
	loc *time.Location
}

type ExtractorOption func(*Extractor)

// WithClock overrides the time source used for "today" and "this year".
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the local timezone used to find calendar boundaries.
func WithLocation(loc *time.Location) ExtractorOption {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		now: time.Now,
		loc: time.FixedZone("UTC+8", 8*60*60),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the parameters found in question, layered over the
// previous turn's parameters when cctx is present.
func (e *Extractor) Extract(question string, cctx *domain.ConversationContext) domain.Params {
	fresh := e.extractFresh(question)
	if cctx == nil {
		return fresh
	}
	return domain.Overlay(cctx.LastParams, fresh)
}

func (e *Extractor) extractFresh(question string) domain.Params {
	lower := strings.ToLower(question)
	var p domain.Params

	e.applyPeriod(lower, &p)

	if m := limitRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			p.Limit = domain.Int(n)
		}
	}

	applyThreshold(lower, &p)

	if emotions := matchEmotions(lower); len(emotions) > 0 {
		p.EmotionFilter = emotions
	}
	p.CountryFilter = matchCountry(question)

	if comparisonRe.MatchString(lower) {
		p.ComparisonMode = true
	}
	return p
}

func (e *Extractor) applyPeriod(lower string, p *domain.Params) {
	if m := dynamicPeriodRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			unit := strings.TrimSuffix(m[2], "s")
			p.PeriodDays = domain.Float(float64(n) * unitDays[unit])
			return
		}
	}
	if lifetimeRe.MatchString(lower) {
		p.PeriodDays = domain.Float(domain.LifetimePeriodDays)
		return
	}
	now := e.now().In(e.loc)
	if strings.Contains(lower, "today") {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
		p.PeriodDays = domain.Float(math.Max(now.Sub(midnight).Hours()/24, 0.1))
		return
	}
	if strings.Contains(lower, "yesterday") {
		p.PeriodDays = domain.Float(1)
		p.SpecificDate = "yesterday"
		return
	}
	if strings.Contains(lower, "this year") {
		p.PeriodDays = domain.Float(float64(now.YearDay()))
		return
	}
	if containsAny(lower, "last year", "past year", "in 1 year") {
		p.PeriodDays = domain.Float(365)
		return
	}
	for _, sp := range staticPeriods {
		if strings.Contains(lower, sp.phrase) {
			p.PeriodDays = domain.Float(sp.days)
			return
		}
	}
}

func applyThreshold(lower string, p *domain.Params) {
	m := thresholdRe.FindStringSubmatch(lower)
	if m == nil {
		return
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return
	}
	hours := n
	switch {
	case strings.HasPrefix(m[2], "min"):
		hours = n / 60
	case strings.HasPrefix(m[2], "sec"):
		hours = n / 3600
	}
	switch {
	case containsAny(lower, abandonCues...):
		p.HoursThreshold = domain.Float(hours)
	case containsAny(lower, speedCues...):
		p.ThresholdHours = domain.Float(hours)
	}
}

type emotionMatcher struct {
	canonical string
	re        *regexp.Regexp
}

func buildEmotionMatchers() []emotionMatcher {
	out := make([]emotionMatcher, 0, len(emotionGroups))
	for _, g := range emotionGroups {
		out = append(out, emotionMatcher{canonical: g.canonical, re: wordsRe(g.synonyms, true)})
	}
	return out
}

func matchEmotions(lower string) domain.EmotionFilter {
	var out domain.EmotionFilter
	for _, m := range emotionMatchers {
		if m.re.MatchString(lower) {
			out = append(out, m.canonical)
		}
	}
	return out
}

type countryMatcher struct {
	code  string
	names *regexp.Regexp
	codes *regexp.Regexp
}

func buildCountryMatchers() []countryMatcher {
	out := make([]countryMatcher, 0, len(countryTable))
	for _, c := range countryTable {
		cm := countryMatcher{code: c.code, names: wordsRe(c.names, true)}
		if len(c.codes) > 0 {
			cm.codes = wordsRe(c.codes, false)
		}
		out = append(out, cm)
	}
	return out
}

// matchCountry returns the code of the country mentioned earliest in the
// question, or "" when none is.
func matchCountry(question string) string {
	best, bestPos := "", -1
	consider := func(code string, loc []int) {
		if loc != nil && (bestPos < 0 || loc[0] < bestPos) {
			best, bestPos = code, loc[0]
		}
	}
	for _, c := range countryMatchers {
		consider(c.code, c.names.FindStringIndex(question))
		if c.codes != nil {
			consider(c.code, c.codes.FindStringIndex(question))
		}
	}
	return best
}

// hasSubFilter reports whether the question names a filter the extractor
// recognizes (emotion, country or time window).
func (e *Extractor) hasSubFilter(question string) bool {
	p := e.extractFresh(question)
	return len(p.EmotionFilter) > 0 || p.CountryFilter != "" || p.PeriodDays != nil
}

func wordsRe(words []string, foldCase bool) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	prefix := ""
	if foldCase {
		prefix = "(?i)"
	}
	return regexp.MustCompile(prefix + `\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
