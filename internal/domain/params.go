package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Parameter names accepted across the analytics operations.
const (
	ParamPeriodDays     = "period_days"
	ParamLimit          = "limit"
	ParamTopN           = "top_n"
	ParamThresholdHours = "threshold_hours"
	ParamHoursThreshold = "hours_threshold"
	ParamEmotionFilter  = "emotion_filter"
	ParamCountryFilter  = "country_filter"
	ParamComparisonMode = "comparison_mode"
	ParamSpecificDate   = "specific_date"
	ParamGroupBy        = "group_by"
	ParamComparisonDays = "comparison_days"
)

// LifetimePeriodDays is the window used for "lifetime"/"all time" questions.
const LifetimePeriodDays = 99999

// Params is the structured parameter set for an analytics operation.
// A nil pointer or empty value means "use the operation default".
type Params struct {
	PeriodDays     *float64      `json:"period_days,omitempty"`
	Limit          *int          `json:"limit,omitempty"`
	ThresholdHours *float64      `json:"threshold_hours,omitempty"`
	HoursThreshold *float64      `json:"hours_threshold,omitempty"`
	EmotionFilter  EmotionFilter `json:"emotion_filter,omitempty"`
	CountryFilter  string        `json:"country_filter,omitempty"`
	ComparisonMode bool          `json:"comparison_mode,omitempty"`
	SpecificDate   string        `json:"specific_date,omitempty"`
	GroupBy        string        `json:"group_by,omitempty"`
	ComparisonDays *float64      `json:"comparison_days,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func (p Params) PeriodOr(def float64) float64 {
	if p.PeriodDays == nil || *p.PeriodDays <= 0 {
		return def
	}
	return *p.PeriodDays
}

func (p Params) LimitOr(def int) int {
	if p.Limit == nil || *p.Limit <= 0 {
		return def
	}
	return *p.Limit
}

func (p Params) ThresholdHoursOr(def float64) float64 {
	if p.ThresholdHours == nil || *p.ThresholdHours <= 0 {
		return def
	}
	return *p.ThresholdHours
}

func (p Params) HoursThresholdOr(def float64) float64 {
	if p.HoursThreshold == nil || *p.HoursThreshold <= 0 {
		return def
	}
	return *p.HoursThreshold
}

func (p Params) ComparisonDaysOr(def float64) float64 {
	if p.ComparisonDays == nil || *p.ComparisonDays <= 0 {
		return def
	}
	return *p.ComparisonDays
}

// Keys lists the parameter names present in p, sorted.
func (p Params) Keys() []string {
	var keys []string
	if p.PeriodDays != nil {
		keys = append(keys, ParamPeriodDays)
	}
	if p.Limit != nil {
		keys = append(keys, ParamLimit)
	}
	if p.ThresholdHours != nil {
		keys = append(keys, ParamThresholdHours)
	}
	if p.HoursThreshold != nil {
		keys = append(keys, ParamHoursThreshold)
	}
	if len(p.EmotionFilter) > 0 {
		keys = append(keys, ParamEmotionFilter)
	}
	if p.CountryFilter != "" {
		keys = append(keys, ParamCountryFilter)
	}
	if p.ComparisonMode {
		keys = append(keys, ParamComparisonMode)
	}
	if p.SpecificDate != "" {
		keys = append(keys, ParamSpecificDate)
	}
	if p.GroupBy != "" {
		keys = append(keys, ParamGroupBy)
	}
	if p.ComparisonDays != nil {
		keys = append(keys, ParamComparisonDays)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether no parameter is set.
func (p Params) IsEmpty() bool { return len(p.Keys()) == 0 }

// Overlay returns base with every key present in fresh overwriting the
// corresponding key of base. Lists are replaced, never merged.
func Overlay(base, fresh Params) Params {
	out := base.clone()
	if fresh.PeriodDays != nil {
		out.PeriodDays = Float(*fresh.PeriodDays)
	}
	if fresh.Limit != nil {
		out.Limit = Int(*fresh.Limit)
	}
	if fresh.ThresholdHours != nil {
		out.ThresholdHours = Float(*fresh.ThresholdHours)
	}
	if fresh.HoursThreshold != nil {
		out.HoursThreshold = Float(*fresh.HoursThreshold)
	}
	if len(fresh.EmotionFilter) > 0 {
		out.EmotionFilter = append(EmotionFilter(nil), fresh.EmotionFilter...)
	}
	if fresh.CountryFilter != "" {
		out.CountryFilter = fresh.CountryFilter
	}
	if fresh.ComparisonMode {
		out.ComparisonMode = true
	}
	if fresh.SpecificDate != "" {
		out.SpecificDate = fresh.SpecificDate
	}
	if fresh.GroupBy != "" {
		out.GroupBy = fresh.GroupBy
	}
	if fresh.ComparisonDays != nil {
		out.ComparisonDays = Float(*fresh.ComparisonDays)
	}
	return out
}

// Restrict drops every key not listed in accepted. top_n is treated as an
// alias of limit.
func (p Params) Restrict(accepted []string) Params {
	allow := make(map[string]bool, len(accepted))
	for _, k := range accepted {
		allow[k] = true
	}
	if allow[ParamTopN] {
		allow[ParamLimit] = true
	}
	var out Params
	if allow[ParamPeriodDays] && p.PeriodDays != nil {
		out.PeriodDays = Float(*p.PeriodDays)
	}
	if allow[ParamLimit] && p.Limit != nil {
		out.Limit = Int(*p.Limit)
	}
	if allow[ParamThresholdHours] && p.ThresholdHours != nil {
		out.ThresholdHours = Float(*p.ThresholdHours)
	}
	if allow[ParamHoursThreshold] && p.HoursThreshold != nil {
		out.HoursThreshold = Float(*p.HoursThreshold)
	}
	if allow[ParamEmotionFilter] && len(p.EmotionFilter) > 0 {
		out.EmotionFilter = append(EmotionFilter(nil), p.EmotionFilter...)
	}
	if allow[ParamCountryFilter] {
		out.CountryFilter = p.CountryFilter
	}
	if allow[ParamComparisonMode] {
		out.ComparisonMode = p.ComparisonMode
	}
	if allow[ParamSpecificDate] {
		out.SpecificDate = p.SpecificDate
	}
	if allow[ParamGroupBy] {
		out.GroupBy = p.GroupBy
	}
	if allow[ParamComparisonDays] && p.ComparisonDays != nil {
		out.ComparisonDays = Float(*p.ComparisonDays)
	}
	return out
}

func (p Params) clone() Params {
	out := p
	if p.PeriodDays != nil {
		out.PeriodDays = Float(*p.PeriodDays)
	}
	if p.Limit != nil {
		out.Limit = Int(*p.Limit)
	}
	if p.ThresholdHours != nil {
		out.ThresholdHours = Float(*p.ThresholdHours)
	}
	if p.HoursThreshold != nil {
		out.HoursThreshold = Float(*p.HoursThreshold)
	}
	if p.ComparisonDays != nil {
		out.ComparisonDays = Float(*p.ComparisonDays)
	}
	if p.EmotionFilter != nil {
		out.EmotionFilter = append(EmotionFilter(nil), p.EmotionFilter...)
	}
	return out
}

// ParamsFromMap converts loosely typed tool arguments (as produced by an
// LLM) into Params. Unrecognized or invalid keys are returned in ignored
// rather than passed through.
func ParamsFromMap(args map[string]any) (p Params, ignored []string) {
	for k, v := range args {
		var err error
		switch k {
		case ParamPeriodDays:
			var f float64
			if f, err = toFloat(v); err == nil {
				if f <= 0 {
					err = errors.New("must be positive")
				} else {
					p.PeriodDays = Float(f)
				}
			}
		case ParamLimit, ParamTopN:
			var f float64
			if f, err = toFloat(v); err == nil {
				p.Limit = Int(int(f))
			}
		case ParamThresholdHours:
			var f float64
			if f, err = toFloat(v); err == nil {
				p.ThresholdHours = Float(f)
			}
		case ParamHoursThreshold:
			var f float64
			if f, err = toFloat(v); err == nil {
				p.HoursThreshold = Float(f)
			}
		case ParamComparisonDays:
			var f float64
			if f, err = toFloat(v); err == nil {
				p.ComparisonDays = Float(f)
			}
		case ParamEmotionFilter:
			p.EmotionFilter, err = emotionFilterFrom(v)
		case ParamCountryFilter:
			p.CountryFilter, err = toString(v)
		case ParamSpecificDate:
			p.SpecificDate, err = toString(v)
		case ParamGroupBy:
			p.GroupBy, err = toString(v)
		case ParamComparisonMode:
			b, ok := v.(bool)
			if !ok {
				err = fmt.Errorf("not a bool: %T", v)
			}
			p.ComparisonMode = b
		default:
			err = errors.New("unknown key")
		}
		if err != nil {
			ignored = append(ignored, k)
		}
	}
	sort.Strings(ignored)
	return p, ignored
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, errors.New("not finite")
		}
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("not a string: %T", v)
	}
	return s, nil
}

func emotionFilterFrom(v any) (EmotionFilter, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, nil
		}
		return EmotionFilter{t}, nil
	case []string:
		return append(EmotionFilter(nil), t...), nil
	case []any:
		out := make(EmotionFilter, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("emotion is not a string: %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported emotion filter: %T", v)
}

// EmotionFilter holds one or more canonical emotions. It serializes as a
// scalar string when it holds exactly one value and as a list otherwise.
type EmotionFilter []string

func (f EmotionFilter) MarshalJSON() ([]byte, error) {
	if len(f) == 1 {
		return json.Marshal(f[0])
	}
	return json.Marshal([]string(f))
}

func (f *EmotionFilter) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		if single == "" {
			*f = nil
		} else {
			*f = EmotionFilter{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("domain: emotion filter: %w", err)
	}
	*f = EmotionFilter(many)
	return nil
}

// Value returns the scalar or list form used in query filters and prompts.
func (f EmotionFilter) Value() any {
	switch len(f) {
	case 0:
		return nil
	case 1:
		return f[0]
	}
	return []string(f)
}
