package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityHard Severity = "Hard"
	SeveritySoft Severity = "Soft"
)

func (s Severity) IsValid() bool {
	return s == SeverityHard || s == SeveritySoft
}

type ParameterType string

const (
	ParamDuration  ParameterType = "duration"
	ParamVolume    ParameterType = "volume"
	ParamTimeRange ParameterType = "time_range"
)

// TriggerPoint is the trade lifecycle moment a rule is evaluated at.
type TriggerPoint string

const (
	TriggerOpen  TriggerPoint = "open"
	TriggerClose TriggerPoint = "close"
)

// RuleType is an entry of the fixed rule catalogue.
type RuleType struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	ParameterType ParameterType `json:"parameter_type"`
	Description   string        `json:"description"`
}

var RuleTypes = []RuleType{
	{ID: 1, Name: "Duration check", Slug: "duration-check", ParameterType: ParamDuration,
		Description: "Minimum time a trade must remain open"},
	{ID: 2, Name: "Volume consistency", Slug: "volume-consistency", ParameterType: ParamVolume,
		Description: "Compares the trade volume with the recent average"},
	{ID: 3, Name: "Time range operation", Slug: "time-range-operation", ParameterType: ParamTimeRange,
		Description: "Bounds the number of open trades inside a time window"},
}

func RuleTypeByID(id int64) (RuleType, bool) {
	for _, rt := range RuleTypes {
		if rt.ID == id {
			return rt, true
		}
	}
	return RuleType{}, false
}

// Action is a remedial action slug.
type Action string

const (
	ActionNotifyEmail     Action = "notify-email"
	ActionNotifyAdmin     Action = "notify-admin"
	ActionDisableAccount  Action = "disable-account"
	ActionDisableTrading  Action = "disable-trading"
	ActionCloseOpenTrades Action = "close-open-trades"
	ActionLogIncident     Action = "log-incident"
)

type ActionDef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug Action `json:"slug"`
}

var Actions = []ActionDef{
	{ID: 1, Name: "Notify by email", Slug: ActionNotifyEmail},
	{ID: 2, Name: "Disable account", Slug: ActionDisableAccount},
	{ID: 3, Name: "Disable trading", Slug: ActionDisableTrading},
	{ID: 4, Name: "Close open trades", Slug: ActionCloseOpenTrades},
	{ID: 5, Name: "Notify admin", Slug: ActionNotifyAdmin},
	{ID: 6, Name: "Log incident", Slug: ActionLogIncident},
}

func ActionByID(id int64) (Action, bool) {
	for _, a := range Actions {
		if a.ID == id {
			return a.Slug, true
		}
	}
	return "", false
}

func ActionID(slug Action) (int64, bool) {
	for _, a := range Actions {
		if a.Slug == slug {
			return a.ID, true
		}
	}
	return 0, false
}

// RiskRule is a user-defined rule. ParameterData is kept as stored so a
// corrupt row can still be listed; Parameters decodes it on demand.
type RiskRule struct {
	ID            int64           `json:"id"`
	OwnerID       int64           `json:"created_by_user_id"`
	RuleTypeID    int64           `json:"rule_type_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Severity      Severity        `json:"severity"`
	IsActive      bool            `json:"is_active"`
	ParameterType ParameterType   `json:"parameter_type"`
	ParameterData json.RawMessage `json:"parameter_data"`
	Actions       []Action        `json:"actions"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (r RiskRule) Parameters() (RuleParameters, error) {
	return DecodeParameters(r.ParameterType, r.ParameterData)
}

// RuleParameters is the closed set of parameter shapes. Implementations are
// DurationParams, VolumeParams and TimeRangeParams.
type RuleParameters interface {
	Type() ParameterType
	Triggers() []TriggerPoint
	Validate() error
	sealed()
}

// Upper bounds keep parameters representable as a time.Duration.
const (
	MaxDurationSeconds = 10 * 365 * 24 * 60 * 60
	MaxWindowMinutes   = 10 * 365 * 24 * 60
)

type DurationParams struct {
	Seconds int64
}

type VolumeParams struct {
	MinFactor      decimal.Decimal
	MaxFactor      decimal.Decimal
	LookbackTrades int
}

type TimeRangeParams struct {
	WindowMinutes int
	MinOpenTrades int
	MaxOpenTrades int
}

func (DurationParams) Type() ParameterType  { return ParamDuration }
func (VolumeParams) Type() ParameterType    { return ParamVolume }
func (TimeRangeParams) Type() ParameterType { return ParamTimeRange }

func (DurationParams) Triggers() []TriggerPoint  { return []TriggerPoint{TriggerClose} }
func (VolumeParams) Triggers() []TriggerPoint    { return []TriggerPoint{TriggerOpen} }
func (TimeRangeParams) Triggers() []TriggerPoint { return []TriggerPoint{TriggerOpen, TriggerClose} }

func (DurationParams) sealed()  {}
func (VolumeParams) sealed()    {}
func (TimeRangeParams) sealed() {}

func (p DurationParams) Validate() error {
	if p.Seconds < 1 {
		return errors.New("duration must be at least 1 second")
	}
	if p.Seconds > MaxDurationSeconds {
		return fmt.Errorf("duration must be at most %d seconds", MaxDurationSeconds)
	}
	return nil
}

func (p VolumeParams) Validate() error {
	if p.MinFactor.IsNegative() {
		return errors.New("min_factor must be >= 0")
	}
	if p.MaxFactor.LessThan(p.MinFactor) {
		return errors.New("max_factor must be >= min_factor")
	}
	if p.LookbackTrades < 1 {
		return errors.New("lookback_trades must be at least 1")
	}
	return nil
}

func (p TimeRangeParams) Validate() error {
	if p.WindowMinutes < 1 {
		return errors.New("time_window_minutes must be at least 1")
	}
	if p.WindowMinutes > MaxWindowMinutes {
		return fmt.Errorf("time_window_minutes must be at most %d", MaxWindowMinutes)
	}
	if p.MinOpenTrades < 0 {
		return errors.New("min_open_trades must be >= 0")
	}
	if p.MaxOpenTrades < p.MinOpenTrades {
		return errors.New("max_open_trades must be >= min_open_trades")
	}
	return nil
}

// AppliesAt reports whether params are evaluated at the given trigger.
func AppliesAt(p RuleParameters, trigger TriggerPoint) bool {
	for _, t := range p.Triggers() {
		if t == trigger {
			return true
		}
	}
	return false
}

type durationWire struct {
	Duration        *int64 `json:"duration,omitempty"`
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
}

type volumeWire struct {
	MinFactor      *decimal.Decimal `json:"min_factor"`
	MaxFactor      *decimal.Decimal `json:"max_factor"`
	LookbackTrades *int             `json:"lookback_trades"`
}

type timeRangeWire struct {
	WindowMinutes *int `json:"time_window_minutes"`
	MinOpenTrades *int `json:"min_open_trades"`
	MaxOpenTrades *int `json:"max_open_trades"`
}

// DecodeParameters parses stored parameter data for the given type and
// validates it. Missing fields are errors: a rule must be fully specified.
func DecodeParameters(pt ParameterType, raw json.RawMessage) (RuleParameters, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("parameter_data is empty")
	}
	var params RuleParameters
	switch pt {
	case ParamDuration:
		var w durationWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode duration parameters: %w", err)
		}
		secs := w.DurationSeconds
		if secs == nil {
			secs = w.Duration
		}
		if secs == nil {
			return nil, errors.New("duration is required")
		}
		params = DurationParams{Seconds: *secs}
	case ParamVolume:
		var w volumeWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode volume parameters: %w", err)
		}
		if w.MinFactor == nil || w.MaxFactor == nil || w.LookbackTrades == nil {
			return nil, errors.New("min_factor, max_factor and lookback_trades are required")
		}
		params = VolumeParams{MinFactor: *w.MinFactor, MaxFactor: *w.MaxFactor, LookbackTrades: *w.LookbackTrades}
	case ParamTimeRange:
		var w timeRangeWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode time_range parameters: %w", err)
		}
		if w.WindowMinutes == nil || w.MinOpenTrades == nil || w.MaxOpenTrades == nil {
			return nil, errors.New("time_window_minutes, min_open_trades and max_open_trades are required")
		}
		params = TimeRangeParams{WindowMinutes: *w.WindowMinutes, MinOpenTrades: *w.MinOpenTrades, MaxOpenTrades: *w.MaxOpenTrades}
	default:
		return nil, fmt.Errorf("unknown parameter_type %q", pt)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// EncodeParameters renders params in the canonical stored form.
func EncodeParameters(p RuleParameters) (json.RawMessage, error) {
	switch v := p.(type) {
	case DurationParams:
		return json.Marshal(map[string]int64{"duration": v.Seconds})
	case VolumeParams:
		return json.Marshal(map[string]any{
			"min_factor":      v.MinFactor,
			"max_factor":      v.MaxFactor,
			"lookback_trades": v.LookbackTrades,
		})
	case TimeRangeParams:
		return json.Marshal(map[string]int{
			"time_window_minutes": v.WindowMinutes,
			"min_open_trades":     v.MinOpenTrades,
			"max_open_trades":     v.MaxOpenTrades,
		})
	default:
		return nil, fmt.Errorf("unsupported parameters %T", p)
	}
}
