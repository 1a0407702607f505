package models

import "strings"

type Trend string

const (
	TrendStrongBullish Trend = "STRONG_BULLISH"
	TrendStrongBearish Trend = "STRONG_BEARISH"
	TrendBullish       Trend = "BULLISH"
	TrendBearish       Trend = "BEARISH"
	TrendSideways      Trend = "SIDEWAYS"
)

// Direction как у раннера: лонг/шорт или пусто.
type Direction string

const (
	DirectionFlat  Direction = ""
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

func (t Trend) Valid() bool {
	switch t {
	case TrendStrongBullish, TrendStrongBearish, TrendBullish, TrendBearish, TrendSideways:
		return true
	}
	return false
}

// Strong - только сильный тренд несёт уровни входа/стопа/тейков.
func (t Trend) Strong() bool {
	return t == TrendStrongBullish || t == TrendStrongBearish
}

func (t Trend) Direction() Direction {
	switch {
	case strings.Contains(string(t), "BULLISH"):
		return DirectionLong
	case strings.Contains(string(t), "BEARISH"):
		return DirectionShort
	default:
		return DirectionFlat
	}
}

type Status string

const (
	StatusActive       Status = "ACTIVE"
	StatusSLHit        Status = "SL_HIT"
	StatusTP1Hit       Status = "TP1_HIT"
	StatusTP2Hit       Status = "TP2_HIT"
	StatusTP3Hit       Status = "TP3_HIT"
	StatusClosedManual Status = "CLOSED_MANUAL"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSLHit, StatusTP1Hit, StatusTP2Hit, StatusTP3Hit, StatusClosedManual:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s.Valid() && s != StatusActive }

func (s Status) IsTakeProfit() bool {
	return s == StatusTP1Hit || s == StatusTP2Hit || s == StatusTP3Hit
}
