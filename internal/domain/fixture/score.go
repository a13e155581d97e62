package fixture

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

var scoreKeyPairs = [][2]string{
	{"home", "away"},
	{"h", "a"},
	{"homeGoals", "awayGoals"},
}

// NormalizeScore coerces the score shapes workers send into {home, away}.
// It looks at payload.score, then payload.result, then payload itself, and
// within each at {home,away}, {h,a} and {homeGoals,awayGoals}. ok is false
// when nothing parses; the returned score is then {0,0}.
func NormalizeScore(payload map[string]any) (Score, bool) {
	candidates := []any{payload["score"], payload["result"], payload}
	for _, candidate := range candidates {
		obj, isMap := candidate.(map[string]any)
		if !isMap {
			continue
		}
		for _, pair := range scoreKeyPairs {
			home, okHome := goals(obj[pair[0]])
			away, okAway := goals(obj[pair[1]])
			if okHome && okAway {
				return Score{Home: home, Away: away}, true
			}
		}
	}
	return Score{}, false
}

func goals(v any) (int, bool) {
	var f float64
	switch value := v.(type) {
	case int:
		f = float64(value)
	case int64:
		f = float64(value)
	case float64:
		f = value
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
