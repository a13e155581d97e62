package usecase

import (
	"path"
	"strings"
)

const (
	resultsPrefix = "results/"
	replaysPrefix = "replays/"
	jobsPrefix    = "jobs/"
)

func resultKey(seasonID, leagueID, matchID string) string {
	return path.Join("results", seasonID, leagueID, matchID+".json")
}

func replayKey(seasonID, leagueID, matchID string) string {
	return path.Join("replays", seasonID, leagueID, matchID+".json")
}

func batchKey(day string) string {
	return path.Join("jobs", day, "batch_"+day+".json")
}

type resultRef struct {
	SeasonID string
	LeagueID string
	MatchID  string
}

// parseResultKey accepts exactly results/{season}/{league}/{match}.json.
func parseResultKey(key string) (resultRef, bool) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if !strings.HasPrefix(key, resultsPrefix) || !strings.HasSuffix(key, ".json") {
		return resultRef{}, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(key, resultsPrefix), ".json"), "/")
	if len(parts) != 3 {
		return resultRef{}, false
	}
	for _, part := range parts {
		if part == "" {
			return resultRef{}, false
		}
	}
	return resultRef{SeasonID: parts[0], LeagueID: parts[1], MatchID: parts[2]}, true
}
