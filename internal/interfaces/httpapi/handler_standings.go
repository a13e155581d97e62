package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
)

type standingDTO struct {
	Position       int       `json:"position"`
	TeamID         string    `json:"teamId"`
	Name           string    `json:"name"`
	Played         int       `json:"played"`
	Won            int       `json:"won"`
	Draw           int       `json:"draw"`
	Lost           int       `json:"lost"`
	GoalsFor       int       `json:"goalsFor"`
	GoalsAgainst   int       `json:"goalsAgainst"`
	GoalDifference int       `json:"goalDifference"`
	Points         int       `json:"points"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type standingsResponse struct {
	OK        bool          `json:"ok"`
	LeagueID  string        `json:"leagueId"`
	Standings []standingDTO `json:"standings"`
}

func (h *Handler) ListLeagueStandings(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "ListLeagueStandings")
	defer span.End()

	if h.services.Standings == nil {
		writeError(ctx, w, notConfigured("standings"))
		return
	}

	leagueID := strings.TrimSpace(r.PathValue("leagueID"))
	rows, err := h.services.Standings.ListByLeague(ctx, leagueID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, standingsResponse{
		OK:        true,
		LeagueID:  leagueID,
		Standings: standingsToDTO(rows),
	})
}

func standingsToDTO(rows []leaguestanding.Standing) []standingDTO {
	out := make([]standingDTO, 0, len(rows))
	for i, row := range rows {
		out = append(out, standingDTO{
			Position:       i + 1,
			TeamID:         row.TeamID,
			Name:           row.Name,
			Played:         row.Played,
			Won:            row.Won,
			Draw:           row.Draw,
			Lost:           row.Lost,
			GoalsFor:       row.GoalsFor,
			GoalsAgainst:   row.GoalsAgainst,
			GoalDifference: row.GoalDifference,
			Points:         row.Points,
			UpdatedAt:      row.UpdatedAt,
		})
	}
	return out
}
