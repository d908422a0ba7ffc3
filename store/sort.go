package store

import (
	"cmp"
	"slices"

	"royale-indexer/models"
)

func sortGames(games []models.Game) {
	slices.SortFunc(games, func(a, b models.Game) int {
		if c := cmp.Compare(a.GameID, b.GameID); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortPlayers(players []models.Player) {
	slices.SortFunc(players, func(a, b models.Player) int { return cmp.Compare(a.ID, b.ID) })
}

func sortCells(cells []models.WorldMatrix) {
	slices.SortFunc(cells, func(a, b models.WorldMatrix) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
}
