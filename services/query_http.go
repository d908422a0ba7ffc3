package services

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"royale-indexer/logger"

	"github.com/gofiber/fiber/v2"
)

// GetAllGames lists games. Query: gameOn=true|false, fields=a,b.
func (s *QueryService) GetAllGames(c *fiber.Ctx) error {
	gameOn, err := boolQuery(c, "gameOn")
	if err != nil {
		return badRequest(c, err)
	}
	games, err := s.ListGames(c.UserContext(), GameFilter{GameOn: gameOn})
	if err != nil {
		return s.fail(c, "list games", err)
	}
	return respond(c, games)
}

func (s *QueryService) GetGameByID(c *fiber.Ctx) error {
	game, err := s.GetGame(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, "get game", err)
	}
	return respond(c, game)
}

func (s *QueryService) GetGameBoard(c *fiber.Ctx) error {
	board, err := s.Board(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, "get board", err)
	}
	return c.JSON(board)
}

// GetAllPlayers lists players. Query: alive=true|false, fields=a,b.
func (s *QueryService) GetAllPlayers(c *fiber.Ctx) error {
	alive, err := boolQuery(c, "alive")
	if err != nil {
		return badRequest(c, err)
	}
	players, err := s.ListPlayers(c.UserContext(), PlayerFilter{Alive: alive})
	if err != nil {
		return s.fail(c, "list players", err)
	}
	return respond(c, players)
}

func (s *QueryService) GetPlayerByID(c *fiber.Ctx) error {
	player, err := s.GetPlayer(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, "get player", err)
	}
	return respond(c, player)
}

// GetWorld lists cells. Query: cursed, occupied, hasHealth, fields (player.health selects nested).
func (s *QueryService) GetWorld(c *fiber.Ctx) error {
	var (
		f   CellFilter
		err error
	)
	if f.Cursed, err = boolQuery(c, "cursed"); err != nil {
		return badRequest(c, err)
	}
	if f.Occupied, err = boolQuery(c, "occupied"); err != nil {
		return badRequest(c, err)
	}
	if f.HasHealth, err = boolQuery(c, "hasHealth"); err != nil {
		return badRequest(c, err)
	}
	cells, err := s.ListCells(c.UserContext(), f)
	if err != nil {
		return s.fail(c, "list cells", err)
	}
	return respond(c, cells)
}

func (s *QueryService) GetWorldCell(c *fiber.Ctx) error {
	x, errX := strconv.ParseInt(c.Params("x"), 10, 64)
	y, errY := strconv.ParseInt(c.Params("y"), 10, 64)
	if err := errors.Join(errX, errY); err != nil {
		return badRequest(c, errors.New("x and y must be integers"))
	}
	cell, err := s.GetCell(c.UserContext(), x, y)
	if err != nil {
		return s.fail(c, "get cell", err)
	}
	return respond(c, cell)
}

func (s *QueryService) GetStatus(c *fiber.Ctx) error {
	status, err := s.Status(c.UserContext())
	if err != nil {
		return s.fail(c, "status", err)
	}
	return c.JSON(status)
}

func (s *QueryService) fail(c *fiber.Ctx, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	logger.Component("query").WithError(err).WithField("path", c.Path()).Errorf("[QUERY] %s failed", op)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": op + " failed"})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func boolQuery(c *fiber.Ctx, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New(name + " must be true or false")
	}
	return &v, nil
}

// respond writes v as JSON, narrowed to ?fields= when given.
func respond(c *fiber.Ctx, v any) error {
	fields := parseFields(c.Query("fields"))
	if len(fields) == 0 {
		return c.JSON(v)
	}
	selected, err := selectFields(v, fields)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "field selection failed"})
	}
	return c.JSON(selected)
}

func parseFields(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// selectFields keeps only the named JSON keys of v, or of each element when v is a list.
// A dotted name ("player.health") selects inside a nested record.
func selectFields(v any, fields []string) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	tree := fieldTree(fields)
	if list, ok := generic.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = pick(item, tree)
		}
		return out, nil
	}
	return pick(generic, tree), nil
}

// fieldTree turns ["id", "player.health"] into {id: nil, player: {health: nil}}.
// A nil subtree keeps the whole value.
func fieldTree(fields []string) map[string]map[string]any {
	tree := make(map[string]map[string]any)
	for _, f := range fields {
		head, rest, nested := strings.Cut(f, ".")
		sub, seen := tree[head]
		if !nested {
			tree[head] = nil
			continue
		}
		if seen && sub == nil {
			continue
		}
		if sub == nil {
			sub = make(map[string]any)
			tree[head] = sub
		}
		sub[rest] = nil
	}
	return tree
}

func pick(v any, tree map[string]map[string]any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(tree))
	for key, sub := range tree {
		val, ok := obj[key]
		if !ok {
			continue
		}
		if sub == nil {
			out[key] = val
			continue
		}
		nested := make([]string, 0, len(sub))
		for k := range sub {
			nested = append(nested, k)
		}
		out[key] = pick(val, fieldTree(nested))
	}
	return out
}
