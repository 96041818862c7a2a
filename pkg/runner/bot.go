package runner

import (
	"context"
	"errors"
)

// MaxBotRejections caps how many rejected actions in a row a bot may submit
// before the runner gives up on it.
const MaxBotRejections = 3

// ErrBotStuck is returned when a bot keeps submitting rejected actions.
var ErrBotStuck = errors.New("bot keeps submitting rejected actions")

// Bot submits actions for players that are not seated at the terminal.
type Bot interface {
	// Plays reports whether the bot acts for playerID.
	Plays(playerID string) bool

	// Act returns the action text for playerID. The frame is the last one
	// shown, with a prompt that lists playerID.
	Act(ctx context.Context, playerID string, frame Frame) (string, error)
}

// split returns the first prompted player driven by a bot and the prompt
// left for the humans.
func split(bot Bot, p Prompt) (string, Prompt) {
	if bot == nil {
		return "", p
	}
	humans := Prompt{Phase: p.Phase}
	botPlayer := ""
	for _, pl := range p.Players {
		if bot.Plays(pl.PlayerID) {
			if botPlayer == "" {
				botPlayer = pl.PlayerID
			}
			continue
		}
		humans.Players = append(humans.Players, pl)
	}
	return botPlayer, humans
}
