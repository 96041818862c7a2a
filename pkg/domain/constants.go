package domain

// Reserved phases.
const (
	// PhaseInit is the entry phase every session starts in.
	PhaseInit = "init"
	// PhaseFinished is the unique terminal phase.
	PhaseFinished = "finished"
)

// Reserved state paths and player fields.
const (
	RootGame    = "game"
	RootPlayers = "players"

	// FieldCurrentPhase is written by the engine whenever a transition fires.
	FieldCurrentPhase = "game.currentPhase"
	// FieldGameEnded marks the game as terminal.
	FieldGameEnded = "game.gameEnded"
	// FieldPublicMessage is an optional free-text message shown to everyone.
	FieldPublicMessage = "game.publicMessage"

	// PlayerActionRequired marks a player as expected to act.
	PlayerActionRequired = "actionRequired"
	// PlayerIsGameWinner marks a player as a winner once the game has ended.
	PlayerIsGameWinner = "isGameWinner"
	// PlayerPrivateMessage is an optional message only its owner sees.
	PlayerPrivateMessage = "privateMessage"
)

// Placeholder names bound by the runtime when executing programs.
const (
	VarPlayerID = "playerId"
)

// AliasPrefix is the prefix of the symbolic player aliases (player1, player2, ...)
// used inside templates and player-facing text.
const AliasPrefix = "player"
