// Package rules is the pure game logic: word selection, letter-guess
// evaluation, win/loss detection, clue issuance and winner computation.
// It is stateless except through the session state store, so the same guess
// can be re-applied safely after a reconnect.
package rules

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/utils"
	"github.com/ignacio82/ahorcado/internal/words"
)

// MaxAttempts is the number of wrong guesses a player survives per round.
const MaxAttempts = 6

var (
	ErrGameInactive         = errors.New("la partida no está activa")
	ErrNoPlayers            = errors.New("no hay jugadores para iniciar la ronda")
	ErrNoWordsForDifficulty = errors.New("no hay palabras para la dificultad pedida")
	ErrClueAlreadyUsed      = errors.New("la pista ya fue usada en esta ronda")
	ErrNoDefinition         = errors.New("la palabra actual no tiene definición")
	ErrInvalidLetter        = errors.New("la letra no es válida")
)

// Dictionary supplies candidate words per difficulty tier.
type Dictionary interface {
	WordsForDifficulty(tier words.Difficulty) []words.Entry
}

// PlayerScore is one row of the per-round scoreboard.
type PlayerScore struct {
	PlayerID int    `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// GuessResult is the outcome of evaluating a single letter guess.
// NextPlayerID is -1 when the round ended with this guess.
type GuessResult struct {
	Letter           string        `json:"letter"`
	Correct          bool          `json:"correct"`
	AlreadyGuessed   bool          `json:"alreadyGuessed"`
	AffectedPlayerID int           `json:"affectedPlayerId"`
	AttemptsLeft     int           `json:"attemptsLeft"`
	GuessedLetters   []string      `json:"guessedLetters"`
	NextPlayerID     int           `json:"nextPlayerId"`
	WordSolved       bool          `json:"wordSolved"`
	GameOver         bool          `json:"gameOver"`
	Scores           []PlayerScore `json:"scores"`
}

// WinnerResult names the round winners and why they won.
type WinnerResult struct {
	Winners []state.Player `json:"winners"`
	IsTie   bool           `json:"isTie"`
	Reason  string         `json:"reason"`
}

const (
	WinReasonWordSolved   = "word_solved"
	WinReasonHighestScore = "highest_score"
	WinReasonNoWinner     = "no_winner"
)

// Engine evaluates game rules against a state store.
type Engine struct {
	store *state.Store
	dict  Dictionary
	rng   *rand.Rand
}

func NewEngine(store *state.Store, dict Dictionary) *Engine {
	return &Engine{
		store: store,
		dict:  dict,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SelectWord chooses uniformly at random among the dictionary entries of the
// given tier.
func (e *Engine) SelectWord(difficulty words.Difficulty) (words.Entry, error) {
	entries := e.dict.WordsForDifficulty(difficulty)
	if len(entries) == 0 {
		return words.Entry{}, ErrNoWordsForDifficulty
	}
	return entries[e.rng.Intn(len(entries))], nil
}

// InitializeRound resets the guess state, selects a word, grants every player
// MaxAttempts, zeroes scores and hands the first turn to the first player in
// turn order. On failure the store is left untouched.
func (e *Engine) InitializeRound(players []state.Player, difficulty words.Difficulty) error {
	if len(players) == 0 {
		return ErrNoPlayers
	}
	entry, err := e.SelectWord(difficulty)
	if err != nil {
		return err
	}

	roster := make([]state.Player, len(players))
	copy(roster, players)
	for i := range roster {
		roster[i].AttemptsRemaining = MaxAttempts
		roster[i].Score = 0
	}
	e.store.SetPlayers(roster)
	e.store.SetGuessedLetters(nil)
	e.store.SetClueUsed(false)
	e.store.SetCurrentWord(entry.Word, entry.Definition)
	e.store.SetCurrentPlayerID(roster[0].GameID)
	e.store.SetGameActive(true)
	return nil
}

// ProcessGuess evaluates one letter for the player whose turn it is.
// A repeated letter is harmless: it reports the current round status without
// touching attempts. When the guess ends the round the store's current player
// is left pointing at the acting player so the winner can still be computed.
func (e *Engine) ProcessGuess(letter string) (GuessResult, error) {
	l := utils.NormalizeLetter(letter)
	res := GuessResult{
		Letter:       l,
		NextPlayerID: -1,
	}

	if !e.store.GameActive() {
		res.GameOver = true
		res.Scores = e.scores()
		return res, ErrGameInactive
	}
	if l == "" {
		res.NextPlayerID = e.store.CurrentPlayerID()
		res.Scores = e.scores()
		return res, ErrInvalidLetter
	}

	actingID := e.store.CurrentPlayerID()
	res.AffectedPlayerID = actingID

	if acting, ok := e.store.PlayerByID(actingID); ok {
		res.AttemptsLeft = acting.AttemptsRemaining
	}

	if !e.store.AddGuessedLetter(l) {
		// Idempotent repeat: report status, mutate nothing.
		res.AlreadyGuessed = true
		res.WordSolved = e.wordSolved()
		res.GameOver = res.WordSolved || e.allExhausted()
		res.GuessedLetters = e.store.GuessedLetters()
		res.NextPlayerID = actingID
		if res.GameOver {
			res.NextPlayerID = -1
		}
		res.Scores = e.scores()
		return res, nil
	}

	res.Correct = strings.Contains(e.store.NormalizedWord(), l)
	if !res.Correct {
		e.store.UpdatePlayer(actingID, func(p *state.Player) {
			if p.AttemptsRemaining > 0 {
				p.AttemptsRemaining--
			}
		})
	}

	res.WordSolved = e.wordSolved()
	if res.WordSolved {
		e.store.UpdatePlayer(actingID, func(p *state.Player) { p.Score++ })
	}

	acting, _ := e.store.PlayerByID(actingID)
	res.AttemptsLeft = acting.AttemptsRemaining
	playerLost := acting.AttemptsRemaining <= 0 && !res.WordSolved

	players := e.store.Players()
	single := len(players) == 1
	res.GameOver = res.WordSolved || (single && playerLost) || e.allExhausted()

	if res.GameOver {
		res.NextPlayerID = -1
		e.store.SetGameActive(false)
	} else {
		res.NextPlayerID = e.nextInTurn(players, actingID)
		e.store.SetCurrentPlayerID(res.NextPlayerID)
	}

	res.GuessedLetters = e.store.GuessedLetters()
	res.Scores = e.scores()
	return res, nil
}

// RequestClue marks the round's single clue as used and returns the word's
// definition. It costs no attempts.
func (e *Engine) RequestClue() (string, error) {
	if !e.store.GameActive() {
		return "", ErrGameInactive
	}
	if e.store.ClueUsed() {
		return "", ErrClueAlreadyUsed
	}
	def := e.store.Definition()
	if def == "" {
		return "", ErrNoDefinition
	}
	e.store.SetClueUsed(true)
	return def, nil
}

// ComputeWinners determines the round winners: the solver when the word was
// solved, otherwise everyone tied at the maximum non-zero score.
func (e *Engine) ComputeWinners(players []state.Player) WinnerResult {
	if e.wordSolved() {
		if solver, ok := findPlayer(players, e.store.CurrentPlayerID()); ok {
			return WinnerResult{Winners: []state.Player{solver}, Reason: WinReasonWordSolved}
		}
	}

	maxScore := 0
	for _, p := range players {
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}
	if maxScore == 0 || len(players) == 0 {
		return WinnerResult{Winners: []state.Player{}, Reason: WinReasonNoWinner}
	}
	var winners []state.Player
	for _, p := range players {
		if p.Score == maxScore {
			winners = append(winners, p)
		}
	}
	return WinnerResult{
		Winners: winners,
		IsTie:   len(winners) > 1,
		Reason:  WinReasonHighestScore,
	}
}

// wordSolved reports whether every normalized letter of the target word has
// been guessed.
func (e *Engine) wordSolved() bool {
	word := e.store.NormalizedWord()
	if word == "" {
		return false
	}
	guessed := make(map[string]bool)
	for _, l := range e.store.GuessedLetters() {
		guessed[l] = true
	}
	for _, r := range word {
		if !guessed[string(r)] {
			return false
		}
	}
	return true
}

func (e *Engine) allExhausted() bool {
	players := e.store.Players()
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if p.AttemptsRemaining > 0 {
			return false
		}
	}
	return true
}

// nextInTurn advances round-robin by array position, wrapping, skipping
// players with no attempts left. Returns -1 when nobody can act.
func (e *Engine) nextInTurn(players []state.Player, actingID int) int {
	if len(players) == 0 {
		return -1
	}
	cur := 0
	for i, p := range players {
		if p.GameID == actingID {
			cur = i
			break
		}
	}
	for step := 1; step <= len(players); step++ {
		cand := players[(cur+step)%len(players)]
		if cand.AttemptsRemaining > 0 {
			return cand.GameID
		}
	}
	return -1
}

func (e *Engine) scores() []PlayerScore {
	players := e.store.Players()
	out := make([]PlayerScore, 0, len(players))
	for _, p := range players {
		out = append(out, PlayerScore{PlayerID: p.GameID, Name: p.Name, Score: p.Score})
	}
	return out
}

func findPlayer(players []state.Player, id int) (state.Player, bool) {
	for _, p := range players {
		if p.GameID == id {
			return p, true
		}
	}
	return state.Player{}, false
}
