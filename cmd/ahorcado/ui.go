package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"

	"github.com/ignacio82/ahorcado/internal/protocol"
	"github.com/ignacio82/ahorcado/internal/rules"
	"github.com/ignacio82/ahorcado/internal/session"
	"github.com/ignacio82/ahorcado/internal/utils"
)

// termUI renders the session in the terminal and feeds typed commands back
// into the coordinator.
type termUI struct {
	mu    sync.Mutex
	coord *session.Coordinator

	done     chan struct{}
	doneOnce sync.Once
}

func newTermUI() *termUI {
	return &termUI{done: make(chan struct{})}
}

func (u *termUI) bind(coord *session.Coordinator) {
	u.mu.Lock()
	u.coord = coord
	u.mu.Unlock()
}

func (u *termUI) coordinator() *session.Coordinator {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.coord
}

func (u *termUI) finish() {
	u.doneOnce.Do(func() { close(u.done) })
}

// --- session.Callbacks ---

func (u *termUI) ShowLobby(isHost bool) {
	coord := u.coordinator()
	if isHost {
		addr := coord.LocalAddr()
		fmt.Printf("\nSala creada. Compartí esta dirección: %s\n", addr)
		if qr, err := qrcode.New(addr, qrcode.Medium); err == nil {
			fmt.Println(qr.ToSmallString(false))
		}
	} else {
		fmt.Println("\nEntraste a la sala. Esperando que empiece la partida.")
	}
	fmt.Println(`Comandos: "listo", "empezar" (solo el host), "decir <mensaje>", "salir"`)
	u.printPlayers()
}

func (u *termUI) LobbyUpdated() {
	u.printPlayers()
}

func (u *termUI) GameStarted(snapshot protocol.GameStartedPayload) {
	fmt.Printf("\n¡Empieza la partida! Palabra de %d letras.\n", snapshot.WordLength)
	fmt.Println(`Escribí una letra para arriesgar, "pista" para la pista, "salir" para irte.`)
	u.printBoard()
}

func (u *termUI) GuessApplied(result rules.GuessResult) {
	if result.AlreadyGuessed {
		fmt.Printf("La letra %q ya estaba jugada.\n", result.Letter)
	} else if result.Correct {
		fmt.Printf("¡Bien! La letra %q está en la palabra.\n", result.Letter)
	} else {
		fmt.Printf("No, %q no está. Quedan %d intentos.\n", result.Letter, result.AttemptsLeft)
	}
	u.printBoard()
}

func (u *termUI) FullStateSynced() {
	coord := u.coordinator()
	if coord != nil && coord.Store().GameActive() {
		u.printBoard()
	}
}

func (u *termUI) ClueRevealed(clue string) {
	fmt.Printf("Pista: %s\n", clue)
}

func (u *termUI) GameOver(data protocol.GameOverPayload) {
	fmt.Printf("\nFin de la partida. La palabra era %q.\n", data.FinalWord)
	switch {
	case len(data.Winners) == 0:
		fmt.Println("Nadie ganó esta vez.")
	case data.IsTie:
		names := make([]string, len(data.Winners))
		for i, w := range data.Winners {
			names[i] = w.Name
		}
		fmt.Printf("Empate entre %s.\n", strings.Join(names, " y "))
	default:
		fmt.Printf("¡Ganó %s!\n", data.Winners[0].Name)
	}
	for _, s := range data.FinalScores {
		fmt.Printf("  %-15s %d\n", s.Name, s.Score)
	}
	if data.Reason == protocol.OverReasonHostLeft {
		u.finish()
	}
}

func (u *termUI) ChatReceived(from, message string) {
	fmt.Printf("[%s] %s\n", from, message)
}

func (u *termUI) NetworkError(message string, critical bool) {
	fmt.Fprintln(os.Stderr, "aviso:", message)
	if critical {
		u.finish()
	}
}

func (u *termUI) CriticalDisconnect() {
	fmt.Fprintln(os.Stderr, "Se perdió la conexión con el host. La sesión terminó.")
	u.finish()
}

// --- rendering ---

func (u *termUI) printPlayers() {
	coord := u.coordinator()
	if coord == nil {
		return
	}
	fmt.Println("Jugadores:")
	for _, p := range coord.Store().Players() {
		ready := " "
		if p.IsReady {
			ready = "✓"
		}
		fmt.Printf("  [%s] %s %s\n", ready, p.Icon, p.Name)
	}
}

func (u *termUI) printBoard() {
	coord := u.coordinator()
	if coord == nil {
		return
	}
	store := coord.Store()
	fmt.Printf("\n  %s\n", maskWord(store.CurrentWord(), store.GuessedLetters()))
	if letters := store.GuessedLetters(); len(letters) > 0 {
		fmt.Printf("  Letras jugadas: %s\n", strings.Join(letters, " "))
	}
	if p, ok := store.PlayerByID(store.CurrentPlayerID()); ok {
		fmt.Printf("  Turno de %s (%d intentos)\n", p.Name, p.AttemptsRemaining)
	}
}

// maskWord shows the display form of the word with unguessed letters hidden.
// Accented vowels count as guessed through their base letter.
func maskWord(word string, guessed []string) string {
	set := make(map[string]bool, len(guessed))
	for _, l := range guessed {
		set[l] = true
	}
	var b strings.Builder
	for _, r := range word {
		norm := utils.NormalizeLetter(string(r))
		switch {
		case norm == "":
			b.WriteRune(r)
		case set[norm]:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		b.WriteRune(' ')
	}
	return strings.TrimRight(b.String(), " ")
}

// --- input ---

func (u *termUI) inputLoop(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-u.done:
			return nil
		case line, ok := <-lines:
			if !ok {
				u.coordinator().Leave()
				return nil
			}
			if line == "" {
				continue
			}
			u.handleLine(line)
		}
	}
}

func (u *termUI) handleLine(line string) {
	coord := u.coordinator()
	switch {
	case line == "salir":
		coord.Leave()
		u.finish()
	case line == "listo":
		coord.SetReady(true)
	case line == "empezar":
		if err := coord.StartGame(); err != nil {
			fmt.Fprintln(os.Stderr, "aviso:", err)
		}
	case line == "pista":
		coord.RequestClue()
	case strings.HasPrefix(line, "decir "):
		coord.SendChat(strings.TrimPrefix(line, "decir "))
	default:
		coord.SubmitGuess(line)
	}
}
