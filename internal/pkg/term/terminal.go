// Package term содержит интерактивный ввод и сведения о терминале
// для утилит командной строки.
package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// Terminal читает ответы пользователя и сообщает размеры экрана.
type Terminal struct {
	in      *bufio.Reader
	out     io.Writer
	stdinfd int
	outfd   int
	isTerm  func(fd int) bool
}

// NewTerminal создает терминал поверх stdin и stdout.
func NewTerminal() *Terminal {
	return &Terminal{
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		stdinfd: int(os.Stdin.Fd()),
		outfd:   int(os.Stdout.Fd()),
		isTerm:  term.IsTerminal,
	}
}

// NewTerminalFrom создает терминал поверх произвольных потоков.
// Такие потоки не считаются интерактивными.
func NewTerminalFrom(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:      bufio.NewReader(in),
		out:     out,
		stdinfd: -1,
		outfd:   -1,
		isTerm:  func(int) bool { return false },
	}
}

// Interactive сообщает, подключен ли ввод к терминалу.
func (t *Terminal) Interactive() bool {
	return t.isTerm(t.stdinfd)
}

// Width возвращает ширину вывода в колонках или def, если она неизвестна.
func (t *Terminal) Width(def int) int {
	if !t.isTerm(t.outfd) {
		return def
	}
	w, _, err := term.GetSize(t.outfd)
	if err != nil || w <= 0 {
		return def
	}
	return w
}

// ReadSecret запрашивает значение без эха, если ввод интерактивный.
func (t *Terminal) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	if t.Interactive() {
		b, err := term.ReadPassword(t.stdinfd)
		fmt.Fprintln(t.out)
		if err != nil {
			return "", xerrors.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return t.readLine()
}

// Confirm задает вопрос да/нет. Пустой ответ означает "нет".
func (t *Terminal) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(t.out, "%s [y/N]: ", prompt)
	answer, err := t.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes", "д", "да":
		return true, nil
	}
	return false, nil
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(xerrors.Is(err, io.EOF) && line != "") {
		return "", xerrors.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
