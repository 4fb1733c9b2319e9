// Package pr — вывод и ввод интерактивной утилиты генерации сессии.
// Init поднимает readline с отменяемым stdin и переназначает stdout/stderr на его
// буферы, чтобы логи не ломали строку приглашения. До Init всё пишется в os.Stdout/os.Stderr.
// Мьютекс защищает только смену writer’ов; сами записи сериализует целевой writer.

package pr

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/go-faster/errors"
	"github.com/kr/pretty"
)

var (
	mu     sync.Mutex
	rl     *readline.Instance
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
	// cancelableIn закрывается при shutdown: Readline() получает io.EOF.
	cancelableIn io.Closer
)

// Init настраивает readline. Повторный вызов не предусмотрен.
func Init() error {
	cs := readline.NewCancelableStdin(os.Stdin)
	instance, err := readline.NewEx(&readline.Config{Stdin: cs})
	if err != nil {
		_ = cs.Close()
		return errors.Wrap(err, "init readline")
	}

	mu.Lock()
	defer mu.Unlock()
	rl = instance
	cancelableIn = cs
	out = rl.Stdout()
	errOut = rl.Stderr()
	return nil
}

// Close прерывает ожидание ввода и освобождает терминал.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if cancelableIn != nil {
		_ = cancelableIn.Close()
	}
	if rl != nil {
		_ = rl.Close()
	}
}

// ReadLine печатает приглашение и читает строку без пробелов по краям.
func ReadLine(prompt string) (string, error) {
	mu.Lock()
	instance := rl
	mu.Unlock()
	if instance == nil {
		return "", errors.New("readline is not initialized")
	}
	instance.SetPrompt(prompt)
	line, err := instance.Readline()
	return strings.TrimSpace(line), err
}

// Stdout возвращает текущий writer стандартного вывода.
func Stdout() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

// Stderr возвращает текущий writer ошибок.
func Stderr() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return errOut
}

func Print(a ...any) {
	fmt.Fprint(Stdout(), a...)
}

func Println(a ...any) {
	fmt.Fprintln(Stdout(), a...)
}

func Printf(format string, a ...any) {
	fmt.Fprintf(Stdout(), format, a...)
}

func ErrPrintf(format string, a ...any) {
	fmt.Fprintf(Stderr(), format, a...)
}

// Pf возвращает pretty-строку значения. Аллоцирует, не для горячих путей.
func Pf(v any) string {
	return fmt.Sprintf("%# v\n", pretty.Formatter(v))
}
