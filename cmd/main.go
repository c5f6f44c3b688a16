package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ergochat/readline"

	mangashark "github.com/franciscasao/manga-shark-sub000"
	"github.com/franciscasao/manga-shark-sub000/utils"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("get"),
	readline.PcItem("set"),
	readline.PcItem("complete"),
	readline.PcItem("status"),
	readline.PcItem("clear"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// the inspector never talks to the server
type noRemote struct{}

func (noRemote) PushProgress(ctx context.Context, unitKey string, lastIndex int, complete bool) error {
	return nil
}

func showProgress(rec *mangashark.ProgressRecord) {
	if rec == nil {
		fmt.Println("no record")
		return
	}
	fmt.Printf("%s\tseries=%s fraction=%.3f index=%d complete=%v updated=%s\n",
		rec.UnitKey, rec.SeriesKey, rec.Fraction, rec.LastIndex, rec.Complete,
		rec.UpdatedAt.Format("2006-01-02 15:04:05.000"))
}

func usage() {
	fmt.Println("get <unit>                 show the durable record")
	fmt.Println("set <unit> <series> <frac> queue a position update")
	fmt.Println("complete <unit> <series>   mark read immediately")
	fmt.Println("status <unit>...           read flags for units")
	fmt.Println("clear                      drop all progress records")
	fmt.Println("exit")
}

func main() {
	opts := mangashark.Options{}
	if len(os.Args) > 1 {
		opts.StoreDir = os.Args[1]
	}
	opts.SetDefaults()

	log := utils.NewDefaultLogger(slog.LevelWarn)
	store, err := mangashark.OpenPebbleStore(opts.StoreDir)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	engine := mangashark.NewEngine(store, noRemote{}, nil, log, opts)

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     "/tmp/mangashark-readline.tmp",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	ctx := context.Background()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		args := strings.Split(line, " ")
		cmd := args[0]
		args = args[1:]
		err = nil
		switch cmd {
		case "help":
			usage()
		case "get":
			for _, arg := range args {
				var rec *mangashark.ProgressRecord
				rec, err = engine.GetProgress(ctx, arg)
				if err != nil {
					break
				}
				showProgress(rec)
			}
		case "set":
			if len(args) != 3 {
				usage()
				break
			}
			var frac float64
			frac, err = strconv.ParseFloat(args[2], 64)
			if err != nil {
				break
			}
			err = engine.UpdateProgress(args[0], args[1], frac, 0, false)
			if err == nil {
				engine.Flush(ctx)
			}
		case "complete":
			if len(args) != 2 {
				usage()
				break
			}
			err = engine.MarkUnitCompleteImmediate(ctx, args[0], args[1])
		case "status":
			var statuses map[string]bool
			statuses, err = engine.GetReadStatus(ctx, args)
			if err != nil {
				break
			}
			for _, arg := range args {
				fmt.Printf("%s\tread=%v\n", arg, statuses[arg])
			}
		case "clear":
			err = engine.ClearHistory(ctx)
		case "exit", "quit":
			ex := 0
			_ = engine.Close(ctx)
			if err = store.Close(); err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err.Error())
				ex = -1
			}
			os.Exit(ex)
		default:
			_, _ = fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
		}

		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error executing %s: %s\n", cmd, err.Error())
		}
	}

	_ = engine.Close(ctx)
	_ = store.Close()
}
