package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/sheetchat/internal/config"
	"github.com/KaramelBytes/sheetchat/internal/render"
	"github.com/KaramelBytes/sheetchat/internal/session"
	"github.com/KaramelBytes/sheetchat/internal/utils"
)

var (
	sheetName  string
	sheetIndex int
)

var chatCmd = &cobra.Command{
	Use:   "chat <file>",
	Short: "Start an interactive chat about a CSV, TSV or XLSX file",
	Example: `  sheetchat chat sales.csv
  sheetchat chat --provider ollama --model llama3.1:8b-instruct loans.xlsx --sheet 2024`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newChatSession(cfg)
		if err != nil {
			return err
		}
		if err := loadDataset(sess, args[0]); err != nil {
			return err
		}

		historyFile := ""
		if dir, err := cfgpkg.Dir(); err == nil {
			if err := utils.EnsureDir(dir); err == nil {
				historyFile = filepath.Join(dir, "history")
			}
		}
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "sheetchat> ",
			HistoryFile:     historyFile,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("init prompt: %w", err)
		}
		defer rl.Close()

		r := &repl{sess: sess, out: cmd.OutOrStdout(), exportDir: exportDir(cfg)}
		return r.run(cmd.Context(), rl)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&sheetName, "sheet", "", "XLSX sheet name")
	chatCmd.Flags().IntVar(&sheetIndex, "sheet-index", 0, "XLSX sheet number, 1-based (used when --sheet is empty)")
}

func loadDataset(sess *session.Session, path string) error {
	if err := sess.LoadFile(path, ingestOptions(sheetName, sheetIndex)); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func exportDir(cfg *cfgpkg.Global) string {
	if cfg != nil && cfg.ExportDir != "" {
		return cfg.ExportDir
	}
	return "."
}

var errQuit = errors.New("quit")

type lineReader interface {
	Readline() (string, error)
}

// repl drives one session from line input.
type repl struct {
	sess      *session.Session
	out       io.Writer
	exportDir string
}

func (r *repl) run(ctx context.Context, in lineReader) error {
	if _, name := r.sess.Dataset(); name != "" {
		fmt.Fprintf(r.out, "✓ Loaded %s. Ask a question, or type /help.\n", name)
	} else {
		fmt.Fprintln(r.out, "No file loaded. Use /load PATH, or type /help.")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := in.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			err = r.command(ctx, line)
		} else {
			err = r.ask(ctx, line)
		}
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(r.out, "✗ Error:", err)
		}
	}
}

func (r *repl) ask(ctx context.Context, q string) error {
	res, err := r.sess.ProcessQuery(ctx, q)
	if err != nil {
		return err
	}
	return printTurn(r.out, res)
}

func (r *repl) command(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch parts[0] {
	case "/quit", "/exit", "/q":
		return errQuit

	case "/help", "/h":
		r.printHelp()

	case "/examples":
		for i, q := range r.sess.Examples() {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, q)
		}

	case "/example":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("usage: /example N")
		}
		q, err := r.sess.SuggestExample(n - 1)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "> %s\n", q)
		res, err := r.sess.ProcessPending(ctx)
		if err != nil {
			return err
		}
		return printTurn(r.out, res)

	case "/history":
		for _, t := range r.sess.History() {
			fmt.Fprintf(r.out, "[%s] %s: %s\n", t.At.Format("15:04:05"), t.Sender, t.Text)
		}

	case "/schema":
		df, name := r.sess.Dataset()
		if df == nil {
			return session.ErrNoDataset
		}
		return writeSchema(r.out, name, df)

	case "/load":
		if arg == "" {
			return fmt.Errorf("usage: /load PATH")
		}
		if err := loadDataset(r.sess, arg); err != nil {
			return err
		}
		_, name := r.sess.Dataset()
		fmt.Fprintf(r.out, "✓ Loaded %s\n", name)

	case "/reset":
		if err := r.sess.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "✓ Session cleared. Use /load PATH to load a file.")

	case "/export":
		path := arg
		if path == "" {
			path = filepath.Join(r.exportDir, render.ExportName)
		}
		b, err := r.sess.ExportCSV()
		if err != nil {
			return err
		}
		if err := utils.SafeWriteFile(path, b); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "✓ Saved %s\n", path)

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (try /help)\n", parts[0])
	}
	return nil
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  /examples       list example questions")
	fmt.Fprintln(r.out, "  /example N      ask example question N")
	fmt.Fprintln(r.out, "  /history        show the conversation")
	fmt.Fprintln(r.out, "  /schema         describe the loaded table")
	fmt.Fprintln(r.out, "  /load PATH      load another file")
	fmt.Fprintln(r.out, "  /export [PATH]  save the last table as CSV")
	fmt.Fprintln(r.out, "  /reset          clear the table and the conversation")
	fmt.Fprintln(r.out, "  /quit           leave")
}
