package runtime

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harunnryd/renga/internal/agent"
	"github.com/harunnryd/renga/internal/tool/formatter"
	"github.com/harunnryd/renga/internal/transcript"
)

type REPL struct {
	components *Components
	reader     *bufio.Reader
}

func NewREPL(components *Components) *REPL {
	return &REPL{
		components: components,
		reader:     bufio.NewReader(os.Stdin),
	}
}

func (r *REPL) Start() error {
	fmt.Printf("Renga Interactive Session: %s\n", r.components.Conversation.ID())
	fmt.Println("Type '/exit' to quit, '/reset' to clear the conversation, '/tools' to list tools, '/save [path]' to export a transcript.")

	for {
		select {
		case <-r.components.Ctx.Done():
			return nil
		default:
			if err := r.readLine(); err != nil {
				if err == io.EOF {
					return nil
				}
				continue
			}
		}
	}
}

func (r *REPL) readLine() error {
	fmt.Print("> ")
	text, err := r.reader.ReadString('\n')
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		return r.handleCommand(text)
	}

	result, err := r.components.Agent.Process(r.components.Ctx, text)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil
	}

	fmt.Println(result.Text)
	if result.Status == agent.StatusIterationLimit {
		fmt.Printf("(stopped after %d rounds - use a follow-up message to continue)\n", result.Rounds)
	}
	return nil
}

func (r *REPL) handleCommand(text string) error {
	cmd, rest, _ := strings.Cut(text, " ")

	switch cmd {
	case "/exit":
		return io.EOF
	case "/reset":
		r.components.Conversation.Clear()
		fmt.Println("Conversation cleared.")
	case "/tools":
		r.printTools()
	case "/save":
		r.saveTranscript(strings.TrimSpace(rest))
	default:
		fmt.Printf("Unknown command %q. Available: /exit, /reset, /tools, /save [path]\n", cmd)
	}
	return nil
}

func (r *REPL) printTools() {
	f := formatter.NewTableFormatter()
	out, err := f.FormatDescriptors(r.components.Registry.List())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(out)
}

func (r *REPL) saveTranscript(path string) {
	log := r.components.Conversation
	if log.Len() == 0 {
		fmt.Println("Nothing to save yet.")
		return
	}

	if path == "" {
		path = filepath.Join(r.components.Cfg.Transcript.Dir, transcript.DefaultFilename(log.ID(), time.Now()))
	}

	written, err := transcript.Export(path, log.ID(), log.Snapshot())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Transcript saved to %s\n", written)
}
