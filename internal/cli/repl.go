// Package cli implements the interactive terminal chat client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"ai-chat/internal/chat"
	"ai-chat/internal/domain"
	"ai-chat/internal/settings"
)

const helpText = `Commands:
  /key <api-key>          verify and save an OpenAI API key
  /model [name]           show or change the model
  /user <field> <value>   set username, email or theme (light|dark|system)
  /settings               show current settings
  /clear                  clear the conversation
  /reset                  delete all saved settings
  /help                   show this help
  /quit                   exit`

// LineReader reads one line of input after showing a prompt.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// REPL drives a chat session from line input.
type REPL struct {
	session  *chat.Session
	settings *settings.Manager
	verifier settings.Verifier
	out      io.Writer
}

func NewREPL(session *chat.Session, mgr *settings.Manager, verifier settings.Verifier, out io.Writer) (*REPL, error) {
	if session == nil {
		return nil, errors.New("cli: session must not be nil")
	}
	if mgr == nil {
		return nil, errors.New("cli: settings manager must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("cli: verifier must not be nil")
	}
	if out == nil {
		return nil, errors.New("cli: output must not be nil")
	}
	return &REPL{session: session, settings: mgr, verifier: verifier, out: out}, nil
}

// Run prints the transcript and reads input until EOF, an aborted prompt or
// /quit.
func (r *REPL) Run(ctx context.Context, in LineReader) error {
	for _, m := range r.session.Messages() {
		r.render(m)
	}

	for {
		line, err := in.Prompt("> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("cli: read input: %w", err)
		}

		keepGoing, err := r.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if !keepGoing {
			return nil
		}
	}
}

// Execute handles one line of input. It returns false when the user asked to
// quit.
func (r *REPL) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}
	if !strings.HasPrefix(line, "/") {
		return true, r.send(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return false, nil
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/key":
		return true, r.setKey(ctx, arg)
	case "/model":
		return true, r.setModel(ctx, arg)
	case "/user":
		return true, r.setUser(ctx, arg)
	case "/settings":
		return true, r.showSettings(ctx)
	case "/clear":
		r.session.Clear()
		fmt.Fprintln(r.out, "Conversation cleared.")
	case "/reset":
		return true, r.reset(ctx)
	default:
		return true, fmt.Errorf("unknown command %q, try /help", cmd)
	}
	return true, nil
}

func (r *REPL) send(ctx context.Context, content string) error {
	msg, err := r.session.Send(ctx, content)
	switch {
	case errors.Is(err, chat.ErrNoActiveKey):
		return errors.New("please add your API key with /key to start chatting")
	case errors.Is(err, chat.ErrEmptyMessage):
		return nil
	case err != nil:
		return errors.New(r.session.LastError())
	}
	r.render(msg)
	return nil
}

func (r *REPL) setKey(ctx context.Context, key string) error {
	res, err := r.settings.SetAPIKey(ctx, key, r.verifier)
	if err != nil {
		return err
	}
	if !res.IsValid {
		return errors.New(res.Message)
	}
	r.session.SetAPIKey(key)
	fmt.Fprintln(r.out, "API key verified and saved.")
	return nil
}

func (r *REPL) setModel(ctx context.Context, model string) error {
	if model == "" {
		fmt.Fprintf(r.out, "Model: %s\n", r.session.Model())
		return nil
	}
	if err := r.settings.SetModel(ctx, model); err != nil {
		return err
	}
	r.session.SetModel(model)
	fmt.Fprintf(r.out, "Model set to %s.\n", model)
	return nil
}

func (r *REPL) setUser(ctx context.Context, arg string) error {
	field, value, ok := strings.Cut(arg, " ")
	if !ok {
		return errors.New("usage: /user <username|email|theme> <value>")
	}
	current, err := r.settings.Load(ctx)
	if err != nil {
		return err
	}

	u := current.User
	value = strings.TrimSpace(value)
	switch field {
	case "username":
		u.Username = value
	case "email":
		u.Email = value
	case "theme":
		u.Theme = settings.Theme(value)
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	if err := r.settings.SaveUser(ctx, u); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Settings saved.")
	return nil
}

func (r *REPL) showSettings(ctx context.Context) error {
	s, err := r.settings.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Username: %s\nEmail: %s\nTheme: %s\nModel: %s\nAPI key: %s\n",
		s.User.Username, s.User.Email, s.User.Theme, r.session.Model(), keyStatus(s.APIKey, r.session.HasServerKey()))
	return nil
}

func (r *REPL) reset(ctx context.Context) error {
	s, err := r.settings.Clear(ctx, r.session.HasServerKey())
	if err != nil {
		return err
	}
	r.session.SetModel(s.Model)
	r.session.SetAPIKey("")
	fmt.Fprintln(r.out, "All settings cleared.")
	return nil
}

func keyStatus(userKey string, serverKey bool) string {
	switch {
	case userKey != "":
		return "saved"
	case serverKey:
		return "provided by server"
	default:
		return "not set"
	}
}

func (r *REPL) render(m domain.Message) {
	fmt.Fprintln(r.out, FormatMessage(m))
}

// FormatMessage renders one transcript entry as a single block of text.
func FormatMessage(m domain.Message) string {
	label := m.Role
	if m.Model != "" {
		label += " (" + m.Model + ")"
	}
	return label + ": " + m.Content
}
