package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/bedrock-agent-chat/internal/session"
	"github.com/tjfontaine/bedrock-agent-chat/internal/upload"
)

const helpText = `Commands:
  /attach <path>  attach a file to the following prompts
  /detach         remove the attached file
  /trace          show the last turn's trace
  /citations      show the last turn's references
  /reset          start a new conversation
  /help           show this help
  /quit           exit`

// ErrQuit is returned by Exec for the /quit command.
var ErrQuit = errors.New("quit")

// Chat runs one terminal conversation.
type Chat struct {
	session   *session.Session
	renderer  *Renderer
	extractor *upload.Extractor
	logger    *slog.Logger

	// ReadFile loads /attach paths.
	ReadFile func(path string) ([]byte, error)
}

// NewChat creates a chat over sess.
func NewChat(sess *session.Session, renderer *Renderer, extractor *upload.Extractor, logger *slog.Logger) *Chat {
	return &Chat{
		session:   sess,
		renderer:  renderer,
		extractor: extractor,
		logger:    logger,
		ReadFile:  os.ReadFile,
	}
}

// Run reads lines from in until EOF, /quit or ctx is done.
func (c *Chat) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)

	for {
		fmt.Fprint(out, c.renderer.Prompt())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Exec(ctx, scanner.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			c.renderer.Error(err)
		}
	}
}

// Exec handles one input line: a slash command or a prompt.
func (c *Chat) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.converse(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return ErrQuit
	case "/help":
		c.renderer.Info("%s", helpText)
	case "/attach":
		return c.attach(arg)
	case "/detach":
		c.session.Detach()
		c.renderer.Info("Attachment removed.")
	case "/trace":
		c.renderer.Trace(c.session.Sections())
	case "/citations":
		c.renderer.Citations(c.session.Citations())
	case "/reset":
		if err := c.session.Reset(); err != nil {
			return err
		}
		c.renderer.Info("Started a new conversation.")
	default:
		return fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return nil
}

func (c *Chat) converse(ctx context.Context, prompt string) error {
	result, err := c.session.Converse(ctx, prompt)
	if err != nil {
		return err
	}
	c.renderer.Answer(result.Answer)
	if result.CitationErr != nil {
		c.renderer.Warn("References could not be listed: %v", result.CitationErr)
	}
	return nil
}

func (c *Chat) attach(path string) error {
	if path == "" {
		return errors.New("usage: /attach <path>")
	}
	data, err := c.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	a, err := c.extractor.Extract(name, mime.TypeByExtension(filepath.Ext(name)), data)
	if err != nil {
		return err
	}
	c.session.Attach(a)
	c.logger.Debug("file attached", "session_id", c.session.ID, "name", a.Name, "extracted", a.Extracted)
	if a.Extracted {
		c.renderer.Info("Attached %s (%d bytes).", a.Name, len(a.Content))
	} else {
		c.renderer.Info("Attached %s: %s", a.Name, a.Content)
	}
	return nil
}
