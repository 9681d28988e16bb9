// Package shell implements the interactive terminal front end: a numbered
// menu that refreshes the document memory or enters chat, and a chat loop
// that answers each question from the retrieved passages.
//
// The shell has two states. Idle shows the menu; InChat reads questions
// until the user types "sair" or "exit". End of input ends the shell from
// either state.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/docchat/internal/ingestion"
	"github.com/54b3r/docchat/internal/metrics"
	"github.com/54b3r/docchat/internal/rag"
)

// Menu options.
const (
	optionRefresh = "1"
	optionChat    = "2"
	optionExit    = "3"
)

// exitKeywords end a chat session (compared trimmed and case-insensitively).
var exitKeywords = map[string]bool{"sair": true, "exit": true}

// Ingester runs one ingestion pass over a directory.
type Ingester interface {
	Run(ctx context.Context, dir string, progress func(msg string)) (ingestion.Result, error)
}

// Retriever builds the context string for a question.
type Retriever interface {
	Context(ctx context.Context, query string, topK int) (string, []rag.Document, error)
}

// Answerer streams a grounded answer to w and returns the full text.
type Answerer interface {
	Answer(ctx context.Context, question, contextText string, w io.Writer) (string, error)
}

// Config holds the dependencies required to construct a Shell.
type Config struct {
	// Ingester refreshes the collection from DocsDir.
	Ingester Ingester

	// Retriever supplies the context for each question.
	Retriever Retriever

	// Answerer generates the streamed answer.
	Answerer Answerer

	// DocsDir is the directory scanned on refresh.
	DocsDir string

	// TopK is the number of passages retrieved per question. Zero uses the
	// retriever's default.
	TopK int

	// In is the source of menu choices and questions.
	In io.Reader

	// Out receives prompts, progress and answers.
	Out io.Writer

	// Metrics records chat turn outcomes. Defaults to metrics.Discard().
	Metrics *metrics.Metrics

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Shell is the interactive menu and chat loop. It is not safe for
// concurrent use.
type Shell struct {
	ingester  Ingester
	retriever Retriever
	answerer  Answerer
	docsDir   string
	topK      int

	out     io.Writer
	styles  styles
	metrics *metrics.Metrics
	log     *slog.Logger

	// lines carries input lines from a background reader so a pending read
	// can be abandoned on cancellation. It is closed at end of input, after
	// scanErr is set.
	lines   chan string
	scanErr error

	// closed is set once In reports end of input.
	closed bool
}

// New constructs a Shell from the provided Config.
func New(cfg *Config) (*Shell, error) {
	if cfg.Ingester == nil {
		return nil, fmt.Errorf("shell: Ingester must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("shell: Retriever must not be nil")
	}
	if cfg.Answerer == nil {
		return nil, fmt.Errorf("shell: Answerer must not be nil")
	}
	if cfg.In == nil || cfg.Out == nil {
		return nil, fmt.Errorf("shell: In and Out must not be nil")
	}

	docsDir := cfg.DocsDir
	if docsDir == "" {
		docsDir = ingestion.DefaultDir
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Discard()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	scanner := bufio.NewScanner(cfg.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	s := &Shell{
		ingester:  cfg.Ingester,
		retriever: cfg.Retriever,
		answerer:  cfg.Answerer,
		docsDir:   docsDir,
		topK:      cfg.TopK,
		out:       cfg.Out,
		styles:    newStyles(cfg.Out),
		metrics:   m,
		log:       log,
		lines:     make(chan string),
	}
	go s.scan(scanner)
	return s, nil
}

// scan feeds input lines to s.lines until end of input.
func (s *Shell) scan(sc *bufio.Scanner) {
	defer close(s.lines)
	for sc.Scan() {
		s.lines <- sc.Text()
	}
	s.scanErr = sc.Err()
}

// Run shows the menu until the user picks exit or input ends. A failed
// refresh is reported and the menu is shown again. Only context
// cancellation and input failures end Run with an error.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.printMenu()

		choice, ok := s.readLine(ctx, s.styles.Prompt.Render("Escolha:")+" ")
		if !ok {
			s.println("")
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.inputErr()
		}

		switch choice {
		case optionRefresh:
			if err := s.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.println(s.styles.Error.Render("Erro ao atualizar a memória: " + err.Error()))
			}
		case optionChat:
			if err := s.Chat(ctx); err != nil {
				return err
			}
			if s.closed {
				return s.inputErr()
			}
		case optionExit:
			return nil
		}
	}
}

// Refresh runs one ingestion pass over the documents directory and prints
// progress, including unreadable files, in file order plus a summary.
func (s *Shell) Refresh(ctx context.Context) error {
	s.println("")
	s.println(s.styles.Title.Render(fmt.Sprintf("--- Processando arquivos em '%s' ---", s.docsDir)))

	res, err := s.ingester.Run(ctx, s.docsDir, func(msg string) {
		s.println(s.styles.Muted.Render(msg))
	})
	if err != nil {
		return err
	}
	if res.Created {
		s.println("Pasta criada. Adicione seus arquivos e tente novamente.")
		return nil
	}

	s.println(s.styles.Muted.Render(fmt.Sprintf("%d memorizados, %d ignorados, %d com erro",
		len(res.Ingested), len(res.Skipped), len(res.Failed))))
	s.println(s.styles.Success.Render("--- Ingestão concluída com sucesso! ---"))
	return nil
}

// Chat reads questions until an exit keyword or end of input and answers
// each one. A failed turn is reported and the loop continues. It returns an
// error only when ctx is cancelled.
func (s *Shell) Chat(ctx context.Context) error {
	s.println("")
	s.println(s.styles.Title.Render("--- Chat Iniciado (Digite 'sair' para encerrar) ---"))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.println("")
		question, ok := s.readLine(ctx, s.styles.Prompt.Render("Você:")+" ")
		if !ok {
			s.println("")
			return ctx.Err()
		}
		if question == "" {
			continue
		}
		if exitKeywords[strings.ToLower(question)] {
			return nil
		}

		if err := s.turn(ctx, question); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("chat turn failed", slog.String("error", err.Error()))
			s.println("")
			s.println(s.styles.Error.Render("Erro: " + err.Error()))
		}
	}
}

// turn answers a single question: retrieve, then stream the answer.
func (s *Shell) turn(ctx context.Context, question string) error {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		s.metrics.ChatTurnsTotal.WithLabelValues(outcome).Inc()
		s.metrics.ChatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	contextText, docs, err := s.retriever.Context(ctx, question, s.topK)
	if err != nil {
		return err
	}
	s.metrics.RetrievedDocuments.Observe(float64(len(docs)))
	s.log.Debug("retrieved context",
		slog.Int("documents", len(docs)),
		slog.Int("context_chars", len(contextText)),
	)

	fmt.Fprint(s.out, s.styles.Assistant.Render("🤖 IA:")+" ")
	if _, err := s.answerer.Answer(ctx, question, contextText, s.out); err != nil {
		return err
	}
	s.println("")

	if contextText == "" {
		outcome = metrics.OutcomeFallback
	} else {
		outcome = metrics.OutcomeOK
	}
	return nil
}

// printMenu writes the numbered menu.
func (s *Shell) printMenu() {
	s.println("")
	s.println(s.styles.Option.Render(optionRefresh + ". Atualizar Memória (Ler Arquivos)"))
	s.println(s.styles.Option.Render(optionChat + ". Conversar"))
	s.println(s.styles.Option.Render(optionExit + ". Sair"))
}

// readLine prints prompt and returns the next trimmed input line. It reports
// false once input has ended or ctx is cancelled while waiting.
func (s *Shell) readLine(ctx context.Context, prompt string) (string, bool) {
	if s.closed {
		return "", false
	}
	fmt.Fprint(s.out, prompt)
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-s.lines:
		if !ok {
			s.closed = true
			return "", false
		}
		return strings.TrimSpace(line), true
	}
}

// inputErr returns the read failure that ended input, or nil for a clean
// end of input. Only valid once readLine has reported end of input.
func (s *Shell) inputErr() error {
	if err := s.scanErr; err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("shell: read input: %w", err)
	}
	return nil
}

func (s *Shell) println(line string) {
	fmt.Fprintln(s.out, line)
}
