package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haivivi/wonderchat/pkg/audio/pcm"
	"github.com/haivivi/wonderchat/pkg/audio/portaudio"
	"github.com/haivivi/wonderchat/pkg/capture"
	"github.com/haivivi/wonderchat/pkg/cli"
	"github.com/haivivi/wonderchat/pkg/geminilive"
	"github.com/haivivi/wonderchat/pkg/metrics"
	"github.com/haivivi/wonderchat/pkg/profile"
	"github.com/haivivi/wonderchat/pkg/storage"
	"github.com/haivivi/wonderchat/pkg/transcript"
	"github.com/haivivi/wonderchat/pkg/turn"
	"github.com/haivivi/wonderchat/pkg/vad"
	"github.com/haivivi/wonderchat/pkg/voicechat"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Start a realtime voice conversation",
	Long: `Start a realtime voice conversation using the default microphone and
speaker. The microphone opens as soon as the session is ready.

While running, type a message and press enter to send it as text, or use:
  /mic              toggle the microphone
  /vad on|off       toggle voice activity detection
  /threshold <n>    set the speech level threshold (0..1)
  /reconnect        open a new session
  /quit             end the conversation`,
	RunE: runLive,
}

// liveOptions are the flag overrides of the live command.
type liveOptions struct {
	ProfileID    string
	Voice        string
	Model        string
	NoVAD        bool
	NoAutoListen bool
	MetricsAddr  string
	TUI          bool
}

func runLive(cmd *cobra.Command, args []string) error {
	var opts liveOptions
	f := cmd.Flags()
	opts.ProfileID, _ = f.GetString("profile")
	opts.Voice, _ = f.GetString("voice")
	opts.Model, _ = f.GetString("model")
	opts.NoVAD, _ = f.GetBool("no-vad")
	opts.NoAutoListen, _ = f.GetBool("no-auto-listen")
	opts.MetricsAddr, _ = f.GetString("metrics-addr")
	opts.TUI, _ = f.GetBool("tui")

	c, err := getContext()
	if err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("context %q has no api key", c.Name)
	}
	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var child *profile.Profile
	if opts.ProfileID != "" {
		if child, err = profile.NewStore(db).Get(ctx, opts.ProfileID); err != nil {
			return err
		}
	}
	rec := transcript.NewRecorder(db)
	sess, err := rec.NewSession(ctx, opts.ProfileID, "live")
	if err != nil {
		return err
	}
	archive, err := newArchive(c)
	if err != nil {
		return err
	}

	view := newLiveView(os.Stdout, opts.TUI)
	logger := slog.Default()
	if opts.TUI {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(view.logs, &slog.HandlerOptions{Level: level}))
		go view.follow(ctx.Done())
	}

	var m *metrics.Metrics
	if opts.MetricsAddr != "" {
		m = metrics.New(prometheus.NewRegistry())
		srv := serveMetrics(opts.MetricsAddr, m, logger)
		defer srv.Close()
	}

	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	speaker, err := portaudio.NewOutputStream(pcm.L16Mono24K, 100*time.Millisecond)
	if err != nil {
		return err
	}
	defer speaker.Close()

	clientOpts := []geminilive.Option{geminilive.WithLogger(logger)}
	if c.LiveURL != "" {
		clientOpts = append(clientOpts, geminilive.WithURL(c.LiveURL))
	}

	record := func(role, content string) {
		if _, err := rec.Append(context.Background(), sess.ID, role, transcript.KindText, content); err != nil {
			logger.Warn("live: record transcript", "error", err)
		}
	}

	orch, err := voicechat.New(voicechat.Config{
		Client: geminilive.NewClient(c.APIKey, clientOpts...),
		Setup:  liveSetup(c, child, opts),
		Capture: capture.Config{
			Open: func(format pcm.Format, chunk time.Duration) (capture.Microphone, error) {
				return portaudio.NewInputStream(format, chunk)
			},
		},
		VAD:        liveVAD(c, opts),
		Speaker:    speaker,
		AutoListen: !opts.NoAutoListen,
		Handler: voicechat.Handler{
			OnStatus: view.setStatus,
			OnTranscript: func(kind turn.TranscriptKind, text string) {
				switch kind {
				case turn.Interim:
					view.setInterim(text)
				case turn.Final:
					view.addUser(text)
					record(transcript.RoleUser, text)
				}
			},
			OnTurn: func(t *turn.Turn) {
				if text := t.Text(); text != "" {
					view.addAssistant(text)
					record(transcript.RoleAssistant, text)
				}
			},
			OnError: view.addError,
			OnLogExport: func(log string) {
				exportDebugLog(archive, sess.ID, log, logger)
			},
		},
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	if child != nil {
		view.addLine(profile.Greeting(child))
	}
	if err := orch.Connect(ctx); err != nil {
		return err
	}

	sent := func(text string) {
		view.addUser(text)
		record(transcript.RoleUser, text)
	}
	lines := make(chan string)
	go readLines(os.Stdin, lines)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := liveCommand(ctx, orch, view, line, sent); quit {
				return nil
			}
		}
	}
}

// liveCommand handles one line typed during a live session and reports
// whether the session should end.
func liveCommand(ctx context.Context, orch *voicechat.Orchestrator, view *liveView, line string, sent func(string)) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if err := orch.SendText(line); err == nil {
			sent(line)
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/mic":
		if orch.IsListening() {
			orch.StopListening()
		} else if err := orch.StartListening(ctx); err != nil {
			view.addError(err)
		}
	case "/vad":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			view.addError(errors.New("usage: /vad on|off"))
			return false
		}
		enabled := fields[1] == "on"
		if err := orch.UpdateVADSettings(vad.Patch{Enabled: &enabled}); err != nil {
			view.addError(err)
		}
	case "/threshold":
		if len(fields) != 2 {
			view.addError(errors.New("usage: /threshold <0..1>"))
			return false
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err == nil {
			err = orch.UpdateVADSettings(vad.Patch{SilenceThreshold: &v})
		}
		if err != nil {
			view.addError(err)
		}
	case "/reconnect":
		if err := orch.Connect(ctx); err != nil {
			view.addError(err)
		}
	default:
		view.addError(fmt.Errorf("unknown command %s", fields[0]))
	}
	return false
}

// liveSetup derives the session settings from the context, the profile and
// the flags, in increasing priority.
func liveSetup(c *cli.Context, child *profile.Profile, opts liveOptions) geminilive.Setup {
	setup := geminilive.DefaultSetup()
	setup.SystemInstruction = profile.LiveInstruction(child)
	for _, v := range []string{c.Model, opts.Model} {
		if v != "" {
			setup.Model = v
		}
	}
	for _, v := range []string{c.Voice, opts.Voice} {
		if v != "" {
			setup.Voice = v
		}
	}
	if c.Language != "" {
		setup.LanguageCode = c.Language
	}
	return setup
}

func liveVAD(c *cli.Context, opts liveOptions) vad.Config {
	cfg := vad.DefaultConfig()
	if c.VAD != nil {
		cfg = c.VAD.Apply(cfg)
	}
	if opts.NoVAD {
		cfg.Enabled = false
	}
	return cfg
}

func exportDebugLog(archive *storage.Archive, sessionID, log string, logger *slog.Logger) {
	if archive == nil || log == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p, err := archive.SaveDebugLog(ctx, sessionID, log)
	if err != nil {
		logger.Warn("live: export debug log", "error", err)
		return
	}
	logger.Info("live: debug log exported", "path", p)
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("live: metrics server", "addr", addr, "error", err)
		}
	}()
	logger.Info("live: serving metrics", "addr", addr)
	return srv
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func init() {
	f := liveCmd.Flags()
	f.String("profile", "", "profile to talk to")
	f.String("voice", "", "prebuilt voice name")
	f.String("model", "", "Live model")
	f.Bool("no-vad", false, "stream the microphone continuously")
	f.Bool("no-auto-listen", false, "wait for /mic before opening the microphone")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.Bool("tui", false, "full-screen view with transcript and log panes")
}
