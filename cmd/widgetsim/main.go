// Command widgetsim drives the headless widget runtime from a terminal. It
// stands in for the browser surface: page navigation, scrolling, pointer
// exits, the lead form and the chat panel all become REPL commands, while
// the session manager and popup orchestrator run exactly as they would
// behind the real UI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/innovar-labs/wavebox-widget/cmd/mainconfig"
	"github.com/innovar-labs/wavebox-widget/internal/chat"
	appconfig "github.com/innovar-labs/wavebox-widget/internal/config"
	"github.com/innovar-labs/wavebox-widget/internal/popup"
	"github.com/innovar-labs/wavebox-widget/internal/wavebox"
	"github.com/innovar-labs/wavebox-widget/pkg/logging"
)

const usage = `commands:
  goto <path> [mobile]          navigate to a page, refetching popups
  scroll <y> <viewport> <doc>   feed a scroll sample (pixels)
  exit                          pointer leaves the viewport top
  closepopup                    close the visible popup
  open | close                  open / close the chat panel
  submit <name>;<email>;<phone> submit the lead form
  send <text...>                send a chat message
  msgs                          print the local message list
  state                         print runtime state
  quit
`

type stdoutNotifier struct{}

func (stdoutNotifier) NotifyNewMessage() { fmt.Println("* ding: new message") }

type stdoutReloader struct{}

func (stdoutReloader) Reload() { fmt.Println("* session lost, page reload simulated") }

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.OrganizationSlug == "" {
		fmt.Fprintln(os.Stderr, "WAVEBOX_SLUG is required")
		os.Exit(1)
	}

	markers, cleanup, err := mainconfig.NewMarkerStore(cfg, logger)
	if err != nil {
		logger.Error("marker store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	client := wavebox.NewClient(wavebox.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})

	manager := chat.NewSessionManager(client, markers, cfg.OrganizationSlug, chat.Options{
		Logger:        logger,
		Reloader:      stdoutReloader{},
		Notifier:      stdoutNotifier{},
		PollInterval:  cfg.PollInterval,
		PulseDuration: cfg.PulseDuration,
	})
	defer manager.Close()

	orchestrator := popup.NewOrchestrator(client, markers, popup.OrchestratorOptions{
		Logger: logger,
		OnShow: func(p wavebox.Popup, plan popup.RenderPlan) {
			fmt.Printf("* popup %s shown (%s at %s)\n", p.ID, plan.Layout, plan.Position)
		},
		OnClose: func(p wavebox.Popup) {
			fmt.Printf("* popup %s closed\n", p.ID)
		},
	})
	defer orchestrator.Teardown()

	ctx := context.Background()
	fmt.Printf("wavebox widget simulator, slug=%s backend=%s\n", cfg.OrganizationSlug, cfg.APIBaseURL)
	fmt.Printf("restored state: %s\n", manager.Start(ctx))
	fmt.Print(usage)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "goto":
			if len(args) < 1 {
				fmt.Println("usage: goto <path> [mobile]")
				continue
			}
			mobile := len(args) > 1 && args[1] == "mobile"
			if err := orchestrator.Navigate(ctx, args[0], mobile); err != nil {
				fmt.Println("navigation failed:", err)
			}
		case "scroll":
			if len(args) != 3 {
				fmt.Println("usage: scroll <y> <viewport> <doc>")
				continue
			}
			y, err1 := strconv.ParseFloat(args[0], 64)
			vp, err2 := strconv.ParseFloat(args[1], 64)
			doc, err3 := strconv.ParseFloat(args[2], 64)
			if err1 != nil || err2 != nil || err3 != nil {
				fmt.Println("scroll arguments must be numbers")
				continue
			}
			orchestrator.OnScroll(ctx, y, vp, doc)
		case "exit":
			orchestrator.OnPointerLeave(ctx, 0)
		case "closepopup":
			orchestrator.CloseCurrent(ctx)
		case "open":
			fmt.Println("panel open, state:", manager.OpenPanel())
		case "close":
			manager.ClosePanel()
		case "submit":
			parts := strings.SplitN(strings.Join(args, " "), ";", 3)
			if len(parts) != 3 {
				fmt.Println("usage: submit <name>;<email>;<phone>")
				continue
			}
			err := manager.SubmitLead(ctx, wavebox.Lead{
				Name:        strings.TrimSpace(parts[0]),
				Email:       strings.TrimSpace(parts[1]),
				PhoneNumber: strings.TrimSpace(parts[2]),
			})
			if err != nil {
				fmt.Println("submit failed:", err)
				continue
			}
			fmt.Println("chat session active")
		case "send":
			if len(args) == 0 {
				fmt.Println("usage: send <text>")
				continue
			}
			if err := manager.Send(ctx, strings.Join(args, " ")); err != nil {
				fmt.Println("send failed:", err)
			}
		case "msgs":
			for _, m := range manager.Messages() {
				fmt.Printf("  [%s] %s\n", m.Sender, m.Text)
			}
		case "state":
			fmt.Println("chat:", manager.State())
			if state, ok := orchestrator.Current(); ok {
				fmt.Println("popup:", state)
			} else {
				fmt.Println("popup: none")
			}
			if manager.Pulsing() {
				fmt.Println("pulse: on")
			}
		case "quit", "exit!":
			return
		default:
			fmt.Print(usage)
		}
	}
}
