// deskwatch tails a subject's unread notification events from a running
// helpdesk server. It drives the polling client the same way a browser tab
// would: regular polls with exponential backoff on failure and a tri-state
// connection indicator.
//
// Usage:
//
//	deskwatch --server http://localhost:8080 --subject agent-42 --role agent
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/poll"
)

type unreadResponse struct {
	Data  []domain.Event `json:"data"`
	Total int            `json:"total"`
}

// watcher fetches unread events and prints the ones it has not shown yet.
// since tracks the newest created_at already printed, so each poll asks the
// server only for what is new.
type watcher struct {
	client  *http.Client
	baseURL string
	subject string
	role    string
	since   int64
}

func (w *watcher) poll(ctx context.Context) error {
	q := url.Values{}
	q.Set("subject_id", w.subject)
	q.Set("role", w.role)
	if w.since > 0 {
		q.Set("since", strconv.FormatInt(w.since, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		w.baseURL+"/api/v1/events/unread?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var body unreadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}

	// Newest first from the server; print oldest first so the terminal
	// reads chronologically.
	for i := len(body.Data) - 1; i >= 0; i-- {
		e := body.Data[i]
		ts := time.Unix(e.CreatedAt, 0).Format("15:04:05")
		fmt.Printf("[%s] %-20s entity=%s\n", ts, e.EventType, e.EntityID)
		if e.CreatedAt > w.since {
			w.since = e.CreatedAt
		}
	}
	return nil
}

func main() {
	var (
		server   = pflag.String("server", "http://localhost:8080", "helpdesk server base URL")
		subject  = pflag.String("subject", "", "subject ID to watch (required)")
		role     = pflag.String("role", "agent", "subject role: requester or agent")
		interval = pflag.Duration("interval", 5*time.Second, "base poll interval")
		timeout  = pflag.Duration("timeout", 10*time.Second, "per-request HTTP timeout")
		verbose  = pflag.Bool("verbose", false, "log poll failures")
	)
	pflag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "error: --subject is required")
		pflag.Usage()
		os.Exit(2)
	}
	if _, err := domain.NormalizeRole(*role); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid --role %q\n", *role)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}

	w := &watcher{
		client:  &http.Client{Timeout: *timeout},
		baseURL: *server,
		subject: *subject,
		role:    *role,
	}

	client := poll.NewClient(poll.Config{
		Poll:         w.poll,
		BaseInterval: *interval,
		OnStatusChange: func(s poll.Status) {
			fmt.Printf("-- connection: %s\n", s)
		},
		OnError: func(err error, failures int) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "poll failed (%d consecutive): %v\n", failures, err)
			}
		},
		Logger: logger,
	})

	fmt.Printf("watching %s (%s) on %s, every %s\n", *subject, *role, *server, *interval)
	client.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	client.Stop()
	fmt.Println("\nstopped")
}
