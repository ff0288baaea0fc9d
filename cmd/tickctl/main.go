package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"MT5Stream/internal/domain/models"
	"MT5Stream/internal/service/stream"
	xhttp "MT5Stream/pkg/http"
	"MT5Stream/pkg/logger"
)

const usage = `usage: tickctl <command> [flags]

commands:
  send   post ticks to a running server
  watch  print ticks pushed over /ws
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	l, err := logger.New(&logger.Config{Level: "info", Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "send":
		err = runSend(ctx, l, os.Args[2:])
	case "watch":
		err = runWatch(ctx, l, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		l.Error("tickctl failed", logger.Error(err))
		os.Exit(1)
	}
}

type tickBody struct {
	Symbol string   `json:"symbol"`
	Bid    float64  `json:"bid"`
	Ask    float64  `json:"ask"`
	Digits *int     `json:"digits,omitempty"`
	Time   *float64 `json:"time,omitempty"`
}

func runSend(ctx context.Context, l *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	base := fs.String("url", "http://localhost:3000", "server base URL")
	path := fs.String("path", "/tick", "ingest path (/tick or /webhook)")
	symbol := fs.String("symbol", "EURUSD", "symbol")
	bid := fs.Float64("bid", 1.0810, "starting bid")
	spread := fs.Float64("spread", 0.0002, "ask minus bid")
	digits := fs.Int("digits", 5, "quote digits, negative to omit")
	count := fs.Int("count", 1, "number of ticks to send")
	interval := fs.Duration("interval", 500*time.Millisecond, "pause between ticks")
	step := fs.Float64("step", 0.0001, "max random-walk step per tick")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := xhttp.NewClient(xhttp.WithTimeout(5 * time.Second))
	url := strings.TrimRight(*base, "/") + *path
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	price := *bid

	for i := 0; i < *count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(*interval):
			}
			price += (rng.Float64()*2 - 1) * *step
		}

		body := tickBody{Symbol: *symbol, Bid: round(price, *digits), Ask: round(price+*spread, *digits)}
		if *digits >= 0 {
			d := *digits
			body.Digits = &d
		}
		ts := float64(time.Now().Unix())
		body.Time = &ts

		resp, err := client.Do(ctx, &xhttp.RequestOptions{Method: xhttp.MethodPost, URL: url, Body: body})
		if err != nil {
			return err
		}
		if resp.Status != 200 {
			var rej models.RejectResponse
			_ = resp.Decode(&rej)
			l.Warn("tick rejected", logger.Int("status", resp.Status), logger.String("reason", rej.Error))
			continue
		}
		var ok models.IngestResponse
		if err := resp.Decode(&ok); err != nil {
			return err
		}
		l.Info("tick sent",
			logger.String("symbol", ok.Saved.Symbol),
			logger.Float64("bid", ok.Saved.Bid),
			logger.Float64("ask", ok.Saved.Ask),
			logger.Int64("received_at", ok.Saved.ReceivedAt),
		)
	}
	return nil
}

func runWatch(ctx context.Context, l *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	url := fs.String("url", "ws://localhost:3000/ws", "push channel URL")
	ping := fs.Duration("ping", 30*time.Second, "keepalive interval, 0 to disable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	w := stream.NewWatcher(*url, *ping)
	if err := w.Connect(ctx); err != nil {
		return err
	}
	defer w.Close()
	l.Info("watching", logger.String("url", *url))

	ticks, errs := w.Read(ctx)
	for {
		select {
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			l.Info("tick",
				logger.String("symbol", t.Symbol),
				logger.Float64("bid", t.Bid),
				logger.Float64("ask", t.Ask),
				logger.Float64("spread", t.Spread()),
				logger.Int64("received_at", t.ReceivedAt),
			)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

func round(v float64, digits int) float64 {
	if digits < 0 {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
